package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/loadtest"
)

func newLoadtestCmd() *cobra.Command {
	cfg := loadtest.Config{}

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Send concurrent search traffic to a running docsearch service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Target:      %s\n", cfg.BaseURL)
			fmt.Fprintf(w, "Concurrency: %d\n", cfg.Concurrency)
			fmt.Fprintf(w, "Duration:    %s\n\n", cfg.Duration)

			rep, err := loadtest.Run(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			rep.Print(w)
			if rep.Total == 0 {
				return fmt.Errorf("no requests completed; is the service running at %s?", cfg.BaseURL)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.BaseURL, "url", "http://localhost:8080", "base URL of the search service")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 10, "number of concurrent workers")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 30*time.Second, "test duration")
	cmd.Flags().IntVar(&cfg.Limit, "limit", 10, "result limit sent with each query")
	cmd.Flags().StringSliceVarP(&cfg.Queries, "query", "q", nil, "query to send (repeatable); defaults to a built-in set")

	return cmd
}
