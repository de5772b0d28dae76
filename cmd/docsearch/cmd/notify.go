package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/reload"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

func newNotifyCmd(g *globals) *cobra.Command {
	var msg reload.DocsUpdated

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Tell running instances that the documentation changed",
		Long: `Publish a docs-updated message to Kafka. Every docsearch instance with
Kafka enabled reloads its index when it receives one. Run this at the end of
a documentation build.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			topic := g.cfg.Kafka.Topics.DocsUpdated
			if topic == "" {
				return fmt.Errorf("kafka.topics.docsUpdated is not configured")
			}
			producer := kafka.NewProducer(g.cfg.Kafka, topic)
			defer producer.Close()
			if err := reload.Notify(cmd.Context(), producer, msg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published docs-updated for %s to %s\n", msg.Source, topic)
			return nil
		},
	}
	cmd.Flags().StringVar(&msg.Source, "source", "docs", "name of the documentation source that changed")
	cmd.Flags().StringVar(&msg.Version, "build-version", "", "version of the new documentation build")
	return cmd
}
