package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/records"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/search"
)

type searchOptions struct {
	limit    int
	category string
	format   string
}

func newSearchCmd(g *globals) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the documentation index once and print the results",
		Long: `Build the index from the configured records and run one query against it.
Words are matched independently; a record matching any of them is returned.

Examples:
  docsearch search "hydro thermal scheduling"
  docsearch search cuts --limit 3 --category section
  docsearch search planning -r site/search_index.js --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeSrc, err := buildOnce(cmd.Context(), g.cfg)
			defer closeSrc()
			if err != nil {
				return err
			}
			limit := opts.limit
			if !cmd.Flags().Changed("limit") {
				limit = g.cfg.Search.DefaultLimit
			}
			res, err := svc.Execute(search.Query{
				Text:     strings.Join(args, " "),
				Limit:    limit,
				Category: records.Category(opts.category),
			})
			if err != nil {
				return err
			}
			return printResults(cmd.OutOrStdout(), res, opts.format)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "maximum number of results")
	cmd.Flags().StringVar(&opts.category, "category", "", "only return records of this category")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "output format: text, json")

	return cmd
}

func printResults(w io.Writer, res *search.SearchResult, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "text":
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	if len(res.Results) == 0 {
		_, err := fmt.Fprintf(w, "No results for %q\n", res.Query)
		return err
	}
	fmt.Fprintf(w, "%d of %d results for %q\n\n", len(res.Results), res.TotalHits, res.Query)
	for i, r := range res.Results {
		fmt.Fprintf(w, "%2d. %s", i+1, r.Title)
		if r.Page != r.Title {
			fmt.Fprintf(w, " (%s)", r.Page)
		}
		fmt.Fprintf(w, "  score=%g\n    %s\n", r.Score, r.Location)
	}
	return nil
}
