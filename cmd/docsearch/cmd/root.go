// Package cmd implements the docsearch command line: the HTTP service, a
// one-shot search, index validation and the MCP server.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// globals holds flags shared by every subcommand and the config they
// resolve to.
type globals struct {
	configPath string
	records    string
	logLevel   string
	cfg        *config.Config
}

func NewRootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   "docsearch",
		Short: "Keyword search over a static documentation index",
		Long: `docsearch loads a documentation search index (a JSON record list or a
Documenter search_index.js), builds an inverted index over it and answers
keyword queries ranked by term frequency.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.load(cmd)
		},
	}
	cmd.SetVersionTemplate("docsearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVarP(&g.records, "records", "r", "",
		`records file to index; overrides records.source and records.path ("-" for the built-in index)`)
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")

	cmd.AddCommand(newServeCmd(g))
	cmd.AddCommand(newSearchCmd(g))
	cmd.AddCommand(newValidateCmd(g))
	cmd.AddCommand(newMCPCmd(g))
	cmd.AddCommand(newNotifyCmd(g))
	cmd.AddCommand(newLoadtestCmd())

	return cmd
}

func (g *globals) load(cmd *cobra.Command) error {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	switch g.records {
	case "":
	case "-":
		cfg.Records.Source = config.SourceEmbedded
	default:
		cfg.Records.Source = config.SourceFile
		cfg.Records.Path = g.records
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	g.cfg = cfg

	// Only serve logs to stdout; the other commands keep it for their own
	// output.
	if cmd.Name() == "serve" {
		logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	} else {
		logger.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, "text")
	}
	return nil
}

// Execute runs the root command with a context cancelled on SIGINT or
// SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}
