package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	ConfigFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "analyzer",
		Short: "Document analysis service backed by an LLM agent",
		Long: `Extracts structured JSON from documents by handing them to a hosted agent.

Available subcommands:
  serve       Run the HTTP service
  analyze     Analyze one local file and print the result
  cleanup     Delete leftover agents and uploaded documents

Examples:
  analyzer serve --config config.yaml
  analyzer analyze --file invoice.pdf --schema invoice.schema.json --prompt "Extract the totals"
  analyzer cleanup --dry-run`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file (empty for defaults and environment only)")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newAnalyzeCmd(opts))
	cmd.AddCommand(newCleanupCmd(opts))

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
