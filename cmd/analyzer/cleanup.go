package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xaenox/doc-analyzer/internal/analyzer"
	"github.com/xaenox/doc-analyzer/internal/assistants"
)

func newCleanupCmd(root *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete leftover agents and uploaded documents",
		Long: `Deletes every agent named ` + analyzer.AgentNamePrefix + `* and every file named
` + analyzer.DocumentFilePrefix + `* from the backend. Instances that crashed leave these behind.

Examples:
  analyzer cleanup --dry-run
  analyzer cleanup --config prod.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(cmd.Context(), root, dryRun, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List what would be deleted without deleting it")
	return cmd
}

func runCleanup(ctx context.Context, root *rootOptions, dryRun bool, out io.Writer) error {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := loadConfig(root.ConfigFile)
	if err != nil {
		return err
	}

	client := assistants.New(assistantsConfig(cfg), logger.Named("assistants"))
	result, err := client.Sweep(ctx, analyzer.AgentNamePrefix, analyzer.DocumentFilePrefix, dryRun)
	printSweep(out, result, dryRun)
	return err
}

func printSweep(out io.Writer, result assistants.SweepResult, dryRun bool) {
	verb := "Deleted"
	if dryRun {
		verb = "Would delete"
	}
	for _, id := range result.Agents {
		fmt.Fprintf(out, "%s agent %s\n", verb, id)
	}
	for _, id := range result.Files {
		fmt.Fprintf(out, "%s file %s\n", verb, id)
	}
	fmt.Fprintf(out, "%s %d agents and %d files\n", verb, len(result.Agents), len(result.Files))
}
