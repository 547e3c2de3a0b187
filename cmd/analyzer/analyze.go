package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xaenox/doc-analyzer/internal/analyzer"
	"github.com/xaenox/doc-analyzer/internal/assistants"
	"github.com/xaenox/doc-analyzer/internal/filestore"
	"github.com/xaenox/doc-analyzer/internal/filestore/local"
	"github.com/xaenox/doc-analyzer/internal/models"
	"github.com/xaenox/doc-analyzer/internal/schema"
	"github.com/xaenox/doc-analyzer/internal/server"
	"github.com/xaenox/doc-analyzer/internal/storage"
)

var errNoResult = errors.New("the agent produced no result")

// AnalyzeOptions holds the flags of the analyze command
type AnalyzeOptions struct {
	File     string
	Schema   string
	Prompt   string
	MimeType string
	Verbose  bool
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &AnalyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze one local file and print the result",
		Long: `Creates an agent, analyzes a local document with it, prints the JSON reply
and deletes the agent again.

Examples:
  analyzer analyze --file invoice.pdf --schema invoice.schema.json --prompt "Extract the totals"
  analyzer analyze --file scan.bin --mime application/pdf --schema s.json --prompt "..." --verbose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), root, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.File, "file", "", "Document to analyze")
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "Path to the expected JSON schema")
	cmd.Flags().StringVar(&opts.Prompt, "prompt", "", "Extraction instructions")
	cmd.Flags().StringVar(&opts.MimeType, "mime", "", "Override the detected MIME type")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Log every backend step")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("schema")
	cmd.MarkFlagRequired("prompt")

	return cmd
}

func runAnalyze(ctx context.Context, root *rootOptions, opts *AnalyzeOptions, out io.Writer) error {
	logger := zap.NewNop()
	if opts.Verbose {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	cfg, err := loadConfig(root.ConfigFile)
	if err != nil {
		return err
	}

	req, err := loadRequest(ctx, opts, cfg.Server.MaxDocumentSize)
	if err != nil {
		return err
	}

	journal := storage.NewMemoryStorage()
	client := assistants.New(assistantsConfig(cfg), logger.Named("assistants"))
	backend := analyzer.WithReadRetry(client, cfg.Agent.RetryDelay, logger)
	agents := analyzer.NewLifecycle(backend, "", logger.Named("agent"))

	var runner server.Analyzer
	if cfg.Vision.Enabled {
		extractor, err := newVision(cfg, agents.InstanceID(), journal, logger)
		if err != nil {
			return err
		}
		if extractor.Supports(req.MimeType) {
			runner = extractor
		}
	}
	if runner == nil {
		if err := startAgent(ctx, cfg, agents); err != nil {
			return err
		}
		defer agents.Teardown(ctx)
		runner = analyzer.New(backend, agents, journal, analyzerOptions(cfg), logger.Named("analyzer"))
	}

	result, err := runner.Analyze(ctx, req)
	if err != nil {
		return err
	}
	if !result.Found {
		return errNoResult
	}
	if compiled, err := schema.Compile(req.ExpectedSchema); err != nil {
		logger.Warn("Schema not checked", zap.Error(err))
	} else if err := compiled.Check([]byte(result.Text)); err != nil {
		logger.Warn("Result does not match schema", zap.Error(err))
	}
	_, err = fmt.Fprintln(out, result.Text)
	return err
}

// loadRequest reads the document through the local file store so MIME detection matches the service
func loadRequest(ctx context.Context, opts *AnalyzeOptions, maxBytes int64) (models.AnalysisRequest, error) {
	abs, err := filepath.Abs(opts.File)
	if err != nil {
		return models.AnalysisRequest{}, err
	}
	data, info, err := filestore.Fetch(ctx, local.New(filepath.Dir(abs)), "", filepath.Base(abs), maxBytes)
	if err != nil {
		return models.AnalysisRequest{}, fmt.Errorf("read %s: %w", opts.File, err)
	}

	rawSchema, err := os.ReadFile(opts.Schema)
	if err != nil {
		return models.AnalysisRequest{}, fmt.Errorf("read schema: %w", err)
	}

	mimeType := info.MimeType
	if m := strings.TrimSpace(opts.MimeType); m != "" {
		mimeType = m
	}
	return models.AnalysisRequest{
		Document:         data,
		MimeType:         mimeType,
		ExpectedSchema:   string(rawSchema),
		UserInstructions: opts.Prompt,
	}, nil
}
