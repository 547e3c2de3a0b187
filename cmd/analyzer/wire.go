package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xaenox/doc-analyzer/internal/analyzer"
	"github.com/xaenox/doc-analyzer/internal/assistants"
	"github.com/xaenox/doc-analyzer/internal/filestore"
	"github.com/xaenox/doc-analyzer/internal/filestore/graph"
	"github.com/xaenox/doc-analyzer/internal/filestore/local"
	s3store "github.com/xaenox/doc-analyzer/internal/filestore/s3"
	"github.com/xaenox/doc-analyzer/internal/storage"
	"github.com/xaenox/doc-analyzer/internal/vision"
	"github.com/xaenox/doc-analyzer/pkg/config"
)

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func assistantsConfig(cfg *config.Config) assistants.Config {
	return assistants.Config{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		APIType:    cfg.OpenAI.APIType,
		APIVersion: cfg.OpenAI.APIVersion,
	}
}

func analyzerOptions(cfg *config.Config) analyzer.Options {
	return analyzer.Options{
		Mode:           analyzer.AgentMode(cfg.Agent.Mode),
		PollInterval:   cfg.Agent.PollInterval,
		MaxPolls:       cfg.Agent.MaxPolls,
		RunTimeout:     cfg.Agent.RunTimeout,
		CleanupTimeout: cfg.Agent.CleanupTimeout,
		DeleteThreads:  cfg.Agent.DeleteThreads,
	}
}

func newJournal(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory journal")
		return storage.NewMemoryStorage(), nil
	}

	logger.Info("Using PostgreSQL journal")
	dbConfig := storage.DatabaseConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	}
	store, err := storage.NewPostgresStorage(ctx, dbConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize journal: %w", err)
	}
	return store, nil
}

func newFileStore(ctx context.Context, cfg *config.Config) (filestore.Store, error) {
	switch cfg.FileStore.Type {
	case "local":
		return local.New(cfg.Local.Dir), nil
	case "s3":
		store, err := s3store.New(ctx, cfg.S3.Region, cfg.S3.Prefix)
		if err != nil {
			return nil, analyzer.ConfigurationError("open s3 store", err)
		}
		return store, nil
	case "graph":
		store, err := graph.New(ctx, graph.Config{
			TenantID:     cfg.Graph.TenantID,
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: cfg.Graph.ClientSecret,
			BaseURL:      cfg.Graph.BaseURL,
			TokenURL:     cfg.Graph.TokenURL,
			Scopes:       cfg.Graph.Scopes,
		})
		if err != nil {
			return nil, analyzer.ConfigurationError("open graph store", err)
		}
		return store, nil
	default:
		return nil, analyzer.ConfigurationError("select file store", fmt.Errorf("unknown file store type %q", cfg.FileStore.Type))
	}
}

// newVision builds the image extractor with the same system prompt as the agent
func newVision(cfg *config.Config, instanceID string, journal analyzer.Journal, logger *zap.Logger) (*vision.Extractor, error) {
	instructions, err := analyzer.LoadPrompt(cfg.Agent.PromptPath)
	if err != nil {
		return nil, err
	}
	return vision.NewFromConfig(assistantsConfig(cfg), vision.Options{
		Model:        cfg.Vision.Model,
		MaxTokens:    cfg.Vision.MaxTokens,
		Detail:       cfg.Vision.Detail,
		Instructions: instructions,
		InstanceID:   instanceID,
	}, journal, logger.Named("vision"))
}

// startAgent creates the shared agent, or only prepares the spec when every call brings its own
func startAgent(ctx context.Context, cfg *config.Config, agents *analyzer.Lifecycle) error {
	if analyzer.AgentMode(cfg.Agent.Mode) == analyzer.AgentPerCall {
		return agents.Prepare(cfg.OpenAI.Model, cfg.Agent.PromptPath)
	}
	_, err := agents.Initialize(ctx, cfg.OpenAI.Model, cfg.Agent.PromptPath)
	return err
}
