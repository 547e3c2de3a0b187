package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/xaenox/doc-analyzer/internal/analyzer"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Agent     AgentConfig     `mapstructure:"agent"`
	FileStore FileStoreConfig `mapstructure:"filestore"`
	Graph     GraphConfig     `mapstructure:"graph"`
	S3        S3Config        `mapstructure:"s3"`
	Local     LocalConfig     `mapstructure:"local"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Vision    VisionConfig    `mapstructure:"vision"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	APIKeys         []string      `mapstructure:"api_keys"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxDocumentSize int64         `mapstructure:"max_document_size"`
}

type OpenAIConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	APIType    string `mapstructure:"api_type"`
	APIVersion string `mapstructure:"api_version"`
	Model      string `mapstructure:"model"`
}

type AgentConfig struct {
	PromptPath     string        `mapstructure:"prompt_path"`
	Mode           string        `mapstructure:"mode"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	RunTimeout     time.Duration `mapstructure:"run_timeout"`
	MaxPolls       int           `mapstructure:"max_polls"`
	DeleteThreads  bool          `mapstructure:"delete_threads"`
	CleanupTimeout time.Duration `mapstructure:"cleanup_timeout"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
}

type FileStoreConfig struct {
	Type string `mapstructure:"type"`
}

type GraphConfig struct {
	TenantID     string   `mapstructure:"tenant_id"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	BaseURL      string   `mapstructure:"base_url"`
	TokenURL     string   `mapstructure:"token_url"`
	Scopes       []string `mapstructure:"scopes"`
}

type S3Config struct {
	Region string `mapstructure:"region"`
	Prefix string `mapstructure:"prefix"`
}

type LocalConfig struct {
	Dir string `mapstructure:"dir"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type VisionConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
	Detail    string `mapstructure:"detail"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_document_size", 50<<20)
	v.SetDefault("openai.api_type", "openai")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("agent.prompt_path", "prompts/document-system-prompt.txt")
	v.SetDefault("agent.mode", string(analyzer.AgentShared))
	v.SetDefault("agent.poll_interval", analyzer.DefaultPollInterval)
	v.SetDefault("agent.run_timeout", 5*time.Minute)
	v.SetDefault("agent.max_polls", 0)
	v.SetDefault("agent.delete_threads", true)
	v.SetDefault("agent.cleanup_timeout", 30*time.Second)
	v.SetDefault("agent.retry_delay", 300*time.Millisecond)
	v.SetDefault("filestore.type", "graph")
	v.SetDefault("local.dir", "documents")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", true)
	v.SetDefault("vision.enabled", false)
	v.SetDefault("vision.max_tokens", 4096)
	v.SetDefault("vision.detail", "high")
}

// LoadConfig reads path (when non-empty) on top of defaults and environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Enable environment variable support
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	if secret := v.GetString("GRAPH_CLIENT_SECRET"); secret != "" {
		config.Graph.ClientSecret = secret
	}

	return &config, nil
}

// Validate reports missing settings the service cannot start without
func (c *Config) Validate() error {
	var problems []string
	if c.OpenAI.APIKey == "" {
		problems = append(problems, "openai.api_key is required")
	}
	if c.OpenAI.Model == "" {
		problems = append(problems, "openai.model is required")
	}
	if c.OpenAI.APIType == "azure" && c.OpenAI.BaseURL == "" {
		problems = append(problems, "openai.base_url is required for azure")
	}
	if c.Agent.PromptPath == "" {
		problems = append(problems, "agent.prompt_path is required")
	}
	switch analyzer.AgentMode(c.Agent.Mode) {
	case analyzer.AgentShared, analyzer.AgentPerCall:
	default:
		problems = append(problems, fmt.Sprintf("agent.mode %q must be shared or per_call", c.Agent.Mode))
	}
	switch c.FileStore.Type {
	case "graph", "s3", "local":
	default:
		problems = append(problems, fmt.Sprintf("filestore.type %q must be graph, s3 or local", c.FileStore.Type))
	}
	if c.Vision.Enabled && c.Vision.Model == "" {
		problems = append(problems, "vision.model is required when vision is enabled")
	}
	if len(problems) > 0 {
		return analyzer.ConfigurationError("load config", errors.New(strings.Join(problems, "; ")))
	}
	return nil
}
