package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	CurrentVersion = 1
	DefaultPath    = "~/.datachat/datachat.yaml"

	DefaultPort          = 8230
	DefaultMaxUploadSize = 64 << 20
)

// Storage backends.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// LLM providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config is the top-level configuration.
type Config struct {
	Version int           `yaml:"version"`
	Server  ServerConfig  `yaml:"server,omitempty"`
	Mongo   MongoConfig   `yaml:"mongo,omitempty"`
	Storage StorageConfig `yaml:"storage,omitempty"`
	Upload  UploadConfig  `yaml:"upload,omitempty"`
	LLM     LLMConfig     `yaml:"llm,omitempty"`
	Secrets SecretsConfig `yaml:"secrets,omitempty"`
	Logging LogConfig     `yaml:"logging,omitempty"`
}

// ServerConfig defines the HTTP server.
type ServerConfig struct {
	Port      int    `yaml:"port,omitempty"`
	CORS      bool   `yaml:"cors,omitempty"`
	StaticDir string `yaml:"static_dir,omitempty"` // built frontend, served with SPA fallback
}

// MongoConfig defines the document store holding projects and chats.
type MongoConfig struct {
	URI      string `yaml:"uri,omitempty"`
	Database string `yaml:"database,omitempty"`
}

// StorageConfig defines where raw uploads are kept.
type StorageConfig struct {
	Backend   string `yaml:"backend,omitempty"`   // local or s3
	Directory string `yaml:"directory,omitempty"` // local backend, default ~/.datachat/input/
	Bucket    string `yaml:"bucket,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Profile   string `yaml:"profile,omitempty"`
}

// UploadConfig bounds upload handling.
type UploadConfig struct {
	MaxBytes int64  `yaml:"max_bytes,omitempty"`
	TempDir  string `yaml:"temp_dir,omitempty"` // temporary copies of database files
}

// LLMConfig defines the model used for narrative reports.
type LLMConfig struct {
	Provider    string  `yaml:"provider,omitempty"` // openai or anthropic
	Endpoint    string  `yaml:"endpoint,omitempty"` // OpenAI-compatible base URL
	Model       string  `yaml:"model,omitempty"`
	APIKey      string  `yaml:"api_key,omitempty"`
	Temperature float32 `yaml:"temperature,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
	GraphDir    string  `yaml:"graph_dir,omitempty"` // report graphs are resolved inside it
}

// SecretsConfig configures the secret providers used by references.
type SecretsConfig struct {
	VaultAddress string `yaml:"vault_address,omitempty"` // falls back to VAULT_ADDR
	AWSRegion    string `yaml:"aws_region,omitempty"`
	AWSProfile   string `yaml:"aws_profile,omitempty"`
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level     string `yaml:"level,omitempty"`     // debug, info, warn, error
	Directory string `yaml:"directory,omitempty"` // default ~/.datachat/logs/
}

// Default returns a configuration with every default applied and no store.
func Default() *Config {
	cfg := &Config{Version: CurrentVersion}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the config file from the given path.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentVersion)
	}

	if err := cfg.resolveSecrets(context.Background()); err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// LoadOrDefault loads the config at path. When no path is given and the
// default file does not exist, it returns Default().
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		if _, err := os.Stat(ExpandHome(DefaultPath)); errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
	}
	return Load(path)
}

// Save writes the config to the given path.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate reports every setting that cannot work together.
func (c *Config) Validate() []string {
	var problems []string

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if c.Mongo.URI != "" && c.Mongo.Database == "" {
		problems = append(problems, "mongo.database is required when mongo.uri is set")
	}
	switch c.Storage.Backend {
	case StorageLocal:
	case StorageS3:
		if c.Storage.Bucket == "" {
			problems = append(problems, "storage.bucket is required for the s3 backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("storage.backend %q must be %q or %q", c.Storage.Backend, StorageLocal, StorageS3))
	}
	if c.Upload.MaxBytes <= 0 {
		problems = append(problems, "upload.max_bytes must be positive")
	}
	switch c.LLM.Provider {
	case "", ProviderOpenAI, ProviderAnthropic:
	default:
		problems = append(problems, fmt.Sprintf("llm.provider %q must be %q or %q", c.LLM.Provider, ProviderOpenAI, ProviderAnthropic))
	}
	if c.LLM.Provider != "" && c.LLM.APIKey == "" {
		problems = append(problems, "llm.api_key is required when llm.provider is set")
	}
	return problems
}

// HasStore reports whether a document store is configured.
func (c *Config) HasStore() bool {
	return c.Mongo.URI != ""
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageLocal
	}
	if c.Storage.Directory == "" {
		c.Storage.Directory = "~/.datachat/input/"
	}
	c.Storage.Directory = ExpandHome(c.Storage.Directory)
	if c.Upload.MaxBytes == 0 {
		c.Upload.MaxBytes = DefaultMaxUploadSize
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 2048
	}
	if c.LLM.Model == "" {
		switch c.LLM.Provider {
		case ProviderOpenAI:
			c.LLM.Model = "gpt-4o-mini"
		case ProviderAnthropic:
			c.LLM.Model = "claude-3-5-haiku-latest"
		}
	}
	if c.LLM.GraphDir == "" {
		c.LLM.GraphDir = "~/.datachat/graphs/"
	}
	c.LLM.GraphDir = ExpandHome(c.LLM.GraphDir)
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Directory == "" {
		c.Logging.Directory = ExpandHome("~/.datachat/logs/")
	}
}

func (c *Config) resolveSecrets(ctx context.Context) error {
	r := &Resolver{
		VaultAddress: c.Secrets.VaultAddress,
		AWSRegion:    c.Secrets.AWSRegion,
		AWSProfile:   c.Secrets.AWSProfile,
	}

	fields := []struct {
		name string
		val  *string
	}{
		{"mongo uri", &c.Mongo.URI},
		{"llm api key", &c.LLM.APIKey},
		{"llm endpoint", &c.LLM.Endpoint},
		{"storage bucket", &c.Storage.Bucket},
	}
	for _, f := range fields {
		v, err := r.Resolve(ctx, *f.val)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.val = v
	}
	return nil
}

// ExpandHome expands ~ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
