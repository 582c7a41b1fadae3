package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultLoadWorkers is the default number of content files parsed in parallel.
	DefaultLoadWorkers = 4

	// DefaultSearchLimit is the default number of hits returned by a search.
	DefaultSearchLimit = 10

	// DefaultDebounceMS is the default quiet period before a watched change is ingested.
	DefaultDebounceMS = 400
)

// Config holds all configuration for openclaw-ladder.
type Config struct {
	Content ContentConfig `mapstructure:"content"`
	Store   StoreConfig   `mapstructure:"store"`
	Search  SearchConfig  `mapstructure:"search"`
	Neo4j   Neo4jConfig   `mapstructure:"neo4j"`
	Claude  ClaudeConfig  `mapstructure:"claude"`
	Logging LoggingConfig `mapstructure:"logging"`
	API     APIConfig     `mapstructure:"api"`
	Watch   WatchConfig   `mapstructure:"watch"`
}

// ContentConfig controls where entries are read from and how strictly they are admitted.
type ContentConfig struct {
	Dir               string   `mapstructure:"dir"`
	Extensions        []string `mapstructure:"extensions"`
	AllowSparseLevels bool     `mapstructure:"allow_sparse_levels"`
	LoadWorkers       int      `mapstructure:"load_workers"`
}

// StoreConfig holds durable storage settings.
type StoreConfig struct {
	SQLitePath string `mapstructure:"sqlite_path"`
}

// SearchConfig holds full-text index settings. An empty IndexPath keeps the index in memory.
type SearchConfig struct {
	IndexPath    string `mapstructure:"index_path"`
	DefaultLimit int    `mapstructure:"default_limit"`
	Fuzzy        bool   `mapstructure:"fuzzy"`
}

// Neo4jConfig holds the optional graph mirror connection. An empty URI disables it.
type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// String returns a safe representation with the password masked.
func (c Neo4jConfig) String() string {
	return fmt.Sprintf("Neo4jConfig{URI:%s, User:%s, Password:%s, Database:%s}",
		c.URI, c.User, maskAPIKey(c.Password), c.Database)
}

// ClaudeConfig holds Anthropic Claude API settings.
type ClaudeConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// String returns a safe representation of ClaudeConfig with the API key masked.
func (c ClaudeConfig) String() string {
	return fmt.Sprintf("ClaudeConfig{APIKey:%s, Model:%s}", maskAPIKey(c.APIKey), c.Model)
}

// maskAPIKey shows first 4 + last 4 chars, replacing the middle with asterisks.
func maskAPIKey(key string) string {
	const visible = 4
	if len(key) <= visible*2 {
		return "***"
	}
	return key[:visible] + "****" + key[len(key)-visible:]
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	AuthToken  string `mapstructure:"auth_token"`
}

// WatchConfig controls re-ingestion of changed content files while serving.
type WatchConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	DebounceMS int  `mapstructure:"debounce_ms"`
}

// Load reads configuration from the default locations and environment variables.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches
// ~/.openclaw-ladder and the working directory for config.yaml.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(homeDir(), ".openclaw-ladder"))
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("OPENCLAW_LADDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("claude.api_key", "ANTHROPIC_API_KEY", "OPENCLAW_LADDER_CLAUDE_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	base := filepath.Join(homeDir(), ".openclaw-ladder")

	v.SetDefault("content.dir", filepath.Join(base, "content"))
	v.SetDefault("content.extensions", []string{".json", ".jsonl", ".yaml", ".yml"})
	v.SetDefault("content.allow_sparse_levels", false)
	v.SetDefault("content.load_workers", DefaultLoadWorkers)

	v.SetDefault("store.sqlite_path", filepath.Join(base, "data", "entries.db"))

	v.SetDefault("search.index_path", filepath.Join(base, "data", "search.bleve"))
	v.SetDefault("search.default_limit", DefaultSearchLimit)
	v.SetDefault("search.fuzzy", false)

	v.SetDefault("neo4j.uri", "")
	v.SetDefault("neo4j.user", "neo4j")
	v.SetDefault("neo4j.password", "")
	v.SetDefault("neo4j.database", "neo4j")

	v.SetDefault("claude.api_key", "")
	v.SetDefault("claude.model", "claude-haiku-4-5-20251001")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.auth_token", "")

	v.SetDefault("watch.enabled", false)
	v.SetDefault("watch.debounce_ms", DefaultDebounceMS)
}

// Validate checks that required configuration fields are set and consistent.
func (c *Config) Validate() error {
	if c.Content.Dir == "" {
		return fmt.Errorf("content.dir must not be empty")
	}
	if len(c.Content.Extensions) == 0 {
		return fmt.Errorf("content.extensions must list at least one extension")
	}
	if c.Content.LoadWorkers <= 0 {
		return fmt.Errorf("content.load_workers must be greater than 0")
	}
	if c.Store.SQLitePath == "" {
		return fmt.Errorf("store.sqlite_path must not be empty")
	}
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search.default_limit must be greater than 0")
	}
	if c.Neo4j.URI != "" && c.Neo4j.User == "" {
		return fmt.Errorf("neo4j.user must be set when neo4j.uri is set")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json; got %q", c.Logging.Format)
	}
	if c.Watch.DebounceMS < 0 {
		return fmt.Errorf("watch.debounce_ms must be >= 0")
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
