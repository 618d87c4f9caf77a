// Package config loads runtime settings.
//
// Sources apply in increasing precedence: built-in defaults, an optional
// YAML file, a .env file in the working directory, then the process
// environment. Command-line flags are applied by the caller afterwards.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/assetq/internal/oracle"
	"github.com/roach88/assetq/internal/search"
)

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Environment variables read by Load.
const (
	EnvDB            = "ASSETQ_DB"
	EnvAddr          = "ASSETQ_ADDR"
	EnvProvider      = "ASSETQ_PROVIDER"
	EnvModel         = "ASSETQ_MODEL"
	EnvOracleBaseURL = "ASSETQ_ORACLE_BASE_URL"
	EnvOracleTimeout = "ASSETQ_ORACLE_TIMEOUT"
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvAnthropicKey  = "ANTHROPIC_API_KEY"
)

// Config is the full runtime configuration.
type Config struct {
	Database Database `yaml:"database"`
	Server   Server   `yaml:"server"`
	Oracle   Oracle   `yaml:"oracle"`
	Search   Search   `yaml:"search"`
	Insight  Insight  `yaml:"insight"`
}

// Database locates the SQLite file.
type Database struct {
	Path string `yaml:"path"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Oracle configures the SQL-generating model.
type Oracle struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Search configures the keyword fallback.
type Search struct {
	Limit int `yaml:"limit"`
}

// Insight configures the synthesizer.
type Insight struct {
	SlowThreshold time.Duration `yaml:"slow_threshold"`
	// RulesFile replaces the built-in rule table when set.
	RulesFile string `yaml:"rules_file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: Database{Path: "assetq.db"},
		Server: Server{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Oracle: Oracle{
			Provider:    ProviderOpenAI,
			MaxTokens:   oracle.DefaultMaxTokens,
			Temperature: oracle.DefaultTemperature,
			Timeout:     oracle.DefaultTimeout,
		},
		Search:  Search{Limit: search.DefaultLimit},
		Insight: Insight{SlowThreshold: time.Second},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), a .env file if one exists, and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// A missing .env file is normal.
	_ = godotenv.Load()

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode strictly unmarshals YAML over cfg. An empty document leaves cfg
// unchanged.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(EnvDB, &c.Database.Path)
	set(EnvAddr, &c.Server.Addr)
	set(EnvProvider, &c.Oracle.Provider)
	set(EnvModel, &c.Oracle.Model)
	set(EnvOracleBaseURL, &c.Oracle.BaseURL)
	c.Oracle.Provider = strings.ToLower(c.Oracle.Provider)

	if v, ok := lookup(EnvOracleTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			if secs, serr := strconv.Atoi(v); serr == nil {
				d = time.Duration(secs) * time.Second
			} else {
				return fmt.Errorf("%s: %w", EnvOracleTimeout, err)
			}
		}
		c.Oracle.Timeout = d
	}

	if c.Oracle.APIKey == "" {
		switch c.Oracle.Provider {
		case ProviderOpenAI:
			set(EnvOpenAIKey, &c.Oracle.APIKey)
		case ProviderAnthropic:
			set(EnvAnthropicKey, &c.Oracle.APIKey)
		}
	}
	return nil
}

// KeyEnv names the environment variable holding the configured provider's
// API key.
func (c Config) KeyEnv() string {
	if c.Oracle.Provider == ProviderAnthropic {
		return EnvAnthropicKey
	}
	return EnvOpenAIKey
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Database.Path == "":
		return errors.New("database.path is required")
	case c.Oracle.Provider != ProviderOpenAI && c.Oracle.Provider != ProviderAnthropic:
		return fmt.Errorf("oracle.provider %q: want %s or %s", c.Oracle.Provider, ProviderOpenAI, ProviderAnthropic)
	case c.Oracle.MaxTokens <= 0:
		return fmt.Errorf("oracle.max_tokens must be positive, got %d", c.Oracle.MaxTokens)
	case c.Oracle.Temperature < 0 || c.Oracle.Temperature > 2:
		return fmt.Errorf("oracle.temperature must be in [0, 2], got %g", c.Oracle.Temperature)
	case c.Oracle.Timeout <= 0:
		return fmt.Errorf("oracle.timeout must be positive, got %s", c.Oracle.Timeout)
	case c.Search.Limit <= 0:
		return fmt.Errorf("search.limit must be positive, got %d", c.Search.Limit)
	case c.Insight.SlowThreshold <= 0:
		return fmt.Errorf("insight.slow_threshold must be positive, got %s", c.Insight.SlowThreshold)
	}
	return nil
}

// Provider builds the configured oracle provider.
func (c Config) Provider() oracle.Provider {
	o := c.Oracle
	if o.Provider == ProviderAnthropic {
		return oracle.NewAnthropic(oracle.AnthropicConfig{
			APIKey:      o.APIKey,
			BaseURL:     o.BaseURL,
			Model:       o.Model,
			MaxTokens:   o.MaxTokens,
			Temperature: o.Temperature,
		})
	}
	return oracle.NewOpenAI(oracle.OpenAIConfig{
		APIKey:      o.APIKey,
		BaseURL:     o.BaseURL,
		Model:       o.Model,
		MaxTokens:   o.MaxTokens,
		Temperature: o.Temperature,
	})
}
