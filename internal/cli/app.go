package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/assetq/internal/config"
	"github.com/roach88/assetq/internal/engine"
	"github.com/roach88/assetq/internal/insight"
	"github.com/roach88/assetq/internal/oracle"
	"github.com/roach88/assetq/internal/store"
)

// newFormatter builds the formatter for cmd's output streams.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// newLogger returns a text logger on w, at debug level when verbose.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the configuration and applies the global flag
// overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// errMissingKey is returned when the oracle has no credentials.
var errMissingKey = errors.New("API key is not set")

// app is the pipeline wired from configuration.
type app struct {
	cfg   config.Config
	store *store.Store
	svc   *engine.Service
}

func (a *app) Close() error {
	return a.store.Close()
}

// openApp checks that the database exists and, when requireKey is set,
// that the oracle has credentials, then wires the pipeline. A non-nil orc
// replaces the configured provider.
func openApp(cfg config.Config, log *slog.Logger, requireKey bool, orc oracle.Oracle) (*app, error) {
	if _, err := os.Stat(cfg.Database.Path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found: %s (run 'assetq ingest' first)", cfg.Database.Path)
		}
		return nil, err
	}
	if requireKey && cfg.Oracle.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", cfg.KeyEnv(), errMissingKey)
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	rules, err := loadRules(cfg.Insight.RulesFile)
	if err != nil {
		st.Close()
		return nil, err
	}

	provider := cfg.Provider()
	if orc == nil {
		orc = oracle.NewAdapter(provider, cfg.Oracle.Timeout, log)
	}
	synth := insight.New(st, rules,
		insight.WithLogger(log),
		insight.WithSlowThreshold(cfg.Insight.SlowThreshold))

	svc := engine.New(st, orc, synth,
		engine.WithLogger(log),
		engine.WithSearchLimit(cfg.Search.Limit),
		engine.WithProviderInfo(engine.ProviderInfo{
			Name:      provider.Name(),
			Model:     provider.Model(),
			Connected: cfg.Oracle.APIKey != "",
		}),
	)
	log.Debug("pipeline ready",
		"db", cfg.Database.Path,
		"provider", provider.Name(),
		"model", provider.Model(),
		"rules", rulesSource(cfg.Insight.RulesFile))
	return &app{cfg: cfg, store: st, svc: svc}, nil
}

// loadRules returns the rule table at path, or the built-in one when path
// is empty.
func loadRules(path string) (*insight.Rules, error) {
	if path == "" {
		return insight.DefaultRules()
	}
	return insight.LoadRulesFile(path)
}

func rulesSource(path string) string {
	if path == "" {
		return "built-in"
	}
	return path
}
