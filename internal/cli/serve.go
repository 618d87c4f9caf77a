package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/assetq/internal/oracle"
	"github.com/roach88/assetq/internal/server"
)

// DrainTimeout bounds how long serve waits for in-flight requests on
// shutdown.
const DrainTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string

	// Oracle replaces the configured provider (for testing).
	Oracle oracle.Oracle
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API over an ingested database.

The database must exist and the configured provider's API key must be
set (OPENAI_API_KEY or ANTHROPIC_API_KEY).

Example:
  assetq serve --db ./assets.db --addr :8080
  assetq serve --config ./assetq.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	log := newLogger(opts.RootOptions, os.Stderr)
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}

	a, err := openApp(cfg, log, true, opts.Oracle)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "startup check failed", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	// Use the command's context if set (tests), otherwise a fresh one.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s. Press Ctrl-C to stop.\n", cfg.Server.Addr)

	h := server.New(a.svc, log).Handler()
	if err := server.Serve(ctx, cfg.Server.Addr, h, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, DrainTimeout, log); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}

	log.Info("server stopped gracefully")
	return nil
}
