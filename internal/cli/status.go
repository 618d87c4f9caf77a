package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/assetq/internal/engine"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the database and oracle configuration",
		Long: `Report whether the database is reachable and the oracle has
credentials, the same fields GET /api/status returns.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}
}

func runStatus(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	cfg, err := loadConfig(opts)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	a, err := openApp(cfg, newLogger(opts, io.Discard), false, nil)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "startup check failed", err)
	}
	defer a.Close()

	st := a.svc.Status(cmd.Context())
	if err := formatter.Success(st, func(w io.Writer) { writeStatusText(w, st, cfg.KeyEnv()) }); err != nil {
		return err
	}
	if !st.DatabaseConnected {
		return NewExitError(ExitFailure, "database not reachable")
	}
	return nil
}

func writeStatusText(w io.Writer, st engine.Status, keyEnv string) {
	mark := func(ok bool) string {
		if ok {
			return "✓"
		}
		return "✗"
	}
	fmt.Fprintf(w, "%s database connected\n", mark(st.DatabaseConnected))
	fmt.Fprintf(w, "%s %s configured (%s %s)\n", mark(st.OpenAIConnected), keyEnv, st.Provider, st.Model)
	fmt.Fprintf(w, "  cache size: %d\n", st.CacheSize)
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "schema",
		Short:         "Print the schema description given to the oracle",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
			}
			a, err := openApp(cfg, newLogger(rootOpts, io.Discard), false, nil)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeDatabase, "startup check failed", err)
			}
			defer a.Close()

			schema := a.svc.Schema()
			return formatter.Success(map[string]string{"schema": schema}, func(w io.Writer) {
				fmt.Fprint(w, schema)
			})
		},
	}
}
