package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/assetq/internal/ingest"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	Devices    string
	Provisions string
	Portfolio  string
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Build the database from CSV exports",
		Long: `Load the device, provisioning and (optionally) application
portfolio CSV exports into a fresh SQLite database.

Any existing database at the target path is replaced. Column headers
are sanitised into SQL identifiers; renamed headers are reported.

Example:
  assetq ingest --devices devices.csv --provisions provisions.csv \
      --portfolio app_portfolio.csv --db ./assets.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Devices, "devices", "", "device inventory CSV (required)")
	cmd.Flags().StringVar(&opts.Provisions, "provisions", "", "user provisioning CSV (required)")
	cmd.Flags().StringVar(&opts.Portfolio, "portfolio", "", "application portfolio CSV")
	_ = cmd.MarkFlagRequired("devices")
	_ = cmd.MarkFlagRequired("provisions")

	return cmd
}

func runIngest(opts *IngestOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	var logOut io.Writer = io.Discard
	if opts.Verbose {
		logOut = formatter.GetErrWriter()
	}
	log := newLogger(opts.RootOptions, logOut)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	for _, p := range []string{opts.Devices, opts.Provisions, opts.Portfolio} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeIngest, "export not readable", err)
		}
	}

	report, err := ingest.Load(ingest.Options{
		DevicesPath:    opts.Devices,
		ProvisionsPath: opts.Provisions,
		PortfolioPath:  opts.Portfolio,
		DBPath:         cfg.Database.Path,
	}, log)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeIngest, "ingestion failed", err)
	}

	return formatter.Success(report, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Loaded %s\n", report.Path)
		for _, t := range report.Tables {
			fmt.Fprintf(w, "  %-14s %6d rows  %3d columns\n", t.Name, t.Rows, t.Columns)
			if opts.Verbose {
				for _, r := range t.Renamed {
					fmt.Fprintf(w, "    %q -> %s\n", r.From, r.To)
				}
			}
		}
		for _, v := range report.Views {
			fmt.Fprintf(w, "  view %s\n", v)
		}
		for _, warn := range report.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", warn)
		}
	})
}
