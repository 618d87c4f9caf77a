// Package ingest loads the tabular exports into the SQLite store.
//
// Each export becomes one table of TEXT columns named after its sanitised
// headers (see SanitizeColumn). The load replaces any existing database
// file, then adds two convenience views:
//
//	active_devices_with_users  in-use devices with an assigned email
//	user_access_summary        provisions rows with Status = 'Active'
//
// Ingestion is the only writer of the database; the query path opens it
// read-only.
package ingest

import (
	"fmt"
	"log/slog"

	"github.com/roach88/assetq/internal/schema"
)

// Options names the source exports and the destination database.
type Options struct {
	DevicesPath    string
	ProvisionsPath string
	PortfolioPath  string // optional
	DBPath         string
}

// Validate checks that the required paths are set.
func (o Options) Validate() error {
	switch {
	case o.DevicesPath == "":
		return fmt.Errorf("devices CSV path is required")
	case o.ProvisionsPath == "":
		return fmt.Errorf("provisions CSV path is required")
	case o.DBPath == "":
		return fmt.Errorf("database path is required")
	}
	return nil
}

// Load reads every configured export and writes them to opts.DBPath.
func Load(opts Options, log *slog.Logger) (*Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	sources := []struct{ table, path string }{
		{schema.Devices, opts.DevicesPath},
		{schema.Provisions, opts.ProvisionsPath},
	}
	if opts.PortfolioPath != "" {
		sources = append(sources, struct{ table, path string }{schema.Portfolio, opts.PortfolioPath})
	}

	frames := make([]*Frame, 0, len(sources))
	for _, src := range sources {
		log.Info("reading export", "table", src.table, "path", src.path)
		f, err := ReadCSVFile(src.table, src.path)
		if err != nil {
			return nil, err
		}
		log.Info("export read", "table", src.table, "rows", len(f.Rows), "columns", len(f.Columns))
		frames = append(frames, f)
	}

	return Write(opts.DBPath, frames, log)
}
