package ingest

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/roach88/assetq/internal/schema"
)

// TableReport summarises one loaded table.
type TableReport struct {
	Name    string   `json:"name"`
	Rows    int      `json:"rows"`
	Columns int      `json:"columns"`
	Renamed []Rename `json:"renamed,omitempty"`
}

// Report summarises an ingestion run.
type Report struct {
	Path     string        `json:"path"`
	Tables   []TableReport `json:"tables"`
	Views    []string      `json:"views"`
	Warnings []string      `json:"warnings,omitempty"`
}

// Write replaces the database at path with one table per frame, then adds
// the convenience views. Every column is TEXT.
//
// Loading is all-or-nothing: tables are created and filled inside a single
// immediate transaction. View creation is best effort; a view whose source
// columns cannot be resolved is skipped with a warning.
func Write(path string, frames []*Frame, log *slog.Logger) (report *Report, err error) {
	if log == nil {
		log = slog.Default()
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no tables to write")
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove existing database: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}

	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate, sqlite.OpenReadWrite)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close sqlite: %w", closeErr)
		}
	}()

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA cache_size = -64000",
	} {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	report = &Report{Path: path, Views: []string{}}
	if err := writeTables(conn, frames, report, log); err != nil {
		return nil, err
	}

	columns := make(map[string][]string, len(frames))
	for _, f := range frames {
		columns[f.Table] = f.Columns
	}
	writeViews(conn, columns, report, log)

	if err := sqlitex.ExecuteTransient(conn, "ANALYZE", nil); err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	// Leave a single self-contained file for read-only consumers.
	if err := sqlitex.ExecuteTransient(conn, "PRAGMA journal_mode = DELETE", nil); err != nil {
		return nil, fmt.Errorf("reset journal mode: %w", err)
	}
	return report, nil
}

func writeTables(conn *sqlite.Conn, frames []*Frame, report *Report, log *slog.Logger) (err error) {
	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer endFn(&err)

	for _, f := range frames {
		if err := createTable(conn, f); err != nil {
			return err
		}
		if err := insertRows(conn, f); err != nil {
			return err
		}
		tr := TableReport{
			Name:    f.Table,
			Rows:    len(f.Rows),
			Columns: len(f.Columns),
			Renamed: f.Renames(),
		}
		report.Tables = append(report.Tables, tr)
		log.Info("table loaded", "table", f.Table, "rows", tr.Rows, "columns", tr.Columns, "renamed", len(tr.Renamed))
		for _, r := range tr.Renamed {
			log.Debug("column renamed", "table", f.Table, "from", r.From, "to", r.To)
		}
	}
	return nil
}

func createTable(conn *sqlite.Conn, f *Frame) error {
	defs := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		defs[i] = schema.QuoteIdent(c) + " TEXT"
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", schema.QuoteIdent(f.Table), strings.Join(defs, ", "))
	if err := sqlitex.ExecuteTransient(conn, ddl, nil); err != nil {
		return fmt.Errorf("create table %s: %w", f.Table, err)
	}
	return nil
}

func insertRows(conn *sqlite.Conn, f *Frame) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(f.Columns)), ", ")
	stmt, err := conn.Prepare(fmt.Sprintf("INSERT INTO %s VALUES (%s)", schema.QuoteIdent(f.Table), placeholders))
	if err != nil {
		return fmt.Errorf("prepare insert %s: %w", f.Table, err)
	}
	defer func() { _ = stmt.Finalize() }()

	for n, row := range f.Rows {
		for i, v := range row {
			stmt.BindText(i+1, v)
		}
		if _, err := stmt.Step(); err != nil {
			return fmt.Errorf("insert %s row %d: %w", f.Table, n+1, err)
		}
		if err := stmt.Reset(); err != nil {
			return fmt.Errorf("reset insert %s row %d: %w", f.Table, n+1, err)
		}
	}
	return nil
}

// viewDef describes a convenience view: its output columns (alias, role),
// and a WHERE clause template over resolved role columns.
type viewDef struct {
	name   string
	table  string
	output []viewColumn
	where  func(col func(schema.Role) string) string
}

type viewColumn struct {
	alias string
	role  schema.Role
}

var views = []viewDef{
	{
		name:  "active_devices_with_users",
		table: schema.Devices,
		output: []viewColumn{
			{"Asset_Number", schema.AssetNumber},
			{"Device_Type", schema.DeviceType},
			{"Manufacturer", schema.Manufacturer},
			{"Model_Name", schema.ModelName},
			{"Device_Status", schema.DeviceStatus},
			{"Assigned_Users_Email", schema.AssignedEmail},
			{"City", schema.City},
			{"Region", schema.Region},
			{"Additional_Information", schema.AdditionalInfo},
		},
		where: func(col func(schema.Role) string) string {
			email := col(schema.AssignedEmail)
			return fmt.Sprintf("%s = 'In-use' AND %s IS NOT NULL AND %s != ''", col(schema.DeviceStatus), email, email)
		},
	},
	{
		name:  "user_access_summary",
		table: schema.Provisions,
		output: []viewColumn{
			{"User_ID", schema.UserID},
			{"First_Name", schema.FirstName},
			{"Last_Name", schema.LastName},
			{"Email", schema.Email},
			{"Status", schema.Status},
			{"Role", schema.UserRole},
			{"Work_Location_Code", schema.WorkLocation},
		},
		where: func(col func(schema.Role) string) string {
			return fmt.Sprintf("%s = 'Active'", col(schema.Status))
		},
	},
}

func writeViews(conn *sqlite.Conn, columns map[string][]string, report *Report, log *slog.Logger) {
	roles := schema.Resolve(columns)

	for _, v := range views {
		if !roles.Has(v.table) {
			continue
		}
		ddl, missing := viewDDL(v, roles, columns[v.table])
		if len(missing) > 0 {
			msg := fmt.Sprintf("skipped view %s: %s has no columns for %s", v.name, v.table, strings.Join(missing, ", "))
			report.Warnings = append(report.Warnings, msg)
			log.Warn("view skipped", "view", v.name, "missing", missing)
			continue
		}
		if err := sqlitex.ExecuteTransient(conn, ddl, nil); err != nil {
			msg := fmt.Sprintf("create view %s: %v", v.name, err)
			report.Warnings = append(report.Warnings, msg)
			log.Warn("view creation failed", "view", v.name, "error", err)
			continue
		}
		report.Views = append(report.Views, v.name)
		log.Info("view created", "view", v.name)
	}
}

// viewDDL renders the CREATE VIEW statement, or the roles whose resolved
// columns do not exist in the table.
func viewDDL(v viewDef, roles schema.Roles, present []string) (string, []string) {
	have := make(map[string]bool, len(present))
	for _, c := range present {
		have[c] = true
	}

	var missing []string
	col := func(role schema.Role) string {
		c := roles.MustCol(v.table, role)
		if !have[c] {
			missing = append(missing, string(role))
		}
		return schema.QuoteIdent(c)
	}

	selects := make([]string, len(v.output))
	for i, oc := range v.output {
		selects[i] = fmt.Sprintf("%s AS %s", col(oc.role), oc.alias)
	}
	where := v.where(col)

	ddl := fmt.Sprintf("CREATE VIEW IF NOT EXISTS %s AS SELECT %s FROM %s WHERE %s",
		v.name, strings.Join(selects, ", "), schema.QuoteIdent(v.table), where)
	return ddl, dedupe(missing)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
