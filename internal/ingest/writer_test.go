package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const devicesCSV = `Asset Number,Device Type,Manufacturer,Model Name,Device Status,Assigned User's Email,City,Region,Additional Information
A-1,LAPTOP,LENOVO,ThinkPad,In-use,a@example.com,Bangalore,INDIA,
A-2,LAPTOP,APPLE,MacBook,Available,,Tokyo,JAPAN,spare
A-3,PHONE,APPLE,iPhone,In-use,b@example.com,Tokyo,JAPAN,
`

const provisionsCSV = `User ID,First Name,Last Name,Email,Role,Status,Work Location Code,GitHub
U1,Ann,Lee,a@example.com,Engineer,Active,BLR,Activated
U2,Ben,Ito,b@example.com,Manager,Inactive,TYO,
`

func mustFrame(t *testing.T, table, data string) *Frame {
	t.Helper()
	f, err := ReadCSV(table, strings.NewReader(data))
	require.NoError(t, err)
	return f
}

func queryInt(t *testing.T, conn *sqlite.Conn, query string) int64 {
	t.Helper()
	var n int64
	err := sqlitex.ExecuteTransient(conn, query, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			n = stmt.ColumnInt64(0)
			return nil
		},
	})
	require.NoError(t, err)
	return n
}

func openRead(t *testing.T, path string) *sqlite.Conn {
	t.Helper()
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadOnly)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWrite_TablesAndViews(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	frames := []*Frame{
		mustFrame(t, "devices", devicesCSV),
		mustFrame(t, "provisions", provisionsCSV),
	}

	report, err := Write(path, frames, nil)
	require.NoError(t, err)

	require.Len(t, report.Tables, 2)
	assert.Equal(t, "devices", report.Tables[0].Name)
	assert.Equal(t, 3, report.Tables[0].Rows)
	assert.Equal(t, 9, report.Tables[0].Columns)
	assert.Contains(t, report.Tables[0].Renamed, Rename{From: "Assigned User's Email", To: "Assigned_User_s_Email"})
	assert.Equal(t, []string{"active_devices_with_users", "user_access_summary"}, report.Views)
	assert.Empty(t, report.Warnings)

	conn := openRead(t, path)
	assert.Equal(t, int64(3), queryInt(t, conn, "SELECT COUNT(*) FROM devices"))
	assert.Equal(t, int64(2), queryInt(t, conn, "SELECT COUNT(*) FROM active_devices_with_users"))
	assert.Equal(t, int64(1), queryInt(t, conn, "SELECT COUNT(*) FROM user_access_summary"))
	// Empty cells are stored as empty text, not NULL.
	assert.Equal(t, int64(0), queryInt(t, conn, "SELECT COUNT(*) FROM devices WHERE Additional_Information IS NULL"))
}

func TestInsertRows_ReusesStatementPerRow(t *testing.T) {
	conn, err := sqlite.OpenConn(filepath.Join(t.TempDir(), "rows.db"))
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, sqlitex.ExecuteTransient(conn, `CREATE TABLE t ("k" TEXT UNIQUE, "v" TEXT)`, nil))

	f := &Frame{Table: "t", Columns: []string{"k", "v"}}
	for i := 0; i < 50; i++ {
		f.Rows = append(f.Rows, []string{"k" + strings.Repeat("x", i), "v"})
	}
	require.NoError(t, insertRows(conn, f))
	assert.Equal(t, int64(50), queryInt(t, conn, `SELECT COUNT(*) FROM t`))
	assert.Equal(t, int64(50), queryInt(t, conn, `SELECT COUNT(DISTINCT k) FROM t`))

	dup := &Frame{Table: "t", Columns: []string{"k", "v"}, Rows: [][]string{{"new", "v"}, {"k", "v"}}}
	err = insertRows(conn, dup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert t row 2")
}

func TestWrite_ReplacesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	_, err := Write(path, []*Frame{mustFrame(t, "devices", devicesCSV)}, nil)
	require.NoError(t, err)

	_, err = Write(path, []*Frame{mustFrame(t, "devices", "Asset Number\nZ-9\n")}, nil)
	require.NoError(t, err)

	conn := openRead(t, path)
	assert.Equal(t, int64(1), queryInt(t, conn, "SELECT COUNT(*) FROM devices"))
}

func TestWrite_SkipsViewWithMissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	frames := []*Frame{
		mustFrame(t, "devices", "Asset Number,City\nA-1,Tokyo\n"),
		mustFrame(t, "provisions", provisionsCSV),
	}

	report, err := Write(path, frames, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"user_access_summary"}, report.Views)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "active_devices_with_users")
	assert.Contains(t, report.Warnings[0], "device_status")
}

func TestWrite_NoFrames(t *testing.T) {
	_, err := Write(filepath.Join(t.TempDir(), "x.db"), nil, nil)
	require.Error(t, err)
}

func TestLoad_FromFiles(t *testing.T) {
	dir := t.TempDir()
	dev := filepath.Join(dir, "devices.csv")
	prov := filepath.Join(dir, "provisions.csv")
	require.NoError(t, os.WriteFile(dev, []byte(devicesCSV), 0o644))
	require.NoError(t, os.WriteFile(prov, []byte(provisionsCSV), 0o644))

	report, err := Load(Options{DevicesPath: dev, ProvisionsPath: prov, DBPath: filepath.Join(dir, "out.db")}, nil)
	require.NoError(t, err)
	assert.Len(t, report.Tables, 2)
}

func TestOptions_Validate(t *testing.T) {
	assert.Error(t, Options{}.Validate())
	assert.Error(t, Options{DevicesPath: "d"}.Validate())
	assert.Error(t, Options{DevicesPath: "d", ProvisionsPath: "p"}.Validate())
	assert.NoError(t, Options{DevicesPath: "d", ProvisionsPath: "p", DBPath: "x"}.Validate())
}
