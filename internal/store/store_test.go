package store_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/assetq/internal/errs"
	"github.com/roach88/assetq/internal/schema"
	"github.com/roach88/assetq/internal/store"
	"github.com/roach88/assetq/internal/testutil"
)

func openFixture(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(testutil.FixtureDB(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := store.Open(filepath.Join(t.TempDir(), "absent.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database not found")
}

func TestOpen_DoesNotCreateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.db")
	_, _ = store.Open(path)
	assert.NoFileExists(t, path)
}

func TestOpen_PathWithURIMetacharacters(t *testing.T) {
	data, err := os.ReadFile(testutil.FixtureDB(t))
	require.NoError(t, err)

	for _, name := range []string{"exports?.db", "q#1.db", "100% done.db"} {
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, os.WriteFile(path, data, 0o644))

		s, err := store.Open(path)
		require.NoError(t, err, name)
		assert.True(t, s.Roles().Has(schema.Devices), name)
		n, err := s.Count(context.Background(), `SELECT COUNT(*) FROM devices`)
		require.NoError(t, err, name)
		assert.Equal(t, 5, n, name)
		require.NoError(t, s.Close())
	}
}

func TestTables_ListsIngestedTables(t *testing.T) {
	s := openFixture(t)

	tables, err := s.Tables(context.Background())
	require.NoError(t, err)

	var names []string
	for _, tbl := range tables {
		names = append(names, tbl.Name)
	}
	assert.Equal(t, []string{schema.Portfolio, schema.Devices, schema.Provisions}, names)

	for _, tbl := range tables {
		if tbl.Name != schema.Devices {
			continue
		}
		require.NotEmpty(t, tbl.Columns)
		assert.Equal(t, "Asset_Number", tbl.Columns[0].Name)
		assert.Equal(t, "TEXT", tbl.Columns[0].Type)
	}
}

func TestOpen_ResolvesRoles(t *testing.T) {
	s := openFixture(t)
	roles := s.Roles()

	assert.Equal(t, "Assigned_User_s_Email", roles.MustCol(schema.Devices, schema.AssignedEmail))
	assert.Equal(t, "Role_s", roles.MustCol(schema.Portfolio, schema.AppRoles))
	assert.Equal(t, []string{"Notion_-_Josys_inc", "Notion_-_Josys_public"}, roles.Matching(schema.Provisions, "notion"))
	assert.Contains(t, s.Describe(), "devices")
}

func TestExecute_ReturnsOrderedRecords(t *testing.T) {
	s := openFixture(t)

	records, err := s.Execute(context.Background(),
		`SELECT Asset_Number, Manufacturer FROM devices WHERE Manufacturer = ? ORDER BY Asset_Number`, "LENOVO")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, []string{"Asset_Number", "Manufacturer"}, records[0].Columns)
	assert.Equal(t, "A-001", records[0].Get("asset_number"))

	data, err := json.Marshal(records[0])
	require.NoError(t, err)
	assert.Equal(t, `{"Asset_Number":"A-001","Manufacturer":"LENOVO"}`, string(data))
}

func TestExecute_EmptyResultIsNonNil(t *testing.T) {
	s := openFixture(t)

	records, err := s.Execute(context.Background(), `SELECT * FROM devices WHERE Manufacturer = 'DELL'`)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestExecute_NullRendersEmpty(t *testing.T) {
	s := openFixture(t)

	records, err := s.Execute(context.Background(), `SELECT NULL AS missing, 42 AS answer`)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "", records[0].Get("missing"))
	assert.Equal(t, "42", records[0].Get("answer"))
}

func TestExecute_RejectsWrites(t *testing.T) {
	s := openFixture(t)
	ctx := context.Background()

	for _, q := range []string{
		`DELETE FROM devices`,
		`SELECT 1; DROP TABLE devices`,
		`WITH x AS (SELECT 1) INSERT INTO devices (Asset_Number) SELECT * FROM x`,
	} {
		_, err := s.Execute(ctx, q)
		require.Error(t, err, q)
		assert.True(t, errs.IsSQL(err), q)
	}

	n, err := s.Count(ctx, `SELECT COUNT(*) FROM devices`)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestExecute_SQLErrorClassified(t *testing.T) {
	s := openFixture(t)

	_, err := s.Execute(context.Background(), `SELECT nope FROM devices`)
	require.Error(t, err)
	assert.True(t, errs.IsSQL(err))
	assert.Contains(t, err.Error(), "no such column")
}

func TestExecute_CancelledContext(t *testing.T) {
	s := openFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Execute(ctx, `SELECT * FROM devices`)
	require.Error(t, err)
}

func TestCount(t *testing.T) {
	s := openFixture(t)
	ctx := context.Background()

	n, err := s.Count(ctx, `SELECT COUNT(DISTINCT Assigned_User_s_Email) FROM devices WHERE UPPER(Manufacturer) = 'LENOVO'`)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.Count(ctx, `SELECT COUNT(*) FROM devices WHERE 0 GROUP BY Manufacturer`)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRecord_UnmarshalKeepsOrder(t *testing.T) {
	var r store.Record
	require.NoError(t, json.Unmarshal([]byte(`{"b":"1","a":null,"c":3}`), &r))

	assert.Equal(t, []string{"b", "a", "c"}, r.Columns)
	assert.Equal(t, "", r.Get("a"))
	assert.Equal(t, "3", r.Get("C"))
}

func TestNewRecord_DuplicateColumns(t *testing.T) {
	r := store.NewRecord([]string{"Email", "Email", "Name"}, []string{"a", "b", "n"})
	assert.Equal(t, []string{"Email", "Name"}, r.Columns)
	assert.Equal(t, "b", r.Get("Email"))
}
