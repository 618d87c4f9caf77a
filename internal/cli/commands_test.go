package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/assetq/internal/engine"
	"github.com/roach88/assetq/internal/testutil"
)

const lenovoSQL = "SELECT Asset_Number, Manufacturer FROM devices WHERE UPPER(Manufacturer) = 'LENOVO' AND Device_Status = 'In-use' ORDER BY Asset_Number"

// writeExports writes the fixture CSVs into a temp directory.
func writeExports(t *testing.T) (devices, provisions, portfolio string) {
	t.Helper()
	dir := t.TempDir()
	devices = filepath.Join(dir, "devices.csv")
	provisions = filepath.Join(dir, "provisions.csv")
	portfolio = filepath.Join(dir, "app_portfolio.csv")
	require.NoError(t, os.WriteFile(devices, []byte(testutil.DevicesCSV), 0o644))
	require.NoError(t, os.WriteFile(provisions, []byte(testutil.ProvisionsCSV), 0o644))
	require.NoError(t, os.WriteFile(portfolio, []byte(testutil.PortfolioCSV), 0o644))
	return devices, provisions, portfolio
}

func execRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// ingestedDB runs the ingest command and returns the database path.
func ingestedDB(t *testing.T) string {
	t.Helper()
	devices, provisions, portfolio := writeExports(t)
	db := filepath.Join(t.TempDir(), "assetq.db")
	out, err := execRoot(t, "--db", db, "ingest",
		"--devices", devices, "--provisions", provisions, "--portfolio", portfolio)
	require.NoError(t, err, out)
	return db
}

func TestIngestCommand(t *testing.T) {
	devices, provisions, portfolio := writeExports(t)
	db := filepath.Join(t.TempDir(), "assetq.db")

	out, err := execRoot(t, "--db", db, "ingest",
		"--devices", devices, "--provisions", provisions, "--portfolio", portfolio)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Loaded "+db)
	assert.Contains(t, out, "devices")
	assert.Contains(t, out, "app_portfolio")
	assert.FileExists(t, db)
}

func TestIngestCommand_JSON(t *testing.T) {
	devices, provisions, _ := writeExports(t)
	db := filepath.Join(t.TempDir(), "assetq.db")

	out, err := execRoot(t, "--db", db, "--format", "json", "ingest",
		"--devices", devices, "--provisions", provisions)
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Tables []struct {
				Name string `json:"name"`
				Rows int    `json:"rows"`
			} `json:"tables"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	rows := map[string]int{}
	for _, tb := range resp.Data.Tables {
		rows[tb.Name] = tb.Rows
	}
	assert.Equal(t, 5, rows["devices"])
	assert.Equal(t, 4, rows["provisions"])
}

func TestIngestCommand_Errors(t *testing.T) {
	devices, _, _ := writeExports(t)
	db := filepath.Join(t.TempDir(), "assetq.db")

	_, err := execRoot(t, "--db", db, "ingest", "--devices", devices)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provisions")

	out, err := execRoot(t, "--db", db, "ingest",
		"--devices", devices, "--provisions", filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestAskCommand_Keyword(t *testing.T) {
	db := ingestedDB(t)

	out, err := execRoot(t, "--db", db, "ask", "--type", "keyword", "bangalore")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Method: keyword_fallback")
	assert.Contains(t, out, "Status: success")
	assert.Contains(t, out, "Results: 3")
}

func TestAskCommand_KeywordJSON(t *testing.T) {
	db := ingestedDB(t)

	out, err := execRoot(t, "--db", db, "--format", "json", "ask", "-t", "keyword", "kohei")
	require.NoError(t, err, out)

	var resp struct {
		Status string         `json:"status"`
		Data   map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "keyword_fallback", resp.Data["method"])
	assert.EqualValues(t, 2, resp.Data["count"])
}

func TestAskCommand_ScriptedOracle(t *testing.T) {
	t.Setenv("ASSETQ_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "test-key")
	db := ingestedDB(t)

	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetContext(context.Background())

	opts := &AskOptions{
		RootOptions: &RootOptions{Format: "text", Database: db},
		Type:        engine.TypeCombined,
		Oracle:      testutil.NewScriptedOracle(map[string]string{"list lenovo devices": lenovoSQL}),
	}
	require.NoError(t, runAsk(opts, "list lenovo devices", cmd))

	out := buf.String()
	assert.Contains(t, out, "Method: combined_nl2sql_primary")
	assert.Contains(t, out, "SQL: "+lenovoSQL)
	assert.Contains(t, out, "Results: 2")
	assert.Contains(t, out, "A-001")
	assert.Contains(t, out, "A-005")
}

func TestAskCommand_MissingKey(t *testing.T) {
	t.Setenv("ASSETQ_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")
	db := ingestedDB(t)

	out, err := execRoot(t, "--db", db, "ask", "list lenovo devices")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "OPENAI_API_KEY")
}

func TestAskCommand_Validation(t *testing.T) {
	t.Setenv("ASSETQ_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "test-key")
	db := ingestedDB(t)

	out, err := execRoot(t, "--db", db, "ask", "-t", "keyword", "ab")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Question too short")

	out, err = execRoot(t, "--db", db, "ask", "-t", "fuzzy", "lenovo")
	require.Error(t, err)
	assert.Contains(t, out, "unknown search type")
}

func TestAskCommand_NoDatabase(t *testing.T) {
	out, err := execRoot(t, "--db", filepath.Join(t.TempDir(), "none.db"), "ask", "-t", "keyword", "lenovo")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "run 'assetq ingest' first")
}

func TestStatusCommand(t *testing.T) {
	t.Setenv("ASSETQ_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")
	db := ingestedDB(t)

	out, err := execRoot(t, "--db", db, "status")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ database connected")
	assert.Contains(t, out, "✗ OPENAI_API_KEY configured")

	out, err = execRoot(t, "--db", db, "--format", "json", "status")
	require.NoError(t, err)
	var resp struct {
		Data engine.Status `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.DatabaseConnected)
	assert.False(t, resp.Data.OpenAIConnected)
	assert.Equal(t, "openai", resp.Data.Provider)
}

func TestSchemaCommand(t *testing.T) {
	db := ingestedDB(t)

	out, err := execRoot(t, "--db", db, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "devices")
	assert.Contains(t, out, "Asset_Number")

	out, err = execRoot(t, "--db", db, "--format", "json", "schema")
	require.NoError(t, err)
	var resp struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Contains(t, resp.Data["schema"], "provisions")
}

func TestServeCommand_StartupCheck(t *testing.T) {
	out, err := execRoot(t, "--db", filepath.Join(t.TempDir(), "none.db"), "serve", "--addr", "127.0.0.1:0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "database not found")
}

func TestServeCommand_ShutsDownOnCancel(t *testing.T) {
	t.Setenv("ASSETQ_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "test-key")
	db := ingestedDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetContext(ctx)

	opts := &ServeOptions{
		RootOptions: &RootOptions{Format: "text", Database: db},
		Addr:        "127.0.0.1:0",
		Oracle:      testutil.NewScriptedOracle(nil),
	}
	done := make(chan error, 1)
	go func() { done <- runServe(opts, cmd) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
	assert.Contains(t, buf.String(), "Serving on 127.0.0.1:0")
}
