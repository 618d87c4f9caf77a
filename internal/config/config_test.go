package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/assetq/internal/oracle"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ProviderOpenAI, cfg.Oracle.Provider)
	assert.Equal(t, 30*time.Second, cfg.Oracle.Timeout)
	assert.Equal(t, 300, cfg.Oracle.MaxTokens)
	assert.Equal(t, 10, cfg.Search.Limit)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "assetq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /data/assets.db
server:
  addr: ":9000"
oracle:
  provider: anthropic
  timeout: 45s
search:
  limit: 25
`), 0o644))

	t.Setenv(EnvAddr, ":7000")
	t.Setenv(EnvAnthropicKey, "sk-ant")
	t.Setenv(EnvOpenAIKey, "sk-openai")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/assets.db", cfg.Database.Path)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, ProviderAnthropic, cfg.Oracle.Provider)
	assert.Equal(t, 45*time.Second, cfg.Oracle.Timeout)
	assert.Equal(t, 25, cfg.Search.Limit)
	assert.Equal(t, "sk-ant", cfg.Oracle.APIKey)
	assert.Equal(t, EnvAnthropicKey, cfg.KeyEnv())
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout, "unset fields keep defaults")
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ASSETQ_DB=from-dotenv.db\n"), 0o644))
	t.Setenv(EnvDB, "")
	require.NoError(t, os.Unsetenv(EnvDB))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv.db", cfg.Database.Path)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("oracle:\n  provdier: openai\n"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "provdier")

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	cfg, err := Load(empty)
	require.NoError(t, err)
	assert.Equal(t, Default().Server, cfg.Server)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.applyEnv(lookupFrom(map[string]string{
		EnvProvider:      "OpenAI",
		EnvModel:         "gpt-4o-mini",
		EnvOracleTimeout: "12",
		EnvOpenAIKey:     "sk-1",
		EnvAnthropicKey:  "sk-2",
		EnvOracleBaseURL: "http://localhost:1234/v1",
	})))
	assert.Equal(t, ProviderOpenAI, cfg.Oracle.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Oracle.Model)
	assert.Equal(t, 12*time.Second, cfg.Oracle.Timeout)
	assert.Equal(t, "sk-1", cfg.Oracle.APIKey)
	assert.Equal(t, "http://localhost:1234/v1", cfg.Oracle.BaseURL)

	cfg = Default()
	cfg.Oracle.APIKey = "from-file"
	require.NoError(t, cfg.applyEnv(lookupFrom(map[string]string{EnvOpenAIKey: "sk-1"})))
	assert.Equal(t, "from-file", cfg.Oracle.APIKey)

	cfg = Default()
	assert.Error(t, cfg.applyEnv(lookupFrom(map[string]string{EnvOracleTimeout: "soon"})))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"db path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"provider", func(c *Config) { c.Oracle.Provider = "gemini" }, "oracle.provider"},
		{"max tokens", func(c *Config) { c.Oracle.MaxTokens = 0 }, "max_tokens"},
		{"temperature", func(c *Config) { c.Oracle.Temperature = 3 }, "temperature"},
		{"timeout", func(c *Config) { c.Oracle.Timeout = 0 }, "oracle.timeout"},
		{"limit", func(c *Config) { c.Search.Limit = -1 }, "search.limit"},
		{"slow", func(c *Config) { c.Insight.SlowThreshold = 0 }, "slow_threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestProvider(t *testing.T) {
	cfg := Default()
	p := cfg.Provider()
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, oracle.DefaultOpenAIModel, p.Model())

	cfg.Oracle.Provider = ProviderAnthropic
	cfg.Oracle.Model = "claude-test"
	p = cfg.Provider()
	assert.Equal(t, "anthropic", p.Name())
	assert.Equal(t, "claude-test", p.Model())
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
