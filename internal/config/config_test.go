package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.HTTPPort)
	assert.Equal(t, "data/squire.db", cfg.DBPath)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.CORSOrigins)
	assert.Equal(t, 3, cfg.SAM.PollIntervalSec)
	assert.Equal(t, 180, cfg.SAM.MaxPolls)
	assert.Equal(t, "http://localhost:8080", cfg.SAM.GatewayURL)
	assert.False(t, cfg.SolaceConfigured())
	assert.Empty(t, cfg.GroupMe.BotID)
	assert.Equal(t, "https://api.groupme.com/v3/bots/post", cfg.GroupMe.URL)
	assert.Empty(t, cfg.Warnings)
}

func TestHTTPPortDefaultFormatting(t *testing.T) {
	isolate(t)
	t.Setenv("HTTP_PORT", "9000")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTPPort)
}

func TestDatabaseURLStripsScheme(t *testing.T) {
	isolate(t)
	t.Setenv("DATABASE_URL", "sqlite:///backend/data/squire.db")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "backend/data/squire.db", cfg.DBPath)
}

func TestQueueSizeRespectsWorkers(t *testing.T) {
	isolate(t)
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("JOB_QUEUE_SIZE", "4")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.WorkerCount)
	assert.GreaterOrEqual(t, cfg.JobQueueSize, cfg.WorkerCount)
	assert.NotEmpty(t, cfg.Warnings)
}

func TestInvalidIntStrict(t *testing.T) {
	isolate(t)
	t.Setenv("SAM_MAX_POLLS", "lots")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 180, cfg.SAM.MaxPolls)
	assert.Len(t, cfg.Warnings, 1)

	t.Setenv("STRICT_CONFIG", "true")
	_, err = Load()
	assert.Error(t, err)
}

func TestYAMLFileThenEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "squire.yaml")
	body := `
http_port: "7000"
google_docs_urls:
  - https://docs.google.com/document/d/abc/edit
github:
  owner: facebook
  repo: react
sam:
  gateway_url: http://sam.internal:8080/
  max_polls: 10
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	isolate(t)
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("GITHUB_REPO_NAME", "react-native")
	t.Setenv("GOOGLE_DOCS_URLS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.HTTPPort)
	assert.Equal(t, "facebook/react-native", cfg.GitHubRepo())
	assert.Equal(t, "http://sam.internal:8080", cfg.SAM.GatewayURL)
	assert.Equal(t, 10, cfg.SAM.MaxPolls)
	assert.Equal(t, []string{"https://docs.google.com/document/d/abc/edit"}, cfg.GoogleDocsURLs)
}

func TestSplitListDropsBlanks(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b ,"))
	assert.Nil(t, splitList(""))
}

// isolate blanks every variable Load reads so the host environment cannot leak in.
func isolate(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENV", "HTTP_PORT", "PORT", "DB_PATH", "DATABASE_URL", "DATA_DIR", "CORS_ORIGINS",
		"SOLACE_HOST", "SOLACE_USERNAME", "SOLACE_PASSWORD", "GITHUB_REPO_OWNER", "GITHUB_REPO_NAME",
		"GITHUB_API_URL", "GOOGLE_DOCS_URLS", "SAM_GATEWAY_URL", "SAM_POLL_INTERVAL_SEC", "SAM_MAX_POLLS",
		"SAM_REQUEST_TIMEOUT_SEC", "WORKER_COUNT", "JOB_QUEUE_SIZE", "JOB_TIMEOUT_SEC", "BROKER_POLL_MS",
		"STRICT_CONFIG", "GROUPME_BOT_ID", "GROUPME_URL",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
}
