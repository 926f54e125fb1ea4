package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"squire/internal/config"
	"squire/internal/workflow"
)

func fakeGitHub(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/squire/pulls", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"number": 7, "title": "Add cache", "merged_at": "2025-02-01T00:00:00Z"}]`))
	})
	mux.HandleFunc("GET /repos/acme/squire/pulls/7", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"number": 7, "title": "Add cache", "html_url": "https://github.com/acme/squire/pull/7",
			"user": {"login": "octo"}, "merged_at": "2025-02-01T00:00:00Z", "additions": 40, "deletions": 2}`))
	})
	mux.HandleFunc("GET /repos/acme/squire/pulls/7/files", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"filename": "cache/cache.go", "status": "added", "additions": 40, "deletions": 2, "changes": 42}]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, githubURL string) config.Config {
	dir := t.TempDir()
	return config.Config{
		Env:           "test",
		HTTPPort:      "127.0.0.1:0",
		DBPath:        filepath.Join(dir, "db", "squire.db"),
		DataDir:       filepath.Join(dir, "queue"),
		CORSOrigins:   []string{"http://localhost:5173"},
		GitHub:        config.GitHubConfig{Owner: "acme", Repo: "squire", APIURL: githubURL},
		SAM:           config.SAMConfig{GatewayURL: "http://127.0.0.1:1", PollIntervalSec: 1, MaxPolls: 1, RequestTimeout: 1},
		WorkerCount:   4,
		JobQueueSize:  32,
		JobTimeoutSec: 10,
		BrokerPollMS:  50,
	}
}

func TestServeRunsWorkflowEndToEnd(t *testing.T) {
	gh := fakeGitHub(t)
	a, err := New(testConfig(t, gh.URL), zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, Serve) }()

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	addr, err := a.Addr(waitCtx)
	require.NoError(t, err)
	base := "http://" + addr

	resp, err := http.Get(base + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(base+"/api/analysis/start", "application/json", strings.NewReader(`{"pr_count": 1}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stored workflow.StoredReport
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/api/analysis/report")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false
		}
		var env struct {
			Report json.RawMessage `json:"report"`
			Status string          `json:"status"`
		}
		if json.NewDecoder(resp.Body).Decode(&env) != nil {
			return false
		}
		return json.Unmarshal(env.Report, &stored) == nil
	}, 10*time.Second, 50*time.Millisecond)

	require.NotNil(t, stored.Report)
	assert.Equal(t, workflow.AgentManager, stored.Agent)
	assert.Equal(t, 1, stored.Report.PRInsights.TotalPRs)
	assert.Equal(t, 42, stored.Report.PRInsights.TotalAdditions+stored.Report.PRInsights.TotalDeletions)
	assert.Equal(t, workflow.StatusError, stored.MeetingAnalysis.Status)
	assert.Equal(t, "No Google Docs URLs provided", stored.MeetingAnalysis.Error)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunRejectsUnknownAgent(t *testing.T) {
	a, err := New(testConfig(t, "http://127.0.0.1:1"), zaptest.NewLogger(t))
	require.NoError(t, err)
	err = a.Run(context.Background(), RunOptions{Agents: []string{"nope"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown agent "nope"`)
}

func TestAgentSetNames(t *testing.T) {
	a, err := New(testConfig(t, "http://127.0.0.1:1"), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"join", "manager", "meeting", "notify", "pr", "team"}, a.Agents().Names())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, a.Run(ctx, RunOptions{}))
}

func TestBrokerMessagesReachEventBusInOrder(t *testing.T) {
	a, err := New(testConfig(t, "http://127.0.0.1:1"), zaptest.NewLogger(t))
	require.NoError(t, err)
	events, release := a.events.Subscribe(len(workflow.AllTopics))
	defer release()

	for _, topic := range workflow.AllTopics {
		require.NoError(t, a.Broker().Publish(context.Background(), topic, map[string]string{"agent": "pr", "status": workflow.StatusCompleted}))
	}
	for _, topic := range workflow.AllTopics {
		select {
		case ev := <-events:
			assert.Equal(t, topic, ev.Topic)
			assert.Equal(t, "pr", ev.Agent)
			assert.Equal(t, workflow.StatusCompleted, ev.Status)
		case <-time.After(time.Second):
			t.Fatalf("no event for %s", topic)
		}
	}
	assert.Zero(t, a.metrics.Snapshot().MessagesDelivered, "observing costs no worker jobs")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, a.Run(ctx, RunOptions{}))
}
