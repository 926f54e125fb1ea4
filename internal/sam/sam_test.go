package sam

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"squire/internal/config"
)

func testClient(srv *httptest.Server, maxPolls int) *Client {
	cfg := config.SAMConfig{GatewayURL: srv.URL, PollIntervalSec: 1, MaxPolls: maxPolls, RequestTimeout: 5}
	return New(cfg, srv.Client(), nil).WithPollInterval(time.Millisecond)
}

func TestTriggerPollsUntilDone(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v2/tasks", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, OrchestratorAgent, r.FormValue("agent_name"))
		assert.Equal(t, WorkflowPrompt, r.FormValue("prompt"))
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"taskId":"task-1"}`))
	})
	mux.HandleFunc("GET /api/v2/tasks/task-1", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < 3 {
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"status":{"state":"working"}}`))
			return
		}
		w.Write([]byte(`{"status":{"state":"completed","message":{"parts":[
			{"kind":"text","text":"Report ready."},{"kind":"data","text":"ignored"},{"kind":"text","text":"Done"}]}}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res, err := testClient(srv, 10).Trigger(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "completed", res.State)
	assert.Equal(t, "task-1", res.TaskID)
	assert.Equal(t, "Report ready. Done", res.Result)
	assert.Contains(t, string(res.RawResponse), `"completed"`)
	assert.EqualValues(t, 3, polls.Load())
}

func TestParseTaskFallbacks(t *testing.T) {
	res, err := parseTask("t", []byte(`{"status":{"state":"failed"},"history":[
		{"parts":[{"kind":"text","text":"first"}]},{"parts":[{"kind":"text","text":"last"}]}]}`))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "last", res.Result)

	res, err = parseTask("t", []byte(`{"status":{}}`))
	require.NoError(t, err)
	assert.Equal(t, "unknown", res.State)
	assert.Equal(t, "Task unknown. See raw_response for details.", res.Result)
}

func TestSubmitErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{"missing task id", http.StatusAccepted, `{}`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrNoTaskID)
		}},
		{"upstream status", http.StatusBadGateway, `agent mesh down`, func(t *testing.T, err error) {
			var ue *UpstreamError
			require.True(t, errors.As(err, &ue))
			assert.Equal(t, http.StatusBadGateway, ue.StatusCode)
			assert.Equal(t, "agent mesh down", ue.Body)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			_, err := testClient(srv, 3).Trigger(context.Background())
			tt.check(t, err)
		})
	}
}

func TestPollExhaustion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		if r.Method == http.MethodPost {
			w.Write([]byte(`{"taskId":"slow"}`))
		}
	}))
	defer srv.Close()

	_, err := testClient(srv, 2).Trigger(context.Background())
	require.ErrorIs(t, err, ErrPollTimeout)
	var pe *PollTimeoutError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "slow", pe.TaskID)
}

func TestPollUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"taskId":"gone"}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := testClient(srv, 2).Trigger(context.Background())
	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusNotFound, ue.StatusCode)
}

func TestGatewayUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(config.SAMConfig{GatewayURL: url, MaxPolls: 1, RequestTimeout: 2}, nil, nil)
	_, err := c.Trigger(context.Background())
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestRequestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := srv.Client()
	client.Timeout = 50 * time.Millisecond
	c := New(config.SAMConfig{GatewayURL: srv.URL, MaxPolls: 1}, client, nil)
	_, err := c.Trigger(context.Background())
	assert.ErrorIs(t, err, ErrRequestTimeout)
}
