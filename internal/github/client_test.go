package github

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestMerged(t *testing.T) {
	var sawAuth, sawAgent string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/squire/pulls", func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization")
		sawAgent = r.Header.Get("User-Agent")
		assert.Equal(t, "closed", r.URL.Query().Get("state"))
		assert.Equal(t, "updated", r.URL.Query().Get("sort"))
		w.Write([]byte(`[
			{"number": 3, "title": "closed only", "merged_at": null},
			{"number": 2, "title": "older merge", "merged_at": "2025-01-01T00:00:00Z"},
			{"number": 5, "title": "newest merge", "merged_at": "2025-02-01T00:00:00Z"}
		]`))
	})
	mux.HandleFunc("GET /repos/acme/squire/pulls/5", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"number": 5, "title": "newest merge", "user": {"login": "octo"},
			"merged_at": "2025-02-01T00:00:00Z", "additions": 12, "deletions": 3}`))
	})
	mux.HandleFunc("GET /repos/acme/squire/pulls/5/files", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"filename": "main.go", "status": "modified", "additions": 12, "deletions": 3}]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, "secret", srv.Client())
	pr, files, ok, err := c.LatestMerged(context.Background(), "acme", "squire")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5, pr.Number)
	assert.Equal(t, "octo", pr.User.Login)
	assert.Equal(t, 12, pr.Additions)
	require.Len(t, files, 1)
	assert.Equal(t, "main.go", files[0].Filename)
	assert.Equal(t, "token secret", sawAuth)
	assert.Equal(t, userAgent, sawAgent)
}

func TestLatestMergedNone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`[{"number": 1, "merged_at": null}]`))
	}))
	defer srv.Close()

	_, _, ok, err := New(srv.URL, "", srv.Client()).LatestMerged(context.Background(), "acme", "squire")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "", srv.Client()).ClosedPulls(context.Background(), "acme", "missing", 1)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, "HTTP 404", se.Error())
	assert.Contains(t, se.Body, "Not Found")
}

func TestMergedOnlyOrdersByMergeTime(t *testing.T) {
	a, b := "2025-03-01T00:00:00Z", "2025-04-01T00:00:00Z"
	got := MergedOnly([]PullRequest{{Number: 1, MergedAt: &a}, {Number: 2}, {Number: 3, MergedAt: &b}})
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].Number)
	assert.Equal(t, 1, got[1].Number)
}
