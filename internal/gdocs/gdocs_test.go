package gdocs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDocID(t *testing.T) {
	id, ok := ExtractDocID("https://docs.google.com/document/d/1AbC-d_9/edit?usp=sharing")
	require.True(t, ok)
	assert.Equal(t, "1AbC-d_9", id)

	_, ok = ExtractDocID("https://example.com/notes.txt")
	assert.False(t, ok)
}

func TestReadFollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/document/d/doc1/export", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "txt", r.URL.Query().Get("format"))
		http.Redirect(w, r, "/content", http.StatusTemporaryRedirect)
	})
	mux.HandleFunc("/content", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("\ufeffAction item: ship it\n"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	text, err := NewReader(srv.URL, srv.Client()).Read(context.Background(), "https://docs.google.com/document/d/doc1/edit")
	require.NoError(t, err)
	assert.Equal(t, "Action item: ship it\n", text)
}

func TestReadPrivateDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewReader(srv.URL, srv.Client()).Read(context.Background(), "https://docs.google.com/document/d/secret/edit")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "HTTP 401: Document may not be publicly accessible", err.Error())
}

func TestReadRejectsNonDocURL(t *testing.T) {
	_, err := NewReader("", nil).Read(context.Background(), "not a doc")
	assert.ErrorIs(t, err, ErrNoDocID)
}
