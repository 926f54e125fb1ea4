// Package gdocs reads publicly shared Google Docs through their plain-text
// export endpoint.
package gdocs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const DefaultBaseURL = "https://docs.google.com"

var (
	docIDPattern = regexp.MustCompile(`/document/d/([a-zA-Z0-9_-]+)`)

	// ErrNoDocID means the URL does not point at a Google Doc.
	ErrNoDocID = errors.New("could not extract doc ID from URL")
)

// StatusError carries the export endpoint's non-2xx status. Private
// documents usually redirect to a login page that ends in 401 or 403.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: Document may not be publicly accessible", e.StatusCode)
}

// ExtractDocID returns the document ID embedded in a Docs URL.
func ExtractDocID(docURL string) (string, bool) {
	m := docIDPattern.FindStringSubmatch(docURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Reader fetches document exports.
type Reader struct {
	baseURL string
	http    *http.Client
}

// NewReader returns a Reader against baseURL (DefaultBaseURL when empty).
// net/http follows redirects by default, which the export endpoint relies on.
func NewReader(baseURL string, httpClient *http.Client) *Reader {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Reader{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// ExportURL is the plain-text export location for docID.
func (r *Reader) ExportURL(docID string) string {
	return fmt.Sprintf("%s/document/d/%s/export?format=txt", r.baseURL, docID)
}

// Read downloads docURL as plain text.
func (r *Reader) Read(ctx context.Context, docURL string) (string, error) {
	id, ok := ExtractDocID(docURL)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoDocID, docURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.ExportURL(id), nil)
	if err != nil {
		return "", err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", &StatusError{StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read export: %w", err)
	}
	// Exports start with a UTF-8 BOM.
	return strings.TrimPrefix(string(body), "\ufeff"), nil
}
