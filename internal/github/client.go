// Package github is a minimal GitHub REST v3 client for reading merged pull
// requests and their changed files.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultAPIURL = "https://api.github.com"
	userAgent     = "Squire-PR-Agent"
	// mergedWindow is how many recently updated closed PRs are scanned for
	// the most recent merge.
	mergedWindow = 30
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Client talks to one GitHub API endpoint.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New returns a client for baseURL (DefaultAPIURL when empty). A nil
// httpClient gets a 30s timeout.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultAPIURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: httpClient}
}

// ClosedPulls lists closed PRs ordered by most recently updated.
func (c *Client) ClosedPulls(ctx context.Context, owner, repo string, perPage int) ([]PullRequest, error) {
	q := url.Values{}
	q.Set("state", "closed")
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("sort", "updated")
	q.Set("direction", "desc")
	var prs []PullRequest
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/pulls?%s", owner, repo, q.Encode()), &prs); err != nil {
		return nil, err
	}
	return prs, nil
}

// PullRequest fetches one PR including its addition/deletion totals.
func (c *Client) PullRequest(ctx context.Context, owner, repo string, number int) (PullRequest, error) {
	var pr PullRequest
	err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, number), &pr)
	return pr, err
}

// Files lists the files changed by a PR.
func (c *Client) Files(ctx context.Context, owner, repo string, number int) ([]File, error) {
	var files []File
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/pulls/%d/files", owner, repo, number), &files); err != nil {
		return nil, err
	}
	return files, nil
}

// LatestMerged returns the most recently merged PR with full details and its
// files. ok is false when no recently closed PR was merged.
func (c *Client) LatestMerged(ctx context.Context, owner, repo string) (pr PullRequest, files []File, ok bool, err error) {
	closed, err := c.ClosedPulls(ctx, owner, repo, mergedWindow)
	if err != nil {
		return PullRequest{}, nil, false, err
	}
	merged := MergedOnly(closed)
	if len(merged) == 0 {
		return PullRequest{}, nil, false, nil
	}
	pr, err = c.PullRequest(ctx, owner, repo, merged[0].Number)
	if err != nil {
		return PullRequest{}, nil, false, err
	}
	files, err = c.Files(ctx, owner, repo, pr.Number)
	if err != nil {
		return PullRequest{}, nil, false, err
	}
	return pr, files, true, nil
}

// MergedOnly keeps merged PRs, newest merge first.
func MergedOnly(prs []PullRequest) []PullRequest {
	out := make([]PullRequest, 0, len(prs))
	for _, pr := range prs {
		if pr.Merged() {
			out = append(out, pr)
		}
	}
	// GitHub timestamps are RFC 3339 in UTC, so they sort lexically.
	sort.SliceStable(out, func(i, j int) bool { return *out[i].MergedAt > *out[j].MergedAt })
	return out
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
