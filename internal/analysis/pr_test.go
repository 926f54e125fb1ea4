package analysis

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"squire/internal/github"
)

func mergedAt(s string) *string { return &s }

func TestAnalyzePR(t *testing.T) {
	pr := github.PullRequest{
		Number:    42,
		Title:     "Add rate limiting",
		User:      github.User{Login: "octo"},
		State:     "closed",
		HTMLURL:   "https://github.com/acme/squire/pull/42",
		Body:      "Adds a token bucket.",
		CreatedAt: "2025-01-01T10:00:00Z",
		MergedAt:  mergedAt("2025-01-02T10:00:00Z"),
		Additions: 90,
		Deletions: 30,
	}
	files := []github.File{
		{Filename: "limiter.go", Additions: 10, Deletions: 0},
		{Filename: "limiter_test.go", Additions: 50, Deletions: 5},
		{Filename: "README.md", Additions: 5, Deletions: 5},
		{Filename: "Makefile", Additions: 25, Deletions: 20},
	}

	a := AnalyzePR(pr, files)

	assert.Equal(t, 42, a.PRNumber)
	assert.Equal(t, "octo", a.Author)
	assert.Equal(t, "2025-01-02T10:00:00Z", a.MergedAt)
	assert.Equal(t, PRMetrics{
		FilesChanged: 4,
		Additions:    90,
		Deletions:    30,
		NetChange:    60,
		FileTypes:    map[string]int{"go": 2, "md": 1, "other": 1},
	}, a.Metrics)

	want := []KeyFile{
		{Filename: "limiter_test.go", Additions: 50, Deletions: 5},
		{Filename: "Makefile", Additions: 25, Deletions: 20},
		{Filename: "limiter.go", Additions: 10, Deletions: 0},
		{Filename: "README.md", Additions: 5, Deletions: 5},
	}
	if diff := cmp.Diff(want, a.KeyFiles); diff != "" {
		t.Errorf("key files mismatch (-want +got):\n%s", diff)
	}

	assert.Contains(t, a.Summary, "PR #42: Add rate limiting")
	assert.Contains(t, a.Summary, "File types: go(2), md(1), other(1)")
	assert.Contains(t, a.Summary, "Description: Adds a token bucket....")
	assert.Equal(t, PRReview{Complexity: LevelMedium, RiskLevel: LevelLow, Recommendations: []string{"PR looks manageable"}}, a.Review)
}

func TestAnalyzePRKeyFilesCapped(t *testing.T) {
	var files []github.File
	for i := 0; i < 8; i++ {
		files = append(files, github.File{Filename: strings.Repeat("x", i+1) + ".go", Additions: i})
	}
	a := AnalyzePR(github.PullRequest{Number: 1}, files)
	require.Len(t, a.KeyFiles, 5)
	assert.Equal(t, "xxxxxxxx.go", a.KeyFiles[0].Filename)
	assert.Empty(t, a.MergedAt)
	assert.NotContains(t, a.Summary, "Description:")
}

func TestReviewPRThresholds(t *testing.T) {
	tests := []struct {
		name       string
		churn      int
		files      int
		complexity string
		risk       string
		recs       []string
	}{
		{"small", 100, 5, LevelLow, LevelLow, []string{"PR looks manageable"}},
		{"medium", 101, 6, LevelMedium, LevelMedium, []string{"PR looks manageable"}},
		{"boundary", 500, 20, LevelMedium, LevelMedium, []string{"Many files changed - ensure thorough testing"}},
		{"large", 1001, 21, LevelHigh, LevelHigh, []string{
			"Large PR - consider breaking into smaller changes",
			"Many files changed - ensure thorough testing",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := reviewPR(tt.churn, tt.files)
			assert.Equal(t, tt.complexity, r.Complexity)
			assert.Equal(t, tt.risk, r.RiskLevel)
			assert.Equal(t, tt.recs, r.Recommendations)
		})
	}
}
