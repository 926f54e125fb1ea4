package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"squire/internal/analysis"
	"squire/internal/reports"
	"squire/internal/workflow"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func testEnv(t *testing.T) string {
	dir := t.TempDir()
	t.Setenv("ENV", "test")
	t.Setenv("CONFIG_PATH", filepath.Join(dir, "missing.yaml"))
	t.Setenv("DB_PATH", filepath.Join(dir, "squire.db"))
	t.Setenv("DATA_DIR", filepath.Join(dir, "queue"))
	return dir
}

func TestReviewAddAndList(t *testing.T) {
	testEnv(t)

	out, err := execute(t, "review", "add", "Excellent work on the Redis cache, great tests", "Ana")
	require.NoError(t, err)
	assert.Contains(t, out, "stored review 1 from Ana")

	out, err = execute(t, "review", "list", "-n", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Ana")
	assert.Contains(t, out, analysis.SentimentPositive)
}

func TestReviewListRejectsNonPositiveLimit(t *testing.T) {
	testEnv(t)
	t.Cleanup(func() { reviewLimit = 10 })

	for _, arg := range []string{"--limit=0", "--limit=-1", "-n=0"} {
		_, err := execute(t, "review", "list", arg)
		require.Error(t, err, arg)
		assert.Contains(t, err.Error(), "--limit must be positive")
	}
}

func TestReportCommand(t *testing.T) {
	dir := testEnv(t)

	_, err := execute(t, "report")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no report available yet")

	report := analysis.Synthesize(nil, nil)
	_, err = reports.New(filepath.Join(dir, "queue"), nil, nil).Save(context.Background(), workflow.StoredReport{
		Agent:  workflow.AgentManager,
		Status: workflow.StatusCompleted,
		Report: &report,
	})
	require.NoError(t, err)

	out, err := execute(t, "report")
	require.NoError(t, err)
	assert.Contains(t, out, "SQUIRE REPORT")
	assert.Contains(t, out, "All systems operational")

	out, err = execute(t, "report", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "available"`)
	reportJSON = false
}

func TestRenderReportSections(t *testing.T) {
	merged := analysis.Synthesize(
		[]analysis.PRAnalysis{{PRNumber: 12, Title: "Add cache", Review: analysis.PRReview{Complexity: analysis.LevelLow, RiskLevel: analysis.LevelLow}}},
		[]analysis.MeetingAnalysis{{DocURL: "https://docs.google.com/document/d/x", Status: analysis.StatusCompleted, ActionItems: []string{"Ship the cache"}}},
	)
	var buf bytes.Buffer
	renderReport(&buf, "2025-03-04T05:06:07Z", merged)
	out := buf.String()
	assert.Contains(t, out, "#12 Add cache")
	assert.Contains(t, out, "Ship the cache")
	assert.Contains(t, out, "2025-03-04T05:06:07Z")
	assert.Contains(t, out, "docs.google.com/document/d/x")
}
