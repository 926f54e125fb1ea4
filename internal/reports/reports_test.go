package reports

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"squire/internal/store"
)

type sample struct {
	Agent  string `json:"agent"`
	Status string `json:"status"`
}

func fixedNow() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }

func TestSaveAndLatestThroughFile(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "squire.db"))
	require.NoError(t, err)
	defer st.Close()

	writer := New(dir, st, nil)
	writer.now = fixedNow
	_, ok := writer.Latest()
	require.False(t, ok)

	env, err := writer.Save(context.Background(), sample{Agent: "manager", Status: "completed"})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-04T05:06:07Z", env.Timestamp)
	assert.Equal(t, StatusAvailable, env.Status)

	// A second process sharing the data dir sees the report.
	reader := New(dir, nil, nil)
	got, ok := reader.Latest()
	require.True(t, ok)
	assert.JSONEq(t, `{"agent":"manager","status":"completed"}`, string(got.Report))
	assert.Equal(t, env.Timestamp, got.Timestamp)

	history, err := st.ListReports(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.JSONEq(t, string(env.Report), history[0].ReportJSON)
}

func TestLatestFallsBackToMemory(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil, nil)
	_, err := s.Save(context.Background(), sample{Agent: "manager"})
	require.NoError(t, err)
	require.NoError(t, os.Remove(s.Path()))

	got, ok := s.Latest()
	require.True(t, ok)
	assert.JSONEq(t, `{"agent":"manager","status":""}`, string(got.Report))

	s.Clear()
	_, ok = s.Latest()
	assert.False(t, ok)
}

type failingHistory struct{}

func (failingHistory) RecordReport(context.Context, string, string, time.Time) (int64, error) {
	return 0, errors.New("disk full")
}

func TestSaveIgnoresHistoryFailure(t *testing.T) {
	s := New(t.TempDir(), failingHistory{}, nil)
	_, err := s.Save(context.Background(), sample{Agent: "manager"})
	require.NoError(t, err)
	_, ok := s.Latest()
	assert.True(t, ok)
}

func TestSaveRejectsUnencodable(t *testing.T) {
	s := New(t.TempDir(), nil, nil)
	_, err := s.Save(context.Background(), make(chan int))
	assert.Error(t, err)
}
