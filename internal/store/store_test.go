package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "data", "squire.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOpenCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "squire.db")
	st, err := Open(path)
	require.NoError(t, err)
	defer st.Close()

	_, err = os.Stat(path)
	require.NoError(t, err)
	assert.NoError(t, st.Health(context.Background()))
}

func TestLatestTeamReview(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()

	_, err := st.LatestTeamReview(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	_, err = st.AddTeamReview(ctx, "older review", "Ana", base)
	require.NoError(t, err)
	newest, err := st.AddTeamReview(ctx, "newer review", "", base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "Anonymous", newest.TeamMember)

	got, err := st.LatestTeamReview(ctx)
	require.NoError(t, err)
	assert.Equal(t, newest.ID, got.ID)
	assert.Equal(t, "newer review", got.Text)
	assert.Equal(t, "Anonymous", got.TeamMember)

	list, err := st.ListTeamReviews(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "older review", list[1].Text)

	for _, limit := range []int{0, -1} {
		_, err := st.ListTeamReviews(ctx, limit)
		assert.Error(t, err, "limit %d", limit)
	}
}

func TestAddTeamReviewRequiresText(t *testing.T) {
	st := openTest(t)
	_, err := st.AddTeamReview(context.Background(), "", "Ana", time.Now().UTC())
	assert.Error(t, err)
}

func TestReportHistory(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	_, err := st.RecordReport(ctx, `{"n":1}`, "completed", base)
	require.NoError(t, err)
	_, err = st.RecordReport(ctx, `{"n":2}`, "completed", base.Add(time.Minute))
	require.NoError(t, err)

	list, err := st.ListReports(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.JSONEq(t, `{"n":2}`, list[0].ReportJSON)
	assert.Equal(t, "completed", list[0].Status)
}
