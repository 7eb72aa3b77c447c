package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	journal, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })

	clock := time.Date(2009, 6, 1, 12, 0, 0, 0, time.UTC)
	journal.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return journal
}

func TestJournalRecordsRunAndSteps(t *testing.T) {
	journal := openTestJournal(t)
	ctx := context.Background()

	started := time.Date(2009, 6, 1, 11, 0, 0, 0, time.UTC)
	require.NoError(t, journal.StartRun("run-1", "1.2.3", started))
	require.NoError(t, journal.RecordStep("run-1", "build", "success", ""))
	require.NoError(t, journal.RecordStep("run-1", "register", "warning", "HTTP 500"))
	require.NoError(t, journal.FinishRun("run-1", "warning", started.Add(90*time.Second)))

	runs, err := journal.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "1.2.3", runs[0].Version)
	assert.Equal(t, "warning", runs[0].Status)
	assert.True(t, started.Equal(runs[0].StartedAt), "started_at = %v", runs[0].StartedAt)
	require.NotNil(t, runs[0].FinishedAt)
	assert.Equal(t, 90*time.Second, runs[0].FinishedAt.Sub(runs[0].StartedAt))

	steps, err := journal.Steps(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "build", steps[0].Step)
	assert.Equal(t, "register", steps[1].Step)
	assert.Equal(t, "HTTP 500", steps[1].Message)
}

func TestJournalListRunsNewestFirstWithLimit(t *testing.T) {
	journal := openTestJournal(t)

	started := time.Date(2009, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, journal.StartRun(id, "1.2", started.Add(time.Duration(i)*time.Minute)))
	}

	runs, err := journal.ListRuns(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.Equal(t, RunRunning, runs[0].Status)
	assert.Nil(t, runs[0].FinishedAt)
}

func TestJournalFinishUnknownRun(t *testing.T) {
	journal := openTestJournal(t)
	assert.Error(t, journal.FinishRun("missing", "success", time.Now()))
}

func TestJournalStepRequiresRun(t *testing.T) {
	journal := openTestJournal(t)
	assert.Error(t, journal.RecordStep("missing", "build", "success", ""))
}

func TestJournalReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.StartRun("run-1", "1.2", time.Now()))
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()

	runs, err := second.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, path, second.Path())
}
