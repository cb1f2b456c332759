package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/job"
)

func openStore(t *testing.T) *BoltStore {
	store, err := OpenBoltStore(filepath.Join(t.TempDir(), "var", "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newJob(kind string, createdAt time.Time) job.Job {
	return job.Job{ID: uuid.New(), Kind: kind, Status: job.StatusPending, CreatedAt: createdAt}
}

func TestBoltStore_ClaimOldestFirst(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	now := time.Now().UTC()

	newer := newJob(job.KindMonthlyReport, now)
	older := newJob(job.KindDailyReminder, now.Add(-time.Minute))
	require.NoError(t, store.Enqueue(ctx, newer))
	require.NoError(t, store.Enqueue(ctx, older))

	first, err := store.Claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, older.ID, first.ID)
	assert.Equal(t, job.StatusRunning, first.Status)
	assert.True(t, first.StartedAt.Valid)

	second, err := store.Claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, second.ID)

	_, err = store.Claim(ctx)
	assert.Equal(t, job.ErrNoJob, err)
}

func TestBoltStore_Finish(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	ok := newJob(job.KindExportScores, time.Now().UTC())
	ko := newJob(job.KindExportScores, time.Now().UTC())
	require.NoError(t, store.Enqueue(ctx, ok))
	require.NoError(t, store.Enqueue(ctx, ko))

	require.NoError(t, store.Finish(ctx, ok.ID, "quiz_data_user_1.csv", nil))
	require.NoError(t, store.Finish(ctx, ko.ID, "", errors.New("boom")))

	got, err := store.Get(ctx, ok.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusDone, got.Status)
	assert.Equal(t, "quiz_data_user_1.csv", got.Result)
	assert.True(t, got.FinishedAt.Valid)

	got, err = store.Get(ctx, ko.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)

	_, err = store.Get(ctx, uuid.New())
	assert.True(t, core.IsNotFound(err))
}
