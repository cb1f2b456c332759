package sqlxrepos

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/core/job"
)

const jobColumns = "id, kind, payload, status, result, error, requested_by, created_at, started_at, finished_at"

// JobStore is the job queue of a deployment whose workers run in a separate process.
type JobStore struct {
	db *sqlx.DB
}

var _ job.Store = (*JobStore)(nil)

func NewJobStore(db *sqlx.DB) *JobStore {
	return &JobStore{db: db}
}

func (s *JobStore) Enqueue(ctx context.Context, j job.Job) error {
	payload := j.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job (id, kind, payload, status, requested_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		j.ID, j.Kind, string(payload), job.StatusPending, j.RequestedBy, j.CreatedAt,
	)
	return errors.Wrap(err, "enqueuing job")
}

// Claim locks the oldest pending row so that concurrent workers each get a different job.
func (s *JobStore) Claim(ctx context.Context) (job.Job, error) {
	var j job.Job
	err := s.db.GetContext(ctx, &j, `
		UPDATE job SET status = $1, started_at = $2
		WHERE id = (
			SELECT id FROM job WHERE status = $3
			ORDER BY created_at, id
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING `+jobColumns, job.StatusRunning, job.NowFunc().UTC(), job.StatusPending)
	if err != nil {
		return job.Job{}, notFound(err, job.ErrNoJob)
	}
	return j, nil
}

func (s *JobStore) Finish(ctx context.Context, id uuid.UUID, result string, runErr error) error {
	status, errMsg := job.StatusDone, ""
	if runErr != nil {
		status, errMsg = job.StatusFailed, runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE job SET status = $1, result = $2, error = $3, finished_at = $4 WHERE id = $5",
		status, result, errMsg, job.NowFunc().UTC(), id,
	)
	if err != nil {
		return errors.Wrap(err, "finishing job")
	}
	return checkAffected(res, job.ErrNotFound)
}

func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (job.Job, error) {
	var j job.Job
	if err := s.db.GetContext(ctx, &j, "SELECT "+jobColumns+" FROM job WHERE id = $1", id); err != nil {
		return job.Job{}, notFound(err, job.ErrNotFound)
	}
	return j, nil
}
