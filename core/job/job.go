// Package job describes background work handed from request handlers to workers.
// Handlers only enqueue and hand the job id back; workers claim, run and finish jobs.
package job

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/authz"
)

// Kinds
const (
	KindDailyReminder = "daily_reminder"
	KindMonthlyReport = "monthly_report"
	KindExportScores  = "export_scores"
)

// Statuses
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound    = core.NewNotFoundError("job")
	ErrNoJob       = errors.New("no pending job")
	ErrUnknownKind = errors.New("unknown job kind")

	Kinds = []string{KindDailyReminder, KindMonthlyReport, KindExportScores}
)

type Job struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Kind        string          `json:"kind" db:"kind"`
	Payload     json.RawMessage `json:"payload" db:"payload"`
	Status      string          `json:"status" db:"status"`
	Result      string          `json:"result" db:"result"`
	Error       string          `json:"error" db:"error"`
	RequestedBy null.Int        `json:"requested_by" db:"requested_by"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	StartedAt   null.Time       `json:"started_at" db:"started_at"`
	FinishedAt  null.Time       `json:"finished_at" db:"finished_at"`
}

func (j Job) Decode(v interface{}) error {
	if len(j.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(j.Payload, v)
}

// ExportPayload asks for the scores of one user.
type ExportPayload struct {
	UserID int    `json:"user_id"`
	Format string `json:"format"` // csv | xlsx
}

// Store persists jobs. Claim must hand a pending job to exactly one caller.
type Store interface {
	Enqueue(ctx context.Context, j Job) error
	// Claim marks the oldest pending job as running and returns it, or ErrNoJob.
	Claim(ctx context.Context) (Job, error)
	// Finish records the outcome: done when runErr is nil, failed otherwise.
	Finish(ctx context.Context, id uuid.UUID, result string, runErr error) error
	Get(ctx context.Context, id uuid.UUID) (Job, error)
}

// Handler runs one job and returns a short result.
type Handler func(ctx context.Context, j Job) (result string, err error)

func IsValidKind(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Dispatch enqueues a job and returns its id without waiting for it to run.
func (svc *Service) Dispatch(ctx context.Context, kind string, payload interface{}, requestedBy *int) (uuid.UUID, error) {
	if !IsValidKind(kind) {
		return uuid.Nil, ErrUnknownKind
	}
	j := Job{
		ID:        uuid.New(),
		Kind:      kind,
		Status:    StatusPending,
		CreatedAt: NowFunc().UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return uuid.Nil, errors.Wrap(err, "encoding payload")
		}
		j.Payload = data
	}
	if requestedBy != nil {
		j.RequestedBy = null.IntFrom(*requestedBy)
	}
	if err := svc.store.Enqueue(ctx, j); err != nil {
		return uuid.Nil, errors.Wrap(err, "enqueuing job")
	}
	return j.ID, nil
}

// Get shows a job to whoever requested it and to admins.
func (svc *Service) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (Job, error) {
	j, err := svc.store.Get(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if !actor.IsAdmin() && !(j.RequestedBy.Valid && j.RequestedBy.Int == actor.ID) {
		return Job{}, core.ErrForbidden
	}
	return j, nil
}
