package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/quizhub/core"
)

type dispatcher interface {
	Dispatch(ctx context.Context, kind string, payload interface{}, requestedBy *int) (uuid.UUID, error)
}

// Scheduler enqueues periodic jobs; the workers run them like any other job.
type Scheduler struct {
	ctx    context.Context
	jobs   dispatcher
	logger core.Logger
}

func NewScheduler(ctx context.Context, jobs dispatcher, logger core.Logger) *Scheduler {
	return &Scheduler{ctx: ctx, jobs: jobs, logger: logger}
}

// Every enqueues a `kind` job on every tick until the scheduler's context is done.
// A zero interval disables the schedule.
func (s *Scheduler) Every(interval time.Duration, kind string) {
	if interval <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-t.C:
				id, err := s.jobs.Dispatch(s.ctx, kind, nil, nil)
				if err != nil {
					s.logger.Error(fmt.Sprintf("queue.Scheduler: enqueuing %s: %v", kind, err), err)
					continue
				}
				jobsEnqueued.WithLabelValues(kind).Inc()
				s.logger.Info(fmt.Sprintf("queue.Scheduler: enqueued %s job %s", kind, id))
			}
		}
	}()
}
