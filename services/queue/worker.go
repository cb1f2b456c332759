package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/job"
	logsvc "github.com/trezcool/quizhub/services/logger"
)

// Worker claims pending jobs and hands them over a channel to a fixed set of goroutines.
// Failed jobs are recorded and reported, never retried.
type Worker struct {
	store    job.Store
	handlers map[string]job.Handler
	workers  int
	poll     time.Duration
	logger   core.Logger

	// mockable
	captureErr func(err error, tags map[string]string)
}

func NewWorker(store job.Store, handlers map[string]job.Handler, conf *core.Config, logger core.Logger) *Worker {
	n := conf.Queue.Workers
	if n < 1 {
		n = 1
	}
	poll := conf.Queue.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	return &Worker{
		store:      store,
		handlers:   handlers,
		workers:    n,
		poll:       poll,
		logger:     logger,
		captureErr: logsvc.CaptureErr,
	}
}

// Run blocks until ctx is done, then waits for the jobs in flight.
func (w *Worker) Run(ctx context.Context) {
	jobs := make(chan job.Job)
	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				w.run(context.WithoutCancel(ctx), j)
			}
		}()
	}

	w.claim(ctx, jobs)
	close(jobs)
	wg.Wait()
}

func (w *Worker) claim(ctx context.Context, jobs chan<- job.Job) {
	for {
		if ctx.Err() != nil {
			return
		}
		j, err := w.store.Claim(ctx)
		if err == nil {
			jobs <- j
			continue
		}
		if errors.Cause(err) != job.ErrNoJob {
			w.logger.Error(fmt.Sprintf("queue.Worker: claiming job: %v", err), err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

func (w *Worker) run(ctx context.Context, j job.Job) {
	start := time.Now()
	result, err := w.execute(ctx, j)

	jobRuns.WithLabelValues(j.Kind).Inc()
	jobDuration.WithLabelValues(j.Kind).Observe(time.Since(start).Seconds())
	if err != nil {
		jobErrors.WithLabelValues(j.Kind).Inc()
		w.logger.Error(fmt.Sprintf("queue.Worker: job %s (%s): %v", j.ID, j.Kind, err), err)
		w.captureErr(err, map[string]string{"job_kind": j.Kind, "job_id": j.ID.String()})
	} else {
		w.logger.Info(fmt.Sprintf("queue.Worker: job %s (%s) done: %s", j.ID, j.Kind, result))
	}

	if ferr := w.store.Finish(ctx, j.ID, result, err); ferr != nil {
		w.logger.Error(fmt.Sprintf("queue.Worker: finishing job %s: %v", j.ID, ferr), ferr)
	}
}

func (w *Worker) execute(ctx context.Context, j job.Job) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic in job: %v", r)
		}
	}()
	handler, ok := w.handlers[j.Kind]
	if !ok {
		return "", job.ErrUnknownKind
	}
	return handler(ctx, j)
}
