package di

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/job"
	logsvc "github.com/trezcool/quizhub/services/logger"
	"github.com/trezcool/quizhub/services/queue"
	"github.com/trezcool/quizhub/storage/database"
	sqlxrepos "github.com/trezcool/quizhub/storage/database/sqlx"
)

// NewLogger builds the zap logger of a binary, named after it, forwarding to rollbar outside of DEV.
func NewLogger(conf *core.Config, name string) *logsvc.RollbarLogger {
	zl, err := logsvc.NewZapLogger(conf.LogLevel, conf.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building logger: %v\n", err)
		os.Exit(1)
	}
	logger := logsvc.NewRollbarLogger(zl.Named(name), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

// SetUpDB creates the database when missing, connects to it and applies pending migrations.
func SetUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewJobStore picks the queue backend configured in conf.Queue.
// The returned func releases the store.
func NewJobStore(conf *core.Config, db *sqlx.DB) (job.Store, func() error, error) {
	switch conf.Queue.Backend {
	case "bolt":
		store, err := queue.OpenBoltStore(conf.Queue.BoltPath)
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening bolt job store")
		}
		return store, store.Close, nil
	case "", "postgres":
		return sqlxrepos.NewJobStore(db), func() error { return nil }, nil
	}
	return nil, nil, errors.Errorf("unknown queue backend %q", conf.Queue.Backend)
}

// ScheduleBatchJobs enqueues the periodic reports on the intervals of conf.Queue.
func ScheduleBatchJobs(s *queue.Scheduler, conf *core.Config) {
	s.Every(conf.Queue.DailyReminderEvery, job.KindDailyReminder)
	s.Every(conf.Queue.MonthlyReportEvery, job.KindMonthlyReport)
}
