// Command worker runs the background jobs enqueued by the api on the postgres job table,
// and enqueues the periodic reports.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/trezcool/quizhub/apps/di"
	"github.com/trezcool/quizhub/core"
	appfs "github.com/trezcool/quizhub/fs"
	"github.com/trezcool/quizhub/services/filestore"
	logsvc "github.com/trezcool/quizhub/services/logger"
	"github.com/trezcool/quizhub/services/queue"
	sqlxrepos "github.com/trezcool/quizhub/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := di.NewLogger(conf, "worker")
	defer logger.Sync()

	if conf.Queue.Backend == "bolt" {
		logger.Fatal("the bolt queue is served by the api process; set queue.backend=postgres to run a worker")
	}

	flushSentry, err := logsvc.InitSentry(conf.SentryDSN, conf.Env, conf.Build)
	if err != nil {
		logger.Error(fmt.Sprintf("initializing sentry: %v", err), err)
	}
	defer flushSentry()

	sqlDB, err := di.SetUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() { _ = sqlDB.Close() }()
	db := sqlxrepos.NewDB(sqlDB)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobs, closeJobs, err := di.NewJobStore(conf, db)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up job store: %v", err), err)
	}
	defer func() { _ = closeJobs() }()

	files, err := filestore.New(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up file store: %v", err), err)
	}

	svcs := di.NewServices(di.SQLRepos(db), di.Deps{
		Conf:   conf,
		Logger: logger,
		Mail:   di.NewEmailService(conf, logger),
		Files:  files,
		Jobs:   jobs,
	})
	core.ParseEmailTemplates(conf, appfs.FS, logger)

	di.ScheduleBatchJobs(queue.NewScheduler(ctx, svcs.Jobs, logger), conf)

	logger.Info(fmt.Sprintf("Worker started : %s, %d goroutines", conf, conf.Queue.Workers))
	queue.NewWorker(jobs, svcs.Reports.JobHandlers(), conf, logger).Run(ctx)
	logger.Info("Worker stopped")
}
