package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"sync"
	"syscall"

	echoapi "github.com/trezcool/quizhub/apps/api/echo"
	"github.com/trezcool/quizhub/apps/di"
	"github.com/trezcool/quizhub/core"
	appfs "github.com/trezcool/quizhub/fs"
	"github.com/trezcool/quizhub/services/filestore"
	logsvc "github.com/trezcool/quizhub/services/logger"
	"github.com/trezcool/quizhub/services/queue"
	"github.com/trezcool/quizhub/services/realtime"
	sqlxrepos "github.com/trezcool/quizhub/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()
	logger := di.NewLogger(conf, "api")
	defer logger.Sync()

	flushSentry, err := logsvc.InitSentry(conf.SentryDSN, conf.Env, conf.Build)
	if err != nil {
		logger.Error(fmt.Sprintf("initializing sentry: %v", err), err)
	}
	defer flushSentry()

	// set up DB
	sqlDB, err := di.SetUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = sqlDB.Close(); err != nil {
			logger.Error(fmt.Sprintf("closing database: %v", err), err)
		}
	}()
	db := sqlxrepos.NewDB(sqlDB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs, closeJobs, err := di.NewJobStore(conf, db)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up job store: %v", err), err)
	}
	defer func() { _ = closeJobs() }()

	files, err := filestore.New(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up file store: %v", err), err)
	}

	hub := realtime.NewHub(logger)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	svcs := di.NewServices(di.SQLRepos(db), di.Deps{
		Conf:      conf,
		Logger:    logger,
		Mail:      di.NewEmailService(conf, logger),
		Files:     files,
		Jobs:      jobs,
		Publisher: hub,
	})

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : %s", conf))
	defer logger.Info("Application stopped")

	validate, translator := di.NewValidator()
	core.ParseEmailTemplates(conf, appfs.FS, logger)

	// a bolt store cannot be shared with a worker process: run the worker here
	if conf.Queue.Backend == "bolt" {
		worker := queue.NewWorker(jobs, svcs.Reports.JobHandlers(), conf, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(ctx)
		}()
		di.ScheduleBatchJobs(queue.NewScheduler(ctx, svcs.Jobs, logger), conf)
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(&echoapi.Options{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		Services:       svcs,
		Hub:            hub,
		SignalShutdown: func() {
			select {
			case shutdown <- syscall.SIGTERM:
			default:
			}
		},
	})

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("API listening on %s", conf.Server.Host))
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			logger.Error(fmt.Sprintf("server error: %v", err), err)
		}

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		sctx, scancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer scancel()
		if err = server.Stop(sctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
	}

	cancel()
	wg.Wait()
}
