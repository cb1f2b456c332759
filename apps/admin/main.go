package main

import (
	"fmt"
	"os"

	"github.com/trezcool/quizhub/apps/di"
	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/services/filestore"
	"github.com/trezcool/quizhub/storage/database"
	sqlxrepos "github.com/trezcool/quizhub/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := di.NewLogger(conf, "admin")

	// set up DB; migrations are left to the `migrate` command
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	sqlDB, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	db := sqlxrepos.NewDB(sqlDB)

	jobs, closeJobs, err := di.NewJobStore(conf, db)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up job store: %v", err), err)
	}
	files, err := filestore.NewLocalStore(conf.Storage.UploadDir)
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

	// start CLI
	cli := commandLine{db: sqlDB, svcs: svcs, out: os.Stdout}
	err = cli.run(os.Args)

	_ = closeJobs()
	_ = sqlDB.Close()
	logger.Sync()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
