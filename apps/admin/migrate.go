package main

import (
	"context"

	"github.com/trezcool/quizhub/storage/database"
)

var gooseRunFunc = database.RunMigrations // mockable

func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(context.Background(), cli.db, args[0], args[1:]...)
}
