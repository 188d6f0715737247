package main

import (
	"github.com/pressly/goose/v3"

	"github.com/trezcool/taarifa/storage/database"
)

var gooseRunFunc = goose.Run // mockable

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	if err := database.InitMigrations(); err != nil {
		return err
	}
	return gooseRunFunc(args[0], cli.db, database.MigrationsDir, args[1:]...)
}
