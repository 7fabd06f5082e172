package main

import (
	"github.com/pressly/goose/v3"

	appfs "github.com/credikids/credikids/fs"
)

var gooseRunFunc = goose.Run // mockable

func (cli *commandLine) migrate(args []string) error {
	goose.SetBaseFS(appfs.FS)

	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.db.DB.DB, "migrations", arguments...)
}
