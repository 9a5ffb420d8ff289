package main

import (
	"github.com/trezcool/shule/storage/database"
)

var gooseRunFunc = database.Run // mockable

func (cli *commandLine) migrate(args []string) error {
	db, err := cli.openDB()
	if err != nil {
		return err
	}
	if db != nil {
		defer func() { _ = db.Close() }()
	}
	return gooseRunFunc(args[0], db, args[1:]...)
}
