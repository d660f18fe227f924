package main

import (
	"github.com/RidhwanAhamed/aqademiq-sync/storage/database"
)

var migrateFunc = database.Migrate // mockable

func (cli *commandLine) migrate() error {
	return migrateFunc(cli.db)
}
