package main

import (
	"os"

	// Registers the sqlserver driver with database/sql.
	_ "github.com/denisenkom/go-mssqldb"
	"github.com/dkritz/sql-server-extractor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
