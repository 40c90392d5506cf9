package main

import (
	"fmt"
	"os"

	"github.com/stocklinkhq/stocklink_backend/config"
	"github.com/stocklinkhq/stocklink_backend/models"
)

// Runs AutoMigrate as a standalone job so deploys can skip DDL on startup
// (SKIP_MIGRATIONS=true on the server).
func main() {
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	models.MigrateTable()
	fmt.Println("migrations applied")
}
