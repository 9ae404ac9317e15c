// Command migrate applies, reverts or reports the database schema version.
//
//	migrate up | down | version
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"lexdesk/api/internal/config"
	"lexdesk/api/internal/logging"
	"lexdesk/api/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logging.Setup(cfg.LogLevel)

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	ctx := context.Background()
	db, err := store.Open(ctx, cfg.DatabaseURL, store.DefaultPool(2))
	if err != nil {
		logging.Fatal("database connection failed", "error", err)
	}
	defer db.Close()

	switch command {
	case "up":
		err = store.ApplyMigrations(ctx, db, cfg.MigrationsDir)
	case "down":
		err = store.RollbackMigrations(ctx, db, cfg.MigrationsDir)
	case "version":
		var version int64
		version, err = store.MigrationVersion(ctx, db)
		if err == nil {
			fmt.Println(version)
		}
	default:
		fmt.Fprintf(os.Stderr, "usage: migrate up|down|version\n")
		os.Exit(2)
	}
	if err != nil {
		logging.Fatal("migrate failed", "command", command, "error", err)
	}
}
