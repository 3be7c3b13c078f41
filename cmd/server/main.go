// Command server runs the design generation API: the HTTP surface for
// submitting and polling design jobs, and the worker pool that calls
// the external generator.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/atelierhq/design-api/internal/config"
	"github.com/atelierhq/design-api/internal/platform/logger"
	"github.com/atelierhq/design-api/internal/platform/postgres"
)

func main() {
	migrateCmd := flag.String("migrate", "", "run a migration command (up, down, status) and exit")
	flag.Parse()

	if err := run(*migrateCmd); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func run(migrateCmd string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	if migrateCmd != "" {
		db, err := setupDatabase(cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := db.Close(); cerr != nil {
				log.Error("failed to close database", "error", cerr)
			}
		}()
		return postgres.RunMigrationCommand(db, log, migrateCmd)
	}

	ctx := context.Background()
	app, err := buildApplication(ctx, cfg, log)
	if err != nil {
		return err
	}

	if err := app.taskRunner.Start(); err != nil {
		return fmt.Errorf("failed to start task runner: %w", err)
	}

	return app.startHTTPServer(ctx, app.setupRouter())
}
