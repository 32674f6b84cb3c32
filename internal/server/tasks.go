// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"codeberg.org/oliverandrich/go-account-confirm/internal/config"
	"codeberg.org/oliverandrich/go-account-confirm/internal/database"
	"codeberg.org/oliverandrich/go-account-confirm/internal/repository"
	"codeberg.org/oliverandrich/go-account-confirm/internal/services/auth"
	"codeberg.org/oliverandrich/go-account-confirm/internal/services/confirmation"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

// MigrationFunc applies a schema change to an open database.
type MigrationFunc func(db *sqlx.DB) error

// Migrate returns a CLI action that opens the database without applying
// migrations, runs fn and logs the resulting schema version.
func Migrate(name string, fn MigrationFunc) cli.ActionFunc {
	return func(_ context.Context, cmd *cli.Command) error {
		cfg := config.NewFromCLI(cmd)
		SetupLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)

		db, err := database.OpenWithoutMigrations(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if fn != nil {
			if err := fn(db); err != nil {
				return fmt.Errorf("migrate %s: %w", name, err)
			}
		}

		version, err := database.MigrationVersion(db.DB)
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		slog.Info("migrate_"+name, "version", version)
		return nil
	}
}

// MigrateUp applies all pending migrations.
func MigrateUp(db *sqlx.DB) error { return database.RunMigrations(db.DB) }

// MigrateDown rolls back the last migration.
func MigrateDown(db *sqlx.DB) error { return database.MigrateDown(db.DB) }

// MigrateReset rolls back all migrations.
func MigrateReset(db *sqlx.DB) error { return database.MigrateReset(db.DB) }

// Cleanup deletes unconfirmed accounts whose confirmation token has expired.
func Cleanup(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	SetupLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	n, err := purgeExpired(ctx, db, cfg)
	if err != nil {
		return err
	}
	slog.Info("cleanup_done", "deleted", n)
	return nil
}

func purgeExpired(ctx context.Context, db *sqlx.DB, cfg *config.Config) (int64, error) {
	repo := repository.New(db)
	manager := confirmation.NewManager(repo, confirmation.WithTTL(cfg.Auth.TokenTTL))
	return auth.NewService(repo, manager, &cfg.Auth).PurgeExpired(ctx)
}
