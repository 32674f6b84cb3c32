// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"codeberg.org/oliverandrich/go-account-confirm/internal/config"
	"codeberg.org/oliverandrich/go-account-confirm/internal/server"
	"github.com/urfave/cli/v3"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cmd := &cli.Command{
		Name:    "app",
		Usage:   "Account registration and confirmation service",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Flags:   config.Flags(),
		Action:  server.Run,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP server (default)",
				Action: server.Run,
			},
			{
				Name:  "migrate",
				Usage: "Manage the database schema",
				Commands: []*cli.Command{
					{Name: "up", Usage: "Apply all pending migrations", Action: server.Migrate("up", server.MigrateUp)},
					{Name: "down", Usage: "Roll back the last migration", Action: server.Migrate("down", server.MigrateDown)},
					{Name: "reset", Usage: "Roll back all migrations", Action: server.Migrate("reset", server.MigrateReset)},
					{Name: "status", Usage: "Show the current schema version", Action: server.Migrate("status", nil)},
				},
			},
			{
				Name:   "cleanup",
				Usage:  "Delete unconfirmed accounts whose confirmation token has expired",
				Action: server.Cleanup,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
