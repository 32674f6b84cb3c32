// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/go-account-confirm/internal/config"
	"codeberg.org/oliverandrich/go-account-confirm/internal/database"
	"codeberg.org/oliverandrich/go-account-confirm/internal/handlers"
	"codeberg.org/oliverandrich/go-account-confirm/internal/i18n"
	"codeberg.org/oliverandrich/go-account-confirm/internal/middleware"
	"codeberg.org/oliverandrich/go-account-confirm/internal/repository"
	"codeberg.org/oliverandrich/go-account-confirm/internal/services/auth"
	"codeberg.org/oliverandrich/go-account-confirm/internal/services/confirmation"
	"codeberg.org/oliverandrich/go-account-confirm/internal/services/session"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	SetupLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	// Database, migrations included
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	// i18n
	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	e, err := New(cfg, db)
	if err != nil {
		return err
	}

	return startWithGracefulShutdown(ctx, e, cfg)
}

// New builds the echo instance with all services wired to db.
func New(cfg *config.Config, db *sqlx.DB) (*echo.Echo, error) {
	repo := repository.New(db)
	manager := confirmation.NewManager(repo, confirmation.WithTTL(cfg.Auth.TokenTTL))
	authService := auth.NewService(repo, manager, &cfg.Auth)

	sessions, err := session.NewManager(&cfg.Session, cfg.SecureCookies())
	if err != nil {
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	blacklist, err := middleware.NewBlacklist(cfg.Blacklist.IPs)
	if err != nil {
		return nil, fmt.Errorf("failed to parse blacklist: %w", err)
	}
	if blacklist.Len() > 0 {
		slog.Info("ip blacklist active", "entries", blacklist.Len())
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewValidator()
	e.HTTPErrorHandler = handlers.ErrorHandler
	if cfg.Server.TrustProxy {
		e.IPExtractor = proxyIPExtractor()
	} else {
		e.IPExtractor = echo.ExtractIPDirect()
	}

	setupMiddleware(e, cfg, blacklist)
	handlers.New(authService, sessions).Routes(e)

	return e, nil
}

// proxyIPExtractor reads X-Forwarded-For and falls back to X-Real-IP. Both
// only trust addresses from private and loopback proxies.
func proxyIPExtractor() echo.IPExtractor {
	fromXFF := echo.ExtractIPFromXFFHeader()
	fromRealIP := echo.ExtractIPFromRealIPHeader()
	return func(req *http.Request) string {
		if req.Header.Get(echo.HeaderXForwardedFor) != "" {
			return fromXFF(req)
		}
		return fromRealIP(req)
	}
}

func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("Server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
