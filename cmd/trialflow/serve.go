package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/animus-labs/trialflow/internal/platform/auth"
	"github.com/animus-labs/trialflow/internal/platform/httpserver"
	"github.com/animus-labs/trialflow/internal/platform/postgres"
	repopg "github.com/animus-labs/trialflow/internal/repo/postgres"
)

var publicPaths = []string{"/healthz", "/readyz"}

func cmdServe(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := newFlagSet("serve")
	settingsPath := settingsFlag(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	settings, err := loadSettings(*settingsPath)
	if err != nil {
		return err
	}
	cfg, err := httpserver.ConfigFromEnv(service)
	if err != nil {
		return configError(err)
	}
	serverAuth, err := auth.ServerConfigFromEnv()
	if err != nil {
		return configError(fmt.Errorf("api auth config: %w", err))
	}

	a, err := openApp(ctx, logger, settings)
	if err != nil {
		return err
	}
	defer a.Close()

	var authn auth.Authenticator = auth.AnonymousAuthenticator{}
	if serverAuth.Mode == auth.ModeOIDC {
		authn, err = auth.NewOIDCAuthenticator(ctx, serverAuth)
		if err != nil {
			return fmt.Errorf("api auth: %w", err)
		}
	} else {
		logger.Warn("api authentication disabled", "mode", string(serverAuth.Mode))
	}

	checks := []httpserver.ReadinessCheck{{
		Name:    "postgres",
		Timeout: 750 * time.Millisecond,
		Check: func(ctx context.Context) error {
			return postgres.Check(ctx, a.db, 750*time.Millisecond)
		},
	}}
	if a.storeProbe != nil {
		checks = append(checks, httpserver.ReadinessCheck{
			Name:    "minio",
			Timeout: 750 * time.Millisecond,
			Check:   a.storeProbe,
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", httpserver.Healthz(service))
	mux.HandleFunc("GET /readyz", httpserver.ReadyzWithChecks(service, checks...))
	newTrialflowAPI(logger, settings, a.svc).register(mux)

	handler := auth.Middleware(logger, authn, mux, publicPaths...)
	return httpserver.Run(ctx, logger, cfg, httpserver.Wrap(logger, service, handler))
}

func cmdMigrate(ctx context.Context, logger *slog.Logger) error {
	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	if err := repopg.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("migrations applied")
	return nil
}
