package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/animus-labs/trialflow/internal/flowapi"
	"github.com/animus-labs/trialflow/internal/flows"
	"github.com/animus-labs/trialflow/internal/platform/auth"
	"github.com/animus-labs/trialflow/internal/platform/objectstore"
	"github.com/animus-labs/trialflow/internal/platform/postgres"
	repopg "github.com/animus-labs/trialflow/internal/repo/postgres"
	"github.com/animus-labs/trialflow/internal/service/launches"
	storageobjectstore "github.com/animus-labs/trialflow/internal/storage/objectstore"
)

// app holds the wired dependencies shared by the CLI and the API server.
type app struct {
	db  *sql.DB
	svc *launches.Service
	// storeProbe is nil when archiving is disabled.
	storeProbe func(context.Context) error
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

func openDB(ctx context.Context) (*sql.DB, error) {
	dbCfg, err := postgres.ConfigFromEnv()
	if err != nil {
		return nil, configError(fmt.Errorf("database config: %w", err))
	}
	db, err := postgres.Open(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("database unavailable: %w", err)
	}
	return db, nil
}

func openApp(ctx context.Context, logger *slog.Logger, settings flows.Settings) (*app, error) {
	apiCfg, err := flowapi.ConfigFromEnv()
	if err != nil {
		return nil, configError(fmt.Errorf("platform config: %w", err))
	}
	authCfg, err := auth.ClientConfigFromEnv()
	if err != nil {
		return nil, configError(fmt.Errorf("platform auth config: %w", err))
	}
	storeCfg, err := objectstore.ConfigFromEnv()
	if err != nil {
		return nil, configError(fmt.Errorf("object store config: %w", err))
	}

	db, err := openDB(ctx)
	if err != nil {
		return nil, err
	}
	a := &app{db: db}

	httpClient, err := auth.NewHTTPClient(ctx, authCfg, &http.Client{Timeout: apiCfg.Timeout})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("platform auth: %w", err)
	}
	platform, err := flowapi.New(apiCfg, httpClient)
	if err != nil {
		a.Close()
		return nil, configError(err)
	}

	deps := launches.Deps{
		Project:    platform.Project(),
		Settings:   settings,
		Executions: repopg.NewExecutionStore(db),
		Nodes:      repopg.NewNodeObservationStore(db),
		Audit:      repopg.NewAuditAppender(db),
		Platform:   platform,
		Logger:     logger,
	}
	if storeCfg.Enabled() {
		archive, probe, err := openArchive(ctx, storeCfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.storeProbe = probe
		deps.Archive = archive
	} else {
		logger.Info("definition archive disabled", "reason", "TRIALFLOW_MINIO_ENDPOINT not set")
	}

	svc, err := launches.New(deps)
	if err != nil {
		a.Close()
		return nil, configError(err)
	}
	a.svc = svc
	return a, nil
}

// openArchive connects to the definitions bucket and returns the archive with
// a readiness probe for it.
func openArchive(ctx context.Context, cfg objectstore.Config) (*storageobjectstore.DefinitionArchive, func(context.Context) error, error) {
	startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	client, err := objectstore.Connect(startupCtx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("object store unavailable: %w", err)
	}
	store, err := storageobjectstore.NewMinioStore(client, cfg.BucketDefinitions)
	if err != nil {
		return nil, nil, err
	}
	archive, err := storageobjectstore.NewDefinitionArchive(store)
	if err != nil {
		return nil, nil, err
	}
	return archive, objectstore.BucketProbe(client, cfg.BucketDefinitions), nil
}
