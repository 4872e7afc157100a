package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/depotfleet/sigec-fleet/internal/adapter/storage/postgres"
	"github.com/depotfleet/sigec-fleet/internal/controller"
	"github.com/depotfleet/sigec-fleet/internal/maf"
	"github.com/depotfleet/sigec-fleet/internal/ports"
	"github.com/depotfleet/sigec-fleet/internal/solverengine"
	"github.com/depotfleet/sigec-fleet/pkg/config"
)

const serviceName = "fleetctl"

// app holds the runtime collaborators a one-shot CLI invocation needs. It
// mirrors cmd/server/main.go's wiring minus the HTTP server, the cache, and
// the message queue, none of which a single synchronous run touches.
type app struct {
	planner *controller.Controller
	log     *zap.Logger
	closeDB func() error
}

func newApp() (*app, error) {
	log, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	db, err := postgres.NewConnection(cfg.Database.URL, log)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	store := postgres.NewStore(db, log)

	mafLoader := maf.NewHTTPLoader(cfg.MAF.BaseURL, cfg.MAF.BearerToken)
	if cfg.MAF.Timeout > 0 {
		mafLoader.Client.Timeout = cfg.MAF.Timeout
	}

	var remoteEngine *solverengine.RemoteEngine
	if cfg.SolverEngine.BaseURL != "" {
		remoteEngine = solverengine.NewRemoteEngine(cfg.SolverEngine.BaseURL, cfg.SolverEngine.APIKey, log)
	}
	capability := solverengine.NewCapability(remoteEngine)
	if remoteEngine != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		capability.SetHealthy(remoteEngine.Healthz(ctx))
		cancel()
	}

	var notifier ports.Notifier
	var queue ports.Queue

	planner := controller.New(store, queue, notifier, mafLoader, capability, serviceName, log)

	return &app{
		planner: planner,
		log:     log,
		closeDB: func() error { return postgres.Close(db) },
	}, nil
}

func (a *app) Close() {
	if a.closeDB != nil {
		_ = a.closeDB()
	}
	_ = a.log.Sync()
}
