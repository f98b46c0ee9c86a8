package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/thistle/config"
	"github.com/Ramsey-B/thistle/db"
	"github.com/Ramsey-B/thistle/internal/repositories/entitytype"
	"github.com/Ramsey-B/thistle/pkg/capability"
	"github.com/Ramsey-B/thistle/pkg/database"
	"github.com/Ramsey-B/thistle/pkg/datastore/graph"
	"github.com/Ramsey-B/thistle/pkg/datastore/memory"
	"github.com/Ramsey-B/thistle/pkg/datastore/postgres"
	"github.com/Ramsey-B/thistle/pkg/engine"
	"github.com/Ramsey-B/thistle/pkg/entitygraph"
	"github.com/Ramsey-B/thistle/pkg/enum"
	"github.com/Ramsey-B/thistle/pkg/format"
	"github.com/Ramsey-B/thistle/pkg/middleware"
	"github.com/Ramsey-B/thistle/pkg/query"
	"github.com/Ramsey-B/thistle/pkg/routes/health"
	"github.com/Ramsey-B/thistle/pkg/routes/read"
	"github.com/Ramsey-B/thistle/pkg/startup"
	"github.com/Ramsey-B/thistle/pkg/tracing"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

type app struct {
	cfg     *config.Config
	logger  ectologger.Logger
	stage   stage
	startup *startup.Startup
	health  *health.Checker

	db           *database.DatabaseInstance
	graphClient  *graph.Client
	entityGraph  *entitygraph.Graph
	capabilities capability.Config
	builder      *engine.Builder
	server       *echo.Echo
	stopTracing  func(context.Context) error
}

// stage is how far startup goes: migrations only, the built engine, or the
// serving HTTP API.
type stage int

const (
	stageMigrate stage = iota
	stageEngine
	stageServe
)

func newApp(cfg *config.Config, logger ectologger.Logger, target stage) *app {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		stage:   target,
		startup: startup.NewStartup(logger, cfg.StartupMaxAttempts),
		health:  health.NewChecker(cfg.Version),
	}

	a.startup.AddDependency(startup.Dependency{
		Name:      "tracing",
		StartFunc: a.startTracing,
		StopFunc: func(ctx context.Context) error {
			if a.stopTracing == nil {
				return nil
			}
			return a.stopTracing(ctx)
		},
	})
	a.startup.AddDependency(startup.Dependency{
		Name:      "database",
		Requires:  []string{"tracing"},
		StartFunc: a.startDatabase,
		StopFunc:  a.stopDatabase,
	})
	a.startup.AddDependency(startup.Dependency{
		Name:      "migrations",
		Requires:  []string{"database"},
		StartFunc: a.migrate,
	})
	if target == stageMigrate {
		return a
	}

	engineRequires := []string{"metadata"}
	if cfg.DataStore == config.DataStoreGraph {
		engineRequires = append(engineRequires, "graph")
		a.startup.AddDependency(startup.Dependency{
			Name:      "graph",
			StartFunc: a.startGraph,
			StopFunc:  a.stopGraph,
		})
	}
	a.startup.AddDependency(startup.Dependency{
		Name:      "metadata",
		Requires:  []string{"migrations"},
		StartFunc: a.loadMetadata,
	})
	a.startup.AddDependency(startup.Dependency{
		Name:      "engine",
		Requires:  engineRequires,
		StartFunc: a.buildEngine,
	})
	if target == stageEngine {
		return a
	}

	a.startup.AddDependency(startup.Dependency{
		Name:      "server",
		Requires:  []string{"engine"},
		StartFunc: a.startServer,
		StopFunc:  a.stopServer,
	})
	return a
}

func (a *app) start(ctx context.Context) error {
	return a.startup.Start(ctx)
}

func (a *app) stop(ctx context.Context) {
	a.health.SetReady(false)
	if err := a.startup.Stop(ctx); err != nil {
		a.logger.WithError(err).Error("Failed to stop cleanly")
	}
}

func (a *app) startTracing(ctx context.Context) error {
	shutdown, err := tracing.Setup(ctx, a.cfg.AppName, a.cfg.OTLP())
	if err != nil {
		return err
	}
	a.stopTracing = shutdown
	return nil
}

func (a *app) startDatabase(ctx context.Context) error {
	instance, err := database.Open(ctx, a.cfg.Database(), a.logger)
	if err != nil {
		return err
	}
	a.db = instance
	a.health.AddCheck("database", instance.PingContext)
	return nil
}

func (a *app) stopDatabase(_ context.Context) error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *app) migrate(_ context.Context) error {
	if a.stage != stageMigrate && !a.cfg.DatabaseMigrateOnStart {
		a.logger.Info("Skipping database migrations")
		return nil
	}
	migrator := database.NewMigrator(a.cfg.Migration(), db.Postgres, db.PostgresDir, a.logger)
	return migrator.Migrate(a.db.DB.DB, a.cfg.DatabaseName)
}

func (a *app) startGraph(ctx context.Context) error {
	client, err := graph.NewClient(a.cfg.Graph(), a.logger)
	if err != nil {
		return err
	}
	if err := client.VerifyConnectivity(ctx); err != nil {
		_ = client.Close(ctx)
		return fmt.Errorf("failed to reach graph database: %w", err)
	}
	a.graphClient = client
	a.health.AddCheck("graph", client.VerifyConnectivity)
	return nil
}

func (a *app) stopGraph(ctx context.Context) error {
	if a.graphClient == nil {
		return nil
	}
	return a.graphClient.Close(ctx)
}

// loadMetadata builds the entity graph and capability config from entity_types.
func (a *app) loadMetadata(ctx context.Context) error {
	repo := entitytype.NewRepository(a.db, a.logger)

	g, err := entitygraph.Load(ctx, repo, a.logger)
	if err != nil {
		return err
	}

	caps := capability.NewConfig()
	caps.MaxDepth = a.cfg.MaxRelationDepth
	caps.MaximumLimit = a.cfg.DefaultMaximumLimit
	caps.DefaultLimit = a.cfg.DefaultPageLimit
	if err := repo.LoadCapabilities(ctx, &caps); err != nil {
		return err
	}

	a.entityGraph = g
	a.capabilities = caps
	return nil
}

func (a *app) dataStore() (query.DataStore, error) {
	switch a.cfg.DataStore {
	case config.DataStoreGraph:
		return graph.NewStore(a.graphClient, a.entityGraph, a.logger), nil
	case config.DataStoreMemory:
		store := memory.NewStore(a.logger)
		if a.cfg.MemorySeedPath != "" {
			if err := store.LoadSeedFile(a.cfg.MemorySeedPath, a.entityGraph); err != nil {
				return nil, err
			}
		}
		return store, nil
	default:
		return postgres.NewStore(a.db, a.entityGraph, a.logger), nil
	}
}

// buildEngine runs the build phase. A fresh registry is used on every attempt.
func (a *app) buildEngine(_ context.Context) error {
	store, err := a.dataStore()
	if err != nil {
		return err
	}

	builder := engine.NewBuilder(
		a.entityGraph,
		a.capabilities,
		capability.NewResolverRegistry(),
		enum.NewRegistry(a.logger),
		format.NewRegistry(),
		store,
		a.logger,
	)
	if err := builder.BuildAll(); err != nil {
		return err
	}
	builder.Finish()

	a.builder = builder
	a.logger.WithFields(map[string]any{
		"store":      a.cfg.DataStore,
		"entities":   len(a.entityGraph.Entities()),
		"operations": len(builder.Operations()),
	}).Info("Read engine ready")
	return nil
}

func (a *app) startServer(ctx context.Context) error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(a.logger)

	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: a.cfg.AllowOrigins}))
	e.Use(otelecho.Middleware(a.cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(a.logger))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	a.health.RegisterRoutes(e)
	api := e.Group("/api/v1")
	if a.cfg.AuthEnabled {
		verifier, err := middleware.NewOIDCVerifier(ctx, a.cfg.AuthIssuerURL, a.cfg.AuthClientID)
		if err != nil {
			return err
		}
		api.Use(middleware.Authentication(a.logger, verifier))
	}
	read.NewHandler(a.builder, a.logger).Register(api)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		ReadTimeout:       time.Duration(a.cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(a.cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(a.cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(a.cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}

	go func() {
		if err := e.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("HTTP server stopped")
			a.health.SetReady(false)
		}
	}()

	a.server = e
	a.health.SetReady(true)
	a.logger.WithField("port", a.cfg.Port).Info("HTTP server listening")
	return nil
}

func (a *app) stopServer(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}
