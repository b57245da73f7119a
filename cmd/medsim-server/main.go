// Package main is the entry point for the MedSim ER shift server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MRamiBalles/medsim/internal/domain/clinical"
	"github.com/MRamiBalles/medsim/internal/domain/rules"
	"github.com/MRamiBalles/medsim/internal/engine"
	"github.com/MRamiBalles/medsim/internal/infra/storage"
	"github.com/MRamiBalles/medsim/internal/network"
	"github.com/MRamiBalles/medsim/internal/platform/config"
	"github.com/MRamiBalles/medsim/internal/platform/logger"
	"github.com/MRamiBalles/medsim/internal/platform/metrics"
	"github.com/MRamiBalles/medsim/internal/platform/otel"
	"github.com/MRamiBalles/medsim/internal/platform/random"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("medsim-server: %v", err)
	}

	// Flags override the environment.
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	flag.StringVar(&cfg.Store, "store", cfg.Store, "save store: memory, sqlite, bolt or postgres")
	flag.StringVar(&cfg.SQLitePath, "sqlite", cfg.SQLitePath, "SQLite database path")
	flag.StringVar(&cfg.BoltPath, "bolt", cfg.BoltPath, "bbolt database path")
	flag.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "Postgres connection URL")
	flag.StringVar(&cfg.CasesPath, "cases", cfg.CasesPath, "case catalog JSON file (empty uses built-in cases)")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "RNG seed (0 picks one)")
	flag.StringVar(&cfg.Mode, "mode", cfg.Mode, "session mode: shift or training")
	flag.StringVar(&cfg.OtelEndpoint, "otel-endpoint", cfg.OtelEndpoint, "OTLP/HTTP traces endpoint (empty disables tracing)")
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		config.Exitf("medsim-server: %v", err)
	}

	appLogger := logger.NewLogger()
	collector := metrics.NewCollector()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, "medsim-server", cfg.OtelEndpoint)
	if err != nil {
		appLogger.Error("tracing disabled", "err", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTracing(flushCtx)
	}()

	appLogger.Info("opening save store", "store", cfg.Store)
	store, closer, err := openStore(ctx, cfg)
	if err != nil {
		appLogger.Error("failed to open save store", "store", cfg.Store, "err", err)
		os.Exit(1)
	}
	defer closer.Close()

	catalog, usedDefaults, err := clinical.LoadCatalog(cfg.CasesPath)
	if err != nil {
		appLogger.Warn("case catalog unavailable, using built-in cases", "path", cfg.CasesPath, "err", err)
	}
	appLogger.Info("case catalog loaded", "cases", catalog.Len(), "defaults", usedDefaults)

	rng, err := random.NewRand(cfg.Seed)
	if err != nil {
		appLogger.Error("failed to seed RNG", "err", err)
		os.Exit(1)
	}

	appLogger.Info("bootstrapping engine")
	gameEngine := engine.NewEngine(engine.Options{
		Settings: cfg.Sim,
		Catalog:  catalog,
		Saver:    storage.NewSaveManager(store, appLogger, collector),
		Logger:   appLogger,
		Metrics:  collector,
		Rand:     rng,
		Mode:     rules.ParseMode(cfg.Mode),
	})
	if gameEngine.Boot() {
		appLogger.Info("saved progress restored")
	}

	ticker := engine.NewTicker(gameEngine, appLogger)
	go ticker.Start(ctx)
	defer ticker.Stop()

	appLogger.Info("bootstrapping websocket hub")
	hub := network.NewHub(gameEngine, &cfg.Net, appLogger, collector)
	go hub.Run(ctx)

	api := network.NewAPI(gameEngine, hub, appLogger, collector)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info("HTTP API & WS server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("graceful shutdown failed", "err", err)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// openStore builds the save store named in cfg and returns what must be
// closed on shutdown.
func openStore(ctx context.Context, cfg config.Config) (storage.SaveStore, io.Closer, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return storage.NewMemorySaveStore(), closerFunc(func() error { return nil }), nil
	case config.StoreSQLite:
		db, err := storage.InitSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		// SQLite serialises writers; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
		return storage.NewSQLiteSaveStore(db), db, nil
	case config.StoreBolt:
		bs, err := storage.OpenBolt(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return bs, bs, nil
	case config.StorePostgres:
		db, err := storage.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		db.SetMaxOpenConns(cfg.Net.DBMaxOpenConns)
		db.SetMaxIdleConns(cfg.Net.DBMaxIdleConns)
		return storage.NewPostgresSaveStore(db), db, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}
