package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neuralforge/platform/pkg/account"
	"github.com/neuralforge/platform/pkg/api/routes"
	"github.com/neuralforge/platform/pkg/common/config"
	"github.com/neuralforge/platform/pkg/common/database"
	"github.com/neuralforge/platform/pkg/common/kafka"
	"github.com/neuralforge/platform/pkg/common/logger"
	"github.com/neuralforge/platform/pkg/events"
	"github.com/neuralforge/platform/pkg/forge"
	"github.com/neuralforge/platform/pkg/genesis"
	"github.com/neuralforge/platform/pkg/store"
)

const eventSource = "forge-service"

func main() {
	logger.Init()
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to open state store")
	}

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.EventsTopic, eventSource)
	dispatcher := events.NewDispatcher(events.LogSink(), producer)
	dispatcher.Start(ctx)

	opts := forge.Options{
		TrainerOnlySubmissions: cfg.TrainerOnlySubmissions,
		Dispatcher:             dispatcher,
	}
	engine, err := loadEngine(ctx, cfg, st, opts)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialize engine")
	}

	snapshotter := store.NewSnapshotter(engine, st, cfg.SnapshotInterval)
	go snapshotter.Run(ctx)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      routes.NewRouter(engine, cfg),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":    cfg.ServerHost,
			"port":    cfg.ServerPort,
			"backend": cfg.StateBackend,
			"version": engine.Version(),
		}).Info("Forge Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Forge Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}
	if _, err := snapshotter.Flush(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Final snapshot failed")
	}
	dispatcher.Close()
	cancel()
	if err := producer.Close(); err != nil {
		logger.Log.WithError(err).Warn("Failed to close event producer")
	}
	if cfg.StateBackend == config.BackendPostgres {
		if err := database.ClosePostgres(); err != nil {
			logger.Log.WithError(err).Warn("Failed to close postgres")
		}
	}

	logger.Log.Info("Forge Service stopped")
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StateBackend {
	case config.BackendMemory:
		return store.NewMemory(), nil
	case config.BackendFile:
		return store.NewFileStore(cfg.SnapshotPath), nil
	case config.BackendPostgres:
		db, err := database.GetPostgres(cfg)
		if err != nil {
			return nil, err
		}
		repo := store.NewRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("migrate state tables: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.StateBackend)
	}
}

// loadEngine restores the saved state, or starts a fresh engine seeded
// from the genesis file when nothing has been saved yet.
func loadEngine(ctx context.Context, cfg *config.Config, st store.Store, opts forge.Options) (*forge.Engine, error) {
	saved, err := st.Load(ctx)
	if err == nil {
		engine, err := forge.Restore(saved, opts)
		if err != nil {
			return nil, err
		}
		logger.Log.WithField("seq", saved.Seq).Info("Restored engine state")
		return engine, nil
	}
	if !errors.Is(err, store.ErrNoSnapshot) {
		return nil, fmt.Errorf("load state: %w", err)
	}

	var plan *genesis.Plan
	if cfg.GenesisFile != "" {
		file, err := genesis.Load(cfg.GenesisFile)
		if err != nil {
			return nil, fmt.Errorf("load genesis: %w", err)
		}
		if plan, err = file.Resolve(); err != nil {
			return nil, err
		}
		opts.Admin = plan.Admin
	} else {
		admin, err := account.Normalize(cfg.AdminAccount)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_ACCOUNT: %w", err)
		}
		opts.Admin = admin
	}

	engine, err := forge.New(opts)
	if err != nil {
		return nil, err
	}
	if plan != nil {
		n, err := plan.Apply(engine)
		if err != nil {
			return nil, fmt.Errorf("apply genesis: %w", err)
		}
		logger.Log.WithField("events", n).Info("Applied genesis")
	}
	if err := st.Save(ctx, engine.Snapshot()); err != nil {
		return nil, fmt.Errorf("save initial state: %w", err)
	}
	logger.Log.WithField("admin", opts.Admin.String()).Info("Started engine from empty state")
	return engine, nil
}
