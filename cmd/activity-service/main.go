package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/neuralforge/platform/pkg/activity"
	"github.com/neuralforge/platform/pkg/api/middleware"
	"github.com/neuralforge/platform/pkg/api/routes"
	"github.com/neuralforge/platform/pkg/common/config"
	"github.com/neuralforge/platform/pkg/common/database"
	"github.com/neuralforge/platform/pkg/common/kafka"
	"github.com/neuralforge/platform/pkg/common/logger"
)

func main() {
	logger.Init()
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := activity.NewFeed(database.GetRedis(cfg), cfg.ActivityFeedLimit)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.EventsTopic, cfg.KafkaGroupID)
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		if err := consumer.Consume(ctx, feed.Record); err != nil && ctx.Err() == nil {
			logger.Log.WithError(err).Error("Event consumer stopped")
		}
	}()

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	routes.RegisterHealth(router, nil)
	activity.NewHandler(feed).Register(router.PathPrefix("/api/v1").Subrouter())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ActivityPort),
		Handler:      middleware.CORS(cfg.CallerHeader)(router),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":  cfg.ServerHost,
			"port":  cfg.ActivityPort,
			"topic": cfg.EventsTopic,
		}).Info("Activity Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Activity Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}
	cancel()
	<-consumed
	if err := consumer.Close(); err != nil {
		logger.Log.WithError(err).Warn("Failed to close consumer")
	}
	if err := database.CloseRedis(); err != nil {
		logger.Log.WithError(err).Warn("Failed to close redis")
	}

	logger.Log.Info("Activity Service stopped")
}
