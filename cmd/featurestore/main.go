package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/joho/godotenv"

	httpadapter "github.com/couchcryptid/wildfire-feature-store/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/wildfire-feature-store/internal/adapter/kafka"
	"github.com/couchcryptid/wildfire-feature-store/internal/config"
	"github.com/couchcryptid/wildfire-feature-store/internal/history"
	"github.com/couchcryptid/wildfire-feature-store/internal/observability"
	"github.com/couchcryptid/wildfire-feature-store/internal/pipeline"
)

func main() {
	_ = godotenv.Load(".env.local")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	store, err := history.New(history.Layout{Root: cfg.HistoryDir}, history.Options{
		Window:  cfg.HistoryWindow,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		logger.Error("failed to open history store", "error", err)
		os.Exit(1)
	}
	logger.Info("history store opened", "dir", cfg.HistoryDir, "window", store.Window())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		ready  sharedobs.ReadinessChecker = store
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
	)

	if cfg.PipelineEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		transformer := pipeline.NewTransformer(store, nil, logger)

		p := pipeline.New(reader, transformer, writer, nil, logger, metrics, cfg.BatchSize)
		ready = p

		// Start ingestion pipeline.
		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	} else {
		logger.Info("kafka pipeline disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, store, ready, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
