// Command migrate rewrites every persisted feature history in the current
// schema: deprecated columns are dropped, new columns are added, and window
// features are recomputed. Histories already current are rewritten unchanged.
//
// Usage:
//
//	go run ./cmd/migrate -dir data_store
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/wildfire-feature-store/internal/config"
	"github.com/couchcryptid/wildfire-feature-store/internal/history"
	"github.com/couchcryptid/wildfire-feature-store/internal/observability"
)

func main() {
	dir := flag.String("dir", "", "history directory (default $HISTORY_DIR or data_store)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *dir != "" {
		cfg.HistoryDir = *dir
	}
	logger := observability.NewLogger(cfg)

	store, err := history.New(history.Layout{Root: cfg.HistoryDir}, history.Options{
		Window: cfg.HistoryWindow,
		Logger: logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	keys, err := store.Keys()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	migrated, failed := 0, 0
	for _, key := range keys {
		existed, err := store.Migrate(ctx, key)
		if err != nil {
			logger.Error("migration failed", "location", key, "error", err)
			failed++
			continue
		}
		if !existed {
			logger.Warn("history vanished before migration", "location", key)
			continue
		}
		migrated++
		logger.Info("history migrated", "location", key)
	}

	fmt.Printf("migrated %d of %d histories\n", migrated, len(keys))
	if failed > 0 {
		os.Exit(1)
	}
}
