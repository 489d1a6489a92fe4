// Command update appends one merged observation to a location's feature
// history and prints the resulting window as JSON. It is the offline
// counterpart of the service's POST /v1/locations/{location}/observations.
//
// Usage:
//
//	go run ./cmd/update -dir data_store -location "Los Angeles" -file obs.json
//	echo '{"MAX_TEMP":90,...}' | go run ./cmd/update -location LA
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/wildfire-feature-store/internal/config"
	"github.com/couchcryptid/wildfire-feature-store/internal/domain"
	"github.com/couchcryptid/wildfire-feature-store/internal/history"
	"github.com/couchcryptid/wildfire-feature-store/internal/observability"
)

func main() {
	dir := flag.String("dir", "", "history directory (default $HISTORY_DIR or data_store)")
	location := flag.String("location", "", "location name; empty selects the default history")
	file := flag.String("file", "", "observation JSON file; reads stdin when empty")
	window := flag.Int("window", 0, "rows kept per location (default $HISTORY_WINDOW or 7)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *dir != "" {
		cfg.HistoryDir = *dir
	}
	if *window != 0 {
		cfg.HistoryWindow = *window
	}
	logger := observability.NewLogger(cfg)

	data, err := readInput(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	obs, err := domain.ParseObservation(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

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

	records, err := store.Update(ctx, *location, obs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func readInput(path string) ([]byte, error) {
	if path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
