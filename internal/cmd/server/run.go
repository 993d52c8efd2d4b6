// Package serverrun exposes the shared Run entrypoint the CLI uses to start
// the trace API: open the backend, build the four collection stores and the
// composer, and serve HTTP until the context is cancelled.
package serverrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nigoertz/demo-cosmos-api/internal/config"
	httpserver "github.com/nigoertz/demo-cosmos-api/internal/server/http"
	tracesvc "github.com/nigoertz/demo-cosmos-api/internal/services/traces"
	pebblestore "github.com/nigoertz/demo-cosmos-api/internal/storage/pebble"
	"github.com/nigoertz/demo-cosmos-api/internal/store"
)

// Options configures a server run.
type Options struct {
	Config config.Config
	Logger zerolog.Logger
}

// Run starts the HTTP server and blocks until ctx is cancelled. A backend
// that cannot be opened fails the whole start; there is no degraded mode.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return err
	}
	fsync, err := pebblestore.ParseFsyncMode(cfg.Fsync)
	if err != nil {
		return err
	}

	logger := opts.Logger
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir: filepath.Join(cfg.DataDir, "store"),
		Fsync:   fsync,
	})
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	defer db.Close()

	stores, err := BuildStores(db, cfg, logger)
	if err != nil {
		return err
	}
	traces := tracesvc.New(stores.Transactions, stores.Steps, stores.Snapshots)
	srv := httpserver.New(cfg, stores, traces, logger)
	defer srv.Close()

	logger.Info().
		Str("http", cfg.HTTPAddr).
		Str("data_dir", cfg.DataDir).
		Int("transactions_capacity", cfg.Collections.Transactions.Capacity).
		Int("steps_capacity", cfg.Collections.Steps.Capacity).
		Int("snapshots_capacity", cfg.Collections.Snapshots.Capacity).
		Int("logs_capacity", cfg.Collections.Logs.Capacity).
		Msg("starting trace API server")

	if err := srv.ListenAndServe(sctx, cfg.HTTPAddr); err != nil && sctx.Err() == nil {
		return err
	}
	// Brief delay so final log lines flush before the process exits.
	time.Sleep(50 * time.Millisecond)
	return nil
}

// BuildStores constructs the four bounded collections over one backend
// handle. Transactions rank by start time, steps and snapshots by creation
// time, logs by backend insertion order.
func BuildStores(db *pebblestore.DB, cfg config.Config, logger zerolog.Logger) (httpserver.Stores, error) {
	mk := func(name string, limits config.Limits, orderField string) (*store.Store, error) {
		return store.New(db, logger, store.Options{
			Name:              name,
			Capacity:          limits.Capacity,
			EvictionChunkSize: limits.EvictionChunkSize,
			OrderField:        orderField,
		})
	}

	var stores httpserver.Stores
	var err error
	if stores.Transactions, err = mk("transactions", cfg.Collections.Transactions, "start"); err != nil {
		return httpserver.Stores{}, err
	}
	if stores.Steps, err = mk("steps", cfg.Collections.Steps, "createdAt"); err != nil {
		return httpserver.Stores{}, err
	}
	if stores.Snapshots, err = mk("snapshots", cfg.Collections.Snapshots, "createdAt"); err != nil {
		return httpserver.Stores{}, err
	}
	if stores.Logs, err = mk("logs", cfg.Collections.Logs, ""); err != nil {
		return httpserver.Stores{}, err
	}
	return stores, nil
}
