// Package app wires the edge node together.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/fireline/fireline/internal/edge/api"
	"github.com/fireline/fireline/internal/edge/config"
	"github.com/fireline/fireline/internal/edge/dedup"
	"github.com/fireline/fireline/internal/edge/dispatch"
	"github.com/fireline/fireline/internal/edge/state"
)

// Edge is the assembled edge node: state store, dedup window, dispatcher,
// and HTTP listener.
type Edge struct {
	cfg        *config.Config
	store      *state.Store
	dedup      *dedup.Table
	dispatcher *dispatch.Dispatcher
	apiServer  *api.Server
}

// New builds an edge node from configuration.
func New(cfg *config.Config) *Edge {
	store := state.NewStore()
	table := dedup.New(cfg.DedupTTL)
	dispatcher := dispatch.New(store, table)
	apiServer := api.NewServer(cfg.Addr(), dispatcher, store)

	return &Edge{
		cfg:        cfg,
		store:      store,
		dedup:      table,
		dispatcher: dispatcher,
		apiServer:  apiServer,
	}
}

// Start runs the listener until ctx is cancelled, then drains it.
func (e *Edge) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.apiServer.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.apiServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("listener shutdown", "error", err)
		}
		return nil
	}
}

// Close releases background resources.
func (e *Edge) Close() {
	e.dedup.Close()
}
