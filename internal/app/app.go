// Package app assembles and runs the boostsync bot: the gateway connection,
// the event dispatcher, the vanity poller and the HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/boostsync/internal/api"
	"github.com/stacklok/boostsync/internal/config"
	"github.com/stacklok/boostsync/internal/telemetry"
)

// App encapsulates everything needed to run the bot
type App struct {
	config     *config.Config
	components *Components
	httpServer *http.Server
	telemetry  *telemetry.Telemetry
}

// Start runs the dispatcher, the gateway, the poller, the HTTP server and,
// when enabled, one bulk reconciliation pass. It blocks until ctx is
// cancelled or one of the long-running parts fails.
func (a *App) Start(ctx context.Context, shutdownTimeout time.Duration) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return a.components.Dispatcher.Run(gctx)
	})

	g.Go(func() error {
		return api.Serve(gctx, a.httpServer, shutdownTimeout)
	})

	if err := a.components.Gateway.Open(gctx, a.components.Dispatcher); err != nil {
		cancel()
		return errors.Join(fmt.Errorf("failed to open gateway: %w", err), g.Wait())
	}
	slog.Info("Gateway connection opened")

	g.Go(func() error {
		return a.components.Poller.Start(gctx)
	})

	if a.config.Reconcile.ShouldReconcileOnStartup() {
		g.Go(func() error {
			summary, err := a.components.Reconciler.ReconcileAll(gctx)
			if err != nil {
				// A failed bulk pass leaves live events working
				slog.Error("Startup reconciliation failed", "error", err)
				return nil
			}
			slog.Info("Startup reconciliation complete",
				"scanned", summary.Scanned,
				"in_target", summary.InTarget,
				"mutations", summary.Mutations,
				"failures", summary.Failures)
			return nil
		})
	}

	return g.Wait()
}

// Stop closes the gateway and flushes telemetry. Start's context must be
// cancelled first.
func (a *App) Stop(timeout time.Duration) error {
	slog.Info("Shutting down")

	var errs []error
	if err := a.components.Poller.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop vanity poller: %w", err))
	}
	if err := a.components.Gateway.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close gateway: %w", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.telemetry.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shutdown telemetry: %w", err))
	}

	slog.Info("Shutdown complete")
	return errors.Join(errs...)
}

// GetConfig returns the application configuration
func (a *App) GetConfig() *config.Config {
	return a.config
}

// GetHTTPServer returns the HTTP server
func (a *App) GetHTTPServer() *http.Server {
	return a.httpServer
}

// GetComponents returns the running components
func (a *App) GetComponents() *Components {
	return a.components
}
