package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/rosterload/internal/config"
)

// Serve runs the HTTP API until ctx is cancelled, then stops accepting
// requests and waits up to the shutdown timeout for running imports.
func Serve(ctx context.Context, cfg *config.Config) error {
	a, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	server := a.Server()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		a.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// The HTTP server drains while imports finish. Closing the service
	// ends progress streams and result waits so their connections go idle.
	httpDone := make(chan error, 1)
	go func() {
		httpDone <- server.Shutdown(shutdownCtx)
	}()

	err = a.Service.Shutdown(shutdownCtx)
	if httpErr := <-httpDone; httpErr != nil {
		slog.Error("shutdown error", "error", httpErr)
	}
	a.Close()
	if err != nil {
		slog.Warn("imports did not complete in time", "error", err)
		return err
	}
	slog.Info("shutdown complete")
	return nil
}
