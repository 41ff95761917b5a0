package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	httpx "github.com/glhm/console/internal/http"
)

// NewHTTPHandler builds the console HTTP handler for c.
func NewHTTPHandler(c *Console) http.Handler {
	services := httpx.RouterServices{
		Session: &httpx.SessionHandlers{
			Svc:    c.Session,
			Router: c.Router,
			Images: c.Images,
			Logger: c.Logger,
		},
		Metrics: c.Metrics.Handler,
		Logger:  c.Logger,
	}
	if c.Config.Console.CSRF {
		services.CSRF = &httpx.CSRFConfig{CookieDomain: c.Config.Console.CSRFCookieDomain}
	}
	return httpx.NewRouter(services)
}

// Serve runs the console HTTP server on ln until ctx is done, then shuts it
// down gracefully.
func Serve(ctx context.Context, c *Console, ln net.Listener) error {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	server := &http.Server{
		Handler:           NewHTTPHandler(c),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "starting console server", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, open := <-errCh:
		if open {
			return fmt.Errorf("console server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down console server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.Config.Console.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown console server: %w", err)
	}
	logger.Info("console server stopped")
	return nil
}

// ListenAndServe listens on the configured console address and serves.
func ListenAndServe(ctx context.Context, c *Console) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", c.Config.Console.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", c.Config.Console.Addr, err)
	}
	return Serve(ctx, c, ln)
}
