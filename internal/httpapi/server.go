package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cx-go/internal/config"
	"cx-go/internal/cx"
)

const shutdownTimeout = 10 * time.Second

// NewServer wraps h with recovery, request logging and CORS and returns an
// http.Server listening on cfg.Addr.
func NewServer(cfg config.ServerConfig, h *Handler, logger cx.Logger) *http.Server {
	var handler http.Handler = h.Routes()
	handler = RequestLogger(logger)(handler)
	handler = Recovery(logger)(handler)
	handler = CORS(cfg.CORSOrigins)(handler)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, srv *http.Server, logger cx.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
