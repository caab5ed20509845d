package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	stdhttp "net/http"
	"time"

	"github.com/grantiva/grantiva-go/internal/config"
	"github.com/grantiva/grantiva-go/internal/sandbox"
)

const shutdownTimeout = 10 * time.Second

// SandboxConfig builds the sandbox tenant from the SDK configuration, so
// an SDK pointed at the sandbox with the same settings authenticates.
func SandboxConfig(cfg *config.Config) sandbox.Config {
	return sandbox.Config{
		TeamID:       cfg.TeamID,
		BundleID:     cfg.BundleID,
		APIKey:       cfg.APIKey,
		JWTSecret:    cfg.SandboxJWTSecret,
		TokenTTL:     cfg.SandboxTokenTTL(),
		CustomClaims: map[string]string{"environment": "sandbox"},
	}
}

// Run serves the sandbox until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, sb sandbox.Config) error {
	srv := &stdhttp.Server{
		Addr:              ":" + cfg.SandboxPort,
		Handler:           NewRouter(RouterConfig{Sandbox: sandbox.New(sb)}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Sandbox] listening on %s app_id=%s.%s", srv.Addr, sb.TeamID, sb.BundleID)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, stdhttp.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("sandbox server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Printf("[Sandbox] stopped")
	return nil
}
