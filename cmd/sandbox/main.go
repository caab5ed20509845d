// sandbox serves an in-memory Grantiva API for local development. It
// accepts software attestations for the configured team and bundle ids.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/grantiva/grantiva-go/internal/config"
	transporthttp "github.com/grantiva/grantiva-go/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		log.Fatalf("Sandbox failed: %v", err)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	flags := pflag.NewFlagSet("sandbox", pflag.ContinueOnError)
	flags.StringVarP(&cfg.SandboxPort, "port", "p", cfg.SandboxPort, "listen port")
	flags.StringVar(&cfg.TeamID, "team-id", cfg.TeamID, "accepted team id")
	flags.StringVar(&cfg.BundleID, "bundle-id", cfg.BundleID, "accepted bundle id")
	flags.StringVar(&cfg.APIKey, "api-key", cfg.APIKey, "accepted API key (empty disables API key auth)")
	flags.IntVar(&cfg.SandboxTokenTTLSeconds, "token-ttl", cfg.SandboxTokenTTLSeconds, "session token lifetime in seconds")
	noFeedback := flags.Bool("no-feedback", false, "answer every feedback route with feedback_not_available")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}
	if cfg.BundleID == "" && cfg.APIKey == "" {
		return fmt.Errorf("either --bundle-id or --api-key is required")
	}

	sb := transporthttp.SandboxConfig(cfg)
	sb.FeedbackDisabled = *noFeedback

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return transporthttp.Run(ctx, cfg, sb)
}
