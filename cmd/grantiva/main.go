// grantiva is a command-line client for the Grantiva API, built on the
// Go SDK. Settings come from .env, GRANTIVA_CONFIG_FILE and GRANTIVA_*
// variables; flags override them.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/grantiva/grantiva-go"
	"github.com/grantiva/grantiva-go/internal/token"
)

type command struct {
	usage string
	args  int
	run   func(ctx context.Context, c *grantiva.Client, f *cliFlags, args []string) (any, error)
}

// cliFlags holds the flags read by individual commands.
type cliFlags struct {
	status string
	sort   string
	page   int
	per    int
	email  string
}

var commands = map[string]command{
	"validate": {"validate", 0, func(ctx context.Context, c *grantiva.Client, _ *cliFlags, _ []string) (any, error) {
		return c.ValidateAttestation(ctx)
	}},
	"refresh": {"refresh", 0, func(ctx context.Context, c *grantiva.Client, _ *cliFlags, _ []string) (any, error) {
		return c.RefreshToken(ctx)
	}},
	"token": {"token", 0, func(ctx context.Context, c *grantiva.Client, _ *cliFlags, _ []string) (any, error) {
		raw, err := c.CurrentToken(ctx)
		if err != nil {
			return nil, err
		}
		if raw == "" {
			return nil, errors.New("no valid token stored; run validate first")
		}
		info, err := token.Inspect(raw, time.Now())
		if err != nil && !errors.Is(err, grantiva.ErrTokenExpired) {
			return nil, err
		}
		return info, nil
	}},
	"clear": {"clear", 0, func(ctx context.Context, c *grantiva.Client, _ *cliFlags, _ []string) (any, error) {
		return nil, c.ClearStoredData(ctx)
	}},
	"features": {"features [--status s] [--sort votes|newest|oldest] [--page n] [--per n]", 0, func(ctx context.Context, c *grantiva.Client, f *cliFlags, _ []string) (any, error) {
		q := grantiva.FeatureQuery{Sort: f.sort, Page: f.page, PerPage: f.per}
		if f.status != "" {
			status := grantiva.FeatureRequestStatus(f.status)
			if !status.Valid() {
				return nil, fmt.Errorf("unknown status %q", f.status)
			}
			q.Status = &status
		}
		return c.Feedback().GetFeatureRequests(ctx, q)
	}},
	"feature": {"feature <id>", 1, func(ctx context.Context, c *grantiva.Client, _ *cliFlags, args []string) (any, error) {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return nil, err
		}
		return c.Feedback().GetFeatureRequest(ctx, id)
	}},
	"submit-feature": {"submit-feature <title> <description>", 2, func(ctx context.Context, c *grantiva.Client, _ *cliFlags, args []string) (any, error) {
		return c.Feedback().SubmitFeatureRequest(ctx, args[0], args[1])
	}},
	"vote": {"vote <id>", 1, func(ctx context.Context, c *grantiva.Client, _ *cliFlags, args []string) (any, error) {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return nil, err
		}
		return c.Feedback().Vote(ctx, id)
	}},
	"unvote": {"unvote <id>", 1, func(ctx context.Context, c *grantiva.Client, _ *cliFlags, args []string) (any, error) {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return nil, err
		}
		return nil, c.Feedback().RemoveVote(ctx, id)
	}},
	"comments": {"comments <id>", 1, func(ctx context.Context, c *grantiva.Client, _ *cliFlags, args []string) (any, error) {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return nil, err
		}
		return c.Feedback().GetComments(ctx, id)
	}},
	"comment": {"comment <id> <body>", 2, func(ctx context.Context, c *grantiva.Client, _ *cliFlags, args []string) (any, error) {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return nil, err
		}
		return c.Feedback().AddComment(ctx, id, args[1])
	}},
	"tickets": {"tickets", 0, func(ctx context.Context, c *grantiva.Client, _ *cliFlags, _ []string) (any, error) {
		return c.Feedback().GetUsersTickets(ctx)
	}},
	"ticket": {"ticket <id>", 1, func(ctx context.Context, c *grantiva.Client, _ *cliFlags, args []string) (any, error) {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return nil, err
		}
		return c.Feedback().GetTicket(ctx, id)
	}},
	"submit-ticket": {"submit-ticket <subject> <body> [--email addr]", 2, func(ctx context.Context, c *grantiva.Client, f *cliFlags, args []string) (any, error) {
		return c.Feedback().SubmitTicket(ctx, args[0], args[1], &f.email)
	}},
	"reply": {"reply <id> <body>", 2, func(ctx context.Context, c *grantiva.Client, _ *cliFlags, args []string) (any, error) {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return nil, err
		}
		return c.Feedback().Reply(ctx, id, args[1])
	}},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		if kind := grantiva.KindOf(err); kind != 0 {
			fmt.Fprintf(os.Stderr, "error (%s): %v\n", kind, err)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// run parses args, executes one command and writes its result to stdout
// as indented JSON. opts are passed to grantiva.New.
func run(ctx context.Context, argv []string, stdout io.Writer, opts ...grantiva.Option) error {
	cfg, err := grantiva.LoadConfig()
	if err != nil {
		return err
	}

	var userID string
	var f cliFlags
	flags := pflag.NewFlagSet("grantiva", pflag.ContinueOnError)
	flags.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "API base URL")
	flags.StringVar(&cfg.TeamID, "team-id", cfg.TeamID, "Apple team id")
	flags.StringVar(&cfg.BundleID, "bundle-id", cfg.BundleID, "app bundle id")
	flags.StringVar(&cfg.APIKey, "api-key", cfg.APIKey, "API key; skips attestation")
	flags.StringVar(&cfg.Storage, "storage", cfg.Storage, "secure storage backend: memory, postgres or redis")
	flags.StringVarP(&userID, "user", "u", "", "identify as this user for feedback commands")
	flags.StringVar(&f.status, "status", "", "filter features by status")
	flags.StringVar(&f.sort, "sort", "", "feature sort order")
	flags.IntVar(&f.page, "page", 0, "feature page")
	flags.IntVar(&f.per, "per", 0, "features per page")
	flags.StringVar(&f.email, "email", "", "contact email for submit-ticket")
	flags.Usage = func() { printUsage(flags) }
	if err := flags.Parse(argv); err != nil {
		return err
	}

	args := flags.Args()
	if len(args) == 0 {
		printUsage(flags)
		return errors.New("missing command")
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}
	if len(args)-1 != cmd.args {
		return fmt.Errorf("usage: grantiva %s", cmd.usage)
	}

	client, err := grantiva.New(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer client.Close()

	if userID != "" {
		client.Identify(userID, nil)
	}

	out, err := cmd.run(ctx, client, &f, args[1:])
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printUsage(flags *pflag.FlagSet) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Usage: grantiva [flags] <command> [args]\n\nCommands:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %s\n", commands[name].usage)
	}
	b.WriteString("\nFlags:\n")
	fmt.Fprint(os.Stderr, b.String())
	flags.SetOutput(os.Stderr)
	flags.PrintDefaults()
}
