// toolchat is a terminal chat client: prompts go to a hosted model, which may call
// local file tools and web search before answering.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/hattiebot/toolchat/internal/config"
	"github.com/hattiebot/toolchat/internal/logging"
	"github.com/hattiebot/toolchat/internal/session"
	"github.com/hattiebot/toolchat/internal/shell"
	"github.com/hattiebot/toolchat/internal/wiring"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("toolchat", pflag.ContinueOnError)
	cfg, err := config.Load(fs, args)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := wiring.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	if !app.AIEnabled {
		fmt.Fprintln(os.Stderr, "warning: no API key configured for provider "+cfg.Provider+"; AI features are disabled.")
	}
	log.Info().
		Str("provider", cfg.Provider).
		Str("workspace", cfg.WorkspaceDir).
		Strs("tools", app.Tools.Names()).
		Msg("ready")

	sh := &shell.Shell{
		In:      os.Stdin,
		Out:     os.Stdout,
		Runner:  app.Loop,
		Session: session.New(),
		Log:     log.With().Str("component", "shell").Logger(),
	}
	if app.Journal != nil {
		sh.Journal = app.Journal
	}
	return sh.Run(ctx)
}
