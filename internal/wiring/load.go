package wiring

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"

	// Providers register themselves with the registry.
	_ "github.com/hattiebot/toolchat/internal/anthropic"
	_ "github.com/hattiebot/toolchat/internal/gemini"
	_ "github.com/hattiebot/toolchat/internal/openrouter"

	"github.com/hattiebot/toolchat/internal/agent"
	"github.com/hattiebot/toolchat/internal/config"
	"github.com/hattiebot/toolchat/internal/core"
	"github.com/hattiebot/toolchat/internal/middleware"
	"github.com/hattiebot/toolchat/internal/registry"
	"github.com/hattiebot/toolchat/internal/store"
	"github.com/hattiebot/toolchat/internal/tools"
)

// App is the assembled process: agent loop plus the resources it owns.
type App struct {
	Loop  *agent.Loop
	Tools *tools.Registry
	// Journal is nil when disabled or when it could not be opened.
	Journal *store.DB
	// AIEnabled is false when there is no usable model client.
	AIEnabled bool
}

// Close releases the journal.
func (a *App) Close() error {
	if a.Journal != nil {
		return a.Journal.Close()
	}
	return nil
}

// Build wires config into a ready App. Only tool registration errors are fatal: a
// missing key or broken provider disables AI, an unusable journal disables journaling.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	var searcher tools.Searcher = tools.NewHTMLSearcher(cfg.Search.URL, cfg.Search.Timeout)
	searcher = tools.NewCachedSearcher(searcher, cfg.Search.CacheSize, cfg.Search.CacheTTL)

	reg, err := tools.NewBuiltinRegistry(cfg.WorkspaceDir, searcher)
	if err != nil {
		return nil, fmt.Errorf("wiring: tools: %w", err)
	}
	app := &App{Tools: reg}

	var exec core.ToolExecutor = tools.NewExecutor(reg, log)
	exec = middleware.NewTruncatingExecutor(exec, cfg.ToolOutputMaxRunes)
	if cfg.JournalPath != "" {
		db, err := store.Open(ctx, cfg.JournalPath)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.JournalPath).Msg("tool-call journal disabled")
		} else {
			app.Journal = db
			exec = middleware.NewJournalingExecutor(exec, db, log)
		}
	}

	client := LoadClient(cfg, log)
	app.AIEnabled = client != nil
	app.Loop = &agent.Loop{
		Client:         client,
		Executor:       exec,
		Tools:          reg.Definitions(),
		MaxToolRounds:  cfg.MaxToolRounds,
		RequestTimeout: cfg.RequestTimeout,
		Log:            log.With().Str("component", "agent").Logger(),
	}
	return app, nil
}

// LoadClient builds the configured provider's client, or returns nil (AI disabled)
// when there is no API key or the provider fails to initialize.
func LoadClient(cfg *config.Config, log zerolog.Logger) core.LLMClient {
	if !cfg.HasAPIKey() {
		log.Warn().Str("provider", cfg.Provider).Msg("no API key configured; AI features disabled")
		return nil
	}
	opts := registry.ClientOptions{APIKey: cfg.APIKey, Model: cfg.Model, Timeout: cfg.RequestTimeout, Log: log}

	var client core.LLMClient
	var initErr error
	var pc panics.Catcher
	pc.Try(func() { client, initErr = registry.NewClient(cfg.Provider, opts) })
	if r := pc.Recovered(); r != nil {
		initErr = r.AsError()
	}
	if initErr != nil {
		log.Error().Err(initErr).Str("provider", cfg.Provider).Msg("client init failed; AI features disabled")
		return nil
	}
	return client
}
