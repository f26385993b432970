// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nova-hud/nova/pkg/cache"
	"github.com/nova-hud/nova/pkg/config"
	"github.com/nova-hud/nova/pkg/guardrail"
	"github.com/nova-hud/nova/pkg/humanize"
	"github.com/nova-hud/nova/pkg/metrics"
	"github.com/nova-hud/nova/pkg/protocol"
	"github.com/nova-hud/nova/pkg/providers/dispatch"
	"github.com/nova-hud/nova/pkg/providers/fetch"
	"github.com/nova-hud/nova/pkg/providers/llm/gemini"
	"github.com/nova-hud/nova/pkg/registry"
	"github.com/nova-hud/nova/pkg/sandbox"
)

// Runtime is the node registry and the services its executors share.
type Runtime struct {
	Registry  *registry.Registry
	Metrics   *metrics.Metrics
	Cache     cache.Cache
	Guardrail *guardrail.Guardrail
	Inbox     *dispatch.Inbox
}

// Close releases the cache.
func (r *Runtime) Close() error {
	return r.Cache.Close()
}

// NewRuntime builds the collaborators from cfg and registers every built-in
// node executor. Without a Gemini key the AI nodes fail with a collaborator
// error instead of preventing startup.
func NewRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	m := metrics.New()
	humanizer := humanize.New()

	resultCache, err := cache.New(ctx, cfg.CacheURL, cfg.CacheMaxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	var completer protocol.Completer

	if cfg.Gemini.APIKey != "" {
		client, err := gemini.New(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
		if err != nil {
			_ = resultCache.Close()

			return nil, fmt.Errorf("failed to create Gemini completer: %w", err)
		}

		completer = client
	} else {
		logger.WarnContext(ctx, "GEMINI_API_KEY is not set, AI nodes will fail")
	}

	fetcher := fetch.New(fetch.Config{
		SearchEndpoint: cfg.Search.Endpoint,
		SearchAPIKey:   cfg.Search.APIKey,
	}, logger)

	router, inbox, err := dispatch.NewDefault(dispatch.Config{
		TelegramToken:   cfg.Telegram.BotToken,
		TelegramAPIBase: cfg.Telegram.APIBase,
		SMTP: dispatch.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		},
	}, logger)
	if err != nil {
		_ = resultCache.Close()

		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	quality := guardrail.New(cfg.QualityThreshold, m)
	scripts := NewSandbox(cfg)

	reg := registry.NewRegistry(logger, m)
	reg.RegisterDefaultNodes(registry.Deps{
		Completer:  completer,
		Fetcher:    fetcher,
		Dispatcher: router,
		Cache:      resultCache,
		Sandbox:    scripts,
		Guardrail:  quality,
		Humanizer:  humanizer,
		Metrics:    m,
	})

	logger.InfoContext(ctx, "Node registry ready",
		"node_types", len(reg.Types()),
		"channels", router.Channels(),
		"sandbox_isolated", scripts.Isolated(),
	)

	return &Runtime{
		Registry:  reg,
		Metrics:   m,
		Cache:     resultCache,
		Guardrail: quality,
		Inbox:     inbox,
	}, nil
}

// NewSandbox builds the script sandbox. With isolation enabled every
// evaluation runs in a worker process started from the current executable,
// which therefore has to call sandbox.ServeIfWorker first thing in main.
func NewSandbox(cfg *config.Config) *sandbox.Sandbox {
	if !cfg.SandboxIsolation {
		return sandbox.New()
	}

	return sandbox.New(sandbox.WithIsolation(sandbox.Isolation{
		MemoryBytes: uint64(cfg.SandboxMemoryMB) << 20,
	}))
}
