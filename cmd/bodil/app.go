package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nyhage/bodil/internal/agent"
	"github.com/nyhage/bodil/internal/config"
	"github.com/nyhage/bodil/internal/convo"
	"github.com/nyhage/bodil/internal/dispatch"
	"github.com/nyhage/bodil/internal/llm"
	"github.com/nyhage/bodil/internal/router"
	"github.com/nyhage/bodil/internal/store"
	"github.com/nyhage/bodil/internal/usage"
)

// app bundles everything a subcommand needs after startup.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	agent    *agent.Agent
	products *store.Store
	convos   *convo.Store
	usage    *usage.Store
}

func (a *app) close() {
	a.products.Close()
	a.convos.Close()
	a.usage.Close()
}

// loadConfig finds and loads the config file. When no file exists and
// none was requested explicitly, built-in defaults apply.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	explicit, _ := cmd.Flags().GetString("config")

	path, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, err
		}
		cfg := config.Default()
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			cfg.Anthropic.APIKey = key
		}
		return cfg, nil
	}
	return config.Load(path)
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	})), nil
}

// compactModel picks the summarization model: compact, then economical,
// then capable.
func compactModel(m config.ModelsConfig) string {
	if m.Compact != "" {
		return m.Compact
	}
	if m.Economical != "" {
		return m.Economical
	}
	return m.Capable
}

// newApp wires the full stack: config, logging, the three SQLite
// stores, the tool dispatcher, and the agent loop.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.Anthropic.APIKey == "" {
		return nil, errors.New("no API key: set anthropic.api_key in config or ANTHROPIC_API_KEY in the environment")
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	products, err := store.New(filepath.Join(cfg.DataDir, "products.db"), logger)
	if err != nil {
		return nil, err
	}

	usageStore, err := usage.NewStore(filepath.Join(cfg.DataDir, "usage.db"))
	if err != nil {
		products.Close()
		return nil, err
	}
	products.SetUsageStore(usageStore)

	convos, err := convo.NewStore(
		filepath.Join(cfg.DataDir, "conversations.db"),
		cfg.Conversation.MaxMessages,
		time.Duration(cfg.Conversation.TimeoutMinutes)*time.Minute,
		logger,
	)
	if err != nil {
		products.Close()
		usageStore.Close()
		return nil, err
	}

	client := llm.NewAnthropicClient(cfg.Anthropic.APIKey, logger)

	services := &dispatch.Services{
		Listing:   products,
		Analytics: products,
	}

	a := agent.New(agent.Options{
		Client:     client,
		Dispatcher: dispatch.New(services, logger),
		Router:     router.New(cfg.Models.Capable, cfg.Models.Economical, logger),
		History:    convos,
		Usage:      usageStore,
		Compactor: agent.NewCompactor(client, compactModel(cfg.Models),
			cfg.Compaction.Threshold, cfg.Compaction.KeepRecent, logger),
		Pricing:        cfg.Pricing,
		MaxTokens:      cfg.Agent.MaxTokens,
		ThinkingBudget: cfg.Agent.ThinkingBudget,
		MaxIterations:  cfg.Agent.MaxIterations,
		Logger:         logger,
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		agent:    a,
		products: products,
		convos:   convos,
		usage:    usageStore,
	}, nil
}
