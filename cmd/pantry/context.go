package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"pantry/internal/assets"
	"pantry/internal/config"
	"pantry/internal/logging"
	"pantry/internal/pantry"
	"pantry/internal/recipe"
	"pantry/internal/records"
	"pantry/internal/services/llm"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// cliLogger keeps CLI output quiet; warnings such as failed photo cleanups
// still reach stderr.
func cliLogger() *slog.Logger {
	logger, err := logging.New(logging.Options{
		Level:       "warn",
		Format:      "console",
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// withManager opens the inventory store and asset backend for the duration of fn.
func (c *commandContext) withManager(cmd *cobra.Command, fn func(context.Context, *pantry.Manager) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := cliLogger()

	store, err := records.Open(cfg, records.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("open inventory store: %w", err)
	}
	defer store.Close()

	assetStore, err := assets.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open asset store: %w", err)
	}
	return fn(ctx, pantry.NewManager(store, assetStore, pantry.WithLogger(logger)))
}

func (c *commandContext) newGenerator() (*recipe.Generator, *llm.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	client := llm.NewClient(llm.FromConfig(cfg))
	return recipe.NewGenerator(client, recipe.WithLogger(cliLogger())), client, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
