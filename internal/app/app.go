// Package app provides the top-level application lifecycle management for
// presalebot. It wires together the chain session, optional stores, caches,
// blob storage and notifications, and runs the configured operating mode.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alanyoungcy/presalebot/internal/config"
)

// Options carries process-level settings that do not belong in the config
// file.
type Options struct {
	// Out receives human-facing output such as the deployed address.
	Out io.Writer
	// ForcePublish overwrites metadata objects that already exist.
	ForcePublish bool
}

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	opts    Options
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger, opts Options) *App {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
		opts:   opts,
	}
}

// Run is the main entry point. It wires all dependencies, selects the
// operating mode and blocks until the mode finishes or the context is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	mode := strings.ToLower(a.cfg.Mode)
	if mode == "publish" {
		return a.PublishMode(ctx, deps)
	}

	chain, err := a.dialChain(ctx)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.closers = append(a.closers, chain.close)

	switch mode {
	case "watch":
		return a.WatchMode(ctx, deps, chain)
	case "server":
		return a.ServerMode(ctx, deps, chain)
	case "tui":
		return a.TUIMode(ctx, deps, chain)
	case "deploy":
		return a.DeployMode(ctx, deps, chain)
	case "action":
		return a.ActionMode(ctx, deps, chain)
	case "full":
		return a.FullMode(ctx, deps, chain)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
