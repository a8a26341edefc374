package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/barysiuk/promptrow/internal/core"
	"github.com/barysiuk/promptrow/internal/core/layout"
	"github.com/barysiuk/promptrow/internal/logging"
	"github.com/barysiuk/promptrow/internal/tui"
)

// deps holds shared dependencies for CLI commands.
type deps struct {
	config *core.ConfigManager
	cfg    *core.Config
	log    *slog.Logger
	layout *layout.Layout
}

// newDeps loads the configuration and resolves the storage layout. Called
// lazily by commands that need them.
func newDeps(cmd *cobra.Command) (*deps, error) {
	config, err := core.NewConfigManager()
	if err != nil {
		return nil, fmt.Errorf("initializing config: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := newLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	ws, err := resolveWorkspace(cmd)
	if err != nil {
		return nil, err
	}
	l, err := layout.New(cfg.LayoutOptions(ws))
	if err != nil {
		return nil, err
	}

	return &deps{config: config, cfg: cfg, log: log, layout: l}, nil
}

// orchestrator builds the engine. Overwrites are confirmed interactively
// only when stdin is a terminal; otherwise they are declined unless force
// is set.
func (d *deps) orchestrator(force bool) *core.Orchestrator {
	opts := []core.Option{core.WithLogger(d.log)}
	if !force && isTerminal(os.Stdin) {
		opts = append(opts, core.WithConfirmer(tui.OverwritePrompt{In: os.Stdin, Out: os.Stderr}))
	}
	return core.NewOrchestrator(d.layout, opts...)
}

func newLogger(cmd *cobra.Command, cfg *core.Config) (*slog.Logger, error) {
	levelName, _ := cmd.Flags().GetString("log-level")
	if levelName == "" {
		levelName = cfg.LogLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	return logging.New(
		logging.WithLevel(level),
		logging.WithFormat(format),
		logging.WithOutput(os.Stderr),
	), nil
}

// resolveWorkspace resolves the --workspace flag or falls back to cwd.
func resolveWorkspace(cmd *cobra.Command) (string, error) {
	dir, _ := cmd.Flags().GetString("workspace")
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		return cwd, nil
	}
	return filepath.Abs(dir)
}
