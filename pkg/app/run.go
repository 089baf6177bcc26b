// Package app assembles the inlet intake pipeline and provides the shared
// entry point for the CLI and the service wrapper.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/inletd/inlet/internal/config"
	"github.com/inletd/inlet/internal/reload"
	"github.com/inletd/inlet/internal/security"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level
}

// Run loads configuration, starts the pipeline, and blocks until a shutdown
// signal is received. SIGHUP and config file changes trigger a live reload
// of the queue settings.
func Run(params RunParams) error {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	ctx := context.Background()
	p, err := buildPipeline(ctx, cfg, cfgPath, params)
	if err != nil {
		return err
	}

	if err := p.Start(ctx); err != nil {
		p.Stop(ctx)
		return err
	}
	p.logger.Info("inlet started",
		"version", params.Version,
		"config", cfgPath,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	var watchEvents <-chan reload.Event
	if p.watcher != nil {
		watchEvents = p.watcher.Events()
	}

	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				p.logger.Info("SIGHUP received, reloading configuration")
				p.reload(ctx, "sighup")
			default:
				p.logger.Info("shutdown signal received", "signal", sig.String())
				p.Stop(ctx)
				p.logger.Info("shutdown complete")
				return nil
			}
		case evt := <-watchEvents:
			p.logger.Info("config file changed, reloading", "path", evt.Path)
			p.reload(ctx, "file watch")
		}
	}
}

// reload re-applies the config file and records the change in the audit
// trail. Failures leave the running settings untouched.
func (p *pipeline) reload(ctx context.Context, trigger string) {
	if err := p.applier.Apply(ctx, p.cfgPath); err != nil {
		p.logger.Error("reload failed", "trigger", trigger, "error", err)
		return
	}
	p.audit.Log(security.AuditEvent{
		Type:   security.EventConfigChange,
		Detail: "config reloaded via " + trigger,
	})
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/inlet/inlet.yaml → ~/.config/inlet/inlet.yaml → ./inlet.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "inlet", "inlet.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "inlet", "inlet.yaml"))
	}

	candidates = append(candidates, "inlet.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}
