package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/envforge/envforge/pkg/config"
	"github.com/envforge/envforge/pkg/engine"
	"github.com/envforge/envforge/pkg/gateway"
	"github.com/envforge/envforge/pkg/stores"
	"github.com/envforge/envforge/pkg/telemetry"
)

// app bundles the wired-up collaborators every command needs.
type app struct {
	cfg      *config.Config
	projects stores.ProjectStore
	envs     stores.EnvironmentStore
	gw       *gateway.CommandGateway
	audit    *stores.AuditStore
	tools    engine.Toolchain
}

// newApp loads the configuration and wires the stores and gateway.
// Callers must Close the returned app.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	telemetry.Setup(telemetry.Options{Level: level, Format: cfg.Log.Format})

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	projects := stores.NewFileProjectStore(cfg.ProjectsPath())
	envs := stores.NewFileEnvironmentStore(cfg.VMsPath())

	gw, err := gateway.New(gateway.SSHConfig{
		User:                  cfg.SSH.User,
		Port:                  cfg.SSH.Port,
		PrivateKeyPath:        cfg.SSH.PrivateKeyPath,
		KnownHostsPath:        cfg.SSH.KnownHostsPath,
		StrictHostKeyChecking: cfg.SSH.StrictHostKeyChecking,
		ConnectTimeout:        cfg.SSH.ConnectTimeout,
	})
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		projects: projects,
		envs:     envs,
		gw:       gw,
		tools: engine.Toolchain{
			Compute:       cfg.Tools.Compute,
			Database:      cfg.Tools.Database,
			SourceControl: cfg.Tools.SourceControl,
		},
	}

	// The audit log is history, not state; a broken audit database must
	// not take the tool down.
	if audit, err := openAudit(ctx, cfg.AuditPath()); err != nil {
		log.Warn().Err(err).Msg("audit log unavailable, continuing without history")
	} else {
		a.audit = audit
	}

	return a, nil
}

func openAudit(ctx context.Context, path string) (*stores.AuditStore, error) {
	audit, err := stores.NewAuditStore(path)
	if err != nil {
		return nil, err
	}

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := audit.Init(initCtx); err != nil {
		return nil, err
	}
	if err := audit.Migrate(initCtx); err != nil {
		_ = audit.Close()
		return nil, err
	}
	return audit, nil
}

func (a *app) Close() {
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close audit log")
		}
	}
}
