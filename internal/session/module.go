package session

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-recorder/internal/config"
	"github.com/Raikerian/go-discord-recorder/internal/export"
	"github.com/Raikerian/go-discord-recorder/internal/names"
	"github.com/Raikerian/go-discord-recorder/internal/observe"
)

// Module provides the session Manager and stops every session on shutdown.
var Module = fx.Module("session",
	fx.Provide(NewManagerFromConfig),
	fx.Invoke(registerShutdown),
)

// ManagerParams holds the dependencies of NewManagerFromConfig.
type ManagerParams struct {
	fx.In
	Cfg       *config.Config
	Logger    *zap.Logger
	Exporter  *export.Exporter
	Transport Transport
	Names     names.Store
	Metrics   *observe.Metrics
}

// NewManagerFromConfig creates the Manager from the recording config
// section.
func NewManagerFromConfig(p ManagerParams) *Manager {
	rc := p.Cfg.Recording
	return NewManager(p.Logger.Named("session"), Options{
		RecordingsDir: rc.RecordingsDir,
		FlushInterval: rc.FlushInterval.Std(),
		ChunkTicks:    rc.ChunkTicks(),
		MaxDuration:   rc.MaxSessionDuration.Std(),
		StopTimeout:   rc.StopTimeout.Std(),
	}, p.Exporter, p.Transport, p.Names, p.Metrics)
}

func registerShutdown(lc fx.Lifecycle, m *Manager, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping active recording sessions", zap.Int("count", len(m.ActiveScopes())))
			_, err := m.StopAll(ctx)
			return err
		},
	})
}
