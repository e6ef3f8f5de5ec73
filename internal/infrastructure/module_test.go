package infrastructure_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Raikerian/go-discord-recorder/internal/config"
	"github.com/Raikerian/go-discord-recorder/internal/infrastructure"
)

func TestBuildZapConfig(t *testing.T) {
	tests := map[string]struct {
		level     string
		wantLevel zapcore.Level
		wantDev   bool
	}{
		"debug":   {level: "debug", wantLevel: zapcore.DebugLevel, wantDev: true},
		"info":    {level: "info", wantLevel: zapcore.InfoLevel},
		"warn":    {level: "warn", wantLevel: zapcore.WarnLevel},
		"error":   {level: "error", wantLevel: zapcore.ErrorLevel},
		"unknown": {level: "chatty", wantLevel: zapcore.InfoLevel},
		"empty":   {level: "", wantLevel: zapcore.InfoLevel},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg, err := infrastructure.BuildZapConfig(tt.level)
			require.NoError(t, err)

			assert.Equal(t, tt.wantLevel, cfg.Level.Level())
			assert.Equal(t, tt.wantDev, cfg.Development)
		})
	}
}

func TestLoggerModule(t *testing.T) {
	cfg := &config.Config{LogLevel: "error"}
	cfg.ApplyDefaults()

	var logger *zap.Logger
	app := fxtest.New(t,
		fx.Supply(cfg),
		infrastructure.LoggerModule,
		fx.Populate(&logger),
	)
	app.RequireStart()
	defer app.RequireStop()

	require.NotNil(t, logger)
	assert.False(t, logger.Core().Enabled(zapcore.WarnLevel))
	assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
}
