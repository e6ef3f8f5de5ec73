package infrastructure_test

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Raikerian/go-discord-recorder/pkg/infrastructure"
)

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestFxLoggerAdapter_LogEvent(t *testing.T) {
	boom := errors.New("boom")

	tests := map[string]struct {
		event     fxevent.Event
		wantLevel zapcore.Level
		wantMsg   string
		wantField string
	}{
		"hook executed": {
			event:     &fxevent.OnStartExecuted{FunctionName: "f", CallerName: "c", Runtime: time.Millisecond},
			wantLevel: zapcore.DebugLevel,
			wantMsg:   "OnStart hook executed",
			wantField: "runtime",
		},
		"hook failed": {
			event:     &fxevent.OnStopExecuted{FunctionName: "f", CallerName: "c", Err: boom},
			wantLevel: zapcore.ErrorLevel,
			wantMsg:   "OnStop hook failed",
			wantField: "error",
		},
		"provided": {
			event:     &fxevent.Provided{OutputTypeNames: []string{"*zap.Logger"}, ConstructorName: "New"},
			wantLevel: zapcore.DebugLevel,
			wantMsg:   "Provided",
			wantField: "types",
		},
		"provide failed": {
			event:     &fxevent.Provided{Err: boom},
			wantLevel: zapcore.ErrorLevel,
			wantMsg:   "Provided failed",
			wantField: "error",
		},
		"invoke failed": {
			event:     &fxevent.Invoked{FunctionName: "f", Err: boom},
			wantLevel: zapcore.ErrorLevel,
			wantMsg:   "Invoked failed",
			wantField: "function",
		},
		"signal": {
			event:     &fxevent.Stopping{Signal: os.Interrupt},
			wantLevel: zapcore.InfoLevel,
			wantMsg:   "Received signal",
			wantField: "signal",
		},
		"rolling back": {
			event:     &fxevent.RollingBack{StartErr: boom},
			wantLevel: zapcore.ErrorLevel,
			wantMsg:   "Start failed, rolling back",
			wantField: "error",
		},
		"started": {
			event:     &fxevent.Started{},
			wantLevel: zapcore.InfoLevel,
			wantMsg:   "Started",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			logger, logs := observed()
			infrastructure.NewFxLoggerAdapter(logger).LogEvent(tt.event)

			entries := logs.AllUntimed()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.wantLevel, entries[0].Level)
			assert.Equal(t, tt.wantMsg, entries[0].Message)
			if tt.wantField != "" {
				assert.Contains(t, entries[0].ContextMap(), tt.wantField)
			}
		})
	}
}

func TestFxLoggerAdapter_Printf(t *testing.T) {
	logger, logs := observed()
	infrastructure.NewFxPrinter(logger).Printf("hello %s", "world")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "hello world", logs.All()[0].Message)
}

func TestFxIntegration(t *testing.T) {
	logger, logs := observed()

	app := fxtest.New(t,
		fx.WithLogger(func() fxevent.Logger { return infrastructure.NewFxLoggerAdapter(logger) }),
		fx.Provide(func() string { return "value" }),
		fx.Invoke(func(string) {}),
	)
	app.RequireStart()
	app.RequireStop()

	assert.NotZero(t, logs.FilterMessage("Started").Len())
	assert.NotZero(t, logs.FilterMessage("Invoked").Len())
}
