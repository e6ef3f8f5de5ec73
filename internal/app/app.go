// Package app ties the Fx graph to the bot's lifecycle.
package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-recorder/internal/bot"
)

// Application represents the main application with its lifecycle.
type Application struct {
	app *fx.App
}

// New creates a new Application with the provided modules and options.
func New(modules ...fx.Option) *Application {
	options := append(modules, fx.Invoke(registerLifecycleHooks))

	return &Application{
		app: fx.New(options...),
	}
}

// Err reports an error from building the dependency graph.
func (a *Application) Err() error {
	return a.app.Err()
}

// Start starts every registered lifecycle hook.
func (a *Application) Start(ctx context.Context) error {
	return a.app.Start(ctx)
}

// Stop gracefully stops the application. Active recordings are stopped
// and exported by the session manager's own hook before Discord closes.
func (a *Application) Stop(ctx context.Context) error {
	return a.app.Stop(ctx)
}

// Done returns a channel that receives the OS signal that should end the
// application.
func (a *Application) Done() <-chan fx.ShutdownSignal {
	return a.app.Wait()
}

func registerLifecycleHooks(lc fx.Lifecycle, b *bot.Bot, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting bot and registering commands")

			if err := b.Start(ctx); err != nil {
				logger.Error("Failed to start bot", zap.Error(err))

				return err
			}

			logger.Info("Recorder started")

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping bot and unregistering commands")

			if err := b.Stop(ctx); err != nil {
				logger.Error("Failed to stop bot", zap.Error(err))

				return err
			}

			logger.Info("Recorder stopped")

			return nil
		},
	})
}
