// Package main is the entry point for the Discord voice recorder bot.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/fx"

	"github.com/Raikerian/go-discord-recorder/internal/app"
	"github.com/Raikerian/go-discord-recorder/internal/bot"
	"github.com/Raikerian/go-discord-recorder/internal/commands"
	"github.com/Raikerian/go-discord-recorder/internal/config"
	"github.com/Raikerian/go-discord-recorder/internal/discord"
	"github.com/Raikerian/go-discord-recorder/internal/export"
	"github.com/Raikerian/go-discord-recorder/internal/infrastructure"
	"github.com/Raikerian/go-discord-recorder/internal/names"
	"github.com/Raikerian/go-discord-recorder/internal/observe"
	"github.com/Raikerian/go-discord-recorder/internal/openai"
	"github.com/Raikerian/go-discord-recorder/internal/session"
	"github.com/Raikerian/go-discord-recorder/internal/transcribe"
	"github.com/Raikerian/go-discord-recorder/internal/voice"
	pkginfra "github.com/Raikerian/go-discord-recorder/pkg/infrastructure"
)

// shutdownTimeout covers stopping every active recording and exporting it.
const shutdownTimeout = 2 * time.Minute

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	application := app.New(
		// Core modules
		config.Module,
		infrastructure.LoggerModule,
		observe.Module,

		// External service modules
		discord.Module,
		openai.Module,

		// Recording pipeline
		names.Module,
		export.Module,
		voice.Module,
		session.Module,
		transcribe.Module,

		// Discord surface
		commands.Module,
		bot.Module,

		fx.Supply(*configPath),
		fx.WithLogger(pkginfra.NewFxLoggerAdapter),
	)
	if err := application.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build application: %v\n", err)
		os.Exit(1)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), time.Minute)
	err := application.Start(startCtx)
	cancelStart()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start application: %v\n", err)
		os.Exit(1)
	}

	sig := <-application.Done()
	fmt.Printf("Received signal: %s, initiating shutdown.\n", sig.Signal)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	err = application.Stop(shutdownCtx)
	cancel()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Recorder has shut down gracefully.")
}
