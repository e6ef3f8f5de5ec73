// Package openai provides OpenAI-related infrastructure and Fx modules.
package openai

import (
	"errors"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-recorder/internal/config"
	pkgopenai "github.com/Raikerian/go-discord-recorder/pkg/openai"
)

// Module provides OpenAI-related dependencies.
var Module = fx.Module("openai",
	fx.Provide(
		NewClient,
		NewPricingService,
	),
)

// NewClient creates the OpenAI client used for transcription. It returns a
// nil client when transcription is disabled.
func NewClient(cfg *config.Config, logger *zap.Logger) (*openai.Client, error) {
	if !cfg.Transcription.Enabled {
		logger.Info("Transcription disabled, OpenAI client not created.")

		return nil, nil
	}

	if cfg.Transcription.APIKey == "" {
		logger.Error("OpenAI API key is not configured in config.yaml")

		return nil, errors.New("OpenAI API key (config.Transcription.APIKey) is not configured")
	}

	clientCfg := openai.DefaultConfig(cfg.Transcription.APIKey)
	if cfg.Transcription.BaseURL != "" {
		clientCfg.BaseURL = cfg.Transcription.BaseURL
	}

	client := openai.NewClientWithConfig(clientCfg)
	logger.Info("OpenAI client created successfully.", zap.String("model", cfg.Transcription.Model))

	return client, nil
}

// NewPricingService creates the transcription pricing service.
func NewPricingService(cfg *config.Config, logger *zap.Logger) pkgopenai.PricingService {
	service := pkgopenai.NewPricingService(cfg.Transcription.PricingFile)
	logger.Info("OpenAI pricing service created successfully.", zap.String("file", cfg.Transcription.PricingFile))

	return service
}
