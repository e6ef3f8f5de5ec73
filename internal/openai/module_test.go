package openai_test

import (
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zaptest"

	"github.com/Raikerian/go-discord-recorder/internal/config"
	internalopenai "github.com/Raikerian/go-discord-recorder/internal/openai"
	pkgopenai "github.com/Raikerian/go-discord-recorder/pkg/openai"
)

func TestModule(t *testing.T) {
	tests := map[string]struct {
		transcription config.TranscriptionConfig
		wantClient    bool
	}{
		"enabled": {
			transcription: config.TranscriptionConfig{
				Enabled:     true,
				APIKey:      "test-api-key",
				BaseURL:     "http://localhost:1234/v1",
				PricingFile: "models.json",
			},
			wantClient: true,
		},
		"disabled": {
			transcription: config.TranscriptionConfig{PricingFile: "models.json"},
			wantClient:    false,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := &config.Config{Transcription: tt.transcription}

			app := fxtest.New(t,
				fx.Supply(cfg, zaptest.NewLogger(t)),
				internalopenai.Module,
				fx.Invoke(func(client *openai.Client, pricing pkgopenai.PricingService) {
					assert.Equal(t, tt.wantClient, client != nil)
					assert.NotNil(t, pricing)
				}),
			)

			app.RequireStart()
			app.RequireStop()
		})
	}
}

func TestNewClient_MissingKey(t *testing.T) {
	cfg := &config.Config{Transcription: config.TranscriptionConfig{Enabled: true}}

	client, err := internalopenai.NewClient(cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
	assert.Nil(t, client)
}
