package transcribe

import (
	"github.com/sashabaranov/go-openai"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-recorder/internal/config"
	"github.com/Raikerian/go-discord-recorder/internal/observe"
	pkgopenai "github.com/Raikerian/go-discord-recorder/pkg/openai"
)

// Module provides the transcription Service.
var Module = fx.Module("transcribe",
	fx.Provide(NewServiceFromConfig),
)

// ServiceParams holds dependencies for NewServiceFromConfig.
type ServiceParams struct {
	fx.In

	Cfg     *config.Config
	Logger  *zap.Logger
	Client  *openai.Client
	Pricing pkgopenai.PricingService
	Metrics *observe.Metrics
}

// NewServiceFromConfig wires the OpenAI client into a Service. Without a
// client the Service reports itself disabled.
func NewServiceFromConfig(p ServiceParams) *Service {
	var t Transcriber
	if p.Client != nil {
		t = NewOpenAITranscriber(p.Client, p.Cfg.Transcription.Model, p.Cfg.Transcription.Language)
	}

	return NewService(p.Logger, t, p.Pricing, Options{
		Model:       p.Cfg.Transcription.Model,
		Language:    p.Cfg.Transcription.Language,
		Concurrency: p.Cfg.Transcription.Concurrency,
	}, p.Metrics)
}
