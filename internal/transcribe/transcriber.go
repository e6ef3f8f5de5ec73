package transcribe

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Segment is one recognized phrase. Start and End are seconds from the
// beginning of the transcribed file.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Transcriber converts one audio file to timed text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) ([]Segment, error)
}

// OpenAITranscriber calls the OpenAI audio transcription endpoint.
type OpenAITranscriber struct {
	client   *openai.Client
	model    string
	language string
}

// NewOpenAITranscriber creates a transcriber for model. An empty language
// lets the service detect it.
func NewOpenAITranscriber(client *openai.Client, model, language string) *OpenAITranscriber {
	return &OpenAITranscriber{
		client:   client,
		model:    model,
		language: language,
	}
}

// Transcribe uploads path and returns its segments. Models that answer
// without segment timing yield one segment covering the whole file.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, path string) ([]Segment, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: path,
		Language: t.language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("create transcription: %w", err)
	}

	segments := make([]Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{Start: s.Start, End: s.End, Text: text})
	}

	if len(segments) == 0 {
		if text := strings.TrimSpace(resp.Text); text != "" {
			segments = append(segments, Segment{Start: 0, End: resp.Duration, Text: text})
		}
	}

	return segments, nil
}
