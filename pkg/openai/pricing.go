// Package openai holds OpenAI transcription pricing data.
package openai

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"
)

// AudioPricing is what a transcription model charges for input audio.
type AudioPricing struct {
	PerMinute float64 `json:"per_minute"` // USD per minute of audio
}

// ModelInfo describes one transcription model.
type ModelInfo struct {
	Name        string       `json:"name"`
	DisplayName string       `json:"display_name"`
	Pricing     AudioPricing `json:"pricing"`
}

// PricingData is the content of models.json.
type PricingData struct {
	Models      map[string]ModelInfo `json:"models"`
	LastUpdated time.Time            `json:"last_updated"`
	Currency    string               `json:"currency"`
	Note        string               `json:"note"`
}

// PricingService estimates what a transcription run costs.
type PricingService interface {
	// GetPricingData returns the loaded pricing table.
	GetPricingData() *PricingData

	// GetModelPricing returns pricing information for a specific model.
	GetModelPricing(modelName string) (*ModelInfo, error)

	// TranscriptionCost prices seconds of audio sent to modelName.
	TranscriptionCost(modelName string, seconds float64) (float64, error)

	// GetAvailableModels returns the known model names, sorted.
	GetAvailableModels() []string
}

type pricingService struct {
	modelsFilePath string

	mu         sync.Mutex
	cachedData *PricingData
}

// NewPricingService creates a PricingService reading modelsFilePath lazily.
func NewPricingService(modelsFilePath string) PricingService {
	return &pricingService{
		modelsFilePath: modelsFilePath,
	}
}

func (p *pricingService) loadPricingData() (*PricingData, error) {
	jsonData, err := os.ReadFile(p.modelsFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read pricing file: %w", err)
	}

	var pricingData PricingData
	if err := json.Unmarshal(jsonData, &pricingData); err != nil {
		return nil, fmt.Errorf("failed to parse pricing file: %w", err)
	}
	if pricingData.Models == nil {
		pricingData.Models = make(map[string]ModelInfo)
	}

	return &pricingData, nil
}

// GetPricingData returns the pricing table. A missing or broken file yields
// an empty table whose Note carries the error; it is not cached so a fixed
// file is picked up on the next call.
func (p *pricingService) GetPricingData() *PricingData {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cachedData != nil {
		return p.cachedData
	}

	data, err := p.loadPricingData()
	if err != nil {
		return &PricingData{
			Models:      make(map[string]ModelInfo),
			LastUpdated: time.Now(),
			Currency:    "USD",
			Note:        fmt.Sprintf("Error loading pricing data: %v", err),
		}
	}

	p.cachedData = data

	return p.cachedData
}

func (p *pricingService) GetModelPricing(modelName string) (*ModelInfo, error) {
	if model, exists := p.GetPricingData().Models[modelName]; exists {
		return &model, nil
	}

	return nil, fmt.Errorf("pricing data not found for model: %s", modelName)
}

func (p *pricingService) TranscriptionCost(modelName string, seconds float64) (float64, error) {
	model, err := p.GetModelPricing(modelName)
	if err != nil {
		return 0, err
	}

	return seconds / 60 * model.Pricing.PerMinute, nil
}

func (p *pricingService) GetAvailableModels() []string {
	models := make([]string, 0)
	for name := range p.GetPricingData().Models {
		models = append(models, name)
	}
	slices.Sort(models)

	return models
}
