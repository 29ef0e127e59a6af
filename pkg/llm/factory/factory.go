package factory

import (
	"context"
	"fmt"
	"time"

	"socialsync-be/pkg/llm"
	"socialsync-be/pkg/llm/gemini"
	"socialsync-be/pkg/llm/ollama"
)

// Params carries everything any provider may need.
type Params struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	Timeout     time.Duration
}

func NewLLMProvider(ctx context.Context, p Params) (llm.LLMProvider, error) {
	switch p.Provider {
	case "ollama":
		baseURL := p.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		provider := ollama.NewOllamaProvider(baseURL, p.Model, p.Timeout)
		if p.Temperature > 0 {
			provider.Temperature = p.Temperature
		}
		return provider, nil
	case "gemini":
		provider, err := gemini.NewGeminiProvider(ctx, p.APIKey, p.Model)
		if err != nil {
			return nil, err
		}
		if p.Temperature > 0 {
			provider.Temperature = p.Temperature
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", p.Provider)
	}
}
