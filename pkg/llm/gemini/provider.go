package gemini

import (
	"context"
	"fmt"
	"strings"

	"socialsync-be/pkg/llm"

	"google.golang.org/genai"
)

// GeminiProvider talks to the Gemini API through the official genai client.
type GeminiProvider struct {
	client      *genai.Client
	ModelName   string
	Temperature float64
}

var _ llm.LLMProvider = &GeminiProvider{}

func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiProvider{
		client:      client,
		ModelName:   modelName,
		Temperature: 0.7,
	}, nil
}

func (g *GeminiProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	options := llm.Apply(g.Temperature, opts...)

	model := g.ModelName
	if options.Model != "" {
		model = options.Model
	}

	system, contents := toContents(history)
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(options.Temperature)),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if options.MaxTokens > 0 {
		config.MaxOutputTokens = int32(options.MaxTokens)
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", fmt.Errorf("%w: gemini: %v", llm.ErrGeneration, err)
	}

	return resp.Text(), nil
}

func (g *GeminiProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return g.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

// toContents maps a transcript onto Gemini roles. Leading system messages become the
// system instruction; later ones are sent as user text tagged "SYSTEM:".
func toContents(history []llm.Message) (string, []*genai.Content) {
	var system []string
	var contents []*genai.Content

	leading := true
	for _, msg := range history {
		switch msg.Role {
		case "system":
			if leading {
				system = append(system, msg.Content)
				continue
			}
			text := msg.Content
			if !strings.HasPrefix(text, "SYSTEM:") {
				text = "SYSTEM: " + text
			}
			contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
		case "assistant", "model":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
		leading = false
	}

	return strings.Join(system, "\n\n"), contents
}
