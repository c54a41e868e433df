package providers

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
)

// GroqProvider serves generation through Groq's OpenAI-compatible API.
type GroqProvider struct {
	keyName string
	apiKey  string
	model   string
	client  openai.Client
}

func NewGroqProvider(keyName string) *GroqProvider {
	apiKey := resolveGroqKey(keyName)
	return &GroqProvider{
		keyName: keyName,
		apiKey:  apiKey,
		model:   envOr("FINRAG_GROQ_MODEL", "llama-3.3-70b-versatile"),
		client:  newCompatClient(apiKey, envOr("FINRAG_GROQ_BASE_URL", "https://api.groq.com/openai/v1")),
	}
}

func (g *GroqProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "groq", Key: g.keyName, Model: g.model}
	if g.apiKey == "" {
		return GenerateResponse{}, info, fmt.Errorf("groq key missing for alias %q", g.keyName)
	}
	text, err := completeChat(ctx, g.client, g.model, req)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("groq chat: %w", err)
	}
	return GenerateResponse{Text: text}, info, nil
}

func resolveGroqKey(alias string) string {
	if alias != "" {
		if v := os.Getenv("FINRAG_GROQ_KEY_" + sanitizeEnvToken(alias)); v != "" {
			return v
		}
	}
	return os.Getenv("GROQ_API_KEY")
}
