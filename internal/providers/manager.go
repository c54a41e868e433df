package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"finrag/internal/config"

	"github.com/rs/zerolog/log"
)

type NamedLLMProvider struct {
	Ref      ProviderRef
	Provider LLMProvider
}

type NamedEmbedProvider struct {
	Ref      ProviderRef
	Provider EmbeddingProvider
}

// Manager holds the configured default providers. Generation and embedding
// fail over across the real providers in configured order. Mock serves only
// when it is the sole configured provider.
type Manager struct {
	llmProviders   []NamedLLMProvider
	embedProviders []NamedEmbedProvider
	embedDim       int
}

func NewManager(cfg config.Config) (*Manager, error) {
	m := &Manager{embedDim: cfg.EmbedDim}
	for _, ref := range ParseProviderList(cfg.LLMProviders) {
		p, err := buildProvider(ref, cfg.EmbedDim)
		if err != nil {
			return nil, err
		}
		llm, ok := p.(LLMProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support llm", ref.Raw)
		}
		m.llmProviders = append(m.llmProviders, NamedLLMProvider{Ref: ref, Provider: llm})
	}
	for _, ref := range ParseProviderList(cfg.EmbedProviders) {
		p, err := buildProvider(ref, cfg.EmbedDim)
		if err != nil {
			return nil, err
		}
		embed, ok := p.(EmbeddingProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support embeddings", ref.Raw)
		}
		m.embedProviders = append(m.embedProviders, NamedEmbedProvider{Ref: ref, Provider: embed})
	}
	return m, nil
}

// NewManagerWith builds a manager from already constructed providers.
func NewManagerWith(llm []NamedLLMProvider, embed []NamedEmbedProvider, embedDim int) *Manager {
	return &Manager{llmProviders: llm, embedProviders: embed, embedDim: embedDim}
}

func (m *Manager) LLMProviderByIndex(i int) (LLMProvider, ProviderRef) {
	if len(m.llmProviders) == 0 {
		return NewMockProvider(m.embedDim), ProviderRef{Raw: "mock", Name: "mock"}
	}
	if i < 0 || i >= len(m.llmProviders) {
		i = 0
	}
	return m.llmProviders[i].Provider, m.llmProviders[i].Ref
}

func (m *Manager) EmbedProviderByIndex(i int) (EmbeddingProvider, ProviderRef) {
	if len(m.embedProviders) == 0 {
		return NewMockProvider(m.embedDim), ProviderRef{Raw: "mock", Name: "mock"}
	}
	if i < 0 || i >= len(m.embedProviders) {
		i = 0
	}
	return m.embedProviders[i].Provider, m.embedProviders[i].Ref
}

func (m *Manager) PreferredLLMOrder() []int {
	return preferredOrder(len(m.llmProviders), func(i int) string { return m.llmProviders[i].Ref.Name })
}

func (m *Manager) PreferredEmbedOrder() []int {
	return preferredOrder(len(m.embedProviders), func(i int) string { return m.embedProviders[i].Ref.Name })
}

// preferredOrder lists the real providers in configured order. Mock entries
// are included only when nothing else is configured, so a failing real
// provider never degrades into a canned answer.
func preferredOrder(n int, nameAt func(i int) string) []int {
	if n <= 0 {
		return []int{0}
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if nameAt(i) != "mock" {
			out = append(out, i)
		}
	}
	if len(out) > 0 {
		return out
	}
	return []int{0}
}

// Generate tries each LLM provider until one returns non-empty text.
func (m *Manager) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	var errs []error
	for _, idx := range m.PreferredLLMOrder() {
		p, ref := m.LLMProviderByIndex(idx)
		resp, info, err := p.Generate(ctx, req)
		if err == nil && strings.TrimSpace(resp.Text) != "" {
			return resp, info, nil
		}
		if err == nil {
			err = fmt.Errorf("%s returned empty text", ref.Raw)
		}
		log.Warn().Err(err).Str("provider", ref.Raw).Str("operation", req.Operation).Msg("llm provider failed")
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return GenerateResponse{}, ProviderInfo{}, fmt.Errorf("all llm providers failed: %w", errors.Join(errs...))
}

// EmbedQuery embeds one query string with the first embedding provider that succeeds.
func (m *Manager) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var errs []error
	for _, idx := range m.PreferredEmbedOrder() {
		p, ref := m.EmbedProviderByIndex(idx)
		vecs, _, err := p.Embed(ctx, EmbedRequest{Operation: "query_embed", Inputs: []string{text}, Dimension: m.embedDim})
		if err == nil && len(vecs) == 1 && len(vecs[0]) > 0 {
			return vecs[0], nil
		}
		if err == nil {
			err = fmt.Errorf("%s returned no vector", ref.Raw)
		}
		log.Warn().Err(err).Str("provider", ref.Raw).Msg("embedding provider failed")
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("all embedding providers failed: %w", errors.Join(errs...))
}

func buildProvider(ref ProviderRef, dim int) (any, error) {
	switch ref.Name {
	case "mock":
		return NewMockProvider(dim), nil
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias), nil
	case "ollama":
		return NewOllamaProvider(ref.KeyAlias), nil
	case "groq":
		return NewGroqProvider(ref.KeyAlias), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ref.Name)
	}
}
