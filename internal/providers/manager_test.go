package providers

import (
	"context"
	"errors"
	"testing"

	"finrag/internal/config"

	"github.com/stretchr/testify/require"
)

type stubLLM struct {
	text  string
	err   error
	calls int
}

func (s *stubLLM) Generate(context.Context, GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	s.calls++
	return GenerateResponse{Text: s.text}, ProviderInfo{Name: "stub"}, s.err
}

type stubEmbedder struct {
	err   error
	calls int
}

func (s *stubEmbedder) Embed(_ context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	s.calls++
	if s.err != nil {
		return nil, ProviderInfo{Name: "stub"}, s.err
	}
	return [][]float32{make([]float32, req.Dimension)}, ProviderInfo{Name: "stub"}, nil
}

func TestManagerGenerateFailsOverInPreferredOrder(t *testing.T) {
	mock := &stubLLM{text: "from mock"}
	broken := &stubLLM{err: errors.New("503 unavailable")}
	empty := &stubLLM{text: "  "}
	good := &stubLLM{text: "from groq"}
	m := NewManagerWith([]NamedLLMProvider{
		{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: mock},
		{Ref: ProviderRef{Raw: "openai", Name: "openai"}, Provider: broken},
		{Ref: ProviderRef{Raw: "ollama", Name: "ollama"}, Provider: empty},
		{Ref: ProviderRef{Raw: "groq", Name: "groq"}, Provider: good},
	}, nil, 8)

	require.Equal(t, []int{1, 2, 3}, m.PreferredLLMOrder())
	resp, _, err := m.Generate(context.Background(), GenerateRequest{Prompt: "q"})
	require.NoError(t, err)
	require.Equal(t, "from groq", resp.Text)
	require.Equal(t, 0, mock.calls)
	require.Equal(t, 1, broken.calls)
}

func TestManagerGenerateAllFail(t *testing.T) {
	m := NewManagerWith([]NamedLLMProvider{
		{Ref: ProviderRef{Raw: "openai", Name: "openai"}, Provider: &stubLLM{err: errors.New("bad request")}},
	}, nil, 8)
	_, _, err := m.Generate(context.Background(), GenerateRequest{Prompt: "q"})
	require.ErrorContains(t, err, "bad request")
}

func TestManagerDoesNotFailOverToMock(t *testing.T) {
	unavailable := errors.New("status 503: service unavailable")
	mockLLM := &stubLLM{text: "Mock answer"}
	mockEmbed := &stubEmbedder{}
	openaiEmbed := &stubEmbedder{err: unavailable}
	m := NewManagerWith(
		[]NamedLLMProvider{
			{Ref: ProviderRef{Raw: "openai", Name: "openai"}, Provider: &stubLLM{err: unavailable}},
			{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: mockLLM},
		},
		[]NamedEmbedProvider{
			{Ref: ProviderRef{Raw: "openai", Name: "openai"}, Provider: openaiEmbed},
			{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: mockEmbed},
		}, 16)

	_, _, err := m.Generate(context.Background(), GenerateRequest{Prompt: "q"})
	require.ErrorContains(t, err, "503")
	require.Equal(t, 0, mockLLM.calls)

	vec, err := m.EmbedQuery(context.Background(), "AMZN revenue")
	require.ErrorContains(t, err, "503")
	require.Nil(t, vec)
	require.Equal(t, 1, openaiEmbed.calls)
	require.Equal(t, 0, mockEmbed.calls)
}

func TestManagerMockServesWhenSoleProvider(t *testing.T) {
	m, err := NewManager(config.Config{LLMProviders: "mock", EmbedProviders: "mock", EmbedDim: 16})
	require.NoError(t, err)
	vec, err := m.EmbedQuery(context.Background(), "AMZN revenue")
	require.NoError(t, err)
	require.Len(t, vec, 16)

	resp, _, err := m.Generate(context.Background(), GenerateRequest{Prompt: "q"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Text)
}

func TestNewManagerRejectsUnknownProvider(t *testing.T) {
	_, err := NewManager(config.Config{LLMProviders: "bogus", EmbedProviders: "mock"})
	require.ErrorContains(t, err, "unsupported provider")

	_, err = NewManager(config.Config{LLMProviders: "mock", EmbedProviders: "groq"})
	require.ErrorContains(t, err, "does not support embeddings")
}
