package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveOllamaEmbedModel(t *testing.T) {
	t.Setenv("FINRAG_OLLAMA_EMBED_MODEL", "")
	if got := resolveOllamaEmbedModel(""); got != "nomic-embed-text" {
		t.Fatalf("expected default nomic-embed-text, got %q", got)
	}
	if got := resolveOllamaEmbedModel("mxbai-embed-large"); got != "mxbai-embed-large" {
		t.Fatalf("expected direct model name, got %q", got)
	}
	t.Setenv("FINRAG_OLLAMA_EMBED_MODEL_FIN", "custom-fin")
	if got := resolveOllamaEmbedModel("fin"); got != "custom-fin" {
		t.Fatalf("expected env override, got %q", got)
	}
}

func TestMatchDimension(t *testing.T) {
	src := []float32{1, 2, 3}
	a := matchDimension(src, 2)
	if len(a) != 2 || a[0] != 1 || a[1] != 2 {
		t.Fatalf("truncate failed: %#v", a)
	}
	b := matchDimension(src, 5)
	if len(b) != 5 || b[0] != 1 || b[2] != 3 || b[3] != 0 || b[4] != 0 {
		t.Fatalf("pad failed: %#v", b)
	}
}

func TestOllamaGenerateSendsSystemPrompt(t *testing.T) {
	var got struct {
		Model    string              `json:"model"`
		Messages []map[string]string `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"AMZN net sales were $180.2B."}}`))
	}))
	defer srv.Close()
	t.Setenv("FINRAG_OLLAMA_BASE_URL", srv.URL)

	p := NewOllamaProvider("")
	resp, info, err := p.Generate(context.Background(), GenerateRequest{System: "sys", Prompt: "q"})
	require.NoError(t, err)
	require.Equal(t, "AMZN net sales were $180.2B.", resp.Text)
	require.Equal(t, "ollama", info.Name)
	require.Len(t, got.Messages, 2)
	require.Equal(t, "sys", got.Messages[0]["content"])
	require.Equal(t, "q", got.Messages[1]["content"])
}
