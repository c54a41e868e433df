package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"finrag/internal/models"

	"github.com/stretchr/testify/require"
)

const questionsCSV = "question,expected_answer,tickers,period\n" +
	"What was Amazon's Q3 2025 revenue?,$158.9 billion,AMZN,Q3-2025\n" +
	"What was Apple's Q3 2025 gross margin?,46.5%,AAPL,Q3-2025\n"

func writeQuestions(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "questions.csv")
	require.NoError(t, os.WriteFile(path, []byte(questionsCSV), 0o644))
	return path
}

func quietEnv(t *testing.T) {
	t.Helper()
	t.Setenv("FINRAG_LOG_PRETTY", "false")
	t.Setenv("FINRAG_LOG_LEVEL", "error")
	t.Setenv("FINRAG_MODEL_REGISTRY", "")
	t.Setenv("FINRAG_PUSHGATEWAY_URL", "")
}

func TestRunRequiresCSV(t *testing.T) {
	quietEnv(t)
	require.Equal(t, 2, run(nil))
}

func TestRunRejectsUnknownModelBeforeWork(t *testing.T) {
	quietEnv(t)
	out := filepath.Join(t.TempDir(), "results")
	code := run([]string{"--csv", writeQuestions(t), "--models", "gpt-4o,gpt-5-turbo", "--output", out})
	require.Equal(t, 1, code)
	_, err := os.Stat(out)
	require.True(t, os.IsNotExist(err))
}

// startBackends serves a fake finrag API that fails for kimi-k2 and a judge
// that marks every answer correct. It returns the API base URL.
func startBackends(t *testing.T) string {
	t.Helper()
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model == "kimi-k2" {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":{"code":"FR-API-5020","message":"Upstream model provider failed."}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(models.ChatResponse{
			Answer:    "answer from " + req.Model,
			Citations: []models.Citation{},
			Model:     req.Model,
			Usage:     &models.UsageInfo{InputTokens: 1000, OutputTokens: 100, TotalTokens: 1100, CostUSD: 0.01},
		})
	}))
	t.Cleanup(api.Close)

	judge := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"j","object":"chat.completion","created":1,"model":"anthropic/claude-opus-4-20250514",` +
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"CORRECT"}}],` +
			`"usage":{"prompt_tokens":200,"completion_tokens":1,"total_tokens":201}}`))
	}))
	t.Cleanup(judge.Close)
	t.Setenv("OPENROUTER_BASE_URL", judge.URL)
	t.Setenv("OPENROUTER_API_KEY", "k")
	t.Setenv("FINRAG_PROVIDER_MAX_RETRIES", "0")

	return api.URL
}

func TestRunLocalWritesReports(t *testing.T) {
	quietEnv(t)
	apiURL := startBackends(t)

	out := t.TempDir()
	code := run([]string{
		"--csv", writeQuestions(t),
		"--models", "gpt-4o,kimi-k2",
		"--output", out,
		"--api-base", apiURL,
		"--concurrency", "2",
	})
	require.Equal(t, 0, code)

	detailed, err := filepath.Glob(filepath.Join(out, "eval_detailed_*.csv"))
	require.NoError(t, err)
	require.Len(t, detailed, 1)
	b, err := os.ReadFile(detailed[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 5, "header plus one row per (question, model) pair")
	require.Contains(t, lines[1], "gpt-4o")
	require.Contains(t, lines[1], "true")
	require.Contains(t, lines[2], "kimi-k2")
	require.Contains(t, lines[2], "ERROR: ")

	summary, err := filepath.Glob(filepath.Join(out, "eval_summary_*.csv"))
	require.NoError(t, err)
	require.Len(t, summary, 1)
	jsonReport, err := filepath.Glob(filepath.Join(out, "eval_results_*.json"))
	require.NoError(t, err)
	require.Len(t, jsonReport, 1)
}

func TestRunPushesMetricsWhenConfigured(t *testing.T) {
	quietEnv(t)
	apiURL := startBackends(t)

	var method, path string
	var pushed []byte
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		pushed, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()
	t.Setenv("FINRAG_PUSHGATEWAY_URL", gw.URL)

	code := run([]string{"--csv", writeQuestions(t), "--models", "gpt-4o", "--output", t.TempDir(), "--api-base", apiURL})
	require.Equal(t, 0, code)
	require.Equal(t, http.MethodPut, method)
	require.Equal(t, "/metrics/job/finrag_eval", path)
	require.Contains(t, string(pushed), "finrag_eval_pairs_total")
	require.Contains(t, string(pushed), "genai_calls")
}
