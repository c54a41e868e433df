package eval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"finrag/internal/models"
	"finrag/internal/util"
)

const DefaultAPITimeout = 120 * time.Second

// APIClient calls the /chat endpoint of a running service.
type APIClient struct {
	base string
	http *http.Client
	topK int
}

func NewAPIClient(base string, timeout time.Duration, topK int) *APIClient {
	if timeout <= 0 {
		timeout = DefaultAPITimeout
	}
	return &APIClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
		topK: topK,
	}
}

func (c *APIClient) Ask(ctx context.Context, q Question, model string) (models.ChatResponse, error) {
	body, err := json.Marshal(models.ChatRequest{
		Question: q.Question,
		Tickers:  q.Tickers,
		Period:   q.Period,
		TopK:     c.topK,
		Model:    model,
	})
	if err != nil {
		return models.ChatResponse{}, fmt.Errorf("encode chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/chat", bytes.NewReader(body))
	if err != nil {
		return models.ChatResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if id := util.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return models.ChatResponse{}, fmt.Errorf("post /chat: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return models.ChatResponse{}, fmt.Errorf("read /chat response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.ChatResponse{}, &StatusError{StatusCode: resp.StatusCode, Message: apiErrorMessage(raw)}
	}
	var out models.ChatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return models.ChatResponse{}, fmt.Errorf("decode /chat response: %w", err)
	}
	return out, nil
}

// StatusError is a non-2xx reply from the service.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the same request may succeed later.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func apiErrorMessage(raw []byte) string {
	var e struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &e); err == nil && e.Error.Message != "" {
		return e.Error.Code + " " + e.Error.Message
	}
	return util.DisplaySnippet(string(raw), 300)
}
