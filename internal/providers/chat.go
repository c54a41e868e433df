package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finrag/internal/config"
	"finrag/internal/models"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
)

const DefaultTemperature = 0.1

type ChatResult struct {
	Answer  string           `json:"answer"`
	Usage   models.UsageInfo `json:"usage"`
	ModelID string           `json:"model_id"`
}

type ChatClientConfig struct {
	APIKey  string
	BaseURL string
	Referer string
	Title   string
	Timeout time.Duration
	Retry   RetryConfig
}

// ChatConfigFrom maps the OpenRouter settings in cfg onto a client config.
func ChatConfigFrom(cfg config.Config) ChatClientConfig {
	retry := DefaultRetryConfig()
	if cfg.ProviderMaxRetries >= 0 {
		retry.MaxRetries = cfg.ProviderMaxRetries
	}
	return ChatClientConfig{
		APIKey:  cfg.OpenRouterAPIKey,
		BaseURL: cfg.OpenRouterBaseURL,
		Referer: cfg.OpenRouterReferer,
		Title:   cfg.OpenRouterTitle,
		Timeout: time.Duration(cfg.ChatTimeoutSecs) * time.Second,
		Retry:   retry,
	}
}

// ChatClient calls any model behind an OpenAI-compatible router (OpenRouter)
// and reports token usage and cost. Safe for concurrent use.
type ChatClient struct {
	client  openai.Client
	prices  PriceTable
	retry   RetryConfig
	metrics *Metrics
}

func NewChatClient(cfg ChatClientConfig, prices PriceTable, metrics *Metrics) *ChatClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Referer != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.Referer))
	}
	if cfg.Title != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.Title))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &ChatClient{
		client:  openai.NewClient(opts...),
		prices:  prices,
		retry:   cfg.Retry,
		metrics: metrics,
	}
}

// Chat sends one system+user exchange to modelID.
func (c *ChatClient) Chat(ctx context.Context, system, user, modelID string, temperature float64) (ChatResult, error) {
	if strings.TrimSpace(modelID) == "" {
		return ChatResult{}, fmt.Errorf("chat: model id is required")
	}
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(modelID),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(temperature),
	}
	started := time.Now()
	resp, err := RetryWithBackoff(ctx, c.retry, "chat "+modelID, Retryable, func() (*openai.ChatCompletion, error) {
		return c.client.Chat.Completions.New(ctx, params)
	})
	if err != nil {
		c.metrics.RecordCall(ctx, modelID, "error")
		return ChatResult{}, fmt.Errorf("chat %s: %w", modelID, Classified(err))
	}
	if len(resp.Choices) == 0 {
		c.metrics.RecordCall(ctx, modelID, "error")
		return ChatResult{}, fmt.Errorf("chat %s: %w", modelID, Classified(fmt.Errorf("empty choices")))
	}

	usage := models.UsageInfo{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	}
	var source CostSource
	usage.CostUSD, source = ResolveCost(resp.RawJSON(), modelID, usage.InputTokens, usage.OutputTokens, c.prices)

	c.metrics.RecordCall(ctx, modelID, "ok")
	c.metrics.RecordUsage(ctx, modelID, usage)
	log.Debug().
		Str("model", modelID).
		Int64("input_tokens", usage.InputTokens).
		Int64("output_tokens", usage.OutputTokens).
		Float64("cost_usd", usage.CostUSD).
		Str("cost_source", string(source)).
		Dur("latency", time.Since(started)).
		Msg("chat completion")

	return ChatResult{Answer: resp.Choices[0].Message.Content, Usage: usage, ModelID: modelID}, nil
}

// SimpleChat returns only the answer text under a generic system prompt.
func (c *ChatClient) SimpleChat(ctx context.Context, prompt, modelID string) (string, error) {
	res, err := c.Chat(ctx, defaultSystemPrompt, prompt, modelID, DefaultTemperature)
	if err != nil {
		return "", err
	}
	return res.Answer, nil
}
