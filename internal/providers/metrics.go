package providers

import (
	"context"

	"finrag/internal/models"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics records token, cost and call counters for provider calls. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	promptTokens     metric.Int64Counter
	completionTokens metric.Int64Counter
	cost             metric.Float64Counter
	calls            metric.Int64Counter
}

func NewMetrics(meterName string) *Metrics {
	meter := otel.Meter(meterName, metric.WithInstrumentationVersion("1.0.0"))

	promptTokens, err := meter.Int64Counter("genai.token.prompt",
		metric.WithDescription("The number of prompt tokens used"),
		metric.WithUnit("{tokens}"))
	if err != nil {
		log.Warn().Err(err).Str("meter", meterName).Msg("prompt token counter disabled")
		promptTokens = noop.Int64Counter{}
	}
	completionTokens, err := meter.Int64Counter("genai.token.completion",
		metric.WithDescription("The number of completion tokens used"),
		metric.WithUnit("{tokens}"))
	if err != nil {
		log.Warn().Err(err).Str("meter", meterName).Msg("completion token counter disabled")
		completionTokens = noop.Int64Counter{}
	}
	cost, err := meter.Float64Counter("genai.cost",
		metric.WithDescription("Provider cost in US dollars"),
		metric.WithUnit("{USD}"))
	if err != nil {
		log.Warn().Err(err).Str("meter", meterName).Msg("cost counter disabled")
		cost = noop.Float64Counter{}
	}
	calls, err := meter.Int64Counter("genai.calls",
		metric.WithDescription("Provider calls by outcome"),
		metric.WithUnit("{calls}"))
	if err != nil {
		log.Warn().Err(err).Str("meter", meterName).Msg("call counter disabled")
		calls = noop.Int64Counter{}
	}
	return &Metrics{promptTokens: promptTokens, completionTokens: completionTokens, cost: cost, calls: calls}
}

func (m *Metrics) RecordUsage(ctx context.Context, model string, u models.UsageInfo) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("model", model))
	m.promptTokens.Add(ctx, u.InputTokens, attrs)
	m.completionTokens.Add(ctx, u.OutputTokens, attrs)
	m.cost.Add(ctx, u.CostUSD, attrs)
}

func (m *Metrics) RecordCall(ctx context.Context, model, status string) {
	if m == nil {
		return
	}
	m.calls.Add(ctx, 1, metric.WithAttributes(attribute.String("model", model), attribute.String("status", status)))
}
