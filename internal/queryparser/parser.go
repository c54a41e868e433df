package queryparser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"finrag/internal/models"
	"finrag/internal/providers"
	"finrag/internal/util"

	"github.com/rs/zerolog/log"
)

const FallbackMessage = "I couldn't understand your query. Please specify the company ticker and time period."

const currentQuarterToken = "CURRENT_QUARTER"

const extractionPrompt = `You are an entity extraction assistant for a financial RAG system.
Extract stock ticker symbols and time periods from the user's question.

Rules:
1. Tickers: Extract company stock symbols (e.g., AMZN, AAPL, GOOGL, MSFT).
   - If a company name is mentioned (e.g., "Amazon"), convert to ticker (AMZN).
   - Return as uppercase list, or null if no company is mentioned.

2. Period: Extract fiscal quarter and year in format "Q#-YYYY" (e.g., "Q3-2025").
   - "last quarter" or "most recent quarter" -> use CURRENT_QUARTER
   - "Q3 2025" or "third quarter 2025" -> "Q3-2025"
   - Return null if no period is mentioned.

3. needs_clarification: Set to true if:
   - Multiple companies could be inferred but unclear which one
   - Time period is ambiguous (e.g., "recently" without specifics)
   - The question is too vague to determine what data is needed

4. clarification_message: If needs_clarification is true, provide a helpful message
   asking the user to specify what's missing.

Current date for reference: CURRENT_DATE

Respond ONLY with valid JSON in this exact format:
{
  "tickers": ["AMZN"] or null,
  "period": "Q3-2025" or null,
  "needs_clarification": false,
  "clarification_message": null or "Please specify..."
}`

var objectPattern = regexp.MustCompile(`\{[^{}]*\}`)

type Generator interface {
	Generate(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error)
}

type Parser struct {
	gen Generator
	now func() time.Time
}

func New(gen Generator) *Parser {
	return &Parser{gen: gen, now: time.Now}
}

// WithClock replaces the wall clock used for the current date and quarter.
func (p *Parser) WithClock(now func() time.Time) *Parser {
	p.now = now
	return p
}

// Parse extracts tickers and a fiscal period from question. It never fails:
// any provider or decoding problem yields a clarification request.
func (p *Parser) Parse(ctx context.Context, question string) models.ParsedQuery {
	now := p.now()
	quarter := util.CurrentQuarter(now)
	prompt := strings.NewReplacer(
		"CURRENT_DATE", now.Format("January 02, 2006"),
		currentQuarterToken, quarter,
	).Replace(extractionPrompt)

	resp, _, err := p.gen.Generate(ctx, providers.GenerateRequest{
		Operation: "query_parse",
		System:    prompt,
		Prompt:    question,
	})
	if err != nil {
		log.Warn().Err(err).Msg("query parse provider call failed")
		return fallback()
	}
	parsed, err := decode(resp.Text, quarter)
	if err != nil {
		log.Warn().Err(err).Str("reply", util.DisplaySnippet(resp.Text, 200)).Msg("query parse reply rejected")
		return fallback()
	}
	return parsed
}

func fallback() models.ParsedQuery {
	msg := FallbackMessage
	return models.ParsedQuery{NeedsClarification: true, ClarificationMessage: &msg}
}

// ExtractJSONObject returns the first brace-delimited span in s that contains
// no nested braces. Code fences and surrounding prose are skipped.
func ExtractJSONObject(s string) (string, bool) {
	m := objectPattern.FindString(s)
	if m == "" {
		return "", false
	}
	return m, true
}

func decode(reply, quarter string) (models.ParsedQuery, error) {
	body, ok := ExtractJSONObject(reply)
	if !ok {
		body = strings.TrimSpace(reply)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return models.ParsedQuery{}, fmt.Errorf("decode reply: %w", err)
	}
	for _, k := range []string{"tickers", "period", "needs_clarification"} {
		if _, ok := fields[k]; !ok {
			return models.ParsedQuery{}, fmt.Errorf("missing key %q", k)
		}
	}

	var out models.ParsedQuery
	if err := strict(fields["needs_clarification"], &out.NeedsClarification); err != nil {
		return models.ParsedQuery{}, fmt.Errorf("needs_clarification: %w", err)
	}
	if isNull(fields["needs_clarification"]) {
		return models.ParsedQuery{}, errors.New("needs_clarification: null")
	}

	var tickers []string
	if err := strict(fields["tickers"], &tickers); err != nil {
		return models.ParsedQuery{}, fmt.Errorf("tickers: %w", err)
	}
	out.Tickers = normalizeTickers(tickers)

	var period *string
	if err := strict(fields["period"], &period); err != nil {
		return models.ParsedQuery{}, fmt.Errorf("period: %w", err)
	}
	if period != nil && strings.TrimSpace(*period) != "" {
		raw := strings.TrimSpace(*period)
		if strings.EqualFold(raw, currentQuarterToken) {
			raw = quarter
		}
		canon, ok := util.CanonicalPeriod(raw)
		if !ok {
			return models.ParsedQuery{}, fmt.Errorf("period %q is not a fiscal quarter", raw)
		}
		out.Period = &canon
	}

	if raw, ok := fields["clarification_message"]; ok {
		var msg *string
		if err := strict(raw, &msg); err != nil {
			return models.ParsedQuery{}, fmt.Errorf("clarification_message: %w", err)
		}
		if msg != nil && strings.TrimSpace(*msg) != "" {
			out.ClarificationMessage = msg
		}
	}
	if out.NeedsClarification && out.ClarificationMessage == nil {
		msg := FallbackMessage
		out.ClarificationMessage = &msg
	}
	return out, nil
}

func strict(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

func normalizeTickers(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
