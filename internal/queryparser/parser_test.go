package queryparser

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"finrag/internal/providers"

	"github.com/stretchr/testify/require"
)

type fakeGen struct {
	reply string
	err   error
	last  providers.GenerateRequest
}

func (f *fakeGen) Generate(_ context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	f.last = req
	return providers.GenerateResponse{Text: f.reply}, providers.ProviderInfo{Name: "fake"}, f.err
}

func fixedClock() time.Time {
	return time.Date(2025, time.November, 4, 10, 0, 0, 0, time.UTC)
}

func parseWith(reply string, err error) (*fakeGen, *Parser) {
	g := &fakeGen{reply: reply, err: err}
	return g, New(g).WithClock(fixedClock)
}

func requireFallback(t *testing.T, p *Parser) {
	t.Helper()
	got := p.Parse(context.Background(), "whatever")
	require.Nil(t, got.Tickers)
	require.Nil(t, got.Period)
	require.True(t, got.NeedsClarification)
	require.NotNil(t, got.ClarificationMessage)
	require.Equal(t, FallbackMessage, *got.ClarificationMessage)
}

func TestParseAmazonScenario(t *testing.T) {
	g, p := parseWith(`{"tickers": ["amzn"], "period": "Q3-2025", "needs_clarification": false, "clarification_message": null}`, nil)
	got := p.Parse(context.Background(), "How much money did Amazon make in Q3 2025?")

	require.Equal(t, []string{"AMZN"}, got.Tickers)
	require.NotNil(t, got.Period)
	require.Equal(t, "Q3-2025", *got.Period)
	require.False(t, got.NeedsClarification)
	require.Nil(t, got.ClarificationMessage)

	require.Equal(t, "query_parse", g.last.Operation)
	require.Equal(t, "How much money did Amazon make in Q3 2025?", g.last.Prompt)
	require.Contains(t, g.last.System, "Current date for reference: November 04, 2025")
	require.Contains(t, g.last.System, "use Q4-2025")
	require.NotContains(t, g.last.System, "CURRENT_QUARTER")
}

func TestParseUppercasesAndDedupesTickers(t *testing.T) {
	_, p := parseWith("```json\n{\"tickers\": [\"aapl\", \" msft \", \"AAPL\", \"\"], \"period\": null, \"needs_clarification\": false}\n```", nil)
	got := p.Parse(context.Background(), "Compare Apple and Microsoft")
	require.Equal(t, []string{"AAPL", "MSFT"}, got.Tickers)
	require.Nil(t, got.Period)
}

func TestParseResolvesCurrentQuarter(t *testing.T) {
	_, p := parseWith(`Sure! {"tickers": ["GOOGL"], "period": "CURRENT_QUARTER", "needs_clarification": false, "clarification_message": null} Hope that helps.`, nil)
	got := p.Parse(context.Background(), "How did Google do last quarter?")
	require.NotNil(t, got.Period)
	require.Equal(t, "Q4-2025", *got.Period)
	require.Regexp(t, `^Q[1-4]-\d{4}$`, *got.Period)
}

func TestParseCanonicalizesLoosePeriod(t *testing.T) {
	_, p := parseWith(`{"tickers": ["NVDA"], "period": "q2 2024", "needs_clarification": false}`, nil)
	got := p.Parse(context.Background(), "nvidia q2 2024")
	require.Equal(t, "Q2-2024", *got.Period)
}

func TestParseKeepsModelClarification(t *testing.T) {
	_, p := parseWith(`{"tickers": null, "period": null, "needs_clarification": true, "clarification_message": "Which company do you mean?"}`, nil)
	got := p.Parse(context.Background(), "How did they do recently?")
	require.True(t, got.NeedsClarification)
	require.Equal(t, "Which company do you mean?", *got.ClarificationMessage)
}

func TestParseFailsClosed(t *testing.T) {
	cases := map[string]string{
		"not json":            "I think you mean Amazon.",
		"truncated":           `{"tickers": ["AMZN"], "period": "Q3-2025"`,
		"missing period":      `{"tickers": ["AMZN"], "needs_clarification": false}`,
		"missing tickers":     `{"period": "Q3-2025", "needs_clarification": false}`,
		"missing flag":        `{"tickers": ["AMZN"], "period": "Q3-2025"}`,
		"tickers not list":    `{"tickers": "AMZN", "period": null, "needs_clarification": false}`,
		"ticker not string":   `{"tickers": [42], "period": null, "needs_clarification": false}`,
		"period not string":   `{"tickers": null, "period": 2025, "needs_clarification": false}`,
		"flag not bool":       `{"tickers": null, "period": null, "needs_clarification": "no"}`,
		"flag null":           `{"tickers": null, "period": null, "needs_clarification": null}`,
		"period not quarter":  `{"tickers": ["AMZN"], "period": "FY2025", "needs_clarification": false}`,
		"message not string":  `{"tickers": null, "period": null, "needs_clarification": true, "clarification_message": 7}`,
		"empty reply":         "",
		"nested object first": `{"tickers": {"a": 1}}`,
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			_, p := parseWith(reply, nil)
			requireFallback(t, p)
		})
	}
}

func TestParseProviderErrorFailsClosed(t *testing.T) {
	_, p := parseWith("", errors.New("503 upstream unavailable"))
	requireFallback(t, p)
}

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{"```json\n{\"a\": [1, 2]}\n```", `{"a": [1, 2]}`, true},
		{"Here you go:\n{\"a\":\n 1}\nthanks", "{\"a\":\n 1}", true},
		{`{"outer": {"inner": 1}}`, `{"inner": 1}`, true},
		{`{ first } { second }`, `{ first }`, true},
		{`no braces here`, "", false},
		{`{"unterminated": 1`, "", false},
		{`}{`, "", false},
	}
	for _, c := range cases {
		got, ok := ExtractJSONObject(c.in)
		require.Equal(t, c.ok, ok, c.in)
		require.Equal(t, c.want, got, c.in)
	}
}

func TestExtractJSONObjectIsPure(t *testing.T) {
	in := strings.Repeat("x", 10) + `{"k":"v"}`
	a, _ := ExtractJSONObject(in)
	b, _ := ExtractJSONObject(in)
	require.Equal(t, a, b)
}
