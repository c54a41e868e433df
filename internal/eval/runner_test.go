package eval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"finrag/internal/models"

	"github.com/stretchr/testify/require"
)

// fakeAnswerer fails for the configured models and answers "right" or "wrong"
// depending on whether the question contains "easy".
type fakeAnswerer struct {
	failModels map[string]bool
	inFlight   atomic.Int32
	maxSeen    atomic.Int32
	mu         sync.Mutex
	calls      []string
}

func (f *fakeAnswerer) Ask(_ context.Context, q Question, model string) (models.ChatResponse, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, model+"|"+q.Question)
	f.mu.Unlock()

	if f.failModels[model] {
		return models.ChatResponse{}, fmt.Errorf("status 502: FR-API-5020 provider outage")
	}
	answer := "wrong"
	if strings.Contains(q.Question, "easy") {
		answer = "right"
	}
	return models.ChatResponse{
		Answer: answer,
		Model:  model,
		Usage:  &models.UsageInfo{InputTokens: 100, OutputTokens: 10, TotalTokens: 110, CostUSD: 0.01},
	}, nil
}

type fakeGrader struct {
	err error
}

func (g fakeGrader) Judge(_ context.Context, _, _, actual string) (Judgment, error) {
	if g.err != nil {
		return Judgment{}, g.err
	}
	verdict := "INCORRECT"
	if actual == "right" {
		verdict = "CORRECT"
	}
	return Judgment{IsCorrect: ParseVerdict(verdict), Verdict: verdict, Usage: models.UsageInfo{InputTokens: 50, OutputTokens: 1, CostUSD: 0.002}}, nil
}

func questions(n int) []Question {
	out := make([]Question, n)
	for i := range out {
		q := fmt.Sprintf("hard question %d", i)
		if i%2 == 0 {
			q = fmt.Sprintf("easy question %d", i)
		}
		out[i] = Question{Question: q, ExpectedAnswer: "right"}
	}
	return out
}

func TestRunProducesEveryPairDespiteFailures(t *testing.T) {
	a := &fakeAnswerer{failModels: map[string]bool{"kimi-k2": true}}
	r := NewRunner(a, fakeGrader{}, 3, "anthropic/claude-opus-4-20250514")
	qs := questions(5)
	ms := []string{"gpt-4o", "kimi-k2", "claude-sonnet"}

	res := r.Run(context.Background(), qs, ms)
	require.Len(t, res.Results, len(qs)*len(ms))
	require.NotEmpty(t, res.RunID)
	require.Equal(t, 5, res.TotalQuestions)

	for qi := range qs {
		for mi, m := range ms {
			row := res.Results[qi*len(ms)+mi]
			require.Equal(t, m, row.Model)
			require.Equal(t, qs[qi].Question, row.Question)
			if m == "kimi-k2" {
				require.False(t, row.IsCorrect)
				require.True(t, strings.HasPrefix(row.ActualAnswer, "ERROR: "))
				require.Zero(t, row.InputTokens)
				require.Zero(t, row.Cost)
				require.Zero(t, row.JudgeCost)
			}
		}
	}

	require.Len(t, res.Summaries, 3)
	byModel := map[string]ModelSummary{}
	for _, s := range res.Summaries {
		byModel[s.Model] = s
	}
	require.Equal(t, 5, byModel["gpt-4o"].TotalQuestions)
	require.Equal(t, 3, byModel["gpt-4o"].Correct)
	require.InDelta(t, 0.6, byModel["gpt-4o"].Accuracy, 1e-9)
	require.Equal(t, int64(500), byModel["gpt-4o"].TotalInputTokens)
	require.InDelta(t, 0.05, byModel["gpt-4o"].TotalCost, 1e-9)
	require.InDelta(t, 0.01, byModel["gpt-4o"].JudgeCost, 1e-9)
	require.Equal(t, 5, byModel["kimi-k2"].TotalQuestions)
	require.Zero(t, byModel["kimi-k2"].Accuracy)

	require.LessOrEqual(t, a.maxSeen.Load(), int32(3))
	require.Len(t, a.calls, 15)
}

func TestRunWithNoQuestions(t *testing.T) {
	res := NewRunner(&fakeAnswerer{}, fakeGrader{}, 2, "").Run(context.Background(), nil, []string{"gpt-4o"})
	require.Empty(t, res.Results)
	require.Equal(t, []ModelSummary{{Model: "gpt-4o"}}, res.Summaries)
}

func TestEvaluatePairJudgeFailureKeepsAnswer(t *testing.T) {
	out := EvaluatePair(context.Background(), &fakeAnswerer{}, fakeGrader{err: errors.New("judge: 429")}, Question{Question: "easy", ExpectedAnswer: "right"}, "gpt-4o")
	require.True(t, out.Failed())
	require.Equal(t, StageJudge, out.Stage)
	require.Equal(t, "right", out.Result.ActualAnswer)
	require.False(t, out.Result.IsCorrect)
	require.Equal(t, int64(100), out.Result.InputTokens)
	require.Zero(t, out.Result.JudgeInputTokens)
}

func TestEvaluatePairWithoutUsage(t *testing.T) {
	a := answerFunc(func(context.Context, Question, string) (models.ChatResponse, error) {
		return models.ChatResponse{Answer: "right"}, nil
	})
	out := EvaluatePair(context.Background(), a, fakeGrader{}, Question{Question: "q"}, "m")
	require.False(t, out.Failed())
	require.True(t, out.Result.IsCorrect)
	require.Zero(t, out.Result.InputTokens)
}

type answerFunc func(context.Context, Question, string) (models.ChatResponse, error)

func (f answerFunc) Ask(ctx context.Context, q Question, m string) (models.ChatResponse, error) {
	return f(ctx, q, m)
}

func TestFailedOutcome(t *testing.T) {
	out := FailedOutcome(Question{Question: "q", ExpectedAnswer: "e"}, "m", errors.New("boom"))
	require.Equal(t, "ERROR: boom", out.Result.ActualAnswer)
	require.Equal(t, StageAnswer, out.Stage)
	require.False(t, out.Result.IsCorrect)
}
