package eval

import (
	"context"
	"fmt"
	"time"

	"finrag/internal/models"
	"finrag/internal/util"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	StageAnswer = "answer"
	StageJudge  = "judge"
)

type Answerer interface {
	Ask(ctx context.Context, q Question, model string) (models.ChatResponse, error)
}

type Grader interface {
	Judge(ctx context.Context, question, expected, actual string) (Judgment, error)
}

// PairOutcome always carries a usable Result. Err is set when the answer or
// judge call failed, and Stage names which one.
type PairOutcome struct {
	Result ModelResult
	Err    error
	Stage  string
}

func (o PairOutcome) Failed() bool { return o.Err != nil }

// FailedOutcome is the row recorded when no answer could be obtained.
func FailedOutcome(q Question, model string, err error) PairOutcome {
	return PairOutcome{
		Result: ModelResult{
			Model:          model,
			Question:       q.Question,
			ExpectedAnswer: q.ExpectedAnswer,
			ActualAnswer:   "ERROR: " + err.Error(),
			Error:          err.Error(),
		},
		Err:   err,
		Stage: StageAnswer,
	}
}

// EvaluatePair asks model the question through a and grades the answer with g.
// A judge failure keeps the answer and its usage and counts as incorrect.
func EvaluatePair(ctx context.Context, a Answerer, g Grader, q Question, model string) PairOutcome {
	resp, err := a.Ask(ctx, q, model)
	if err != nil {
		return FailedOutcome(q, model, err)
	}
	r := ModelResult{
		Model:          model,
		Question:       q.Question,
		ExpectedAnswer: q.ExpectedAnswer,
		ActualAnswer:   resp.Answer,
	}
	if resp.Usage != nil {
		r.InputTokens, r.OutputTokens, r.Cost = resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Usage.CostUSD
	}
	j, err := g.Judge(ctx, q.Question, q.ExpectedAnswer, resp.Answer)
	if err != nil {
		r.Error = err.Error()
		return PairOutcome{Result: r, Err: err, Stage: StageJudge}
	}
	r.IsCorrect = j.IsCorrect
	r.JudgeInputTokens, r.JudgeOutputTokens, r.JudgeCost = j.Usage.InputTokens, j.Usage.OutputTokens, j.Usage.CostUSD
	return PairOutcome{Result: r}
}

type Runner struct {
	answerer    Answerer
	grader      Grader
	concurrency int
	judgeModel  string
	now         func() time.Time
}

func NewRunner(a Answerer, g Grader, concurrency int, judgeModel string) *Runner {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Runner{answerer: a, grader: g, concurrency: concurrency, judgeModel: judgeModel, now: time.Now}
}

// Run evaluates every question against every model and returns exactly
// len(questions)*len(models) results in question-major order. Pair failures
// are recorded, never returned.
func (r *Runner) Run(ctx context.Context, questions []Question, modelNames []string) EvalResults {
	res := EvalResults{
		RunID:           uuid.NewString(),
		Timestamp:       r.now(),
		JudgeModel:      r.judgeModel,
		ModelsEvaluated: append([]string(nil), modelNames...),
		TotalQuestions:  len(questions),
		Results:         make([]ModelResult, len(questions)*len(modelNames)),
	}
	tally := NewTally(modelNames)
	logger := log.With().Str("run_id", res.RunID).Logger()
	logger.Info().Int("questions", len(questions)).Strs("models", modelNames).Int("concurrency", r.concurrency).Msg("evaluation started")

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for qi, q := range questions {
		for mi, model := range modelNames {
			slot := qi*len(modelNames) + mi
			g.Go(func() error {
				pairCtx := util.WithRequestID(ctx, fmt.Sprintf("%s-%d", res.RunID, slot))
				out := EvaluatePair(pairCtx, r.answerer, r.grader, q, model)
				if out.Failed() {
					logger.Error().Err(out.Err).Str("model", model).Str("stage", out.Stage).
						Str("question", util.DisplaySnippet(q.Question, 50)).Msg("pair evaluation failed")
				}
				ObserveOutcome(out)
				res.Results[slot] = out.Result
				tally.Add(out.Result)
				return nil
			})
		}
	}
	_ = g.Wait()

	res.Summaries = tally.Summaries()
	ObserveSummaries(res.Summaries)
	logger.Info().Int("pairs", len(res.Results)).Msg("evaluation finished")
	return res
}
