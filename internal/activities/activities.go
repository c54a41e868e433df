package activities

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"finrag/internal/eval"
	"finrag/internal/util"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
)

type Activities struct {
	answerer  eval.Answerer
	grader    eval.Grader
	outputDir string
}

func New(answerer eval.Answerer, grader eval.Grader, outputDir string) *Activities {
	return &Activities{answerer: answerer, grader: grader, outputDir: outputDir}
}

// EvaluatePairActivity answers and grades one pair. A failed answer call is
// returned as an error so the activity retry policy applies; client errors
// are marked non-retryable. A failed judge call is reported in the output.
func (a *Activities) EvaluatePairActivity(ctx context.Context, in EvaluatePairInput) (EvaluatePairOutput, error) {
	ctx = util.WithRequestID(ctx, fmt.Sprintf("%s-%d", in.RunID, in.Slot))
	out := eval.EvaluatePair(ctx, a.answerer, a.grader, in.Question, in.Model)
	if out.Failed() && out.Stage == eval.StageAnswer {
		activity.GetLogger(ctx).Warn("answer call failed", "model", in.Model, "error", out.Err)
		var se *eval.StatusError
		if errors.As(out.Err, &se) && !se.Retryable() {
			return EvaluatePairOutput{}, temporal.NewNonRetryableApplicationError(se.Error(), "AnswerRejected", se)
		}
		return EvaluatePairOutput{}, out.Err
	}
	eval.ObserveOutcome(out)
	return EvaluatePairOutput{Result: out.Result, Failed: out.Failed(), Stage: out.Stage}, nil
}

func (a *Activities) WriteEvalReportActivity(ctx context.Context, in WriteEvalReportInput) (WriteEvalReportOutput, error) {
	_ = ctx
	dir := strings.TrimSpace(in.OutputDir)
	if dir == "" {
		dir = a.outputDir
	}
	paths, err := eval.WriteReports(in.Results, dir, in.Results.Timestamp)
	if err != nil {
		return WriteEvalReportOutput{}, err
	}
	eval.ObserveSummaries(in.Results.Summaries)
	return WriteEvalReportOutput{Paths: paths}, nil
}
