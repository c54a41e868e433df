package workflows

import (
	"errors"
	"fmt"
	"time"

	"finrag/internal/activities"
	"finrag/internal/eval"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetEvalProgress = "GetEvalProgress"

// EvalBatchWorkflow evaluates every question against every model in batches
// of MaxConcurrent pairs, then writes the report artifacts. It always yields
// len(Questions)*len(Models) results; pairs whose activity failed become
// error rows.
func EvalBatchWorkflow(ctx workflow.Context, input EvalBatchInput) (EvalBatchOutput, error) {
	total := len(input.Questions) * len(input.Models)
	progress := EvalProgress{RunID: input.RunID, Total: total, PerModel: map[string]int{}}
	if err := workflow.SetQueryHandler(ctx, QueryGetEvalProgress, func() (EvalProgress, error) {
		return progress, nil
	}); err != nil {
		return EvalBatchOutput{}, err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: durationOrDefault(input.ActivityTimeoutSeconds, 300),
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    int32(defaultCount(input.MaxAttempts, 3)),
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)

	type pair struct {
		question eval.Question
		model    string
	}
	pairs := make([]pair, 0, total)
	for _, q := range input.Questions {
		for _, m := range input.Models {
			pairs = append(pairs, pair{question: q, model: m})
		}
	}

	results := make([]eval.ModelResult, total)
	batch := defaultCount(input.MaxConcurrent, 4)
	for i := 0; i < len(pairs); i += batch {
		end := min(i+batch, len(pairs))
		futures := make([]workflow.Future, 0, end-i)
		for slot := i; slot < end; slot++ {
			p := pairs[slot]
			futures = append(futures, workflow.ExecuteActivity(ctx, "EvaluatePairActivity", activities.EvaluatePairInput{
				RunID:    input.RunID,
				Slot:     slot,
				Question: p.question,
				Model:    p.model,
			}))
		}

		for idx, f := range futures {
			slot := i + idx
			p := pairs[slot]
			var out activities.EvaluatePairOutput
			if err := f.Get(ctx, &out); err != nil {
				logger.Warn("pair failed", "model", p.model, "slot", slot, "error", err)
				out = activities.EvaluatePairOutput{
					Result: eval.FailedOutcome(p.question, p.model, activityCause(err)).Result,
					Failed: true,
					Stage:  eval.StageAnswer,
				}
			}
			results[slot] = out.Result
			progress.Done++
			progress.PerModel[p.model]++
			if out.Failed {
				progress.Failed++
			}
			if out.Result.IsCorrect {
				progress.Correct++
			}
		}
	}

	res := eval.EvalResults{
		RunID:           input.RunID,
		Timestamp:       workflow.Now(ctx),
		JudgeModel:      input.JudgeModel,
		ModelsEvaluated: input.Models,
		TotalQuestions:  len(input.Questions),
		Results:         results,
		Summaries:       eval.Summarize(input.Models, results),
	}

	var report activities.WriteEvalReportOutput
	if err := workflow.ExecuteActivity(ctx, "WriteEvalReportActivity", activities.WriteEvalReportInput{
		Results:   res,
		OutputDir: input.OutputDir,
	}).Get(ctx, &report); err != nil {
		return EvalBatchOutput{Results: res}, fmt.Errorf("write eval report: %w", err)
	}
	return EvalBatchOutput{Results: res, Reports: report.Paths}, nil
}

// activityCause strips the activity envelope so result rows carry the
// underlying failure message.
func activityCause(err error) error {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr
	}
	var timeoutErr *temporal.TimeoutError
	if errors.As(err, &timeoutErr) {
		return timeoutErr
	}
	return err
}

func durationOrDefault(seconds int, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}

func defaultCount(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}
