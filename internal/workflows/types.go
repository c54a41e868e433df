package workflows

import "finrag/internal/eval"

type EvalBatchInput struct {
	RunID                  string          `json:"run_id"`
	Questions              []eval.Question `json:"questions"`
	Models                 []string        `json:"models"`
	JudgeModel             string          `json:"judge_model"`
	MaxConcurrent          int             `json:"max_concurrent"`
	OutputDir              string          `json:"output_dir,omitempty"`
	ActivityTimeoutSeconds int             `json:"activity_timeout_seconds,omitempty"`
	MaxAttempts            int             `json:"max_attempts,omitempty"`
}

type EvalBatchOutput struct {
	Results eval.EvalResults `json:"results"`
	Reports eval.ReportPaths `json:"reports"`
}

type EvalProgress struct {
	RunID    string         `json:"run_id"`
	Total    int            `json:"total"`
	Done     int            `json:"done"`
	Failed   int            `json:"failed"`
	Correct  int            `json:"correct"`
	PerModel map[string]int `json:"per_model_done"`
}
