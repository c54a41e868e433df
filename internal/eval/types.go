package eval

import "time"

type Question struct {
	Question       string   `json:"question"`
	ExpectedAnswer string   `json:"expected_answer"`
	Tickers        []string `json:"tickers"`
	Period         string   `json:"period"`
}

// ModelResult is the outcome of one (question, model) pair.
type ModelResult struct {
	Model             string  `json:"model"`
	Question          string  `json:"question"`
	ExpectedAnswer    string  `json:"expected_answer"`
	ActualAnswer      string  `json:"actual_answer"`
	IsCorrect         bool    `json:"is_correct"`
	InputTokens       int64   `json:"input_tokens"`
	OutputTokens      int64   `json:"output_tokens"`
	Cost              float64 `json:"cost"`
	JudgeInputTokens  int64   `json:"judge_input_tokens"`
	JudgeOutputTokens int64   `json:"judge_output_tokens"`
	JudgeCost         float64 `json:"judge_cost"`
	Error             string  `json:"error,omitempty"`
}

type ModelSummary struct {
	Model             string  `json:"model"`
	TotalQuestions    int     `json:"total_questions"`
	Correct           int     `json:"correct"`
	Accuracy          float64 `json:"accuracy"`
	TotalInputTokens  int64   `json:"total_input_tokens"`
	TotalOutputTokens int64   `json:"total_output_tokens"`
	TotalCost         float64 `json:"total_cost"`
	JudgeInputTokens  int64   `json:"judge_input_tokens"`
	JudgeOutputTokens int64   `json:"judge_output_tokens"`
	JudgeCost         float64 `json:"judge_cost"`
}

type EvalResults struct {
	RunID           string         `json:"run_id"`
	Timestamp       time.Time      `json:"timestamp"`
	JudgeModel      string         `json:"judge_model"`
	ModelsEvaluated []string       `json:"models_evaluated"`
	TotalQuestions  int            `json:"total_questions"`
	Results         []ModelResult  `json:"results"`
	Summaries       []ModelSummary `json:"summaries"`
}
