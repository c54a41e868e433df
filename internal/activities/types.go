package activities

import "finrag/internal/eval"

type EvaluatePairInput struct {
	RunID    string        `json:"run_id"`
	Slot     int           `json:"slot"`
	Question eval.Question `json:"question"`
	Model    string        `json:"model"`
}

type EvaluatePairOutput struct {
	Result eval.ModelResult `json:"result"`
	Failed bool             `json:"failed"`
	Stage  string           `json:"stage,omitempty"`
}

type WriteEvalReportInput struct {
	Results   eval.EvalResults `json:"results"`
	OutputDir string           `json:"output_dir,omitempty"`
}

type WriteEvalReportOutput struct {
	Paths eval.ReportPaths `json:"paths"`
}
