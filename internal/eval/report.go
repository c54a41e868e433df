package eval

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"finrag/internal/util"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

const timestampLayout = "20060102_150405"

var (
	detailedHeader = []string{
		"model", "question", "expected_answer", "actual_answer", "is_correct",
		"input_tokens", "output_tokens", "cost",
		"judge_input_tokens", "judge_output_tokens", "judge_cost",
	}
	summaryHeader = []string{
		"model", "total_questions", "correct", "accuracy",
		"total_input_tokens", "total_output_tokens", "total_cost",
		"judge_input_tokens", "judge_output_tokens", "judge_cost",
	}
)

type ReportPaths struct {
	Detailed string `json:"detailed"`
	Summary  string `json:"summary"`
	JSON     string `json:"json"`
}

// WriteReports writes eval_detailed_<ts>.csv, eval_summary_<ts>.csv and
// eval_results_<ts>.json under dir.
func WriteReports(res EvalResults, dir string, now time.Time) (ReportPaths, error) {
	if err := util.EnsureDir(dir); err != nil {
		return ReportPaths{}, fmt.Errorf("create output dir: %w", err)
	}
	ts := now.Format(timestampLayout)
	paths := ReportPaths{
		Detailed: filepath.Join(dir, "eval_detailed_"+ts+".csv"),
		Summary:  filepath.Join(dir, "eval_summary_"+ts+".csv"),
		JSON:     filepath.Join(dir, "eval_results_"+ts+".json"),
	}

	if err := util.WriteCSVAtomic(paths.Detailed, detailedHeader, DetailedRows(res.Results)); err != nil {
		return ReportPaths{}, fmt.Errorf("write detailed report: %w", err)
	}
	if err := util.WriteCSVAtomic(paths.Summary, summaryHeader, SummaryRows(res.Summaries)); err != nil {
		return ReportPaths{}, fmt.Errorf("write summary report: %w", err)
	}
	if err := util.WriteJSONAtomic(paths.JSON, res); err != nil {
		return ReportPaths{}, fmt.Errorf("write json report: %w", err)
	}
	return paths, nil
}

func DetailedRows(results []ModelResult) [][]string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.Model, r.Question, r.ExpectedAnswer, r.ActualAnswer, strconv.FormatBool(r.IsCorrect),
			itoa(r.InputTokens), itoa(r.OutputTokens), ftoa(r.Cost),
			itoa(r.JudgeInputTokens), itoa(r.JudgeOutputTokens), ftoa(r.JudgeCost),
		})
	}
	return rows
}

func SummaryRows(summaries []ModelSummary) [][]string {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.Model, strconv.Itoa(s.TotalQuestions), strconv.Itoa(s.Correct), percent(s.Accuracy, 2),
			itoa(s.TotalInputTokens), itoa(s.TotalOutputTokens), dollars(s.TotalCost),
			itoa(s.JudgeInputTokens), itoa(s.JudgeOutputTokens), dollars(s.JudgeCost),
		})
	}
	return rows
}

// PrintSummary renders per-model results sorted by accuracy, best first.
func PrintSummary(w io.Writer, res EvalResults) {
	rule := strings.Repeat("=", 100)
	fmt.Fprintf(w, "\n%s\nEVALUATION RESULTS SUMMARY\n%s\n", rule, rule)
	fmt.Fprintf(w, "Run: %s\n", res.RunID)
	fmt.Fprintf(w, "Timestamp: %s\n", res.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(w, "Total Questions: %d\n", res.TotalQuestions)
	fmt.Fprintf(w, "Models Evaluated: %s\n\n", strings.Join(res.ModelsEvaluated, ", "))

	sorted := append([]ModelSummary(nil), res.Summaries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Accuracy > sorted[j].Accuracy })

	table := createSummaryTable(w)
	var judgeCost float64
	for _, s := range sorted {
		_ = table.Append([]string{
			s.Model, strconv.Itoa(s.TotalQuestions), strconv.Itoa(s.Correct), percent(s.Accuracy, 1),
			groupDigits(s.TotalInputTokens), groupDigits(s.TotalOutputTokens), dollars(s.TotalCost),
		})
		judgeCost += s.JudgeCost
	}
	_ = table.Render()

	judge := "Judge"
	if res.JudgeModel != "" {
		judge = "Judge (" + res.JudgeModel + ")"
	}
	fmt.Fprintf(w, "\nTotal %s Cost: %s\n%s\n", judge, dollars(judgeCost), rule)
}

func createSummaryTable(w io.Writer) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		MaxWidth: 120,
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader([]string{"Model", "Questions", "Correct", "Accuracy", "In Tokens", "Out Tokens", "Cost"}),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func percent(f float64, decimals int) string {
	return strconv.FormatFloat(f*100, 'f', decimals, 64) + "%"
}

func dollars(f float64) string { return fmt.Sprintf("$%.4f", f) }

func groupDigits(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
