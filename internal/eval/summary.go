package eval

import "sync"

// Tally folds results into per-model summaries. Safe for concurrent Add.
type Tally struct {
	mu      sync.Mutex
	order   []string
	byModel map[string]*ModelSummary
}

// NewTally pre-registers models so summaries follow their order even when a
// model has no results.
func NewTally(models []string) *Tally {
	t := &Tally{byModel: map[string]*ModelSummary{}}
	for _, m := range models {
		t.ensure(m)
	}
	return t
}

func (t *Tally) ensure(model string) *ModelSummary {
	s, ok := t.byModel[model]
	if !ok {
		s = &ModelSummary{Model: model}
		t.byModel[model] = s
		t.order = append(t.order, model)
	}
	return s
}

func (t *Tally) Add(r ModelResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.ensure(r.Model)
	s.TotalQuestions++
	if r.IsCorrect {
		s.Correct++
	}
	s.TotalInputTokens += r.InputTokens
	s.TotalOutputTokens += r.OutputTokens
	s.TotalCost += r.Cost
	s.JudgeInputTokens += r.JudgeInputTokens
	s.JudgeOutputTokens += r.JudgeOutputTokens
	s.JudgeCost += r.JudgeCost
}

// Summaries returns a snapshot with accuracy filled in.
func (t *Tally) Summaries() []ModelSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ModelSummary, 0, len(t.order))
	for _, m := range t.order {
		s := *t.byModel[m]
		s.Accuracy = Accuracy(s.Correct, s.TotalQuestions)
		out = append(out, s)
	}
	return out
}

// Summarize aggregates results without side effects.
func Summarize(models []string, results []ModelResult) []ModelSummary {
	t := NewTally(models)
	for _, r := range results {
		t.Add(r)
	}
	return t.Summaries()
}

func Accuracy(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}
