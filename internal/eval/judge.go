package eval

import (
	"context"
	"fmt"
	"strings"

	"finrag/internal/models"
	"finrag/internal/providers"
	"finrag/internal/registry"
)

const judgeSystemPrompt = `You are an expert evaluator assessing whether an AI-generated answer correctly addresses a question based on an expected answer.

Your task is to determine if the AI's answer is CORRECT or INCORRECT.

Guidelines for evaluation:
1. The AI answer does not need to be word-for-word identical to the expected answer
2. The AI answer should contain the key facts, numbers, and conclusions from the expected answer
3. Minor differences in phrasing, formatting, or additional context are acceptable if the core answer is correct
4. If the AI answer contains the correct information but also includes incorrect information, mark it as INCORRECT
5. If the AI answer is a partial match (missing key information), mark it as INCORRECT
6. Numbers must be accurate (small rounding differences are acceptable)

Respond with ONLY one word: CORRECT or INCORRECT

Do not provide any explanation or additional text.`

const judgeUserTemplate = "Question: %s\n\nExpected Answer: %s\n\nAI-Generated Answer: %s\n\nIs the AI-generated answer correct?"

type Chatter interface {
	Chat(ctx context.Context, system, user, modelID string, temperature float64) (providers.ChatResult, error)
}

type Judgment struct {
	IsCorrect bool
	Verdict   string
	Usage     models.UsageInfo
}

type Judge struct {
	chat  Chatter
	model string
}

// NewJudge grades with model, or the registry judge when model is empty.
func NewJudge(chat Chatter, model string) *Judge {
	if strings.TrimSpace(model) == "" {
		model = registry.JudgeModel
	}
	return &Judge{chat: chat, model: model}
}

func (j *Judge) Model() string { return j.model }

// Judge asks the judge model for a one-word verdict at temperature 0.
func (j *Judge) Judge(ctx context.Context, question, expected, actual string) (Judgment, error) {
	res, err := j.chat.Chat(ctx, judgeSystemPrompt, fmt.Sprintf(judgeUserTemplate, question, expected, actual), j.model, 0)
	if err != nil {
		return Judgment{}, fmt.Errorf("judge: %w", err)
	}
	return Judgment{IsCorrect: ParseVerdict(res.Answer), Verdict: res.Answer, Usage: res.Usage}, nil
}

// ParseVerdict is true only for a reply that is exactly CORRECT, ignoring
// case and surrounding whitespace.
func ParseVerdict(reply string) bool {
	return strings.ToUpper(strings.TrimSpace(reply)) == "CORRECT"
}
