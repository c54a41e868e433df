package eval

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadQuestions(t *testing.T) {
	in := "question,expected_answer,tickers,period\n" +
		"\"How much money did Amazon make in Q3 2025?\",\"$180.2B in net sales\",AMZN,Q3-2025\n" +
		"Compare Apple and Microsoft,\"Apple: $94B, Microsoft: $77B\",\"[\"\"AAPL\"\",\"\"MSFT\"\"]\",Q3-2025\n" +
		"Any company?,No,\"AMZN, , GOOGL\",\n" +
		"No tickers,Nothing,,\n"
	qs, err := ReadQuestions(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, qs, 4)
	require.Equal(t, Question{
		Question: "How much money did Amazon make in Q3 2025?", ExpectedAnswer: "$180.2B in net sales",
		Tickers: []string{"AMZN"}, Period: "Q3-2025",
	}, qs[0])
	require.Equal(t, []string{"AAPL", "MSFT"}, qs[1].Tickers)
	require.Equal(t, "Apple: $94B, Microsoft: $77B", qs[1].ExpectedAnswer)
	require.Equal(t, []string{"AMZN", "GOOGL"}, qs[2].Tickers)
	require.Empty(t, qs[2].Period)
	require.Nil(t, qs[3].Tickers)
}

func TestReadQuestionsOptionalColumns(t *testing.T) {
	qs, err := ReadQuestions(strings.NewReader("\ufeffQuestion,Expected_Answer\nq1,a1\n"))
	require.NoError(t, err)
	require.Equal(t, []Question{{Question: "q1", ExpectedAnswer: "a1"}}, qs)
}

func TestReadQuestionsErrors(t *testing.T) {
	_, err := ReadQuestions(strings.NewReader(""))
	require.Error(t, err)

	_, err = ReadQuestions(strings.NewReader("question,tickers\nq,AMZN\n"))
	require.ErrorContains(t, err, "expected_answer")

	_, err = ReadQuestions(strings.NewReader("question,expected_answer,tickers\nq,a,\"[AMZN\"\n"))
	require.ErrorContains(t, err, "row 2")
}

func TestLoadQuestions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.csv")
	require.NoError(t, os.WriteFile(path, []byte("question,expected_answer,tickers,period\nq,a,NVDA,Q2-2025\n"), 0o644))
	qs, err := LoadQuestions(path)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	require.Equal(t, []string{"NVDA"}, qs[0].Tickers)

	_, err = LoadQuestions(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}

func TestParseTickers(t *testing.T) {
	got, err := ParseTickers(` ["AMZN"] `)
	require.NoError(t, err)
	require.Equal(t, []string{"AMZN"}, got)

	got, err = ParseTickers("")
	require.NoError(t, err)
	require.Nil(t, got)
}
