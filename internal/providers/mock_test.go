package providers

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMockEmbedIsDeterministicUnitVector(t *testing.T) {
	m := NewMockProvider(64)
	a, _, err := m.Embed(context.Background(), EmbedRequest{Inputs: []string{"AMZN Q3-2025 revenue", "other"}})
	require.NoError(t, err)
	b, _, err := m.Embed(context.Background(), EmbedRequest{Inputs: []string{"AMZN Q3-2025 revenue"}})
	require.NoError(t, err)
	require.Len(t, a, 2)
	require.Equal(t, a[0], b[0])
	require.NotEqual(t, a[0], a[1])

	var norm float64
	for _, x := range a[0] {
		norm += float64(x) * float64(x)
	}
	require.InDelta(t, 1.0, math.Sqrt(norm), 1e-4)
}

func TestMockGenerateCountsContextChunks(t *testing.T) {
	m := NewMockProvider(8)
	resp, _, err := m.Generate(context.Background(), GenerateRequest{
		Operation: "rag_answer",
		System:    "ctx\n[Chunk 1 | AMZN | 10-Q | Q3-2025]\na\n\n[Chunk 2 | AMZN | 10-Q | Q3-2025]\nb\n",
	})
	require.NoError(t, err)
	require.Contains(t, resp.Text, "2 context chunk(s)")
}
