package vector

import (
	"context"

	"finrag/internal/models"
)

// Filter restricts a search to chunks whose ticker is one of Tickers and whose
// period equals Period. Empty fields do not filter.
type Filter struct {
	Tickers []string
	Period  string
}

// Index is a read-only similarity index over filing chunks. Results are
// ordered by score descending, ties by chunk_id ascending, and hold at most k
// entries that all satisfy the filter.
type Index interface {
	Search(ctx context.Context, query string, k int, f Filter) ([]models.ScoredChunk, error)
}

type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
