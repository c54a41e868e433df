package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finrag/internal/models"
	"finrag/internal/util"
	"finrag/internal/vector"

	"github.com/rs/zerolog/log"
)

const DefaultTopK = 8

type Retriever struct {
	index   vector.Index
	timeout time.Duration
}

// NewRetriever wraps index. A non-positive timeout leaves the caller's deadline alone.
func NewRetriever(index vector.Index, timeout time.Duration) *Retriever {
	return &Retriever{index: index, timeout: timeout}
}

// Retrieve returns at most k chunks matching the ticker and period filters.
// Filters are pushed down to the index. Index errors are returned as is.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, tickers []string, period string) ([]models.ScoredChunk, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	f := vector.Filter{Tickers: NormalizeTickers(tickers), Period: NormalizePeriod(period)}

	start := time.Now()
	results, err := r.index.Search(ctx, query, k, f)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(results) > k {
		results = results[:k]
	}
	log.Debug().
		Strs("tickers", f.Tickers).
		Str("period", f.Period).
		Int("k", k).
		Int("results", len(results)).
		Dur("took", time.Since(start)).
		Msg("retrieved chunks")
	return results, nil
}

// NormalizeTickers trims, upper-cases and dedupes, dropping blanks. Nil means no filter.
func NormalizeTickers(in []string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, t := range in {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// NormalizePeriod returns the canonical Q#-YYYY form when recognizable and the
// upper-cased input otherwise.
func NormalizePeriod(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if canon, ok := util.CanonicalPeriod(p); ok {
		return canon
	}
	return strings.ToUpper(p)
}
