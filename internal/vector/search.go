package vector

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"finrag/internal/models"

	"github.com/jackc/pgx/v5"
)

type Searcher struct {
	q     Queryer
	embed QueryEmbedder
}

type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func NewSearcher(q Queryer, embed QueryEmbedder) *Searcher {
	return &Searcher{q: q, embed: embed}
}

func (s *Searcher) Search(ctx context.Context, query string, k int, f Filter) ([]models.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	vec, err := s.embed.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	sql, args := buildSearchSQL(ToLiteral(vec), k, f)

	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query vector search: %w", err)
	}
	defer rows.Close()

	results := make([]models.ScoredChunk, 0, k)
	for rows.Next() {
		var r models.ScoredChunk
		if err := rows.Scan(&r.Chunk.ChunkID, &r.Chunk.Text, &r.Chunk.Metadata, &r.Score); err != nil {
			return nil, fmt.Errorf("scan chunk result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}

// buildSearchSQL keeps the filters inside the ORDER BY ... LIMIT query so the
// index returns the k nearest matching chunks rather than k raw neighbours.
func buildSearchSQL(vecLiteral string, k int, f Filter) (string, []any) {
	args := []any{vecLiteral, k}
	filterSQL := ""
	if len(f.Tickers) > 0 {
		args = append(args, f.Tickers)
		filterSQL += " AND upper(c.ticker) = ANY($" + strconv.Itoa(len(args)) + ")"
	}
	if strings.TrimSpace(f.Period) != "" {
		args = append(args, strings.ToUpper(strings.TrimSpace(f.Period)))
		filterSQL += " AND upper(c.period) = $" + strconv.Itoa(len(args))
	}

	query := `
SELECT c.chunk_id,
       c.text,
       COALESCE(c.metadata, '{}'::jsonb) AS metadata,
       1 - (c.embedding <=> $1::vector) AS score
FROM fin_chunks c
WHERE c.embedding IS NOT NULL` + filterSQL + `
ORDER BY c.embedding <=> $1::vector, c.chunk_id
LIMIT $2`
	return query, args
}

func ToLiteral(v []float32) string {
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	return "[" + strings.Join(parts, ",") + "]"
}
