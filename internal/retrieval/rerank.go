package retrieval

import (
	"sort"

	"finrag/internal/models"
	"finrag/internal/util"
)

// Rerank orders chunks by score descending (chunk_id ascending on ties) and
// keeps the best-scored entry among chunks sharing a chunk_id or the same
// normalized text. The input slice is not modified.
func Rerank(in []models.ScoredChunk) []models.ScoredChunk {
	sorted := make([]models.ScoredChunk, len(in))
	copy(sorted, in)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Chunk.ChunkID < sorted[j].Chunk.ChunkID
	})

	seenIDs := make(map[string]struct{}, len(sorted))
	seenSpans := make(map[string]struct{}, len(sorted))
	out := make([]models.ScoredChunk, 0, len(sorted))
	for _, sc := range sorted {
		id := sc.Chunk.ChunkID
		if id != "" {
			if _, dup := seenIDs[id]; dup {
				continue
			}
		}
		span := util.SpanKey(sc.Chunk.Text)
		if span != "" {
			if _, dup := seenSpans[span]; dup {
				continue
			}
			seenSpans[span] = struct{}{}
		}
		if id != "" {
			seenIDs[id] = struct{}{}
		}
		out = append(out, sc)
	}
	return out
}
