package vector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"finrag/internal/models"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
)

const (
	metaTicker = "ticker"
	metaPeriod = "period"
	metaJSON   = "meta_json"
)

// ChromemIndex is an embedded index backed by chromem-go. Chunk metadata is
// kept whole as JSON next to upper-cased ticker and period keys used for
// filtering.
type ChromemIndex struct {
	db    *chromem.DB
	col   *chromem.Collection
	embed QueryEmbedder
}

// OpenChromem opens (or creates) the named collection. An empty path keeps the
// index in memory.
func OpenChromem(path, collection string, embed QueryEmbedder) (*ChromemIndex, error) {
	if embed == nil {
		return nil, errors.New("chromem index requires a query embedder")
	}
	var db *chromem.DB
	if strings.TrimSpace(path) == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}
	col, err := db.GetOrCreateCollection(collection, nil, embed.EmbedQuery)
	if err != nil {
		return nil, fmt.Errorf("open chromem collection %s: %w", collection, err)
	}
	log.Info().Str("path", path).Str("collection", collection).Int("documents", col.Count()).Msg("chromem index ready")
	return &ChromemIndex{db: db, col: col, embed: embed}, nil
}

func (x *ChromemIndex) Count() int {
	return x.col.Count()
}

// Add stores chunks with precomputed vectors. A nil vectors slice embeds each
// chunk text with the query embedder.
func (x *ChromemIndex) Add(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if vectors != nil && len(vectors) != len(chunks) {
		return fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	docs := make([]chromem.Document, 0, len(chunks))
	for i, c := range chunks {
		if strings.TrimSpace(c.ChunkID) == "" {
			return fmt.Errorf("chunk %d has no chunk_id", i)
		}
		raw, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata for %s: %w", c.ChunkID, err)
		}
		doc := chromem.Document{
			ID:      c.ChunkID,
			Content: c.Text,
			Metadata: map[string]string{
				metaTicker: strings.ToUpper(strings.TrimSpace(c.MetaString("ticker"))),
				metaPeriod: strings.ToUpper(strings.TrimSpace(c.MetaString("period"))),
				metaJSON:   string(raw),
			},
		}
		if vectors != nil {
			doc.Embedding = vectors[i]
		}
		docs = append(docs, doc)
	}
	if err := x.col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add chromem documents: %w", err)
	}
	return nil
}

// Search runs one filtered query per ticker and merges them by similarity.
func (x *ChromemIndex) Search(ctx context.Context, query string, k int, f Filter) ([]models.ScoredChunk, error) {
	count := x.col.Count()
	if k <= 0 || count == 0 {
		return nil, nil
	}
	n := min(k, count)
	vec, err := x.embed.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var out []models.ScoredChunk
	for _, where := range whereClauses(f) {
		res, err := x.col.QueryEmbedding(ctx, vec, n, where, nil)
		if err != nil {
			return nil, fmt.Errorf("query chromem: %w", err)
		}
		for _, r := range res {
			out = append(out, toScored(r))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Chunk.ChunkID < out[j].Chunk.ChunkID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func whereClauses(f Filter) []map[string]string {
	period := strings.ToUpper(strings.TrimSpace(f.Period))
	base := func() map[string]string {
		if period == "" {
			return nil
		}
		return map[string]string{metaPeriod: period}
	}
	if len(f.Tickers) == 0 {
		return []map[string]string{base()}
	}
	out := make([]map[string]string, 0, len(f.Tickers))
	for _, t := range f.Tickers {
		w := base()
		if w == nil {
			w = map[string]string{}
		}
		w[metaTicker] = strings.ToUpper(strings.TrimSpace(t))
		out = append(out, w)
	}
	return out
}

func toScored(r chromem.Result) models.ScoredChunk {
	meta := map[string]any{}
	if raw := r.Metadata[metaJSON]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			log.Warn().Err(err).Str("chunk_id", r.ID).Msg("chromem metadata is not valid json")
		}
	}
	if meta == nil {
		meta = map[string]any{}
	}
	if len(meta) == 0 {
		for _, key := range []string{metaTicker, metaPeriod} {
			if v := r.Metadata[key]; v != "" {
				meta[key] = v
			}
		}
	}
	return models.ScoredChunk{
		Chunk: models.Chunk{ChunkID: r.ID, Text: r.Content, Metadata: meta},
		Score: float64(r.Similarity),
	}
}
