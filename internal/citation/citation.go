package citation

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"finrag/internal/models"
)

// Build projects chunks into citations, one per chunk in the same order.
// Missing metadata becomes nil. scores[i], when present, is clamped into
// [0, 1] and reported as the relevance score of chunks[i].
func Build(chunks []models.Chunk, scores []float64) []models.Citation {
	out := make([]models.Citation, len(chunks))
	for i, c := range chunks {
		m := c.Metadata
		cit := models.Citation{
			DocID:        str(m, "doc_id"),
			DocTitle:     str(m, "doc_title"),
			Ticker:       str(m, "ticker"),
			FilingType:   str(m, "filing_type"),
			Period:       str(m, "period"),
			Section:      str(m, "section"),
			Page:         integer(m, "page"),
			LineStart:    integer(m, "line_start"),
			LineEnd:      integer(m, "line_end"),
			TableID:      str(m, "table_id"),
			SourceURL:    str(m, "source_url"),
			HighlightURL: str(m, "highlight_url"),
		}
		if c.ChunkID != "" {
			id := c.ChunkID
			cit.ChunkID = &id
		}
		if i < len(scores) {
			s := clamp01(scores[i])
			cit.RelevanceScore = &s
		}
		out[i] = cit
	}
	return out
}

func str(m map[string]any, key string) *string {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case json.Number:
		s = x.String()
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	default:
		s = fmt.Sprint(x)
	}
	return &s
}

func integer(m map[string]any, key string) *int {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	var n int
	switch x := v.(type) {
	case int:
		n = x
	case int32:
		n = int(x)
	case int64:
		n = int(x)
	case float32:
		if !whole(float64(x)) {
			return nil
		}
		n = int(x)
	case float64:
		if !whole(x) {
			return nil
		}
		n = int(x)
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return nil
		}
		n = int(i)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return nil
		}
		n = i
	default:
		return nil
	}
	return &n
}

func whole(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f == math.Trunc(f)
}

func clamp01(f float64) float64 {
	switch {
	case math.IsNaN(f) || f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
