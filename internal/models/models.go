package models

// Chunk is a retrievable span of filing text. Recognized metadata keys:
// doc_id, doc_title, ticker, filing_type, period, section, page, line_start,
// line_end, table_id, source_url, highlight_url.
type Chunk struct {
	ChunkID  string         `json:"chunk_id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// MetaString returns the metadata value for key when it is a string.
func (c Chunk) MetaString(key string) string {
	if c.Metadata == nil {
		return ""
	}
	s, _ := c.Metadata[key].(string)
	return s
}

// ScoredChunk pairs a chunk with its cosine similarity to the query.
// Higher is more similar.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

type ParsedQuery struct {
	Tickers              []string `json:"tickers"`
	Period               *string  `json:"period"`
	NeedsClarification   bool     `json:"needs_clarification"`
	ClarificationMessage *string  `json:"clarification_message"`
}

type Citation struct {
	DocID          *string  `json:"doc_id"`
	DocTitle       *string  `json:"doc_title"`
	Ticker         *string  `json:"ticker"`
	FilingType     *string  `json:"filing_type"`
	Period         *string  `json:"period"`
	Section        *string  `json:"section"`
	Page           *int     `json:"page"`
	LineStart      *int     `json:"line_start"`
	LineEnd        *int     `json:"line_end"`
	TableID        *string  `json:"table_id"`
	SourceURL      *string  `json:"source_url"`
	HighlightURL   *string  `json:"highlight_url"`
	ChunkID        *string  `json:"chunk_id"`
	RelevanceScore *float64 `json:"relevance_score,omitempty"`
}

type UsageInfo struct {
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	TotalTokens  int64   `json:"total_tokens"`
	CostUSD      float64 `json:"cost"`
}

type ChatRequest struct {
	Question  string   `json:"question"`
	Tickers   []string `json:"tickers,omitempty"`
	Period    string   `json:"period,omitempty"`
	TopK      int      `json:"top_k,omitempty"`
	Model     string   `json:"model,omitempty"`
	AutoParse bool     `json:"auto_parse,omitempty"`
}

type RawContext struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
}

type ChatResponse struct {
	Answer               string       `json:"answer"`
	Citations            []Citation   `json:"citations"`
	RawContext           []RawContext `json:"raw_context,omitempty"`
	Model                string       `json:"model,omitempty"`
	Usage                *UsageInfo   `json:"usage,omitempty"`
	ClarificationMessage string       `json:"clarification_message,omitempty"`
}
