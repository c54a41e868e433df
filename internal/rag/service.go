package rag

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"finrag/internal/citation"
	"finrag/internal/models"
	"finrag/internal/providers"
	"finrag/internal/retrieval"
	"finrag/internal/storage"
	"finrag/internal/util"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const SystemPrompt = `You are a financial analysis assistant.
You are given context from official company documents (filings, press releases, and earnings call transcripts).
Answer the user's question using ONLY the provided context.
If the answer cannot be found in the context, say that you do not know and suggest which documents or periods might contain it.
Be precise with numbers and clearly state which company and period you are referring to.`

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrRetrieval      = errors.New("retrieval failed")
	ErrProvider       = errors.New("provider call failed")
)

type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, tickers []string, period string) ([]models.ScoredChunk, error)
}

type Chatter interface {
	Chat(ctx context.Context, system, user, modelID string, temperature float64) (providers.ChatResult, error)
}

type Generator interface {
	Generate(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error)
}

type QueryParser interface {
	Parse(ctx context.Context, question string) models.ParsedQuery
}

type ModelResolver interface {
	Resolve(name string) (string, error)
}

type CallRecorder interface {
	Record(ctx context.Context, rec storage.ProviderCallRecord) error
}

// Deps are the long-lived collaborators of a Service. Parser and Recorder are optional.
type Deps struct {
	Retriever Retriever
	Chat      Chatter
	Default   Generator
	Parser    QueryParser
	Models    ModelResolver
	Recorder  CallRecorder
}

type Service struct {
	deps Deps
}

func NewService(d Deps) *Service {
	return &Service{deps: d}
}

// Answer runs retrieval, ranking and one provider call for req. With a model
// the routed chat client is used and usage is reported; without one the
// default provider answers and usage stays nil.
func (s *Service) Answer(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return models.ChatResponse{}, fmt.Errorf("%w: question is required", ErrInvalidRequest)
	}
	topK := req.TopK
	if topK <= 0 {
		topK = retrieval.DefaultTopK
	}

	var modelID string
	if name := strings.TrimSpace(req.Model); name != "" {
		id, err := s.deps.Models.Resolve(name)
		if err != nil {
			return models.ChatResponse{}, err
		}
		modelID = id
	}

	tickers, period := req.Tickers, req.Period
	var clarification string
	if req.AutoParse && len(retrieval.NormalizeTickers(tickers)) == 0 && strings.TrimSpace(period) == "" && s.deps.Parser != nil {
		parsed := s.deps.Parser.Parse(ctx, question)
		if parsed.NeedsClarification {
			if parsed.ClarificationMessage != nil {
				clarification = *parsed.ClarificationMessage
			}
		} else {
			tickers = parsed.Tickers
			if parsed.Period != nil {
				period = *parsed.Period
			}
		}
	}

	scored, err := s.deps.Retriever.Retrieve(ctx, question, topK, tickers, period)
	if err != nil {
		log.Error().Err(err).Strs("tickers", tickers).Str("period", period).Msg("retrieval failed")
		return models.ChatResponse{}, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	ranked := retrieval.Rerank(scored)
	system := SystemPrompt + "\n\nContext:\n" + FormatContext(ranked)

	resp := models.ChatResponse{ClarificationMessage: clarification}
	if modelID != "" {
		res, err := s.routedChat(ctx, system, question, modelID)
		if err != nil {
			return models.ChatResponse{}, fmt.Errorf("%w: %w", ErrProvider, err)
		}
		usage := res.Usage
		resp.Answer, resp.Model, resp.Usage = res.Answer, res.ModelID, &usage
	} else {
		text, err := s.defaultChat(ctx, system, question)
		if err != nil {
			return models.ChatResponse{}, fmt.Errorf("%w: %w", ErrProvider, err)
		}
		resp.Answer = text
	}

	chunks := make([]models.Chunk, len(ranked))
	scores := make([]float64, len(ranked))
	resp.RawContext = make([]models.RawContext, len(ranked))
	for i, sc := range ranked {
		chunks[i], scores[i] = sc.Chunk, sc.Score
		resp.RawContext[i] = models.RawContext{Text: sc.Chunk.Text, Metadata: sc.Chunk.Metadata, Score: sc.Score}
	}
	resp.Citations = citation.Build(chunks, scores)
	return resp, nil
}

// FormatContext renders ranked chunks as numbered blocks, each a header line,
// the chunk text and a blank line.
func FormatContext(ranked []models.ScoredChunk) string {
	parts := make([]string, 0, len(ranked)*3)
	for i, sc := range ranked {
		c := sc.Chunk
		parts = append(parts,
			"[Chunk "+strconv.Itoa(i+1)+" | "+c.MetaString("ticker")+" | "+c.MetaString("filing_type")+" | "+c.MetaString("period")+"]",
			c.Text,
			"",
		)
	}
	return strings.Join(parts, "\n")
}

func (s *Service) routedChat(ctx context.Context, system, question, modelID string) (providers.ChatResult, error) {
	started := time.Now()
	res, err := s.deps.Chat.Chat(ctx, system, question, modelID, providers.DefaultTemperature)
	rec := storage.ProviderCallRecord{
		Operation: "rag_answer",
		Provider:  "openrouter",
		Model:     modelID,
		LatencyMS: time.Since(started).Milliseconds(),
	}
	if err != nil {
		rec.Status, rec.ErrorType = "error", string(providers.ClassifyError(err))
		log.Error().Err(err).Str("model", modelID).Msg("routed chat failed")
	} else {
		rec.Status = "ok"
		rec.InputTokens, rec.OutputTokens, rec.CostUSD = res.Usage.InputTokens, res.Usage.OutputTokens, res.Usage.CostUSD
	}
	s.record(ctx, rec)
	return res, err
}

func (s *Service) defaultChat(ctx context.Context, system, question string) (string, error) {
	started := time.Now()
	out, info, err := s.deps.Default.Generate(ctx, providers.GenerateRequest{
		Operation: "rag_answer",
		System:    system,
		Prompt:    question,
	})
	rec := storage.ProviderCallRecord{
		Operation: "rag_answer",
		Provider:  info.Name,
		Model:     info.Model,
		LatencyMS: time.Since(started).Milliseconds(),
		Status:    "ok",
	}
	if err != nil {
		rec.Status, rec.ErrorType = "error", string(providers.ClassifyError(err))
		if rec.Provider == "" {
			rec.Provider = "default"
		}
		log.Error().Err(err).Msg("default provider failed")
	}
	s.record(ctx, rec)
	if err != nil {
		return "", err
	}
	return out.Text, nil
}

func (s *Service) record(ctx context.Context, rec storage.ProviderCallRecord) {
	if s.deps.Recorder == nil {
		return
	}
	rec.CallID = uuid.NewString()
	rec.RequestID = util.RequestID(ctx)
	if err := s.deps.Recorder.Record(ctx, rec); err != nil {
		log.Warn().Err(err).Str("operation", rec.Operation).Msg("record provider call")
	}
}
