package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"finrag/internal/config"
	"finrag/internal/models"
	"finrag/internal/rag"
	"finrag/internal/registry"
	"finrag/internal/util"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

type Answerer interface {
	Answer(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error)
}

type QueryParser interface {
	Parse(ctx context.Context, question string) models.ParsedQuery
}

type ModelCatalog interface {
	Entries() []registry.Alias
	JudgeModel() string
}

type Deps struct {
	RAG    Answerer
	Parser QueryParser
	Models ModelCatalog
	// Metrics serves /metrics. Nil means promhttp.Handler().
	Metrics http.Handler
}

type Server struct {
	cfg    config.Config
	rag    Answerer
	parser QueryParser
	models ModelCatalog
	prom   http.Handler
}

func NewServer(cfg config.Config, d Deps) *Server {
	prom := d.Metrics
	if prom == nil {
		prom = promhttp.Handler()
	}
	return &Server{cfg: cfg, rag: d.RAG, parser: d.Parser, models: d.Models, prom: prom}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/healthz", instrument("healthz", http.HandlerFunc(s.handleHealthz)))
	mux.Handle("/chat", instrument("chat", http.HandlerFunc(s.handleChat)))
	mux.Handle("/chat/parse-query", instrument("parse_query", http.HandlerFunc(s.handleParseQuery)))
	mux.Handle("/models", instrument("models", http.HandlerFunc(s.handleModels)))
	mux.Handle("/metrics", s.prom)
	return withRequestID(withCORS(mux))
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "vector_backend": s.cfg.VectorBackend})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req models.ChatRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("question is required"))
		return
	}
	if req.TopK < 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("top_k must be positive"))
		return
	}

	resp, err := s.rag.Answer(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		log.Ctx(r.Context()).Error().Err(err).
			Str("request_id", util.RequestID(r.Context())).
			Str("model", req.Model).
			Int("status", status).
			Msg("chat failed")
		writeErr(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleParseQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		Question string `json:"question"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("question is required"))
		return
	}
	if s.parser == nil {
		writeErr(w, http.StatusNotFound, fmt.Errorf("query parsing is not configured"))
		return
	}
	writeJSON(w, http.StatusOK, s.parser.Parse(r.Context(), req.Question))
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"models": s.models.Entries(),
		"judge":  s.models.JudgeModel(),
	})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func statusFor(err error) int {
	var nf *registry.ModelNotFoundError
	switch {
	case errors.As(err, &nf), errors.Is(err, rag.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, rag.ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "FR-API-4000"

	var nf *registry.ModelNotFoundError
	if errors.As(err, &nf) {
		return apiError{Code: "FR-API-4001", Message: nf.Error()}
	}

	switch {
	case status == http.StatusBadGateway:
		return apiError{
			Code:    "FR-API-5020",
			Message: "Upstream model provider failed. Retry shortly.",
		}
	case status >= 500:
		raw := ""
		if err != nil {
			raw = strings.ToLower(err.Error())
		}
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "FR-DB-5001",
				Message: "Vector index schema is not initialized. Apply the schema and retry.",
			}
		case strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "FR-DB-5002",
				Message: "Vector index is unavailable. Check local services and retry.",
			}
		case errors.Is(err, rag.ErrRetrieval):
			return apiError{
				Code:    "FR-API-5001",
				Message: "Retrieval failed. No answer was generated.",
			}
		default:
			return apiError{
				Code:    "FR-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "FR-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "FR-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusMethodNotAllowed:
		code = "FR-API-4005"
		msg = "This endpoint does not support the requested method."
	}

	// 4xx messages only carry user-safe validation context.
	if status >= 400 && status < 500 && err != nil {
		low := strings.ToLower(err.Error())
		switch {
		case strings.Contains(low, "question is required"):
			msg = "Question is required."
		case strings.Contains(low, "top_k"):
			msg = "top_k must be a positive integer."
		case strings.Contains(low, "invalid json"):
			msg = "Malformed JSON request body."
		case strings.Contains(low, "not configured"):
			msg = "Query parsing is not available on this server."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRequestID propagates X-Request-ID (minting one when absent) into the
// context and a request-scoped logger.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := util.WithRequestID(r.Context(), id)
		ctx = log.With().Str("request_id", id).Logger().WithContext(ctx)
		started := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		log.Ctx(ctx).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("latency", time.Since(started)).
			Msg("request served")
	})
}
