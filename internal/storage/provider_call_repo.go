package storage

import (
	"context"
	"fmt"
)

type ProviderCallRecord struct {
	CallID       string
	Operation    string
	Provider     string
	Model        string
	RequestID    string
	Status       string
	ErrorType    string
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
	LatencyMS    int64
}

type ProviderCallRepo struct {
	db *DB
}

func NewProviderCallRepo(db *DB) *ProviderCallRepo {
	return &ProviderCallRepo{db: db}
}

func (r *ProviderCallRepo) Record(ctx context.Context, rec ProviderCallRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO provider_calls(call_id, operation, provider, model, request_id, status, error_type, input_tokens, output_tokens, cost_usd, latency_ms)
VALUES (COALESCE(NULLIF($1,'')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, NULLIF($7,''), $8, $9, $10, $11)`,
		rec.CallID, rec.Operation, rec.Provider, rec.Model, rec.RequestID, rec.Status, rec.ErrorType,
		rec.InputTokens, rec.OutputTokens, rec.CostUSD, rec.LatencyMS)
	if err != nil {
		return fmt.Errorf("insert provider call: %w", err)
	}
	return nil
}
