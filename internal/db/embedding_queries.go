package db

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// VectorLiteral renders a dense float vector as pgvector's text input format, e.g. "[0.1,0.2]".
func VectorLiteral(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(float64(v), 'f', 8, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// ParseVectorLiteral parses pgvector's text output format back into a float slice.
func ParseVectorLiteral(literal string) ([]float32, error) {
	trimmed := strings.TrimSpace(literal)
	trimmed = strings.TrimPrefix(trimmed, "[")
	trimmed = strings.TrimSuffix(trimmed, "]")
	if trimmed == "" {
		return nil, nil
	}
	fields := strings.Split(trimmed, ",")
	out := make([]float32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
		if err != nil {
			return nil, fmt.Errorf("parse vector component %q: %w", f, err)
		}
		out[i] = float32(v)
	}
	return out, nil
}

// UpsertEmbedding inserts or replaces the embedding for a grievance.
func (p *Pool) UpsertEmbedding(ctx context.Context, grievanceID int64, vec []float32, modelName, modelVersion, endpoint string, latencyMS int, now time.Time) (int64, error) {
	const q = `
INSERT INTO grievdedup.embeddings (
	grievance_id, model_name, model_version, vector, embedded_at, service_endpoint, latency_ms
)
VALUES ($1, $2, $3, $4::vector, $5, $6, $7)
ON CONFLICT (grievance_id) DO UPDATE SET
	model_name = EXCLUDED.model_name,
	model_version = EXCLUDED.model_version,
	vector = EXCLUDED.vector,
	embedded_at = EXCLUDED.embedded_at,
	service_endpoint = EXCLUDED.service_endpoint,
	latency_ms = EXCLUDED.latency_ms
RETURNING embedding_id
`

	var embeddingID int64
	err := p.QueryRow(ctx, q, grievanceID, modelName, modelVersion, VectorLiteral(vec), now, endpoint, latencyMS).Scan(&embeddingID)
	if err != nil {
		return 0, fmt.Errorf("upsert embedding: %w", err)
	}
	return embeddingID, nil
}

// GetEmbeddingVector returns the stored embedding vector for a grievance, if any.
func (p *Pool) GetEmbeddingVector(ctx context.Context, grievanceID int64) ([]float32, error) {
	const q = `SELECT vector::text FROM grievdedup.embeddings WHERE grievance_id = $1`

	var literal string
	if err := p.QueryRow(ctx, q, grievanceID).Scan(&literal); err != nil {
		return nil, err
	}
	return ParseVectorLiteral(literal)
}

// ListEmbeddingsByIDs returns vectors for a set of grievance IDs, keyed by grievance ID.
func (p *Pool) ListEmbeddingsByIDs(ctx context.Context, grievanceIDs []int64) (map[int64][]float32, error) {
	if len(grievanceIDs) == 0 {
		return map[int64][]float32{}, nil
	}

	const q = `
SELECT grievance_id, vector::text
FROM grievdedup.embeddings
WHERE grievance_id = ANY($1)
`

	rows, err := p.Query(ctx, q, grievanceIDs)
	if err != nil {
		return nil, fmt.Errorf("query embeddings by ids: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]float32, len(grievanceIDs))
	for rows.Next() {
		var id int64
		var literal string
		if err := rows.Scan(&id, &literal); err != nil {
			return nil, fmt.Errorf("scan embedding row: %w", err)
		}
		vec, err := ParseVectorLiteral(literal)
		if err != nil {
			return nil, err
		}
		out[id] = vec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	return out, nil
}
