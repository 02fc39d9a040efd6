package db

import (
	"context"
	"fmt"
	"time"
)

// InsertBatch creates a new processing batch in the pending state.
func (p *Pool) InsertBatch(ctx context.Context, source string, submittedByUserID *int64, totalPDFs int, now time.Time) (int64, string, error) {
	const q = `
INSERT INTO grievdedup.processing_batches (
	source, submitted_by_user_id, state, total_pdfs, created_at, updated_at
)
VALUES ($1, $2, 'pending', $3, $4, $4)
RETURNING batch_id, batch_uuid
`

	var batchID int64
	var batchUUID string
	err := p.QueryRow(ctx, q, source, submittedByUserID, totalPDFs, now).Scan(&batchID, &batchUUID)
	if err != nil {
		return 0, "", fmt.Errorf("insert batch: %w", err)
	}
	return batchID, batchUUID, nil
}

// MarkBatchStarted transitions a batch into the processing state.
func (p *Pool) MarkBatchStarted(ctx context.Context, batchID int64, now time.Time) error {
	const q = `
UPDATE grievdedup.processing_batches
SET state = 'processing', started_at = $1, updated_at = $1
WHERE batch_id = $2 AND state = 'pending'
`
	tag, err := p.Exec(ctx, q, now, batchID)
	if err != nil {
		return fmt.Errorf("mark batch started: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("batch %d is not pending", batchID)
	}
	return nil
}

// BatchCounts summarizes per-status grievance counts for a completed batch.
type BatchCounts struct {
	ProcessedPDFs      int
	TotalGrievances    int
	UniqueCount        int
	DuplicateCount     int
	NearDuplicateCount int
}

// MarkBatchCompleted records final counts and flips a batch to completed.
func (p *Pool) MarkBatchCompleted(ctx context.Context, batchID int64, counts BatchCounts, now time.Time) error {
	const q = `
UPDATE grievdedup.processing_batches
SET
	state = 'completed',
	processed_pdfs = $1,
	total_grievances = $2,
	unique_count = $3,
	duplicate_count = $4,
	near_duplicate_count = $5,
	completed_at = $6,
	updated_at = $6
WHERE batch_id = $7
`
	tag, err := p.Exec(ctx, q,
		counts.ProcessedPDFs, counts.TotalGrievances, counts.UniqueCount,
		counts.DuplicateCount, counts.NearDuplicateCount, now, batchID,
	)
	if err != nil {
		return fmt.Errorf("mark batch completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("batch %d not found", batchID)
	}
	return nil
}

// MarkBatchFailed records a terminal failure for a batch.
func (p *Pool) MarkBatchFailed(ctx context.Context, batchID int64, reason string, now time.Time) error {
	const q = `
UPDATE grievdedup.processing_batches
SET state = 'failed', error_message = $1, completed_at = $2, updated_at = $2
WHERE batch_id = $3
`
	_, err := p.Exec(ctx, q, reason, now, batchID)
	if err != nil {
		return fmt.Errorf("mark batch failed: %w", err)
	}
	return nil
}

// GetBatch fetches a single processing batch by ID.
func (p *Pool) GetBatch(ctx context.Context, batchID int64) (*ProcessingBatch, error) {
	const q = `
SELECT
	batch_id, batch_uuid, source, submitted_by_user_id, state, total_pdfs,
	processed_pdfs, total_grievances, unique_count, duplicate_count,
	near_duplicate_count, started_at, completed_at, error_message,
	created_at, updated_at
FROM grievdedup.processing_batches
WHERE batch_id = $1
`
	var b ProcessingBatch
	err := p.QueryRow(ctx, q, batchID).Scan(
		&b.BatchID, &b.BatchUUID, &b.Source, &b.SubmittedByUserID, &b.State, &b.TotalPDFs,
		&b.ProcessedPDFs, &b.TotalGrievances, &b.UniqueCount, &b.DuplicateCount,
		&b.NearDuplicateCount, &b.StartedAt, &b.CompletedAt, &b.ErrorMessage,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListPendingBatches returns batches still awaiting processing, oldest first.
func (p *Pool) ListPendingBatches(ctx context.Context, limit int) ([]ProcessingBatch, error) {
	if limit <= 0 {
		limit = 50
	}

	const q = `
SELECT
	batch_id, batch_uuid, source, submitted_by_user_id, state, total_pdfs,
	processed_pdfs, total_grievances, unique_count, duplicate_count,
	near_duplicate_count, started_at, completed_at, error_message,
	created_at, updated_at
FROM grievdedup.processing_batches
WHERE state = 'pending'
ORDER BY batch_id ASC
LIMIT $1
`
	rows, err := p.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending batches: %w", err)
	}
	defer rows.Close()

	var out []ProcessingBatch
	for rows.Next() {
		var b ProcessingBatch
		if err := rows.Scan(
			&b.BatchID, &b.BatchUUID, &b.Source, &b.SubmittedByUserID, &b.State, &b.TotalPDFs,
			&b.ProcessedPDFs, &b.TotalGrievances, &b.UniqueCount, &b.DuplicateCount,
			&b.NearDuplicateCount, &b.StartedAt, &b.CompletedAt, &b.ErrorMessage,
			&b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan batch row: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending batches: %w", err)
	}
	return out, nil
}
