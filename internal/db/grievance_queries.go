package db

import (
	"context"
	"fmt"
	"time"
)

// InsertGrievance inserts a new grievance row in UNIQUE status pending processing.
func (p *Pool) InsertGrievance(ctx context.Context, g *Grievance, now time.Time) (int64, string, error) {
	if g == nil {
		return 0, "", fmt.Errorf("grievance is nil")
	}

	const q = `
INSERT INTO grievdedup.grievances (
	batch_id,
	pdf_id,
	source_filename,
	page_number,
	submission_type,
	original_text,
	processed_text,
	status,
	category,
	area,
	location_details,
	processed,
	created_at,
	updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, '', 'UNIQUE', $7, $8, $9, false, $10, $10)
RETURNING grievance_id, grievance_uuid
`

	var grievanceID int64
	var grievanceUUID string
	err := p.QueryRow(ctx, q,
		g.BatchID,
		g.PDFID,
		g.SourceFilename,
		g.PageNumber,
		g.SubmissionType,
		g.OriginalText,
		g.Category,
		g.Area,
		g.LocationDetails,
		now,
	).Scan(&grievanceID, &grievanceUUID)
	if err != nil {
		return 0, "", fmt.Errorf("insert grievance: %w", err)
	}
	return grievanceID, grievanceUUID, nil
}

// MarkGrievanceProcessed records the outcome of running a grievance through the pipeline.
func (p *Pool) MarkGrievanceProcessed(ctx context.Context, grievanceID int64, g *Grievance, now time.Time) error {
	if g == nil {
		return fmt.Errorf("grievance is nil")
	}

	const q = `
UPDATE grievdedup.grievances
SET
	processed_text = $1,
	status = $2,
	similarity_score = $3,
	matched_grievance_id = $4,
	local_duplicate_of = $5,
	cosine_score = $6,
	jaccard_score = $7,
	ngram_score = $8,
	contextual_score = $9,
	category = $10,
	area = $11,
	location_details = $12,
	processed = true,
	updated_at = $13
WHERE grievance_id = $14
`

	tag, err := p.Exec(ctx, q,
		g.ProcessedText,
		g.Status,
		g.SimilarityScore,
		g.MatchedGrievanceID,
		g.LocalDuplicateOf,
		g.CosineScore,
		g.JaccardScore,
		g.NgramScore,
		g.ContextualScore,
		g.Category,
		g.Area,
		g.LocationDetails,
		now,
		grievanceID,
	)
	if err != nil {
		return fmt.Errorf("mark grievance processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("grievance %d not found", grievanceID)
	}
	return nil
}

// GetGrievance fetches a single grievance by its surrogate ID.
func (p *Pool) GetGrievance(ctx context.Context, grievanceID int64) (*Grievance, error) {
	const q = `
SELECT
	grievance_id, grievance_uuid, batch_id, pdf_id, source_filename, page_number,
	submission_type, original_text, processed_text, status, similarity_score,
	matched_grievance_id, local_duplicate_of, cosine_score, jaccard_score,
	ngram_score, contextual_score, category, area, location_details, processed,
	created_at, updated_at
FROM grievdedup.grievances
WHERE grievance_id = $1
`

	var g Grievance
	err := p.QueryRow(ctx, q, grievanceID).Scan(
		&g.GrievanceID, &g.GrievanceUUID, &g.BatchID, &g.PDFID, &g.SourceFilename, &g.PageNumber,
		&g.SubmissionType, &g.OriginalText, &g.ProcessedText, &g.Status, &g.SimilarityScore,
		&g.MatchedGrievanceID, &g.LocalDuplicateOf, &g.CosineScore, &g.JaccardScore,
		&g.NgramScore, &g.ContextualScore, &g.Category, &g.Area, &g.LocationDetails, &g.Processed,
		&g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ListGrievancesByBatch returns every grievance belonging to a batch, oldest first.
func (p *Pool) ListGrievancesByBatch(ctx context.Context, batchID int64) ([]Grievance, error) {
	const q = `
SELECT
	grievance_id, grievance_uuid, batch_id, pdf_id, source_filename, page_number,
	submission_type, original_text, processed_text, status, similarity_score,
	matched_grievance_id, local_duplicate_of, cosine_score, jaccard_score,
	ngram_score, contextual_score, category, area, location_details, processed,
	created_at, updated_at
FROM grievdedup.grievances
WHERE batch_id = $1
ORDER BY grievance_id ASC
`

	rows, err := p.Query(ctx, q, batchID)
	if err != nil {
		return nil, fmt.Errorf("query grievances by batch: %w", err)
	}
	defer rows.Close()

	var out []Grievance
	for rows.Next() {
		var g Grievance
		if err := rows.Scan(
			&g.GrievanceID, &g.GrievanceUUID, &g.BatchID, &g.PDFID, &g.SourceFilename, &g.PageNumber,
			&g.SubmissionType, &g.OriginalText, &g.ProcessedText, &g.Status, &g.SimilarityScore,
			&g.MatchedGrievanceID, &g.LocalDuplicateOf, &g.CosineScore, &g.JaccardScore,
			&g.NgramScore, &g.ContextualScore, &g.Category, &g.Area, &g.LocationDetails, &g.Processed,
			&g.CreatedAt, &g.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan grievance row: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grievances: %w", err)
	}
	return out, nil
}

// ListHistoricalGrievances returns the most recently processed grievances of any status,
// newest first, bounded by limit — the candidate pool C5 compares new arrivals against.
func (p *Pool) ListHistoricalGrievances(ctx context.Context, limit int) ([]Grievance, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	grievance_id, grievance_uuid, batch_id, pdf_id, source_filename, page_number,
	submission_type, original_text, processed_text, status, similarity_score,
	matched_grievance_id, local_duplicate_of, cosine_score, jaccard_score,
	ngram_score, contextual_score, category, area, location_details, processed,
	created_at, updated_at
FROM grievdedup.grievances
WHERE processed = true
ORDER BY grievance_id DESC
LIMIT $1
`

	rows, err := p.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query historical grievances: %w", err)
	}
	defer rows.Close()

	var out []Grievance
	for rows.Next() {
		var g Grievance
		if err := rows.Scan(
			&g.GrievanceID, &g.GrievanceUUID, &g.BatchID, &g.PDFID, &g.SourceFilename, &g.PageNumber,
			&g.SubmissionType, &g.OriginalText, &g.ProcessedText, &g.Status, &g.SimilarityScore,
			&g.MatchedGrievanceID, &g.LocalDuplicateOf, &g.CosineScore, &g.JaccardScore,
			&g.NgramScore, &g.ContextualScore, &g.Category, &g.Area, &g.LocationDetails, &g.Processed,
			&g.CreatedAt, &g.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan grievance row: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate historical grievances: %w", err)
	}
	return out, nil
}
