package db

import (
	"context"
	"fmt"
	"time"
)

// InsertFeedback records a reviewer's correction of a grievance's dedup outcome.
func (p *Pool) InsertFeedback(ctx context.Context, f *FeedbackLog, now time.Time) (int64, error) {
	if f == nil {
		return 0, fmt.Errorf("feedback is nil")
	}

	const q = `
INSERT INTO grievdedup.feedback_logs (
	grievance_id, matched_grievance_id, original_status, corrected_status,
	original_score, applied_to_threshold, notes, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING feedback_id
`
	var feedbackID int64
	err := p.QueryRow(ctx, q,
		f.GrievanceID, f.MatchedGrievanceID, f.OriginalStatus, f.CorrectedStatus,
		f.OriginalScore, f.AppliedToThreshold, f.Notes, now,
	).Scan(&feedbackID)
	if err != nil {
		return 0, fmt.Errorf("insert feedback: %w", err)
	}
	return feedbackID, nil
}

// MarkFeedbackApplied flags a feedback row as having already nudged a threshold.
func (p *Pool) MarkFeedbackApplied(ctx context.Context, feedbackID int64) error {
	const q = `UPDATE grievdedup.feedback_logs SET applied_to_threshold = true WHERE feedback_id = $1`
	_, err := p.Exec(ctx, q, feedbackID)
	if err != nil {
		return fmt.Errorf("mark feedback applied: %w", err)
	}
	return nil
}

// ListUnappliedFeedback returns feedback rows the adaptive threshold job has not yet consumed.
func (p *Pool) ListUnappliedFeedback(ctx context.Context, limit int) ([]FeedbackLog, error) {
	if limit <= 0 {
		limit = 100
	}

	const q = `
SELECT feedback_id, feedback_uuid, grievance_id, matched_grievance_id, original_status,
	corrected_status, original_score, applied_to_threshold, notes, created_at
FROM grievdedup.feedback_logs
WHERE applied_to_threshold = false
ORDER BY feedback_id ASC
LIMIT $1
`
	rows, err := p.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query unapplied feedback: %w", err)
	}
	defer rows.Close()

	var out []FeedbackLog
	for rows.Next() {
		var f FeedbackLog
		if err := rows.Scan(
			&f.FeedbackID, &f.FeedbackUUID, &f.GrievanceID, &f.MatchedGrievanceID, &f.OriginalStatus,
			&f.CorrectedStatus, &f.OriginalScore, &f.AppliedToThreshold, &f.Notes, &f.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan feedback row: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unapplied feedback: %w", err)
	}
	return out, nil
}
