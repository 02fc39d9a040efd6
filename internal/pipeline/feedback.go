package pipeline

import (
	"context"
	"fmt"
	"time"

	"civicgrid.dev/grievdedup/internal/db"
	"civicgrid.dev/grievdedup/internal/threshold"
)

// FeedbackRequest mirrors §6's feedback payload.
type FeedbackRequest struct {
	GrievanceID        int64
	MatchedGrievanceID *int64
	OriginalStatus      string
	CorrectedStatus     string
	OriginalScore       *float64
	Notes               *string
}

// SubmitFeedback persists a reviewer correction and nudges the adaptive
// threshold store per §4.9's transition table. An unknown transition still
// persists the feedback row (FeedbackTransitionUnknown policy, §7).
func (o *Orchestrator) SubmitFeedback(ctx context.Context, req FeedbackRequest) error {
	now := time.Now().UTC()

	applied, err := o.thresholds.ApplyFeedback(ctx, threshold.Feedback{OriginalStatus: req.OriginalStatus, CorrectedStatus: req.CorrectedStatus}, now)
	if err != nil {
		return fmt.Errorf("apply feedback to threshold: %w", err)
	}

	if _, err := o.pool.InsertFeedback(ctx, &db.FeedbackLog{
		GrievanceID:        req.GrievanceID,
		MatchedGrievanceID: req.MatchedGrievanceID,
		OriginalStatus:     req.OriginalStatus,
		CorrectedStatus:    req.CorrectedStatus,
		OriginalScore:      req.OriginalScore,
		AppliedToThreshold: applied,
		Notes:              req.Notes,
	}, now); err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}

	return nil
}
