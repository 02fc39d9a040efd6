package db

import (
	"context"
	"fmt"
	"math"
	"time"
)

// ListThresholds returns every adaptive threshold row.
func (p *Pool) ListThresholds(ctx context.Context) ([]AdaptiveThreshold, error) {
	const q = `
SELECT kind, threshold_uuid, current_value, min_value, max_value, adjustment_count, last_adjusted_at, updated_at
FROM grievdedup.adaptive_thresholds
ORDER BY kind ASC
`
	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query thresholds: %w", err)
	}
	defer rows.Close()

	var out []AdaptiveThreshold
	for rows.Next() {
		var t AdaptiveThreshold
		if err := rows.Scan(&t.Kind, &t.ThresholdUUID, &t.CurrentValue, &t.MinValue, &t.MaxValue, &t.AdjustmentCount, &t.LastAdjustedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan threshold row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate thresholds: %w", err)
	}
	return out, nil
}

// GetThreshold fetches a single threshold by kind.
func (p *Pool) GetThreshold(ctx context.Context, kind string) (*AdaptiveThreshold, error) {
	const q = `
SELECT kind, threshold_uuid, current_value, min_value, max_value, adjustment_count, last_adjusted_at, updated_at
FROM grievdedup.adaptive_thresholds
WHERE kind = $1
`
	var t AdaptiveThreshold
	err := p.QueryRow(ctx, q, kind).Scan(&t.Kind, &t.ThresholdUUID, &t.CurrentValue, &t.MinValue, &t.MaxValue, &t.AdjustmentCount, &t.LastAdjustedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// siblingThresholdKind returns the other kind whose current_value this kind's
// ordering invariant (near_duplicate <= duplicate) is measured against, or ""
// if kind has no such sibling.
func siblingThresholdKind(kind string) string {
	switch kind {
	case "duplicate":
		return "near_duplicate"
	case "near_duplicate":
		return "duplicate"
	default:
		return ""
	}
}

// SetThresholdValue clamps newValue into [min,max] and persists it as a manual override,
// incrementing the adjustment counter the same way an adaptive nudge would.
//
// If kind is "duplicate" or "near_duplicate", the write is additionally
// clamped against the sibling kind's current value so that
// near_duplicate <= duplicate can never be violated, locking both rows in the
// same transaction to avoid a racing sibling update.
func (p *Pool) SetThresholdValue(ctx context.Context, kind string, newValue float64, now time.Time) (*AdaptiveThreshold, error) {
	tx, err := p.BeginTx(ctx, TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const lockQ = `
SELECT current_value, min_value, max_value
FROM grievdedup.adaptive_thresholds
WHERE kind = $1
FOR UPDATE
`
	var curValue, minValue, maxValue float64
	if err := tx.QueryRow(ctx, lockQ, kind).Scan(&curValue, &minValue, &maxValue); err != nil {
		return nil, fmt.Errorf("lock threshold %q: %w", kind, err)
	}

	clamped := math.Min(math.Max(newValue, minValue), maxValue)

	if sibling := siblingThresholdKind(kind); sibling != "" {
		const siblingLockQ = `SELECT current_value FROM grievdedup.adaptive_thresholds WHERE kind = $1 FOR UPDATE`
		var siblingValue float64
		if err := tx.QueryRow(ctx, siblingLockQ, sibling).Scan(&siblingValue); err != nil {
			return nil, fmt.Errorf("lock threshold %q: %w", sibling, err)
		}
		switch kind {
		case "duplicate":
			// duplicate must stay >= near_duplicate.
			clamped = math.Max(clamped, siblingValue)
		case "near_duplicate":
			// near_duplicate must stay <= duplicate.
			clamped = math.Min(clamped, siblingValue)
		}
	}

	const updateQ = `
UPDATE grievdedup.adaptive_thresholds
SET
	current_value = $1,
	adjustment_count = adjustment_count + 1,
	last_adjusted_at = $2,
	updated_at = $2
WHERE kind = $3
RETURNING kind, threshold_uuid, current_value, min_value, max_value, adjustment_count, last_adjusted_at, updated_at
`
	var t AdaptiveThreshold
	if err := tx.QueryRow(ctx, updateQ, clamped, now, kind).Scan(&t.Kind, &t.ThresholdUUID, &t.CurrentValue, &t.MinValue, &t.MaxValue, &t.AdjustmentCount, &t.LastAdjustedAt, &t.UpdatedAt); err != nil {
		return nil, fmt.Errorf("set threshold %q: %w", kind, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit threshold update %q: %w", kind, err)
	}

	return &t, nil
}
