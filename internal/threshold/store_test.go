package threshold

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"civicgrid.dev/grievdedup/internal/db"
)

type stubPool struct {
	rows map[string]db.AdaptiveThreshold
}

func newStubPool() *stubPool {
	return &stubPool{rows: map[string]db.AdaptiveThreshold{
		KindDuplicate:     {Kind: KindDuplicate, CurrentValue: 0.60, MinValue: 0.30, MaxValue: 0.95},
		KindNearDuplicate: {Kind: KindNearDuplicate, CurrentValue: 0.60, MinValue: 0.15, MaxValue: 0.80},
	}}
}

func (s *stubPool) ListThresholds(_ context.Context) ([]db.AdaptiveThreshold, error) {
	out := make([]db.AdaptiveThreshold, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	return out, nil
}

// siblingKind mirrors db.siblingThresholdKind — duplicate and near_duplicate
// bound each other so near_duplicate <= duplicate can never be violated.
func siblingKind(kind string) string {
	switch kind {
	case KindDuplicate:
		return KindNearDuplicate
	case KindNearDuplicate:
		return KindDuplicate
	default:
		return ""
	}
}

func (s *stubPool) SetThresholdValue(_ context.Context, kind string, newValue float64, now time.Time) (*db.AdaptiveThreshold, error) {
	row := s.rows[kind]
	clamped := newValue
	if clamped < row.MinValue {
		clamped = row.MinValue
	}
	if clamped > row.MaxValue {
		clamped = row.MaxValue
	}

	if sibling := siblingKind(kind); sibling != "" {
		siblingValue := s.rows[sibling].CurrentValue
		switch kind {
		case KindDuplicate:
			if clamped < siblingValue {
				clamped = siblingValue
			}
		case KindNearDuplicate:
			if clamped > siblingValue {
				clamped = siblingValue
			}
		}
	}

	row.CurrentValue = clamped
	row.AdjustmentCount++
	row.LastAdjustedAt = &now
	s.rows[kind] = row
	return &row, nil
}

func TestLoadFallsBackToDefaultsWhenPoolNil(t *testing.T) {
	t.Parallel()

	store := NewStore(nil, zerolog.Nop())
	snap := store.Load(context.Background())
	if snap.Duplicate != 0.60 {
		t.Fatalf("expected default duplicate 0.60, got %v", snap.Duplicate)
	}
}

func TestApplyFeedbackConvergesTowardSiblingFloor(t *testing.T) {
	t.Parallel()

	pool := newStubPool()
	store := NewStore(pool, zerolog.Nop())
	now := time.Now()

	var last float64 = 1
	for i := 0; i < 20; i++ {
		applied, err := store.ApplyFeedback(context.Background(), Feedback{OriginalStatus: "UNIQUE", CorrectedStatus: "DUPLICATE"}, now)
		if err != nil {
			t.Fatalf("apply feedback: %v", err)
		}
		if !applied {
			t.Fatalf("expected feedback to be applied")
		}
		current := pool.rows[KindDuplicate].CurrentValue
		if current > last {
			t.Fatalf("expected monotonic decrease, went from %v to %v", last, current)
		}
		nearDup := pool.rows[KindNearDuplicate].CurrentValue
		if current < nearDup {
			t.Fatalf("near_duplicate <= duplicate violated: duplicate=%v near_duplicate=%v", current, nearDup)
		}
		last = current
	}

	// near_duplicate was never nudged in this loop, so duplicate must settle
	// at near_duplicate's value rather than its own (lower) min_value.
	if pool.rows[KindDuplicate].CurrentValue != pool.rows[KindNearDuplicate].CurrentValue {
		t.Fatalf("expected convergence to the near_duplicate floor, got duplicate=%v near_duplicate=%v",
			pool.rows[KindDuplicate].CurrentValue, pool.rows[KindNearDuplicate].CurrentValue)
	}
}

func TestApplyFeedbackNeverLetsNearDuplicateExceedDuplicate(t *testing.T) {
	t.Parallel()

	pool := newStubPool()
	store := NewStore(pool, zerolog.Nop())
	now := time.Now()

	for i := 0; i < 20; i++ {
		applied, err := store.ApplyFeedback(context.Background(), Feedback{OriginalStatus: "NEAR_DUPLICATE", CorrectedStatus: "UNIQUE"}, now)
		if err != nil {
			t.Fatalf("apply feedback: %v", err)
		}
		if !applied {
			t.Fatalf("expected feedback to be applied")
		}
		dup := pool.rows[KindDuplicate].CurrentValue
		nearDup := pool.rows[KindNearDuplicate].CurrentValue
		if nearDup > dup {
			t.Fatalf("near_duplicate <= duplicate violated: duplicate=%v near_duplicate=%v", dup, nearDup)
		}
	}

	// duplicate was never nudged in this loop, so near_duplicate must settle
	// at duplicate's value rather than its own (higher) max_value.
	if pool.rows[KindNearDuplicate].CurrentValue != pool.rows[KindDuplicate].CurrentValue {
		t.Fatalf("expected convergence to the duplicate ceiling, got near_duplicate=%v duplicate=%v",
			pool.rows[KindNearDuplicate].CurrentValue, pool.rows[KindDuplicate].CurrentValue)
	}
}

func TestApplyFeedbackIgnoresUnknownTransition(t *testing.T) {
	t.Parallel()

	pool := newStubPool()
	store := NewStore(pool, zerolog.Nop())

	applied, err := store.ApplyFeedback(context.Background(), Feedback{OriginalStatus: "DUPLICATE", CorrectedStatus: "DUPLICATE"}, time.Now())
	if err != nil {
		t.Fatalf("apply feedback: %v", err)
	}
	if applied {
		t.Fatalf("expected no-op for an identity transition")
	}
}
