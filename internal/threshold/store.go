package threshold

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"civicgrid.dev/grievdedup/internal/db"
)

const (
	KindDuplicate     = "duplicate"
	KindNearDuplicate = "near_duplicate"
	KindCosineWeight  = "cosine_weight"
	KindJaccardWeight = "jaccard_weight"
	KindNgramWeight   = "ngram_weight"
	KindMetadataWeight = "metadata_weight"
)

// eta is the EMA-style learning rate applied once per feedback event.
const eta = 0.05

// defaults mirror §6's declared defaults, used when the store is
// empty/unavailable (ThresholdStoreUnreadable policy in §7).
var defaults = map[string]db.AdaptiveThreshold{
	KindDuplicate:      {Kind: KindDuplicate, CurrentValue: 0.60, MinValue: 0.30, MaxValue: 0.95},
	KindNearDuplicate:  {Kind: KindNearDuplicate, CurrentValue: 0.60, MinValue: 0.15, MaxValue: 0.80},
	KindCosineWeight:   {Kind: KindCosineWeight, CurrentValue: 0.55, MinValue: 0, MaxValue: 1},
	KindJaccardWeight:  {Kind: KindJaccardWeight, CurrentValue: 0.25, MinValue: 0, MaxValue: 1},
	KindNgramWeight:    {Kind: KindNgramWeight, CurrentValue: 0.15, MinValue: 0, MaxValue: 1},
	KindMetadataWeight: {Kind: KindMetadataWeight, CurrentValue: 0.05, MinValue: 0, MaxValue: 1},
}

// Pool is the subset of *db.Pool the store needs.
type Pool interface {
	ListThresholds(ctx context.Context) ([]db.AdaptiveThreshold, error)
	SetThresholdValue(ctx context.Context, kind string, newValue float64, now time.Time) (*db.AdaptiveThreshold, error)
}

// Store is the read-through/write-through threshold store from §9's design
// notes.
type Store struct {
	pool Pool
	log  zerolog.Logger
}

func NewStore(pool Pool, log zerolog.Logger) *Store {
	return &Store{pool: pool, log: log}
}

// Snapshot is a batch-local, read-once copy of the threshold map — taken at
// batch start to avoid mid-batch drift per §9.
type Snapshot struct {
	Duplicate     float64
	NearDuplicate float64
	CosineWeight  float64
	JaccardWeight float64
	NgramWeight   float64
	MetadataWeight float64
}

// Load reads the current threshold values, falling back to defaults on any
// read error or on missing kinds.
func (s *Store) Load(ctx context.Context) Snapshot {
	snap := snapshotFromDefaults()

	if s == nil || s.pool == nil {
		return snap
	}

	rows, err := s.pool.ListThresholds(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("threshold store unreadable, using defaults")
		return snap
	}

	byKind := make(map[string]db.AdaptiveThreshold, len(rows))
	for _, r := range rows {
		byKind[r.Kind] = r
	}
	applyKind(&snap.Duplicate, byKind, KindDuplicate)
	applyKind(&snap.NearDuplicate, byKind, KindNearDuplicate)
	applyKind(&snap.CosineWeight, byKind, KindCosineWeight)
	applyKind(&snap.JaccardWeight, byKind, KindJaccardWeight)
	applyKind(&snap.NgramWeight, byKind, KindNgramWeight)
	applyKind(&snap.MetadataWeight, byKind, KindMetadataWeight)

	return snap
}

func applyKind(dest *float64, rows map[string]db.AdaptiveThreshold, kind string) {
	if row, ok := rows[kind]; ok {
		*dest = row.CurrentValue
	}
}

func snapshotFromDefaults() Snapshot {
	return Snapshot{
		Duplicate:      defaults[KindDuplicate].CurrentValue,
		NearDuplicate:  defaults[KindNearDuplicate].CurrentValue,
		CosineWeight:   defaults[KindCosineWeight].CurrentValue,
		JaccardWeight:  defaults[KindJaccardWeight].CurrentValue,
		NgramWeight:    defaults[KindNgramWeight].CurrentValue,
		MetadataWeight: defaults[KindMetadataWeight].CurrentValue,
	}
}

// Feedback is a reviewer's correction, the write path's input.
type Feedback struct {
	OriginalStatus  string
	CorrectedStatus string
}

// transitionAdjustment maps a feedback transition to the kind it nudges and
// the directional multiplier applied to eta — the table in §4.9.
var transitionAdjustment = map[[2]string]struct {
	kind      string
	direction float64
}{
	{"UNIQUE", "DUPLICATE"}:        {KindDuplicate, -1},
	{"DUPLICATE", "UNIQUE"}:        {KindDuplicate, 1},
	{"UNIQUE", "NEAR_DUPLICATE"}:   {KindNearDuplicate, -1},
	{"NEAR_DUPLICATE", "UNIQUE"}:   {KindNearDuplicate, 1},
	{"NEAR_DUPLICATE", "DUPLICATE"}: {KindNearDuplicate, 1},
	{"DUPLICATE", "NEAR_DUPLICATE"}: {KindDuplicate, 1},
}

// ApplyFeedback nudges the threshold implied by a feedback transition by one
// eta step, clamped to [min,max]. Unknown transitions are a no-op on the
// threshold (FeedbackTransitionUnknown policy in §7) — callers still persist
// the feedback row regardless of this return value.
func (s *Store) ApplyFeedback(ctx context.Context, fb Feedback, now time.Time) (applied bool, err error) {
	adj, ok := transitionAdjustment[[2]string{fb.OriginalStatus, fb.CorrectedStatus}]
	if !ok {
		return false, nil
	}
	if s == nil || s.pool == nil {
		return false, nil
	}

	current := s.Load(ctx)
	var currentValue float64
	switch adj.kind {
	case KindDuplicate:
		currentValue = current.Duplicate
	case KindNearDuplicate:
		currentValue = current.NearDuplicate
	}

	newValue := currentValue + adj.direction*eta
	if _, err := s.pool.SetThresholdValue(ctx, adj.kind, newValue, now); err != nil {
		return false, err
	}
	return true, nil
}
