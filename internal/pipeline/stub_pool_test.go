package pipeline

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"civicgrid.dev/grievdedup/internal/db"
	"civicgrid.dev/grievdedup/internal/embedclient"
	"civicgrid.dev/grievdedup/internal/threshold"
)

// stubPool is an in-memory double for Pool, just enough surface for the
// end-to-end scenarios in SPEC_FULL.md §8.
type stubPool struct {
	mu sync.Mutex

	thresholds map[string]db.AdaptiveThreshold

	nextBatchID int64
	batches     map[int64]*db.ProcessingBatch

	nextGrievanceID int64
	grievances      map[int64]*db.Grievance

	embeddings map[int64][]float32

	nextClusterID int64
	clusters      map[int64]*db.DuplicateCluster
	members       []db.ClusterMember

	feedback []db.FeedbackLog
}

func newStubPool() *stubPool {
	return &stubPool{
		thresholds: map[string]db.AdaptiveThreshold{
			threshold.KindDuplicate:     {Kind: threshold.KindDuplicate, CurrentValue: 0.60, MinValue: 0.30, MaxValue: 0.95},
			threshold.KindNearDuplicate: {Kind: threshold.KindNearDuplicate, CurrentValue: 0.60, MinValue: 0.15, MaxValue: 0.80},
			threshold.KindCosineWeight:  {Kind: threshold.KindCosineWeight, CurrentValue: 0.55, MinValue: 0, MaxValue: 1},
			threshold.KindJaccardWeight: {Kind: threshold.KindJaccardWeight, CurrentValue: 0.25, MinValue: 0, MaxValue: 1},
			threshold.KindNgramWeight:   {Kind: threshold.KindNgramWeight, CurrentValue: 0.15, MinValue: 0, MaxValue: 1},
			threshold.KindMetadataWeight: {Kind: threshold.KindMetadataWeight, CurrentValue: 0.05, MinValue: 0, MaxValue: 1},
		},
		batches:    make(map[int64]*db.ProcessingBatch),
		grievances: make(map[int64]*db.Grievance),
		embeddings: make(map[int64][]float32),
		clusters:   make(map[int64]*db.DuplicateCluster),
	}
}

func (s *stubPool) ListThresholds(_ context.Context) ([]db.AdaptiveThreshold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]db.AdaptiveThreshold, 0, len(s.thresholds))
	for _, v := range s.thresholds {
		out = append(out, v)
	}
	return out, nil
}

func (s *stubPool) SetThresholdValue(_ context.Context, kind string, newValue float64, now time.Time) (*db.AdaptiveThreshold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.thresholds[kind]
	if newValue < row.MinValue {
		newValue = row.MinValue
	}
	if newValue > row.MaxValue {
		newValue = row.MaxValue
	}
	row.CurrentValue = newValue
	row.AdjustmentCount++
	row.LastAdjustedAt = &now
	s.thresholds[kind] = row
	return &row, nil
}

func (s *stubPool) InsertCluster(_ context.Context, batchID int64, clusterType string, primaryGrievanceID int64, now time.Time) (int64, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextClusterID++
	id := s.nextClusterID
	s.clusters[id] = &db.DuplicateCluster{ClusterID: id, BatchID: batchID, ClusterType: clusterType, PrimaryGrievanceID: primaryGrievanceID, MemberCount: 0}
	return id, "uuid", nil
}

func (s *stubPool) AddClusterMember(_ context.Context, clusterID, grievanceID int64, similarityToPrimary float64, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clusters[clusterID]
	if !ok {
		return fmt.Errorf("cluster %d not found", clusterID)
	}
	c.MemberCount++
	s.members = append(s.members, db.ClusterMember{ClusterID: clusterID, GrievanceID: grievanceID, SimilarityToPrimary: similarityToPrimary})
	return nil
}

func (s *stubPool) InsertBatch(_ context.Context, source string, submittedByUserID *int64, totalPDFs int, now time.Time) (int64, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextBatchID++
	id := s.nextBatchID
	s.batches[id] = &db.ProcessingBatch{BatchID: id, Source: source, SubmittedByUserID: submittedByUserID, State: "pending", TotalPDFs: totalPDFs}
	return id, "uuid", nil
}

func (s *stubPool) MarkBatchStarted(_ context.Context, batchID int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return fmt.Errorf("batch %d not found", batchID)
	}
	b.State = "processing"
	b.StartedAt = &now
	return nil
}

func (s *stubPool) MarkBatchCompleted(_ context.Context, batchID int64, counts db.BatchCounts, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return fmt.Errorf("batch %d not found", batchID)
	}
	b.State = "completed"
	b.ProcessedPDFs = counts.ProcessedPDFs
	b.TotalGrievances = counts.TotalGrievances
	b.UniqueCount = counts.UniqueCount
	b.DuplicateCount = counts.DuplicateCount
	b.NearDuplicateCount = counts.NearDuplicateCount
	b.CompletedAt = &now
	return nil
}

func (s *stubPool) MarkBatchFailed(_ context.Context, batchID int64, reason string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return fmt.Errorf("batch %d not found", batchID)
	}
	b.State = "failed"
	b.ErrorMessage = &reason
	b.CompletedAt = &now
	return nil
}

func (s *stubPool) InsertGrievance(_ context.Context, g *db.Grievance, now time.Time) (int64, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextGrievanceID++
	id := s.nextGrievanceID
	clone := *g
	clone.GrievanceID = id
	clone.Status = "UNIQUE"
	clone.CreatedAt = now
	s.grievances[id] = &clone
	return id, "uuid", nil
}

func (s *stubPool) MarkGrievanceProcessed(_ context.Context, grievanceID int64, g *db.Grievance, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.grievances[grievanceID]
	if !ok {
		return fmt.Errorf("grievance %d not found", grievanceID)
	}
	existing.ProcessedText = g.ProcessedText
	existing.Status = g.Status
	existing.SimilarityScore = g.SimilarityScore
	existing.MatchedGrievanceID = g.MatchedGrievanceID
	existing.LocalDuplicateOf = g.LocalDuplicateOf
	existing.CosineScore = g.CosineScore
	existing.JaccardScore = g.JaccardScore
	existing.NgramScore = g.NgramScore
	existing.Category = g.Category
	existing.Area = g.Area
	existing.Processed = true
	existing.UpdatedAt = now
	return nil
}

func (s *stubPool) ListHistoricalGrievances(_ context.Context, limit int) ([]db.Grievance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]db.Grievance, 0, len(s.grievances))
	for _, g := range s.grievances {
		if !g.Processed {
			continue
		}
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GrievanceID > out[j].GrievanceID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *stubPool) UpsertEmbedding(_ context.Context, grievanceID int64, vec []float32, _, _, _ string, _ int, _ time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddings[grievanceID] = vec
	return grievanceID, nil
}

func (s *stubPool) ListEmbeddingsByIDs(_ context.Context, grievanceIDs []int64) (map[int64][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64][]float32, len(grievanceIDs))
	for _, id := range grievanceIDs {
		if v, ok := s.embeddings[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (s *stubPool) InsertFeedback(_ context.Context, f *db.FeedbackLog, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *f
	clone.CreatedAt = now
	s.feedback = append(s.feedback, clone)
	return int64(len(s.feedback)), nil
}

// fakeEmbedder wraps embedclient.Fake to satisfy the orchestrator's
// narrower Embedder interface, which also reports provenance.
type fakeEmbedder struct {
	inner *embedclient.Fake
}

func newFakeEmbedder(dimensions int) *fakeEmbedder {
	return &fakeEmbedder{inner: embedclient.NewFake(dimensions)}
}

func (f *fakeEmbedder) EmbedWithMeta(ctx context.Context, texts []string) ([][]float32, embedclient.CallMeta, error) {
	vectors, err := f.inner.Embed(ctx, texts)
	if err != nil {
		return nil, embedclient.CallMeta{}, err
	}
	return vectors, embedclient.CallMeta{Endpoint: "fake", LatencyMS: 1}, nil
}

// failingEmbedder always returns embedclient.ErrEmbeddingUnavailable, for
// the EmbeddingUnavailable failure-policy scenario.
type failingEmbedder struct{}

func (failingEmbedder) EmbedWithMeta(context.Context, []string) ([][]float32, embedclient.CallMeta, error) {
	return nil, embedclient.CallMeta{}, embedclient.ErrEmbeddingUnavailable
}

const bagOfWordsDims = 64

// bagOfWordsEmbedder is a test-only stand-in for the real embedding
// service: it hashes each token into a fixed-width vector so that texts
// sharing more words end up with proportionally higher cosine similarity,
// unlike embedclient.Fake's all-or-nothing per-string hash. It is never
// wired into the live dedup path — see embedclient.Fake's own doc comment
// for that guarantee; this type exists solely under _test.go.
type bagOfWordsEmbedder struct{}

func (bagOfWordsEmbedder) EmbedWithMeta(_ context.Context, texts []string) ([][]float32, embedclient.CallMeta, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = bagOfWordsVector(t)
	}
	return out, embedclient.CallMeta{Endpoint: "bow-test", LatencyMS: 1}, nil
}

func bagOfWordsVector(text string) []float32 {
	counts := make([]float64, bagOfWordsDims)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		counts[h.Sum32()%bagOfWordsDims]++
	}

	var norm float64
	for _, c := range counts {
		norm += c * c
	}
	norm = math.Sqrt(norm)

	out := make([]float32, bagOfWordsDims)
	if norm == 0 {
		return out
	}
	for i, c := range counts {
		out[i] = float32(c / norm)
	}
	return out
}
