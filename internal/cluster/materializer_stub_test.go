package cluster

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type stubPool struct {
	clusters []stubCluster
	members  []stubMember
	failNext bool
}

type stubCluster struct {
	batchID     int64
	clusterType string
	primaryID   int64
}

type stubMember struct {
	clusterID   int64
	grievanceID int64
	similarity  float64
}

func (s *stubPool) InsertCluster(_ context.Context, batchID int64, clusterType string, primaryGrievanceID int64, _ time.Time) (int64, string, error) {
	if s.failNext {
		return 0, "", fmt.Errorf("simulated insert failure")
	}
	id := int64(len(s.clusters) + 1)
	s.clusters = append(s.clusters, stubCluster{batchID: batchID, clusterType: clusterType, primaryID: primaryGrievanceID})
	return id, "uuid", nil
}

func (s *stubPool) AddClusterMember(_ context.Context, clusterID, grievanceID int64, similarityToPrimary float64, _ time.Time) error {
	s.members = append(s.members, stubMember{clusterID: clusterID, grievanceID: grievanceID, similarity: similarityToPrimary})
	return nil
}

func TestMaterializeGroupsByRealMatchedGrievance(t *testing.T) {
	t.Parallel()

	pool := &stubPool{}
	results := []MemberResult{
		{GrievanceID: 2, MatchedGrievanceID: 1, HasRealMatch: true, Status: "DUPLICATE", SimilarityScore: 0.9},
		{GrievanceID: 3, MatchedGrievanceID: 1, HasRealMatch: true, Status: "NEAR_DUPLICATE", SimilarityScore: 0.7},
		{GrievanceID: 4, MatchedGrievanceID: 0, HasRealMatch: false, Status: "UNIQUE"},
	}

	Materialize(context.Background(), pool, zerolog.Nop(), 10, results, time.Now())

	if len(pool.clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(pool.clusters))
	}
	if pool.clusters[0].clusterType != "DUPLICATE" {
		t.Fatalf("expected DUPLICATE cluster type, got %s", pool.clusters[0].clusterType)
	}
	if len(pool.members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(pool.members))
	}
}

func TestMaterializeSkipsFailedClusterWithoutAborting(t *testing.T) {
	t.Parallel()

	pool := &stubPool{failNext: true}
	results := []MemberResult{
		{GrievanceID: 2, MatchedGrievanceID: 1, HasRealMatch: true, Status: "DUPLICATE", SimilarityScore: 0.9},
	}

	Materialize(context.Background(), pool, zerolog.Nop(), 10, results, time.Now())

	if len(pool.clusters) != 0 {
		t.Fatalf("expected no clusters persisted after simulated failure, got %d", len(pool.clusters))
	}
}
