package cluster

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Pool is the subset of *db.Pool the materializer needs, kept narrow so
// orchestrator tests can substitute a stub.
type Pool interface {
	InsertCluster(ctx context.Context, batchID int64, clusterType string, primaryGrievanceID int64, now time.Time) (int64, string, error)
	AddClusterMember(ctx context.Context, clusterID, grievanceID int64, similarityToPrimary float64, now time.Time) error
}

// MemberResult is one grievance's outcome after C6/C7, keyed for grouping.
type MemberResult struct {
	GrievanceID         int64
	MatchedGrievanceID  int64 // 0 means "no real match" — see HasRealMatch.
	HasRealMatch        bool  // false when the grievance has no match target; Pending targets arrive already resolved to real ids.
	Status              string
	SimilarityScore     float64
}

// Materialize groups results by matched_grievance_id when it is a real
// persisted grievance id, and persists one cluster plus its members per
// group. A database error on one cluster is logged and skipped; it does not
// abort the batch, per the DBInsertFailure (per cluster) policy in §7.
func Materialize(ctx context.Context, pool Pool, log zerolog.Logger, batchID int64, results []MemberResult, now time.Time) {
	groups := make(map[int64][]MemberResult)
	for _, r := range results {
		if !r.HasRealMatch {
			continue
		}
		if r.MatchedGrievanceID == r.GrievanceID {
			continue
		}
		groups[r.MatchedGrievanceID] = append(groups[r.MatchedGrievanceID], r)
	}

	for primaryID, members := range groups {
		if len(members) == 0 {
			continue
		}
		if err := materializeOne(ctx, pool, batchID, primaryID, members, now); err != nil {
			log.Warn().Err(err).Int64("primary_grievance_id", primaryID).Msg("skipping cluster after database insert failure")
		}
	}
}

func materializeOne(ctx context.Context, pool Pool, batchID, primaryID int64, members []MemberResult, now time.Time) error {
	clusterType := dominantStatus(members)

	clusterID, _, err := pool.InsertCluster(ctx, batchID, clusterType, primaryID, now)
	if err != nil {
		return err
	}

	for _, m := range members {
		if err := pool.AddClusterMember(ctx, clusterID, m.GrievanceID, m.SimilarityScore, now); err != nil {
			return err
		}
	}
	return nil
}

// dominantStatus maps member statuses to a cluster type: any DUPLICATE
// member makes the cluster DUPLICATE, otherwise NEAR_DUPLICATE. CONTEXTUAL
// is declared in the enum but never produced here (see SPEC_FULL.md §9).
func dominantStatus(members []MemberResult) string {
	for _, m := range members {
		if m.Status == "DUPLICATE" {
			return "DUPLICATE"
		}
	}
	return "NEAR_DUPLICATE"
}
