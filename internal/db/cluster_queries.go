package db

import (
	"context"
	"fmt"
	"time"
)

// InsertCluster creates a duplicate/near-duplicate cluster with its primary member.
func (p *Pool) InsertCluster(ctx context.Context, batchID int64, clusterType string, primaryGrievanceID int64, now time.Time) (int64, string, error) {
	const q = `
INSERT INTO grievdedup.duplicate_clusters (
	batch_id, cluster_type, primary_grievance_id, member_count, avg_similarity_score, created_at, updated_at
)
VALUES ($1, $2, $3, 0, 0, $4, $4)
RETURNING cluster_id, cluster_uuid
`
	var clusterID int64
	var clusterUUID string
	err := p.QueryRow(ctx, q, batchID, clusterType, primaryGrievanceID, now).Scan(&clusterID, &clusterUUID)
	if err != nil {
		return 0, "", fmt.Errorf("insert cluster: %w", err)
	}
	return clusterID, clusterUUID, nil
}

// AddClusterMember attaches a grievance to a cluster and refreshes the cluster's rollups.
func (p *Pool) AddClusterMember(ctx context.Context, clusterID, grievanceID int64, similarityToPrimary float64, now time.Time) error {
	tx, err := p.BeginTx(ctx, TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertMember = `
INSERT INTO grievdedup.cluster_members (cluster_id, grievance_id, similarity_to_primary, created_at)
VALUES ($1, $2, $3, $4)
`
	if _, err := tx.Exec(ctx, insertMember, clusterID, grievanceID, similarityToPrimary, now); err != nil {
		return fmt.Errorf("insert cluster member: %w", err)
	}

	const refreshCluster = `
UPDATE grievdedup.duplicate_clusters
SET
	member_count = (
		SELECT COUNT(*) FROM grievdedup.cluster_members WHERE cluster_id = $1
	),
	avg_similarity_score = (
		SELECT AVG(similarity_to_primary) FROM grievdedup.cluster_members WHERE cluster_id = $1
	),
	updated_at = $2
WHERE cluster_id = $1
`
	if _, err := tx.Exec(ctx, refreshCluster, clusterID, now); err != nil {
		return fmt.Errorf("refresh cluster rollups: %w", err)
	}

	return tx.Commit(ctx)
}

// ClusterWithMembers is a materialized cluster and its member grievances.
type ClusterWithMembers struct {
	Cluster DuplicateCluster
	Members []ClusterMember
}

// GetClusterWithMembers fetches a cluster and all of its members.
func (p *Pool) GetClusterWithMembers(ctx context.Context, clusterID int64) (*ClusterWithMembers, error) {
	const clusterQ = `
SELECT
	cluster_id, cluster_uuid, batch_id, cluster_type, primary_grievance_id,
	member_count, avg_similarity_score, created_at, updated_at
FROM grievdedup.duplicate_clusters
WHERE cluster_id = $1
`
	var c DuplicateCluster
	err := p.QueryRow(ctx, clusterQ, clusterID).Scan(
		&c.ClusterID, &c.ClusterUUID, &c.BatchID, &c.ClusterType, &c.PrimaryGrievanceID,
		&c.MemberCount, &c.AvgSimilarityScore, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	const membersQ = `
SELECT cluster_member_id, cluster_member_uuid, cluster_id, grievance_id, similarity_to_primary, created_at
FROM grievdedup.cluster_members
WHERE cluster_id = $1
ORDER BY similarity_to_primary DESC
`
	rows, err := p.Query(ctx, membersQ, clusterID)
	if err != nil {
		return nil, fmt.Errorf("query cluster members: %w", err)
	}
	defer rows.Close()

	var members []ClusterMember
	for rows.Next() {
		var m ClusterMember
		if err := rows.Scan(&m.ClusterMemberID, &m.ClusterMemberUUID, &m.ClusterID, &m.GrievanceID, &m.SimilarityToPrimary, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cluster member row: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cluster members: %w", err)
	}

	return &ClusterWithMembers{Cluster: c, Members: members}, nil
}

// ListClustersByBatch returns every cluster materialized for a batch.
func (p *Pool) ListClustersByBatch(ctx context.Context, batchID int64) ([]DuplicateCluster, error) {
	const q = `
SELECT
	cluster_id, cluster_uuid, batch_id, cluster_type, primary_grievance_id,
	member_count, avg_similarity_score, created_at, updated_at
FROM grievdedup.duplicate_clusters
WHERE batch_id = $1
ORDER BY cluster_id ASC
`
	rows, err := p.Query(ctx, q, batchID)
	if err != nil {
		return nil, fmt.Errorf("query clusters by batch: %w", err)
	}
	defer rows.Close()

	var out []DuplicateCluster
	for rows.Next() {
		var c DuplicateCluster
		if err := rows.Scan(
			&c.ClusterID, &c.ClusterUUID, &c.BatchID, &c.ClusterType, &c.PrimaryGrievanceID,
			&c.MemberCount, &c.AvgSimilarityScore, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cluster row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clusters: %w", err)
	}
	return out, nil
}
