package cluster

import "testing"

func TestDBSCANGroupsNearDuplicates(t *testing.T) {
	t.Parallel()

	embeddings := [][]float32{
		{1, 0, 0},
		{0.99, 0.01, 0},
		{0, 1, 0},
		{0, 0, 1},
	}

	matrix := SimilarityMatrix(embeddings)
	labels := DBSCAN(matrix, 0.05, 2)

	if labels[0] != labels[1] {
		t.Fatalf("expected points 0 and 1 to share a cluster, got %v", labels)
	}
	if labels[0] == LabelNoise || labels[0] == LabelUnvisited {
		t.Fatalf("expected points 0 and 1 to be clustered, got label %d", labels[0])
	}
	if labels[2] != LabelNoise {
		t.Fatalf("expected point 2 to be noise, got %d", labels[2])
	}
	if labels[3] != LabelNoise {
		t.Fatalf("expected point 3 to be noise, got %d", labels[3])
	}
}

func TestDBSCANNeverRelabelsOnceSet(t *testing.T) {
	t.Parallel()

	// Three points in a tight cluster: the expansion queue reaches each
	// point more than once, and every point keeps the single label it was
	// first given.
	embeddings := [][]float32{
		{1, 0},
		{0.98, 0.02},
		{0.97, 0.03},
	}

	matrix := SimilarityMatrix(embeddings)
	labels := DBSCAN(matrix, 0.05, 2)

	first := labels[0]
	for _, l := range labels {
		if l != first {
			t.Fatalf("expected all points in one cluster with a single final label, got %v", labels)
		}
	}
}
