package dedup

import (
	"testing"

	"civicgrid.dev/grievdedup/internal/similarity"
	"civicgrid.dev/grievdedup/internal/threshold"
)

func defaultWeights() similarity.Weights {
	return similarity.Weights{Cosine: 0.55, Jaccard: 0.25, Ngram: 0.15, Metadata: 0.05}
}

func defaultThresholds() threshold.Snapshot {
	return threshold.Snapshot{Duplicate: 0.60, NearDuplicate: 0.60}
}

func vec(vals ...float32) []float32 { return vals }

func TestRunClassifiesIntraPDFDuplicate(t *testing.T) {
	t.Parallel()

	batch := []Input{
		{Index: 0, PDFID: 1, PageNumber: 1, Category: "WATER", Area: "sector 5",
			Tokens: []string{"water", "supply", "broken", "sector", "5"}, Embedding: vec(1, 0, 0)},
		{Index: 1, PDFID: 1, PageNumber: 2, Category: "WATER", Area: "sector 5",
			Tokens: []string{"water", "supply", "broken", "sector", "5"}, Embedding: vec(1, 0, 0)},
	}

	outcomes := Run(batch, nil, defaultWeights(), defaultThresholds())

	if outcomes[1].Status != StatusDuplicate {
		t.Fatalf("expected second grievance to be DUPLICATE of the first, got %s", outcomes[1].Status)
	}
	pending, ok := outcomes[1].Target.(Pending)
	if !ok || pending.Index != 0 {
		t.Fatalf("expected Pending{Index:0}, got %#v", outcomes[1].Target)
	}
}

func TestRunClassifiesCrossPDFNearDuplicateAgainstHistorical(t *testing.T) {
	t.Parallel()

	batch := []Input{
		{Index: 0, PDFID: 2, PageNumber: 1, Category: "ROAD", Area: "ward 9",
			Tokens: []string{"pothole", "main", "road", "ward", "9"}, Embedding: vec(0.9, 0.1, 0)},
	}
	historical := []Historical{
		{GrievanceID: 77, Category: "ROAD", Area: "ward 9",
			Tokens: []string{"pothole", "main", "street", "ward", "9"}, Embedding: vec(1, 0, 0)},
	}

	outcomes := Run(batch, historical, defaultWeights(), threshold.Snapshot{Duplicate: 0.95, NearDuplicate: 0.30})

	if outcomes[0].Status != StatusNearDuplicate {
		t.Fatalf("expected NEAR_DUPLICATE against historical pool, got %s (score %v)", outcomes[0].Status, outcomes[0].Score)
	}
	persisted, ok := outcomes[0].Target.(Persisted)
	if !ok || persisted.GrievanceID != 77 {
		t.Fatalf("expected Persisted{GrievanceID:77}, got %#v", outcomes[0].Target)
	}
}

func TestRunCategoryMismatchSuppressesMatch(t *testing.T) {
	t.Parallel()

	batch := []Input{
		{Index: 0, PDFID: 3, PageNumber: 1, Category: "GARBAGE", Area: "ward 9",
			Tokens: []string{"garbage", "not", "collected", "ward", "9"}, Embedding: vec(1, 0, 0)},
	}
	// Cosine 0.6 puts the raw composite at 0.82 (a match); the -0.25
	// category penalty brings it to 0.57, below the 0.60 near threshold.
	historical := []Historical{
		{GrievanceID: 50, Category: "ROAD", Area: "ward 9",
			Tokens: []string{"garbage", "not", "collected", "ward", "9"}, Embedding: vec(0.6, 0.8, 0)},
	}

	outcomes := Run(batch, historical, defaultWeights(), defaultThresholds())

	if outcomes[0].Status != StatusUnique {
		t.Fatalf("expected category mismatch to suppress the match, got %s", outcomes[0].Status)
	}
}

func TestRunOtherCategorySkipsCategoryFilter(t *testing.T) {
	t.Parallel()

	batch := []Input{
		{Index: 0, PDFID: 5, PageNumber: 1, Category: "OTHER", Area: "ward 9",
			Tokens: []string{"pipe", "leaking", "near", "market", "ward", "9"}, Embedding: vec(1, 0, 0)},
	}
	historical := []Historical{
		{GrievanceID: 91, Category: "WATER", Area: "ward 9",
			Tokens: []string{"pipe", "leaking", "near", "market", "ward", "9"}, Embedding: vec(1, 0, 0)},
	}

	outcomes := Run(batch, historical, defaultWeights(), defaultThresholds())

	if outcomes[0].Status != StatusDuplicate {
		t.Fatalf("expected OTHER-categorized grievance to still match across categories, got %s (score %v)", outcomes[0].Status, outcomes[0].Score)
	}
	persisted, ok := outcomes[0].Target.(Persisted)
	if !ok || persisted.GrievanceID != 91 {
		t.Fatalf("expected Persisted{GrievanceID:91}, got %#v", outcomes[0].Target)
	}
}

func TestRunLeavesSingletonUnique(t *testing.T) {
	t.Parallel()

	batch := []Input{
		{Index: 0, PDFID: 4, PageNumber: 1, Category: "OTHER", Area: "",
			Tokens: []string{"some", "unrelated", "complaint"}, Embedding: vec(0, 1, 0)},
	}

	outcomes := Run(batch, nil, defaultWeights(), defaultThresholds())

	if outcomes[0].Status != StatusUnique {
		t.Fatalf("expected singleton grievance to be UNIQUE, got %s", outcomes[0].Status)
	}
	if outcomes[0].Target != nil {
		t.Fatalf("expected nil target for UNIQUE, got %#v", outcomes[0].Target)
	}
}
