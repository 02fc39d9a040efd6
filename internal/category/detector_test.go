package category

import "testing"

func TestDetectPicksHighestCount(t *testing.T) {
	t.Parallel()

	result := Detect("There has been a pothole and road damage near the road construction site, the footpath is also broken")
	if result.Category != "ROAD" {
		t.Fatalf("expected ROAD, got %s (confidence %v)", result.Category, result.Confidence)
	}
	if result.Confidence <= 0 {
		t.Fatalf("expected positive confidence, got %v", result.Confidence)
	}
}

func TestDetectClassifiesStreetlightAsElectricity(t *testing.T) {
	t.Parallel()

	result := Detect("The streetlight at sector 15 block C has been off for 10 days; please repair urgently.")
	if result.Category != "ELECTRICITY" {
		t.Fatalf("expected ELECTRICITY, got %s (confidence %v)", result.Category, result.Confidence)
	}
}

func TestDetectFallsBackToOther(t *testing.T) {
	t.Parallel()

	result := Detect("This is a generic statement with nothing classifiable in it at all")
	if result.Category != Other {
		t.Fatalf("expected OTHER, got %s", result.Category)
	}
	if result.Confidence != 0 {
		t.Fatalf("expected zero confidence, got %v", result.Confidence)
	}
}

func TestExtractAreaMatchesSectorAndWard(t *testing.T) {
	t.Parallel()

	if got := ExtractArea("The issue is in Sector 21 near the main market"); got == "" {
		t.Fatalf("expected a sector match")
	}
	if got := ExtractArea("Reported from Ward 9 by residents"); got == "" {
		t.Fatalf("expected a ward match")
	}
	if got := ExtractArea("No locality mentioned here"); got != "" {
		t.Fatalf("expected empty area, got %q", got)
	}
}
