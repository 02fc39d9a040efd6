package grievance

import "testing"

func TestSplitMarkerStrategy(t *testing.T) {
	t.Parallel()

	input := `GRIEVANCE 1: The water supply in our colony has been broken for over a week now.
GRIEVANCE 2: Streetlights near the park have not been working since last month, it is unsafe.`

	got := Split(input)
	if len(got) != 2 {
		t.Fatalf("expected 2 grievances, got %d: %#v", len(got), got)
	}
}

func TestSplitRejectsHeadersAndShortText(t *testing.T) {
	t.Parallel()

	input := "Grievance Collection Batch 4\nWard 7\nDate: 2026-01-01\n\nThe garbage has not been collected from our street for ten days and it is causing a health hazard."

	got := Split(input)
	if len(got) != 1 {
		t.Fatalf("expected 1 grievance after filtering headers, got %d: %#v", len(got), got)
	}
}

func TestSplitNumberedList(t *testing.T) {
	t.Parallel()

	input := `1. There has been a major sewage leak on our street for three days and nobody has responded.
2. The park near our house is full of stray dogs and it is unsafe for children to play there.`

	got := Split(input)
	if len(got) != 2 {
		t.Fatalf("expected 2 grievances, got %d: %#v", len(got), got)
	}
}

func TestSplitFallbackRejectsTextWithoutComplaintKeyword(t *testing.T) {
	t.Parallel()

	input := "Grievance Collection Report for Ward Number Fifteen Municipal Corporation Building"

	got := Split(input)
	if got != nil {
		t.Fatalf("expected fallback strategy to reject header-like text with no complaint keyword, got %#v", got)
	}
}

func TestExtractCoreStripsReferencePrefixAndGreeting(t *testing.T) {
	t.Parallel()

	core, ok := ExtractCore("GRIEVANCE 12: Dear Sir, I am writing to report a pothole on MG Road that has damaged several vehicles.")
	if !ok {
		t.Fatalf("expected valid core")
	}
	if core == "" {
		t.Fatalf("expected non-empty core")
	}
	if core[:4] == "Dear" {
		t.Fatalf("expected greeting stripped, got %q", core)
	}
}
