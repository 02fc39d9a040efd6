package textnorm

import "testing"

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	cases := []string{
		"The water supply has been broken for 3 days near Sector 21!",
		"Café résumé naïve — diacritics should fold",
		"Contact us at report@example.com or http://example.com/report",
		"Call +91-98765-43210 about the pothole on MG Road",
		"The process was delayed due to lack of access and poor success rate",
		"",
		"   ",
	}

	for _, input := range cases {
		input := input
		t.Run(input, func(t *testing.T) {
			t.Parallel()
			once := Normalize(input)
			twice := Normalize(once)
			if once != twice {
				t.Fatalf("normalize not idempotent: %q -> %q -> %q", input, once, twice)
			}
		})
	}
}

func TestNormalizeStripsContactInfo(t *testing.T) {
	t.Parallel()

	out := Normalize("Email me at someone@example.com or call 9876543210 about this")
	if out == "" {
		t.Fatalf("expected non-empty normalized text")
	}
	for _, forbidden := range []string{"@", "example.com", "9876543210"} {
		if contains(out, forbidden) {
			t.Fatalf("normalized text %q retained %q", out, forbidden)
		}
	}
}

func TestNormalizeDropsStopWordsAndLemmatizes(t *testing.T) {
	t.Parallel()

	out := Normalize("the streetlights are not working near the park")
	if contains(out, " the ") || contains(out, " are ") {
		t.Fatalf("expected stop words removed, got %q", out)
	}
	if contains(out, "working") || !contains(out, "work") {
		t.Fatalf("expected %q lemmatized to %q, got %q", "working", "work", out)
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
