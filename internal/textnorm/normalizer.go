package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"civicgrid.dev/grievdedup/internal/langdetect"
)

var (
	urlPattern   = regexp.MustCompile(`https?://\S+|www\.\S+`)
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\-\s()]{7,}\d`)
	nonAlnumRun  = regexp.MustCompile(`[^a-z0-9\s]+`)
	whitespaceRun = regexp.MustCompile(`\s+`)

	stripCombiningMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Normalize runs the fixed, order-sensitive pipeline described in C1: NFD
// fold, lowercase, URL/email/phone strip, punctuation strip, whitespace
// collapse, then (English-only) stop-word removal and lemmatization.
//
// Normalize is idempotent: normalizing already-normalized text returns it
// unchanged.
func Normalize(text string) string {
	folded, _, err := transform.String(stripCombiningMarks, text)
	if err != nil {
		folded = text
	}

	lowered := strings.ToLower(folded)
	lowered = urlPattern.ReplaceAllString(lowered, " ")
	lowered = emailPattern.ReplaceAllString(lowered, " ")
	lowered = phonePattern.ReplaceAllString(lowered, " ")
	lowered = nonAlnumRun.ReplaceAllString(lowered, " ")
	lowered = whitespaceRun.ReplaceAllString(lowered, " ")
	lowered = strings.TrimSpace(lowered)

	if lowered == "" {
		return ""
	}

	tokens := strings.Split(lowered, " ")

	isEnglish := isEnglishOrUnknown(text)
	if !isEnglish {
		return strings.Join(tokens, " ")
	}

	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if len(tok) <= 1 {
			continue
		}
		if isStopWord(tok) {
			continue
		}
		lemma := lemmatize(tok)
		if len(lemma) <= 1 || isStopWord(lemma) {
			continue
		}
		kept = append(kept, lemma)
	}
	return strings.Join(kept, " ")
}

// isEnglishOrUnknown reports whether steps 6-7 (English-specific) should run.
// Short or ambiguous samples (langdetect returns "") are treated as English
// so the common case of short grievance fragments is not skipped.
func isEnglishOrUnknown(text string) bool {
	code := langdetect.DetectISO6391(text)
	return code == "" || code == "en"
}

// Tokens splits already-normalized text into its whitespace-delimited tokens.
func Tokens(normalized string) []string {
	if strings.TrimSpace(normalized) == "" {
		return nil
	}
	return strings.Fields(normalized)
}
