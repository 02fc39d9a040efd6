package grievance

import (
	"regexp"
	"strings"
)

// complaintKeywords is the glossary's "complaint keyword" set; a candidate
// must contain at least one to be considered a real grievance rather than
// stray document text.
var complaintKeywords = []string{
	"problem", "issue", "complaint", "request", "not working", "broken",
	"damaged", "delay", "failed", "poor", "need", "water", "road",
	"electricity", "garbage", "sewage", "streetlight", "pothole",
	"drainage", "supply", "service", "unsafe", "health", "sanitation",
	"flooding", "repair", "maintenance", "construction", "traffic",
	"signal", "stray", "dogs", "animals", "park", "school",
}

var headerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^grievance collection`),
	regexp.MustCompile(`(?i)^batch\b`),
	regexp.MustCompile(`(?i)^municipal corporation`),
	regexp.MustCompile(`(?i)^ward\s+\d+\s*$`),
	regexp.MustCompile(`(?i)^date\s*:`),
	regexp.MustCompile(`^[-=_*]{3,}\s*$`),
	regexp.MustCompile(`(?i)^(january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{4}\s*$`),
	regexp.MustCompile(`(?i)^submitted by\s*:`),
	regexp.MustCompile(`(?i)^page\s+\d+\s*$`),
	regexp.MustCompile(`(?i)^total grievances`),
}

var referencePrefixPattern = regexp.MustCompile(`(?i)^\s*(grievance\s*\w*\s*:|ticket\s*#?\s*\d+\s*[:\-]?|(no\.|ref(erence)?\.?)\s*\d+\s*[:\-]?|\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}\s*[:\-]?)\s*`)

var formulaicOpenings = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^dear sir(,|\.|\s)*`),
	regexp.MustCompile(`(?i)^dear madam(,|\.|\s)*`),
	regexp.MustCompile(`(?i)^i am writing to\s*`),
	regexp.MustCompile(`(?i)^with reference to\s*`),
	regexp.MustCompile(`(?i)^respected sir(,|\.|\s)*`),
	regexp.MustCompile(`(?i)^to whom it may concern(,|\.|\s)*`),
}

var (
	markerSplit  = regexp.MustCompile(`(?im)^\s*GRIEVANCE(\s+[A-Za-z0-9_-]+)?\s*:\s*`)
	numberedSplit = regexp.MustCompile(`(?m)^\s*(\d+[.)]|\[\d+\])\s*`)
)

const minGrievanceLength = 30
const minWhitespaceTokens = 10

// Split cascades through strategies in order, returning the first that
// yields at least one valid grievance.
func Split(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	if parts := splitAndFilter(markerSplit, trimmed); len(parts) > 0 {
		return parts
	}
	if parts := splitAndFilter(numberedSplit, trimmed); len(parts) > 0 {
		return parts
	}
	if parts := splitAndFilter(nil, trimmed); len(parts) > 0 {
		return parts
	}
	if !isValid(trimmed) {
		return nil
	}
	if core, ok := ExtractCore(trimmed); ok {
		return []string{core}
	}
	return nil
}

func splitAndFilter(marker *regexp.Regexp, text string) []string {
	var raw []string
	if marker != nil {
		raw = marker.Split(text, -1)
		if len(raw) < 2 {
			return nil
		}
	} else {
		raw = regexp.MustCompile(`\n\s*\n`).Split(text, -1)
	}

	var out []string
	for _, candidate := range raw {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if !isValid(candidate) {
			continue
		}
		core, ok := ExtractCore(candidate)
		if !ok {
			continue
		}
		out = append(out, core)
	}
	return out
}

// isValid checks C2's admission criteria before a candidate is cored.
func isValid(candidate string) bool {
	if len(candidate) < minGrievanceLength {
		return false
	}
	if len(strings.Fields(candidate)) < minWhitespaceTokens {
		return false
	}
	for _, pattern := range headerPatterns {
		if pattern.MatchString(candidate) {
			return false
		}
	}
	lowered := strings.ToLower(candidate)
	for _, keyword := range complaintKeywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}

// ExtractCore strips leading reference prefixes and formulaic openings,
// requiring the result to still meet the minimum length.
func ExtractCore(candidate string) (string, bool) {
	core := referencePrefixPattern.ReplaceAllString(candidate, "")
	for _, pattern := range formulaicOpenings {
		core = pattern.ReplaceAllString(core, "")
	}
	core = strings.TrimSpace(core)
	if len(core) < minGrievanceLength {
		return "", false
	}
	return core, true
}
