package category

import (
	"regexp"
	"strings"
)

// Taxonomy is the fixed category enumeration, in tie-break order.
var Taxonomy = []string{"WATER", "GARBAGE", "ROAD", "ELECTRICITY", "SEWAGE", "NOISE", "PARK", "OTHER"}

const Other = "OTHER"

var keywordsByCategory = map[string][]string{
	"WATER": {
		"water supply", "water leak", "water pipe", "no water", "water tanker",
		"drinking water", "water shortage", "water tank", "water pressure",
		"water contamination", "borewell", "water logging", "pipeline leak",
		"water connection", "water meter",
	},
	"GARBAGE": {
		"garbage", "trash", "waste collection", "dump", "dumping", "litter",
		"garbage truck", "waste bin", "solid waste", "rubbish", "landfill",
		"garbage dump", "waste disposal", "bin overflow", "garbage collection",
	},
	"ROAD": {
		"pothole", "road damage", "road repair", "broken road", "speed breaker",
		"footpath", "pavement", "road construction", "traffic signal",
		"road block", "flyover", "divider",
		"road widening",
	},
	"ELECTRICITY": {
		"power cut", "electricity", "power outage", "transformer", "voltage",
		"power supply", "power line", "electric pole", "short circuit",
		"power failure", "electric meter", "power fluctuation", "no power",
		"electric wire", "load shedding", "street light", "streetlight",
	},
	"SEWAGE": {
		"sewage", "drainage", "drain", "sewer", "manhole", "sewage leak",
		"sewage overflow", "blocked drain", "open drain", "waste water",
		"sewer line", "septic", "sewage treatment", "gutter", "clogged drain",
	},
	"NOISE": {
		"noise pollution", "loudspeaker", "loud music", "honking", "noisy",
		"noise complaint", "construction noise", "dj", "firecracker",
		"late night noise", "noise nuisance", "sound pollution", "blaring",
		"disturbance", "loud noise",
	},
	"PARK": {
		"park", "playground", "garden", "green space", "park maintenance",
		"park fencing", "park bench", "park lighting", "stray dogs",
		"park cleanliness", "recreational area", "swings", "park equipment",
		"walking track", "park encroachment",
	},
}

var areaPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bsector\s+(\d+|[a-z]+)\b`),
	regexp.MustCompile(`(?i)\bward\s+(\d+|[a-z]+)\b`),
	regexp.MustCompile(`(?i)\bblock\s+([a-z0-9]+)\b`),
	regexp.MustCompile(`(?i)\bzone\s+([a-z0-9]+)\b`),
	regexp.MustCompile(`(?i)\b(colony|village|mohalla)\s+([a-z][a-z\s]{1,30})\b`),
}

// Result is the C3 classifier output.
type Result struct {
	Category   string
	Confidence float64
}

// Detect counts substring matches for each taxonomy class on the lowercased
// raw text; the highest count wins, ties broken by taxonomy order, zero
// matches falls back to OTHER.
func Detect(rawText string) Result {
	lowered := strings.ToLower(rawText)

	bestCategory := Other
	bestCount := 0
	for _, cat := range Taxonomy {
		if cat == Other {
			continue
		}
		count := 0
		for _, kw := range keywordsByCategory[cat] {
			count += strings.Count(lowered, kw)
		}
		if count > bestCount {
			bestCount = count
			bestCategory = cat
		}
	}

	confidence := float64(bestCount) / 3.0
	if confidence > 1.0 {
		confidence = 1.0
	}
	confidence = roundTo2(confidence)

	if bestCount == 0 {
		return Result{Category: Other, Confidence: 0}
	}
	return Result{Category: bestCategory, Confidence: confidence}
}

// ExtractArea applies a best-effort regex for common Indian-municipal area
// references; the first match wins. May return empty.
func ExtractArea(rawText string) string {
	for _, pattern := range areaPatterns {
		if m := pattern.FindString(rawText); m != "" {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

func roundTo2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
