package dedup

import (
	"sort"
	"strings"

	"civicgrid.dev/grievdedup/internal/similarity"
	"civicgrid.dev/grievdedup/internal/threshold"
)

const topK = 10

// Status values a grievance can land on after Pass A/B.
const (
	StatusUnique        = "UNIQUE"
	StatusNearDuplicate = "NEAR_DUPLICATE"
	StatusDuplicate     = "DUPLICATE"
)

// local-only intermediate labels from Pass A, never persisted directly.
const (
	localDuplicate     = "LOCAL_DUPLICATE"
	localNearDuplicate = "LOCAL_NEAR_DUPLICATE"
	localUnique        = "LOCAL_UNIQUE"
)

// Input is one batch grievance's view for C6, in caller order (PDF order,
// then page order, then in-page order — §5's ordering guarantee).
type Input struct {
	Index      int
	PDFID      int64
	PageNumber int
	Category   string
	Area       string
	Tokens     []string
	Embedding  []float32
}

// Historical is one candidate drawn from the persisted pool (§3's
// "historical pool", most recent ≤1000 processed grievances).
type Historical struct {
	GrievanceID int64
	Category    string
	Area        string
	Tokens      []string
	Embedding   []float32
}

// Candidate is one scored member of a top-K result, kept for the "top-3"
// record referenced in §4.6 step 6.
type Candidate struct {
	Target MatchTarget
	Score  float64
}

// Outcome is one grievance's Pass A/B result.
type Outcome struct {
	Index       int
	Status      string
	Target      MatchTarget // nil when Status == StatusUnique
	Score       float64
	Breakdown   similarity.Breakdown
	Top3        []Candidate
	LocalTarget MatchTarget // Pass A's best intra-PDF match, nil if none; informational even when Pass B's target differs.
}

type poolEntry struct {
	Target    MatchTarget
	Category  string
	Area      string
	Tokens    []string
	Embedding []float32
}

type localResult struct {
	status    string
	target    MatchTarget
	score     float64
	breakdown similarity.Breakdown
}

// Run executes Pass A (intra-PDF) then Pass B (batch + historical) over a
// batch, in input order, per §4.6.
func Run(batch []Input, historical []Historical, weights similarity.Weights, thresholds threshold.Snapshot) []Outcome {
	local := runPassA(batch, weights, thresholds)
	return runPassB(batch, historical, weights, thresholds, local)
}

// runPassA walks each PDF group in page order; for position k it compares
// against all earlier positions in the same group and keeps the best match.
func runPassA(batch []Input, weights similarity.Weights, thresholds threshold.Snapshot) []localResult {
	results := make([]localResult, len(batch))

	groups := make(map[int64][]int)
	for _, in := range batch {
		groups[in.PDFID] = append(groups[in.PDFID], in.Index)
	}

	for _, indices := range groups {
		for pos, i := range indices {
			best := similarity.Breakdown{}
			bestJ := -1
			for _, j := range indices[:pos] {
				b := similarity.Score(toRecord(batch[i]), toRecord(batch[j]), weights)
				if bestJ == -1 || b.Final > best.Final {
					best = b
					bestJ = j
				}
			}
			if bestJ == -1 {
				results[i] = localResult{status: localUnique}
				continue
			}

			status := localUnique
			switch {
			case best.Final >= thresholds.Duplicate:
				status = localDuplicate
			case best.Final >= thresholds.NearDuplicate:
				status = localNearDuplicate
			}
			result := localResult{status: status, score: best.Final, breakdown: best}
			if status != localUnique {
				result.target = Pending{Index: bestJ}
			}
			results[i] = result
		}
	}
	return results
}

func toRecord(in Input) similarity.Record {
	return similarity.Record{Embedding: in.Embedding, Tokens: in.Tokens, Category: in.Category, Area: in.Area}
}

// runPassB walks the batch in input order, maintaining processed_in_batch,
// and classifies each grievance against the historical + in-batch pool.
func runPassB(batch []Input, historical []Historical, weights similarity.Weights, thresholds threshold.Snapshot, local []localResult) []Outcome {
	historicalPool := make([]poolEntry, 0, len(historical))
	for _, h := range historical {
		historicalPool = append(historicalPool, poolEntry{
			Target:    Persisted{GrievanceID: h.GrievanceID},
			Category:  h.Category,
			Area:      h.Area,
			Tokens:    h.Tokens,
			Embedding: h.Embedding,
		})
	}

	var processedInBatch []poolEntry
	outcomes := make([]Outcome, len(batch))

	for _, in := range batch {
		if local[in.Index].status == localDuplicate {
			outcomes[in.Index] = Outcome{
				Index:       in.Index,
				Status:      StatusDuplicate,
				Target:      local[in.Index].target,
				Score:       local[in.Index].score,
				Breakdown:   local[in.Index].breakdown,
				LocalTarget: local[in.Index].target,
			}
			processedInBatch = append(processedInBatch, poolEntry{
				Target:    Pending{Index: in.Index},
				Category:  in.Category,
				Area:      in.Area,
				Tokens:    in.Tokens,
				Embedding: in.Embedding,
			})
			continue
		}

		pool := append(append([]poolEntry{}, historicalPool...), processedInBatch...)
		pool = filterByCategory(pool, in.Category)
		pool = filterByArea(pool, in.Area)

		candidates := topKCandidates(in, pool, weights)

		status := StatusUnique
		var target MatchTarget
		var score float64
		var breakdown similarity.Breakdown
		if len(candidates) > 0 {
			best := candidates[0]
			score = best.Score
			breakdown = best.breakdown
			switch {
			case score >= thresholds.Duplicate:
				status = StatusDuplicate
				target = best.Target
			case score >= thresholds.NearDuplicate:
				status = StatusNearDuplicate
				target = best.Target
			}
		}

		top3 := make([]Candidate, 0, 3)
		for i, c := range candidates {
			if i >= 3 {
				break
			}
			top3 = append(top3, Candidate{Target: c.Target, Score: c.Score})
		}

		outcomes[in.Index] = Outcome{
			Index:       in.Index,
			Status:      status,
			Target:      target,
			Score:       score,
			Breakdown:   breakdown,
			Top3:        top3,
			LocalTarget: local[in.Index].target,
		}

		processedInBatch = append(processedInBatch, poolEntry{
			Target:    Pending{Index: in.Index},
			Category:  in.Category,
			Area:      in.Area,
			Tokens:    in.Tokens,
			Embedding: in.Embedding,
		})
	}

	return outcomes
}

type scoredCandidate struct {
	Target    MatchTarget
	Score     float64
	breakdown similarity.Breakdown
}

func topKCandidates(in Input, pool []poolEntry, weights similarity.Weights) []scoredCandidate {
	current := toRecord(in)
	scored := make([]scoredCandidate, 0, len(pool))
	for _, p := range pool {
		b := similarity.Score(current, similarity.Record{Embedding: p.Embedding, Tokens: p.Tokens, Category: p.Category, Area: p.Area}, weights)
		scored = append(scored, scoredCandidate{Target: p.Target, Score: b.Final, breakdown: b})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

func filterByCategory(pool []poolEntry, category string) []poolEntry {
	if category == "" || category == "OTHER" {
		return pool
	}
	var out []poolEntry
	for _, p := range pool {
		if p.Category == "" || p.Category == category {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return pool
	}
	return out
}

func filterByArea(pool []poolEntry, area string) []poolEntry {
	if area == "" {
		return pool
	}
	var out []poolEntry
	for _, p := range pool {
		if p.Area == "" || strings.EqualFold(p.Area, area) {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return pool
	}
	return out
}
