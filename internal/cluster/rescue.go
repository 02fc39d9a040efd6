package cluster

// RescueInput is one batch grievance's view going into the DBSCAN rescue
// pass — the grievance's post-C6 status plus its DBSCAN label.
type RescueInput struct {
	Index      int
	PageNumber int
	Status     string
	Label      int
}

// RescueResult is the (possibly upgraded) outcome for one grievance, plus
// the primary's index when it was upgraded.
type RescueResult struct {
	Index        int
	Status       string
	PrimaryIndex int // -1 when no upgrade happened
}

// Rescue implements §4.7's post-Pass-B pass: within each non-noise DBSCAN
// cluster of ≥2 members, the earliest page becomes primary; UNIQUE members
// upgrade to NEAR_DUPLICATE pointing at the primary. A DUPLICATE is never
// downgraded, and the primary itself is never rewritten to point at itself.
func Rescue(inputs []RescueInput) []RescueResult {
	results := make([]RescueResult, len(inputs))
	for i, in := range inputs {
		results[i] = RescueResult{Index: in.Index, Status: in.Status, PrimaryIndex: -1}
	}

	groups := make(map[int][]int) // label -> positions into inputs
	for i, in := range inputs {
		if in.Label <= LabelNoise {
			continue
		}
		groups[in.Label] = append(groups[in.Label], i)
	}

	for _, positions := range groups {
		if len(positions) < 2 {
			continue
		}

		primaryPos := positions[0]
		for _, p := range positions[1:] {
			if inputs[p].PageNumber < inputs[primaryPos].PageNumber {
				primaryPos = p
			}
		}

		for _, p := range positions {
			if p == primaryPos {
				continue
			}
			if inputs[p].Status != "UNIQUE" {
				continue
			}
			results[p].Status = "NEAR_DUPLICATE"
			results[p].PrimaryIndex = inputs[primaryPos].Index
		}
	}

	return results
}
