package dedup

// MatchTarget is the tagged sum that replaces "batch_<i>" vs integer id
// string inspection (§9): a match is either Pending (another grievance in
// the same batch, not yet persisted) or Persisted (a real grievance id
// already in the database). The orchestrator (pipeline.resolveTarget)
// type-switches on this rather than parsing strings and turns a Pending value
// into the id its grievance was given on insert, so C8 only ever sees real ids.
type MatchTarget interface {
	isMatchTarget()
}

// Pending references another grievance by its position in the current
// batch's input order. It must be resolved to a Persisted id once the batch
// is written, and must never reach a foreign key column as-is.
type Pending struct {
	Index int
}

func (Pending) isMatchTarget() {}

// Persisted references an already-stored grievance — either from the
// historical pool or from an earlier batch.
type Persisted struct {
	GrievanceID int64
}

func (Persisted) isMatchTarget() {}
