package types

// Job kinds enqueued by the identity engine.
// Implements: prd006-async-jobs R1.
const (
	JobHashRepair   = "entity.hash-repair" // rewrite a stale stored content hash
	JobEntityUpdate = "entity.update"      // full re-update after an ID move
)

// Job is one fire-and-forget task handed to the async facility.
type Job struct {
	ID     string         // UUID v7, generated by the enqueuer.
	Kind   string         // One of the Job* constants.
	Params map[string]any // Kind-specific parameters.
}

// JobQueue is the async fixup facility. Enqueue never blocks on job
// execution and the engine observes no result.
type JobQueue interface {
	Enqueue(job Job)
}
