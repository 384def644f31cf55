// Package jobs implements the in-process async fixup facility.
// Implements: prd006-async-jobs; docs/ARCHITECTURE § Async Jobs.
package jobs

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/semid/pkg/types"
)

// Handler executes one job kind. Returned errors are logged; a failed
// job is not retried by this queue.
type Handler func(job types.Job) error

// Queue is a channel-drained in-process job queue. Enqueue never blocks
// on job execution; when the buffer is full the job is dropped with a
// warning, since every job kind here is a repair that the next read or
// write will re-trigger.
type Queue struct {
	logger   *slog.Logger
	jobs     chan types.Job
	handlers map[string]Handler

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewQueue creates a queue with the given buffer size and starts its
// drain goroutine. A nil logger falls back to slog.Default().
func NewQueue(buffer int, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = 64
	}
	q := &Queue{
		logger:   logger,
		jobs:     make(chan types.Job, buffer),
		handlers: make(map[string]Handler),
		done:     make(chan struct{}),
	}
	go q.drain()
	return q
}

// Register installs the handler for a job kind. Must be called before
// jobs of that kind are enqueued; a job with no handler is logged and
// dropped.
func (q *Queue) Register(kind string, h Handler) {
	q.mu.Lock()
	q.handlers[kind] = h
	q.mu.Unlock()
}

// Enqueue hands a job to the drain goroutine. A job without an ID gets a
// UUID v7.
func (q *Queue) Enqueue(job types.Job) {
	if job.ID == "" {
		job.ID = uuid.Must(uuid.NewV7()).String()
	}
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return
	}
	select {
	case q.jobs <- job:
	default:
		q.logger.Warn("job queue full, dropping job", "kind", job.Kind, "id", job.ID)
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
// Idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	close(q.jobs)
	<-q.done
}

func (q *Queue) drain() {
	defer close(q.done)
	for job := range q.jobs {
		q.mu.Lock()
		h, ok := q.handlers[job.Kind]
		q.mu.Unlock()
		if !ok {
			q.logger.Warn("no handler for job kind", "kind", job.Kind, "id", job.ID)
			continue
		}
		if err := h(job); err != nil {
			q.logger.Error("job failed", "kind", job.Kind, "id", job.ID, "error", err)
		}
	}
}

var _ types.JobQueue = (*Queue)(nil)
