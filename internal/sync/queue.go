package sync

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job states.
const (
	JobQueued  = "queued"
	JobRunning = "running"
	JobDone    = "done"
	JobFailed  = "failed"
)

// JobStatus is the observable state of a dispatched sync run. Replaces the
// fire-and-forget dispatch the admin UI used to rely on.
type JobStatus struct {
	ID         string     `json:"id"`
	Mode       string     `json:"mode"` // full, incremental, targeted
	State      string     `json:"state"`
	Result     *Result    `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type job struct {
	id  string
	run func(ctx context.Context) (Result, error)
}

// Queue runs sync jobs sequentially on a single worker goroutine, so an
// admin trigger returns immediately while runs never interleave.
type Queue struct {
	Orch *Orchestrator

	mu     sync.RWMutex
	status map[string]*JobStatus
	ch     chan job
}

func NewQueue(orch *Orchestrator, capacity int) *Queue {
	if capacity <= 0 {
		capacity = 16
	}
	return &Queue{
		Orch:   orch,
		status: make(map[string]*JobStatus),
		ch:     make(chan job, capacity),
	}
}

var ErrQueueFull = errors.New("sync queue is full")

// Run drains the queue until ctx is cancelled. Call once, in a goroutine.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-q.ch:
			q.execute(ctx, j)
		}
	}
}

func (q *Queue) EnqueueFull(limit int) (string, error) {
	return q.enqueue("full", func(ctx context.Context) (Result, error) {
		return q.Orch.FullSync(ctx, limit)
	})
}

func (q *Queue) EnqueueIncremental() (string, error) {
	return q.enqueue("incremental", func(ctx context.Context) (Result, error) {
		return q.Orch.IncrementalSync(ctx)
	})
}

func (q *Queue) EnqueueTargeted(keys []string) (string, error) {
	return q.enqueue("targeted", func(ctx context.Context) (Result, error) {
		return q.Orch.TargetedSync(ctx, keys)
	})
}

// Status reports a job by ID.
func (q *Queue) Status(id string) (JobStatus, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	st, ok := q.status[id]
	if !ok {
		return JobStatus{}, false
	}
	return *st, true
}

func (q *Queue) enqueue(mode string, run func(ctx context.Context) (Result, error)) (string, error) {
	id := uuid.NewString()
	st := &JobStatus{ID: id, Mode: mode, State: JobQueued, EnqueuedAt: time.Now()}
	q.mu.Lock()
	q.status[id] = st
	q.mu.Unlock()

	select {
	case q.ch <- job{id: id, run: run}:
		return id, nil
	default:
		q.mu.Lock()
		delete(q.status, id)
		q.mu.Unlock()
		return "", ErrQueueFull
	}
}

func (q *Queue) execute(ctx context.Context, j job) {
	now := time.Now()
	q.update(j.id, func(st *JobStatus) {
		st.State = JobRunning
		st.StartedAt = &now
	})
	res, err := j.run(ctx)
	done := time.Now()
	q.update(j.id, func(st *JobStatus) {
		st.FinishedAt = &done
		st.Result = &res
		if err != nil {
			st.State = JobFailed
			st.Error = err.Error()
		} else {
			st.State = JobDone
		}
	})
	if err != nil {
		log.Printf("[WARN] sync job %s (%s) failed: %v", j.id, statusMode(q, j.id), err)
	} else {
		log.Printf("[INFO] sync job %s finished: synced=%d updated=%d failed=%d",
			j.id, res.Synced, res.Updated, res.Failed)
	}
}

func statusMode(q *Queue, id string) string {
	if st, ok := q.Status(id); ok {
		return st.Mode
	}
	return "?"
}

func (q *Queue) update(id string, fn func(st *JobStatus)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if st, ok := q.status[id]; ok {
		fn(st)
	}
}
