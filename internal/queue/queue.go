// Package queue runs video jobs one at a time in arrival order.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lukas-pastva/web-spain-sub000/internal/process"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("queue: closed")

// Result is what a handler reports for a finished job.
type Result struct {
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason,omitempty"`
	Output  string `json:"output,omitempty"`
	Items   int    `json:"items"`
}

// Handler builds the artifact for one job.
type Handler interface {
	Handle(ctx context.Context, job process.Job) (Result, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job process.Job) (Result, error)

func (f HandlerFunc) Handle(ctx context.Context, job process.Job) (Result, error) {
	return f(ctx, job)
}

// Event is emitted on every job transition. Job is a copy taken at the
// moment of the transition.
type Event struct {
	Job         process.Job
	Result      Result
	Err         error
	QueueLength int
}

// Listener observes job transitions. Listeners run synchronously on the
// goroutine making the transition, one event at a time in transition order,
// and must not call back into the queue.
type Listener func(Event)

type Option func(*Queue)

func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

func WithListener(l Listener) Option {
	return func(q *Queue) { q.listeners = append(q.listeners, l) }
}

func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithDegradedWhen marks the queue degraded whenever a job fails with an
// error matching fn. The flag clears on the next successful job.
func WithDegradedWhen(fn func(error) bool) Option {
	return func(q *Queue) { q.degradedWhen = fn }
}

// Queue is a single-worker FIFO sequencer. At most one job runs at any time;
// Enqueue never waits for a job to finish.
type Queue struct {
	handler      Handler
	logger       *slog.Logger
	listeners    []Listener
	now          func() time.Time
	degradedWhen func(error) bool

	ctx    context.Context
	cancel context.CancelFunc

	// emitMu is taken while mu is still held so listeners see transitions
	// in the order they happened.
	emitMu sync.Mutex

	mu         sync.Mutex
	pending    []*process.Job
	current    *process.Job
	processing bool
	idle       chan struct{}
	degraded   bool
	lastErr    string
	closed     bool
}

func New(h Handler, opts ...Option) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)
	q := &Queue{
		handler: h,
		logger:  slog.Default(),
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		idle:    idle,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue validates and appends a job, starting the worker if it is idle.
// Duplicate requests are not collapsed.
func (q *Queue) Enqueue(kind process.Kind, date string) (string, error) {
	kind, date, err := process.Normalize(kind, date)
	if err != nil {
		return "", err
	}
	job := process.NewJob(kind, date, q.now())

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", ErrClosed
	}
	q.pending = append(q.pending, job)
	depth := len(q.pending)
	snapshot := *job
	start := !q.processing
	if start {
		q.processing = true
		q.idle = make(chan struct{})
	}
	q.emitMu.Lock()
	q.mu.Unlock()

	q.logger.Info("job queued", "job_id", job.ID, "kind", kind, "date", date, "queue_length", depth)
	q.emit(Event{Job: snapshot, QueueLength: depth})

	if start {
		go q.drain()
	}
	return job.ID, nil
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.processing = false
			q.current = nil
			close(q.idle)
			q.mu.Unlock()
			return
		}
		job := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		process.MarkRunning(job, q.now())
		q.current = job
		depth := len(q.pending)
		snapshot := *job
		q.emitMu.Lock()
		q.mu.Unlock()

		log := q.logger.With("job_id", job.ID, "kind", job.Kind, "date", job.Date)
		log.Info("job started", "queue_length", depth)
		q.emit(Event{Job: snapshot, QueueLength: depth})

		res, err := q.run(job)

		q.mu.Lock()
		now := q.now()
		switch {
		case err != nil:
			process.MarkFailed(job, err, now)
			q.lastErr = job.Label() + ": " + err.Error()
			if q.degradedWhen != nil && q.degradedWhen(err) {
				q.degraded = true
			}
		case res.Skipped:
			process.MarkSkipped(job, now)
		default:
			process.MarkDone(job, now)
			q.degraded = false
		}
		q.current = nil
		depth = len(q.pending)
		snapshot = *job
		q.emitMu.Lock()
		q.mu.Unlock()

		switch snapshot.Status {
		case process.JobStatusFailed:
			log.Error("job failed", "err", err, "duration_ms", snapshot.Duration().Milliseconds())
		case process.JobStatusSkipped:
			log.Info("job skipped", "reason", res.Reason)
		default:
			log.Info("job completed", "output", res.Output, "items", res.Items, "duration_ms", snapshot.Duration().Milliseconds())
		}
		q.emit(Event{Job: snapshot, Result: res, Err: err, QueueLength: depth})
	}
}

// run invokes the handler, turning a panic into a job failure so the worker
// keeps draining.
func (q *Queue) run(job *process.Job) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return q.handler.Handle(q.ctx, *job)
}

// emit delivers ev to every listener and releases emitMu.
func (q *Queue) emit(ev Event) {
	defer q.emitMu.Unlock()
	for _, l := range q.listeners {
		l(ev)
	}
}

// CurrentJob identifies the running job.
type CurrentJob struct {
	ID        string       `json:"id"`
	Kind      process.Kind `json:"kind"`
	Date      string       `json:"date"`
	StartedAt time.Time    `json:"startedAt"`
}

// QueuedJob is a pending job and its 1-based place in line.
type QueuedJob struct {
	Position int          `json:"position"`
	Kind     process.Kind `json:"kind"`
	Date     string       `json:"date"`
}

// Status is a point-in-time snapshot of the queue.
type Status struct {
	IsProcessing bool        `json:"isProcessing"`
	CurrentJob   *CurrentJob `json:"currentJob"`
	QueueLength  int         `json:"queueLength"`
	QueuedJobs   []QueuedJob `json:"queuedJobs"`
	Degraded     bool        `json:"degraded"`
	LastError    string      `json:"lastError,omitempty"`
}

// Status never blocks on a running job.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	st := Status{
		IsProcessing: q.processing,
		QueueLength:  len(q.pending),
		QueuedJobs:   make([]QueuedJob, 0, len(q.pending)),
		Degraded:     q.degraded,
		LastError:    q.lastErr,
	}
	if q.current != nil {
		st.CurrentJob = &CurrentJob{
			ID:        q.current.ID,
			Kind:      q.current.Kind,
			Date:      q.current.Date,
			StartedAt: q.current.StartedAt,
		}
	}
	for i, j := range q.pending {
		st.QueuedJobs = append(st.QueuedJobs, QueuedJob{Position: i + 1, Kind: j.Kind, Date: j.Date})
	}
	return st
}

// Len returns the number of jobs waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Cancel removes queued jobs matching kind and date and returns how many
// were removed. A running job is never interrupted.
func (q *Queue) Cancel(kind process.Kind, date string) (int, error) {
	kind, date, err := process.Normalize(kind, date)
	if err != nil {
		return 0, err
	}

	q.mu.Lock()
	kept := q.pending[:0]
	removed := 0
	for _, j := range q.pending {
		if j.Kind == kind && j.Date == date {
			removed++
			continue
		}
		kept = append(kept, j)
	}
	for i := len(kept); i < len(q.pending); i++ {
		q.pending[i] = nil
	}
	q.pending = kept
	depth := len(q.pending)
	q.mu.Unlock()

	if removed > 0 {
		q.logger.Info("queued jobs cancelled", "kind", kind, "date", date, "removed", removed, "queue_length", depth)
	}
	return removed, nil
}

// Wait blocks until the worker is idle or ctx ends.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs, drops the ones still queued and waits for the
// running job. If ctx ends first the running job's context is cancelled.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	dropped := len(q.pending)
	q.pending = nil
	idle := q.idle
	q.mu.Unlock()

	if dropped > 0 {
		q.logger.Warn("dropping queued jobs on shutdown", "count", dropped)
	}

	select {
	case <-idle:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-idle
		return ctx.Err()
	}
}
