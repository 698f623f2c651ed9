// Package queue implements the Job Queue (C11): a bounded, fixed-size
// worker pool dispatching jobs through the runtime dispatcher, with
// backpressure ahead of a configured high-water mark and cooperative
// cancellation.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hanzoai/node/internal/execution"
	"github.com/hanzoai/node/internal/metrics"
	"github.com/hanzoai/node/internal/svcerr"
)

// State is a job's position in its lifecycle (spec §4.11).
type State string

const (
	StateSubmitted State = "Submitted"
	StateQueued    State = "Queued"
	StateDispatched State = "Dispatched"
	StateCompleted State = "Completed"
	StateFailed    State = "Failed"
	StateCancelled State = "Cancelled"
)

// Job is one unit of work submitted to the queue.
type Job struct {
	ID         string
	Type       string
	Invocation execution.ToolInvocation

	mu        sync.Mutex
	state     State
	result    execution.ExecutionResult
	cancelled bool
}

func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *Job) setState(s State) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = s
}

func (j *Job) cancelRequested() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelled
}

// Result returns the terminal result, if any.
func (j *Job) Result() execution.ExecutionResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Dispatch is the function the queue hands each job to; execution.Dispatcher
// satisfies this via its Dispatch method.
type Dispatch func(ctx context.Context, invocation execution.ToolInvocation) execution.ExecutionResult

// Queue is a fixed-size worker pool over a buffered channel, with a
// high-water mark enforced on submission (spec §4.11 Backpressure).
type Queue struct {
	dispatch     Dispatch
	metrics      *metrics.Metrics
	limiter      *rate.Limiter
	highWaterMark int

	mu     sync.Mutex
	jobs   map[string]*Job
	pending chan *Job

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

// Config controls worker count and backpressure thresholds.
type Config struct {
	Workers            int
	HighWaterMark      int
	SubmitRatePerSecond float64
	SubmitBurst        int
}

// DefaultConfig returns a reasonable pool size for a single node.
func DefaultConfig() Config {
	return Config{Workers: 4, HighWaterMark: 256, SubmitRatePerSecond: 50, SubmitBurst: 100}
}

// New constructs a Queue that dispatches accepted jobs via dispatch.
func New(cfg Config, dispatch Dispatch, m *metrics.Metrics) *Queue {
	if cfg.Workers <= 0 {
		cfg = DefaultConfig()
	}
	q := &Queue{
		dispatch:      dispatch,
		metrics:       m,
		limiter:       rate.NewLimiter(rate.Limit(cfg.SubmitRatePerSecond), cfg.SubmitBurst),
		highWaterMark: cfg.HighWaterMark,
		jobs:          make(map[string]*Job),
		pending:       make(chan *Job, cfg.HighWaterMark),
		stopCh:        make(chan struct{}),
	}
	for i := 0; i < cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Submit assigns a fresh job id and inserts it Queued (spec §4.11). Fails
// ResourceExhausted once queue depth (jobs not yet in a terminal state)
// reaches the high-water mark.
func (q *Queue) Submit(ctx context.Context, inv execution.ToolInvocation, jobType string) (string, error) {
	if !q.limiter.Allow() {
		return "", svcerr.ResourceExhausted("submit_rate")
	}

	q.mu.Lock()
	depth := 0
	for _, j := range q.jobs {
		switch j.State() {
		case StateCompleted, StateFailed, StateCancelled:
		default:
			depth++
		}
	}
	q.mu.Unlock()
	if depth >= q.highWaterMark {
		return "", svcerr.ResourceExhausted("queue_depth")
	}

	job := &Job{ID: uuid.NewString(), Type: jobType, Invocation: inv, state: StateSubmitted}

	q.mu.Lock()
	q.jobs[job.ID] = job
	q.mu.Unlock()

	job.setState(StateQueued)
	if q.metrics != nil {
		q.metrics.SetJobQueueDepth("pending", q.depthOf(StateQueued))
	}

	select {
	case q.pending <- job:
		return job.ID, nil
	case <-ctx.Done():
		job.setState(StateCancelled)
		return "", ctx.Err()
	}
}

// Cancel marks job_id Cancelled if not yet Dispatched; once Dispatched the
// cancellation is cooperative and observed by the running worker between
// runtime phases (spec §4.11, §5).
func (q *Queue) Cancel(jobID string) error {
	q.mu.Lock()
	job, ok := q.jobs[jobID]
	q.mu.Unlock()
	if !ok {
		return svcerr.New(svcerr.KindIO, "unknown job", 404)
	}

	job.mu.Lock()
	defer job.mu.Unlock()
	if job.state == StateDispatched {
		job.cancelled = true
		return nil
	}
	if job.state == StateCompleted || job.state == StateFailed || job.state == StateCancelled {
		return nil
	}
	job.state = StateCancelled
	return nil
}

// Get returns the job by id.
func (q *Queue) Get(jobID string) (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	return job, ok
}

func (q *Queue) depthOf(state State) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, job := range q.jobs {
		if job.State() == state {
			n++
		}
	}
	return n
}

// worker pulls one job at a time, dispatches via the runtime dispatcher,
// and records the terminal state (spec §4.11).
func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.stopCh:
			return
		case job, ok := <-q.pending:
			if !ok {
				return
			}
			q.run(job)
		}
	}
}

func (q *Queue) run(job *Job) {
	if job.State() == StateCancelled {
		return
	}

	job.setState(StateDispatched)
	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if job.cancelRequested() {
					cancel()
					return
				}
			}
		}
	}()

	result := q.dispatch(ctx, job.Invocation)

	job.mu.Lock()
	job.result = result
	if job.cancelled {
		job.state = StateCancelled
	} else if result.Err != nil {
		job.state = StateFailed
	} else {
		job.state = StateCompleted
	}
	finalState := job.state
	job.mu.Unlock()

	if q.metrics != nil {
		q.metrics.RecordJobProcessing(job.Type, string(finalState), time.Since(start))
	}
}

// Shutdown stops accepting new work from the pending channel and waits for
// in-flight jobs to reach a terminal state.
func (q *Queue) Shutdown() {
	q.stopOnce.Do(func() { close(q.stopCh) })
	q.wg.Wait()
}
