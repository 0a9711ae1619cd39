package async

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// ExitCodePending is the exit code of a job that has not completed.
const ExitCodePending = -1

const defaultPollInterval = 100 * time.Millisecond

var (
	// ErrQueueClosed is returned by Add after Close.
	ErrQueueClosed = errors.New("queue is closed")
	// ErrQueueNotClosed is returned by Run before Close.
	ErrQueueNotClosed = errors.New("queue must be closed before running")
	// ErrQueueStarted is returned by Run when called twice.
	ErrQueueStarted = errors.New("queue already started")
	// ErrDuplicateHost is returned by Add when the host already has a job.
	ErrDuplicateHost = errors.New("host already queued")
)

// Job is work bound to one host. Host must not change after Add.
type Job struct {
	Host string

	// Run does the work for host. emit publishes the job's result payload;
	// only the first emitted value is kept.
	Run func(ctx context.Context, host string, emit func(any)) error
}

// Result is the outcome of one job.
type Result struct {
	ExitCode int
	Value    any
	Err      error
}

// Status is a point-in-time count of jobs per state.
type Status struct {
	Completed int
	Running   int
	Queued    int
}

// Total returns the number of jobs.
func (s Status) Total() int {
	return s.Completed + s.Running + s.Queued
}

// Summary describes a finished run.
type Summary struct {
	OK      int
	Errors  int
	Elapsed time.Duration
	Failed  []string
}

// Reporter is notified when the status changes and once at the end.
type Reporter interface {
	Status(Status)
	Summary(Summary)
}

// Option configures a Queue.
type Option func(*Queue)

// WithPollInterval sets the liveness poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.pollInterval = d
		}
	}
}

// WithReporter sets the status reporter.
func WithReporter(r Reporter) Option {
	return func(q *Queue) {
		q.reporter = r
	}
}

type emitted struct {
	host  string
	value any
}

type task struct {
	job      Job
	done     chan struct{}
	exitCode int
	err      error
}

func (t *task) alive() bool {
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// Queue runs jobs with bounded concurrency.
type Queue struct {
	maxConcurrency int
	pollInterval   time.Duration
	reporter       Reporter

	mu        sync.Mutex
	closed    bool
	started   bool
	hosts     map[string]bool
	queued    []*task
	running   []*task
	completed []*task
	summary   Summary

	results chan emitted
	wake    chan struct{}
}

// NewQueue creates a queue running at most maxConcurrency jobs at once.
// Values below 1 are treated as 1.
func NewQueue(maxConcurrency int, opts ...Option) *Queue {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	q := &Queue{
		maxConcurrency: maxConcurrency,
		pollInterval:   defaultPollInterval,
		hosts:          make(map[string]bool),
		wake:           make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Add enqueues a job.
func (q *Queue) Add(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.hosts[job.Host] {
		return fmt.Errorf("%w: %s", ErrDuplicateHost, job.Host)
	}
	q.hosts[job.Host] = true
	q.queued = append(q.queued, &task{job: job, done: make(chan struct{}), exitCode: ExitCodePending})
	return nil
}

// Close stops accepting jobs.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// Status returns the current (completed, running, queued) counts.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statusLocked()
}

// Summary returns the summary of the last run.
func (q *Queue) Summary() Summary {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.summary
}

// Run executes all jobs and returns their results keyed by host. Every
// host has an entry with a final exit code. If ctx is cancelled, jobs not
// yet started are completed with exit code 1 and ctx.Err() is returned
// alongside the results.
func (q *Queue) Run(ctx context.Context) (map[string]*Result, error) {
	q.mu.Lock()
	if !q.closed {
		q.mu.Unlock()
		return nil, ErrQueueNotClosed
	}
	if q.started {
		q.mu.Unlock()
		return nil, ErrQueueStarted
	}
	q.started = true
	q.results = make(chan emitted, len(q.queued))
	results := make(map[string]*Result, len(q.queued))
	for _, t := range q.queued {
		results[t.job.Host] = &Result{ExitCode: ExitCodePending}
	}
	q.mu.Unlock()

	logger := logr.FromContextOrDiscard(ctx)
	start := time.Now()
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	var last Status
	reported := false
	for {
		q.mu.Lock()
		q.reapLocked()
		if ctx.Err() != nil {
			q.cancelQueuedLocked(ctx.Err())
		}
		for len(q.running) < q.maxConcurrency && len(q.queued) > 0 {
			t := q.queued[0]
			q.queued = q.queued[1:]
			q.running = append(q.running, t)
			q.start(ctx, logger, t)
		}
		status := q.statusLocked()
		q.mu.Unlock()

		q.collect(results)

		if !reported || status != last {
			if q.reporter != nil {
				q.reporter.Status(status)
			}
			last, reported = status, true
		}
		if status.Queued == 0 && status.Running == 0 {
			break
		}

		cancelled := ctx.Done()
		if ctx.Err() != nil {
			cancelled = nil
		}
		select {
		case <-ticker.C:
		case <-q.wake:
		case <-cancelled:
		}
	}

	q.mu.Lock()
	for _, t := range q.completed {
		<-t.done
		r := results[t.job.Host]
		r.ExitCode = t.exitCode
		r.Err = t.err
	}
	q.summary = summarize(q.completed, time.Since(start))
	summary := q.summary
	q.mu.Unlock()

	q.collect(results)

	if q.reporter != nil {
		q.reporter.Summary(summary)
	}
	return results, ctx.Err()
}

func (q *Queue) start(ctx context.Context, logger logr.Logger, t *task) {
	var once sync.Once
	emit := func(v any) {
		once.Do(func() { q.results <- emitted{host: t.job.Host, value: v} })
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(fmt.Errorf("panic: %v", r), "job panicked", "host", t.job.Host, "stack", string(debug.Stack()))
				t.exitCode = 1
				t.err = fmt.Errorf("job panicked: %v", r)
			}
			close(t.done)
			select {
			case q.wake <- struct{}{}:
			default:
			}
		}()

		err := t.job.Run(ctx, t.job.Host, emit)
		t.exitCode = ExitCode(err)
		t.err = err
	}()
}

// reapLocked moves finished jobs from running to completed.
func (q *Queue) reapLocked() {
	still := q.running[:0]
	for _, t := range q.running {
		if t.alive() {
			still = append(still, t)
			continue
		}
		q.completed = append(q.completed, t)
	}
	q.running = still
}

func (q *Queue) cancelQueuedLocked(err error) {
	for _, t := range q.queued {
		t.exitCode = 1
		t.err = fmt.Errorf("not started: %w", err)
		close(t.done)
		q.completed = append(q.completed, t)
	}
	q.queued = nil
}

func (q *Queue) statusLocked() Status {
	return Status{
		Completed: len(q.completed),
		Running:   len(q.running),
		Queued:    len(q.queued),
	}
}

// collect pulls every value currently buffered on the results channel.
func (q *Queue) collect(results map[string]*Result) {
	for {
		select {
		case e := <-q.results:
			results[e.host].Value = e.value
		default:
			return
		}
	}
}

func summarize(completed []*task, elapsed time.Duration) Summary {
	s := Summary{Elapsed: elapsed}
	for _, t := range completed {
		if t.exitCode == 0 {
			s.OK++
			continue
		}
		s.Errors++
		s.Failed = append(s.Failed, t.job.Host)
	}
	sort.Strings(s.Failed)
	return s
}

// MaxExitCode is the largest exit status a process can report.
const MaxExitCode = 255

// ExitCode maps a job error onto an exit code: 0 for nil, the error's own
// ExitCode() when it has a non-zero one, 1 otherwise. Codes above
// MaxExitCode are clamped so they never wrap around to success.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		if code := coder.ExitCode(); code != 0 {
			return min(code, MaxExitCode)
		}
	}
	return 1
}
