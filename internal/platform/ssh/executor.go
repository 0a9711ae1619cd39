package ssh

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/fleetctl/internal/util/clock"
	"github.com/imamik/fleetctl/internal/util/retry"
)

const (
	// DefaultProbeCommand is run by Probe when no command is given.
	DefaultProbeCommand = "uptime"

	defaultCommandTimeout = 60 * time.Second
	rebootCommand         = "reboot"
)

// Output is the result of a remote command.
type Output struct {
	Host       string
	Output     string
	ExitStatus int
}

// Executor runs commands on hosts, pooling one idle connection per host.
type Executor struct {
	dialer         Dialer
	logger         logr.Logger
	commandTimeout time.Duration
	dialRetries    int
	clock          clock.Clock

	mu         sync.Mutex
	generation uint64
	idle       map[string]*pooledConn
}

type pooledConn struct {
	Conn
	generation uint64
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the logger.
func WithLogger(l logr.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithCommandTimeout bounds every command, including connection setup.
func WithCommandTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.commandTimeout = d
		}
	}
}

// WithDialRetries retries failed dials with exponential backoff.
func WithDialRetries(n int) ExecutorOption {
	return func(e *Executor) {
		e.dialRetries = n
	}
}

// WithClock sets the clock used between dial retries.
func WithClock(c clock.Clock) ExecutorOption {
	return func(e *Executor) {
		e.clock = c
	}
}

// NewExecutor creates an Executor using dialer for new connections.
func NewExecutor(dialer Dialer, opts ...ExecutorOption) *Executor {
	e := &Executor{
		dialer:         dialer,
		logger:         logr.Discard(),
		commandTimeout: defaultCommandTimeout,
		clock:          clock.Real(),
		idle:           make(map[string]*pooledConn),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes command on host and returns its output. A non-zero exit
// returns the output together with an *ExitError.
func (e *Executor) Run(ctx context.Context, host, command string) (Output, error) {
	return e.run(ctx, host, command, false)
}

// Probe reports whether host answers command (DefaultProbeCommand if empty).
//
// Unreachable hosts, broken connections, timeouts and failing commands
// are reported as false with a nil error. A broken connection also resets
// the pool. Cancellation of ctx and unexpected failures return an error.
func (e *Executor) Probe(ctx context.Context, host, command string) (bool, error) {
	if command == "" {
		command = DefaultProbeCommand
	}

	_, err := e.run(ctx, host, command, true)
	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case errors.Is(err, ErrTransport):
		e.logger.Info("connection broke during probe, resetting connections", "host", host, "error", err.Error())
		e.Reset()
		return false, nil
	case errors.Is(err, ErrDial), errors.Is(err, ErrCommandTimeout), IsExitError(err):
		e.logger.V(1).Info("probe failed", "host", host, "error", err.Error())
		return false, nil
	default:
		return false, err
	}
}

// Reboot issues a reboot on host. The connection dropping while the
// command runs is expected and not an error. The host's pooled
// connection is discarded afterwards.
func (e *Executor) Reboot(ctx context.Context, host string) error {
	_, err := e.run(ctx, host, rebootCommand, false)
	e.Forget(host)

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, ErrTransport), errors.Is(err, ErrCommandTimeout):
		e.logger.V(1).Info("connection dropped after reboot", "host", host)
		return nil
	default:
		return fmt.Errorf("reboot %s: %w", host, err)
	}
}

// Reset closes every idle connection and marks in-flight ones stale, so
// they are closed instead of pooled when their command finishes.
func (e *Executor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.generation++
	for host, pc := range e.idle {
		_ = pc.Close()
		delete(e.idle, host)
	}
}

// Forget closes the idle connection to host, if any.
func (e *Executor) Forget(host string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if pc, ok := e.idle[host]; ok {
		_ = pc.Close()
		delete(e.idle, host)
	}
}

// Close releases all pooled connections.
func (e *Executor) Close() error {
	e.Reset()
	return nil
}

func (e *Executor) run(ctx context.Context, host, command string, quiet bool) (Output, error) {
	out := Output{Host: host, ExitStatus: -1}

	callCtx, cancel := context.WithTimeout(ctx, e.commandTimeout)
	defer cancel()

	pc, err := e.acquire(callCtx, host)
	if err != nil {
		return out, e.timeoutOr(ctx, callCtx, err)
	}

	raw, err := pc.Run(callCtx, command)
	out.Output = string(raw)
	e.release(host, pc, err != nil && !IsExitError(err))

	if !quiet && out.Output != "" {
		e.logger.V(1).Info("command output", "host", host, "command", command, "output", strings.TrimRight(out.Output, "\n"))
	}

	var exitErr *ExitError
	switch {
	case err == nil:
		out.ExitStatus = 0
		return out, nil
	case errors.As(err, &exitErr):
		out.ExitStatus = exitErr.Status
		return out, fmt.Errorf("command failed on %s: %w", host, err)
	default:
		return out, e.timeoutOr(ctx, callCtx, err)
	}
}

// timeoutOr converts an error caused by the per-command deadline into
// ErrCommandTimeout while leaving cancellation of the parent untouched.
func (e *Executor) timeoutOr(parent, call context.Context, err error) error {
	if parent.Err() == nil && errors.Is(call.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrCommandTimeout, e.commandTimeout, err)
	}
	return err
}

func (e *Executor) acquire(ctx context.Context, host string) (*pooledConn, error) {
	e.mu.Lock()
	if pc, ok := e.idle[host]; ok {
		delete(e.idle, host)
		if pc.generation == e.generation {
			e.mu.Unlock()
			return pc, nil
		}
		_ = pc.Close()
	}
	generation := e.generation
	e.mu.Unlock()

	var conn Conn
	err := retry.WithExponentialBackoff(ctx, func() error {
		var dialErr error
		conn, dialErr = e.dialer.Dial(ctx, host)
		return dialErr
	},
		retry.WithMaxRetries(e.dialRetries),
		retry.WithInitialDelay(time.Second),
		retry.WithMaxDelay(10*time.Second),
		retry.WithRetryIf(func(err error) bool { return errors.Is(err, ErrDial) }),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			e.logger.V(1).Info("retrying ssh dial", "host", host, "attempt", attempt, "delay", delay, "error", err.Error())
		}),
		retry.WithClock(e.clock),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return &pooledConn{Conn: conn, generation: generation}, nil
}

func (e *Executor) release(host string, pc *pooledConn, broken bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if broken || pc.generation != e.generation {
		_ = pc.Close()
		return
	}
	if _, occupied := e.idle[host]; occupied {
		_ = pc.Close()
		return
	}
	e.idle[host] = pc
}
