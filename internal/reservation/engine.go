package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"

	"github.com/imamik/fleetctl/internal/metrics"
	"github.com/imamik/fleetctl/internal/platform/inventory"
	"github.com/imamik/fleetctl/internal/util/async"
	"github.com/imamik/fleetctl/internal/util/clock"
)

var (
	// ErrZeroAmount guards against reserving every matching host.
	ErrZeroAmount = errors.New("refusing to reserve all matching hosts, set an amount greater than zero")
	// ErrInventoryUnreachable is returned when the try budget ran out before
	// the Inventory Service answered.
	ErrInventoryUnreachable = errors.New("inventory service unreachable")
)

// Inventory is the part of the Inventory Service the engine needs.
type Inventory interface {
	Ping(ctx context.Context) error
	inventory.Reserver
}

// Prober checks whether a host answers over SSH.
type Prober interface {
	Probe(ctx context.Context, host, command string) (bool, error)
}

// Request describes one reservation.
type Request struct {
	Query  string
	Amount int

	// Tries is the round budget, shared with the connection retries.
	Tries int
	// Interval is the pause between rounds and between connection retries.
	Interval time.Duration

	// EnsureSSH probes every reserved host and keeps only reachable ones.
	EnsureSSH bool

	Reason string
	// AddTag marks the reservation as manual with [USER_RESERVED].
	AddTag bool
	// Hold keeps the [QUEUED] tag on the returned hosts. The caller is
	// expected to write the final reason once its own work is done.
	Hold bool
}

// Result is the outcome of a reservation.
type Result struct {
	// Hosts is empty unless exactly Amount hosts were obtained.
	Hosts []inventory.Host
	// Unavailable lists hosts that failed their probe.
	Unavailable []string
	// Rounds is the number of reservation rounds run.
	Rounds int
}

// Engine reserves hosts.
type Engine struct {
	inventory    Inventory
	prober       Prober
	clock        clock.Clock
	metrics      *metrics.Recorder
	origin       string
	probeCommand string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for stamps and pauses.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithOrigin sets the "user@machine" written into reason stamps.
func WithOrigin(origin string) Option {
	return func(e *Engine) {
		e.origin = origin
	}
}

// WithProbeCommand sets the command used to probe hosts.
func WithProbeCommand(cmd string) Option {
	return func(e *Engine) {
		e.probeCommand = cmd
	}
}

// NewEngine creates an Engine. prober may be nil when EnsureSSH is never used.
func NewEngine(inv Inventory, prober Prober, opts ...Option) *Engine {
	e := &Engine{
		inventory: inv,
		prober:    prober,
		clock:     clock.Real(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.origin == "" {
		e.origin = Origin()
	}
	return e
}

// Stamp stamps msg with the engine's clock and origin.
func (e *Engine) Stamp(msg string) string {
	return Stamp(e.clock.Now(), e.origin, msg)
}

// hostSets tracks every host touched by one Reserve call.
type hostSets struct {
	up        []inventory.Host
	down      []inventory.Host
	toExplore []inventory.Host
}

// Reserve obtains exactly req.Amount hosts or none.
//
// A missed target is not an error: the result simply holds no hosts. Errors
// are returned for invalid requests, an unreachable Inventory Service and
// unexpected failures. Cleanup runs in every case, also after ctx is
// cancelled, and its failures are joined to the returned error.
func (e *Engine) Reserve(ctx context.Context, req Request) (res *Result, err error) {
	if req.Amount <= 0 {
		return nil, ErrZeroAmount
	}
	if req.EnsureSSH && e.prober == nil {
		return nil, fmt.Errorf("ensure ssh requested without a prober")
	}

	logger := logr.FromContextOrDiscard(ctx).WithValues("query", req.Query, "amount", req.Amount)

	reason := req.Reason
	if req.AddTag {
		reason = WithTag(TagUserReserved, reason)
	}

	tries, err := e.Connect(ctx, req.Tries, req.Interval)
	if err != nil {
		return nil, err
	}
	queued := WithTag(TagQueued, reason)
	final := reason
	if req.Hold {
		final = queued
	}

	res = &Result{}
	var sets hostSets
	defer func() {
		hosts, cleanupErr := e.finish(context.WithoutCancel(ctx), logger, req.Amount, reason, final, &sets, res)
		res.Hosts = hosts
		if err != nil {
			logger.Error(err, "reservation failed")
		}
		if cleanupErr != nil {
			err = multierror.Append(err, cleanupErr)
		}
	}()

	for len(sets.up) < req.Amount && tries > 0 {
		logger.Info("trying to get enough hosts",
			"have", len(sets.up), "triesLeft", tries, "interval", req.Interval)
		tries--
		res.Rounds++
		e.metrics.ReserveRound()

		hosts, err := e.inventory.Reserve(ctx, req.Query, req.Amount-len(sets.up), e.Stamp(queued))
		switch {
		case err == nil:
		case inventory.IsUnacceptable(err):
			hosts = nil
		case inventory.IsTransient(err):
			logger.Error(err, "reservation round failed, counting it as empty")
			hosts = nil
		default:
			return res, fmt.Errorf("failed to reserve hosts: %w", err)
		}
		e.metrics.Hosts(metrics.ActionReserved, len(hosts))

		if req.EnsureSSH {
			sets.toExplore = append(sets.toExplore, hosts...)
			if err := e.probe(ctx, logger, &sets); err != nil {
				return res, err
			}
		} else {
			sets.up = append(sets.up, hosts...)
		}

		if len(sets.up) < req.Amount && tries > 0 {
			if err := e.clock.Sleep(ctx, req.Interval); err != nil {
				return res, err
			}
		}
	}

	return res, nil
}

// Connect pings the Inventory Service until it answers, spending one of
// tries per transient failure and pausing interval in between. It returns
// the tries left.
func (e *Engine) Connect(ctx context.Context, tries int, interval time.Duration) (int, error) {
	logger := logr.FromContextOrDiscard(ctx)
	attempts := 0
	for {
		attempts++
		err := e.inventory.Ping(ctx)
		if err == nil {
			return tries, nil
		}
		if !inventory.IsTransient(err) {
			return tries, fmt.Errorf("failed to connect to inventory: %w", err)
		}

		tries--
		if tries <= 0 {
			return 0, fmt.Errorf("%w after %d attempts: %w", ErrInventoryUnreachable, attempts, err)
		}
		logger.Error(err, "failed to connect to inventory, retrying", "retryIn", interval, "triesLeft", tries)
		if err := e.clock.Sleep(ctx, interval); err != nil {
			return tries, err
		}
	}
}

// probe checks every host in sets.toExplore concurrently and moves each
// one to up or down. Hosts whose probe failed unexpectedly stay in toExplore.
func (e *Engine) probe(ctx context.Context, logger logr.Logger, sets *hostSets) error {
	if len(sets.toExplore) == 0 {
		return nil
	}

	queue := async.NewQueue(len(sets.toExplore))
	for _, h := range sets.toExplore {
		if err := queue.Add(async.Job{
			Host: h.Name,
			Run: func(ctx context.Context, host string, emit func(any)) error {
				up, err := e.prober.Probe(ctx, host, e.probeCommand)
				if err != nil {
					return err
				}
				emit(up)
				return nil
			},
		}); err != nil {
			return err
		}
	}
	queue.Close()

	results, runErr := queue.Run(ctx)

	var remaining []inventory.Host
	var probeErr error
	for _, h := range sets.toExplore {
		r := results[h.Name]
		if r == nil || r.ExitCode != 0 {
			remaining = append(remaining, h)
			if r != nil && r.Err != nil && probeErr == nil {
				probeErr = fmt.Errorf("probe %s: %w", h.Name, r.Err)
			}
			continue
		}
		up, _ := r.Value.(bool)
		e.metrics.Probe(up)
		if up {
			logger.Info("host is up and running", "host", h.Name)
			sets.up = append(sets.up, h)
		} else {
			logger.Info("host is unavailable", "host", h.Name)
			sets.down = append(sets.down, h)
		}
	}
	sets.toExplore = remaining

	if runErr != nil {
		return runErr
	}
	return probeErr
}

// finish tags unavailable hosts and either rolls everything back or
// writes the final reason. It returns the hosts handed to the caller.
func (e *Engine) finish(ctx context.Context, logger logr.Logger, amount int, reason, final string, sets *hostSets, res *Result) ([]inventory.Host, error) {
	var errs *multierror.Error

	if len(sets.down) > 0 {
		names := inventory.Names(sets.down)
		res.Unavailable = names
		logger.Info("removing unavailable hosts from the pool", "hosts", names)
		if _, err := e.inventory.UpdateReason(ctx, inventory.HostsQuery(names...), e.Stamp(WithTag(TagUnavailable, reason))); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("failed to tag unavailable hosts: %w", err))
		}
		e.metrics.Hosts(metrics.ActionUnavailable, len(names))
	}

	if len(sets.up) < amount {
		logger.Info("not enough hosts available", "have", len(sets.up))
		touched := make([]inventory.Host, 0, len(sets.toExplore)+len(sets.up)+len(sets.down))
		touched = append(touched, sets.toExplore...)
		touched = append(touched, sets.up...)
		touched = append(touched, sets.down...)
		if err := e.release(ctx, logger, touched); err != nil {
			errs = multierror.Append(errs, err)
		}
		return nil, errs.ErrorOrNil()
	}

	// The inventory may hand out more hosts than asked for.
	if len(sets.up) > amount {
		excess := sets.up[amount:]
		sets.up = sets.up[:amount:amount]
		logger.Info("releasing excess hosts", "hosts", inventory.Names(excess))
		if err := e.release(ctx, logger, excess); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	names := inventory.Names(sets.up)
	updated, err := e.inventory.UpdateReason(ctx, inventory.HostsQuery(names...), e.Stamp(final))
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("failed to write final reason: %w", err))
		if relErr := e.release(ctx, logger, sets.up); relErr != nil {
			errs = multierror.Append(errs, relErr)
		}
		return nil, errs.ErrorOrNil()
	}

	logger.Info("hosts reserved", "hosts", names)
	if len(updated) == len(sets.up) {
		return updated, errs.ErrorOrNil()
	}
	return sets.up, errs.ErrorOrNil()
}

func (e *Engine) release(ctx context.Context, logger logr.Logger, hosts []inventory.Host) error {
	if len(hosts) == 0 {
		return nil
	}
	names := inventory.Names(hosts)
	logger.Info("releasing hosts", "hosts", names)
	released, err := e.inventory.Release(ctx, inventory.HostsQuery(names...))
	if err != nil {
		return fmt.Errorf("failed to release hosts %v: %w", names, err)
	}
	e.metrics.Hosts(metrics.ActionReleased, len(released))
	return nil
}
