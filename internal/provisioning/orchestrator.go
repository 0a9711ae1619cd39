package provisioning

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"

	"github.com/imamik/fleetctl/internal/metrics"
	"github.com/imamik/fleetctl/internal/platform/inventory"
	"github.com/imamik/fleetctl/internal/reservation"
	"github.com/imamik/fleetctl/internal/util/async"
	"github.com/imamik/fleetctl/internal/util/clock"
)

const (
	// DefaultPollInterval is the pause between two build status checks.
	DefaultPollInterval = time.Minute
	// DefaultBuildTimeout is the rebuild budget in poll intervals.
	DefaultBuildTimeout = 120
	// DefaultRebuildReason is used when a rebuild is given no reason.
	DefaultRebuildReason = "RESERVED"

	defaultRebootSettle = 5 * time.Second
	defaultPageSize     = 999
)

// Remote is the remote execution the orchestrator needs.
type Remote interface {
	Probe(ctx context.Context, host, command string) (bool, error)
	Reboot(ctx context.Context, host string) error
}

// Uploader stores artifacts in object storage.
type Uploader interface {
	Upload(ctx context.Context, location string, data []byte) error
}

// Request describes one provisioning run.
type Request struct {
	// Profile is the target profile, with or without the profile prefix.
	Profile string
	// Query narrows the hosts considered, in addition to the profile.
	Query  string
	Amount int

	// ChangeProfile allows reserving hosts of other provisionable
	// profiles and rebuilding them into Profile.
	ChangeProfile bool
	// ForceRebuild rebuilds the hosts even when they already have Profile.
	ForceRebuild bool

	Reason string
	AddTag bool

	Tries    int
	Interval time.Duration
	// BuildTimeout is the rebuild budget in poll intervals (minutes by default).
	BuildTimeout int

	// Outfile receives the comma-separated host names on success. It may
	// be a local path or an "s3://bucket/key" location.
	Outfile string
}

// Result is the outcome of a provisioning run.
type Result struct {
	// Hosts holds the provisioned hosts. It is empty after a build timeout.
	Hosts []inventory.Host
	// Profile is the resolved profile name.
	Profile string
	// Rebuilt is set when the hosts were rebuilt.
	Rebuilt bool
	// TimedOut lists hosts that were not built in time.
	TimedOut []string
	// Jobs holds the per-host rebuild outcome.
	Jobs map[string]*async.Result
}

// Orchestrator provisions hosts.
type Orchestrator struct {
	inventory inventory.API
	remote    Remote
	engine    *reservation.Engine

	clock        clock.Clock
	metrics      *metrics.Recorder
	uploader     Uploader
	reporter     async.Reporter
	prefix       string
	pageSize     int
	pollInterval time.Duration
	rebootSettle time.Duration
	probeCommand string
	engineOpts   []reservation.Option
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock sets the clock used for polls, pauses and stamps.
func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) {
		o.clock = c
		o.engineOpts = append(o.engineOpts, reservation.WithClock(c))
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(o *Orchestrator) {
		o.metrics = m
		o.engineOpts = append(o.engineOpts, reservation.WithMetrics(m))
	}
}

// WithOrigin sets the "user@machine" written into reason stamps.
func WithOrigin(origin string) Option {
	return func(o *Orchestrator) {
		o.engineOpts = append(o.engineOpts, reservation.WithOrigin(origin))
	}
}

// WithProbeCommand sets the command that decides whether a host is up,
// both after reservation and while waiting for a build.
func WithProbeCommand(cmd string) Option {
	return func(o *Orchestrator) {
		o.probeCommand = cmd
		o.engineOpts = append(o.engineOpts, reservation.WithProbeCommand(cmd))
	}
}

// WithProfilePrefix sets the prefix shared by all provisionable profiles.
func WithProfilePrefix(prefix string) Option {
	return func(o *Orchestrator) {
		o.prefix = prefix
	}
}

// WithPageSize sets the page size used when listing profiles.
func WithPageSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

// WithPollInterval sets the pause between build status checks.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithRebootSettle sets the pause after a reboot was issued.
func WithRebootSettle(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.rebootSettle = d
	}
}

// WithUploader enables "s3://" outfile locations.
func WithUploader(u Uploader) Option {
	return func(o *Orchestrator) {
		o.uploader = u
	}
}

// WithReporter receives the status of concurrent rebuilds.
func WithReporter(r async.Reporter) Option {
	return func(o *Orchestrator) {
		o.reporter = r
	}
}

// NewOrchestrator creates an Orchestrator. remote also probes hosts for
// the reservation engine.
func NewOrchestrator(inv inventory.API, remote Remote, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		inventory:    inv,
		remote:       remote,
		clock:        clock.Real(),
		pageSize:     defaultPageSize,
		pollInterval: DefaultPollInterval,
		rebootSettle: defaultRebootSettle,
	}
	for _, opt := range opts {
		opt(o)
	}
	var prober reservation.Prober
	if remote != nil {
		prober = remote
	}
	o.engine = reservation.NewEngine(inv, prober, o.engineOpts...)
	return o
}

// ProfileName adds the profile prefix to profile unless it is already there.
func (o *Orchestrator) ProfileName(profile string) string {
	if profile == "" || strings.HasPrefix(profile, o.prefix) {
		return profile
	}
	return o.prefix + profile
}

// Profiles lists the provisionable profiles sorted by name.
func (o *Orchestrator) Profiles(ctx context.Context) ([]inventory.Hostgroup, error) {
	filter := ""
	if o.prefix != "" {
		filter = o.prefix + "%"
	}
	groups, err := o.inventory.ListHostgroups(ctx, o.pageSize, filter)
	if err != nil {
		return nil, err
	}
	groups = slices.DeleteFunc(groups, func(g inventory.Hostgroup) bool {
		return !strings.HasPrefix(g.Name, o.prefix)
	})
	slices.SortFunc(groups, func(a, b inventory.Hostgroup) int {
		return strings.Compare(a.Name, b.Name)
	})
	return groups, nil
}

// resolveProfile returns the hostgroup named profile (prefix added).
func (o *Orchestrator) resolveProfile(ctx context.Context, profile string) (inventory.Hostgroup, error) {
	name := o.ProfileName(profile)
	groups, err := o.Profiles(ctx)
	if err != nil {
		return inventory.Hostgroup{}, fmt.Errorf("failed to list profiles: %w", err)
	}
	available := make([]string, 0, len(groups))
	for _, g := range groups {
		if g.Name == name {
			return g, nil
		}
		available = append(available, g.Name)
	}
	return inventory.Hostgroup{}, &UnknownProfileError{Profile: name, Available: available}
}

// Provision reserves req.Amount hosts of req.Profile, rebuilding them
// when needed, and writes the final reason.
//
// A zero amount does nothing. A build timeout releases every held host
// and is reported through Result.TimedOut rather than as an error, though
// the provision metrics still count it as a failure. Any
// other failure releases every held host and is returned.
func (o *Orchestrator) Provision(ctx context.Context, req Request) (res *Result, err error) {
	logger := logr.FromContextOrDiscard(ctx).WithValues("profile", req.Profile, "amount", req.Amount)

	if req.Amount == 0 {
		logger.Info("no hosts will be provisioned as amount is 0")
		return &Result{}, nil
	}
	if req.Amount < 0 {
		return nil, reservation.ErrZeroAmount
	}
	if o.prefix == "" {
		return nil, ErrNoProfilePrefix
	}
	if req.BuildTimeout <= 0 {
		req.BuildTimeout = DefaultBuildTimeout
	}

	start := o.clock.Now()
	defer func() {
		outcome := err
		if outcome == nil && res != nil && len(res.TimedOut) > 0 {
			outcome = fmt.Errorf("%w: %v", ErrBuildTimeout, res.TimedOut)
		}
		o.metrics.Operation("provision", start, o.clock.Now(), outcome)
	}()

	tries, err := o.engine.Connect(ctx, req.Tries, req.Interval)
	if err != nil {
		return nil, err
	}

	group, err := o.resolveProfile(ctx, req.Profile)
	if err != nil {
		return nil, err
	}
	res = &Result{Profile: group.Name}
	logger = logger.WithValues("profile", group.Name)

	sameTries, otherTries := splitTries(tries, req.ChangeProfile)

	logger.Info("reserving hosts of the requested profile", "tries", sameTries)
	base := reservation.Request{
		Amount:    req.Amount,
		Interval:  req.Interval,
		EnsureSSH: true,
		Reason:    req.Reason,
		AddTag:    req.AddTag,
		Hold:      true,
	}

	same := base
	same.Query = inventory.And(req.Query, inventory.ProfileQuery(group.Name))
	same.Tries = sameTries
	reserved, err := o.engine.Reserve(ctx, same)
	if err != nil {
		return nil, err
	}
	hosts := reserved.Hosts

	rebuild := req.ForceRebuild
	if len(hosts) == 0 && req.ChangeProfile && otherTries > 0 {
		logger.Info("no free hosts in the profile, looking in other profiles", "tries", otherTries)
		other := base
		other.Query = inventory.And(req.Query, inventory.ProfilePrefixQuery(o.prefix))
		other.Tries = otherTries
		reserved, err := o.engine.Reserve(ctx, other)
		if err != nil {
			return nil, err
		}
		hosts = reserved.Hosts
		rebuild = len(hosts) > 0
	}

	if len(hosts) < req.Amount {
		return nil, &NotEnoughHostsError{Wanted: req.Amount, Profile: group.Name, ChangeProfile: req.ChangeProfile}
	}

	names := inventory.Names(hosts)
	held := true
	defer func() {
		if !held {
			return
		}
		logger.Info("cleaning up, releasing hosts", "hosts", names)
		released, relErr := o.inventory.Release(context.WithoutCancel(ctx), inventory.HostsQuery(names...))
		if relErr != nil {
			err = multierror.Append(err, fmt.Errorf("failed to release hosts %v: %w", names, relErr))
			return
		}
		o.metrics.Hosts(metrics.ActionReleased, len(released))
	}()

	if rebuild {
		logger.Info("rebuilding hosts", "hosts", names)
		res.Rebuilt = true
		jobs, err := o.rebuildAll(ctx, names, group.Name, req)
		res.Jobs = jobs
		if err != nil {
			if IsBuildTimeout(err) {
				res.TimedOut = timedOut(jobs)
				logger.Error(err, "hosts were not built in time", "hosts", res.TimedOut)
				return res, nil
			}
			return res, err
		}
	} else {
		logger.Info("hosts already have the profile, not rebuilding")
	}

	final := req.Reason
	if req.AddTag {
		final = reservation.WithTag(reservation.TagUserReserved, final)
	}
	updated, err := o.inventory.UpdateReason(ctx, inventory.HostsQuery(names...), o.engine.Stamp(final))
	if err != nil {
		return res, fmt.Errorf("failed to write final reason: %w", err)
	}

	if req.Outfile != "" {
		if err := WriteHostList(ctx, req.Outfile, names, o.uploader); err != nil {
			return res, err
		}
	}

	held = false
	if len(updated) == len(hosts) {
		hosts = updated
	}
	res.Hosts = hosts
	logger.Info("hosts provisioned", "hosts", names)
	return res, nil
}

// rebuildAll rebuilds hosts concurrently. A build timeout on any host is
// returned as ErrBuildTimeout unless another host failed for another reason.
func (o *Orchestrator) rebuildAll(ctx context.Context, names []string, profile string, req Request) (map[string]*async.Result, error) {
	var opts []async.Option
	if o.reporter != nil {
		opts = append(opts, async.WithReporter(o.reporter))
	}
	queue := async.NewQueue(len(names), opts...)
	for _, name := range names {
		if err := queue.Add(async.Job{
			Host: name,
			Run: func(ctx context.Context, host string, _ func(any)) error {
				return o.Rebuild(ctx, host, RebuildOptions{
					Profile: profile,
					Reason:  reservation.WithTag(reservation.TagProvisioning, req.Reason),
					Wait:    true,
					Reserve: true,
					Timeout: req.BuildTimeout,
				})
			},
		}); err != nil {
			return nil, err
		}
	}
	queue.Close()

	results, runErr := queue.Run(ctx)
	if runErr != nil {
		return results, runErr
	}

	var failed, late []string
	for _, name := range names {
		r := results[name]
		o.metrics.Job(r.ExitCode)
		switch {
		case r.ExitCode == 0:
		case IsBuildTimeout(r.Err):
			late = append(late, name)
		default:
			failed = append(failed, name)
		}
	}
	switch {
	case len(failed) > 0:
		var errs *multierror.Error
		for _, name := range failed {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", name, results[name].Err))
		}
		return results, fmt.Errorf("%w: %v: %w", ErrRebuildFailed, failed, errs.ErrorOrNil())
	case len(late) > 0:
		return results, fmt.Errorf("%w: %v", ErrBuildTimeout, late)
	}
	return results, nil
}

// splitTries gives a tenth of tries, at least one, to the requested
// profile when other profiles may be searched too.
func splitTries(tries int, changeProfile bool) (same, other int) {
	if !changeProfile {
		return tries, 0
	}
	same = max(tries/10, 1)
	return same, max(tries-same, 0)
}

func timedOut(jobs map[string]*async.Result) []string {
	var names []string
	for name, r := range jobs {
		if r != nil && errors.Is(r.Err, ErrBuildTimeout) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}
