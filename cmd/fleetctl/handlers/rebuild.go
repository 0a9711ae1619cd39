package handlers

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/imamik/fleetctl/internal/provisioning"
	"github.com/imamik/fleetctl/internal/ui"
	"github.com/imamik/fleetctl/internal/util/async"
)

// RebuildOptions are the rebuild command options.
type RebuildOptions struct {
	Target  Target
	Profile string
	Reason  string
	Wait    bool
	Reserve bool
	Release bool
	// Timeout is in minutes and defaults to the configured value.
	Timeout int
}

// Rebuild reinstalls the selected hosts in parallel.
func Rebuild(ctx context.Context, g Globals, opts RebuildOptions) error {
	ctx, s, err := open(ctx, g, "rebuild")
	if err != nil {
		return err
	}
	return s.finish(s.rebuild(ctx, opts))
}

func (s *session) rebuild(ctx context.Context, opts RebuildOptions) error {
	names, err := s.resolveNames(ctx, opts.Target)
	if err != nil {
		return err
	}
	remote, err := s.remoteExec()
	if err != nil {
		return err
	}
	orch := s.orchestrator(remote)

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = s.cfg.Reservation.BuildTimeoutMinutes
	}
	rebuildOpts := provisioning.RebuildOptions{
		Profile: opts.Profile,
		Reason:  opts.Reason,
		Wait:    opts.Wait,
		Reserve: opts.Reserve,
		Release: opts.Release,
		Timeout: timeout,
	}
	return s.runJobs(ctx, names, len(names), func(ctx context.Context, host string, _ func(any)) error {
		return orch.Rebuild(ctx, host, rebuildOpts)
	})
}

// WaitForBuild waits until the selected hosts are built and reachable.
func WaitForBuild(ctx context.Context, g Globals, target Target, timeout int) error {
	ctx, s, err := open(ctx, g, "wait-for-build")
	if err != nil {
		return err
	}
	return s.finish(s.waitForBuild(ctx, target, timeout))
}

func (s *session) waitForBuild(ctx context.Context, target Target, timeout int) error {
	names, err := s.resolveNames(ctx, target)
	if err != nil {
		return err
	}
	remote, err := s.remoteExec()
	if err != nil {
		return err
	}
	orch := s.orchestrator(remote)
	return s.runJobs(ctx, names, len(names), func(ctx context.Context, host string, emit func(any)) error {
		if err := orch.WaitForHostBuilt(ctx, host, timeout); err != nil {
			return err
		}
		emit(provisioning.Done.String())
		return nil
	})
}

// runJobs runs fn for every host on the job queue, prints the per-host
// outcome and turns failed jobs into a JobsFailedError.
func (s *session) runJobs(ctx context.Context, hosts []string, parallel int,
	fn func(ctx context.Context, host string, emit func(any)) error) error {
	queue := async.NewQueue(parallel, async.WithReporter(ui.NewStatusReporter(stderr)))
	for _, host := range hosts {
		if err := queue.Add(async.Job{Host: host, Run: fn}); err != nil {
			return fmt.Errorf("failed to queue %s: %w", host, err)
		}
	}
	queue.Close()

	results, runErr := queue.Run(ctx)
	if err := ui.ResultTable(stdout, results); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}

	var failed []string
	for _, host := range slices.Sorted(maps.Keys(results)) {
		r := results[host]
		s.metrics.Job(r.ExitCode)
		if r.ExitCode != 0 {
			s.logger.Error(r.Err, "job failed", "host", host, "exitCode", r.ExitCode)
			failed = append(failed, host)
		}
	}
	if len(failed) > 0 {
		return &JobsFailedError{Hosts: failed}
	}
	return nil
}
