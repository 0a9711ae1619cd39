package provisioning

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/imamik/fleetctl/internal/platform/inventory"
)

// BuildState is the progress of a host rebuild as seen from outside.
type BuildState int

const (
	// BuildingUnreachable means the inventory still reports the build flag.
	BuildingUnreachable BuildState = iota
	// BuildingReachableCheckPending means the build flag is cleared but
	// the host does not answer yet.
	BuildingReachableCheckPending
	// Done means the build flag is cleared and the host answers.
	Done
)

func (s BuildState) String() string {
	switch s {
	case BuildingUnreachable:
		return "building"
	case BuildingReachableCheckPending:
		return "waiting for ssh"
	case Done:
		return "done"
	}
	return fmt.Sprintf("BuildState(%d)", int(s))
}

// WaitForHostBuilt checks host once per poll interval until it is Done,
// for at most polls checks. It returns ErrBuildTimeout once the budget of
// polls intervals is spent, never earlier.
func (o *Orchestrator) WaitForHostBuilt(ctx context.Context, host string, polls int) error {
	logger := logr.FromContextOrDiscard(ctx).WithValues("host", host)
	logger.Info("waiting for host to be built", "timeout", polls, "interval", o.pollInterval)

	last := BuildState(-1)
	for range polls {
		state, err := o.BuildStatus(ctx, host)
		switch {
		case err == nil:
		case inventory.IsTransient(err):
			logger.Error(err, "failed to check build status, retrying")
			state = last
		default:
			return err
		}

		if state == Done {
			logger.Info("host done")
			return nil
		}
		if state != last && state >= 0 {
			logger.Info("host not ready", "state", state.String())
			last = state
		}

		if err := o.clock.Sleep(ctx, o.pollInterval); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: host %s after %d checks", ErrBuildTimeout, host, polls)
}

// BuildStatus reports the build state of host. The host is only probed
// once the inventory has cleared its build flag.
func (o *Orchestrator) BuildStatus(ctx context.Context, host string) (BuildState, error) {
	h, err := o.inventory.GetHost(ctx, host)
	if err != nil {
		return BuildingUnreachable, fmt.Errorf("failed to get host %s: %w", host, err)
	}
	if h.Build {
		return BuildingUnreachable, nil
	}
	up, err := o.remote.Probe(ctx, host, o.probeCommand)
	if err != nil {
		return BuildingReachableCheckPending, fmt.Errorf("failed to probe %s: %w", host, err)
	}
	if !up {
		return BuildingReachableCheckPending, nil
	}
	return Done, nil
}
