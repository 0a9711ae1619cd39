package provisioning

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/imamik/fleetctl/internal/platform/inventory"
	"github.com/imamik/fleetctl/internal/reservation"
	"github.com/imamik/fleetctl/internal/util/ptr"
)

// RebuildOptions configures a single host rebuild.
type RebuildOptions struct {
	// Profile moves the host to this profile and its operating system.
	// Empty keeps the current one.
	Profile string
	// Reason defaults to DefaultRebuildReason.
	Reason string
	// Wait blocks until the host is built or Timeout runs out.
	Wait bool
	// Reserve reserves the host first if nobody holds it.
	Reserve bool
	// Release frees the host once done.
	Release bool
	// Timeout is the build budget in poll intervals.
	Timeout int
}

// Rebuild marks host as building, applies the profile, reboots it into the
// installer and optionally waits for the build and releases the host.
func (o *Orchestrator) Rebuild(ctx context.Context, host string, opts RebuildOptions) (err error) {
	logger := logr.FromContextOrDiscard(ctx).WithValues("host", host)
	defer func() {
		switch {
		case err == nil:
			o.metrics.Rebuild("ok")
		case IsBuildTimeout(err):
			o.metrics.Rebuild("timeout")
		default:
			o.metrics.Rebuild("failed")
		}
	}()

	reason := opts.Reason
	if reason == "" {
		reason = DefaultRebuildReason
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultBuildTimeout
	}

	update := inventory.HostUpdate{Build: ptr.Bool(true)}
	if opts.Profile != "" {
		group, err := o.resolveProfile(ctx, opts.Profile)
		if err != nil {
			return err
		}
		update.HostgroupID = ptr.Int(group.ID)
		update.OperatingSystemID = ptr.Int(group.OperatingSystemID)
	}

	query := inventory.HostsQuery(host)
	building := o.engine.Stamp(reservation.WithTag(reservation.TagBuilding, reason))
	updated, err := o.inventory.UpdateReason(ctx, query, building)
	if err != nil {
		return fmt.Errorf("failed to mark %s as building: %w", host, err)
	}
	if len(updated) == 0 && opts.Reserve {
		logger.Info("host not reserved yet, reserving it")
		if _, err := o.inventory.Reserve(ctx, query, 1, building); err != nil {
			return fmt.Errorf("failed to reserve %s: %w", host, err)
		}
	}

	if _, err := o.inventory.UpdateHost(ctx, host, update); err != nil {
		return fmt.Errorf("failed to enable build for %s: %w", host, err)
	}

	logger.Info("rebooting host")
	if err := o.remote.Reboot(ctx, host); err != nil {
		return fmt.Errorf("unable to reboot host %s: %w", host, err)
	}
	if err := o.clock.Sleep(ctx, o.rebootSettle); err != nil {
		return err
	}

	if opts.Wait {
		if err := o.WaitForHostBuilt(ctx, host, opts.Timeout); err != nil {
			return err
		}
	}

	if opts.Release {
		if _, err := o.inventory.Release(ctx, query); err != nil {
			return fmt.Errorf("failed to release %s: %w", host, err)
		}
	}
	return nil
}
