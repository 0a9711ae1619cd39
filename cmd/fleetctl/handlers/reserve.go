package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/imamik/fleetctl/internal/metrics"
	"github.com/imamik/fleetctl/internal/platform/inventory"
	"github.com/imamik/fleetctl/internal/reservation"
	"github.com/imamik/fleetctl/internal/ui"
)

// ReserveOptions are the reserve command options.
type ReserveOptions struct {
	Target Target
	// Amount defaults to the number of hosts named in Target.
	Amount int
	Reason string
	// Tries and Interval default to the configured values when zero.
	Tries     int
	Interval  time.Duration
	EnsureSSH bool
	AddTag    bool
}

// Reserve reserves exactly opts.Amount hosts and prints them.
func Reserve(ctx context.Context, g Globals, opts ReserveOptions) error {
	ctx, s, err := open(ctx, g, "reserve")
	if err != nil {
		return err
	}
	return s.finish(s.reserve(ctx, opts))
}

func (s *session) reserve(ctx context.Context, opts ReserveOptions) error {
	names, err := opts.Target.Names()
	if err != nil {
		return err
	}
	query := inventory.And(inventory.HostsQuery(names...), opts.Target.Search)

	amount := opts.Amount
	if amount == 0 {
		amount = len(names)
	}
	tries := opts.Tries
	if tries == 0 {
		tries = s.cfg.Reservation.Tries
	}
	interval := opts.Interval
	if interval == 0 {
		interval = s.cfg.Reservation.Interval
	}

	var prober reservation.Prober
	if opts.EnsureSSH {
		remote, err := s.remoteExec()
		if err != nil {
			return err
		}
		prober = remote
	}
	engine := reservation.NewEngine(s.inv, prober,
		reservation.WithClock(s.clock),
		reservation.WithMetrics(s.metrics),
		reservation.WithProbeCommand(s.cfg.SSH.ProbeCommand),
	)

	res, err := engine.Reserve(ctx, reservation.Request{
		Query:     query,
		Amount:    amount,
		Tries:     tries,
		Interval:  interval,
		EnsureSSH: opts.EnsureSSH,
		Reason:    opts.Reason,
		AddTag:    opts.AddTag,
	})
	if err != nil {
		return err
	}
	if len(res.Hosts) == 0 {
		return fmt.Errorf("%w: wanted %d host(s) matching %q after %d round(s)",
			ErrReservationFailed, amount, query, res.Rounds)
	}

	hosts := res.Hosts
	s.nameProfiles(ctx, hosts)
	return ui.HostTable(stdout, hosts, ui.TableOptions{})
}

// Release frees the selected hosts. An empty target releases every host and
// needs confirmation unless force is set.
func Release(ctx context.Context, g Globals, target Target, force bool) error {
	if target.Empty() && !force {
		ok, interactive, err := confirm("This will release all the hosts, are you sure?")
		switch {
		case err != nil:
			return err
		case !interactive:
			return ErrConfirmationRequired
		case !ok:
			return ErrAborted
		}
	}

	ctx, s, err := open(ctx, g, "release")
	if err != nil {
		return err
	}
	return s.finish(s.release(ctx, target))
}

func (s *session) release(ctx context.Context, target Target) error {
	query, err := target.Query()
	if err != nil {
		return err
	}
	s.logger.Info("releasing hosts", "query", query)
	released, err := s.inv.Release(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to release hosts: %w", err)
	}
	s.metrics.Hosts(metrics.ActionReleased, len(released))
	if len(released) == 0 {
		_, err = fmt.Fprintln(stdout, "No hosts released")
		return err
	}
	for _, name := range released {
		if _, err := fmt.Fprintln(stdout, name); err != nil {
			return err
		}
	}
	return nil
}

// UpdateReasonOptions are the update-reason command options.
type UpdateReasonOptions struct {
	Target Target
	Reason string
	// AddTimestamp stamps the reason with the time and origin.
	AddTimestamp bool
	// AddTag marks the reservation as manual.
	AddTag bool
}

// UpdateReason rewrites the reason of the selected reserved hosts.
func UpdateReason(ctx context.Context, g Globals, opts UpdateReasonOptions) error {
	ctx, s, err := open(ctx, g, "update-reason")
	if err != nil {
		return err
	}
	return s.finish(s.updateReason(ctx, opts))
}

func (s *session) updateReason(ctx context.Context, opts UpdateReasonOptions) error {
	query, err := opts.Target.Query()
	if err != nil {
		return err
	}
	reason := opts.Reason
	if opts.AddTag {
		reason = reservation.WithTag(reservation.TagUserReserved, reason)
	}
	if opts.AddTimestamp {
		reason = reservation.Stamp(s.clock.Now(), reservation.Origin(), reason)
	}

	s.logger.Info("updating reason", "query", query, "reason", reason)
	hosts, err := s.inv.UpdateReason(ctx, query, reason)
	if err != nil {
		return fmt.Errorf("failed to update reason: %w", err)
	}
	s.nameProfiles(ctx, hosts)
	return ui.HostTable(stdout, hosts, ui.TableOptions{})
}

// nameProfiles fills in profile names. A failed lookup only costs the
// names, so it is logged and ignored.
func (s *session) nameProfiles(ctx context.Context, hosts []inventory.Host) {
	if len(hosts) == 0 {
		return
	}
	groups, err := s.inv.ListHostgroups(ctx, s.cfg.Inventory.PageSize, "")
	if err != nil {
		s.logger.V(1).Info("could not list profiles", "error", err.Error())
		return
	}
	inventory.NameHostgroups(hosts, groups)
}
