package handlers

import (
	"context"
	"fmt"
	"slices"

	"github.com/imamik/fleetctl/internal/platform/inventory"
	"github.com/imamik/fleetctl/internal/provisioning"
	"github.com/imamik/fleetctl/internal/reservation"
	"github.com/imamik/fleetctl/internal/ui"
	"github.com/imamik/fleetctl/internal/util/async"
)

// Listing selects what a show command lists.
type Listing string

// Listings.
const (
	ListHosts        Listing = "hosts"
	ListAvailable    Listing = "available"
	ListReserved     Listing = "reserved"
	ListStuck        Listing = "stuck"
	ListUserReserved Listing = "user-reserved"
	ListUnavailable  Listing = "unavailable"
)

// ShowOptions are the options of the host listings.
type ShowOptions struct {
	Target Target
	// Amount limits the available listing. Zero lists all.
	Amount int
}

// Show prints a host listing.
func Show(ctx context.Context, g Globals, what Listing, opts ShowOptions) error {
	ctx, s, err := open(ctx, g, "show-"+string(what))
	if err != nil {
		return err
	}
	return s.finish(s.show(ctx, what, opts))
}

func (s *session) show(ctx context.Context, what Listing, opts ShowOptions) error {
	query, err := opts.Target.Query()
	if err != nil {
		return err
	}

	var hosts []inventory.Host
	switch what {
	case ListHosts:
		hosts, err = s.inv.ListHosts(ctx, query, s.cfg.Inventory.PageSize)
	case ListAvailable:
		hosts, err = s.inv.ListAvailable(ctx, query, opts.Amount)
	case ListReserved, ListStuck, ListUserReserved, ListUnavailable:
		hosts, err = s.inv.ListReserved(ctx, query)
	default:
		return fmt.Errorf("unknown listing %q", what)
	}
	if err != nil {
		return fmt.Errorf("failed to list %s hosts: %w", what, err)
	}

	now := s.clock.Now()
	tableOpts := ui.TableOptions{Now: now}
	switch what {
	case ListStuck:
		hosts = slices.DeleteFunc(hosts, func(h inventory.Host) bool { return !reservation.IsStuck(h, now) })
		tableOpts.Age = true
	case ListUserReserved:
		hosts = slices.DeleteFunc(hosts, func(h inventory.Host) bool { return !reservation.IsUserReserved(h.Reason()) })
	case ListUnavailable:
		hosts = slices.DeleteFunc(hosts, func(h inventory.Host) bool { return !reservation.IsUnavailable(h.Reason()) })
	}

	s.nameProfiles(ctx, hosts)
	return ui.HostTable(stdout, hosts, tableOpts)
}

// ShowProfiles prints the provisionable profiles.
func ShowProfiles(ctx context.Context, g Globals) error {
	ctx, s, err := open(ctx, g, "show-profiles")
	if err != nil {
		return err
	}
	return s.finish(s.showProfiles(ctx))
}

func (s *session) showProfiles(ctx context.Context) error {
	groups, err := s.orchestrator(nil).Profiles(ctx)
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}
	return ui.ProfileTable(stdout, groups)
}

// ShowSummary prints host counts per profile and the unused profiles.
func ShowSummary(ctx context.Context, g Globals) error {
	ctx, s, err := open(ctx, g, "show-summary")
	if err != nil {
		return err
	}
	return s.finish(s.showSummary(ctx))
}

func (s *session) showSummary(ctx context.Context) error {
	prefix := s.cfg.ProfilePrefix
	if prefix == "" {
		return provisioning.ErrNoProfilePrefix
	}

	var (
		available, reserved []inventory.Host
		groups              []inventory.Hostgroup
	)
	err := async.RunParallel(ctx, []async.Task{
		{Name: "available hosts", Func: func(ctx context.Context) (err error) {
			available, err = s.inv.ListAvailable(ctx, inventory.ProfilePrefixQuery(prefix), 0)
			return err
		}},
		{Name: "reserved hosts", Func: func(ctx context.Context) (err error) {
			reserved, err = s.inv.ListReserved(ctx, "")
			return err
		}},
		{Name: "profiles", Func: func(ctx context.Context) (err error) {
			groups, err = s.orchestrator(nil).Profiles(ctx)
			return err
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to collect summary: %w", err)
	}

	inventory.NameHostgroups(available, groups)
	inventory.NameHostgroups(reserved, groups)
	return ui.RenderSummary(stdout, ui.Summarize(available, reserved, groups))
}
