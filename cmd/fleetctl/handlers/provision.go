package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/imamik/fleetctl/internal/platform/s3"
	"github.com/imamik/fleetctl/internal/provisioning"
	"github.com/imamik/fleetctl/internal/ui"
)

// ProvisionOptions are the provision command options.
type ProvisionOptions struct {
	Profile       string
	Target        Target
	Amount        int
	ChangeProfile bool
	ForceRebuild  bool
	Reason        string
	AddTag        bool
	// Tries and Interval default to the configured values when zero.
	Tries    int
	Interval time.Duration
	// BuildTimeout is in minutes and defaults to the configured value.
	BuildTimeout int
	Outfile      string
}

// Provision reserves hosts of a profile, rebuilding them when needed.
func Provision(ctx context.Context, g Globals, opts ProvisionOptions) error {
	ctx, s, err := open(ctx, g, "provision")
	if err != nil {
		return err
	}
	return s.finish(s.provision(ctx, opts))
}

func (s *session) provision(ctx context.Context, opts ProvisionOptions) error {
	query, err := opts.Target.Query()
	if err != nil {
		return err
	}

	remote, err := s.remoteExec()
	if err != nil {
		return err
	}
	orchOpts := []provisioning.Option{provisioning.WithReporter(ui.NewStatusReporter(stderr))}
	if s3.IsURI(opts.Outfile) {
		uploader, err := newUploader(s.cfg)
		if err != nil {
			return fmt.Errorf("failed to set up object storage: %w", err)
		}
		orchOpts = append(orchOpts, provisioning.WithUploader(uploader))
	}
	orch := s.orchestrator(remote, orchOpts...)
	s.selfTimed = true

	tries := opts.Tries
	if tries == 0 {
		tries = s.cfg.Reservation.Tries
	}
	interval := opts.Interval
	if interval == 0 {
		interval = s.cfg.Reservation.Interval
	}
	buildTimeout := opts.BuildTimeout
	if buildTimeout == 0 {
		buildTimeout = s.cfg.Reservation.BuildTimeoutMinutes
	}

	res, err := orch.Provision(ctx, provisioning.Request{
		Profile:       opts.Profile,
		Query:         query,
		Amount:        opts.Amount,
		ChangeProfile: opts.ChangeProfile,
		ForceRebuild:  opts.ForceRebuild,
		Reason:        opts.Reason,
		AddTag:        opts.AddTag,
		Tries:         tries,
		Interval:      interval,
		BuildTimeout:  buildTimeout,
		Outfile:       opts.Outfile,
	})
	if err != nil {
		return err
	}
	if len(res.TimedOut) > 0 {
		return fmt.Errorf("%w: %s, all hosts were released",
			provisioning.ErrBuildTimeout, strings.Join(res.TimedOut, ", "))
	}
	if len(res.Hosts) == 0 {
		return nil
	}
	if res.Rebuilt {
		if err := ui.ResultTable(stderr, res.Jobs); err != nil {
			return err
		}
	}
	s.nameProfiles(ctx, res.Hosts)
	return ui.HostTable(stdout, res.Hosts, ui.TableOptions{})
}
