package handlers

import (
	"context"
	"errors"
)

// ErrNoCommand is returned when run is given an empty command.
var ErrNoCommand = errors.New("no command given")

// RunOptions are the run command options.
type RunOptions struct {
	Target  Target
	Command string
	// Parallel bounds the concurrent sessions. Zero runs all hosts at once.
	Parallel int
}

// Run executes a command on every selected host. The returned error's
// ExitCode is the number of hosts where the command failed.
func Run(ctx context.Context, g Globals, opts RunOptions) error {
	if opts.Command == "" {
		return ErrNoCommand
	}
	ctx, s, err := open(ctx, g, "run")
	if err != nil {
		return err
	}
	return s.finish(s.run(ctx, opts))
}

func (s *session) run(ctx context.Context, opts RunOptions) error {
	names, err := s.resolveNames(ctx, opts.Target)
	if err != nil {
		return err
	}
	remote, err := s.remoteExec()
	if err != nil {
		return err
	}
	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = len(names)
	}
	return s.runJobs(ctx, names, parallel, func(ctx context.Context, host string, emit func(any)) error {
		out, err := remote.Run(ctx, host, opts.Command)
		if out.Output != "" {
			emit(out.Output)
		}
		return err
	})
}
