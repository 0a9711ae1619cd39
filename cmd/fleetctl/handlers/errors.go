package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/imamik/fleetctl/internal/util/async"
)

var (
	// ErrNoHosts is returned when a target selects no host.
	ErrNoHosts = errors.New("no hosts selected, use --hosts or --search")
	// ErrReservationFailed is returned when reserve obtained no hosts.
	ErrReservationFailed = errors.New("could not reserve the requested hosts")
	// ErrAborted is returned when the operator declines a confirmation.
	ErrAborted = errors.New("aborted")
	// ErrConfirmationRequired is returned when a dangerous operation needs
	// confirmation but no terminal is attached.
	ErrConfirmationRequired = errors.New("confirmation required, pass --yes to proceed without a terminal")
)

// JobsFailedError reports per-host job failures. Its exit code is the
// number of failed jobs, capped at async.MaxExitCode.
type JobsFailedError struct {
	Hosts []string
}

func (e *JobsFailedError) Error() string {
	return fmt.Sprintf("%d job(s) failed: %s", len(e.Hosts), strings.Join(e.Hosts, ", "))
}

// ExitCode returns the number of failed jobs.
func (e *JobsFailedError) ExitCode() int {
	return min(len(e.Hosts), async.MaxExitCode)
}
