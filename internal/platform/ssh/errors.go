package ssh

import (
	"errors"
	"fmt"
)

var (
	// ErrDial indicates the TCP connection or SSH handshake failed.
	ErrDial = errors.New("ssh dial failed")
	// ErrTransport indicates an established connection broke.
	ErrTransport = errors.New("ssh transport broken")
	// ErrCommandTimeout indicates the per-command timeout elapsed.
	ErrCommandTimeout = errors.New("ssh command timed out")
)

// ExitError is a remote command that exited with a non-zero status.
type ExitError struct {
	Status int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("remote command exited with status %d", e.Status)
}

// ExitCode returns the remote exit status.
func (e *ExitError) ExitCode() int {
	return e.Status
}

// IsExitError reports whether err is a non-zero remote exit.
func IsExitError(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr)
}
