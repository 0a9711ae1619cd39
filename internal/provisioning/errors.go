package provisioning

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownProfile is returned when a profile does not exist.
	ErrUnknownProfile = errors.New("unknown profile")
	// ErrNotEnoughHosts is returned when fewer hosts than requested could be reserved.
	ErrNotEnoughHosts = errors.New("not enough hosts available")
	// ErrBuildTimeout is returned when a host is not built within its budget.
	ErrBuildTimeout = errors.New("timeout while waiting for the host to be built")
	// ErrRebuildFailed is returned when at least one rebuild failed.
	ErrRebuildFailed = errors.New("some hosts failed to build")
	// ErrNoProfilePrefix is returned when provisioning without a profile prefix.
	ErrNoProfilePrefix = errors.New("profile prefix is not configured")
)

// UnknownProfileError names the missing profile and the ones available.
type UnknownProfileError struct {
	Profile   string
	Available []string
}

func (e *UnknownProfileError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("profile %s not found, no provisionable profiles exist", e.Profile)
	}
	return fmt.Sprintf("profile %s not found, available profiles: %s", e.Profile, strings.Join(e.Available, ", "))
}

// Unwrap lets errors.Is match ErrUnknownProfile.
func (e *UnknownProfileError) Unwrap() error {
	return ErrUnknownProfile
}

// NotEnoughHostsError reports an unmet reservation target.
type NotEnoughHostsError struct {
	Wanted  int
	Profile string
	// ChangeProfile is false when other profiles were not searched.
	ChangeProfile bool
}

func (e *NotEnoughHostsError) Error() string {
	msg := fmt.Sprintf("not enough hosts available: could not reserve %d host(s) for profile %s", e.Wanted, e.Profile)
	if !e.ChangeProfile {
		msg += " (enable change_profile to rebuild free hosts from other profiles)"
	}
	return msg
}

// Unwrap lets errors.Is match ErrNotEnoughHosts.
func (e *NotEnoughHostsError) Unwrap() error {
	return ErrNotEnoughHosts
}

// IsBuildTimeout reports whether err is a build timeout.
func IsBuildTimeout(err error) bool {
	return errors.Is(err, ErrBuildTimeout)
}
