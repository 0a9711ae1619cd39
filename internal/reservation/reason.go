package reservation

import (
	"fmt"
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/imamik/fleetctl/internal/platform/inventory"
)

// Tag is a machine-readable status marker embedded in a reason string as "[TAG]".
type Tag string

// Reason tags.
const (
	TagQueued       Tag = "QUEUED"
	TagBuilding     Tag = "BUILDING"
	TagProvisioning Tag = "PROVISIONING"
	TagUnavailable  Tag = "UNAVAILABLE"
	TagUserReserved Tag = "USER_RESERVED"
)

// StuckAfter is how long a reservation may be held before it counts as stuck.
const StuckAfter = 23 * time.Hour

const stampLayout = "02/01/2006 15:04:05"

// Stamp prefixes msg with a timestamp and origin:
// "[02/01/2006 15:04:05|by user@machine] msg".
func Stamp(now time.Time, origin, msg string) string {
	return fmt.Sprintf("[%s|by %s] %s", now.Format(stampLayout), origin, msg)
}

// WithTag prefixes msg with "[TAG] ".
func WithTag(tag Tag, msg string) string {
	return strings.TrimRight("["+string(tag)+"] "+msg, " ")
}

// HasTag reports whether reason carries tag, ignoring case.
func HasTag(reason string, tag Tag) bool {
	return strings.Contains(strings.ToUpper(reason), "["+string(tag)+"]")
}

// IsUserReserved reports whether the reason marks a manual reservation.
func IsUserReserved(reason string) bool {
	return HasTag(reason, TagUserReserved)
}

// IsUnavailable reports whether the reason marks a host that failed its probe.
func IsUnavailable(reason string) bool {
	return HasTag(reason, TagUnavailable)
}

// IsStuck reports whether host has been reserved for longer than StuckAfter.
func IsStuck(host inventory.Host, now time.Time) bool {
	since, ok := host.ReservedSince()
	return ok && now.Sub(since) > StuckAfter
}

// Origin returns "user@machine" for the current process.
func Origin() string {
	name := "unknown"
	if u, err := user.Current(); err == nil && u.Username != "" {
		name = u.Username
	} else if env := os.Getenv("USER"); env != "" {
		name = env
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return name + "@" + host
}
