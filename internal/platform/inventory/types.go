package inventory

import (
	"context"
	"time"
)

// ReservedParameter is the host parameter holding the reservation reason.
const ReservedParameter = "RESERVED"

// Host is a machine tracked by the Inventory Service.
type Host struct {
	ID                int         `json:"id"`
	Name              string      `json:"name"`
	HostgroupID       *int        `json:"hostgroup_id"`
	HostgroupName     string      `json:"hostgroup_name,omitempty"`
	OperatingSystemID int         `json:"operatingsystem_id"`
	Build             bool        `json:"build"`
	Parameters        []Parameter `json:"parameters,omitempty"`
}

// Parameter is a named host property.
type Parameter struct {
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Reason returns the reservation reason, or "" when the host is free.
func (h *Host) Reason() string {
	if p := h.parameter(ReservedParameter); p != nil {
		return p.Value
	}
	return ""
}

// Reserved reports whether the host carries a reservation reason.
func (h *Host) Reserved() bool {
	return h.Reason() != ""
}

// ReservedSince returns when the reservation parameter was last written.
func (h *Host) ReservedSince() (time.Time, bool) {
	p := h.parameter(ReservedParameter)
	if p == nil || p.Value == "" || p.UpdatedAt.IsZero() {
		return time.Time{}, false
	}
	return p.UpdatedAt, true
}

func (h *Host) parameter(name string) *Parameter {
	for i := range h.Parameters {
		if h.Parameters[i].Name == name {
			return &h.Parameters[i]
		}
	}
	return nil
}

// Hostgroup is a profile: a named class of hosts sharing an OS template.
type Hostgroup struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	OperatingSystemID int    `json:"operatingsystem_id"`
}

// HostUpdate is a partial host update. Nil fields are left untouched.
type HostUpdate struct {
	Build             *bool `json:"build,omitempty"`
	HostgroupID       *int  `json:"hostgroup_id,omitempty"`
	OperatingSystemID *int  `json:"operatingsystem_id,omitempty"`
}

// Names returns the host names in order.
func Names(hosts []Host) []string {
	names := make([]string, 0, len(hosts))
	for _, h := range hosts {
		names = append(names, h.Name)
	}
	return names
}

// HostReader reads host and hostgroup state.
type HostReader interface {
	Ping(ctx context.Context) error
	ListHosts(ctx context.Context, query string, pageSize int) ([]Host, error)
	GetHost(ctx context.Context, idOrName string) (*Host, error)
	ListHostgroups(ctx context.Context, pageSize int, nameFilter string) ([]Hostgroup, error)
	ListReserved(ctx context.Context, query string) ([]Host, error)
	ListAvailable(ctx context.Context, query string, amount int) ([]Host, error)
}

// Reserver mutates reservation state.
type Reserver interface {
	Reserve(ctx context.Context, query string, amount int, reason string) ([]Host, error)
	Release(ctx context.Context, query string) ([]string, error)
	UpdateReason(ctx context.Context, query, reason string) ([]Host, error)
}

// HostUpdater applies partial host updates.
type HostUpdater interface {
	UpdateHost(ctx context.Context, idOrName string, update HostUpdate) (*Host, error)
}

// API is the full Inventory Service surface.
type API interface {
	HostReader
	Reserver
	HostUpdater
}

// NameHostgroups fills HostgroupName from groups where the service left it
// empty. Hosts without a known group keep an empty name.
func NameHostgroups(hosts []Host, groups []Hostgroup) {
	byID := make(map[int]string, len(groups))
	for _, g := range groups {
		byID[g.ID] = g.Name
	}
	for i := range hosts {
		h := &hosts[i]
		if h.HostgroupName != "" || h.HostgroupID == nil {
			continue
		}
		h.HostgroupName = byID[*h.HostgroupID]
	}
}
