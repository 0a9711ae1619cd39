package inventory

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Fake is an in-memory Inventory Service. It evaluates the query subset
// produced by this package (name/hostgroup equality, "~" prefix matches,
// OR inside parentheses, AND between clauses) and is safe for concurrent use.
type Fake struct {
	mu     sync.Mutex
	hosts  []*Host
	groups []Hostgroup

	// Now stamps reservation parameters. Defaults to time.Now.
	Now func() time.Time

	// PingFailures makes the next N pings fail with ErrConnection.
	PingFailures int
	// RejectReserve makes every Reserve call fail with ErrUnacceptable.
	RejectReserve bool
	// OnGetHost is called with the stored host (under lock) before GetHost returns.
	OnGetHost func(h *Host)

	pings        int
	reserveCalls int
}

var _ API = (*Fake)(nil)

// NewFake returns an empty fake inventory.
func NewFake() *Fake {
	return &Fake{Now: time.Now}
}

// AddHostgroup registers a profile.
func (f *Fake) AddHostgroup(g Hostgroup) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups = append(f.groups, g)
}

// AddHost registers a free host in the named hostgroup ("" for none).
func (f *Fake) AddHost(name, hostgroup string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	h := &Host{ID: len(f.hosts) + 1, Name: name}
	for _, g := range f.groups {
		if g.Name == hostgroup {
			id := g.ID
			h.HostgroupID = &id
			h.HostgroupName = g.Name
			h.OperatingSystemID = g.OperatingSystemID
		}
	}
	f.hosts = append(f.hosts, h)
}

// SetReason sets a host's reservation reason directly.
func (f *Fake) SetReason(name, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h := f.find(name); h != nil {
		setReason(h, reason, f.Now())
	}
}

// Host returns a copy of the stored host, or nil.
func (f *Fake) Host(name string) *Host {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h := f.find(name); h != nil {
		c := copyHost(h)
		return &c
	}
	return nil
}

// ReservedNames returns the names of all reserved hosts in insertion order.
func (f *Fake) ReservedNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, h := range f.hosts {
		if h.Reserved() {
			names = append(names, h.Name)
		}
	}
	return names
}

// ReserveCalls returns how many times Reserve was called.
func (f *Fake) ReserveCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reserveCalls
}

// Pings returns how many times Ping was called.
func (f *Fake) Pings() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings
}

// Ping implements API.
func (f *Fake) Ping(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	if f.PingFailures > 0 {
		f.PingFailures--
		return fmt.Errorf("%w: connection refused", ErrConnection)
	}
	return nil
}

// ListHosts implements API.
func (f *Fake) ListHosts(_ context.Context, query string, _ int) ([]Host, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter(query, func(*Host) bool { return true }, 0)
}

// GetHost implements API.
func (f *Fake) GetHost(_ context.Context, idOrName string) (*Host, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := f.find(idOrName)
	if h == nil {
		return nil, fmt.Errorf("get host %s: %w", idOrName, ErrNotFound)
	}
	if f.OnGetHost != nil {
		f.OnGetHost(h)
	}
	c := copyHost(h)
	return &c, nil
}

// ListHostgroups implements API.
func (f *Fake) ListHostgroups(_ context.Context, _ int, nameFilter string) ([]Hostgroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Hostgroup
	for _, g := range f.groups {
		if nameFilter == "" || strings.HasPrefix(g.Name, strings.TrimSuffix(nameFilter, "%")) {
			out = append(out, g)
		}
	}
	return out, nil
}

// ListReserved implements API.
func (f *Fake) ListReserved(_ context.Context, query string) ([]Host, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter(query, (*Host).Reserved, 0)
}

// ListAvailable implements API.
func (f *Fake) ListAvailable(_ context.Context, query string, amount int) ([]Host, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter(query, func(h *Host) bool { return !h.Reserved() }, amount)
}

// Reserve implements API.
func (f *Fake) Reserve(_ context.Context, query string, amount int, reason string) ([]Host, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reserveCalls++
	if f.RejectReserve {
		return nil, &ServiceError{Method: "GET", Path: "/api/hosts_reserve", StatusCode: 406, Body: "rejected"}
	}

	matcher, err := parseQuery(query)
	if err != nil {
		return nil, err
	}
	var out []Host
	for _, h := range f.hosts {
		if len(out) >= amount {
			break
		}
		if h.Reserved() || !matcher(h) {
			continue
		}
		setReason(h, reason, f.Now())
		out = append(out, copyHost(h))
	}
	return out, nil
}

// Release implements API.
func (f *Fake) Release(_ context.Context, query string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	matcher, err := parseQuery(query)
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, h := range f.hosts {
		if h.Reserved() && matcher(h) {
			setReason(h, "", f.Now())
			names = append(names, h.Name)
		}
	}
	return names, nil
}

// UpdateReason implements API.
func (f *Fake) UpdateReason(_ context.Context, query, reason string) ([]Host, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	matcher, err := parseQuery(query)
	if err != nil {
		return nil, err
	}
	var out []Host
	for _, h := range f.hosts {
		if h.Reserved() && matcher(h) {
			setReason(h, reason, f.Now())
			out = append(out, copyHost(h))
		}
	}
	return out, nil
}

// UpdateHost implements API.
func (f *Fake) UpdateHost(_ context.Context, idOrName string, update HostUpdate) (*Host, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := f.find(idOrName)
	if h == nil {
		return nil, fmt.Errorf("update host %s: %w", idOrName, ErrNotFound)
	}
	if update.Build != nil {
		h.Build = *update.Build
	}
	if update.HostgroupID != nil {
		id := *update.HostgroupID
		h.HostgroupID = &id
		for _, g := range f.groups {
			if g.ID == id {
				h.HostgroupName = g.Name
			}
		}
	}
	if update.OperatingSystemID != nil {
		h.OperatingSystemID = *update.OperatingSystemID
	}
	c := copyHost(h)
	return &c, nil
}

func (f *Fake) find(idOrName string) *Host {
	id, idErr := strconv.Atoi(idOrName)
	for _, h := range f.hosts {
		if h.Name == idOrName || (idErr == nil && h.ID == id) {
			return h
		}
	}
	return nil
}

func (f *Fake) filter(query string, keep func(*Host) bool, limit int) ([]Host, error) {
	matcher, err := parseQuery(query)
	if err != nil {
		return nil, err
	}
	var out []Host
	for _, h := range f.hosts {
		if limit > 0 && len(out) >= limit {
			break
		}
		if keep(h) && matcher(h) {
			out = append(out, copyHost(h))
		}
	}
	return out, nil
}

func setReason(h *Host, reason string, now time.Time) {
	for i := range h.Parameters {
		if h.Parameters[i].Name == ReservedParameter {
			h.Parameters[i].Value = reason
			h.Parameters[i].UpdatedAt = now
			return
		}
	}
	h.Parameters = append(h.Parameters, Parameter{Name: ReservedParameter, Value: reason, UpdatedAt: now})
}

func copyHost(h *Host) Host {
	c := *h
	c.Parameters = slices.Clone(h.Parameters)
	if h.HostgroupID != nil {
		id := *h.HostgroupID
		c.HostgroupID = &id
	}
	return c
}

type matchFunc func(*Host) bool

func parseQuery(query string) (matchFunc, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return func(*Host) bool { return true }, nil
	}

	var clauses []matchFunc
	for _, part := range splitTopLevel(query, " AND ") {
		var alts []matchFunc
		for _, atom := range splitTopLevel(stripParens(part), " OR ") {
			m, err := parseAtom(stripParens(atom))
			if err != nil {
				return nil, err
			}
			alts = append(alts, m)
		}
		clauses = append(clauses, func(h *Host) bool {
			return slices.ContainsFunc(alts, func(m matchFunc) bool { return m(h) })
		})
	}
	return func(h *Host) bool {
		for _, c := range clauses {
			if !c(h) {
				return false
			}
		}
		return true
	}, nil
}

func parseAtom(atom string) (matchFunc, error) {
	field, value, like := "", "", false
	if k, v, ok := strings.Cut(atom, "~"); ok {
		field, value, like = strings.TrimSpace(k), strings.TrimSuffix(strings.TrimSpace(v), "%"), true
	} else if k, v, ok := strings.Cut(atom, "="); ok {
		field, value = strings.TrimSpace(k), strings.TrimSpace(v)
	} else {
		return nil, fmt.Errorf("unsupported query term %q", atom)
	}

	var get func(*Host) string
	switch field {
	case "name":
		get = func(h *Host) string { return h.Name }
	case "hostgroup":
		get = func(h *Host) string { return h.HostgroupName }
	default:
		return nil, fmt.Errorf("unsupported query field %q", field)
	}
	if like {
		return func(h *Host) bool { return strings.HasPrefix(get(h), value) }, nil
	}
	return func(h *Host) bool { return get(h) == value }, nil
}

func stripParens(s string) string {
	s = strings.TrimSpace(s)
	for isGrouped(s) {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

func splitTopLevel(s, sep string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 && strings.HasPrefix(s[i:], sep) {
			parts = append(parts, s[start:i])
			start = i + len(sep)
			i += len(sep) - 1
		}
	}
	return append(parts, s[start:])
}
