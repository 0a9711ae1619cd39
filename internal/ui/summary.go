package ui

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/imamik/fleetctl/internal/platform/inventory"
)

// FleetSummary counts hosts per profile.
type FleetSummary struct {
	Available map[string]int
	Reserved  map[string]int
	// Unused lists profiles without any host.
	Unused []string
}

// Summarize counts available and reserved hosts per profile.
func Summarize(available, reserved []inventory.Host, profiles []inventory.Hostgroup) FleetSummary {
	s := FleetSummary{
		Available: make(map[string]int),
		Reserved:  make(map[string]int),
	}
	for _, h := range available {
		s.Available[h.HostgroupName]++
	}
	for _, h := range reserved {
		s.Reserved[h.HostgroupName]++
	}
	for _, g := range profiles {
		if s.Available[g.Name] == 0 && s.Reserved[g.Name] == 0 {
			s.Unused = append(s.Unused, g.Name)
		}
	}
	slices.Sort(s.Unused)
	return s
}

// RenderSummary writes the summary as three sections.
func RenderSummary(w io.Writer, s FleetSummary) error {
	p := painter{color: IsTerminal(w)}
	sections := []struct {
		title  string
		counts map[string]int
	}{
		{"Available hosts by profile", s.Available},
		{"Reserved hosts by profile", s.Reserved},
	}
	for _, sec := range sections {
		fmt.Fprintln(w, p.paint(headerStyle, sec.title))
		if len(sec.counts) == 0 {
			fmt.Fprintln(w, p.paint(dimStyle, "  none"))
			continue
		}
		rows := []string{row("Profile", "Hosts")}
		total := 0
		for _, name := range slices.Sorted(maps.Keys(sec.counts)) {
			rows = append(rows, row(name, strconv.Itoa(sec.counts[name])))
			total += sec.counts[name]
		}
		rows = append(rows, row("Total", strconv.Itoa(total)))
		fmt.Fprintln(w, formatList(rows))
	}

	fmt.Fprintln(w, p.paint(headerStyle, "Unused profiles"))
	if len(s.Unused) == 0 {
		fmt.Fprintln(w, p.paint(dimStyle, "  none"))
		return nil
	}
	for _, name := range s.Unused {
		if _, err := fmt.Fprintln(w, "  "+p.paint(warningStyle, name)); err != nil {
			return err
		}
	}
	return nil
}
