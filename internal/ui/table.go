package ui

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ryanuber/columnize"

	"github.com/imamik/fleetctl/internal/platform/inventory"
	"github.com/imamik/fleetctl/internal/util/async"
)

// Reasons carry "|" in their stamps, so columns are split on tabs.
const delim = "\t"

func formatList(rows []string) string {
	conf := columnize.DefaultConfig()
	conf.Delim = delim
	conf.Empty = "<none>"
	return columnize.Format(rows, conf)
}

func row(fields ...string) string {
	for i, f := range fields {
		fields[i] = strings.ReplaceAll(f, delim, " ")
	}
	return strings.Join(fields, delim)
}

// TableOptions configures HostTable.
type TableOptions struct {
	// Age adds how long each host has been reserved, relative to Now.
	Age bool
	Now time.Time
}

// HostTable writes one line per host with its profile and reason.
func HostTable(w io.Writer, hosts []inventory.Host, opts TableOptions) error {
	if len(hosts) == 0 {
		_, err := fmt.Fprintln(w, "No hosts found")
		return err
	}
	header := []string{"Host", "Profile", "Reason"}
	if opts.Age {
		header = append(header, "Reserved")
	}
	rows := []string{row(header...)}
	for _, h := range hosts {
		fields := []string{h.Name, h.HostgroupName, h.Reason()}
		if opts.Age {
			age := ""
			if since, ok := h.ReservedSince(); ok {
				age = humanize.RelTime(since, opts.Now, "ago", "from now")
			}
			fields = append(fields, age)
		}
		rows = append(rows, row(fields...))
	}
	_, err := fmt.Fprintln(w, formatList(rows))
	return err
}

// ProfileTable writes the profiles with their IDs.
func ProfileTable(w io.Writer, groups []inventory.Hostgroup) error {
	if len(groups) == 0 {
		_, err := fmt.Fprintln(w, "No profiles found")
		return err
	}
	rows := []string{row("ID", "Profile", "OS")}
	for _, g := range groups {
		rows = append(rows, row(strconv.Itoa(g.ID), g.Name, strconv.Itoa(g.OperatingSystemID)))
	}
	_, err := fmt.Fprintln(w, formatList(rows))
	return err
}

// ResultTable writes the per-host outcome of a job run, sorted by host.
// Outputs must be strings or nil.
func ResultTable(w io.Writer, results map[string]*async.Result) error {
	rows := []string{row("Host", "Exit", "Output")}
	for _, host := range slices.Sorted(maps.Keys(results)) {
		r := results[host]
		out := ""
		switch v := r.Value.(type) {
		case string:
			out = strings.Join(strings.Fields(v), " ")
		case nil:
		default:
			out = fmt.Sprint(v)
		}
		if out == "" && r.Err != nil {
			out = r.Err.Error()
		}
		rows = append(rows, row(host, strconv.Itoa(r.ExitCode), out))
	}
	_, err := fmt.Fprintln(w, formatList(rows))
	return err
}
