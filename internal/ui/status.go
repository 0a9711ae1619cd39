package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/imamik/fleetctl/internal/util/async"
)

// StatusReporter prints job runner progress. On a terminal the status line
// is redrawn in place, otherwise every change is printed on its own line.
type StatusReporter struct {
	mu       sync.Mutex
	out      io.Writer
	tty      bool
	painter  painter
	lastLine int
}

var _ async.Reporter = (*StatusReporter)(nil)

// NewStatusReporter creates a StatusReporter writing to out.
func NewStatusReporter(out io.Writer) *StatusReporter {
	tty := IsTerminal(out)
	return &StatusReporter{out: out, tty: tty, painter: painter{color: tty}}
}

// Status implements async.Reporter.
func (r *StatusReporter) Status(s async.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	line := FormatStatus(s)
	if !r.tty {
		fmt.Fprintln(r.out, line)
		return
	}
	pad := ""
	if n := len(line); n < r.lastLine {
		pad = strings.Repeat(" ", r.lastLine-n)
	}
	r.lastLine = len(line)
	fmt.Fprint(r.out, "\r"+r.painter.paint(dimStyle, line)+pad)
}

// Summary implements async.Reporter.
func (r *StatusReporter) Summary(s async.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tty && r.lastLine > 0 {
		fmt.Fprintln(r.out)
		r.lastLine = 0
	}
	fmt.Fprintln(r.out, formatSummary(s, r.painter))
}

// FormatStatus renders the (completed, running, queued) triple.
func FormatStatus(s async.Status) string {
	return fmt.Sprintf("[%d/%d] completed, %d running, %d queued", s.Completed, s.Total(), s.Running, s.Queued)
}

// FormatSummary renders the final summary of a run without styling.
func FormatSummary(s async.Summary) string {
	return formatSummary(s, painter{})
}

func formatSummary(s async.Summary, p painter) string {
	var b strings.Builder
	b.WriteString(p.paint(okStyle, fmt.Sprintf("%d ok", s.OK)))
	b.WriteString(", ")
	errs := fmt.Sprintf("%d errors", s.Errors)
	if s.Errors > 0 {
		errs = p.paint(failedStyle, errs)
	}
	b.WriteString(errs)
	fmt.Fprintf(&b, " in %s", s.Elapsed.Round(time.Millisecond))
	if len(s.Failed) > 0 {
		b.WriteString("\n")
		b.WriteString(p.paint(failedStyle, "failed: "+strings.Join(s.Failed, ", ")))
	}
	return b.String()
}
