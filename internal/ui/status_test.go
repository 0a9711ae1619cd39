package ui

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/imamik/fleetctl/internal/util/async"
)

func TestFormatStatus(t *testing.T) {
	assert.Equal(t, "[2/5] completed, 2 running, 1 queued",
		FormatStatus(async.Status{Completed: 2, Running: 2, Queued: 1}))
}

func TestFormatSummary(t *testing.T) {
	assert.Equal(t, "3 ok, 0 errors in 1.5s",
		FormatSummary(async.Summary{OK: 3, Elapsed: 1500 * time.Millisecond}))

	got := FormatSummary(async.Summary{OK: 1, Errors: 2, Elapsed: time.Second, Failed: []string{"a", "b"}})
	assert.Equal(t, "1 ok, 2 errors in 1s\nfailed: a, b", got)
}

func TestStatusReporter_PlainOutput(t *testing.T) {
	var buf bytes.Buffer
	r := NewStatusReporter(&buf)

	r.Status(async.Status{Running: 1, Queued: 1})
	r.Status(async.Status{Completed: 1, Running: 1})
	r.Summary(async.Summary{OK: 2, Elapsed: time.Second})

	assert.Equal(t, "[0/2] completed, 1 running, 1 queued\n"+
		"[1/2] completed, 1 running, 0 queued\n"+
		"2 ok, 0 errors in 1s\n", buf.String())
	assert.NotContains(t, buf.String(), "\x1b[", "no styling outside a terminal")
}

func TestStatusReporter_DrivenByQueue(t *testing.T) {
	var buf bytes.Buffer
	q := async.NewQueue(2, async.WithReporter(NewStatusReporter(&buf)), async.WithPollInterval(time.Millisecond))
	for _, h := range []string{"a", "b", "c"} {
		host := h
		_ = q.Add(async.Job{Host: host, Run: func(context.Context, string, func(any)) error {
			if host == "b" {
				return errors.New("boom")
			}
			return nil
		}})
	}
	q.Close()
	_, _ = q.Run(context.Background())

	out := buf.String()
	assert.Contains(t, out, "[3/3] completed, 0 running, 0 queued")
	assert.Contains(t, out, "2 ok, 1 errors")
	assert.Contains(t, out, "failed: b")
}
