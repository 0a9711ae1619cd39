package ssh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/fleetctl/internal/util/clock"
)

func TestExecutor_RunReusesConnection(t *testing.T) {
	dialer := NewFakeDialer()
	dialer.Handler = func(host, command string) (string, error) {
		return "ok from " + host, nil
	}
	e := NewExecutor(dialer)

	out, err := e.Run(context.Background(), "web1", "uptime")
	require.NoError(t, err)
	assert.Equal(t, "ok from web1", out.Output)
	assert.Equal(t, 0, out.ExitStatus)

	_, err = e.Run(context.Background(), "web1", "hostname")
	require.NoError(t, err)

	assert.Equal(t, 1, dialer.Dials("web1"))
	assert.Equal(t, []string{"uptime", "hostname"}, dialer.Commands("web1"))
	assert.Equal(t, 1, dialer.OpenConns())

	require.NoError(t, e.Close())
	assert.Equal(t, 0, dialer.OpenConns())
}

func TestExecutor_RunExitStatus(t *testing.T) {
	dialer := NewFakeDialer()
	dialer.Handler = func(_, _ string) (string, error) {
		return "not found", &ExitError{Status: 127}
	}
	e := NewExecutor(dialer)

	out, err := e.Run(context.Background(), "web1", "nope")
	require.Error(t, err)
	assert.True(t, IsExitError(err))
	assert.Equal(t, 127, out.ExitStatus)
	assert.Equal(t, "not found", out.Output)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 127, exitErr.ExitCode())

	_, _ = e.Run(context.Background(), "web1", "nope")
	assert.Equal(t, 1, dialer.Dials("web1"), "a failing command keeps the connection")
}

func TestExecutor_Probe(t *testing.T) {
	tests := []struct {
		name        string
		unreachable bool
		handlerErr  error
		wantUp      bool
		wantErr     bool
	}{
		{name: "reachable", wantUp: true},
		{name: "unreachable", unreachable: true},
		{name: "command not found", handlerErr: &ExitError{Status: 127}},
		{name: "transport break", handlerErr: fmt.Errorf("%w: EOF", ErrTransport)},
		{name: "unexpected error", handlerErr: errors.New("disk on fire"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialer := NewFakeDialer()
			dialer.SetUnreachable("web1", tt.unreachable)
			dialer.Handler = func(_, _ string) (string, error) { return "", tt.handlerErr }

			up, err := NewExecutor(dialer).Probe(context.Background(), "web1", "")
			assert.Equal(t, tt.wantUp, up)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExecutor_ProbeDefaultCommand(t *testing.T) {
	dialer := NewFakeDialer()
	e := NewExecutor(dialer)

	up, err := e.Probe(context.Background(), "web1", "")
	require.NoError(t, err)
	assert.True(t, up)
	assert.Equal(t, []string{DefaultProbeCommand}, dialer.Commands("web1"))
}

func TestExecutor_ProbeTransportBreakResetsPool(t *testing.T) {
	dialer := NewFakeDialer()
	var mu sync.Mutex
	broken := map[string]bool{"db1": true}
	dialer.Handler = func(host, _ string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if broken[host] {
			return "", fmt.Errorf("%w: connection reset", ErrTransport)
		}
		return "", nil
	}
	e := NewExecutor(dialer)
	ctx := context.Background()

	up, err := e.Probe(ctx, "web1", "")
	require.NoError(t, err)
	require.True(t, up)
	require.Equal(t, 1, dialer.OpenConns())

	up, err = e.Probe(ctx, "db1", "")
	require.NoError(t, err)
	assert.False(t, up)
	assert.Equal(t, 0, dialer.OpenConns(), "every pooled connection is closed")

	up, err = e.Probe(ctx, "web1", "")
	require.NoError(t, err)
	assert.True(t, up)
	assert.Equal(t, 2, dialer.Dials("web1"), "web1 reconnects after the reset")
}

func TestExecutor_ResetDuringCommand(t *testing.T) {
	dialer := NewFakeDialer()
	e := NewExecutor(dialer)
	dialer.Handler = func(_, _ string) (string, error) {
		e.Reset()
		return "", nil
	}

	_, err := e.Run(context.Background(), "web1", "uptime")
	require.NoError(t, err)
	assert.Equal(t, 0, dialer.OpenConns(), "stale connection is closed instead of pooled")
}

func TestExecutor_ProbeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	up, err := NewExecutor(NewFakeDialer()).Probe(ctx, "web1", "")
	assert.False(t, up)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecutor_ProbeCommandTimeout(t *testing.T) {
	dialer := NewFakeDialer()
	dialer.Handler = func(_, _ string) (string, error) {
		time.Sleep(50 * time.Millisecond)
		return "", context.DeadlineExceeded
	}
	e := NewExecutor(dialer, WithCommandTimeout(10*time.Millisecond))

	up, err := e.Probe(context.Background(), "web1", "")
	assert.NoError(t, err)
	assert.False(t, up)

	_, err = e.Run(context.Background(), "web1", "sleep 10")
	assert.ErrorIs(t, err, ErrCommandTimeout)
}

func TestExecutor_DialRetries(t *testing.T) {
	dialer := NewFakeDialer()
	dialer.SetUnreachable("web1", true)
	fake := clock.NewFake(time.Now())
	e := NewExecutor(dialer, WithDialRetries(2), WithClock(fake))

	_, err := e.Run(context.Background(), "web1", "uptime")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDial)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, fake.Sleeps())
}

func TestExecutor_Reboot(t *testing.T) {
	dialer := NewFakeDialer()
	dialer.Handler = func(_, command string) (string, error) {
		if command == rebootCommand {
			return "", fmt.Errorf("%w: wait: remote command exited without exit status", ErrTransport)
		}
		return "", nil
	}
	e := NewExecutor(dialer)
	ctx := context.Background()

	_, err := e.Run(ctx, "web1", "uptime")
	require.NoError(t, err)

	require.NoError(t, e.Reboot(ctx, "web1"))
	assert.Equal(t, 0, dialer.OpenConns())

	_, err = e.Run(ctx, "web1", "uptime")
	require.NoError(t, err)
	assert.Equal(t, 2, dialer.Dials("web1"))
}

func TestExecutor_RebootUnreachable(t *testing.T) {
	dialer := NewFakeDialer()
	dialer.SetUnreachable("web1", true)

	err := NewExecutor(dialer).Reboot(context.Background(), "web1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDial)
}

func TestExecutor_ConcurrentSameHost(t *testing.T) {
	dialer := NewFakeDialer()
	e := NewExecutor(dialer)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Run(context.Background(), "web1", "uptime")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, dialer.OpenConns(), 1, "at most one idle connection per host")
	require.NoError(t, e.Close())
	assert.Equal(t, 0, dialer.OpenConns())
}
