package ssh

import (
	"context"
	"fmt"
	"sync"
)

// FakeDialer is an in-memory Dialer for tests. Hosts are reachable
// unless marked otherwise, and commands are answered by Handler.
type FakeDialer struct {
	mu          sync.Mutex
	unreachable map[string]bool
	dials       map[string]int
	commands    map[string][]string
	open        int

	// Handler answers commands. Return *ExitError for a non-zero exit or
	// wrap ErrTransport for a broken connection. A nil Handler succeeds
	// with empty output.
	Handler func(host, command string) (string, error)
}

var _ Dialer = (*FakeDialer)(nil)

// NewFakeDialer returns a FakeDialer where every host is reachable.
func NewFakeDialer() *FakeDialer {
	return &FakeDialer{
		unreachable: make(map[string]bool),
		dials:       make(map[string]int),
		commands:    make(map[string][]string),
	}
}

// SetUnreachable makes dials to host fail (or succeed again).
func (f *FakeDialer) SetUnreachable(host string, unreachable bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unreachable[host] = unreachable
}

// Dials returns how many connections were opened to host.
func (f *FakeDialer) Dials(host string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials[host]
}

// Commands returns the commands run on host in order.
func (f *FakeDialer) Commands(host string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands[host]...)
}

// OpenConns returns the number of connections not yet closed.
func (f *FakeDialer) OpenConns() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// Dial implements Dialer.
func (f *FakeDialer) Dial(ctx context.Context, host string) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unreachable[host] {
		return nil, fmt.Errorf("%w: %s:22: connection refused", ErrDial, host)
	}
	f.dials[host]++
	f.open++
	return &fakeConn{dialer: f, host: host}, nil
}

type fakeConn struct {
	dialer *FakeDialer
	host   string
	once   sync.Once
}

func (c *fakeConn) Run(ctx context.Context, command string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.dialer.mu.Lock()
	c.dialer.commands[c.host] = append(c.dialer.commands[c.host], command)
	handler := c.dialer.Handler
	c.dialer.mu.Unlock()

	if handler == nil {
		return nil, nil
	}
	out, err := handler(c.host, command)
	return []byte(out), err
}

func (c *fakeConn) Close() error {
	c.once.Do(func() {
		c.dialer.mu.Lock()
		c.dialer.open--
		c.dialer.mu.Unlock()
	})
	return nil
}
