package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 10 * time.Second
)

// Dialer opens authenticated connections to hosts.
type Dialer interface {
	Dial(ctx context.Context, host string) (Conn, error)
}

// Conn is an established connection able to run commands.
type Conn interface {
	// Run executes command and returns its combined output.
	// A non-zero exit yields *ExitError, a broken connection ErrTransport.
	Run(ctx context.Context, command string) ([]byte, error)
	Close() error
}

// Config holds SSH dialer configuration.
type Config struct {
	Port       int
	User       string
	PrivateKey []byte

	// DialTimeout bounds the TCP connect and handshake.
	// If zero, defaultDialTimeout is used.
	DialTimeout time.Duration

	// KnownHostsPath enables host key verification against an OpenSSH
	// known_hosts file. If empty, host keys are not verified.
	KnownHostsPath string
}

// KeyDialer dials hosts with public key authentication.
type KeyDialer struct {
	port        int
	dialTimeout time.Duration
	config      *ssh.ClientConfig
}

// NewDialer validates cfg and parses the private key once.
func NewDialer(cfg *Config) (*KeyDialer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("config user cannot be empty")
	}
	if len(cfg.PrivateKey) == 0 {
		return nil, fmt.Errorf("config private key cannot be empty")
	}

	signer, err := ssh.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey() //nolint:gosec // opt-in verification via known_hosts
	if cfg.KnownHostsPath != "" {
		hostKeyCallback, err = knownhosts.New(cfg.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
	}

	d := &KeyDialer{
		port:        cfg.Port,
		dialTimeout: cfg.DialTimeout,
	}
	if d.port == 0 {
		d.port = defaultPort
	}
	if d.dialTimeout == 0 {
		d.dialTimeout = defaultDialTimeout
	}
	d.config = &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         d.dialTimeout,
	}
	return d, nil
}

// Dial connects to host and completes the SSH handshake.
func (d *KeyDialer) Dial(ctx context.Context, host string) (Conn, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(d.port))

	nd := net.Dialer{Timeout: d.dialTimeout}
	netConn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrDial, addr, err)
	}

	_ = netConn.SetDeadline(time.Now().Add(d.dialTimeout))
	sc, chans, reqs, err := ssh.NewClientConn(netConn, addr, d.config)
	if err != nil {
		_ = netConn.Close()
		return nil, fmt.Errorf("%w: handshake with %s: %w", ErrDial, addr, err)
	}
	_ = netConn.SetDeadline(time.Time{})

	return &clientConn{client: ssh.NewClient(sc, chans, reqs)}, nil
}

type clientConn struct {
	client *ssh.Client
}

func (c *clientConn) Run(ctx context.Context, command string) ([]byte, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("%w: open session: %w", ErrTransport, err)
	}
	defer func() { _ = session.Close() }()

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := session.CombinedOutput(command)
		done <- result{out: out, err: err}
	}()

	select {
	case <-ctx.Done():
		// Closing the client unblocks CombinedOutput.
		_ = c.client.Close()
		<-done
		return nil, ctx.Err()
	case r := <-done:
		return r.out, classifyRunError(r.err)
	}
}

func (c *clientConn) Close() error {
	return c.client.Close()
}

func classifyRunError(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Status: exitErr.ExitStatus()}
	}
	var missing *ssh.ExitMissingError
	if errors.As(err, &missing) || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return err
}
