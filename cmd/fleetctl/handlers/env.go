// Package handlers implements the fleetctl commands.
//
// Every handler loads and resolves the configuration, connects to the
// Inventory Service and runs one operation. Collaborators are created
// through the factory variables below so tests can replace them.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/google/uuid"

	"github.com/imamik/fleetctl/internal/config"
	"github.com/imamik/fleetctl/internal/metrics"
	"github.com/imamik/fleetctl/internal/platform/inventory"
	"github.com/imamik/fleetctl/internal/platform/s3"
	"github.com/imamik/fleetctl/internal/platform/ssh"
	"github.com/imamik/fleetctl/internal/provisioning"
	"github.com/imamik/fleetctl/internal/util/clock"
	"github.com/imamik/fleetctl/internal/util/hostrange"
)

// Remote runs commands on hosts. It is implemented by *ssh.Executor.
type Remote interface {
	Run(ctx context.Context, host, command string) (ssh.Output, error)
	Probe(ctx context.Context, host, command string) (bool, error)
	Reboot(ctx context.Context, host string) error
	Close() error
}

// Factory function variables - can be replaced in tests.
var (
	loadConfig = config.Load

	// newPrompter returns nil when no terminal is attached.
	newPrompter = func() config.Prompter {
		if config.IsInteractive() {
			return config.TerminalPrompter{}
		}
		return nil
	}

	// confirm asks a yes/no question. ok is false without a terminal.
	confirm = func(title string) (ok bool, interactive bool, err error) {
		if !config.IsInteractive() {
			return false, false, nil
		}
		ok, err = config.TerminalPrompter{}.Confirm(title)
		return ok, true, err
	}

	newInventory = func(cfg *config.Config, logger logr.Logger) (inventory.API, error) {
		return inventory.NewClient(cfg.Inventory.URL, cfg.Inventory.Username, cfg.Inventory.Password,
			inventory.WithTimeout(cfg.Inventory.RequestTimeout),
			inventory.WithRateLimit(cfg.Inventory.RequestsPerSecond),
			inventory.WithPageSize(cfg.Inventory.PageSize),
			inventory.WithLogger(logger.WithName("inventory")),
		)
	}

	newRemote = func(cfg *config.Config, logger logr.Logger, clk clock.Clock) (Remote, error) {
		key, err := readPrivateKey(cfg.SSH.PrivateKeyPath)
		if err != nil {
			return nil, err
		}
		dialer, err := ssh.NewDialer(&ssh.Config{
			Port:           cfg.SSH.Port,
			User:           cfg.SSH.User,
			PrivateKey:     key,
			DialTimeout:    cfg.SSH.DialTimeout,
			KnownHostsPath: cfg.SSH.KnownHostsPath,
		})
		if err != nil {
			return nil, err
		}
		return ssh.NewExecutor(dialer,
			ssh.WithLogger(logger.WithName("ssh")),
			ssh.WithCommandTimeout(cfg.SSH.CommandTimeout),
			ssh.WithDialRetries(cfg.SSH.DialRetries),
			ssh.WithClock(clk),
		), nil
	}

	newUploader = func(cfg *config.Config) (provisioning.Uploader, error) {
		st := cfg.Storage
		return s3.NewClient(st.Endpoint, st.Region, st.AccessKey, st.SecretKey)
	}

	newClock = clock.Real

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// Globals carries the options shared by every command.
type Globals struct {
	// ConfigPath is the configuration file. Empty uses config.DefaultPath.
	ConfigPath string
	// ConfigRequired fails when the file does not exist.
	ConfigRequired bool
}

// NewLogger returns a logger writing timestamped lines to w. Higher
// verbosity enables V(n) output.
func NewLogger(w io.Writer, verbosity int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintln(w, prefix, args)
			return
		}
		fmt.Fprintln(w, args)
	}, funcr.Options{
		LogTimestamp:    true,
		TimestampFormat: time.RFC3339,
		Verbosity:       verbosity,
	})
}

// session holds what one command run needs.
type session struct {
	name    string
	cfg     *config.Config
	inv     inventory.API
	clock   clock.Clock
	metrics *metrics.Recorder
	logger  logr.Logger
	start   time.Time

	// selfTimed is set when the operation records its own duration.
	selfTimed bool

	remote Remote
}

// open loads the configuration and connects to the Inventory Service.
// The returned context carries a logger tagged with the operation.
func open(ctx context.Context, g Globals, name string) (context.Context, *session, error) {
	path := g.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := loadConfig(path, g.ConfigRequired)
	if err != nil {
		return ctx, nil, err
	}
	if err := config.Resolve(cfg, newPrompter()); err != nil {
		return ctx, nil, err
	}

	logger := logr.FromContextOrDiscard(ctx).WithValues("op", name, "opID", uuid.NewString())
	ctx = logr.NewContext(ctx, logger)

	inv, err := newInventory(cfg, logger)
	if err != nil {
		return ctx, nil, fmt.Errorf("failed to create inventory client: %w", err)
	}

	clk := newClock()
	s := &session{
		name:   name,
		cfg:    cfg,
		inv:    inv,
		clock:  clk,
		logger: logger,
		start:  clk.Now(),
	}
	if cfg.Metrics.TextfilePath != "" {
		s.metrics = metrics.New()
	}
	return ctx, s, nil
}

// remoteExec creates the SSH executor on first use.
func (s *session) remoteExec() (Remote, error) {
	if s.remote != nil {
		return s.remote, nil
	}
	r, err := newRemote(s.cfg, s.logger, s.clock)
	if err != nil {
		return nil, fmt.Errorf("failed to set up ssh: %w", err)
	}
	s.remote = r
	return r, nil
}

// orchestrator builds the provisioning orchestrator. remote may be nil for
// read-only use.
func (s *session) orchestrator(remote Remote, opts ...provisioning.Option) *provisioning.Orchestrator {
	base := []provisioning.Option{
		provisioning.WithClock(s.clock),
		provisioning.WithMetrics(s.metrics),
		provisioning.WithProfilePrefix(s.cfg.ProfilePrefix),
		provisioning.WithPageSize(s.cfg.Inventory.PageSize),
		provisioning.WithProbeCommand(s.cfg.SSH.ProbeCommand),
	}
	var pr provisioning.Remote
	if remote != nil {
		pr = remote
	}
	return provisioning.NewOrchestrator(s.inv, pr, append(base, opts...)...)
}

// finish records the operation, writes the metrics textfile and closes the
// remote executor. It returns err unchanged.
func (s *session) finish(err error) error {
	if !s.selfTimed {
		s.metrics.Operation(s.name, s.start, s.clock.Now(), err)
	}
	if werr := s.metrics.WriteTextfile(s.cfg.Metrics.TextfilePath); werr != nil {
		s.logger.Error(werr, "metrics not written")
	}
	if s.remote != nil {
		if cerr := s.remote.Close(); cerr != nil {
			s.logger.V(1).Info("closing ssh connections failed", "error", cerr.Error())
		}
	}
	return err
}

// Target selects hosts by name ranges, an inventory search, or both.
type Target struct {
	// Hosts holds host names or ranges such as "node01:10".
	Hosts  []string
	Search string
}

// Names expands the host ranges.
func (t Target) Names() ([]string, error) {
	return hostrange.ExpandAll(t.Hosts)
}

// Query combines the expanded host names and the search.
func (t Target) Query() (string, error) {
	names, err := t.Names()
	if err != nil {
		return "", err
	}
	return inventory.And(inventory.HostsQuery(names...), t.Search), nil
}

// Empty reports whether the target selects every host.
func (t Target) Empty() bool {
	return len(t.Hosts) == 0 && t.Search == ""
}

// resolveNames returns the target's host names, asking the inventory when
// a search is given.
func (s *session) resolveNames(ctx context.Context, t Target) ([]string, error) {
	if t.Search == "" {
		names, err := t.Names()
		if err != nil {
			return nil, err
		}
		if len(names) == 0 {
			return nil, ErrNoHosts
		}
		return names, nil
	}
	query, err := t.Query()
	if err != nil {
		return nil, err
	}
	hosts, err := s.inv.ListHosts(ctx, query, s.cfg.Inventory.PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}
	if len(hosts) == 0 {
		return nil, ErrNoHosts
	}
	return inventory.Names(hosts), nil
}

func readPrivateKey(path string) ([]byte, error) {
	candidates := []string{path}
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("no ssh private key configured: %w", err)
		}
		candidates = []string{
			filepath.Join(home, ".ssh", "id_ed25519"),
			filepath.Join(home, ".ssh", "id_rsa"),
		}
	}
	var errs []error
	for _, p := range candidates {
		// #nosec G304
		key, err := os.ReadFile(p)
		if err == nil {
			return key, nil
		}
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("failed to read ssh private key: %w", errors.Join(errs...))
}
