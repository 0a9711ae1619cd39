// Package config loads and resolves fleetctl configuration.
//
// Values come from, in increasing priority: built-in defaults, a YAML file,
// and FLEETCTL_* environment variables. Credentials still missing after
// loading are requested interactively by Resolve when a terminal is
// attached; otherwise resolution fails before any remote call is made.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// ErrMissingConfig is returned when a required value is absent and cannot be prompted for.
var ErrMissingConfig = errors.New("missing required configuration")

// Config is the root configuration.
type Config struct {
	Inventory   InventoryConfig   `yaml:"inventory"`
	SSH         SSHConfig         `yaml:"ssh"`
	Reservation ReservationConfig `yaml:"reservation"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Storage     StorageConfig     `yaml:"storage"`

	// ProfilePrefix scopes which hostgroups are provisionable profiles.
	ProfilePrefix string `yaml:"profile_prefix"`
}

// InventoryConfig holds the Inventory Service endpoint and credentials.
type InventoryConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// PageSize is the per_page value used for listings.
	PageSize int `yaml:"page_size"`

	// RequestTimeout bounds a single HTTP request.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// RequestsPerSecond limits the request rate; zero disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// SSHConfig holds remote execution settings.
type SSHConfig struct {
	User           string `yaml:"user"`
	Port           int    `yaml:"port"`
	PrivateKeyPath string `yaml:"private_key"`

	// KnownHostsPath enables host key verification. Empty disables it.
	KnownHostsPath string `yaml:"known_hosts"`

	DialTimeout    time.Duration `yaml:"dial_timeout"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	DialRetries    int           `yaml:"dial_retries"`

	// ProbeCommand decides whether a host is up. Empty runs "uptime".
	ProbeCommand string `yaml:"probe_command"`
}

// ReservationConfig holds the default retry budget for reservations.
type ReservationConfig struct {
	Tries    int           `yaml:"tries"`
	Interval time.Duration `yaml:"interval"`

	// BuildTimeoutMinutes is how many one-minute polls a rebuild may take.
	BuildTimeoutMinutes int `yaml:"build_timeout_minutes"`
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	// TextfilePath, when set, receives the metrics in Prometheus text
	// format after each command.
	TextfilePath string `yaml:"textfile"`
}

// StorageConfig holds object storage settings used for s3:// outfiles.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// Default returns a configuration populated with defaults.
func Default() *Config {
	return &Config{
		Inventory: InventoryConfig{
			PageSize:       999,
			RequestTimeout: 30 * time.Second,
		},
		SSH: SSHConfig{
			User:           "root",
			Port:           22,
			DialTimeout:    10 * time.Second,
			CommandTimeout: 60 * time.Second,
			DialRetries:    0,
		},
		Reservation: ReservationConfig{
			Tries:               120,
			Interval:            60 * time.Second,
			BuildTimeoutMinutes: 120,
		},
	}
}

// Validate checks the values that do not depend on credentials.
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.Inventory.URL != "" {
		u, err := url.Parse(c.Inventory.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			result = multierror.Append(result, fmt.Errorf("inventory.url %q is not an absolute URL", c.Inventory.URL))
		}
	}
	if c.Inventory.PageSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("inventory.page_size must be positive, got %d", c.Inventory.PageSize))
	}
	if c.Inventory.RequestsPerSecond < 0 {
		result = multierror.Append(result, errors.New("inventory.requests_per_second must not be negative"))
	}
	if c.SSH.Port <= 0 || c.SSH.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("ssh.port %d out of range", c.SSH.Port))
	}
	if c.Reservation.Tries < 0 {
		result = multierror.Append(result, errors.New("reservation.tries must not be negative"))
	}
	if c.Storage.Endpoint != "" && !strings.HasPrefix(c.Storage.Endpoint, "http") {
		result = multierror.Append(result, fmt.Errorf("storage.endpoint %q must start with http:// or https://", c.Storage.Endpoint))
	}
	return result.ErrorOrNil()
}
