package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables overriding file values.
const (
	EnvInventoryURL      = "FLEETCTL_INVENTORY_URL"
	EnvInventoryUser     = "FLEETCTL_INVENTORY_USER"
	EnvInventoryPassword = "FLEETCTL_INVENTORY_PASSWORD"
	EnvInventoryRPS      = "FLEETCTL_INVENTORY_RPS"
	EnvProfilePrefix     = "FLEETCTL_PROFILE_PREFIX"
	EnvSSHUser           = "FLEETCTL_SSH_USER"
	EnvSSHKey            = "FLEETCTL_SSH_KEY"
	EnvSSHDialTimeout    = "FLEETCTL_SSH_DIAL_TIMEOUT"
	EnvSSHCommandTimeout = "FLEETCTL_SSH_COMMAND_TIMEOUT"
	EnvSSHProbeCommand   = "FLEETCTL_SSH_PROBE_COMMAND"
	EnvReserveTries      = "FLEETCTL_RESERVE_TRIES"
	EnvReserveInterval   = "FLEETCTL_RESERVE_INTERVAL"
	EnvMetricsTextfile   = "FLEETCTL_METRICS_TEXTFILE"
	EnvConfig            = "FLEETCTL_CONFIG"
)

// DefaultPath returns where the configuration is read from when no
// --config is given: $FLEETCTL_CONFIG, else fleetctl/config.yaml in the
// user configuration directory. It returns "" when neither is known.
func DefaultPath() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "fleetctl", "config.yaml")
}

// Load reads the YAML file at path (if non-empty), applies environment
// overrides and validates the result. A missing file at the default
// location is not an error; pass required=true for an explicit --config.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()

	if path != "" {
		// #nosec G304
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !required:
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Inventory.URL = parseString(EnvInventoryURL, cfg.Inventory.URL)
	cfg.Inventory.Username = parseString(EnvInventoryUser, cfg.Inventory.Username)
	cfg.Inventory.Password = parseString(EnvInventoryPassword, cfg.Inventory.Password)
	cfg.Inventory.RequestsPerSecond = parseFloat(EnvInventoryRPS, cfg.Inventory.RequestsPerSecond)
	cfg.ProfilePrefix = parseString(EnvProfilePrefix, cfg.ProfilePrefix)
	cfg.SSH.User = parseString(EnvSSHUser, cfg.SSH.User)
	cfg.SSH.PrivateKeyPath = parseString(EnvSSHKey, cfg.SSH.PrivateKeyPath)
	cfg.SSH.DialTimeout = parseDuration(EnvSSHDialTimeout, cfg.SSH.DialTimeout)
	cfg.SSH.CommandTimeout = parseDuration(EnvSSHCommandTimeout, cfg.SSH.CommandTimeout)
	cfg.SSH.ProbeCommand = parseString(EnvSSHProbeCommand, cfg.SSH.ProbeCommand)
	cfg.Reservation.Tries = parseInt(EnvReserveTries, cfg.Reservation.Tries)
	cfg.Reservation.Interval = parseDuration(EnvReserveInterval, cfg.Reservation.Interval)
	cfg.Metrics.TextfilePath = parseString(EnvMetricsTextfile, cfg.Metrics.TextfilePath)
}

func parseString(envVar, defaultVal string) string {
	if val, ok := os.LookupEnv(envVar); ok && val != "" {
		return val
	}
	return defaultVal
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}

func parseFloat(envVar string, defaultVal float64) float64 {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}

	return f
}
