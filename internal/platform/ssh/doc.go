// Package ssh runs commands on fleet hosts over SSH.
//
// An Executor keeps one idle connection per host and reuses it across
// calls. A transport break on any host resets the whole pool so later
// calls never reuse a stale connection. Host key verification is
// disabled unless a known_hosts file is configured.
package ssh
