// Package ui renders fleetctl output: job status lines, run summaries and
// host tables. Styling is dropped automatically when the output is not a
// terminal.
package ui
