// Package main is the entry point for the fleetctl CLI.
//
// fleetctl reserves, provisions and releases hosts tracked by a shared
// Inventory Service. Reservations are all-or-nothing, hosts can be checked
// over SSH and rebuilt into another profile, and commands can be run on
// many hosts in parallel.
//
// For detailed usage information, run:
//
//	fleetctl --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/fleetctl/cmd/fleetctl/commands"
	"github.com/imamik/fleetctl/internal/util/async"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Root().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(async.ExitCode(err))
	}
}
