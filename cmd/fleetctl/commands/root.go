// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/imamik/fleetctl/cmd/fleetctl/handlers"
)

// Root returns the root command for the fleetctl CLI.
//
// The root command owns the flags shared by every subcommand and installs
// the logger into the command context before any subcommand runs.
func Root() *cobra.Command {
	var verbosity int

	cmd := &cobra.Command{
		Use:           "fleetctl",
		Short:         "Reserve and provision hosts from a shared inventory",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger := handlers.NewLogger(os.Stderr, verbosity)
			cmd.SetContext(logr.NewContext(cmd.Context(), logger))
		},
	}

	cmd.PersistentFlags().StringP("config", "c", "",
		"Path to configuration file (default $FLEETCTL_CONFIG or the user config dir)")
	cmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity, repeatable")

	// Reservation
	cmd.AddCommand(Reserve())
	cmd.AddCommand(Release())
	cmd.AddCommand(UpdateReason())

	// Provisioning
	cmd.AddCommand(Provision())
	cmd.AddCommand(Rebuild())
	cmd.AddCommand(WaitForBuild())

	// Utility commands
	cmd.AddCommand(Run())
	cmd.AddCommand(Show())
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}

// globals reads the shared flags of the executing command.
func globals(cmd *cobra.Command) handlers.Globals {
	var g handlers.Globals
	if f := cmd.Flag("config"); f != nil {
		g.ConfigPath = f.Value.String()
		g.ConfigRequired = f.Changed
	}
	return g
}
