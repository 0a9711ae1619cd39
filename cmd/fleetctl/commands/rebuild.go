package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/fleetctl/cmd/fleetctl/handlers"
)

// Rebuild returns the rebuild command.
func Rebuild() *cobra.Command {
	var opts handlers.RebuildOptions

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Reinstall hosts, optionally with another profile",
		Long: `Rebuild marks the selected hosts for a new build and reboots them.

With --profile the hosts are moved to that profile and its operating
system first. Hosts not yet reserved are reserved unless --reserve=false.
The command waits for the builds unless --wait=false and releases the hosts
unless --release=false.

Example:
  fleetctl rebuild --hosts node01:04 --profile fleet-db
  fleetctl rebuild --hosts node07 --wait=false --release=false`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Rebuild(cmd.Context(), globals(cmd), opts)
		},
	}

	addTargetFlags(cmd, &opts.Target)
	cmd.Flags().StringVarP(&opts.Profile, "profile", "p", "", "Profile to rebuild with (default: keep the current one)")
	cmd.Flags().StringVarP(&opts.Reason, "reason", "r", "", "Reason written while building (default RESERVED)")
	boolFlag(cmd.Flags(), &opts.Wait, "wait", true, "Wait until the hosts are built")
	boolFlag(cmd.Flags(), &opts.Reserve, "reserve", true, "Reserve hosts that are not reserved yet")
	boolFlag(cmd.Flags(), &opts.Release, "release", true, "Release the hosts at the end")
	cmd.Flags().IntVar(&opts.Timeout, "timeout", 0, "Minutes to wait for each build (default from config)")

	return cmd
}
