package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/fleetctl/cmd/fleetctl/handlers"
)

// Provision returns the provision command.
//
// The provision command reserves hosts of a profile. With --change-profile
// it may take free hosts of other profiles and rebuild them into the
// requested one.
func Provision() *cobra.Command {
	var opts handlers.ProvisionOptions

	cmd := &cobra.Command{
		Use:   "provision <profile>",
		Short: "Reserve hosts of a profile, rebuilding them when needed",
		Long: `Provision reserves --amount hosts of the given profile.

The profile prefix from the configuration is added to the profile name
when missing. Hosts of the profile are tried first; with --change-profile
free hosts of other profiles are reserved and rebuilt into the profile.
--force-rebuild reinstalls the hosts even when they already have it.

If any host fails to build in time every reserved host is released.

Example:
  fleetctl provision web --amount 3 --reason "release tests"
  fleetctl provision fleet-db --amount 1 --change-profile --outfile hosts.txt
  fleetctl provision web --amount 2 --outfile s3://ci-artifacts/run-42/hosts`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Profile = args[0]
			return handlers.Provision(cmd.Context(), globals(cmd), opts)
		},
	}

	addTargetFlags(cmd, &opts.Target)
	cmd.Flags().IntVarP(&opts.Amount, "amount", "n", 0, "Number of hosts to provision, 0 does nothing")
	cmd.Flags().StringVarP(&opts.Reason, "reason", "r", "", "Reservation reason")
	boolFlag(cmd.Flags(), &opts.ChangeProfile, "change-profile", false, "Rebuild free hosts of other profiles when needed")
	boolFlag(cmd.Flags(), &opts.ForceRebuild, "force-rebuild", false, "Rebuild the hosts even if they have the profile")
	boolFlag(cmd.Flags(), &opts.AddTag, "add-tag", true, "Tag the final reason with [USER_RESERVED]")
	cmd.Flags().IntVar(&opts.Tries, "tries", 300, "Reservation rounds before giving up")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "Pause between rounds (default from config)")
	cmd.Flags().IntVar(&opts.BuildTimeout, "build-timeout", 0, "Minutes to wait for a rebuild (default from config)")
	cmd.Flags().StringVarP(&opts.Outfile, "outfile", "o", "", "Write the host names to this file or s3:// location")

	return cmd
}
