package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/fleetctl/cmd/fleetctl/handlers"
)

// Reserve returns the reserve command.
//
// The reserve command obtains exactly the requested number of hosts or
// none at all, retrying in rounds until enough hosts are free.
func Reserve() *cobra.Command {
	var opts handlers.ReserveOptions

	cmd := &cobra.Command{
		Use:   "reserve",
		Short: "Reserve hosts from the inventory",
		Long: `Reserve marks hosts as reserved with a reason.

Exactly --amount hosts are reserved, or none: hosts obtained in an
unsuccessful attempt are released again. With --ensure-ssh every host is
probed over SSH and unreachable ones are tagged [UNAVAILABLE] and released.

Example:
  fleetctl reserve --hosts node01:04 --reason "perf run"
  fleetctl reserve --search "hostgroup=fleet-web" --amount 2 --ensure-ssh=false`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Reserve(cmd.Context(), globals(cmd), opts)
		},
	}

	addTargetFlags(cmd, &opts.Target)
	cmd.Flags().IntVarP(&opts.Amount, "amount", "n", 0, "Number of hosts to reserve (default: number of --hosts)")
	cmd.Flags().StringVarP(&opts.Reason, "reason", "r", "", "Reservation reason")
	cmd.Flags().IntVar(&opts.Tries, "tries", 0, "Reservation rounds before giving up (default from config)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "Pause between rounds (default from config)")
	boolFlag(cmd.Flags(), &opts.EnsureSSH, "ensure-ssh", true, "Keep only hosts reachable over SSH")
	boolFlag(cmd.Flags(), &opts.AddTag, "add-tag", true, "Tag the reason with [USER_RESERVED]")

	return cmd
}
