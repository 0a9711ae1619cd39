package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/fleetctl/cmd/fleetctl/handlers"
)

// UpdateReason returns the update-reason command.
func UpdateReason() *cobra.Command {
	var opts handlers.UpdateReasonOptions

	cmd := &cobra.Command{
		Use:   "update-reason <reason>",
		Short: "Change the reason of reserved hosts",
		Long: `Update-reason rewrites the reservation reason of the selected hosts.

The new reason is stamped with the time and user@machine unless
--add-ts=false, and tagged [USER_RESERVED] unless --add-tag=false.

Example:
  fleetctl update-reason --hosts node01:04 "kernel bisect, ask alice"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Reason = args[0]
			return handlers.UpdateReason(cmd.Context(), globals(cmd), opts)
		},
	}

	addTargetFlags(cmd, &opts.Target)
	boolFlag(cmd.Flags(), &opts.AddTimestamp, "add-ts", true, "Stamp the reason with time and origin")
	boolFlag(cmd.Flags(), &opts.AddTag, "add-tag", true, "Tag the reason with [USER_RESERVED]")

	return cmd
}
