package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/fleetctl/cmd/fleetctl/handlers"
)

// Release returns the release command.
func Release() *cobra.Command {
	var (
		target handlers.Target
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "release",
		Short: "Release reserved hosts",
		Long: `Release frees the selected hosts.

Without --hosts or --search every host is released. This asks for
confirmation on a terminal and needs --yes otherwise.

Example:
  fleetctl release --hosts node01:04
  fleetctl release --search "hostgroup=fleet-web"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Release(cmd.Context(), globals(cmd), target, yes)
		},
	}

	addTargetFlags(cmd, &target)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Release all hosts without asking")

	return cmd
}
