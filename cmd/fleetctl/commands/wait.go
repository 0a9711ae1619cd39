package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imamik/fleetctl/cmd/fleetctl/handlers"
)

// WaitForBuild returns the wait-for-build command.
func WaitForBuild() *cobra.Command {
	var (
		target  handlers.Target
		timeout int
	)

	cmd := &cobra.Command{
		Use:   "wait-for-build",
		Short: "Wait until hosts are built and reachable over SSH",
		Long: `Wait-for-build checks the selected hosts once a minute until the
inventory reports them built and they answer over SSH.

Example:
  fleetctl wait-for-build --hosts node01:04 --timeout 45`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if timeout <= 0 {
				return fmt.Errorf("--timeout must be positive, got %d", timeout)
			}
			return handlers.WaitForBuild(cmd.Context(), globals(cmd), target, timeout)
		},
	}

	addTargetFlags(cmd, &target)
	cmd.Flags().IntVar(&timeout, "timeout", 30, "Minutes to wait before failing")

	return cmd
}
