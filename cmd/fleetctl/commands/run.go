package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/imamik/fleetctl/cmd/fleetctl/handlers"
)

// Run returns the run command.
//
// The exit status of the run command is the number of hosts the command
// failed on.
func Run() *cobra.Command {
	var opts handlers.RunOptions

	cmd := &cobra.Command{
		Use:   "run -- <command>",
		Short: "Run a command on many hosts in parallel",
		Long: `Run executes a shell command on every selected host over SSH and
prints the exit code and output per host.

The exit status is the number of hosts where the command failed.

Example:
  fleetctl run --hosts node01:20 -- uname -r
  fleetctl run --search "hostgroup=fleet-web" --parallel 5 -- systemctl restart app`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = strings.Join(args, " ")
			return handlers.Run(cmd.Context(), globals(cmd), opts)
		},
	}

	addTargetFlags(cmd, &opts.Target)
	cmd.Flags().IntVarP(&opts.Parallel, "parallel", "P", 0, "Maximum concurrent hosts (default: all)")

	return cmd
}
