package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/fleetctl/cmd/fleetctl/handlers"
)

// Show returns the show command and its listings.
func Show() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "List hosts, reservations and profiles",
	}

	cmd.AddCommand(showListing(handlers.ListHosts, "List hosts with their profile and reason"))
	cmd.AddCommand(showListing(handlers.ListAvailable, "List free hosts"))
	cmd.AddCommand(showListing(handlers.ListReserved, "List reserved hosts"))
	cmd.AddCommand(showListing(handlers.ListStuck, "List hosts reserved for more than 23 hours"))
	cmd.AddCommand(showListing(handlers.ListUserReserved, "List hosts reserved by hand"))
	cmd.AddCommand(showListing(handlers.ListUnavailable, "List hosts that failed their SSH check"))

	cmd.AddCommand(&cobra.Command{
		Use:   "summary",
		Short: "Count hosts per profile and list unused profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.ShowSummary(cmd.Context(), globals(cmd))
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "profiles",
		Short: "List the provisionable profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.ShowProfiles(cmd.Context(), globals(cmd))
		},
	})

	return cmd
}

func showListing(what handlers.Listing, short string) *cobra.Command {
	var opts handlers.ShowOptions

	cmd := &cobra.Command{
		Use:   string(what),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Show(cmd.Context(), globals(cmd), what, opts)
		},
	}

	addTargetFlags(cmd, &opts.Target)
	if what == handlers.ListAvailable {
		cmd.Flags().IntVarP(&opts.Amount, "amount", "n", 0, "Show at most this many hosts")
	}

	return cmd
}
