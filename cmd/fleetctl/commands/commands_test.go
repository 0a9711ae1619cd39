package commands

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommands_TargetFlags(t *testing.T) {
	for _, cmd := range []*cobra.Command{Reserve(), Release(), UpdateReason(), Provision(), Rebuild(), WaitForBuild(), Run()} {
		t.Run(cmd.Name(), func(t *testing.T) {
			hosts := cmd.Flags().Lookup("hosts")
			require.NotNil(t, hosts)
			assert.Equal(t, "H", hosts.Shorthand)

			search := cmd.Flags().Lookup("search")
			require.NotNil(t, search)
			assert.Equal(t, "s", search.Shorthand)

			assert.NotNil(t, cmd.RunE)
		})
	}
}

func TestReserve_Flags(t *testing.T) {
	cmd := Reserve()

	assert.Equal(t, "reserve", cmd.Use)
	assert.Contains(t, cmd.Long, "Exactly --amount hosts are reserved, or none")
	assert.Equal(t, "true", cmd.Flags().Lookup("ensure-ssh").DefValue)
	assert.Equal(t, "true", cmd.Flags().Lookup("add-tag").DefValue)
	assert.Equal(t, "0", cmd.Flags().Lookup("amount").DefValue)
}

func TestRelease_Flags(t *testing.T) {
	cmd := Release()

	yes := cmd.Flags().Lookup("yes")
	require.NotNil(t, yes)
	assert.Equal(t, "y", yes.Shorthand)
	assert.Equal(t, "false", yes.DefValue)
}

func TestUpdateReason_RequiresReason(t *testing.T) {
	cmd := UpdateReason()

	assert.Error(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{"new reason"}))
	assert.Equal(t, "true", cmd.Flags().Lookup("add-ts").DefValue)
}

func TestProvision_Flags(t *testing.T) {
	cmd := Provision()

	assert.Equal(t, "provision <profile>", cmd.Use)
	assert.Error(t, cmd.Args(cmd, nil))
	assert.Equal(t, "300", cmd.Flags().Lookup("tries").DefValue)
	assert.Equal(t, "false", cmd.Flags().Lookup("change-profile").DefValue)
	assert.Equal(t, "false", cmd.Flags().Lookup("force-rebuild").DefValue)
	assert.Equal(t, "o", cmd.Flags().Lookup("outfile").Shorthand)
}

func TestRebuild_Flags(t *testing.T) {
	cmd := Rebuild()

	for _, name := range []string{"wait", "reserve", "release"} {
		f := cmd.Flags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, "true", f.DefValue, name)
	}
	assert.Equal(t, "p", cmd.Flags().Lookup("profile").Shorthand)
}

func TestWaitForBuild_RejectsNonPositiveTimeout(t *testing.T) {
	root := Root()
	root.SetArgs([]string{"wait-for-build", "--hosts", "node01", "--timeout", "0"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--timeout must be positive")
}

func TestRun_RequiresCommand(t *testing.T) {
	cmd := Run()

	assert.Error(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{"uname", "-r"}))
	assert.Equal(t, "P", cmd.Flags().Lookup("parallel").Shorthand)
}

func TestShow_Subcommands(t *testing.T) {
	cmd := Show()

	want := []string{"hosts", "available", "reserved", "stuck", "user-reserved", "unavailable", "summary", "profiles"}
	var got []string
	for _, sub := range cmd.Commands() {
		got = append(got, sub.Name())
	}
	assert.ElementsMatch(t, want, got)

	available, _, err := cmd.Find([]string{"available"})
	require.NoError(t, err)
	assert.NotNil(t, available.Flags().Lookup("amount"))

	reserved, _, err := cmd.Find([]string{"reserved"})
	require.NoError(t, err)
	assert.Nil(t, reserved.Flags().Lookup("amount"))
}
