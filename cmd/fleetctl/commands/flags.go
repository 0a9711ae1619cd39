package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/imamik/fleetctl/cmd/fleetctl/handlers"
)

// ParseBoolToken parses the true/false words older scripts pass as option
// values.
func ParseBoolToken(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "on", "1":
		return true, nil
	case "false", "f", "no", "n", "off", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q, use true or false", s)
}

// boolToken is a boolean flag accepting every ParseBoolToken word, so both
// --wait and --wait=false work.
type boolToken struct {
	value *bool
}

var _ pflag.Value = (*boolToken)(nil)

func (b *boolToken) Set(s string) error {
	v, err := ParseBoolToken(s)
	if err != nil {
		return err
	}
	*b.value = v
	return nil
}

func (b *boolToken) String() string {
	if b.value == nil {
		return "false"
	}
	return strconv.FormatBool(*b.value)
}

func (b *boolToken) Type() string {
	return "bool"
}

func boolFlag(fs *pflag.FlagSet, p *bool, name string, value bool, usage string) {
	*p = value
	f := fs.VarPF(&boolToken{value: p}, name, "", usage)
	f.NoOptDefVal = "true"
	f.DefValue = strconv.FormatBool(value)
}

func addTargetFlags(cmd *cobra.Command, t *handlers.Target) {
	cmd.Flags().StringSliceVarP(&t.Hosts, "hosts", "H", nil,
		"Host names or ranges such as node01:10 or rack-a:f, comma separated")
	cmd.Flags().StringVarP(&t.Search, "search", "s", "", "Inventory search query, e.g. \"hostgroup=fleet-web\"")
}
