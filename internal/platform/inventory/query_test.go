package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostsQuery(t *testing.T) {
	assert.Equal(t, "", HostsQuery())
	assert.Equal(t, "( name=a )", HostsQuery("a"))
	assert.Equal(t, "( name=a OR name=b OR name=c )", HostsQuery("a", "b", "c"))
}

func TestAnd(t *testing.T) {
	tests := []struct {
		name    string
		clauses []string
		want    string
	}{
		{"empty", nil, ""},
		{"single", []string{"hostgroup=web"}, "hostgroup=web"},
		{"skips blanks", []string{"", "hostgroup=web", " "}, "hostgroup=web"},
		{"atomic", []string{"name=a", "hostgroup=web"}, "name=a AND hostgroup=web"},
		{"grouped kept", []string{"( name=a OR name=b )", "hostgroup=web"}, "( name=a OR name=b ) AND hostgroup=web"},
		{"compound wrapped", []string{"name=a OR name=b", "hostgroup ~ fleet-%"}, "( name=a OR name=b ) AND ( hostgroup ~ fleet-% )"},
		{"two groups", []string{"(a=1) OR (b=2)", "c=3"}, "( (a=1) OR (b=2) ) AND c=3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, And(tt.clauses...))
		})
	}
}

func TestProfileQueries(t *testing.T) {
	assert.Equal(t, "hostgroup=web", ProfileQuery("web"))
	assert.Equal(t, "hostgroup ~ fleet-%", ProfilePrefixQuery("fleet-"))
	assert.Equal(t, "", ProfilePrefixQuery(""))
}
