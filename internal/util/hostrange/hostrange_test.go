package hostrange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		expr string
		want []string
	}{
		{
			name: "no range",
			expr: "web01.example.com",
			want: []string{"web01.example.com"},
		},
		{
			name: "numeric range keeps padding",
			expr: "web08:11.example.com",
			want: []string{"web08.example.com", "web09.example.com", "web10.example.com", "web11.example.com"},
		},
		{
			name: "numeric range without padding",
			expr: "node1:3",
			want: []string{"node1", "node2", "node3"},
		},
		{
			name: "letter range",
			expr: "rackA:C.dc1",
			want: []string{"rackA.dc1", "rackB.dc1", "rackC.dc1"},
		},
		{
			name: "only first range expanded",
			expr: "h1:2-x1:2",
			want: []string{"h1-x1:2", "h2-x1:2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpand_Reversed(t *testing.T) {
	t.Parallel()

	_, err := Expand("web10:01")
	assert.Error(t, err)

	_, err = Expand("rackZ:A")
	assert.Error(t, err)
}

func TestExpandAll_Deduplicates(t *testing.T) {
	t.Parallel()

	got, err := ExpandAll([]string{"web1:3", "web2", "db1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"web1", "web2", "web3", "db1"}, got)
}
