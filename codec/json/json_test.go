package json

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loqor/objectstore/codec"
)

func TestRoundTrip(t *testing.T) {
	c := New()
	in := codec.Primitive{"oid": "x", "type": "Thing", "n": float64(3)}

	data, err := c.Marshal(in)
	require.NoError(t, err)

	var out codec.Primitive
	require.NoError(t, c.Unmarshal(data, &out))
	require.Equal(t, in, out)
}
