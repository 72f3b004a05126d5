package records

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNetdeltaRoundTrip(t *testing.T) {
	delta := NetdeltaFromImageBase[uint32](0x00400000)
	node := delta.EaToNode(0x00401020)
	require.Equal(t, uint32(0x00001020), node)
	require.Equal(t, uint32(0x00401020), delta.NodeToEa(node))
}

func TestNetdeltaZeroImageBase(t *testing.T) {
	delta := NetdeltaFromImageBase[uint64](0)
	require.Equal(t, uint64(0x1234), delta.EaToNode(0x1234))
}
