package records

import (
	"testing"

	"github.com/goidb/idb/internal/btree"
	"github.com/goidb/idb/internal/keyschema"
	"github.com/stretchr/testify/require"
)

func TestFileRegionsDecodesAddressKeyAndRawValue(t *testing.T) {
	s := keyschema.New(&btree.Section{Entries: []btree.Entry{
		{Key: []byte(".\x00\x00\x00\x07S\x00\x00\x10\x00"), Value: []byte{0xAA, 0xBB}},
		{Key: []byte("N$ fileregions"), Value: []byte("\x07\x00\x00\x00")},
	}}, false)

	regions, err := FileRegions[uint32](s, 700)
	require.NoError(t, err)
	require.Len(t, regions, 1)
	require.Equal(t, uint32(0x1000), regions[0].Start)
	require.Equal(t, uint16(700), regions[0].Version)
	require.Equal(t, []byte{0xAA, 0xBB}, regions[0].Raw)
}

func TestFileRegionsMissingNetnode(t *testing.T) {
	s := keyschema.New(&btree.Section{}, false)
	regions, err := FileRegions[uint32](s, 700)
	require.NoError(t, err)
	require.Nil(t, regions)
}
