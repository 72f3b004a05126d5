package records

import (
	"testing"

	"github.com/goidb/idb/internal/btree"
	"github.com/goidb/idb/internal/keyschema"
	"github.com/stretchr/testify/require"
)

// segValueBytes builds one "$ segs" array-sup entry value where every
// field fits a single UnpackDD byte (<=0x7F), in Segment's field order.
func segValueBytes(startEA, size, nameID, classID, orgBase, flags, align, comb, perm, bitness, segType byte, color byte) []byte {
	out := []byte{startEA, size, nameID, classID, orgBase, flags, align, comb, perm, bitness, segType, 0}
	for i := 0; i < 16; i++ {
		out = append(out, 0)
	}
	out = append(out, color)
	return out
}

func TestSegmentsDecode(t *testing.T) {
	s := keyschema.New(&btree.Section{Entries: []btree.Entry{
		{Key: []byte(".\x00\x00\x00\x05S\x00\x00\x00\x00"), Value: segValueBytes(0x10, 0x20, 1, 2, 0, 3, 4, 0, 5, 1, 2, 7)},
		{Key: []byte(".\x00\x00\x00\x05S\x00\x00\x00\x01"), Value: segValueBytes(0x30, 0x10, 3, 4, 0, 0, 0, 0, 0, 0, 0, 9)},
		{Key: []byte("N$ segs"), Value: []byte("\x05\x00\x00\x00")},
	}}, false)

	segs, err := Segments[uint32](s, false)
	require.NoError(t, err)
	require.Len(t, segs, 2)
	require.Equal(t, uint32(0x10), segs[0].StartEA)
	require.Equal(t, uint32(0x20), segs[0].Size)
	require.Equal(t, uint32(7), segs[0].Color)
	require.Equal(t, uint32(0x30), segs[1].StartEA)
	require.Equal(t, uint32(9), segs[1].Color)
}

func TestSegmentsMissingNetnode(t *testing.T) {
	s := keyschema.New(&btree.Section{}, false)
	segs, err := Segments[uint32](s, false)
	require.NoError(t, err)
	require.Nil(t, segs)
}

func TestSegmentNameFallback(t *testing.T) {
	s := keyschema.New(&btree.Section{Entries: []btree.Entry{
		{Key: []byte(".\xff\x00\x00\x05N"), Value: []byte("text\x00")},
	}}, false)
	name, ok := SegmentName(s, 5)
	require.True(t, ok)
	require.Equal(t, "text", string(name))
}
