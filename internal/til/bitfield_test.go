package til

import (
	"bytes"
	"testing"

	"github.com/goidb/idb/internal/varint"
	"github.com/stretchr/testify/require"
)

func TestReadBitfieldWidthAndUnsigned(t *testing.T) {
	// dt(width<<1 | unsigned) with width=3, unsigned=true -> dt value 7 -> byte 0x08.
	// Trailing 0x00 is a non-0xFE byte so the optional TAH block reads as absent.
	data := []byte{0x08, 0x00}
	r := varint.NewReader(bytes.NewReader(data), false)
	bf, err := readBitfield(r, btmtBfldi32)
	require.NoError(t, err)
	require.EqualValues(t, 4, bf.Nbytes)
	require.EqualValues(t, 3, bf.Width)
	require.True(t, bf.Unsigned)
}

func TestReadBitfieldContainerSizes(t *testing.T) {
	for flag, nbytes := range map[byte]uint8{
		btmtBfldi8:  1,
		btmtBfldi16: 2,
		btmtBfldi32: 4,
		btmtBfldi64: 8,
	} {
		data := []byte{0x02, 0x00} // dt value 1 -> width=0, unsigned=true
		r := varint.NewReader(bytes.NewReader(data), false)
		bf, err := readBitfield(r, flag)
		require.NoError(t, err)
		require.Equal(t, nbytes, bf.Nbytes)
	}
}

func TestReadBitfieldRejectsUnreachableSubFlag(t *testing.T) {
	data := []byte{0x02, 0x00}
	r := varint.NewReader(bytes.NewReader(data), false)
	_, err := readBitfield(r, 0xFF)
	require.Error(t, err)
}
