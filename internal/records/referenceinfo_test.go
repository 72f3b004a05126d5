package records

import (
	"testing"

	"github.com/goidb/idb/internal/btree"
	"github.com/goidb/idb/internal/keyschema"
	"github.com/stretchr/testify/require"
)

func TestOperandToAlt(t *testing.T) {
	require.Equal(t, uint8(9), operandToAlt(0))
	require.Equal(t, uint8(11), operandToAlt(2))
	require.Equal(t, uint8(30), operandToAlt(3))
	require.Equal(t, uint8(26), operandToAlt(8))
}

func TestGetReferenceInfoDecodesTargetOnly(t *testing.T) {
	key := append(supAltKeyUint(netnodeKeyPrefix[uint32](0x20), tagArraySup, uint32(operandToAlt(0)), false))
	s := keyschema.New(&btree.Section{Entries: []btree.Entry{
		{Key: key, Value: []byte{0x12, 0x05}},
	}}, false)

	info, ok, err := GetReferenceInfo[uint32](s, 0x20, 0, false, false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, RefOff32, info.Flags.RefType())
	require.NotNil(t, info.Target)
	require.Equal(t, uint32(5), *info.Target)
	require.Nil(t, info.Base)
	require.Nil(t, info.Tdelta)
}

func TestGetReferenceInfoMissing(t *testing.T) {
	s := keyschema.New(&btree.Section{}, false)
	_, ok, err := GetReferenceInfo[uint32](s, 0x20, 0, false, false)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReferenceInfoRejectsInvalidType(t *testing.T) {
	_, err := readReferenceInfo[uint32]([]byte{0x0B}, false, false)
	require.Error(t, err)
}
