package til

import (
	"bytes"
	"testing"

	"github.com/goidb/idb/internal/varint"
	"github.com/stretchr/testify/require"
)

func TestReadArrayRawNonBased(t *testing.T) {
	// dt(5) = 0x06, no TAH, element = uint8 (btInt8 | btmtUnsigned)
	data := []byte{0x06, btInt8 | btmtUnsigned}
	r := varint.NewReader(bytes.NewReader(data), false)
	raw, err := readArrayRaw(r, &SectionHeader{}, btmtNonbased)
	require.NoError(t, err)
	require.EqualValues(t, 5, raw.nelem)
	require.EqualValues(t, 0, raw.base)
	require.NotNil(t, raw.elemType.variant.Basic)
	require.Equal(t, BasicIntSized, raw.elemType.variant.Basic.Kind)
}

func TestReadArrayRawBasedAbsent(t *testing.T) {
	// No DA bytes and no TAH: a single 0x01 byte serves triple duty as the
	// "no DA data" / "no TAH" peek and the element's own Void metadata byte.
	data := []byte{0x01}
	r := varint.NewReader(bytes.NewReader(data), false)
	raw, err := readArrayRaw(r, &SectionHeader{}, 0)
	require.NoError(t, err)
	require.EqualValues(t, 0, raw.nelem)
	require.EqualValues(t, 0, raw.base)
	require.Equal(t, BasicVoid, raw.elemType.variant.Basic.Kind)
}

func TestNewArray(t *testing.T) {
	data := []byte{0x06, btInt8 | btmtUnsigned}
	r := varint.NewReader(bytes.NewReader(data), false)
	raw, err := readArrayRaw(r, &SectionHeader{}, btmtNonbased)
	require.NoError(t, err)
	arr, err := newArray(&SectionHeader{}, raw, NewFieldNames(nil))
	require.NoError(t, err)
	require.EqualValues(t, 5, arr.Nelem)
	require.Equal(t, BasicIntSized, arr.ElemType.Variant.Basic.Kind)
}
