package til

import (
	"bytes"
	"testing"

	"github.com/goidb/idb/internal/varint"
	"github.com/stretchr/testify/require"
)

func readType(t *testing.T, header *SectionHeader, data []byte, fields *FieldNames) Type {
	t.Helper()
	r := varint.NewReader(bytes.NewReader(data), false)
	ty, err := ReadType(r, header, fields)
	require.NoError(t, err)
	return ty
}

func TestReadTypeBasicVoid(t *testing.T) {
	ty := readType(t, &SectionHeader{}, []byte{0x01}, nil)
	require.NotNil(t, ty.Variant.Basic)
	require.Equal(t, BasicVoid, ty.Variant.Basic.Kind)
	require.False(t, ty.IsConst)
	require.False(t, ty.IsVolatile)
}

func TestReadTypeBasicCharAndSegReg(t *testing.T) {
	ty := readType(t, &SectionHeader{}, []byte{btInt8 | btmtChar}, nil)
	require.Equal(t, BasicChar, ty.Variant.Basic.Kind)

	ty = readType(t, &SectionHeader{}, []byte{btInt | btmtChar}, nil)
	require.Equal(t, BasicSegReg, ty.Variant.Basic.Kind)
}

func TestReadTypeBasicIntSignedness(t *testing.T) {
	ty := readType(t, &SectionHeader{}, []byte{btInt | btmtSigned}, nil)
	require.Equal(t, BasicInt, ty.Variant.Basic.Kind)
	require.NotNil(t, ty.Variant.Basic.IsSigned)
	require.True(t, *ty.Variant.Basic.IsSigned)

	ty = readType(t, &SectionHeader{}, []byte{btInt32 | btmtUnsigned}, nil)
	require.Equal(t, BasicIntSized, ty.Variant.Basic.Kind)
	require.EqualValues(t, 4, ty.Variant.Basic.Bytes)
	require.False(t, *ty.Variant.Basic.IsSigned)

	ty = readType(t, &SectionHeader{}, []byte{btInt64 | btmtUnksign}, nil)
	require.Nil(t, ty.Variant.Basic.IsSigned)
}

func TestReadTypeBasicBoolUsesHeaderSizeB(t *testing.T) {
	ty := readType(t, &SectionHeader{SizeB: 1}, []byte{btBool | btmtDefbool}, nil)
	require.Equal(t, BasicBoolSized, ty.Variant.Basic.Kind)
	require.EqualValues(t, 1, ty.Variant.Basic.Bytes)

	ty = readType(t, &SectionHeader{}, []byte{btBool | btmtBool4}, nil)
	require.EqualValues(t, 4, ty.Variant.Basic.Bytes)
}

func TestReadTypeBasicFloatLongDoubleDefaultsTo8(t *testing.T) {
	ty := readType(t, &SectionHeader{}, []byte{btFloat | btmtDouble}, nil)
	require.EqualValues(t, 8, ty.Variant.Basic.Bytes)

	ty = readType(t, &SectionHeader{}, []byte{btFloat | btmtLngdbl}, nil)
	require.EqualValues(t, 8, ty.Variant.Basic.Bytes)

	ty = readType(t, &SectionHeader{SizeLongDouble: 10}, []byte{btFloat | btmtLngdbl}, nil)
	require.EqualValues(t, 10, ty.Variant.Basic.Bytes)
}

func TestReadTypeModifierBits(t *testing.T) {
	ty := readType(t, &SectionHeader{}, []byte{btVoid | btmConst | btmVolatile}, nil)
	require.True(t, ty.IsConst)
	require.True(t, ty.IsVolatile)
}

func TestReadTypeTypedefByName(t *testing.T) {
	data := []byte{btComplex | btmtTypedef, dtLen(3), 'F', 'o', 'o'}
	ty := readType(t, &SectionHeader{}, data, nil)
	require.NotNil(t, ty.Variant.Typedef)
	require.False(t, ty.Variant.Typedef.IsOrdinal)
	require.Equal(t, "Foo", string(ty.Variant.Typedef.Name))
}

func TestReadTypeTypedefByOrdinal(t *testing.T) {
	// inner buffer: '#' + DE(5)
	data := []byte{btComplex | btmtTypedef, dtLen(2), '#', 0x05}
	ty := readType(t, &SectionHeader{}, data, nil)
	require.True(t, ty.Variant.Typedef.IsOrdinal)
	require.EqualValues(t, 5, ty.Variant.Typedef.Ordinal)
}

func TestFieldNamesNextAndRemaining(t *testing.T) {
	f := NewFieldNames([][]byte{[]byte("a"), []byte("b")})
	require.Equal(t, 2, f.Remaining())
	require.Equal(t, "a", f.Next())
	require.Equal(t, 1, f.Remaining())
	require.Equal(t, "b", f.Next())
	require.Equal(t, 0, f.Remaining())
	require.Equal(t, "", f.Next())

	var nilFields *FieldNames
	require.Equal(t, "", nilFields.Next())
	require.Equal(t, 0, nilFields.Remaining())
}

// dtLen returns the single-byte ReadDT encoding of a small length (n <= 126).
func dtLen(n int) byte { return byte(n + 1) }
