package til

import (
	"bytes"
	"testing"

	"github.com/goidb/idb/internal/varint"
	"github.com/stretchr/testify/require"
)

// refBlob builds the "= dt_len(name) name" nested-ref payload read by
// readTypeRawRef's inner readTypeRaw call: a leading '=' byte dispatches as
// btComplex|btmtTypedef, and readTypedef then reads a plain by-name typedef.
func refBlob(name string) []byte {
	blob := append([]byte{'=', dtLen(len(name))}, []byte(name)...)
	return append([]byte{dtLen(len(blob))}, blob...)
}

func TestReadStructRawNonRef(t *testing.T) {
	// dt_de(n=16): memCnt=2, alpow=0 -> byte 0x11. No taudt (member1's own
	// type byte isn't an sdacl marker). Two plain members, trailing 0x00
	// keeps the final per-member ReadSDACL from hitting EOF.
	data := append([]byte{0x11, btInt32 | btmtSigned, btInt8 | btmtChar}, 0x00)
	r := varint.NewReader(bytes.NewReader(data), false)
	raw, err := readStructRaw(r, &SectionHeader{})
	require.NoError(t, err)
	require.Nil(t, raw.ref)
	require.Len(t, raw.nonRef.members, 2)
	require.EqualValues(t, 0, raw.nonRef.effectiveAlignment)

	fields := NewFieldNames([][]byte{[]byte("a"), []byte("b")})
	st, err := newStruct(&SectionHeader{}, raw, fields)
	require.NoError(t, err)
	require.Nil(t, st.Ref)
	require.Len(t, st.NonRef.Members, 2)
	require.Equal(t, "a", st.NonRef.Members[0].Name)
	require.Equal(t, BasicIntSized, st.NonRef.Members[0].MemberType.Variant.Basic.Kind)
	require.Equal(t, "b", st.NonRef.Members[1].Name)
	require.Equal(t, BasicChar, st.NonRef.Members[1].MemberType.Variant.Basic.Kind)
	require.False(t, st.NonRef.IsUnaligned)
	require.EqualValues(t, 0, st.NonRef.Alignment)
}

func TestReadStructRawRef(t *testing.T) {
	// dt_de sentinel 0 -> "reference follows".
	data := append(append([]byte{0x01}, refBlob("Foo")...), 0x00)
	r := varint.NewReader(bytes.NewReader(data), false)
	raw, err := readStructRaw(r, &SectionHeader{})
	require.NoError(t, err)
	require.NotNil(t, raw.ref)

	st, err := newStruct(&SectionHeader{}, raw, NewFieldNames(nil))
	require.NoError(t, err)
	require.NotNil(t, st.Ref)
	require.NotNil(t, st.Ref.RefType.Variant.Typedef)
	require.Equal(t, "Foo", string(st.Ref.RefType.Variant.Typedef.Name))
}

func TestStructModifierFromValue(t *testing.T) {
	unaligned, msstruct, cppObj, vftable, alignment, others := structModifierFromValue(taudtMsstruct | taudtCppObj | 0x3)
	require.True(t, msstruct)
	require.True(t, cppObj)
	require.False(t, unaligned)
	require.False(t, vftable)
	require.EqualValues(t, 4, alignment)
	require.EqualValues(t, 0, others)
}

func TestStructMemberAttStrType(t *testing.T) {
	var att *StructMemberAtt
	_, ok := att.StrType()
	require.False(t, ok)

	att = &StructMemberAtt{VarAorC: &StructMemberAttVarAorC{
		Val1: uint32(StringTypeUtf16LE),
		Att0: StructMemberAttBasic{Att: 0xa},
	}}
	st, ok := att.StrType()
	require.True(t, ok)
	require.Equal(t, StringTypeUtf16LE, st)
}
