package til

import (
	"bytes"
	"testing"

	"github.com/goidb/idb/internal/varint"
	"github.com/stretchr/testify/require"
)

func TestReadUnionRawNonRef(t *testing.T) {
	// dt_de(n=16): memCnt=2, alpow=0. Members carry no per-member sdacl.
	data := []byte{0x11, btVoid, btInt8 | btmtChar}
	r := varint.NewReader(bytes.NewReader(data), false)
	raw, err := readUnionRaw(r, &SectionHeader{})
	require.NoError(t, err)
	require.Nil(t, raw.ref)
	require.Len(t, raw.nonRef.members, 2)

	fields := NewFieldNames([][]byte{[]byte("a"), []byte("b")})
	u, err := newUnion(&SectionHeader{}, raw, fields)
	require.NoError(t, err)
	require.Len(t, u.NonRef.Members, 2)
	require.Equal(t, "a", u.NonRef.Members[0].Name)
	require.Equal(t, BasicVoid, u.NonRef.Members[0].MemberType.Variant.Basic.Kind)
	require.Equal(t, "b", u.NonRef.Members[1].Name)
	require.Equal(t, BasicChar, u.NonRef.Members[1].MemberType.Variant.Basic.Kind)
}

func TestReadUnionRawRef(t *testing.T) {
	data := append(append([]byte{0x01}, refBlob("Foo")...), 0x00)
	r := varint.NewReader(bytes.NewReader(data), false)
	raw, err := readUnionRaw(r, &SectionHeader{})
	require.NoError(t, err)
	require.NotNil(t, raw.ref)

	u, err := newUnion(&SectionHeader{}, raw, NewFieldNames(nil))
	require.NoError(t, err)
	require.NotNil(t, u.Ref)
	require.Equal(t, "Foo", string(u.Ref.RefType.Variant.Typedef.Name))
}
