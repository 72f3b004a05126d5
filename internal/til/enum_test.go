package til

import (
	"bytes"
	"testing"

	"github.com/goidb/idb/internal/varint"
	"github.com/stretchr/testify/require"
)

func TestReadEnumRawRegularMembers(t *testing.T) {
	// dt(memberNum=2) -> 0x03; no TAH (bte byte 0x80 isn't 0xFE); bte=0x80
	// (bteAlways set, storage size absent, hex output, not bitmask);
	// two DE deltas 5 and 5 (cumulative: 5, 10).
	data := []byte{0x03, 0x80, 0x05, 0x05}
	r := varint.NewReader(bytes.NewReader(data), false)
	raw, err := readEnumRaw(r, &SectionHeader{})
	require.NoError(t, err)
	require.Nil(t, raw.ref)
	require.Equal(t, []uint64{5, 10}, raw.nonRef.members.regular)
	require.EqualValues(t, 0, raw.nonRef.storageSize)
	require.Equal(t, EnumFormatHex, raw.nonRef.outputFormat)
	require.False(t, raw.nonRef.is64)

	fields := NewFieldNames([][]byte{[]byte("A"), []byte("B")})
	e, err := newEnum(&SectionHeader{}, raw, fields)
	require.NoError(t, err)
	require.Len(t, e.NonRef.Members.Regular, 2)
	require.Equal(t, EnumMember{Name: "A", Value: 5}, e.NonRef.Members.Regular[0])
	require.Equal(t, EnumMember{Name: "B", Value: 10}, e.NonRef.Members.Regular[1])
}

func TestReadEnumRawBitmaskMembers(t *testing.T) {
	// dt(memberNum=1) -> 0x02; bte = bteAlways|bteBitfield = 0x90;
	// one group: dt(groupNum=2) -> 0x03, mask DE=0x0F, one sub-member DE=0x01.
	data := []byte{0x02, 0x90, 0x03, 0x0F, 0x01}
	r := varint.NewReader(bytes.NewReader(data), false)
	raw, err := readEnumRaw(r, &SectionHeader{})
	require.NoError(t, err)
	require.Len(t, raw.nonRef.members.bitmask, 1)
	require.EqualValues(t, 0x0F, raw.nonRef.members.bitmask[0].mask)
	require.Equal(t, []uint64{1}, raw.nonRef.members.bitmask[0].members)

	fields := NewFieldNames([][]byte{[]byte("FLAGS"), []byte("BIT0")})
	e, err := newEnum(&SectionHeader{}, raw, fields)
	require.NoError(t, err)
	require.Len(t, e.NonRef.Members.Groups, 1)
	require.Equal(t, "FLAGS", e.NonRef.Members.Groups[0].Field.Name)
	require.EqualValues(t, 0x0F, e.NonRef.Members.Groups[0].Field.Value)
	require.Len(t, e.NonRef.Members.Groups[0].SubFields, 1)
	require.Equal(t, "BIT0", e.NonRef.Members.Groups[0].SubFields[0].Name)
	require.EqualValues(t, 1, e.NonRef.Members.Groups[0].SubFields[0].Value)
}

func TestReadEnumRawRef(t *testing.T) {
	data := append(append([]byte{0x01}, refBlob("Foo")...), 0x00)
	r := varint.NewReader(bytes.NewReader(data), false)
	raw, err := readEnumRaw(r, &SectionHeader{})
	require.NoError(t, err)
	require.NotNil(t, raw.ref)
	require.Equal(t, "Foo", string(raw.ref.Name))

	e, err := newEnum(&SectionHeader{}, raw, NewFieldNames(nil))
	require.NoError(t, err)
	require.NotNil(t, e.Ref)
}

func TestReadEnumRawRejectsBadBte(t *testing.T) {
	data := []byte{0x03, 0x00} // bte missing the bteAlways bit
	r := varint.NewReader(bytes.NewReader(data), false)
	_, err := readEnumRaw(r, &SectionHeader{})
	require.Error(t, err)
}
