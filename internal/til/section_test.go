package til

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"testing"

	"github.com/goidb/idb/internal/varint"
	"github.com/stretchr/testify/require"
)

func u32le(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// typeInfoRecordSpan builds one bucket record's raw bytes in the layout
// readTypeInfo expects: flags, name, u32 ordinal, a single-byte basic type,
// empty info/cmt strings, an empty field-name stream, an empty fieldcmts
// string, and a trailing sclass byte.
func typeInfoRecordSpan(name string, ordinal uint32) []byte {
	var buf bytes.Buffer
	buf.Write(u32le(0))             // flags
	buf.WriteString(name)           // name
	buf.WriteByte(0)                // name NUL
	buf.Write(u32le(ordinal))       // ordinal (u32 form)
	buf.WriteByte(btInt8 | btmtChar) // tinfo: a plain BasicChar
	buf.WriteByte(0)                // info (empty, NUL)
	buf.WriteByte(0)                // cmt (empty, NUL)
	buf.WriteByte(0)                // fieldnames (empty, NUL)
	buf.WriteByte(0)                // fieldcmts (empty, NUL)
	buf.WriteByte(0)                // sclass
	return buf.Bytes()
}

func minimalHeaderBytes(flags uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString(tilSectionMagic)
	buf.Write(u32le(0x12)) // format
	buf.Write(u32le(flags))
	buf.WriteByte(0) // title length 0
	buf.WriteByte(0) // description length 0
	buf.WriteByte(0) // id
	buf.WriteByte(0) // cm
	buf.WriteByte(4) // size_i
	buf.WriteByte(1) // size_b
	buf.WriteByte(4) // size_enum
	buf.WriteByte(4) // def_align
	return buf.Bytes()
}

func TestReadSectionPlainBuckets(t *testing.T) {
	record := typeInfoRecordSpan("MyType", 7)

	var buf bytes.Buffer
	buf.Write(minimalHeaderBytes(0))
	buf.Write(u32le(0)) // symbols ndefs
	buf.Write(u32le(0)) // symbols length
	buf.Write(u32le(1))                    // types ndefs
	buf.Write(u32le(uint32(len(record))))  // types length
	buf.Write(record)

	sec, err := ReadSection(bytes.NewReader(buf.Bytes()), false)
	require.NoError(t, err)
	require.Empty(t, sec.Symbols)
	require.Len(t, sec.Types, 1)
	require.Equal(t, "MyType", string(sec.Types[0].Name))
	require.EqualValues(t, 7, sec.Types[0].Ordinal)
	require.Equal(t, BasicChar, sec.Types[0].Info.Variant.Basic.Kind)
	require.EqualValues(t, 4, sec.SizeI)
	require.EqualValues(t, 1, sec.SizeB)
	require.False(t, sec.IsUniversal)
}

func TestReadSectionZipBuckets(t *testing.T) {
	record := typeInfoRecordSpan("Zipped", 3)

	compress := func(payload []byte) []byte {
		var out bytes.Buffer
		zw := zlib.NewWriter(&out)
		_, err := zw.Write(payload)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		return out.Bytes()
	}

	var buf bytes.Buffer
	buf.Write(minimalHeaderBytes(tilZip))

	symComp := compress(nil)
	buf.Write(u32le(0)) // symbols ndefs
	buf.Write(u32le(0)) // symbols inflated length
	buf.Write(u32le(uint32(len(symComp))))
	buf.Write(symComp)

	typeComp := compress(record)
	buf.Write(u32le(1)) // types ndefs
	buf.Write(u32le(uint32(len(record))))
	buf.Write(u32le(uint32(len(typeComp))))
	buf.Write(typeComp)

	sec, err := ReadSection(bytes.NewReader(buf.Bytes()), false)
	require.NoError(t, err)
	require.Len(t, sec.Types, 1)
	require.Equal(t, "Zipped", string(sec.Types[0].Name))
	require.EqualValues(t, 3, sec.Types[0].Ordinal)
}

func TestReadOrdinalsWithAliases(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(u32le(42)) // total
	buf.Write(u32le(5))
	buf.Write(u32le(9))
	buf.Write(u32le(0xFFFFFFFF))

	r := varint.NewReader(bytes.NewReader(buf.Bytes()), false)
	header := &SectionHeader{Flags: tilAli}
	ordinals, err := readOrdinals(r, header)
	require.NoError(t, err)
	require.Equal(t, []uint32{42, 5, 9}, ordinals)
}

func TestReadOrdinalsWithoutAliases(t *testing.T) {
	r := varint.NewReader(bytes.NewReader(u32le(42)), false)
	ordinals, err := readOrdinals(r, &SectionHeader{})
	require.NoError(t, err)
	require.Equal(t, []uint32{42}, ordinals)
}

func TestReadMacroWithParamAndChars(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("MAX")
	buf.WriteByte(0)
	binary.Write(&buf, binary.LittleEndian, uint16(0x102)) // haveParam, paramNum=2
	buf.WriteString("a")
	buf.WriteByte(0x81) // param ref: index 1
	buf.WriteByte(0)

	r := varint.NewReader(bytes.NewReader(buf.Bytes()), false)
	m, err := readMacro(r)
	require.NoError(t, err)
	require.Equal(t, "MAX", m.Name)
	require.NotNil(t, m.ParamNum)
	require.EqualValues(t, 2, *m.ParamNum)
	require.Equal(t, []MacroValue{
		{Kind: MacroValueChar, Byte: 'a'},
		{Kind: MacroValueParam, Byte: 1},
	}, m.Value)
}

func TestReadMacroParamlessDropsUnknownParamRefs(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("M")
	buf.WriteByte(0)
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // no param
	buf.WriteByte(0xA0)                                // 0x20 | 0x80: dropped, undocumented param ref
	buf.WriteByte(0)

	r := varint.NewReader(bytes.NewReader(buf.Bytes()), false)
	m, err := readMacro(r)
	require.NoError(t, err)
	require.Nil(t, m.ParamNum)
	require.Empty(t, m.Value)
}
