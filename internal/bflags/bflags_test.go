package bflags

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestByteInfoKindAndFlags(t *testing.T) {
	// FF_CODE | FF_COMM | value 0x41 | has-value
	raw := uint32(0x00000600 | 0x00000800 | 0x00000100 | 0x41)
	info := FromRaw(raw)
	require.True(t, info.IsCode())
	require.True(t, info.HasComment())
	require.True(t, info.HasValue())
	v, ok := info.Value()
	require.True(t, ok)
	require.Equal(t, byte(0x41), v)
}

func TestByteInfoDataType(t *testing.T) {
	info := FromRaw(0x00000400 | 0x20000000) // FF_DATA | FF_DWORD
	require.True(t, info.IsData())
	require.Equal(t, DataDword, info.DataType())
}

func TestOperandDecode(t *testing.T) {
	// operand0 nibble = 0x1 (hex) at bits 20-23
	raw := uint32(0x1) << 20
	info := FromRaw(raw)
	op, ok, err := info.Operand0(false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, OpHex, op)
}

func TestOperandReservedStrictVsLenient(t *testing.T) {
	raw := uint32(0xE) << 20
	info := FromRaw(raw)
	_, _, err := info.Operand0(false)
	require.Error(t, err)

	op, ok, err := info.Operand0(true)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, OpCustom, op)
}

func TestForcedOperandAltValue(t *testing.T) {
	alt, ok := ForcedOperandAltValue(3)
	require.True(t, ok)
	require.Equal(t, uint64(0x12), alt)

	_, ok = ForcedOperandAltValue(8)
	require.False(t, ok)
}

// buildID1VaX assembles a minimal VaX-layout ID1 header page plus its
// sequential segment data (32-bit arch).
func buildID1VaX(t *testing.T, segs [][2]uint32) []byte {
	t.Helper()
	var page bytes.Buffer
	page.WriteString("VA*\x00")
	binary.Write(&page, binary.LittleEndian, uint32(3))
	binary.Write(&page, binary.LittleEndian, uint32(len(segs)))
	binary.Write(&page, binary.LittleEndian, uint32(2048))
	binary.Write(&page, binary.LittleEndian, uint32(2)) // npages: header + 1 data page
	for _, s := range segs {
		binary.Write(&page, binary.LittleEndian, s[0])
		binary.Write(&page, binary.LittleEndian, s[1])
	}
	buf := make([]byte, id1PageSize)
	copy(buf, page.Bytes())

	for _, s := range segs {
		n := s[1] - s[0]
		for i := uint32(0); i < n; i++ {
			var word [4]byte
			binary.LittleEndian.PutUint32(word[:], 0x100+i) // has-value flag + i
			buf = append(buf, word[:]...)
		}
	}
	return buf
}

func TestID1ReadVaX(t *testing.T) {
	raw := buildID1VaX(t, [][2]uint32{{0x1000, 0x1004}})
	sec, err := Read[uint32](bytes.NewReader(raw), false)
	require.NoError(t, err)
	require.Len(t, sec.Segments, 1)

	info, ok := sec.ByteAt(0x1000)
	require.True(t, ok)
	v, ok := info.Value()
	require.True(t, ok)
	require.Equal(t, byte(0x00), v)

	info, ok = sec.ByteAt(0x1003)
	require.True(t, ok)
	v, ok = info.Value()
	require.True(t, ok)
	require.Equal(t, byte(0x03), v)

	_, ok = sec.ByteAt(0x2000)
	require.False(t, ok)
}

func TestID1AllBytesCoversUnion(t *testing.T) {
	raw := buildID1VaX(t, [][2]uint32{{0x1000, 0x1002}, {0x2000, 0x2002}})
	sec, err := Read[uint32](bytes.NewReader(raw), false)
	require.NoError(t, err)

	seen := map[uint32]bool{}
	sec.AllBytes(func(addr uint32, _ ByteInfo) bool {
		seen[addr] = true
		return true
	})
	require.Len(t, seen, 4)
	for _, want := range []uint32{0x1000, 0x1001, 0x2000, 0x2001} {
		require.Truef(t, seen[want], "expected %#x to be covered", want)
	}
}

func TestID1RejectsOverlappingSegments(t *testing.T) {
	raw := buildID1VaX(t, [][2]uint32{{0x1000, 0x1010}, {0x1008, 0x1020}})
	_, err := Read[uint32](bytes.NewReader(raw), false)
	require.Error(t, err)
}

func buildID2(t *testing.T, entries [][3]uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(id2Magic[:])
	buf.WriteByte(0) // ranges1 count = 0 (dd-encoded single byte)
	buf.WriteByte(0) // ranges2 count = 0

	var acc uint32
	for _, e := range entries {
		addr, info, length := e[0], e[1], e[2]
		delta := addr - acc
		writeDD(&buf, delta)
		acc = addr
		writeDD(&buf, info)
		writeDD(&buf, length)
	}
	// terminator: delta that brings acc to 0xFFFFFFFF
	writeDD(&buf, 0xFFFFFFFF-acc)
	return buf.Bytes()
}

// writeDD writes the dd varint codec's 5-byte form unconditionally, for
// test simplicity (a valid encoding regardless of magnitude).
func writeDD(buf *bytes.Buffer, v uint32) {
	buf.WriteByte(0xE0)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func TestID2ReadAndQueries(t *testing.T) {
	raw := buildID2(t, [][3]uint32{
		{0x1000, 0x00000600, 4}, // FF_CODE
		{0x1004, 0x00000200, 1}, // FF_TAIL
		{0x1008, 0x00000400, 2}, // FF_DATA
	})
	sec, err := ReadID2[uint32](bytes.NewReader(raw), false)
	require.NoError(t, err)
	require.Len(t, sec.Entries, 3)

	info, ok := sec.ByteAt(0x1000)
	require.True(t, ok)
	require.True(t, info.IsCode())

	_, ok = sec.ByteAt(0x1001)
	require.False(t, ok)

	noTails := sec.AllBytesNoTails()
	require.Len(t, noTails, 2)
}

func TestID2RejectsBadMagic(t *testing.T) {
	raw := append([]byte("NOTIDAS12"), 0, 0)
	_, err := ReadID2[uint32](bytes.NewReader(raw), false)
	require.Error(t, err)
}
