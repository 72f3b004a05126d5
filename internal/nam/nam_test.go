package nam

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildNamVaX assembles a minimal VaX-layout NAM section (32-bit arch):
// header, zero-padded to the default page size, followed by nnames raw
// u32 addresses and zero padding to fill out the rest of the data page.
func buildNamVaX(t *testing.T, names []uint32) []byte {
	t.Helper()
	var header bytes.Buffer
	header.WriteString("VA*\x00")
	binary.Write(&header, binary.LittleEndian, uint32(3))
	binary.Write(&header, binary.LittleEndian, uint32(0))
	binary.Write(&header, binary.LittleEndian, uint32(2048))
	binary.Write(&header, binary.LittleEndian, uint32(2)) // npages
	binary.Write(&header, binary.LittleEndian, uint32(0))
	binary.Write(&header, binary.LittleEndian, uint32(len(names)))

	page := make([]byte, defaultPageSize)
	copy(page, header.Bytes())

	var data bytes.Buffer
	for _, n := range names {
		binary.Write(&data, binary.LittleEndian, n)
	}
	// pad the rest of the data page with zeros
	dataPage := make([]byte, defaultPageSize)
	copy(dataPage, data.Bytes())

	return append(page, dataPage...)
}

func TestNamReadVaX(t *testing.T) {
	raw := buildNamVaX(t, []uint32{0x401000, 0x402000, 0x403000})
	sec, err := Read[uint32](bytes.NewReader(raw), false)
	require.NoError(t, err)
	require.Equal(t, []uint32{0x401000, 0x402000, 0x403000}, sec.Names)
}

func TestNamRejectsBadMagic(t *testing.T) {
	raw := buildNamVaX(t, nil)
	copy(raw, []byte("XXXX"))
	_, err := Read[uint32](bytes.NewReader(raw), false)
	require.Error(t, err)
}

func TestNamRejectsOversizedNameCount(t *testing.T) {
	// declare far more names than the single data page can hold.
	raw := buildNamVaX(t, nil)
	binary.LittleEndian.PutUint32(raw[24:28], 1<<20)
	_, err := Read[uint32](bytes.NewReader(raw), false)
	require.Error(t, err)
}
