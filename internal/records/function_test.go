package records

import (
	"testing"

	"github.com/goidb/idb/internal/arch"
	"github.com/goidb/idb/internal/btree"
	"github.com/goidb/idb/internal/keyschema"
	"github.com/stretchr/testify/require"
)

func TestSaturatingAddClampsInsteadOfWrapping(t *testing.T) {
	require.Equal(t, arch.MaxValue[uint32](), saturatingAdd(uint32(0xFFFFFFF0), uint32(0x20)))
	require.Equal(t, uint32(0x30), saturatingAdd(uint32(0x10), uint32(0x20)))
}

func TestReadIDBFunctionNonTail(t *testing.T) {
	value := []byte{
		0x10, 0x20, // address range: start, length
		0x00,       // flags word (no tail bit)
		0x80, 0x99, // owner offset, two-byte dd form (non-tail: treated as frame directly)
		0x01,       // frsize
		0x02,       // frregs
		0x03,       // argsize
		0x04,       // pntqty
		0x00,       // unknown1
		0x05,       // llabelqty
		0x06,       // regargqty
		0x00,       // colorRaw (0 => no color)
		0x07,       // tailqty
		0x08,       // fpd
	}
	fn, err := readIDBFunction[uint32](value, false)
	require.NoError(t, err)
	require.Equal(t, uint32(0x10), fn.Address.Start)
	require.Equal(t, uint32(0x30), fn.Address.End)
	require.False(t, fn.Flags.IsTail())
	require.NotNil(t, fn.NonTail)
	require.Nil(t, fn.Tail)
	require.Equal(t, uint32(0x99), fn.NonTail.Frame)
	require.Equal(t, uint32(1), fn.NonTail.Frsize)
	require.Equal(t, uint16(2), fn.NonTail.Frregs)
	require.Equal(t, uint32(3), fn.NonTail.Argsize)
	require.Nil(t, fn.NonTail.Color)
	require.Equal(t, uint32(8), fn.NonTail.Fpd)
}

func TestFunctionsDecodesEveryEntry(t *testing.T) {
	nonTailValue := []byte{0x10, 0x20, 0x00, 0x80, 0x99, 0x01, 0x02, 0x03, 0x04, 0x00, 0x05, 0x06, 0x00, 0x07, 0x08}
	s := keyschema.New(&btree.Section{Entries: []btree.Entry{
		{Key: []byte(".\x00\x00\x00\x09S\x00\x00\x00\x00"), Value: nonTailValue},
		{Key: []byte("N$ funcs"), Value: []byte("\x09\x00\x00\x00")},
	}}, false)

	idx, ok := Funcs(s)
	require.True(t, ok)
	funcs, err := Functions[uint32](s, idx, false)
	require.NoError(t, err)
	require.Len(t, funcs, 1)
	require.Equal(t, uint32(0x10), funcs[0].Address.Start)
}

func TestEntryPointsAssemblesByKey(t *testing.T) {
	prefix := []byte(".\x00\x00\x00\x0A")
	s := keyschema.New(&btree.Section{Entries: []btree.Entry{
		{Key: append(append([]byte{}, prefix...), []byte("A\x00\x00\x00\x01")...), Value: []byte{0x11, 0x00, 0x00, 0x00}},
		{Key: append(append([]byte{}, prefix...), []byte("S\x00\x00\x00\x01")...), Value: []byte("start\x00")},
		{Key: []byte("N$ entry points"), Value: []byte("\x0A\x00\x00\x00")},
	}}, false)

	eps, err := EntryPoints[uint32](s)
	require.NoError(t, err)
	require.Len(t, eps, 1)
	require.Equal(t, "start", eps[0].Name)
	require.Equal(t, uint32(0x10), eps[0].Address)
}
