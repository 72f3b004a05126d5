package keyschema

import (
	"testing"

	"github.com/goidb/idb/internal/btree"
	"github.com/stretchr/testify/require"
)

func entries(pairs ...[2]string) []btree.Entry {
	out := make([]btree.Entry, len(pairs))
	for i, p := range pairs {
		out[i] = btree.Entry{Key: []byte(p[0]), Value: []byte(p[1])}
	}
	return out
}

func TestGetAndSubValues(t *testing.T) {
	s := New(&btree.Section{Entries: entries(
		[2]string{".\x00\x00\x00\x05SA", "seg-a"},
		[2]string{".\x00\x00\x00\x05SB", "seg-b"},
		[2]string{".\x00\x00\x00\x05T", "not-a-seg"},
		[2]string{"N$ segs", "\x00\x00\x00\x05"},
		[2]string{"NRoot Node", "ignored"},
	)}, false)

	entry, ok := s.GetString("N$ segs")
	require.True(t, ok)
	require.Equal(t, "\x00\x00\x00\x05", string(entry.Value))

	sub := s.SubValues([]byte(".\x00\x00\x00\x05S"))
	require.Len(t, sub, 2)
	require.Equal(t, "seg-a", string(sub[0].Value))
	require.Equal(t, "seg-b", string(sub[1].Value))
}

func TestNetnodeByName(t *testing.T) {
	// netnode id 5 stored little-endian as a raw 4-byte value;
	// reversedNetnodeKey byte-reverses it into the big-endian key form.
	s := New(&btree.Section{Entries: entries(
		[2]string{"N$ segs", "\x05\x00\x00\x00"},
	)}, false)
	prefix, ok := s.NetnodeByName("$ segs")
	require.True(t, ok)
	require.Equal(t, []byte(".\x00\x00\x00\x05"), prefix)

	_, ok = s.NetnodeByName("$ missing")
	require.False(t, ok)
}

func TestAddressKey32And64(t *testing.T) {
	s32 := New(&btree.Section{}, false)
	require.Equal(t, []byte(".\x00\x40\x10\x00"), s32.AddressKey(0x00401000))

	s64 := New(&btree.Section{}, true)
	require.Equal(t, []byte(".\x00\x00\x00\x00\x00\x40\x10\x00"), s64.AddressKey(0x00401000))
}

func TestGetInclusiveRange(t *testing.T) {
	s := New(&btree.Section{Entries: entries(
		[2]string{"A", "1"},
		[2]string{"B", "2"},
		[2]string{"BX", "3"},
		[2]string{"C", "4"},
		[2]string{"D", "5"},
	)}, false)
	r := s.GetInclusiveRange([]byte("B"), []byte("C"))
	keys := make([]string, len(r))
	for i, e := range r {
		keys[i] = string(e.Key)
	}
	require.Equal(t, []string{"B", "BX", "C"}, keys)
}

func TestParseNumber(t *testing.T) {
	v, ok := ParseNumber([]byte{0xFF, 0xFF, 0xFF, 0xFA}, true, false)
	require.True(t, ok)
	require.Equal(t, int64(-6), v)

	v, ok = ParseNumber([]byte{0x00, 0x00, 0x00, 0x0A}, false, false)
	require.True(t, ok)
	require.Equal(t, int64(10), v)

	_, ok = ParseNumber([]byte{0x00}, false, false)
	require.False(t, ok)
}

func TestParseMaybeCString(t *testing.T) {
	s, ok := ParseMaybeCString([]byte("hello\x00"))
	require.True(t, ok)
	require.Equal(t, "hello", string(s))

	_, ok = ParseMaybeCString([]byte("hel\x00lo"))
	require.False(t, ok)

	s, ok = ParseMaybeCString([]byte("noterm"))
	require.True(t, ok)
	require.Equal(t, "noterm", string(s))
}
