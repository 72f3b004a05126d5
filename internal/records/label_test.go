package records

import (
	"testing"

	"github.com/goidb/idb/internal/btree"
	"github.com/goidb/idb/internal/keyschema"
	"github.com/stretchr/testify/require"
)

func TestLabelAtInlineTag(t *testing.T) {
	prefix := []byte(".\x00\x00\x00\x10")
	s := keyschema.New(&btree.Section{Entries: []btree.Entry{
		{Key: append(append([]byte{}, prefix...), tagName), Value: []byte("inline_name\x00")},
	}}, false)

	label, ok := LabelAt[uint32](s, prefix, 0x10)
	require.True(t, ok)
	require.Equal(t, "inline_name", label)
}

func TestLabelAtFallsBackToEntryPoints(t *testing.T) {
	prefix := []byte(".\x00\x00\x00\x10")
	epPrefix := []byte(".\x00\x00\x00\x0A")
	s := keyschema.New(&btree.Section{Entries: []btree.Entry{
		{Key: append(append([]byte{}, epPrefix...), []byte("A\x00\x00\x00\x01")...), Value: []byte{0x11, 0x00, 0x00, 0x00}},
		{Key: append(append([]byte{}, epPrefix...), []byte("S\x00\x00\x00\x01")...), Value: []byte("entry_name\x00")},
		{Key: []byte("N$ entry points"), Value: []byte("\x0A\x00\x00\x00")},
	}}, false)

	label, ok := LabelAt[uint32](s, prefix, 0x10)
	require.True(t, ok)
	require.Equal(t, "entry_name", label)
}

func TestLabelAtMissingEverywhere(t *testing.T) {
	prefix := []byte(".\x00\x00\x00\x10")
	s := keyschema.New(&btree.Section{}, false)

	_, ok := LabelAt[uint32](s, prefix, 0x10)
	require.False(t, ok)
}

func TestTypeInfoAtConcatenatesContinuations(t *testing.T) {
	prefix := []byte(".\x00\x00\x00\x20")
	key := func(alt uint32) []byte {
		return supAltKeyUint(prefix, tagArraySup, alt, false)
	}
	s := keyschema.New(&btree.Section{Entries: []btree.Entry{
		{Key: key(typeinfoBase), Value: []byte{0xAA, 0xBB}},
		{Key: key(typeinfoBase + 1), Value: []byte{0xCC, 0xDD}},
	}}, false)

	raw, ok := TypeInfoAt(s, prefix)
	require.True(t, ok)
	require.Equal(t, []byte{0xAA, 0xBB, 0xCC, 0xDD}, raw)
}

func TestTypeInfoAtAbsent(t *testing.T) {
	prefix := []byte(".\x00\x00\x00\x20")
	s := keyschema.New(&btree.Section{}, false)

	_, ok := TypeInfoAt(s, prefix)
	require.False(t, ok)
}
