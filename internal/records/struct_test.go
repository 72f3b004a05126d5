package records

import (
	"testing"

	"github.com/goidb/idb/internal/btree"
	"github.com/goidb/idb/internal/keyschema"
	"github.com/stretchr/testify/require"
)

func TestStructAtStripsLegacyPrefix(t *testing.T) {
	s := keyschema.New(&btree.Section{Entries: []btree.Entry{
		{Key: []byte(".\x00\x00\x00\x10N"), Value: []byte("$$ MyStruct")},
		{Key: []byte(".\x00\x00\x00\x11N"), Value: []byte("Legacy")},
	}}, false)

	name, ok := StructAt[uint32](s, 0x10)
	require.True(t, ok)
	require.Equal(t, "MyStruct", string(name))

	name, ok = StructAt[uint32](s, 0x11)
	require.True(t, ok)
	require.Equal(t, "Legacy", string(name))

	_, ok = StructAt[uint32](s, 0x99)
	require.False(t, ok)
}
