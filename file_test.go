package idb

import (
	"testing"

	"github.com/goidb/idb/internal/btree"
	"github.com/goidb/idb/internal/keyschema"
	"github.com/goidb/idb/internal/records"
	"github.com/goidb/idb/internal/til"
	"github.com/stretchr/testify/require"
)

func newTestStore(entries []btree.Entry) *keyschema.Store {
	return keyschema.New(&btree.Section{Entries: entries}, false)
}

func TestAddressInfoComposesCommentsAndLabel(t *testing.T) {
	prefix := []byte(".\x00\x00\x00\x10")
	store := newTestStore([]btree.Entry{
		{Key: append(append([]byte{}, prefix...), 'N'), Value: []byte("my_label\x00")},
		{Key: append(append([]byte{}, prefix...), []byte("S\x00\x00\x00\x00")...), Value: []byte("regular\x00")},
		{Key: append(append([]byte{}, prefix...), []byte("S\x00\x00\x00\x01")...), Value: []byte("repeatable\x00")},
	})

	db := &DB[uint32]{store: store, lenient: false}
	info := db.AddressInfo(0x10)

	require.True(t, info.HasComment)
	require.Equal(t, "regular", info.Comment)
	require.True(t, info.HasRepeatable)
	require.Equal(t, "repeatable", info.CommentRepeatable)
	require.True(t, info.HasLabel)
	require.Equal(t, "my_label", info.Label)
	require.False(t, info.HasByte)
	require.Nil(t, info.CommentPre)
	require.Nil(t, info.Type)
}

func TestAddressInfoNetdeltaShiftsNetnodeKey(t *testing.T) {
	// netdelta = 0x100 means address 0x10 lives at netnode 0x110.
	netnodePrefix := []byte(".\x00\x00\x01\x10")
	store := newTestStore([]btree.Entry{
		{Key: append(append([]byte{}, netnodePrefix...), 'N'), Value: []byte("shifted\x00")},
	})

	db := &DB[uint32]{store: store, netdelta: records.NetdeltaFromImageBase[uint32](0xFFFFFF00)}
	info := db.AddressInfo(0x10)
	require.True(t, info.HasLabel)
	require.Equal(t, "shifted", info.Label)
}

func TestTypeByOrdinalOrNameByName(t *testing.T) {
	section := &til.Section{Types: []til.TypeInfo{
		{Name: []byte("my_struct"), Ordinal: 7, Info: til.Type{}},
	}}
	solver := til.NewSolver(section, &til.SectionHeader{})
	db := &DB[uint32]{solver: solver}

	ti, ok := db.TypeByOrdinalOrName("my_struct")
	require.True(t, ok)
	require.EqualValues(t, 7, ti.Ordinal)
}

func TestTypeByOrdinalOrNameByOrdinal(t *testing.T) {
	section := &til.Section{Types: []til.TypeInfo{
		{Name: []byte("my_struct"), Ordinal: 7, Info: til.Type{}},
	}}
	solver := til.NewSolver(section, &til.SectionHeader{})
	db := &DB[uint32]{solver: solver}

	ti, ok := db.TypeByOrdinalOrName("#7")
	require.True(t, ok)
	require.Equal(t, "my_struct", string(ti.Name))
}

func TestTypeByOrdinalOrNameNoSolver(t *testing.T) {
	db := &DB[uint32]{}
	_, ok := db.TypeByOrdinalOrName("anything")
	require.False(t, ok)
}

func TestDirTreeFunctionsWalksNamedDirtree(t *testing.T) {
	prefix := []byte{'.', 0x00, 0x00, 0x00, 0x50}
	rootValue := []byte{
		0x01, // version 1
		0x00, // name "" (empty cstring)
		0x00, // parent = 0
		0x00, // reserved
		0x01, // entries_len = 1
		0x01, // child[0] rel = 1 (absolute leaf number 1)
		0x00, // classify run: 0 folders
		0x01, // classify run: 1 leaf
	}
	rootKey := append(append([]byte{}, prefix...), []byte("S\x00\x00\x00\x00")...)
	store := newTestStore([]btree.Entry{
		{Key: rootKey, Value: rootValue},
		{Key: []byte("N$ dirtree/funcs"), Value: []byte{0x50, 0x00, 0x00, 0x00}},
	})

	db := &DB[uint32]{store: store}
	root, err := db.DirTreeFunctions()
	require.NoError(t, err)
	require.NotNil(t, root)
	require.Len(t, root.Entries, 1)
	require.True(t, root.Entries[0].IsLeaf)
	require.EqualValues(t, 1, root.Entries[0].Leaf)
}

func TestDirTreeFunctionsMissingNetnode(t *testing.T) {
	db := &DB[uint32]{store: newTestStore(nil)}
	root, err := db.DirTreeFunctions()
	require.NoError(t, err)
	require.Nil(t, root)
}

func TestStringCommentHelper(t *testing.T) {
	s, ok := stringComment([]byte("hi"), true)
	require.True(t, ok)
	require.Equal(t, "hi", s)

	s, ok = stringComment(nil, false)
	require.False(t, ok)
	require.Equal(t, "", s)
}
