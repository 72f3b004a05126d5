// Package keyschema implements the generic key-navigation primitives
// built on top of the flat, sorted ID0 entry list decoded by
// internal/btree: binary search, prefix range queries, and the
// named-netnode-to-numeric-netnode indirection nearly every IDB record
// family is built from.
//
// It deliberately stops at "here are the raw entries for this key
// prefix" — decoding what an entry's value bytes mean belongs to
// internal/records, one layer up.
package keyschema

import (
	"bytes"
	"sort"

	"github.com/goidb/idb/internal/btree"
)

// Store is a queryable view over a decoded ID0 section.
type Store struct {
	entries []btree.Entry
	is64    bool
}

// New wraps a decoded ID0 section for key-based lookups. is64 selects
// the fixed width (4 or 8 bytes) used for addresses and netnode ids
// embedded in keys.
func New(section *btree.Section, is64 bool) *Store {
	return &Store{entries: section.Entries, is64: is64}
}

// Is64 reports whether this database uses 64-bit addresses.
func (s *Store) Is64() bool { return s.is64 }

// Len returns the total number of entries in the store.
func (s *Store) Len() int { return len(s.entries) }

// All returns every entry, in sorted key order.
func (s *Store) All() []btree.Entry { return s.entries }

// binarySearch returns (index, true) for an exact key match, or
// (insertion point, false) otherwise — the Go equivalent of Rust's
// slice::binary_search_by_key.
func (s *Store) binarySearch(key []byte) (int, bool) {
	i := sort.Search(len(s.entries), func(i int) bool {
		return bytes.Compare(s.entries[i].Key, key) >= 0
	})
	if i < len(s.entries) && bytes.Equal(s.entries[i].Key, key) {
		return i, true
	}
	return i, false
}

// binarySearchEnd returns the index of the first entry past the run of
// keys that have prefix as a prefix — the upper bound of a sub_values
// scan.
func (s *Store) binarySearchEnd(prefix []byte) int {
	return sort.Search(len(s.entries), func(i int) bool {
		k := s.entries[i].Key
		return bytes.Compare(k, prefix) > 0 && !bytes.HasPrefix(k, prefix)
	})
}

// Get returns the single entry with an exact key match.
func (s *Store) Get(key []byte) (btree.Entry, bool) {
	i, ok := s.binarySearch(key)
	if !ok {
		return btree.Entry{}, false
	}
	return s.entries[i], true
}

// GetString is Get for a string key, the common case ("N$ segs" and
// similar named-netnode lookups).
func (s *Store) GetString(key string) (btree.Entry, bool) {
	return s.Get([]byte(key))
}

// SubValues returns every entry whose key has the given prefix, in
// sorted order — the primitive nearly every IDB record family iterates
// over once it has resolved a netnode's numeric id.
func (s *Store) SubValues(prefix []byte) []btree.Entry {
	start, _ := s.binarySearch(prefix)
	end := s.binarySearchEnd(prefix)
	if end < start {
		return nil
	}
	return s.entries[start:end]
}

// GetInclusiveRange returns every entry whose key falls in [start, end],
// treating end as a prefix bound (so a key that merely starts with end
// is included too).
func (s *Store) GetInclusiveRange(start, end []byte) []btree.Entry {
	lo, _ := s.binarySearch(start)
	hi := s.binarySearchEnd(end)
	if hi < lo {
		return nil
	}
	return s.entries[lo:hi]
}

// NetnodeByName resolves a named netnode (e.g. "$ segs", "Root Node")
// to the byte prefix used to address its sub-entries: the netnode's
// numeric id, byte-reversed, behind a leading '.' — ID0's
// netnode-indirection idiom: "N"+name holds the id as its value; every
// other record keyed off that netnode uses "." + reverse(id) + tag.
func (s *Store) NetnodeByName(name string) ([]byte, bool) {
	entry, ok := s.GetString("N" + name)
	if !ok {
		return nil, false
	}
	return reversedNetnodeKey(entry.Value), true
}

// reversedNetnodeKey builds the "." + reverse(id) key prefix shared by
// every accessor keyed off a resolved netnode id.
func reversedNetnodeKey(netnodeID []byte) []byte {
	out := make([]byte, 0, 1+len(netnodeID))
	out = append(out, '.')
	for i := len(netnodeID) - 1; i >= 0; i-- {
		out = append(out, netnodeID[i])
	}
	return out
}

// AddressKey builds the "." + address (big-endian, arch-width) key
// prefix used by every address-indexed record family (ID1-independent
// byte/name/comment info).
func (s *Store) AddressKey(address uint64) []byte {
	out := make([]byte, 1, 9)
	out[0] = '.'
	if s.is64 {
		var b [8]byte
		putBE64(b[:], address)
		out = append(out, b[:]...)
	} else {
		var b [4]byte
		putBE32(b[:], uint32(address))
		out = append(out, b[:]...)
	}
	return out
}

// NameByIndex resolves a segment/string index directly against the ID0
// tree (the fallback path used when no "$ segstrings" netnode exists):
// key "." + (index | 0xFF<<top-byte) + "N".
func (s *Store) NameByIndex(idx uint64) ([]byte, bool) {
	var key []byte
	if s.is64 {
		var b [8]byte
		putBE64(b[:], idx|(0xFF<<56))
		key = append([]byte{'.'}, b[:]...)
	} else {
		var b [4]byte
		putBE32(b[:], uint32(idx)|(0xFF<<24))
		key = append([]byte{'.'}, b[:]...)
	}
	key = append(key, 'N')
	entry, ok := s.Get(key)
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

func putBE32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func putBE64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (56 - 8*i))
	}
}

// ParseNumber reads a big-endian, arch-width-sized number out of a key
// or value fragment, as used for the numeric sub-key tags following a
// netnode's 'A'/'S' family selector. signed interprets the top bit as a
// sign extension into int64's range; ok is false if data's length does
// not match the expected width.
func ParseNumber(data []byte, signed bool, is64 bool) (value int64, ok bool) {
	width := 4
	if is64 {
		width = 8
	}
	if len(data) != width {
		return 0, false
	}
	var u uint64
	for _, b := range data {
		u = u<<8 | uint64(b)
	}
	if !signed {
		return int64(u), true
	}
	signBit := uint64(1) << (width*8 - 1)
	if u&signBit != 0 {
		u |= ^uint64(0) << (width * 8)
	}
	return int64(u), true
}

// ParseMaybeCString strips a single trailing NUL terminator from data,
// if present, and reports whether data looks like a well-formed C
// string (at most one NUL, only at the very end).
func ParseMaybeCString(data []byte) ([]byte, bool) {
	if len(data) == 0 {
		return nil, false
	}
	idx := bytes.IndexByte(data, 0)
	switch {
	case idx == -1:
		return data, true
	case idx == len(data)-1:
		return data[:idx], true
	default:
		return nil, false
	}
}

