// Package btree decodes the ID0 section's on-disk B-tree into a flat,
// sorted slice of key/value records. It knows nothing about what the
// keys and values mean — that schema lives one layer up, in
// internal/keyschema.
package btree

import (
	"bytes"
	"fmt"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/goidb/idb/internal/utils"
	"github.com/goidb/idb/internal/varint"
)

// pageCacheSize bounds how many decoded pages a pageSource keeps warm at
// once, so assembling a tree with more distinct pages than that doesn't
// hold all of them in memory simultaneously.
const pageCacheSize = 256

// Version identifies the ID0 B-tree page layout, selected by a C-string
// banner carried in the section header.
type Version int

const (
	Version15 Version = iota // "B-tree v 1.5 (C) Pol 1990"
	Version16                // "B-tree v 1.6 (C) Pol 1990"
	Version20                // "B-tree v2"
)

// entryLen is the width in bytes of a page's slot-table row (the fixed
// part naming where a record lives), not the variable-length record
// itself: 4 bytes for the 1.5 layout's u16 fields, 6 for 1.6/2.0's
// u32-page-pointer layout.
func (v Version) entryLen() uint16 {
	if v == Version15 {
		return 4
	}
	return 6
}

func parseVersionBanner(raw []byte) (Version, error) {
	switch string(raw) {
	case "B-tree v 1.5 (C) Pol 1990":
		return Version15, nil
	case "B-tree v 1.6 (C) Pol 1990":
		return Version16, nil
	case "B-tree v2":
		return Version20, nil
	default:
		return 0, utils.NewKind(utils.KindFormatMismatch, fmt.Sprintf("unknown B-tree version banner %q", raw))
	}
}

// Entry is one fully-reconstructed key/value record, in sorted key
// order: ID0 is conceptually a sorted byte-string map.
type Entry struct {
	Key   []byte
	Value []byte
}

// Section is the flattened, in-order content of an ID0 B-tree.
type Section struct {
	Entries []Entry
}

type header struct {
	pageSize    uint16
	rootPage    uint32
	recordCount uint32
	pageCount   uint32
	version     Version
}

// readHeader parses the fixed 64-byte-or-more ID0 page-0 header. Its
// trailing bytes (from headerLen up to pageSize) must be all zero; this
// is the format's own self-check that nothing beyond the known fields
// was written there.
func readHeader(raw []byte, lenient bool) (*header, error) {
	if len(raw) < 64 {
		return nil, utils.NewKind(utils.KindTruncatedInput, "ID0 header shorter than 64 bytes")
	}
	hr := varint.NewReader(bytes.NewReader(raw), lenient)

	if _, err := hr.ReadU32(); err != nil { // next_free_offset, not modelled (no write path)
		return nil, err
	}
	pageSize, err := hr.ReadU16()
	if err != nil {
		return nil, err
	}
	rootPage, err := hr.ReadU32()
	if err != nil {
		return nil, err
	}
	recordCount, err := hr.ReadU32()
	if err != nil {
		return nil, err
	}
	pageCount, err := hr.ReadU32()
	if err != nil {
		return nil, err
	}
	if _, err := hr.ReadU8(); err != nil { // unk12
		return nil, err
	}
	verRaw, err := hr.ReadCStringRaw()
	if err != nil {
		return nil, err
	}
	version, err := parseVersionBanner(verRaw)
	if err != nil {
		return nil, err
	}
	if _, err := hr.ReadU8(); err != nil { // unk1d
		return nil, err
	}

	headerLen := 4 + 2 + 4 + 4 + 4 + 1 + len(verRaw) + 1 + 1
	if pageSize < 64 {
		return nil, utils.NewKind(utils.KindInvariantViolation, "ID0 page size smaller than the header itself")
	}
	if int(pageSize) > len(raw) {
		return nil, utils.NewKind(utils.KindTruncatedInput, "ID0 header page truncated")
	}
	for _, b := range raw[headerLen:pageSize] {
		if b != 0 {
			return nil, utils.NewKind(utils.KindInvariantViolation, "ID0 header has non-zero unused bytes")
		}
	}
	return &header{
		pageSize:    pageSize,
		rootPage:    rootPage,
		recordCount: recordCount,
		pageCount:   pageCount,
		version:     version,
	}, nil
}

// rawPage is one decoded B-tree page: either an index page (entries
// alternate with child-page pointers, plus a "preceding" pointer for
// the subtree before the first entry) or a leaf page (entries only).
type rawPage struct {
	isIndex      bool
	preceding    uint32
	indexEntries []indexEntry
	leafEntries  []Entry
}

type indexEntry struct {
	child uint32
	key   []byte
	value []byte
}

// Read decodes an entire ID0 section from r (already decompressed by
// internal/container) into a flat sorted entry list.
func Read(r io.Reader, lenient bool) (*Section, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, utils.WrapKind(utils.KindTruncatedInput, "ID0 section", err)
	}
	return parse(raw, lenient)
}

func parse(raw []byte, lenient bool) (*Section, error) {
	hdr, err := readHeader(raw, lenient)
	if err != nil {
		return nil, err
	}
	if len(raw)%int(hdr.pageSize) != 0 {
		return nil, utils.NewKind(utils.KindInvariantViolation, "ID0 section size is not a multiple of its page size")
	}
	pagesInSection := len(raw) / int(hdr.pageSize)
	// +1 for the header page itself; trailing empty pages beyond the
	// declared count are normal (spec notes pages are never reclaimed).
	if int(hdr.pageCount)+1 > pagesInSection {
		return nil, utils.NewKind(utils.KindInvariantViolation, "ID0 header claims more pages than the section holds")
	}

	if hdr.rootPage == 0 {
		if hdr.recordCount != 0 {
			return nil, utils.NewKind(utils.KindInvariantViolation, "ID0 has no root page but a non-zero record count")
		}
		return &Section{}, nil
	}

	ps := newPageSource(raw, hdr, lenient)
	visited := make(map[uint32]bool)
	entries := make([]Entry, 0, hdr.recordCount)
	if err := flatten(hdr.rootPage, pagesInSection, ps, visited, &entries); err != nil {
		return nil, err
	}
	if len(visited) > int(hdr.pageCount) {
		return nil, utils.NewKind(utils.KindInvariantViolation, "ID0 visited more distinct pages than declared")
	}
	for i := 1; i < len(entries); i++ {
		if bytes.Compare(entries[i-1].Key, entries[i].Key) >= 0 {
			return nil, utils.NewKind(utils.KindInvariantViolation, "ID0 entries are not strictly sorted by key")
		}
	}
	if uint32(len(entries)) != hdr.recordCount {
		return nil, utils.NewKind(utils.KindInvariantViolation, "ID0 assembled entry count does not match the header's record count")
	}
	return &Section{Entries: entries}, nil
}

// pageSource decodes pages lazily, one per distinct index reachable from
// the root, keeping only the most recently touched pageCacheSize of them
// warm in memory; re-visiting an evicted page re-decodes it from raw.
type pageSource struct {
	raw     []byte
	hdr     *header
	lenient bool
	cache   *lru.Cache[uint32, *rawPage]
}

func newPageSource(raw []byte, hdr *header, lenient bool) *pageSource {
	cache, _ := lru.New[uint32, *rawPage](pageCacheSize)
	return &pageSource{raw: raw, hdr: hdr, lenient: lenient, cache: cache}
}

func (ps *pageSource) get(idx uint32) (*rawPage, error) {
	if p, ok := ps.cache.Get(idx); ok {
		return p, nil
	}
	offset := int(idx) * int(ps.hdr.pageSize)
	p, err := readPage(ps.raw[offset:offset+int(ps.hdr.pageSize)], ps.hdr, ps.lenient)
	if err != nil {
		return nil, err
	}
	ps.cache.Add(idx, p)
	return p, nil
}

// flatten walks the page tree depth-first in key order, decoding pages
// from ps on demand. A page referenced twice (whether by a cycle or by
// two parents) fails here rather than looping forever or duplicating
// entries.
func flatten(idx uint32, pagesInSection int, ps *pageSource, visited map[uint32]bool, out *[]Entry) error {
	if visited[idx] {
		return utils.NewKind(utils.KindInvariantViolation, "ID0 page referenced more than once while assembling the tree")
	}
	if int(idx) >= pagesInSection {
		return utils.NewKind(utils.KindInvariantViolation, "ID0 page index out of range")
	}
	visited[idx] = true
	p, err := ps.get(idx)
	if err != nil {
		return err
	}
	if !p.isIndex {
		*out = append(*out, p.leafEntries...)
		return nil
	}
	if p.preceding != 0 {
		if err := flatten(p.preceding, pagesInSection, ps, visited, out); err != nil {
			return err
		}
	}
	for _, e := range p.indexEntries {
		*out = append(*out, Entry{Key: e.key, Value: e.value})
		if e.child != 0 {
			if err := flatten(e.child, pagesInSection, ps, visited, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// readPage decodes a single page's slot table and records, dispatching
// field widths on the section's B-tree version.
func readPage(raw []byte, hdr *header, lenient bool) (*rawPage, error) {
	sub := func(offset int) *varint.Reader {
		return varint.NewReader(bytes.NewReader(raw[offset:]), lenient)
	}

	r := sub(0)
	var preceding uint32
	var err error
	if hdr.version == Version15 {
		var v uint16
		if v, err = r.ReadU16(); err != nil {
			return nil, err
		}
		preceding = uint32(v)
	} else if preceding, err = r.ReadU32(); err != nil {
		return nil, err
	}
	count, err := r.ReadU16()
	if err != nil {
		return nil, err
	}

	entryLen := hdr.version.entryLen()
	minDataPos := uint32(entryLen) * (uint32(count) + 2)
	if minDataPos > uint32(hdr.pageSize) {
		return nil, utils.NewKind(utils.KindInvariantViolation, "ID0 page declares more slots than the page holds")
	}
	slotAt := func(i int) int { return int(entryLen) * (i + 1) }

	if preceding != 0 {
		entries := make([]indexEntry, count)
		for i := 0; i < int(count); i++ {
			sr := sub(slotAt(i))
			var child uint32
			if hdr.version == Version15 {
				var v uint16
				if v, err = sr.ReadU16(); err != nil {
					return nil, err
				}
				child = uint32(v)
			} else if child, err = sr.ReadU32(); err != nil {
				return nil, err
			}
			recofs, err := sr.ReadU16()
			if err != nil {
				return nil, err
			}
			if uint32(recofs) < minDataPos {
				return nil, utils.NewKind(utils.KindInvariantViolation, "ID0 index record offset below the slot table")
			}
			if recofs >= hdr.pageSize {
				return nil, utils.NewKind(utils.KindInvariantViolation, "ID0 index record offset beyond the page")
			}
			vr := sub(int(recofs))
			if hdr.version != Version20 {
				if _, err = vr.ReadU8(); err != nil { // unknown byte, not modelled
					return nil, err
				}
			}
			key, err := vr.ReadBytesLenU16()
			if err != nil {
				return nil, err
			}
			value, err := vr.ReadBytesLenU16()
			if err != nil {
				return nil, err
			}
			entries[i] = indexEntry{child: child, key: key, value: value}
		}
		return &rawPage{isIndex: true, preceding: preceding, indexEntries: entries}, nil
	}

	leaf := make([]Entry, count)
	var lastKey []byte
	for i := 0; i < int(count); i++ {
		sr := sub(slotAt(i))
		var indent, recofs uint16
		switch hdr.version {
		case Version15:
			ib, err := sr.ReadU8()
			if err != nil {
				return nil, err
			}
			if _, err = sr.ReadU8(); err != nil { // unknown1
				return nil, err
			}
			if recofs, err = sr.ReadU16(); err != nil {
				return nil, err
			}
			indent = uint16(ib)
		case Version16:
			ib, err := sr.ReadU8()
			if err != nil {
				return nil, err
			}
			if _, err = sr.ReadU8(); err != nil { // unknown1
				return nil, err
			}
			if _, err = sr.ReadU16(); err != nil { // unknown2
				return nil, err
			}
			if recofs, err = sr.ReadU16(); err != nil {
				return nil, err
			}
			indent = uint16(ib)
		case Version20:
			var err error
			if indent, err = sr.ReadU16(); err != nil {
				return nil, err
			}
			if _, err = sr.ReadU16(); err != nil { // unknown1
				return nil, err
			}
			if recofs, err = sr.ReadU16(); err != nil {
				return nil, err
			}
		}
		if recofs == 0 {
			// A deleted slot: an empty record that does not extend the
			// shared-prefix chain for the entries that follow it.
			leaf[i] = Entry{}
			continue
		}
		if uint32(recofs) < minDataPos {
			return nil, utils.NewKind(utils.KindInvariantViolation, "ID0 leaf record offset below the slot table")
		}
		if recofs >= hdr.pageSize {
			return nil, utils.NewKind(utils.KindInvariantViolation, "ID0 leaf record offset beyond the page")
		}
		vr := sub(int(recofs))
		if hdr.version != Version20 {
			if _, err = vr.ReadU8(); err != nil { // unknown byte, not modelled
				return nil, err
			}
		}
		extKey, err := vr.ReadBytesLenU16()
		if err != nil {
			return nil, err
		}
		value, err := vr.ReadBytesLenU16()
		if err != nil {
			return nil, err
		}
		if int(indent) > len(lastKey) {
			return nil, utils.NewKind(utils.KindInvariantViolation, "ID0 leaf key indent exceeds the previous key's length")
		}
		key := make([]byte, 0, int(indent)+len(extKey))
		key = append(key, lastKey[:indent]...)
		key = append(key, extKey...)
		lastKey = key
		leaf[i] = Entry{Key: key, Value: value}
	}

	// The trailing free-pointer slot's meaning is unknown; it is read (to
	// keep cursor bookkeeping symmetric) but not otherwise used.
	fr := sub(slotAt(int(count)))
	if hdr.version == Version20 {
		if _, err = fr.ReadU32(); err != nil {
			return nil, err
		}
	} else if _, err = fr.ReadU16(); err != nil {
		return nil, err
	}
	if _, err = fr.ReadU16(); err != nil {
		return nil, err
	}

	return &rawPage{isIndex: false, leafEntries: leaf}, nil
}
