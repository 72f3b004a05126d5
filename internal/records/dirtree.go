package records

import (
	"bytes"

	"github.com/goidb/idb/internal/arch"
	"github.com/goidb/idb/internal/btree"
	"github.com/goidb/idb/internal/keyschema"
	"github.com/goidb/idb/internal/varint"
)

// DirTreeEntry is one node of a decoded dirtree: either a named
// Directory holding nested Entries, or a Leaf wrapping a caller-built
// value, represented as a single struct with an IsLeaf discriminant
// rather than a sum type.
type DirTreeEntry[T any] struct {
	Name    string
	IsLeaf  bool
	Leaf    T
	Entries []DirTreeEntry[T]
}

// DirTreeRoot is a decoded "$ dirtree/..." folder hierarchy's top-level
// children; the root folder itself is always anonymous and unwrapped
// here.
type DirTreeRoot[T any] struct {
	Entries []DirTreeEntry[T]
}

// DirTree resolves and decodes one named dirtree netnode (e.g.
// "$ dirtree/funcs", "$ dirtree/names"), calling build to turn each
// leaf's raw arch-width number into a caller-defined T: the bare
// number, an (address, label) pair, or a TIL type lookup. Returns
// (nil, nil) if the database records no such dirtree at all.
func DirTree[K arch.Kind, T any](store *keyschema.Store, name string, lenient bool, build func(K) (T, error)) (*DirTreeRoot[T], error) {
	prefix, ok := store.NetnodeByName(name)
	if !ok {
		return nil, nil
	}
	supKey := append(append([]byte{}, prefix...), tagArraySup)
	raw := store.SubValues(supKey)

	groups, order, err := groupDirTreeEntries[K](raw, len(supKey), store.Is64())
	if err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return &DirTreeRoot[T]{}, nil
	}

	rootIdx := order[0]
	root, err := decodeDirTreeEntryRaw[K](groups[rootIdx], store.Is64(), lenient)
	if err != nil {
		return nil, wrapTruncated("decode dirtree root: " + err.Error())
	}
	if root.name != "" {
		return nil, wrapInvariant("dirtree root entry has a name")
	}
	if root.parent != 0 {
		return nil, wrapInvariant("dirtree root entry has a parent")
	}
	delete(groups, rootIdx)

	entries, err := dirTreeChildren[K, T](groups, build, root.children, store.Is64(), lenient)
	if err != nil {
		return nil, err
	}
	return &DirTreeRoot[T]{Entries: entries}, nil
}

// groupDirTreeEntries reassembles a dirtree netnode's array-sup rows
// into one concatenated byte run per folder index. Each row's sub-key
// is an arch-width big-endian number packing (folder index << 16 |
// continuation index); a folder whose encoded form didn't fit one row
// is split across consecutive continuation indexes 0, 1, 2, ...
// Assembly is a single linear pass since the backing store already
// yields rows in ascending key order.
func groupDirTreeEntries[K arch.Kind](entries []btree.Entry, prefixLen int, is64 bool) (map[K][]byte, []K, error) {
	groups := make(map[K][]byte)
	var order []K
	var curIdx K
	var curSub uint16
	haveCur := false

	for _, e := range entries {
		if len(e.Key) <= prefixLen {
			continue
		}
		raw, ok := keyschema.ParseNumber(e.Key[prefixLen:], false, is64)
		if !ok {
			return nil, nil, wrapTruncated("decode dirtree sub-key")
		}
		idx := K(uint64(raw) >> 16)
		subIdx := uint16(uint64(raw) & 0xFFFF)

		if haveCur && idx == curIdx {
			if subIdx != curSub+1 {
				return nil, nil, wrapInvariant("non-contiguous dirtree continuation index")
			}
			curSub = subIdx
		} else {
			if subIdx != 0 {
				return nil, nil, wrapInvariant("dirtree folder entry starts at a non-zero continuation index")
			}
			if _, seen := groups[idx]; seen {
				return nil, nil, wrapInvariant("duplicated dirtree folder index")
			}
			curIdx, curSub, haveCur = idx, 0, true
			order = append(order, idx)
		}
		groups[idx] = append(groups[idx], e.Value...)
	}
	return groups, order, nil
}

// dirTreeChildren turns a decoded folder's children list into the final
// tree shape: a value child becomes a Leaf via build, a folder-index
// child is looked up, decoded, and recursed into.
func dirTreeChildren[K arch.Kind, T any](groups map[K][]byte, build func(K) (T, error), children []dirTreeChildRaw, is64 bool, lenient bool) ([]DirTreeEntry[T], error) {
	out := make([]DirTreeEntry[T], 0, len(children))
	for _, child := range children {
		if child.isValue {
			leaf, err := build(K(child.number))
			if err != nil {
				return nil, err
			}
			out = append(out, DirTreeEntry[T]{IsLeaf: true, Leaf: leaf})
			continue
		}
		number := K(child.number)
		data, ok := groups[number]
		if !ok {
			return nil, wrapInvariant("invalid dirtree subfolder index")
		}
		delete(groups, number)
		raw, err := decodeDirTreeEntryRaw[K](data, is64, lenient)
		if err != nil {
			return nil, wrapTruncated("decode dirtree folder: " + err.Error())
		}
		nested, err := dirTreeChildren[K, T](groups, build, raw.children, is64, lenient)
		if err != nil {
			return nil, err
		}
		out = append(out, DirTreeEntry[T]{Name: raw.name, Entries: nested})
	}
	return out, nil
}

// dirTreeEntryRaw is one decoded folder record before its children are
// resolved into a tree. parent is unused beyond the root's own
// invariant check: child ownership is already
// established by which folder lists a given index among its children,
// so the recursive walk never needs to re-verify a non-root parent.
type dirTreeEntryRaw struct {
	name     string
	parent   uint64
	children []dirTreeChildRaw
}

type dirTreeChildRaw struct {
	number  uint64
	isValue bool
}

// decodeDirTreeEntryRaw decodes one folder's concatenated value bytes.
func decodeDirTreeEntryRaw[K arch.Kind](data []byte, is64 bool, lenient bool) (dirTreeEntryRaw, error) {
	r := varint.NewReader(bytes.NewReader(data), lenient)
	version, err := r.ReadU8()
	if err != nil {
		return dirTreeEntryRaw{}, err
	}
	switch version {
	case 0:
		return decodeDirTreeEntryRawV0[K](r, is64)
	case 1:
		return decodeDirTreeEntryRawV1[K](r, is64)
	default:
		return dirTreeEntryRaw{}, wrapInvariant("dirtree: unknown entry version")
	}
}

// decodeDirTreeEntryRawV0 reads the legacy encoding: a name, a fixed
// all-zero pad (3 bytes on 64-bit databases, 2 on 32-bit), then
// alternating folder/value runs of relative-delta numbers until the
// value stream runs out.
func decodeDirTreeEntryRawV0[K arch.Kind](r *varint.Reader, is64 bool) (dirTreeEntryRaw, error) {
	name, err := r.ReadCStringRaw()
	if err != nil {
		return dirTreeEntryRaw{}, err
	}
	pad := make([]byte, 2)
	if is64 {
		pad = make([]byte, 3)
	}
	if err := r.ReadExact(pad); err != nil {
		return dirTreeEntryRaw{}, err
	}
	for _, b := range pad {
		if b != 0 {
			return dirTreeEntryRaw{}, wrapInvariant("dirtree v0: non-zero pad byte")
		}
	}

	var children []dirTreeChildRaw
	for isValue := false; ; isValue = !isValue {
		count, present, err := r.UnpackDDOrEOF()
		if err != nil {
			return dirTreeEntryRaw{}, err
		}
		if !present {
			break
		}
		children, err = parseDirTreeChildren[K](r, children, count, is64, isValue)
		if err != nil {
			return dirTreeEntryRaw{}, err
		}
	}

	return dirTreeEntryRaw{name: string(name), children: children}, nil
}

// decodeDirTreeEntryRawV1 reads the modern encoding: a name, an explicit
// parent folder index, a small reserved byte, a child count, the
// relative-delta-encoded child numbers, and finally a run of
// (folder-count, leaf-count) pairs classifying the already-read children
// in order.
func decodeDirTreeEntryRawV1[K arch.Kind](r *varint.Reader, is64 bool) (dirTreeEntryRaw, error) {
	name, err := r.ReadCStringRaw()
	if err != nil {
		return dirTreeEntryRaw{}, err
	}
	parent, err := unpackUsize64(r, is64)
	if err != nil {
		return dirTreeEntryRaw{}, err
	}
	reserved, err := r.ReadU8()
	if err != nil {
		return dirTreeEntryRaw{}, err
	}
	if reserved >= 0x80 {
		return dirTreeEntryRaw{}, wrapInvariant("dirtree v1: reserved byte out of range")
	}
	entriesLen, err := r.UnpackDD()
	if err != nil {
		return dirTreeEntryRaw{}, err
	}

	var children []dirTreeChildRaw
	children, err = parseDirTreeChildren[K](r, children, entriesLen, is64, false)
	if err != nil {
		return dirTreeEntryRaw{}, err
	}

	remaining := children
	for isValue := false; len(remaining) > 0; isValue = !isValue {
		num, present, err := r.UnpackDDOrEOF()
		if err != nil {
			return dirTreeEntryRaw{}, err
		}
		if !present {
			if entriesLen == 0 {
				break
			}
			return dirTreeEntryRaw{}, wrapTruncated("dirtree v1: missing entry classification run")
		}
		if uint64(num) > uint64(len(remaining)) {
			return dirTreeEntryRaw{}, wrapInvariant("dirtree v1: classification run exceeds entry count")
		}
		if isValue {
			for i := range remaining[:num] {
				remaining[i].isValue = true
			}
		}
		remaining = remaining[num:]
	}

	return dirTreeEntryRaw{name: string(name), parent: parent, children: children}, nil
}

// parseDirTreeChildren reads count relative-delta-encoded numbers: the
// first is absolute, every following one is the previous value plus a
// signed delta, wrapping at the arch width.
func parseDirTreeChildren[K arch.Kind](r *varint.Reader, children []dirTreeChildRaw, count uint32, is64 bool, isValue bool) ([]dirTreeChildRaw, error) {
	var last uint64
	haveLast := false
	for i := uint32(0); i < count; i++ {
		rel, err := unpackUsize64(r, is64)
		if err != nil {
			return nil, err
		}
		var value uint64
		if !haveLast {
			value = rel
		} else {
			value = last + rel
			if !is64 {
				value &= 0xFFFFFFFF
			}
		}
		last, haveLast = value, true
		children = append(children, dirTreeChildRaw{number: value, isValue: isValue})
	}
	return children, nil
}

// unpackUsize64 is varint.UnpackUsize without a generic type parameter,
// for the dirtree decoders' internal bookkeeping fields (folder index,
// parent index) which are always tracked as plain uint64 regardless of
// K, with the final cast to K happening only where a value crosses back
// into the caller-facing tree (dirTreeChildRaw.number -> build(K(...))).
func unpackUsize64(r *varint.Reader, is64 bool) (uint64, error) {
	if is64 {
		return varint.UnpackUsize[uint64](r)
	}
	v, err := varint.UnpackUsize[uint32](r)
	return uint64(v), err
}
