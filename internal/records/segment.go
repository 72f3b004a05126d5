package records

import (
	"bytes"

	"github.com/goidb/idb/internal/arch"
	"github.com/goidb/idb/internal/keyschema"
	"github.com/goidb/idb/internal/varint"
)

// Segment is one entry of the "$ segs" netnode: a section/segment
// description.
type Segment[K arch.Kind] struct {
	StartEA  K
	Size     K
	NameID   K
	ClassID  K
	OrgBase  K
	Flags    uint32
	Align    uint32
	Comb     uint32
	Perm     uint32
	Bitness  uint32
	SegType  uint32
	Selector K
	Defsr    [16]K
	Color    uint32
}

func readWord[K arch.Kind](r *varint.Reader, is64 bool) (K, error) {
	if is64 {
		v, err := r.UnpackDQ()
		return K(v), err
	}
	v, err := r.UnpackDD()
	return K(v), err
}

func readSegment[K arch.Kind](value []byte, is64 bool, lenient bool) (Segment[K], error) {
	r := varint.NewReader(bytes.NewReader(value), lenient)
	var seg Segment[K]
	var err error
	if seg.StartEA, err = readWord[K](r, is64); err != nil {
		return seg, err
	}
	if seg.Size, err = readWord[K](r, is64); err != nil {
		return seg, err
	}
	if seg.NameID, err = readWord[K](r, is64); err != nil {
		return seg, err
	}
	if seg.ClassID, err = readWord[K](r, is64); err != nil {
		return seg, err
	}
	if seg.OrgBase, err = readWord[K](r, is64); err != nil {
		return seg, err
	}
	flags, err := r.UnpackDD()
	if err != nil {
		return seg, err
	}
	seg.Flags = flags
	if seg.Align, err = r.UnpackDD(); err != nil {
		return seg, err
	}
	if seg.Comb, err = r.UnpackDD(); err != nil {
		return seg, err
	}
	if seg.Perm, err = r.UnpackDD(); err != nil {
		return seg, err
	}
	if seg.Bitness, err = r.UnpackDD(); err != nil {
		return seg, err
	}
	if seg.SegType, err = r.UnpackDD(); err != nil {
		return seg, err
	}
	if seg.Selector, err = readWord[K](r, is64); err != nil {
		return seg, err
	}
	for i := range seg.Defsr {
		if seg.Defsr[i], err = readWord[K](r, is64); err != nil {
			return seg, err
		}
	}
	color, err := r.UnpackDD()
	if err != nil {
		return seg, err
	}
	seg.Color = color
	return seg, nil
}

// Segments decodes every entry of the "$ segs" netnode, in on-disk
// order.
func Segments[K arch.Kind](store *keyschema.Store, lenient bool) ([]Segment[K], error) {
	prefix, ok := store.NetnodeByName("$ segs")
	if !ok {
		return nil, nil
	}
	entries := store.SubValues(append(append([]byte{}, prefix...), tagArraySup))
	out := make([]Segment[K], 0, len(entries))
	for _, e := range entries {
		seg, err := readSegment[K](e.Value, store.Is64(), lenient)
		if err != nil {
			return nil, wrapTruncated("decode $ segs entry: " + err.Error())
		}
		out = append(out, seg)
	}
	return out, nil
}

// SegmentName resolves a segment's display name: the "$ segstrings"
// netnode if present, else a direct lookup against the shared
// string-area netnode (id 0xFF at the top byte) by index.
func SegmentName(store *keyschema.Store, idx uint64) ([]byte, bool) {
	if prefix, ok := store.NetnodeByName("$ segstrings"); ok {
		entries := store.SubValues(append(append([]byte{}, prefix...), tagArraySup))
		for _, e := range entries {
			key := e.Key[len(prefix)+1:]
			n, ok := keyschema.ParseNumber(key, false, store.Is64())
			if ok && uint64(n) == idx {
				return stripNulTerm(e.Value), true
			}
		}
		return nil, false
	}
	value, ok := store.NameByIndex(idx)
	if !ok {
		return nil, false
	}
	return stripNulTerm(value), true
}

func stripNulTerm(value []byte) []byte {
	s, ok := keyschema.ParseMaybeCString(value)
	if !ok {
		return value
	}
	return s
}
