package bflags

import (
	"io"
	"sort"

	"github.com/goidb/idb/internal/arch"
	"github.com/goidb/idb/internal/utils"
	"github.com/goidb/idb/internal/varint"
)

// id2Magic is the fixed 9-byte outer magic of an ID2 section.
var id2Magic = [9]byte{'I', 'D', 'A', 'S', 0x1d, 0xa5, 'U', 'U', 0x00}

// HasID2Magic reports whether data begins with the ID2 magic, letting a
// caller holding raw ID1-or-ID2 section bytes decide which of Read/
// ReadID2 to call without guessing: both formats occupy the same
// container section, distinguished only by this leading magic.
func HasID2Magic(data []byte) bool {
	return len(data) >= len(id2Magic) && [9]byte(data[:len(id2Magic)]) == id2Magic
}

// Entry2 is one decoded ID2 record: an address, its flag word, and the
// byte length it spans.
type Entry2[K arch.Kind] struct {
	Address K
	Info    ByteInfo
	Len     K
}

// Section2 is the decoded ID2 byte-flag array: a sparse
// (address-delta, flags, length) stream, expanded into an
// address-ordered entry list.
type Section2[K arch.Kind] struct {
	// ranges1/ranges2 are carried through but not otherwise interpreted
	// by this reader — their exact semantics remain an open question
	// (unlabelled sparse range pairs preceding the entry stream).
	ranges1, ranges2 []addrRange[K]
	Entries          []Entry2[K]
}

// ReadID2 decodes an ID2 section from r.
func ReadID2[K arch.Kind](r io.Reader, lenient bool) (*Section2[K], error) {
	vr := varint.NewReader(r, lenient)

	var magic [9]byte
	if err := vr.ReadExact(magic[:]); err != nil {
		return nil, err
	}
	if magic != id2Magic {
		return nil, utils.NewKind(utils.KindFormatMismatch, "invalid ID2 magic")
	}

	ranges1, err := readID2Ranges[K](vr)
	if err != nil {
		return nil, err
	}
	ranges2, err := readID2Ranges[K](vr)
	if err != nil {
		return nil, err
	}

	var acc, minAddr K
	maxVal := arch.MaxValue[K]()
	var entries []Entry2[K]
	for {
		delta, err := varint.UnpackUsize[K](vr)
		if err != nil {
			return nil, err
		}
		next := arch.Add(acc, delta)
		if next < acc && delta != 0 {
			return nil, utils.NewKind(utils.KindInvariantViolation, "ID2 wrapping address")
		}
		acc = next
		address := acc
		if address == maxVal {
			break
		}
		rawInfo, err := vr.UnpackDD()
		if err != nil {
			return nil, err
		}
		info := FromRaw(rawInfo)
		length, err := varint.UnpackUsize[K](vr)
		if err != nil {
			return nil, err
		}
		if !info.IsTail() {
			if address < minAddr {
				return nil, utils.NewKind(utils.KindInvariantViolation, "ID2 address overlaps with previous entry")
			}
			end := arch.Add(address, length)
			if end < address && length != 0 {
				return nil, utils.NewKind(utils.KindInvariantViolation, "ID2 non-tail entry is too big")
			}
		}
		minAddr = arch.Add(address, length)
		entries = append(entries, Entry2[K]{Address: address, Info: info, Len: length})
	}

	return &Section2[K]{ranges1: ranges1, ranges2: ranges2, Entries: entries}, nil
}

func readID2Ranges[K arch.Kind](r *varint.Reader) ([]addrRange[K], error) {
	n, err := r.UnpackDD()
	if err != nil {
		return nil, err
	}
	var acc K
	ranges := make([]addrRange[K], 0, n)
	for i := uint32(0); i < n; i++ {
		startOffset, err := varint.UnpackUsize[K](r)
		if err != nil {
			return nil, err
		}
		acc = arch.Add(acc, startOffset)
		start := acc
		endOffset, err := varint.UnpackUsize[K](r)
		if err != nil {
			return nil, err
		}
		if endOffset == 0 {
			return nil, utils.NewKind(utils.KindInvariantViolation, "ID2 empty sparse range")
		}
		acc = arch.Add(acc, endOffset)
		ranges = append(ranges, addrRange[K]{start: start, end: acc})
	}
	return ranges, nil
}

// ByteAt returns the flag word whose entry's Address exactly equals
// address.
func (s *Section2[K]) ByteAt(address K) (ByteInfo, bool) {
	i := sort.Search(len(s.Entries), func(i int) bool { return s.Entries[i].Address >= address })
	if i < len(s.Entries) && s.Entries[i].Address == address {
		return s.Entries[i].Info, true
	}
	return ByteInfo{}, false
}

// PrevNotTail returns the nearest entry strictly before an entry at
// address ea whose flag word is not a tail byte. Requires an exact entry
// at ea to exist.
func (s *Section2[K]) PrevNotTail(ea K) (Entry2[K], bool) {
	idx := sort.Search(len(s.Entries), func(i int) bool { return s.Entries[i].Address >= ea })
	if idx >= len(s.Entries) || s.Entries[idx].Address != ea {
		return Entry2[K]{}, false
	}
	for i := idx - 1; i >= 0; i-- {
		if !s.Entries[i].Info.IsTail() {
			return s.Entries[i], true
		}
	}
	return Entry2[K]{}, false
}

// NextNotTail returns the nearest entry at or after an entry at address
// ea whose flag word is not a tail byte.
func (s *Section2[K]) NextNotTail(ea K) (Entry2[K], bool) {
	idx := sort.Search(len(s.Entries), func(i int) bool { return s.Entries[i].Address >= ea })
	if idx >= len(s.Entries) || s.Entries[idx].Address != ea {
		return Entry2[K]{}, false
	}
	for i := idx; i < len(s.Entries); i++ {
		if !s.Entries[i].Info.IsTail() {
			return s.Entries[i], true
		}
	}
	return Entry2[K]{}, false
}

// AllBytes returns every decoded entry in address order.
func (s *Section2[K]) AllBytes() []Entry2[K] { return s.Entries }

// AllBytesNoTails returns every entry whose flag word is not a tail byte.
func (s *Section2[K]) AllBytesNoTails() []Entry2[K] {
	out := make([]Entry2[K], 0, len(s.Entries))
	for _, e := range s.Entries {
		if !e.Info.IsTail() {
			out = append(out, e)
		}
	}
	return out
}
