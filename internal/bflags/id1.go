package bflags

import (
	"fmt"
	"io"
	"sort"

	"github.com/goidb/idb/internal/arch"
	"github.com/goidb/idb/internal/utils"
	"github.com/goidb/idb/internal/varint"
)

// id1PageSize is the fixed size of the ID1 header page. Every observed
// database uses this value; whether it is actually version-dependent in
// some unobserved case remains unconfirmed.
const id1PageSize = 0x2000

// vaVersion is the 4-byte magic (including trailing NUL) that opens the
// ID1 header page, selecting one of two historical segment-table layouts.
type vaVersion int

const (
	va0 vaVersion = iota
	va1
	va2
	va3
	va4
	vaX
)

func readVaVersion(r *varint.Reader) (vaVersion, error) {
	var magic [4]byte
	if err := r.ReadExact(magic[:]); err != nil {
		return 0, err
	}
	switch string(magic[:]) {
	case "Va0\x00":
		return va0, nil
	case "Va1\x00":
		return va1, nil
	case "Va2\x00":
		return va2, nil
	case "Va3\x00":
		return va3, nil
	case "Va4\x00":
		return va4, nil
	case "VA*\x00":
		return vaX, nil
	default:
		return 0, utils.NewKind(utils.KindFormatMismatch, fmt.Sprintf("invalid Va magic: %q", magic[:]))
	}
}

// Section is the decoded ID1 byte-flag array: a sorted, non-overlapping
// list of segments, each a dense flag-word-per-byte run.
type Section[K arch.Kind] struct {
	Segments []Segment[K]
}

// Segment is one contiguous run of per-byte flag words, addressed
// starting at Offset.
type Segment[K arch.Kind] struct {
	Offset K
	data   []uint32
}

func (s Segment[K]) Len() int        { return len(s.data) }
func (s Segment[K]) IsEmpty() bool   { return len(s.data) == 0 }
func (s Segment[K]) At(i int) (ByteInfo, bool) {
	if i < 0 || i >= len(s.data) {
		return ByteInfo{}, false
	}
	return FromRaw(s.data[i]), true
}

// segVaNRaw is a Va0..Va4-layout segment table entry: an address range
// plus the page-relative disk offset of its flag-word data.
type segVaNRaw[K arch.Kind] struct {
	start, end K
	diskOffset K
}

// Read decodes an ID1 section from r: a fixed-size header page giving
// the segment table, followed by each segment's flag-word data, one u32
// per byte of program data.
func Read[K arch.Kind](r io.Reader, lenient bool) (*Section[K], error) {
	buf := make([]byte, id1PageSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, utils.WrapKind(utils.KindTruncatedInput, "ID1 header page", err)
	}
	hr := varint.NewReader(bufReader(buf), lenient)

	npages, ranges, diskOffsets, err := readID1Header[K](hr)
	if err != nil {
		return nil, err
	}
	if npages == 0 {
		return nil, utils.NewKind(utils.KindInvariantViolation, "ID1 header declares zero pages")
	}

	// sort by address to check non-overlap and compute required size
	sorted := append([]addrRange[K](nil), ranges...)
	sortRanges(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].end > sorted[i].start {
			return nil, utils.NewKind(utils.KindInvariantViolation, "ID1 segments overlap")
		}
	}

	var required uint64
	for _, rg := range sorted {
		required += uint64(arch.Sub(rg.end, rg.start)) * 4
	}
	requiredPages := required / id1PageSize
	if required%id1PageSize != 0 {
		requiredPages++
	}
	if requiredPages > uint64(npages-1) {
		return nil, utils.NewKind(utils.KindInvariantViolation, "ID1 section too small for declared segments")
	}

	if err := requireRemainderZero(hr); err != nil {
		return nil, err
	}

	var segments []Segment[K]
	if diskOffsets != nil {
		segments, err = readSegmentsByDiskOffset[K](r, ranges, diskOffsets)
	} else {
		segments, err = readSegmentsSequential[K](r, ranges)
	}
	if err != nil {
		return nil, err
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].Offset < segments[j].Offset })

	// remaining bytes are trailing, unidentified padding (possibly
	// leftover deleted-segment data); read and discard.
	_, _ = io.Copy(io.Discard, r)

	return &Section[K]{Segments: segments}, nil
}

type addrRange[K arch.Kind] struct{ start, end K }

func sortRanges[K arch.Kind](r []addrRange[K]) {
	sort.Slice(r, func(i, j int) bool { return r[i].start < r[j].start })
}

// readID1Header reads the version-tagged segment table. For the Va0..Va4
// layout it also returns each segment's on-disk offset (so segments can
// be read in disk order, possibly with gaps); for VaX it returns nil
// offsets since VaX segments are always stored sequentially in address
// order.
func readID1Header[K arch.Kind](r *varint.Reader) (npages uint32, ranges []addrRange[K], diskOffsets []K, err error) {
	version, err := readVaVersion(r)
	if err != nil {
		return 0, nil, nil, err
	}
	switch version {
	case va0, va1, va2, va3, va4:
		nsegments, err := r.ReadU16()
		if err != nil {
			return 0, nil, nil, err
		}
		npagesU16, err := r.ReadU16()
		if err != nil {
			return 0, nil, nil, err
		}
		if npagesU16 == 0 {
			return 0, nil, nil, utils.NewKind(utils.KindInvariantViolation, "ID1 header declares zero pages")
		}
		ranges = make([]addrRange[K], nsegments)
		diskOffsets = make([]K, nsegments)
		for i := range ranges {
			start, err := varint.ReadUsize[K](r)
			if err != nil {
				return 0, nil, nil, err
			}
			end, err := varint.ReadUsize[K](r)
			if err != nil {
				return 0, nil, nil, err
			}
			if start > end {
				return 0, nil, nil, utils.NewKind(utils.KindInvariantViolation, "ID1 segment start > end")
			}
			offset, err := varint.ReadUsize[K](r)
			if err != nil {
				return 0, nil, nil, err
			}
			ranges[i] = addrRange[K]{start: start, end: end}
			diskOffsets[i] = offset
		}
		return uint32(npagesU16), ranges, diskOffsets, nil
	case vaX:
		alwaysThree, err := r.ReadU32()
		if err != nil {
			return 0, nil, nil, err
		}
		if alwaysThree != 3 {
			return 0, nil, nil, utils.NewKind(utils.KindFormatMismatch, "ID1 VaX header: expected constant 3")
		}
		nsegments, err := r.ReadU32()
		if err != nil {
			return 0, nil, nil, err
		}
		always2048, err := r.ReadU32()
		if err != nil {
			return 0, nil, nil, err
		}
		if always2048 != 2048 {
			return 0, nil, nil, utils.NewKind(utils.KindFormatMismatch, "ID1 VaX header: expected constant 2048")
		}
		npages, err := r.ReadU32()
		if err != nil {
			return 0, nil, nil, err
		}
		ranges = make([]addrRange[K], nsegments)
		for i := range ranges {
			start, err := varint.ReadUsize[K](r)
			if err != nil {
				return 0, nil, nil, err
			}
			end, err := varint.ReadUsize[K](r)
			if err != nil {
				return 0, nil, nil, err
			}
			if start > end {
				return 0, nil, nil, utils.NewKind(utils.KindInvariantViolation, "ID1 segment start > end")
			}
			ranges[i] = addrRange[K]{start: start, end: end}
		}
		return npages, ranges, nil, nil
	default:
		return 0, nil, nil, utils.NewKind(utils.KindUnsupportedVersion, "unreachable Va version")
	}
}

// readSegmentsByDiskOffset reads Va0..Va4-layout segment data: segments
// are visited in ascending disk-offset order, and any gap between
// segments is zero-filled padding that must be verified all-zero.
func readSegmentsByDiskOffset[K arch.Kind](r io.Reader, ranges []addrRange[K], diskOffsets []K) ([]Segment[K], error) {
	type indexed struct {
		rg     addrRange[K]
		offset K
	}
	items := make([]indexed, len(ranges))
	for i := range ranges {
		items[i] = indexed{rg: ranges[i], offset: diskOffsets[i]}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].offset < items[j].offset })

	current := K(id1PageSize)
	segments := make([]Segment[K], 0, len(items))
	pad := make([]byte, id1PageSize)
	for _, it := range items {
		if it.offset < current {
			return nil, utils.NewKind(utils.KindInvariantViolation, "ID1 segment disk offset out of order")
		}
		if it.offset > current {
			gap := uint64(arch.Sub(it.offset, current))
			if err := skipZeros(r, gap, pad); err != nil {
				return nil, err
			}
			current = it.offset
		}
		n := uint64(arch.Sub(it.rg.end, it.rg.start))
		data, err := readFlagWords(r, n)
		if err != nil {
			return nil, err
		}
		current = arch.Add(current, K(n*4))
		segments = append(segments, Segment[K]{Offset: it.rg.start, data: data})
	}
	return segments, nil
}

// readSegmentsSequential reads VaX-layout segment data: segments are
// stored back-to-back in address order, with no disk-offset table.
func readSegmentsSequential[K arch.Kind](r io.Reader, ranges []addrRange[K]) ([]Segment[K], error) {
	segments := make([]Segment[K], 0, len(ranges))
	for _, rg := range ranges {
		n := uint64(arch.Sub(rg.end, rg.start))
		data, err := readFlagWords(r, n)
		if err != nil {
			return nil, err
		}
		segments = append(segments, Segment[K]{Offset: rg.start, data: data})
	}
	return segments, nil
}

func readFlagWords(r io.Reader, n uint64) ([]uint32, error) {
	buf := make([]byte, n*4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, utils.WrapKind(utils.KindTruncatedInput, "ID1 segment data", err)
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = uint32(buf[i*4]) | uint32(buf[i*4+1])<<8 | uint32(buf[i*4+2])<<16 | uint32(buf[i*4+3])<<24
	}
	return out, nil
}

func skipZeros(r io.Reader, n uint64, scratch []byte) error {
	remaining := n
	for remaining > 0 {
		chunk := scratch
		if uint64(len(chunk)) > remaining {
			chunk = chunk[:remaining]
		}
		nr, err := io.ReadFull(r, chunk)
		if err != nil {
			return utils.WrapKind(utils.KindTruncatedInput, "ID1 gap padding", err)
		}
		for _, b := range chunk[:nr] {
			if b != 0 {
				return utils.NewKind(utils.KindInvariantViolation, "ID1 gap padding is not all zero")
			}
		}
		remaining -= uint64(nr)
	}
	return nil
}

// segmentIndexByAddress finds the segment containing address, or (via the
// error-typed index) the insertion point among sorted segments.
func (s *Section[K]) segmentIndexByAddress(address K) (idx int, found bool) {
	i := sort.Search(len(s.Segments), func(i int) bool {
		seg := s.Segments[i]
		segEnd := arch.Add(seg.Offset, K(len(seg.data)))
		return address < segEnd
	})
	if i < len(s.Segments) && s.Segments[i].Offset <= address {
		return i, true
	}
	return i, false
}

// SegmentByAddress returns the segment containing address, if any.
func (s *Section[K]) SegmentByAddress(address K) (Segment[K], bool) {
	idx, found := s.segmentIndexByAddress(address)
	if !found {
		return Segment[K]{}, false
	}
	return s.Segments[idx], true
}

// ByteAt returns the flag word at address, if address falls within a
// known segment.
func (s *Section[K]) ByteAt(address K) (ByteInfo, bool) {
	seg, ok := s.SegmentByAddress(address)
	if !ok {
		return ByteInfo{}, false
	}
	idx := int(arch.Sub(address, seg.Offset))
	return seg.At(idx)
}

// AllBytes iterates every address in the union of segments, in address
// order, yielding each one's flag word.
func (s *Section[K]) AllBytes(yield func(K, ByteInfo) bool) {
	for _, seg := range s.Segments {
		for i, raw := range seg.data {
			addr := arch.Add(seg.Offset, K(i))
			if !yield(addr, FromRaw(raw)) {
				return
			}
		}
	}
}

// AllBytesNoTails iterates every non-tail byte, along with the length of
// its tail run (1 + however many consecutive tail bytes follow).
func (s *Section[K]) AllBytesNoTails(yield func(K, ByteInfo, int) bool) {
	for _, seg := range s.Segments {
		for i, raw := range seg.data {
			info := FromRaw(raw)
			if info.IsTail() {
				continue
			}
			size := 1
			for j := i + 1; j < len(seg.data) && FromRaw(seg.data[j]).IsTail(); j++ {
				size++
			}
			addr := arch.Add(seg.Offset, K(i))
			if !yield(addr, info, size) {
				return
			}
		}
	}
}

// PrevNotTail returns the nearest address at or before ea whose flag word
// is not a tail byte.
func (s *Section[K]) PrevNotTail(ea K) (K, ByteInfo, bool) {
	idx, found := s.segmentIndexByAddress(ea)
	var seg Segment[K]
	var limit int
	if found {
		seg = s.Segments[idx]
		limit = int(arch.Sub(ea, seg.Offset)) + 1
	} else {
		if idx == 0 {
			return 0, ByteInfo{}, false
		}
		seg = s.Segments[idx-1]
		limit = len(seg.data)
	}
	for i := limit - 1; i >= 0; i-- {
		info := FromRaw(seg.data[i])
		if !info.IsTail() {
			return arch.Add(seg.Offset, K(i)), info, true
		}
	}
	return 0, ByteInfo{}, false
}

// NextNotTail returns the nearest address at or after ea whose flag word
// is not a tail byte.
func (s *Section[K]) NextNotTail(ea K) (K, ByteInfo, bool) {
	idx, found := s.segmentIndexByAddress(ea)
	for si := idx; si < len(s.Segments); si++ {
		seg := s.Segments[si]
		begin := 0
		if si == idx && found {
			begin = int(arch.Sub(ea, seg.Offset))
		}
		for i := begin; i < len(seg.data); i++ {
			info := FromRaw(seg.data[i])
			if !info.IsTail() {
				return arch.Add(seg.Offset, K(i)), info, true
			}
		}
	}
	return 0, ByteInfo{}, false
}

// requireRemainderZero verifies that every remaining byte of the header
// page is zero: unused header space must carry no stray data.
func requireRemainderZero(r *varint.Reader) error {
	for {
		b, ok, err := r.PeekU8()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if b != 0 {
			return utils.NewKind(utils.KindInvariantViolation, "ID1 header page has non-zero unused bytes")
		}
		_, _ = r.ReadU8()
	}
}

// bufReader adapts a byte slice to an io.Reader without an extra copy,
// matching varint.NewReader's preference for a *bufio.Reader-compatible
// source.
func bufReader(b []byte) io.Reader { return &sliceReader{b: b} }

type sliceReader struct {
	b   []byte
	pos int
}

func (s *sliceReader) Read(p []byte) (int, error) {
	if s.pos >= len(s.b) {
		return 0, io.EOF
	}
	n := copy(p, s.b[s.pos:])
	s.pos += n
	return n, nil
}
