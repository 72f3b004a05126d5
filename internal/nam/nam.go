// Package nam decodes the NAM section: the flat list of addresses that
// carry a user-supplied (non-dummy) name, stored as a dense array behind
// a small header-plus-pages framing almost identical to ID1's.
package nam

import (
	"io"

	"github.com/goidb/idb/internal/arch"
	"github.com/goidb/idb/internal/utils"
	"github.com/goidb/idb/internal/varint"
)

// defaultPageSize is the VaX layout's fixed page size; Va0..Va4 carries
// its own page size field instead.
const defaultPageSize = 0x2000

// maxHeaderLen bounds the fixed-size header read before the page size is
// known. 64 bytes is large enough for every header layout below; a
// future version adding more fields would need this revisited.
const maxHeaderLen = 64

// Section is the decoded NAM section: every address that has a
// user-supplied name, in on-disk order.
type Section[K arch.Kind] struct {
	Names []K
}

// Read decodes a NAM section from r.
func Read[K arch.Kind](r io.Reader, lenient bool) (*Section[K], error) {
	header := make([]byte, maxHeaderLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, utils.WrapKind(utils.KindTruncatedInput, "NAM header", err)
	}
	hr := varint.NewReader(newSliceReader(header), lenient)

	npages, nnames, pagesize, headerLen, err := readHeader[K](hr)
	if err != nil {
		return nil, err
	}
	if npages == 0 {
		return nil, utils.NewKind(utils.KindInvariantViolation, "NAM header declares zero pages")
	}

	for _, b := range header[headerLen:] {
		if b != 0 {
			return nil, utils.NewKind(utils.KindInvariantViolation, "NAM header has non-zero unused bytes")
		}
	}
	rest := make([]byte, int(pagesize)-maxHeaderLen)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, utils.WrapKind(utils.KindTruncatedInput, "NAM header page padding", err)
	}
	for _, b := range rest {
		if b != 0 {
			return nil, utils.NewKind(utils.KindInvariantViolation, "NAM header page has non-zero unused bytes")
		}
	}

	if pagesize%uint32(arch.Bytes[K]()) != 0 {
		return nil, utils.NewKind(utils.KindInvariantViolation, "NAM page size does not align to address width")
	}
	nameWidth := uint64(arch.Bytes[K]())
	required := nnames * nameWidth
	available := (uint64(npages) - 1) * uint64(pagesize)
	if required > available {
		return nil, utils.NewKind(utils.KindInvariantViolation, "NAM section too small for declared name count")
	}

	dr := varint.NewReader(r, lenient)
	names := make([]K, nnames)
	for i := range names {
		v, err := varint.ReadUsize[K](dr)
		if err != nil {
			return nil, err
		}
		names[i] = v
	}

	if !lenient {
		if unused := available - required; unused > 0 {
			if unused%nameWidth != 0 {
				return nil, utils.NewKind(utils.KindInvariantViolation, "NAM trailing padding misaligned")
			}
			for i := uint64(0); i < unused/nameWidth; i++ {
				v, err := varint.ReadUsize[K](dr)
				if err != nil {
					return nil, err
				}
				if v != 0 {
					return nil, utils.NewKind(utils.KindInvariantViolation, "NAM trailing padding is not zero")
				}
			}
		}
	}

	return &Section[K]{Names: names}, nil
}

// vaKind mirrors bflags' unexported vaVersion dispatch; duplicated here
// rather than exported from bflags since it's a handful of lines and NAM
// has no other dependency on the ID1/ID2 package.
type vaKind int

const (
	vaOld vaKind = iota
	vaX
)

func readVaKind(r *varint.Reader) (vaKind, error) {
	var magic [4]byte
	if err := r.ReadExact(magic[:]); err != nil {
		return 0, err
	}
	switch string(magic[:]) {
	case "Va0\x00", "Va1\x00", "Va2\x00", "Va3\x00", "Va4\x00":
		return vaOld, nil
	case "VA*\x00":
		return vaX, nil
	default:
		return 0, utils.NewKind(utils.KindFormatMismatch, "invalid NAM Va magic")
	}
}

func readHeader[K arch.Kind](r *varint.Reader) (npages K, nnames uint64, pagesize uint32, headerLen int, err error) {
	kind, err := readVaKind(r)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	usizeWidth := arch.Bytes[K]()
	switch kind {
	case vaOld:
		always1, err := r.ReadU16()
		if err != nil {
			return 0, 0, 0, 0, err
		}
		if always1 != 1 {
			return 0, 0, 0, 0, utils.NewKind(utils.KindFormatMismatch, "NAM header: expected constant 1")
		}
		npages, err = varint.ReadUsize[K](r)
		if err != nil {
			return 0, 0, 0, 0, err
		}
		always0, err := r.ReadU16()
		if err != nil {
			return 0, 0, 0, 0, err
		}
		if always0 != 0 {
			return 0, 0, 0, 0, utils.NewKind(utils.KindFormatMismatch, "NAM header: expected constant 0")
		}
		nnamesK, err := varint.ReadUsize[K](r)
		if err != nil {
			return 0, 0, 0, 0, err
		}
		nnames = uint64(nnamesK)
		if usizeWidth == 8 {
			nnames /= 2
		}
		pagesize, err = r.ReadU32()
		if err != nil {
			return 0, 0, 0, 0, err
		}
		if pagesize < 64 {
			return 0, 0, 0, 0, utils.NewKind(utils.KindInvariantViolation, "NAM page size too small")
		}
		headerLen = 4 + 2 + usizeWidth + 2 + usizeWidth + 4
		return npages, nnames, pagesize, headerLen, nil
	case vaX:
		always3, err := r.ReadU32()
		if err != nil {
			return 0, 0, 0, 0, err
		}
		if always3 != 3 {
			return 0, 0, 0, 0, utils.NewKind(utils.KindFormatMismatch, "NAM header: expected constant 3")
		}
		oneOrZero, err := r.ReadU32()
		if err != nil {
			return 0, 0, 0, 0, err
		}
		if oneOrZero != 0 && oneOrZero != 1 {
			return 0, 0, 0, 0, utils.NewKind(utils.KindFormatMismatch, "NAM header: expected 0 or 1")
		}
		always2048, err := r.ReadU32()
		if err != nil {
			return 0, 0, 0, 0, err
		}
		if always2048 != 2048 {
			return 0, 0, 0, 0, utils.NewKind(utils.KindFormatMismatch, "NAM header: expected constant 2048")
		}
		npages, err = varint.ReadUsize[K](r)
		if err != nil {
			return 0, 0, 0, 0, err
		}
		always0, err := r.ReadU32()
		if err != nil {
			return 0, 0, 0, 0, err
		}
		if always0 != 0 {
			return 0, 0, 0, 0, utils.NewKind(utils.KindFormatMismatch, "NAM header: expected constant 0")
		}
		nnamesK, err := varint.ReadUsize[K](r)
		if err != nil {
			return 0, 0, 0, 0, err
		}
		nnames = uint64(nnamesK)
		if usizeWidth == 8 {
			nnames /= 2
		}
		headerLen = 4 + 4 + 4 + 4 + usizeWidth + 4 + usizeWidth
		return npages, nnames, defaultPageSize, headerLen, nil
	default:
		return 0, 0, 0, 0, utils.NewKind(utils.KindUnsupportedVersion, "unreachable NAM Va kind")
	}
}

type sliceReader struct {
	b   []byte
	pos int
}

func newSliceReader(b []byte) *sliceReader { return &sliceReader{b: b} }

func (s *sliceReader) Read(p []byte) (int, error) {
	if s.pos >= len(s.b) {
		return 0, io.EOF
	}
	n := copy(p, s.b[s.pos:])
	s.pos += n
	return n, nil
}
