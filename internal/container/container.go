// Package container identifies the outer IDB file shape, locates its five
// named sections, and exposes each as a bounded, transparently-
// decompressing byte stream.
package container

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/goidb/idb/internal/utils"
)

// Shape identifies how the outer file packages its sections.
type Shape int

const (
	// ShapeSeparated is a fixed header naming byte offsets to each
	// section, each with its own compression/length sub-header.
	ShapeSeparated Shape = iota
	// ShapeInlineUncompressed lays sections out sequentially in a single
	// stream, each preceded by its own compression/length sub-header.
	ShapeInlineUncompressed
	// ShapeInlineCompressed is a single outer zlib stream; once inflated
	// it has the same layout as ShapeInlineUncompressed.
	ShapeInlineCompressed
)

// Section names the five section kinds an IDB can carry.
type Section int

const (
	SectionID0 Section = iota
	SectionID1
	SectionNAM
	SectionSEG
	SectionTIL
)

func (s Section) String() string {
	switch s {
	case SectionID0:
		return "ID0"
	case SectionID1:
		return "ID1"
	case SectionNAM:
		return "NAM"
	case SectionSEG:
		return "SEG"
	case SectionTIL:
		return "TIL"
	default:
		return "unknown section"
	}
}

// orderedSections is the fixed canonical section order used both by the
// separated offset table and by the sequential inline layouts.
var orderedSections = [...]Section{SectionID0, SectionID1, SectionNAM, SectionSEG, SectionTIL}

// Compression names a per-section compression method.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionZlib Compression = 2
)

// outerSignature is the separated-layout header's fixed validation word.
const outerSignature = 0xAABBCCDD

// Location is a section's byte range and compression method within the
// (possibly already-inflated) container stream.
type Location struct {
	Offset      int64
	Length      int64
	Compression Compression
}

// Container is an opened IDB file: the outer shape has been identified
// and every present section has been located, but nothing has been
// decompressed yet.
type Container struct {
	data        []byte // backing bytes: the raw file, or the inflated outer stream
	is64        bool
	shape       Shape
	fileVersion uint16
	sections    map[Section]Location
}

// Is64 reports whether this database uses 64-bit addresses/netnode ids
// ("IDA2" outer magic), as opposed to 32-bit ("IDA0"/"IDA1").
func (c *Container) Is64() bool { return c.is64 }

// Shape reports which of the three outer file shapes this database used.
func (c *Container) Shape() Shape { return c.shape }

// Locate returns the byte range and compression method for a section, or
// ok=false if the database does not carry that section.
func (c *Container) Locate(kind Section) (loc Location, ok bool) {
	loc, ok = c.sections[kind]
	return loc, ok
}

// OpenSection returns a reader over a section's decompressed bytes.
func (c *Container) OpenSection(kind Section) (io.Reader, error) {
	loc, ok := c.Locate(kind)
	if !ok {
		return nil, utils.WrapKind(utils.KindFormatMismatch, fmt.Sprintf("section %s not present", kind), nil)
	}
	if loc.Offset < 0 || loc.Length < 0 || loc.Offset+loc.Length > int64(len(c.data)) {
		return nil, utils.NewKind(utils.KindInvariantViolation, fmt.Sprintf("section %s: range out of bounds", kind))
	}
	raw := c.data[loc.Offset : loc.Offset+loc.Length]
	switch loc.Compression {
	case CompressionNone:
		return bytes.NewReader(raw), nil
	case CompressionZlib:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, utils.WrapKind(utils.KindFormatMismatch, fmt.Sprintf("section %s: zlib header", kind), err)
		}
		return zr, nil
	default:
		return nil, utils.NewKind(utils.KindFormatMismatch, fmt.Sprintf("section %s: unknown compression method %d", kind, loc.Compression))
	}
}

// Open identifies the outer shape of the file in r, locates its sections,
// and returns a Container ready to serve OpenSection calls. It reads the
// entire input into memory once, since the inline-compressed shape
// requires a full decompress pass regardless.
func Open(r io.Reader) (*Container, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, utils.WrapKind(utils.KindTruncatedInput, "read container", err)
	}
	if len(raw) < 4 {
		return nil, utils.NewKind(utils.KindTruncatedInput, "file too small to contain a magic")
	}

	is64, isFileMagic := archFromMagic(raw[:4])
	switch {
	case isFileMagic:
		return openSeparated(raw, is64)
	case looksLikeZlib(raw):
		inflated, err := inflateAll(raw)
		if err != nil {
			return nil, utils.WrapKind(utils.KindFormatMismatch, "inline-compressed outer stream", err)
		}
		return openInlineUncompressed(inflated, ShapeInlineCompressed)
	default:
		return openInlineUncompressed(raw, ShapeInlineUncompressed)
	}
}

// archFromMagic recognises the three file magics: "IDA0" and "IDA1"
// select 32-bit arch, "IDA2" selects 64-bit.
func archFromMagic(magic []byte) (is64 bool, ok bool) {
	switch string(magic) {
	case "IDA0", "IDA1":
		return false, true
	case "IDA2":
		return true, true
	default:
		return false, false
	}
}

func looksLikeZlib(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	// RFC1950 header: CMF/FLG, with CMF low nibble == 8 (deflate) and the
	// 16-bit big-endian header a multiple of 31.
	if data[0]&0x0F != 8 {
		return false
	}
	return (uint16(data[0])<<8|uint16(data[1]))%31 == 0
}

func inflateAll(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, utils.MaxSectionSize))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// openSeparated parses the fixed header naming byte offsets to each
// section. The 64-bit offset-table layout (V5/V6) packs each section
// offset as a low/high u32 pair; earlier, 32-bit-only layouts use a
// single u32 per section with no high half. Which variant applies is
// inferred from is64 (the outer file magic), since both the separated
// header shape and the inner section-length width key off the same
// arch-width distinction.
func openSeparated(raw []byte, is64 bool) (*Container, error) {
	const magicLen = 4
	offset := magicLen + 2 // magic, then u16 padding

	n := len(orderedSections)
	offsets := make([]uint64, n)

	if is64 {
		need := offset + n*8 + 4 + 2
		if len(raw) < need {
			return nil, utils.NewKind(utils.KindTruncatedInput, "separated header (64-bit offsets)")
		}
		for i := 0; i < n; i++ {
			lo := binary.LittleEndian.Uint32(raw[offset:])
			offset += 4
			hi := binary.LittleEndian.Uint32(raw[offset:])
			offset += 4
			offsets[i] = uint64(lo) | uint64(hi)<<32
		}
	} else {
		need := offset + n*4 + 4 + 2
		if len(raw) < need {
			return nil, utils.NewKind(utils.KindTruncatedInput, "separated header (32-bit offsets)")
		}
		for i := 0; i < n; i++ {
			offsets[i] = uint64(binary.LittleEndian.Uint32(raw[offset:]))
			offset += 4
		}
	}

	signature := binary.LittleEndian.Uint32(raw[offset:])
	offset += 4
	if signature != outerSignature {
		return nil, utils.WrapKind(utils.KindFormatMismatch, "separated header signature", nil)
	}
	fileVersion := binary.LittleEndian.Uint16(raw[offset:])
	offset += 2

	c := &Container{
		data:        raw,
		is64:        is64,
		shape:       ShapeSeparated,
		fileVersion: fileVersion,
		sections:    make(map[Section]Location),
	}

	for i, kind := range orderedSections {
		off := offsets[i]
		if off == 0 {
			continue // absent section
		}
		loc, err := readSectionHeader(raw, int64(off), is64)
		if err != nil {
			return nil, utils.WrapKind(utils.KindTruncatedInput, fmt.Sprintf("section %s header", kind), err)
		}
		c.sections[kind] = loc
	}
	return c, nil
}

// openInlineUncompressed parses sections laid out sequentially in a
// single stream, each preceded by its own compression/length header, in
// the fixed canonical section order. A stream that ends early simply
// carries fewer sections. The inline shapes carry no outer magic of their
// own, so they are always treated as 32-bit (Is64 reports false).
func openInlineUncompressed(raw []byte, shape Shape) (*Container, error) {
	c := &Container{
		data:     raw,
		shape:    shape,
		sections: make(map[Section]Location),
	}

	cursor := int64(0)
	for _, kind := range orderedSections {
		if cursor >= int64(len(raw)) {
			break
		}
		loc, consumed, err := readSectionHeaderAt(raw, cursor, c.is64)
		if err != nil {
			return nil, utils.WrapKind(utils.KindTruncatedInput, fmt.Sprintf("section %s header", kind), err)
		}
		c.sections[kind] = loc
		cursor = consumed + loc.Length
	}
	return c, nil
}

// readSectionHeader reads a per-section header at a fixed offset
// (separated layout): u8 compression, then a u32 (32-bit arch) or u64
// (64-bit arch) length, followed immediately by that many payload bytes.
func readSectionHeader(raw []byte, offset int64, is64 bool) (Location, error) {
	loc, _, err := readSectionHeaderAt(raw, offset, is64)
	return loc, err
}

func readSectionHeaderAt(raw []byte, offset int64, is64 bool) (loc Location, payloadStart int64, err error) {
	if offset < 0 || offset >= int64(len(raw)) {
		return Location{}, 0, utils.NewKind(utils.KindTruncatedInput, "section header offset out of range")
	}
	compression := Compression(raw[offset])
	offset++

	var length int64
	if is64 {
		if offset+8 > int64(len(raw)) {
			return Location{}, 0, utils.NewKind(utils.KindTruncatedInput, "section length (u64)")
		}
		length = int64(binary.LittleEndian.Uint64(raw[offset:]))
		offset += 8
	} else {
		if offset+4 > int64(len(raw)) {
			return Location{}, 0, utils.NewKind(utils.KindTruncatedInput, "section length (u32)")
		}
		length = int64(binary.LittleEndian.Uint32(raw[offset:]))
		offset += 4
	}
	if length < 0 || offset+length > int64(len(raw)) {
		return Location{}, 0, utils.NewKind(utils.KindInvariantViolation, "section length exceeds remaining file")
	}
	return Location{Offset: offset, Length: length, Compression: compression}, offset, nil
}
