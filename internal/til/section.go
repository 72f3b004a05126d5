// Section decoding: the TIL container's own header, its two compressed-
// or-plain record buckets (symbols and types), the optional ordinal-alias
// table, and the optional macro table.
//
// Two plausible field-naming conventions exist for the header's integer
// size fields (size_i/size_b vs size_int/size_bool); this package follows
// the naming used by the code that actually reads the on-disk bytes
// (SizeI/SizeB below).
package til

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/goidb/idb/internal/utils"
	"github.com/goidb/idb/internal/varint"
)

const tilSectionMagic = "IDATIL"

// SectionFlag is the TIL header's bit-flag word, following the
// Inffl/Lflg thin-wrapper idiom used elsewhere in this codebase for
// on-disk flag words.
type SectionFlag uint32

func (f SectionFlag) IsZip() bool                     { return f&tilZip != 0 }
func (f SectionFlag) HasMacroTable() bool             { return f&tilMac != 0 }
func (f SectionFlag) HasSizeShortLongLongLong() bool  { return f&tilESI != 0 }
func (f SectionFlag) IsUniversal() bool               { return f&tilUni != 0 }
func (f SectionFlag) HasOrdinal() bool                { return f&tilOrd != 0 }
func (f SectionFlag) HasTypeAliases() bool            { return f&tilAli != 0 }
func (f SectionFlag) IsMod() bool                     { return f&tilMod != 0 }
func (f SectionFlag) HasExtraStream() bool            { return f&tilStm != 0 }
func (f SectionFlag) HasSizeLongDouble() bool         { return f&tilSLD != 0 }

// TILSizes carries the optional extended short/long/long-long sizeof
// trio, present only when the header flags report
// HasSizeShortLongLongLong.
type TILSizes struct {
	Short    uint8
	Long     uint8
	LongLong uint8
}

// SectionHeader is the TIL section's fixed preamble: every field needed
// to parse the type records that follow.
type SectionHeader struct {
	Format      uint32
	Flags       SectionFlag
	Title       []byte
	Description []byte
	ID          uint8
	CM          uint8
	SizeEnum    uint8
	// SizeI is the compiler's sizeof(int).
	SizeI uint8
	// SizeB is the compiler's sizeof(bool); used by newBasic for
	// BasicBoolSized's btmtDefbool case.
	SizeB    uint8
	DefAlign uint8
	// Sizes is nil when the header flags don't carry the extended
	// short/long/long-long trio.
	Sizes *TILSizes
	// SizeLongDouble is 0 when absent (newBasic defaults to 8).
	SizeLongDouble uint8
}

// readHeader decodes the section header: a fixed bincode-style prefix
// (signature, format, flags), then two length-prefixed byte strings,
// then a second fixed prefix, then two gated optional trailers.
func readHeader(r *varint.Reader) (*SectionHeader, error) {
	var sig [6]byte
	if err := r.ReadExact(sig[:]); err != nil {
		return nil, utils.WrapKind(utils.KindTruncatedInput, "TIL header signature", err)
	}
	if string(sig[:]) != tilSectionMagic {
		return nil, utils.NewKind(utils.KindFormatMismatch, "TIL header: bad signature")
	}
	format, err := r.ReadU32()
	if err != nil {
		return nil, utils.WrapKind(utils.KindTruncatedInput, "TIL header format", err)
	}
	flagsRaw, err := r.ReadU32()
	if err != nil {
		return nil, utils.WrapKind(utils.KindTruncatedInput, "TIL header flags", err)
	}
	flags := SectionFlag(flagsRaw)

	title, err := r.ReadBytesLenU8()
	if err != nil {
		return nil, utils.WrapKind(utils.KindTruncatedInput, "TIL header title", err)
	}
	description, err := r.ReadBytesLenU8()
	if err != nil {
		return nil, utils.WrapKind(utils.KindTruncatedInput, "TIL header description", err)
	}

	id, err := r.ReadU8()
	if err != nil {
		return nil, utils.WrapKind(utils.KindTruncatedInput, "TIL header id", err)
	}
	cm, err := r.ReadU8()
	if err != nil {
		return nil, utils.WrapKind(utils.KindTruncatedInput, "TIL header cm", err)
	}
	sizeI, err := r.ReadU8()
	if err != nil {
		return nil, utils.WrapKind(utils.KindTruncatedInput, "TIL header size_i", err)
	}
	sizeB, err := r.ReadU8()
	if err != nil {
		return nil, utils.WrapKind(utils.KindTruncatedInput, "TIL header size_b", err)
	}
	sizeEnum, err := r.ReadU8()
	if err != nil {
		return nil, utils.WrapKind(utils.KindTruncatedInput, "TIL header size_enum", err)
	}
	defAlign, err := r.ReadU8()
	if err != nil {
		return nil, utils.WrapKind(utils.KindTruncatedInput, "TIL header def_align", err)
	}

	var sizes *TILSizes
	if flags.HasSizeShortLongLongLong() {
		var s, l, ll uint8
		if s, err = r.ReadU8(); err != nil {
			return nil, utils.WrapKind(utils.KindTruncatedInput, "TIL header size_short", err)
		}
		if l, err = r.ReadU8(); err != nil {
			return nil, utils.WrapKind(utils.KindTruncatedInput, "TIL header size_long", err)
		}
		if ll, err = r.ReadU8(); err != nil {
			return nil, utils.WrapKind(utils.KindTruncatedInput, "TIL header size_long_long", err)
		}
		sizes = &TILSizes{Short: s, Long: l, LongLong: ll}
	}

	var sizeLongDouble uint8
	if flags.HasSizeLongDouble() {
		if sizeLongDouble, err = r.ReadU8(); err != nil {
			return nil, utils.WrapKind(utils.KindTruncatedInput, "TIL header size_long_double", err)
		}
	}

	return &SectionHeader{
		Format:         format,
		Flags:          flags,
		Title:          title,
		Description:    description,
		ID:             id,
		CM:             cm,
		SizeEnum:       sizeEnum,
		SizeI:          sizeI,
		SizeB:          sizeB,
		DefAlign:       defAlign,
		Sizes:          sizes,
		SizeLongDouble: sizeLongDouble,
	}, nil
}

// TypeInfo is one named entry in a type or symbol bucket: a name, its
// library ordinal, and its decoded type. The on-disk record's
// info/cmt/fieldcmts/sclass fields are discarded entirely here rather
// than kept as unread placeholders.
type TypeInfo struct {
	Name    []byte
	Ordinal uint64
	Info    Type
}

// MacroValueKind distinguishes a macro body's two token kinds.
type MacroValueKind int

const (
	MacroValueChar MacroValueKind = iota
	MacroValueParam
)

// MacroValue is one token of a macro's expansion body.
type MacroValue struct {
	Kind MacroValueKind
	// Byte holds the literal character for MacroValueChar, or the
	// parameter index (0-127) for MacroValueParam.
	Byte uint8
}

// Macro is one #define-style macro carried by the optional macro table.
type Macro struct {
	Name string
	// ParamNum is nil when the macro declares no parameters.
	ParamNum *uint8
	Value    []MacroValue
}

// Section is the fully decoded TIL container: its header fields plus
// every symbol, type, ordinal alias, and macro it carries.
type Section struct {
	Format             uint32
	Title              []byte
	Description        []byte
	ID                 uint8
	CM                 uint8
	DefAlign           uint8
	Symbols            []TypeInfo
	TypeOrdinalNumbers []uint32
	Types              []TypeInfo
	SizeEnum           uint8
	SizeI              uint8
	SizeB              uint8
	Sizes              *TILSizes
	SizeLongDouble     uint8
	Macros             []Macro
	IsUniversal        bool
}

// Header reconstructs the SectionHeader fields a fresh ReadType call
// needs (CM/SizeEnum/SizeI/SizeB/Sizes/SizeLongDouble), for decoding a
// one-off type blob found elsewhere in the database (e.g. an address's
// stashed typeinfo) against this section's own compiler/ABI settings.
// Flags is left zero: nothing downstream of header parsing consults it.
func (s *Section) Header() *SectionHeader {
	return &SectionHeader{
		Format:         s.Format,
		Title:          s.Title,
		Description:    s.Description,
		ID:             s.ID,
		CM:             s.CM,
		SizeEnum:       s.SizeEnum,
		SizeI:          s.SizeI,
		SizeB:          s.SizeB,
		DefAlign:       s.DefAlign,
		Sizes:          s.Sizes,
		SizeLongDouble: s.SizeLongDouble,
	}
}

// ReadSection decodes a whole TIL section.
func ReadSection(src io.Reader, lenient bool) (*Section, error) {
	r := varint.NewReader(src, lenient)

	header, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	symbols, err := readBucket(r, header)
	if err != nil {
		return nil, utils.WrapKind(utils.KindTruncatedInput, "TIL symbols bucket", err)
	}

	var ordinals []uint32
	if header.Flags.HasOrdinal() {
		ordinals, err = readOrdinals(r, header)
		if err != nil {
			return nil, utils.WrapKind(utils.KindTruncatedInput, "TIL ordinal aliases", err)
		}
	}

	types, err := readBucket(r, header)
	if err != nil {
		return nil, utils.WrapKind(utils.KindTruncatedInput, "TIL types bucket", err)
	}

	var macros []Macro
	if header.Flags.HasMacroTable() {
		macros, err = readMacros(r, header)
		if err != nil {
			return nil, utils.WrapKind(utils.KindTruncatedInput, "TIL macros", err)
		}
	}

	return &Section{
		Format:             header.Format,
		Title:              header.Title,
		Description:        header.Description,
		ID:                 header.ID,
		CM:                 header.CM,
		DefAlign:           header.DefAlign,
		Symbols:            symbols,
		TypeOrdinalNumbers: ordinals,
		Types:              types,
		SizeEnum:           header.SizeEnum,
		SizeI:              header.SizeI,
		SizeB:              header.SizeB,
		Sizes:              header.Sizes,
		SizeLongDouble:     header.SizeLongDouble,
		Macros:             macros,
		IsUniversal:        header.Flags.IsUniversal(),
	}, nil
}

func readOrdinals(r *varint.Reader, header *SectionHeader) ([]uint32, error) {
	total, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	ordinals := []uint32{total}
	if !header.Flags.HasTypeAliases() {
		return ordinals, nil
	}
	for {
		value, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		if value == 0xFFFFFFFF {
			break
		}
		ordinals = append(ordinals, value)
	}
	return ordinals, nil
}

// readBucketHeader reads the ndefs/len pair shared by the plain and
// zlib-compressed bucket framings.
func readBucketHeader(r *varint.Reader) (ndefs, length uint32, err error) {
	if ndefs, err = r.ReadU32(); err != nil {
		return 0, 0, err
	}
	if length, err = r.ReadU32(); err != nil {
		return 0, 0, err
	}
	return ndefs, length, nil
}

func readBucket(r *varint.Reader, header *SectionHeader) ([]TypeInfo, error) {
	if header.Flags.IsZip() {
		return readBucketZip(r, header)
	}
	return readBucketNormal(r, header)
}

func readBucketNormal(r *varint.Reader, header *SectionHeader) ([]TypeInfo, error) {
	ndefs, length, err := readBucketHeader(r)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, length)
	if err := r.ReadExact(payload); err != nil {
		return nil, err
	}
	return readBucketRecords(payload, header, ndefs)
}

func readBucketZip(r *varint.Reader, header *SectionHeader) ([]TypeInfo, error) {
	ndefs, length, err := readBucketHeader(r)
	if err != nil {
		return nil, err
	}
	compressedLen, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	compressed := make([]byte, compressedLen)
	if err := r.ReadExact(compressed); err != nil {
		return nil, err
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, utils.WrapKind(utils.KindFormatMismatch, "TIL bucket zlib header", err)
	}
	defer zr.Close()

	payload := make([]byte, length)
	if _, err := io.ReadFull(zr, payload); err != nil {
		return nil, utils.WrapKind(utils.KindTruncatedInput, "TIL bucket inflated payload", err)
	}
	var extra [1]byte
	if n, _ := zr.Read(extra[:]); n != 0 {
		return nil, utils.NewKind(utils.KindInvariantViolation, "TIL bucket: inflated payload larger than declared length")
	}

	return readBucketRecords(payload, header, ndefs)
}

// readBucketRecords decodes ndefs type-info records out of a bucket's
// raw payload. The last record in a bucket may legitimately be shorter
// than a byte-accurate reparse would predict, so it consumes whatever
// bytes remain instead of using the regular per-record span extraction.
func readBucketRecords(payload []byte, header *SectionHeader, ndefs uint32) ([]TypeInfo, error) {
	br := bufio.NewReader(bytes.NewReader(payload))
	r := varint.NewReader(br, false)

	records := make([]TypeInfo, 0, ndefs)
	consumed := 0
	for i := uint32(0); i < ndefs; i++ {
		var span []byte
		if i == ndefs-1 {
			if consumed > len(payload) {
				return nil, utils.NewKind(utils.KindInvariantViolation, "TIL bucket: record span exceeds payload")
			}
			span = make([]byte, len(payload)-consumed)
			if err := r.ReadExact(span); err != nil {
				return nil, err
			}
		} else {
			raw, err := r.ReadRawTILType(header.Format)
			if err != nil {
				return nil, err
			}
			span = raw
			consumed += len(raw)
		}

		info, err := readTypeInfo(span, header)
		if err != nil {
			return nil, utils.WrapKind(utils.KindInvariantViolation, fmt.Sprintf("TIL bucket record %d", i), err)
		}
		records = append(records, *info)
	}
	return records, nil
}

// readTypeInfo parses one record's already-extracted raw byte span:
// flags, name, ordinal, the nested type, three discarded comment/info
// strings, the field-name stream, and a trailing storage-class byte.
// The field-name stream must be fully drained by the nested type's own
// field consumption.
func readTypeInfo(span []byte, header *SectionHeader) (*TypeInfo, error) {
	r := varint.NewReader(bytes.NewReader(span), false)

	flags, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	name, err := r.ReadCStringRaw()
	if err != nil {
		return nil, err
	}

	var ordinal uint64
	isU64 := flags>>31 != 0
	if header.Format <= 0x11 || !isU64 {
		v, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		ordinal = uint64(v)
	} else {
		ordinal, err = r.ReadU64()
		if err != nil {
			return nil, err
		}
	}

	tinfoRaw, err := readTypeRaw(r, header)
	if err != nil {
		return nil, err
	}

	if _, err := r.ReadCStringRaw(); err != nil { // info, discarded
		return nil, err
	}
	if _, err := r.ReadCStringRaw(); err != nil { // cmt, discarded
		return nil, err
	}
	fieldNames, err := r.ReadCStringVec()
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadCStringRaw(); err != nil { // fieldcmts, discarded
		return nil, err
	}
	if _, err := r.ReadU8(); err != nil { // sclass, discarded
		return nil, err
	}

	fields := NewFieldNames(fieldNames)
	tinfo, err := newType(header, tinfoRaw, fields)
	if err != nil {
		return nil, err
	}
	if fields.Remaining() != 0 {
		return nil, utils.NewKind(utils.KindInvariantViolation, "extra field names found for til type")
	}

	return &TypeInfo{Name: name, Ordinal: ordinal, Info: tinfo}, nil
}

func readMacros(r *varint.Reader, header *SectionHeader) ([]Macro, error) {
	if header.Flags.IsZip() {
		return readMacrosZip(r)
	}
	return readMacrosNormal(r)
}

func readMacrosNormal(r *varint.Reader) ([]Macro, error) {
	ndefs, length, err := readBucketHeader(r)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, length)
	if err := r.ReadExact(payload); err != nil {
		return nil, err
	}
	return readMacroRecords(payload, ndefs)
}

func readMacrosZip(r *varint.Reader) ([]Macro, error) {
	ndefs, length, err := readBucketHeader(r)
	if err != nil {
		return nil, err
	}
	compressedLen, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	compressed := make([]byte, compressedLen)
	if err := r.ReadExact(compressed); err != nil {
		return nil, err
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, utils.WrapKind(utils.KindFormatMismatch, "TIL macros zlib header", err)
	}
	defer zr.Close()

	payload := make([]byte, length)
	if _, err := io.ReadFull(zr, payload); err != nil {
		return nil, utils.WrapKind(utils.KindTruncatedInput, "TIL macros inflated payload", err)
	}

	return readMacroRecords(payload, ndefs)
}

func readMacroRecords(payload []byte, ndefs uint32) ([]Macro, error) {
	r := varint.NewReader(bytes.NewReader(payload), false)
	macros := make([]Macro, 0, ndefs)
	for i := uint32(0); i < ndefs; i++ {
		m, err := readMacro(r)
		if err != nil {
			return nil, utils.WrapKind(utils.KindInvariantViolation, fmt.Sprintf("macro record %d", i), err)
		}
		macros = append(macros, *m)
	}
	return macros, nil
}

// readMacro decodes one macro record: a name, a flag word whose low byte
// is either zero or a parameter count, then a body string whose bytes
// 0x01-0x7F are literal characters and 0x80-0xFF (masked to 7 bits) are
// parameter references.
func readMacro(r *varint.Reader) (*Macro, error) {
	name, err := r.ReadCStringRaw()
	if err != nil {
		return nil, err
	}
	flag, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	if flag&0xFE00 != 0 {
		return nil, utils.NewKind(utils.KindInvariantViolation, fmt.Sprintf("macro: unknown flag value %#x", flag))
	}
	haveParam := flag&0x100 != 0
	var paramNum *uint8
	if haveParam {
		p := uint8(flag & 0xFF)
		paramNum = &p
	} else if flag&0xFF != 0 {
		return nil, utils.NewKind(utils.KindInvariantViolation, "macro: invalid flag value for a parameterless macro")
	}

	raw, err := r.ReadCStringRaw()
	if err != nil {
		return nil, err
	}

	values := make([]MacroValue, 0, len(raw))
	for _, c := range raw {
		switch {
		case c == 0x00:
			return nil, utils.NewKind(utils.KindInvariantViolation, "macro body contains an embedded NUL")
		case c <= 0x7F:
			values = append(values, MacroValue{Kind: MacroValueChar, Byte: c})
		default:
			paramIdx := c & 0x7F
			if !haveParam && (paramIdx == 0x20 || paramIdx == 0x25 || paramIdx == 0x29) {
				// Some macros reference parameters despite declaring none;
				// the meaning is unknown, so those bytes are dropped rather
				// than treated as errors.
				continue
			}
			values = append(values, MacroValue{Kind: MacroValueParam, Byte: paramIdx})
		}
	}

	return &Macro{Name: string(name), ParamNum: paramNum, Value: values}, nil
}
