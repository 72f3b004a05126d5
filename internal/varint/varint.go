package varint

import (
	"io"

	"github.com/goidb/idb/internal/arch"
	"github.com/goidb/idb/internal/utils"
)

// TypeAttribute is the decoded result of a tah/sdacl/type-attribute byte
// run: a bitmask plus an optional list of extended (key, value) byte-blob
// attributes.
type TypeAttribute struct {
	Tattr    uint16
	Extended []TypeAttributeExt
}

// TypeAttributeExt is one extended attribute entry: a pair of
// length-prefixed byte blobs whose interpretation is attribute-specific
// and not otherwise decoded.
type TypeAttributeExt struct {
	Value1 []byte
	Value2 []byte
}

const tahHasAttrs = 0x0010

// UnpackDW reads 1 to 3 bytes: a 7-bit, 14-bit, or 16-bit value depending
// on the leading byte's top bits.
func (r *Reader) UnpackDW() (uint16, error) {
	b1, ok, err := r.readU8OK()
	if err != nil {
		return 0, err
	}
	if !ok {
		if !r.Lenient {
			return 0, utils.WrapKind(utils.KindTruncatedInput, "unpack dw", io.ErrUnexpectedEOF)
		}
		return 0, nil
	}
	switch {
	case b1 <= 0x7F:
		return uint16(b1), nil
	case b1 <= 0xBF:
		lo, err := r.readByteOrZero()
		if err != nil {
			return 0, err
		}
		return uint16(b1&0x3F)<<8 | uint16(lo), nil
	default: // 0xC0..=0xFF; top 6 bits of b1 are ignored
		lo, err := r.readByteOrZero()
		if err != nil {
			return 0, err
		}
		hi, err := r.readByteOrZero()
		if err != nil {
			return 0, err
		}
		return uint16(lo)<<8 | uint16(hi), nil
	}
}

// UnpackDD reads 1 to 5 bytes: a 7-bit, 14-bit, 29-bit, or 32-bit value.
func (r *Reader) UnpackDD() (uint32, error) {
	b1, err := r.readU8()
	if err != nil {
		return 0, err
	}
	return r.UnpackDDFromByte(b1)
}

// UnpackDDFromByte continues an UnpackDD decode given an already-read
// leading byte (used when the caller peeked ahead, e.g. UnpackDDOrEOF).
func (r *Reader) UnpackDDFromByte(b1 byte) (uint32, error) {
	switch {
	case b1 <= 0x7F:
		return uint32(b1), nil
	case b1 <= 0xBF:
		lo, err := r.readByteOrZero()
		if err != nil {
			return 0, err
		}
		return uint32(b1&0x3F)<<8 | uint32(lo), nil
	case b1 <= 0xDF:
		var buf [3]byte
		if err := r.ReadExact(buf[:]); err != nil {
			return 0, err
		}
		return uint32(b1&0x1F)<<24 | uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2]), nil
	default: // 0xE0..=0xFF; top 5 bits of b1 are ignored
		var buf [4]byte
		if err := r.ReadExact(buf[:]); err != nil {
			return 0, err
		}
		return uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3]), nil
	}
}

// UnpackDDOrEOF peeks for a leading byte first, reporting ok=false at a
// clean EOF instead of erroring (used where an absent trailing field is
// valid, as opposed to a truncated one).
func (r *Reader) UnpackDDOrEOF() (value uint32, ok bool, err error) {
	b1, present, err := r.PeekU8()
	if err != nil {
		return 0, false, err
	}
	if !present {
		return 0, false, nil
	}
	r.consume(1)
	v, err := r.UnpackDDFromByte(b1)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// UnpackDQ reads 2 to 10 bytes: a low DD word followed by a high DD word.
func (r *Reader) UnpackDQ() (uint64, error) {
	lo, err := r.UnpackDD()
	if err != nil {
		return 0, err
	}
	hi, err := r.UnpackDD()
	if err != nil {
		return 0, err
	}
	return uint64(hi)<<32 | uint64(lo), nil
}

// UnpackUsize reads a netnode/address-width value: a plain UnpackDD for a
// 32-bit database, or an UnpackDQ for a 64-bit one. Netnode and address
// values share the arch-fixed numeric width.
func UnpackUsize[K arch.Kind](r *Reader) (K, error) {
	if arch.Bytes[K]() == 4 {
		v, err := r.UnpackDD()
		return K(v), err
	}
	v, err := r.UnpackDQ()
	return K(v), err
}

// UnpackDS reads a DD-prefixed length followed by that many raw bytes.
func (r *Reader) UnpackDS() ([]byte, error) {
	n, err := r.UnpackDD()
	if err != nil {
		return nil, err
	}
	if uint64(n) > utils.MaxStringSize {
		return nil, utils.NewKind(utils.KindInvariantViolation, "ds: length exceeds maximum string size")
	}
	buf := make([]byte, n)
	if err := r.ReadExact(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// UnpackDTBytes reads a DT-prefixed length followed by that many raw
// bytes (used for extended type-attribute values).
func (r *Reader) UnpackDTBytes() ([]byte, error) {
	n, err := r.ReadDT()
	if err != nil {
		return nil, err
	}
	if uint64(n) > utils.MaxStringSize {
		return nil, utils.NewKind(utils.KindInvariantViolation, "dt_bytes: length exceeds maximum string size")
	}
	buf := make([]byte, n)
	if err := r.ReadExact(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadDE reads 1 to 5 bytes, the variable-length codec used for TIL enum
// member value deltas. Each byte contributes 7 bits of payload except the
// terminating byte, which contributes only its low 6 bits.
func (r *Reader) ReadDE() (uint32, error) {
	var acc uint32
	for i := 0; i < 5; i++ {
		b, ok, err := r.readU8OK()
		if err != nil {
			return 0, err
		}
		if !ok {
			if !r.Lenient {
				return 0, utils.WrapKind(utils.KindTruncatedInput, "read de", io.ErrUnexpectedEOF)
			}
			return acc, nil
		}
		if b&0x80 == 0 {
			acc = uint32(b&0x3F) | (acc << 6)
			return acc, nil
		}
		acc = (acc << 7) | uint32(b&0x7F)
	}
	return 0, utils.NewKind(utils.KindInvariantViolation, "de: terminating byte not found within 5 bytes")
}

// ReadDT reads 1 or 2 bytes, yielding a value in 0..=0x7FFE. The on-disk
// encoding stores value+1 so that 0 is reserved as a sentinel (used by
// read_dt_de and raw-bucket counts to mean "no value"/"reference").
func (r *Reader) ReadDT() (uint16, error) {
	b, err := r.readU8()
	if err != nil {
		return 0, err
	}
	if b == 0 {
		if !r.Lenient {
			return 0, utils.NewKind(utils.KindInvariantViolation, "dt: value cannot be zero")
		}
		return 0, nil
	}
	var value uint16
	if b >= 0x80 {
		inter, err := r.readByteOrZero()
		if err != nil {
			return 0, err
		}
		if inter == 0 && !r.Lenient {
			return 0, utils.NewKind(utils.KindInvariantViolation, "dt: following byte cannot be zero")
		}
		value = uint16(b)&0x7F | uint16(inter)<<7
	} else {
		value = uint16(b)
	}
	return value - 1, nil
}

// SerializeDT is the inverse of ReadDT, used to build B-tree search keys
// when looking up TIL ordinals.
func SerializeDT(value uint16) ([]byte, error) {
	if value > 0x7FFE {
		return nil, utils.NewKind(utils.KindInvariantViolation, "dt: value too large to serialize")
	}
	lo := value + 1
	hi := lo
	result := make([]byte, 0, 2)
	if lo > 127 {
		result = append(result, byte(lo&0x7F|0x80))
		hi = (lo >> 7) & 0xFF
	}
	result = append(result, byte(hi))
	return result, nil
}

// ReadDTDE reads a DT; if it's the sentinel 0x7FFE it continues with a DE
// to get the full 32-bit value. Returns ok=false for the DT-only sentinel
// 0 (meaning absent). The second return reports whether the DE-extended
// value is "small" (its top 29 bits are zero) — some callers special-case
// this to distinguish a plain count from a flagged one.
func (r *Reader) ReadDTDE() (value uint32, small bool, ok bool, err error) {
	n, err := r.ReadDT()
	if err != nil {
		return 0, false, false, err
	}
	switch n {
	case 0:
		return 0, false, false, nil
	case 0x7FFE:
		v, err := r.ReadDE()
		if err != nil {
			return 0, false, false, err
		}
		return v, v>>3 == 0, true, nil
	default:
		return uint32(n), false, true, nil
	}
}

// ReadTypeAttribute reads a tah/sdacl-style attribute byte run: a packed
// bitmask, optionally followed by a list of extended (blob, blob) pairs
// when the TAH_HASATTRS bit is set.
func (r *Reader) ReadTypeAttribute() (TypeAttribute, error) {
	byte0, ok, err := r.readU8OK()
	if err != nil {
		return TypeAttribute{}, err
	}
	if !ok {
		if !r.Lenient {
			return TypeAttribute{}, utils.WrapKind(utils.KindTruncatedInput, "read type attribute", io.ErrUnexpectedEOF)
		}
		return TypeAttribute{}, nil
	}

	var tattr uint16
	if byte0 != 0xFE {
		tattr = ((uint16(byte0) & 1) | ((uint16(byte0) >> 3) & 6)) + 1
	}
	if byte0 == 0xFE || tattr == 8 {
		shift := uint(0)
		for {
			next, ok, err := r.readU8OK()
			if err != nil {
				return TypeAttribute{}, err
			}
			if !ok {
				if !r.Lenient {
					return TypeAttribute{}, utils.WrapKind(utils.KindTruncatedInput, "read type attribute", io.ErrUnexpectedEOF)
				}
				break
			}
			if next == 0 {
				return TypeAttribute{}, utils.NewKind(utils.KindInvariantViolation, "type attribute: continuation byte is zero")
			}
			tattr |= uint16(next&0x7F) << shift
			if next&0x80 == 0 {
				break
			}
			shift += 7
			if shift >= 16 {
				return TypeAttribute{}, utils.NewKind(utils.KindInvariantViolation, "type attribute: could not find terminator")
			}
		}
	}

	if tattr&tahHasAttrs == 0 {
		return TypeAttribute{Tattr: tattr}, nil
	}
	tattr &^= tahHasAttrs

	loopCount, err := r.ReadDT()
	if err != nil {
		return TypeAttribute{}, err
	}
	extended := make([]TypeAttributeExt, 0, loopCount)
	for i := uint16(0); i < loopCount; i++ {
		v1, err := r.UnpackDTBytes()
		if err != nil {
			return TypeAttribute{}, err
		}
		v2, err := r.UnpackDTBytes()
		if err != nil {
			return TypeAttribute{}, err
		}
		extended = append(extended, TypeAttributeExt{Value1: v1, Value2: v2})
	}
	return TypeAttribute{Tattr: tattr, Extended: extended}, nil
}

// ReadTAH reads an optional tah attribute block: present only when the
// next byte is the 0xFE marker.
func (r *Reader) ReadTAH() (*TypeAttribute, error) {
	tah, ok, err := r.PeekU8()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, utils.WrapKind(utils.KindTruncatedInput, "read tah", io.ErrUnexpectedEOF)
	}
	if tah != 0xFE {
		return nil, nil
	}
	attr, err := r.ReadTypeAttribute()
	if err != nil {
		return nil, err
	}
	return &attr, nil
}

// ReadSDACL reads an optional sdacl attribute block: present only when
// the next byte falls in one of the four marker windows
// 0xC0-0xC1 / 0xD0-0xD1 / 0xE0-0xE1 / 0xF0-0xF1.
func (r *Reader) ReadSDACL() (*TypeAttribute, error) {
	b, ok, err := r.PeekU8()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, utils.WrapKind(utils.KindTruncatedInput, "read sdacl", io.ErrUnexpectedEOF)
	}
	if !isSDACLMarker(b) {
		return nil, nil
	}
	attr, err := r.ReadTypeAttribute()
	if err != nil {
		return nil, err
	}
	return &attr, nil
}

func isSDACLMarker(b byte) bool {
	switch b {
	case 0xC0, 0xC1, 0xD0, 0xD1, 0xE0, 0xE1, 0xF0, 0xF1:
		return true
	default:
		return false
	}
}

// ReadBytesLenU16 reads a u16-prefixed byte blob.
func (r *Reader) ReadBytesLenU16() ([]byte, error) {
	n, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.br, buf); err != nil {
		return nil, utils.WrapKind(utils.KindTruncatedInput, "read bytes (u16 len)", err)
	}
	return buf, nil
}

// ReadBytesLenU8 reads a u8-prefixed byte blob.
func (r *Reader) ReadBytesLenU8() ([]byte, error) {
	n, err := r.readU8()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.br, buf); err != nil {
		return nil, utils.WrapKind(utils.KindTruncatedInput, "read bytes (u8 len)", err)
	}
	return buf, nil
}

// ReadDA reads 1 to 9 bytes encoding an array's (nelem, base) pair, the
// base-indexed form used by an array type's raw layout.
func (r *Reader) ReadDA() (nelem, base byte, err error) {
	var da byte
	var b, a int

	for {
		typ, present, err := r.PeekU8()
		if err != nil {
			return 0, 0, err
		}
		if !present {
			if !r.Lenient {
				return 0, 0, utils.WrapKind(utils.KindTruncatedInput, "read da", io.ErrUnexpectedEOF)
			}
			return nelem, base, nil
		}
		if typ&0x80 == 0 {
			break
		}
		r.consume(1)

		da = (da << 7) | (typ & 0x7F)
		b++
		if b >= 4 {
			z, err := r.readU8()
			if err != nil {
				return 0, 0, err
			}
			if z != 0 {
				base = (da << 4) | (z & 0xF)
			}
			nelem = (z >> 4) & 7
			for {
				y, present, err := r.PeekU8()
				if err != nil {
					return 0, 0, err
				}
				if !present {
					if !r.Lenient {
						return 0, 0, utils.WrapKind(utils.KindTruncatedInput, "read da", io.ErrUnexpectedEOF)
					}
					return nelem, base, nil
				}
				if y&0x80 == 0 {
					break
				}
				r.consume(1)
				nelem = (nelem << 7) | (y & 0x7F)
				a++
				if a >= 4 {
					return nelem, base, nil
				}
			}
		}
	}
	return nelem, base, nil
}

// ReadExtAtt reads 1 to 9 bytes: a bitmask-driven byte accumulator used
// by IDA's extended "ext_att" encoding, with two hard-coded sentinels for
// -1 sign-extended to 32 or 64 bits.
func (r *Reader) ReadExtAtt() (uint64, error) {
	startValue, err := r.ReadDT()
	if err != nil {
		return 0, err
	}
	switch startValue {
	case 0x400:
		return uint64(int64(-1)), nil
	case 0x200:
		return uint64(uint32(int32(-1))), nil
	}

	var acc uint64
	for bit := uint(0); bit < 8; bit++ {
		shift := bit * 8
		if (startValue>>bit)&1 != 0 {
			b, err := r.readU8()
			if err != nil {
				return 0, err
			}
			acc |= uint64(b) << shift
		}
	}
	if startValue&0x100 != 0 {
		acc = ^acc
	}
	return acc, nil
}

// ReadCStringRaw reads a NUL-terminated byte string and strips the
// terminator. A missing terminator at EOF is a TruncatedInput error
// unless Lenient is set.
func (r *Reader) ReadCStringRaw() ([]byte, error) {
	return r.ReadUntilNUL()
}

// ReadCStringVec reads a NUL-terminated byte string, then splits its
// contents into a sequence of DT-length-prefixed sub-strings, the
// field-name-stream consumption rule.
func (r *Reader) ReadCStringVec() ([][]byte, error) {
	buf, err := r.ReadCStringRaw()
	if err != nil {
		return nil, err
	}
	out, ok := SplitStringsFromArray(buf)
	if !ok {
		return nil, utils.NewKind(utils.KindInvariantViolation, "invalid length prefix in string vector")
	}
	return out, nil
}

// SplitStringsFromArray splits buf into a sequence of DT-length-prefixed
// byte strings, consuming the entire buffer. Returns ok=false if a
// length prefix overruns the remaining bytes or is malformed.
func SplitStringsFromArray(buf []byte) (result [][]byte, ok bool) {
	if len(buf) == 0 {
		return [][]byte{}, true
	}
	cursor := buf
	for {
		n, consumed, ok := decodeDTFromSlice(cursor)
		if !ok {
			return nil, false
		}
		rest := cursor[consumed:]
		if len(rest) < int(n) {
			return nil, false
		}
		value, tail := rest[:n], rest[n:]
		result = append(result, append([]byte(nil), value...))
		if len(tail) == 0 {
			return result, true
		}
		cursor = tail
	}
}

// decodeDTFromSlice decodes one ReadDT value directly from a byte slice,
// reporting how many bytes it consumed. Used where a Reader would be
// overkill (splitting an already fully-buffered blob).
func decodeDTFromSlice(buf []byte) (value uint16, consumed int, ok bool) {
	if len(buf) == 0 {
		return 0, 0, false
	}
	b := buf[0]
	if b == 0 {
		return 0, 0, false
	}
	if b < 0x80 {
		return uint16(b) - 1, 1, true
	}
	if len(buf) < 2 {
		return 0, 0, false
	}
	v := uint16(b)&0x7F | uint16(buf[1])<<7
	return v - 1, 2, true
}

// ReadRawTILType reads one raw, opaque type-bucket record (the legacy
// "flags + name + ordinal + type + info + cmt + fieldcmts + sclass" raw
// layout) without interpreting its fields beyond enough to know its
// length.
func (r *Reader) ReadRawTILType(format uint32) ([]byte, error) {
	flags, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if flags == 0x7fff_fffe {
		length, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		data := make([]byte, 8+int(length))
		arch.PutLE(data[0:4], flags)
		arch.PutLE(data[4:8], length)
		if err := r.ReadExact(data[8:]); err != nil {
			return nil, err
		}
		return data, nil
	}

	data := make([]byte, 4)
	arch.PutLE(data[0:4], flags)

	name, err := r.ReadUntilInclusive(0)
	if err != nil {
		return nil, err
	}
	data = append(data, name...)

	if format <= 0x11 || flags>>31 == 0 {
		ord, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		var b [4]byte
		arch.PutLE(b[:], ord)
		data = append(data, b[:]...)
	} else {
		ord, err := r.ReadU64()
		if err != nil {
			return nil, err
		}
		var b [8]byte
		arch.PutLE(b[:], ord)
		data = append(data, b[:]...)
	}

	for i := 0; i < 4; i++ { // type, info, cmt, fieldcmts
		field, err := r.ReadUntilInclusive(0)
		if err != nil {
			return nil, err
		}
		data = append(data, field...)
	}

	sclass, err := r.readU8()
	if err != nil {
		return nil, err
	}
	data = append(data, sclass)
	return data, nil
}
