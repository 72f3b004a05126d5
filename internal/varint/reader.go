// Package varint implements the family of self-delimiting, big-endian-
// within-integer variable-length codecs used throughout both the ID0
// B-tree values and the TIL byte stream: dw, dd, dq, de, dt, dt_de, da,
// ds, dt_bytes, and the extended-attribute codec.
package varint

import (
	"bufio"
	"errors"
	"io"

	"github.com/goidb/idb/internal/arch"
	"github.com/goidb/idb/internal/utils"
)

// Reader wraps a buffered byte source with the codec family above. In
// Lenient mode, a short read on a continuation byte of dw/dd/dt/de
// substitutes zero instead of failing — used for fields whose trailing
// data is optional across on-disk versions. The first byte of dd and dt
// always errors on EOF; dw, de and the type-attribute codec instead
// return zero (de: the value accumulated so far) at EOF in lenient mode.
type Reader struct {
	br      *bufio.Reader
	Lenient bool
}

// NewReader wraps r. If r is already a *bufio.Reader it is used directly
// rather than wrapped a second time.
func NewReader(r io.Reader, lenient bool) *Reader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Reader{br: br, Lenient: lenient}
}

// readU8 is the unconditional byte read: it errors at EOF in both strict
// and lenient mode — only the continuation reads that can substitute a
// default value are lenient-aware.
func (r *Reader) readU8() (byte, error) {
	b, err := r.br.ReadByte()
	if err != nil {
		return 0, utils.WrapKind(utils.KindTruncatedInput, "read u8", err)
	}
	return b, nil
}

// readU8OK reports whether a byte was actually available, used by codecs
// (dw, de, type attributes) whose lenient-mode stopping condition differs
// from "substitute zero and keep reading".
func (r *Reader) readU8OK() (byte, bool, error) {
	b, err := r.br.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, false, nil
		}
		return 0, false, utils.WrapKind(utils.KindTruncatedInput, "read u8", err)
	}
	return b, true, nil
}

// PeekU8 looks at the next byte without consuming it. Returns ok=false at
// EOF rather than an error.
func (r *Reader) PeekU8() (b byte, ok bool, err error) {
	buf, err := r.br.Peek(1)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, false, nil
		}
		return 0, false, utils.WrapKind(utils.KindTruncatedInput, "peek u8", err)
	}
	return buf[0], true, nil
}

func (r *Reader) consume(n int) {
	_, _ = r.br.Discard(n)
}

// readByteOrZero reads a continuation byte: strict mode hard-errors at
// EOF, lenient mode substitutes zero.
func (r *Reader) readByteOrZero() (byte, error) {
	b, ok, err := r.readU8OK()
	if err != nil {
		return 0, err
	}
	if !ok {
		if !r.Lenient {
			return 0, utils.WrapKind(utils.KindTruncatedInput, "read continuation byte", io.ErrUnexpectedEOF)
		}
		return 0, nil
	}
	return b, nil
}

// ReadU8 reads a raw byte (not a varint); it errors at EOF in both strict
// and lenient mode.
func (r *Reader) ReadU8() (byte, error) {
	return r.readU8()
}

// ReadU16 reads a little-endian u16.
func (r *Reader) ReadU16() (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r.br, buf[:]); err != nil {
		return 0, utils.WrapKind(utils.KindTruncatedInput, "read u16", err)
	}
	return uint16(buf[0]) | uint16(buf[1])<<8, nil
}

// ReadU32 reads a little-endian u32.
func (r *Reader) ReadU32() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r.br, buf[:]); err != nil {
		return 0, utils.WrapKind(utils.KindTruncatedInput, "read u32", err)
	}
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24, nil
}

// ReadU64 reads a little-endian u64.
func (r *Reader) ReadU64() (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r.br, buf[:]); err != nil {
		return 0, utils.WrapKind(utils.KindTruncatedInput, "read u64", err)
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v, nil
}

// ReadUsize reads a fixed-width (not varint-encoded) netnode/address-width
// value: a plain u32 for a 32-bit database, u64 for a 64-bit one. Used by
// headers (ID1's segment table) that store addresses at fixed width
// rather than through the dd/dq varint codecs.
func ReadUsize[K arch.Kind](r *Reader) (K, error) {
	if arch.Bytes[K]() == 4 {
		v, err := r.ReadU32()
		return K(v), err
	}
	v, err := r.ReadU64()
	return K(v), err
}

// ReadExact reads len(buf) bytes. In lenient mode a short read is
// tolerated and the unfilled tail of buf is left zeroed.
func (r *Reader) ReadExact(buf []byte) error {
	n, err := io.ReadFull(r.br, buf)
	if err != nil {
		if r.Lenient && (errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)) {
			for i := n; i < len(buf); i++ {
				buf[i] = 0
			}
			return nil
		}
		return utils.WrapKind(utils.KindTruncatedInput, "read exact", err)
	}
	return nil
}

// ReadUntilNUL reads bytes up to and including a NUL terminator, returning
// the bytes without the terminator. A missing terminator at EOF is a
// TruncatedInput error in strict mode.
func (r *Reader) ReadUntilNUL() ([]byte, error) {
	buf, err := r.br.ReadBytes(0)
	if err != nil {
		if errors.Is(err, io.EOF) {
			if r.Lenient {
				return buf, nil
			}
			return nil, utils.NewKind(utils.KindTruncatedInput, "unterminated c-string")
		}
		return nil, utils.WrapKind(utils.KindTruncatedInput, "read c-string", err)
	}
	return buf[:len(buf)-1], nil
}

// ReadUntilInclusive reads bytes up to and including delim, keeping delim
// in the returned slice. Used by ReadRawTILType, which accumulates raw
// bytes (name/type/info/cmt/fieldcmts sub-fields) verbatim including their
// NUL terminators.
func (r *Reader) ReadUntilInclusive(delim byte) ([]byte, error) {
	buf, err := r.br.ReadBytes(delim)
	if err != nil {
		return nil, utils.WrapKind(utils.KindTruncatedInput, "read until delimiter", err)
	}
	return buf, nil
}
