package til

import (
	"bytes"
	"fmt"

	"github.com/goidb/idb/internal/utils"
	"github.com/goidb/idb/internal/varint"
)

// Type is a fully resolved type node: the two metadata-byte modifier
// bits plus exactly one concrete variant.
type Type struct {
	IsConst    bool
	IsVolatile bool
	Variant    TypeVariant
}

// TypeVariant is a tagged union over every concrete type kind, following
// this module's exclusive-pointer-fields convention (records.IDBParam's
// V1/V2 split). Exactly one field is non-nil.
type TypeVariant struct {
	Basic    *Basic
	Pointer  *Pointer
	Function *Function
	Array    *Array
	Typedef  *Typedef
	Struct   *Struct
	Union    *Union
	Enum     *Enum
	Bitfield *Bitfield
}

// FieldNames is the field-name-stream iterator threaded through a
// recursive Type decode: field names travel on a parallel side stream.
// Next returns "" once the stream is exhausted instead of erroring —
// not every member carries a name.
type FieldNames struct {
	names [][]byte
	pos   int
}

// NewFieldNames wraps an already-split field-name stream (the output of
// varint.SplitStringsFromArray / Reader.ReadCStringVec).
func NewFieldNames(names [][]byte) *FieldNames {
	return &FieldNames{names: names}
}

// Next returns the next field name, or "" if the stream is exhausted.
func (f *FieldNames) Next() string {
	if f == nil || f.pos >= len(f.names) {
		return ""
	}
	name := f.names[f.pos]
	f.pos++
	return string(name)
}

// Remaining reports how many names are left unconsumed (used to detect
// extra field names left over after a type finishes decoding).
func (f *FieldNames) Remaining() int {
	if f == nil {
		return 0
	}
	return len(f.names) - f.pos
}

// typeRaw is the pre-Type-resolution shape of a decoded type: its two
// modifier bits plus a variant that may still need the section header
// and field-name stream to become a cooked Type (pointer/function/array/
// struct/union/enum all recurse into sub-types at this stage).
type typeRaw struct {
	isConst    bool
	isVolatile bool
	variant    typeVariantRaw
}

type typeVariantRaw struct {
	Basic    *Basic
	Pointer  *pointerRaw
	Function *functionRaw
	Array    *arrayRaw
	Typedef  *Typedef
	Struct   *structRaw
	Union    *unionRaw
	Enum     *enumRaw
	Bitfield *Bitfield
}

// readTypeRaw reads one type's metadata byte and dispatches to its
// kind-specific raw reader.
func readTypeRaw(r *varint.Reader, header *SectionHeader) (typeRaw, error) {
	metadata, err := r.ReadU8()
	if err != nil {
		return typeRaw{}, err
	}
	base := metadata & typeBaseMask
	flags := metadata & typeFlagsMask
	isConst := metadata&btmConst != 0
	isVolatile := metadata&btmVolatile != 0

	var variant typeVariantRaw
	switch {
	case base <= btLastBasic:
		b, err := newBasic(header, base, flags)
		if err != nil {
			return typeRaw{}, err
		}
		variant.Basic = b
	case base == btPtr:
		p, err := readPointerRaw(r, header, flags)
		if err != nil {
			return typeRaw{}, fmt.Errorf("type pointer: %w", err)
		}
		variant.Pointer = p
	case base == btArray:
		a, err := readArrayRaw(r, header, flags)
		if err != nil {
			return typeRaw{}, fmt.Errorf("type array: %w", err)
		}
		variant.Array = a
	case base == btFunc:
		fn, err := readFunctionRaw(r, header, flags)
		if err != nil {
			return typeRaw{}, fmt.Errorf("type function: %w", err)
		}
		variant.Function = fn
	case base == btBitfield:
		bf, err := readBitfield(r, flags)
		if err != nil {
			return typeRaw{}, fmt.Errorf("type bitfield: %w", err)
		}
		variant.Bitfield = bf
	case base == btComplex && flags == btmtTypedef:
		td, err := readTypedef(r)
		if err != nil {
			return typeRaw{}, fmt.Errorf("type typedef: %w", err)
		}
		variant.Typedef = td
	case base == btComplex && flags == btmtUnion:
		u, err := readUnionRaw(r, header)
		if err != nil {
			return typeRaw{}, fmt.Errorf("type union: %w", err)
		}
		variant.Union = u
	case base == btComplex && flags == btmtStruct:
		s, err := readStructRaw(r, header)
		if err != nil {
			return typeRaw{}, fmt.Errorf("type struct: %w", err)
		}
		variant.Struct = s
	case base == btComplex && flags == btmtEnum:
		e, err := readEnumRaw(r, header)
		if err != nil {
			return typeRaw{}, fmt.Errorf("type enum: %w", err)
		}
		variant.Enum = e
	case base == btReserved:
		return typeRaw{}, utils.NewKind(utils.KindInvariantViolation, fmt.Sprintf("wrong/unknown type: %#02x", metadata))
	default:
		return typeRaw{}, utils.NewKind(utils.KindInvariantViolation, fmt.Sprintf("unreachable type metadata: %#02x", metadata))
	}

	return typeRaw{isConst: isConst, isVolatile: isVolatile, variant: variant}, nil
}

// readTypeRawRef reads a "ref" nested type: a dt_bytes-wrapped blob that,
// when it doesn't already start with '=', is synthesized into one by
// prefixing '=' + serialize_dt(len(bytes)) — the rule distinguishing a
// ref from an inline type.
func readTypeRawRef(r *varint.Reader, header *SectionHeader) (typeRaw, error) {
	raw, err := r.UnpackDTBytes()
	if err != nil {
		return typeRaw{}, err
	}
	if len(raw) == 0 || raw[0] != '=' {
		dt, err := varint.SerializeDT(uint16(len(raw)))
		if err != nil {
			return typeRaw{}, err
		}
		combined := make([]byte, 0, 1+len(dt)+len(raw))
		combined = append(combined, '=')
		combined = append(combined, dt...)
		combined = append(combined, raw...)
		raw = combined
	}
	sub := varint.NewReader(bytes.NewReader(raw), r.Lenient)
	result, err := readTypeRaw(sub, header)
	if err != nil {
		return typeRaw{}, err
	}
	return result, nil
}

// newType resolves a typeRaw into a cooked Type, recursing into nested
// kinds and consuming field names from the shared stream exactly where
// each kind's grammar calls for one.
func newType(header *SectionHeader, raw typeRaw, fields *FieldNames) (Type, error) {
	var variant TypeVariant
	switch {
	case raw.variant.Basic != nil:
		variant.Basic = raw.variant.Basic
	case raw.variant.Bitfield != nil:
		variant.Bitfield = raw.variant.Bitfield
	case raw.variant.Typedef != nil:
		variant.Typedef = raw.variant.Typedef
	case raw.variant.Pointer != nil:
		p, err := newPointer(header, raw.variant.Pointer, fields)
		if err != nil {
			return Type{}, err
		}
		variant.Pointer = p
	case raw.variant.Function != nil:
		fn, err := newFunction(header, raw.variant.Function, fields)
		if err != nil {
			return Type{}, err
		}
		variant.Function = fn
	case raw.variant.Array != nil:
		a, err := newArray(header, raw.variant.Array, fields)
		if err != nil {
			return Type{}, err
		}
		variant.Array = a
	case raw.variant.Struct != nil:
		s, err := newStruct(header, raw.variant.Struct, fields)
		if err != nil {
			return Type{}, err
		}
		variant.Struct = s
	case raw.variant.Union != nil:
		u, err := newUnion(header, raw.variant.Union, fields)
		if err != nil {
			return Type{}, err
		}
		variant.Union = u
	case raw.variant.Enum != nil:
		e, err := newEnum(header, raw.variant.Enum, fields)
		if err != nil {
			return Type{}, err
		}
		variant.Enum = e
	default:
		return Type{}, utils.NewKind(utils.KindInvariantViolation, "type raw has no variant set")
	}
	return Type{IsConst: raw.isConst, IsVolatile: raw.isVolatile, Variant: variant}, nil
}

// ReadType reads one complete, cooked type from r: the metadata-byte
// dispatch plus every nested sub-type, pulling names from fields
// wherever the grammar calls for one.
func ReadType(r *varint.Reader, header *SectionHeader, fields *FieldNames) (Type, error) {
	raw, err := readTypeRaw(r, header)
	if err != nil {
		return Type{}, err
	}
	return newType(header, raw, fields)
}

// BasicKind enumerates the Basic type family.
type BasicKind int

const (
	BasicVoid BasicKind = iota
	BasicUnknown
	BasicBool
	BasicBoolSized
	BasicChar
	BasicSegReg
	BasicShort
	BasicLong
	BasicLongLong
	BasicInt
	BasicIntSized
	BasicFloat
	BasicLongDouble
)

// Basic is a leaf scalar type. IsSigned is nil for "unknown signedness"
// (BTMT_UNKSIGN); Bytes is meaningful for Unknown/BoolSized/IntSized/
// Float only.
type Basic struct {
	Kind     BasicKind
	Bytes    uint8
	IsSigned *bool
}

func signedPtr(b bool) *bool { return &b }

// newBasic dispatches by base kind, then by the kind-specific sub-flags
// in type_flags.
func newBasic(header *SectionHeader, bt, btmt byte) (*Basic, error) {
	switch bt {
	case btUnk:
		var bytes uint8
		switch btmt {
		case btmtSize0:
			return nil, utils.NewKind(utils.KindInvariantViolation, "forbidden use of BT_UNK with BTMT_SIZE0")
		case btmtSize12:
			bytes = 2
		case btmtSize48:
			bytes = 8
		case btmtSize128:
			bytes = 0
		default:
			return nil, utils.NewKind(utils.KindInvariantViolation, "basic: unreachable unk sub-flag")
		}
		return &Basic{Kind: BasicUnknown, Bytes: bytes}, nil

	case btVoid:
		switch btmt {
		case btmtSize0:
			return &Basic{Kind: BasicVoid}, nil
		case btmtSize12:
			return &Basic{Kind: BasicUnknown, Bytes: 1}, nil
		case btmtSize48:
			return &Basic{Kind: BasicUnknown, Bytes: 4}, nil
		case btmtSize128:
			return &Basic{Kind: BasicUnknown, Bytes: 16}, nil
		default:
			return nil, utils.NewKind(utils.KindInvariantViolation, "basic: unreachable void sub-flag")
		}

	case btInt8, btInt16, btInt32, btInt64, btInt128, btInt:
		var isSigned *bool
		switch btmt {
		case btmtUnksign:
			isSigned = nil
		case btmtSigned:
			isSigned = signedPtr(true)
		case btmtUnsigned:
			isSigned = signedPtr(false)
		case btmtChar:
			switch bt {
			case btInt8:
				return &Basic{Kind: BasicChar}, nil
			case btInt:
				return &Basic{Kind: BasicSegReg}, nil
			default:
				return nil, utils.NewKind(utils.KindInvariantViolation, "basic: reserved use of BTMT_CHAR")
			}
		default:
			return nil, utils.NewKind(utils.KindInvariantViolation, "basic: unreachable int sub-flag")
		}
		switch bt {
		case btInt8:
			return &Basic{Kind: BasicIntSized, Bytes: 1, IsSigned: isSigned}, nil
		case btInt16:
			return &Basic{Kind: BasicIntSized, Bytes: 2, IsSigned: isSigned}, nil
		case btInt32:
			return &Basic{Kind: BasicIntSized, Bytes: 4, IsSigned: isSigned}, nil
		case btInt64:
			return &Basic{Kind: BasicIntSized, Bytes: 8, IsSigned: isSigned}, nil
		case btInt128:
			return &Basic{Kind: BasicIntSized, Bytes: 16, IsSigned: isSigned}, nil
		case btInt:
			return &Basic{Kind: BasicInt, IsSigned: isSigned}, nil
		default:
			return nil, utils.NewKind(utils.KindInvariantViolation, "basic: unreachable int kind")
		}

	case btBool:
		var bytes uint8
		switch btmt {
		case btmtDefbool:
			bytes = header.SizeB
		case btmtBool1:
			bytes = 1
		case btmtBool4:
			bytes = 4
		case btmtBool8: // == btmtBool2 on disk; size depends on inf_is_64bit, unknowable here
			bytes = 2
		default:
			return nil, utils.NewKind(utils.KindInvariantViolation, "basic: unreachable bool sub-flag")
		}
		return &Basic{Kind: BasicBoolSized, Bytes: bytes}, nil

	case btFloat:
		var bytes uint8
		switch btmt {
		case btmtFloat:
			bytes = 4
		case btmtDouble:
			bytes = 8
		case btmtLngdbl:
			bytes = header.SizeLongDouble
			if bytes == 0 {
				bytes = 8
			}
		case btmtSpecflt:
			bytes = 2
		default:
			return nil, utils.NewKind(utils.KindInvariantViolation, "basic: unreachable float sub-flag")
		}
		return &Basic{Kind: BasicFloat, Bytes: bytes}, nil

	default:
		return nil, utils.NewKind(utils.KindInvariantViolation, fmt.Sprintf("basic: unknown unset type %#02x", btmt))
	}
}

// Typedef is a late-bound reference to a top-level type, by ordinal or
// by name.
type Typedef struct {
	Ordinal    uint32
	Name       []byte
	IsOrdinal  bool
}

func readTypedef(r *varint.Reader) (*Typedef, error) {
	buf, err := r.UnpackDTBytes()
	if err != nil {
		return nil, err
	}
	if len(buf) > 0 && buf[0] == '#' {
		sub := varint.NewReader(bytes.NewReader(buf[1:]), r.Lenient)
		ord, err := sub.ReadDE()
		if err != nil {
			return nil, err
		}
		return &Typedef{Ordinal: ord, IsOrdinal: true}, nil
	}
	return &Typedef{Name: buf}, nil
}
