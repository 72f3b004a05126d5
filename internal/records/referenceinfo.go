package records

import (
	"bytes"
	"fmt"

	"github.com/goidb/idb/internal/arch"
	"github.com/goidb/idb/internal/keyschema"
	"github.com/goidb/idb/internal/varint"
)

// ReferenceType is the low nibble of a ReferenceFlags value: how an
// operand's reference target is encoded at the patched location.
type ReferenceType uint8

const (
	RefV695Off8  ReferenceType = 0
	RefOff16     ReferenceType = 1
	RefOff32     ReferenceType = 2
	RefLow8      ReferenceType = 3
	RefLow16     ReferenceType = 4
	RefHigh8     ReferenceType = 5
	RefHigh16    ReferenceType = 6
	RefV695Vhigh ReferenceType = 7
	RefV695Vlow  ReferenceType = 8
	RefOff64     ReferenceType = 9
	RefOff8      ReferenceType = 10
)

func (t ReferenceType) valid() bool {
	return t <= RefOff8
}

// Reference flag bits.
const (
	refinfoType     uint32 = 0x000F
	refinfoRVAOff   uint32 = 0x0010
	refinfoPastEnd  uint32 = 0x0020
	refinfoCustom   uint32 = 0x0040
	refinfoNoBase   uint32 = 0x0080
	refinfoSubtract uint32 = 0x0100
	refinfoSignedOp uint32 = 0x0200
	refinfoNoZeros  uint32 = 0x0400
	refinfoNoOnes   uint32 = 0x0800
	refinfoSelfRef  uint32 = 0x1000
)

// ReferenceFlags packs a ReferenceType plus the modifier bits describing
// how an xref's target/base/delta should be combined with an operand's
// raw value.
type ReferenceFlags uint32

func (f ReferenceFlags) RefType() ReferenceType  { return ReferenceType(uint32(f) & refinfoType) }
func (f ReferenceFlags) IsBasedReference() bool  { return uint32(f)&refinfoRVAOff != 0 }
func (f ReferenceFlags) IsPastAnItem() bool      { return uint32(f)&refinfoPastEnd != 0 }
func (f ReferenceFlags) IsCustom() bool          { return uint32(f)&refinfoCustom != 0 }
func (f ReferenceFlags) IsNobase() bool          { return uint32(f)&refinfoNoBase != 0 }
func (f ReferenceFlags) IsBaseSubtraction() bool { return uint32(f)&refinfoSubtract != 0 }
func (f ReferenceFlags) IsSignExtended() bool    { return uint32(f)&refinfoSignedOp != 0 }
func (f ReferenceFlags) IsZeroInvalid() bool     { return uint32(f)&refinfoNoZeros != 0 }
func (f ReferenceFlags) IsMaxInvalid() bool      { return uint32(f)&refinfoNoOnes != 0 }
func (f ReferenceFlags) IsSelfRef() bool         { return uint32(f)&refinfoSelfRef != 0 }

// ReferenceInfo is a single operand's cross-reference metadata, decoded
// from the "$ ..." netnode's array-sup entry at a computed alt index.
type ReferenceInfo[K arch.Kind] struct {
	Target *K
	Base   *K
	Tdelta *K
	Flags  ReferenceFlags
}

// operandToAlt maps an operand number (0-15) to the sup-array alt index
// ReferenceInfo entries live under; the "sub" constant is always 3, since
// the alternate branch is never observed in practice.
func operandToAlt(operand uint8) uint8 {
	const sub = 3
	switch {
	case operand < 3:
		return (operand + 0xc) - sub
	case operand < 8:
		return (operand + 0x1d) - (sub - 1)
	case operand < 16:
		return (operand + 0x15) - sub
	default:
		panic("operand_to_alt: operand out of range")
	}
}

// readReferenceInfo decodes a ReferenceInfo's raw value bytes.
func readReferenceInfo[K arch.Kind](value []byte, is64 bool, lenient bool) (ReferenceInfo[K], error) {
	var info ReferenceInfo[K]
	r := varint.NewReader(bytes.NewReader(value), lenient)

	b, ok, err := r.PeekU8()
	if err != nil {
		return info, err
	}
	if !ok {
		return info, nil
	}
	if _, err := r.ReadU8(); err != nil {
		return info, err
	}
	flags := uint32(b)

	if flags&0x10 != 0 {
		v, err := varint.UnpackUsize[K](r)
		if err != nil {
			return info, err
		}
		info.Target = &v
	}
	if flags&0x20 != 0 {
		v, err := varint.UnpackUsize[K](r)
		if err != nil {
			return info, err
		}
		info.Base = &v
	}
	if flags&0x40 != 0 {
		v, err := varint.UnpackUsize[K](r)
		if err != nil {
			return info, err
		}
		info.Tdelta = &v
	}
	// The first byte's meaning is fully consumed above; only
	// NOBASE/type bits of it survive into the final flags word.
	flags &= refinfoNoBase | refinfoType

	if ext0, ok, err := r.PeekU8(); err != nil {
		return info, err
	} else if ok {
		if _, err := r.ReadU8(); err != nil {
			return info, err
		}
		extFlags := uint32(ext0)
		if ext1, ok, err := r.PeekU8(); err != nil {
			return info, err
		} else if ok {
			if _, err := r.ReadU8(); err != nil {
				return info, err
			}
			extFlags |= uint32(ext1) << 8
		}
		flags |= (extFlags << 4) & 0x1f70
	}

	if !ReferenceType(flags & refinfoType).valid() {
		return info, wrapInvariant(fmt.Sprintf("invalid reference info type: %X", flags&refinfoType))
	}
	info.Flags = ReferenceFlags(flags)
	return info, nil
}

// GetReferenceInfo looks up operand's cross-reference metadata at
// address, or (zero, false) if none is recorded.
func GetReferenceInfo[K arch.Kind](store *keyschema.Store, netnode K, operand uint8, is64 bool, lenient bool) (ReferenceInfo[K], bool, error) {
	alt := operandToAlt(operand)
	key := supAltKeyUint(netnodeKeyPrefix(netnode), tagArraySup, uint32(alt), is64)
	value, ok := keyValue(store, key)
	if !ok {
		return ReferenceInfo[K]{}, false, nil
	}
	info, err := readReferenceInfo[K](value, is64, lenient)
	if err != nil {
		return ReferenceInfo[K]{}, false, wrapTruncated("decode reference info: " + err.Error())
	}
	return info, true, nil
}

// netnodeKeyPrefix builds the "." + big-endian(netnode) key prefix
// directly from a numeric netnode id, for accessors (like ReferenceInfo)
// that are handed an already-resolved id rather than a name to look up.
func netnodeKeyPrefix[K arch.Kind](netnode K) []byte {
	raw := arch.Bytes[K]()
	out := make([]byte, 1+raw)
	out[0] = '.'
	arch.PutBE(out[1:], netnode)
	return out
}
