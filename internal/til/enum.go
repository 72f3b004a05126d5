package til

import (
	"fmt"
	"math"

	"github.com/goidb/idb/internal/utils"
	"github.com/goidb/idb/internal/varint"
)

// EnumFormat is the enum's preferred textual rendering, driven by the
// bte byte's BTE_OUT_MASK sub-field.
type EnumFormat int

const (
	EnumFormatHex EnumFormat = iota
	EnumFormatChar
	EnumFormatSignedDecimal
	EnumFormatUnsignedDecimal
)

// EnumMember is a single constant: its name, value, and (when the
// enclosing library's per-type comment stream is wired in by the
// caller) a comment.
type EnumMember struct {
	Name    string
	Comment string
	Value   uint64
}

// EnumGroup is a BTE_BITFIELD-style named bitmask plus the named bits
// that make it up.
type EnumGroup struct {
	Field     EnumMember
	SubFields []EnumMember
}

// EnumMembers is a Regular/Groups tagged union over the two on-disk
// member-list encodings.
type EnumMembers struct {
	Regular []EnumMember
	Groups  []EnumGroup
}

// Enum is a Ref/NonRef tagged union, same shape as Struct/Union, except
// the Ref case must resolve to a Typedef: decoding rejects an EnumRef
// whose inner variant isn't itself a typedef.
type Enum struct {
	Ref    *EnumRef
	NonRef *EnumNonRef
}

type EnumRef struct {
	RefType *Typedef
}

type EnumNonRef struct {
	IsSigned     bool
	IsUnsigned   bool
	Is64         bool
	OutputFormat EnumFormat
	Members      EnumMembers
	// StorageSize is 0 when absent (implies a default of 4 bytes).
	StorageSize uint8
}

type enumRaw struct {
	ref    *Typedef
	nonRef *enumNonRefRaw
}

type enumMembersRaw struct {
	regular []uint64
	bitmask []enumBitmaskGroupRaw
}

type enumBitmaskGroupRaw struct {
	mask    uint64
	members []uint64
}

type enumNonRefRaw struct {
	isSigned     bool
	isUnsigned   bool
	is64         bool
	outputFormat EnumFormat
	members      enumMembersRaw
	storageSize  uint8
}

// readEnumRaw decodes one enum type. A zero dt_de prefix means
// "reference follows"; the referenced type raw must itself be a
// Typedef. Otherwise: an optional TAH block carries the 64bit/signed/
// unsigned attribute bits (flag.go documents why OCT/BIN/NUMSIGN/LZERO
// aren't modeled: they are never defined on disk), then a single BTE
// byte packs storage size, output format, and the "is bitmask" flag,
// then the member list in one of two encodings.
func readEnumRaw(r *varint.Reader, header *SectionHeader) (*enumRaw, error) {
	memberNum, _, ok, err := r.ReadDTDE()
	if err != nil {
		return nil, err
	}
	if !ok {
		refType, err := readTypeRawRef(r, header)
		if err != nil {
			return nil, err
		}
		if _, err := r.ReadSDACL(); err != nil {
			return nil, err
		}
		if refType.variant.Typedef == nil {
			return nil, utils.NewKind(utils.KindInvariantViolation, "enum: reference target is not a typedef")
		}
		return &enumRaw{ref: refType.variant.Typedef}, nil
	}

	var is64, isSigned, isUnsigned bool
	tah, err := r.ReadTAH()
	if err != nil {
		return nil, err
	}
	if tah != nil {
		is64 = tah.Tattr&taenum64bit != 0
		isSigned = tah.Tattr&taenumSigned != 0
		isUnsigned = tah.Tattr&taenumUnsigned != 0
	}

	bte, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	storageSizeRaw := bte & bteSizeMask
	outputFormatRaw := bte & bteOutMask
	if bte&bteAlways == 0 {
		return nil, utils.NewKind(utils.KindInvariantViolation, "enum: bte missing the always-on sub-field")
	}

	var storageSize uint8
	switch {
	case storageSizeRaw == 0:
		storageSize = 0
	case storageSizeRaw <= 4:
		storageSize = 1 << (storageSizeRaw - 1)
	default:
		return nil, utils.NewKind(utils.KindInvariantViolation, fmt.Sprintf("enum: bte emsize has reserved value %#x", storageSizeRaw))
	}
	storageSizeFinal := storageSize
	if storageSizeFinal == 0 {
		storageSizeFinal = 4
	}
	var mask uint64
	if storageSizeFinal >= 16 {
		mask = math.MaxUint64
	} else {
		mask = math.MaxUint64 >> (64 - uint(storageSizeFinal)*8)
	}

	var outputFormat EnumFormat
	switch outputFormatRaw {
	case bteHex:
		outputFormat = EnumFormatHex
	case bteChar:
		outputFormat = EnumFormatChar
	case bteSdec:
		outputFormat = EnumFormatSignedDecimal
	case bteUdec:
		outputFormat = EnumFormatUnsignedDecimal
	}

	var members enumMembersRaw
	if bte&bteBitfield != 0 {
		groups, err := readEnumMembersBitmask(r, memberNum, mask, is64)
		if err != nil {
			return nil, err
		}
		members.bitmask = groups
	} else {
		regular, err := readEnumMembersRegular(r, memberNum, mask, is64)
		if err != nil {
			return nil, err
		}
		members.regular = regular
	}

	return &enumRaw{nonRef: &enumNonRefRaw{
		isSigned:     isSigned,
		isUnsigned:   isUnsigned,
		is64:         is64,
		outputFormat: outputFormat,
		members:      members,
		storageSize:  storageSize,
	}}, nil
}

func readEnumMembersRegular(r *varint.Reader, memberNum uint32, mask uint64, is64 bool) ([]uint64, error) {
	values := make([]uint64, 0, memberNum)
	var lowAcc, highAcc uint32
	for i := uint32(0); i < memberNum; i++ {
		d, err := r.ReadDE()
		if err != nil {
			return nil, err
		}
		lowAcc += d
		if is64 {
			d2, err := r.ReadDE()
			if err != nil {
				return nil, err
			}
			highAcc += d2
		}
		values = append(values, ((uint64(highAcc)<<32)|uint64(lowAcc))&mask)
	}
	return values, nil
}

func readEnumMembersBitmask(r *varint.Reader, memberNum uint32, mask uint64, is64 bool) ([]enumBitmaskGroupRaw, error) {
	groups := make([]enumBitmaskGroupRaw, 0, memberNum)
	for i := uint32(0); i < memberNum; i++ {
		groupNum, err := r.ReadDT()
		if err != nil {
			return nil, err
		}
		if groupNum == 0 {
			return nil, utils.NewKind(utils.KindInvariantViolation, "enum: bitmask group count is zero")
		}

		maskLow, err := r.ReadDE()
		if err != nil {
			return nil, err
		}
		var maskHigh uint32
		if is64 {
			maskHigh, err = r.ReadDE()
			if err != nil {
				return nil, err
			}
		}
		groupMask := ((uint64(maskHigh) << 32) | uint64(maskLow)) & mask

		var accLow, accHigh uint32
		subMembers := make([]uint64, 0, groupNum-1)
		for j := uint16(0); j < groupNum-1; j++ {
			d, err := r.ReadDE()
			if err != nil {
				return nil, err
			}
			accLow += d
			if is64 {
				d2, err := r.ReadDE()
				if err != nil {
					return nil, err
				}
				accHigh += d2
			}
			subMembers = append(subMembers, ((uint64(accHigh)<<32)|uint64(accLow))&mask)
		}

		groups = append(groups, enumBitmaskGroupRaw{mask: groupMask, members: subMembers})
	}
	return groups, nil
}

func newEnum(header *SectionHeader, raw *enumRaw, fields *FieldNames) (*Enum, error) {
	if raw.ref != nil {
		return &Enum{Ref: &EnumRef{RefType: raw.ref}}, nil
	}

	newMember := func(value uint64) EnumMember {
		return EnumMember{Name: fields.Next(), Value: value}
	}

	var members EnumMembers
	if raw.nonRef.members.bitmask != nil {
		groups := make([]EnumGroup, 0, len(raw.nonRef.members.bitmask))
		for _, g := range raw.nonRef.members.bitmask {
			field := newMember(g.mask)
			subFields := make([]EnumMember, 0, len(g.members))
			for _, m := range g.members {
				subFields = append(subFields, newMember(m))
			}
			groups = append(groups, EnumGroup{Field: field, SubFields: subFields})
		}
		members.Groups = groups
	} else {
		regular := make([]EnumMember, 0, len(raw.nonRef.members.regular))
		for _, v := range raw.nonRef.members.regular {
			regular = append(regular, newMember(v))
		}
		members.Regular = regular
	}

	return &Enum{NonRef: &EnumNonRef{
		IsSigned:     raw.nonRef.isSigned,
		IsUnsigned:   raw.nonRef.isUnsigned,
		Is64:         raw.nonRef.is64,
		OutputFormat: raw.nonRef.outputFormat,
		Members:      members,
		StorageSize:  raw.nonRef.storageSize,
	}}, nil
}
