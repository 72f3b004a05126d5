package til

import (
	"fmt"

	"github.com/goidb/idb/internal/utils"
	"github.com/goidb/idb/internal/varint"
)

// Struct is a Ref/NonRef tagged union: decoding yields the Ref case when
// the member-count prefix decodes to the "reference follows" sentinel,
// and the NonRef case otherwise.
type Struct struct {
	Ref    *StructRef
	NonRef *StructNonRef
}

// StructRef is `struct name;` pointing at a named/ordinal type elsewhere
// in the library.
type StructRef struct {
	RefType *Type
}

// StructNonRef is a struct's full member list plus its attribute bits.
type StructNonRef struct {
	// EffectiveAlignment is 0 when absent.
	EffectiveAlignment uint8
	Members            []StructMember
	IsUnaligned        bool
	IsMsstruct         bool
	IsCppObj           bool
	IsVftable          bool
	// Alignment is 0 when absent.
	Alignment uint8
	// Others carries unparsed attribute bits not covered above.
	Others uint16
}

type structRaw struct {
	ref    *typeRaw
	nonRef *structNonRefRaw
}

type structNonRefRaw struct {
	effectiveAlignment uint8
	taudtBits          uint16
	members            []structMemberRaw
}

// readStructRaw decodes one struct type: a dt_de-encoded prefix of zero
// means "reference follows" (a nested type plus a discarded sdacl block);
// otherwise the prefix packs a member count (top bits) and an alignment
// power (low 3 bits), followed by an sdacl block and that many members.
func readStructRaw(r *varint.Reader, header *SectionHeader) (*structRaw, error) {
	n, _, ok, err := r.ReadDTDE()
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
		return &structRaw{ref: &refType}, nil
	}

	memCnt := n >> 3
	alpow := n & 7
	var effectiveAlignment uint8
	if alpow != 0 {
		effectiveAlignment = 1 << (alpow - 1)
	}

	taudt, err := r.ReadSDACL()
	if err != nil {
		return nil, err
	}
	var taudtBits uint16
	if taudt != nil {
		taudtBits = taudt.Tattr
	}

	members := make([]structMemberRaw, 0, memCnt)
	for i := uint32(0); i < memCnt; i++ {
		m, err := readStructMemberRaw(r, header, taudtBits)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}

	return &structRaw{nonRef: &structNonRefRaw{
		effectiveAlignment: effectiveAlignment,
		taudtBits:          taudtBits,
		members:            members,
	}}, nil
}

func structModifierFromValue(value uint16) (isUnaligned, isMsstruct, isCppObj, isVftable bool, alignment uint8, others uint16) {
	isMsstruct = value&taudtMsstruct != 0
	isCppObj = value&taudtCppObj != 0
	isUnaligned = value&taudtUnaligned != 0
	isVftable = value&taudtVftable != 0
	alignmentRaw := value & taudtAlignMask
	if alignmentRaw != 0 {
		alignment = 1 << (alignmentRaw - 1)
	}
	allMasks := uint16(taudtMsstruct | taudtCppObj | taudtUnaligned | taudtVftable | taudtAlignMask)
	others = value &^ allMasks
	return
}

// StructMember is a named field: declared type, optional sdacl
// attribute bits, and an optional extended member attribute.
type StructMember struct {
	Name       string
	MemberType *Type
	Sdacl      uint16
	Att        *StructMemberAtt
}

type structMemberRaw struct {
	ty    typeRaw
	sdacl uint16
	att   *StructMemberAtt
}

// readStructMemberRaw decodes one struct member: the member's type, an
// optional extended attribute (ext_att) when the struct-level
// TAFLD_METHOD-equivalent bit (0x200) is set, then an sdacl block.
func readStructMemberRaw(r *varint.Reader, header *SectionHeader, taudtBits uint16) (structMemberRaw, error) {
	ty, err := readTypeRaw(r, header)
	if err != nil {
		return structMemberRaw{}, err
	}

	var att *StructMemberAtt
	if taudtBits&0x200 != 0 {
		att, err = readMemberAtt1(r)
		if err != nil {
			return structMemberRaw{}, err
		}
	}

	var sdacl uint16
	s, err := r.ReadSDACL()
	if err != nil {
		return structMemberRaw{}, err
	}
	if s != nil {
		sdacl = s.Tattr
	}

	return structMemberRaw{ty: ty, sdacl: sdacl, att: att}, nil
}

// readMemberAtt1 decodes a struct member's extended attribute. Variants
// 8 and 0xb have no known decode and surface as an invariant violation
// rather than silently misparsing the remaining bytes.
func readMemberAtt1(r *varint.Reader) (*StructMemberAtt, error) {
	att, err := r.ReadExtAtt()
	if err != nil {
		return nil, err
	}
	switch att & 0xf {
	case 0xd, 0xe, 0xf:
		return nil, utils.NewKind(utils.KindInvariantViolation, fmt.Sprintf("struct member attribute: invalid value %#x", att))
	case 8, 0xb:
		return nil, utils.NewKind(utils.KindInvariantViolation, fmt.Sprintf("struct member attribute: variant %#x has no known decoding", att&0xf))
	case 9:
		val1, err := r.ReadDE()
		if err != nil {
			return nil, err
		}
		var att0 *uint64
		if val1&0x1010 == 0 {
			v, err := r.ReadExtAtt()
			if err != nil {
				return nil, err
			}
			att0 = &v
		}
		att1, err := r.ReadExtAtt()
		if err != nil {
			return nil, err
		}
		att2, err := r.ReadExtAtt()
		if err != nil {
			return nil, err
		}
		return &StructMemberAtt{Var9: &StructMemberAttVar9{Val1: val1, Att0: att0, Att1: att1, Att2: att2}}, nil
	case 0xa, 0xc:
		val1, err := r.ReadDE()
		if err != nil {
			return nil, err
		}
		basic, err := readBasicAtt(r, att)
		if err != nil {
			return nil, err
		}
		return &StructMemberAtt{VarAorC: &StructMemberAttVarAorC{Val1: val1, Att0: basic}}, nil
	default:
		basic, err := readBasicAtt(r, att)
		if err != nil {
			return nil, err
		}
		return &StructMemberAtt{Var0to7: &basic}, nil
	}
}

func readBasicAtt(r *varint.Reader, att uint64) (StructMemberAttBasic, error) {
	if (att>>8)&0x10 != 0 {
		val1, err := r.ReadDE()
		if err != nil {
			return StructMemberAttBasic{}, err
		}
		val2, err := r.ReadDE()
		if err != nil {
			return StructMemberAttBasic{}, err
		}
		val3, err := r.ReadDE()
		if err != nil {
			return StructMemberAttBasic{}, err
		}
		return StructMemberAttBasic{Att: att, Extended: true, Val1: val1, Val2: val2, Val3: val3}, nil
	}
	return StructMemberAttBasic{Att: att}, nil
}

// StructMemberAtt is a tagged union over a struct member's extended
// attribute's three surviving variants (Var0to7/Var9/VarAorC).
type StructMemberAtt struct {
	Var0to7 *StructMemberAttBasic
	Var9    *StructMemberAttVar9
	VarAorC *StructMemberAttVarAorC
}

// StrType reports the string-encoding hint carried by a VarAorC
// attribute whose basic value is the literal 0xa sentinel.
func (a *StructMemberAtt) StrType() (StringType, bool) {
	if a == nil || a.VarAorC == nil || a.VarAorC.Att0.Extended || a.VarAorC.Att0.Att != 0xa {
		return 0, false
	}
	return StringType(a.VarAorC.Val1), true
}

type StructMemberAttVar9 struct {
	Val1 uint32
	Att0 *uint64
	Att1 uint64
	Att2 uint64
}

type StructMemberAttVarAorC struct {
	Val1 uint32
	Att0 StructMemberAttBasic
}

// StructMemberAttBasic is StructMemberAttBasic::{Var1,Var2} folded into
// one struct distinguished by Extended.
type StructMemberAttBasic struct {
	Att      uint64
	Extended bool
	Val1     uint32
	Val2     uint32
	Val3     uint32
}

// StringType is the strlib string-encoding enumeration referenced by
// struct member attributes.
type StringType uint32

const (
	StringTypeUtf8 StringType = iota
	StringTypeUtf16LE
	StringTypeUtf32LE
	StringTypeUtf16BE
	StringTypeUtf32BE
)

func newStruct(header *SectionHeader, raw *structRaw, fields *FieldNames) (*Struct, error) {
	if raw.ref != nil {
		t, err := newType(header, *raw.ref, fields)
		if err != nil {
			return nil, err
		}
		return &Struct{Ref: &StructRef{RefType: &t}}, nil
	}

	members := make([]StructMember, 0, len(raw.nonRef.members))
	for _, m := range raw.nonRef.members {
		name := fields.Next()
		memberType, err := newType(header, m.ty, fields)
		if err != nil {
			return nil, err
		}
		members = append(members, StructMember{Name: name, MemberType: &memberType, Sdacl: m.sdacl, Att: m.att})
	}

	isUnaligned, isMsstruct, isCppObj, isVftable, alignment, others := structModifierFromValue(raw.nonRef.taudtBits)
	return &Struct{NonRef: &StructNonRef{
		EffectiveAlignment: raw.nonRef.effectiveAlignment,
		Members:            members,
		IsUnaligned:        isUnaligned,
		IsMsstruct:         isMsstruct,
		IsCppObj:           isCppObj,
		IsVftable:          isVftable,
		Alignment:          alignment,
		Others:             others,
	}}, nil
}
