package til

import (
	"github.com/goidb/idb/internal/varint"
)

// Union is a Ref/NonRef tagged union, mirroring Struct: the two are
// basically identical on disk — only the member encoding differs,
// since union members carry no per-member sdacl block.
type Union struct {
	Ref    *UnionRef
	NonRef *UnionNonRef
}

type UnionRef struct {
	RefType *Type
}

type UnionNonRef struct {
	// EffectiveAlignment is 0 when absent.
	EffectiveAlignment uint8
	// Alignment is 0 when absent; taken from the taudt attribute bits.
	Alignment uint8
	Members   []UnionMember
}

// UnionMember is a named field with no attribute bits of its own.
type UnionMember struct {
	Name       string
	MemberType *Type
}

type unionRaw struct {
	ref    *typeRaw
	nonRef *unionNonRefRaw
}

type unionNonRefRaw struct {
	effectiveAlignment uint8
	alignment          uint8
	members            []typeRaw
}

// readUnionRaw decodes one union type: same dt_de-prefixed ref/member-count
// split as readStructRaw, but members are bare types with no trailing
// sdacl block each.
func readUnionRaw(r *varint.Reader, header *SectionHeader) (*unionRaw, error) {
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
		return &unionRaw{ref: &refType}, nil
	}

	alpow := n & 7
	memCnt := n >> 3
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
	_, _, _, _, alignment, _ := structModifierFromValue(taudtBits)

	members := make([]typeRaw, 0, memCnt)
	for i := uint32(0); i < memCnt; i++ {
		m, err := readTypeRaw(r, header)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}

	return &unionRaw{nonRef: &unionNonRefRaw{
		effectiveAlignment: effectiveAlignment,
		alignment:          alignment,
		members:            members,
	}}, nil
}

func newUnion(header *SectionHeader, raw *unionRaw, fields *FieldNames) (*Union, error) {
	if raw.ref != nil {
		t, err := newType(header, *raw.ref, fields)
		if err != nil {
			return nil, err
		}
		return &Union{Ref: &UnionRef{RefType: &t}}, nil
	}

	members := make([]UnionMember, 0, len(raw.nonRef.members))
	for _, m := range raw.nonRef.members {
		name := fields.Next()
		memberType, err := newType(header, m, fields)
		if err != nil {
			return nil, err
		}
		members = append(members, UnionMember{Name: name, MemberType: &memberType})
	}

	return &Union{NonRef: &UnionNonRef{
		EffectiveAlignment: raw.nonRef.effectiveAlignment,
		Alignment:          raw.nonRef.alignment,
		Members:            members,
	}}, nil
}
