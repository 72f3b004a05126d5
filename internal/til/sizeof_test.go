package til

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func basicType(kind BasicKind, bytes uint8) *Type {
	return &Type{Variant: TypeVariant{Basic: &Basic{Kind: kind, Bytes: bytes}}}
}

func TestSolverStructSizeWithAlignment(t *testing.T) {
	// struct { char a; int32 b; } on a 4-byte-aligned int32 member: the
	// char at offset 0 pads to offset 4 before the int32, total size 8.
	st := &Struct{NonRef: &StructNonRef{Members: []StructMember{
		{Name: "a", MemberType: basicType(BasicChar, 0)},
		{Name: "b", MemberType: basicType(BasicIntSized, 4)},
	}}}
	section := &Section{}
	header := &SectionHeader{}
	s := NewSolver(section, header)

	size, ok := s.structSize(st)
	require.True(t, ok)
	require.EqualValues(t, 8, size)
}

func TestSolverStructUnalignedSkipsPadding(t *testing.T) {
	st := &Struct{NonRef: &StructNonRef{
		IsUnaligned: true,
		Members: []StructMember{
			{Name: "a", MemberType: basicType(BasicChar, 0)},
			{Name: "b", MemberType: basicType(BasicIntSized, 4)},
		},
	}}
	s := NewSolver(&Section{}, &SectionHeader{})
	size, ok := s.structSize(st)
	require.True(t, ok)
	require.EqualValues(t, 5, size)
}

func TestSolverBitfieldCondensation(t *testing.T) {
	// Three 1-byte-container bitfields of width 3 each (total 9 bits)
	// condense into containerBytes=1 since the third overflows 8 bits and
	// is left unconsumed as its own member, followed by a plain char.
	bf := func(width uint16) *Type {
		return &Type{Variant: TypeVariant{Bitfield: &Bitfield{Width: width, Nbytes: 1}}}
	}
	st := &Struct{NonRef: &StructNonRef{
		IsUnaligned: true,
		Members: []StructMember{
			{Name: "a", MemberType: bf(3)},
			{Name: "b", MemberType: bf(3)},
			{Name: "c", MemberType: bf(3)},
			{Name: "d", MemberType: basicType(BasicChar, 0)},
		},
	}}
	s := NewSolver(&Section{}, &SectionHeader{})
	size, ok := s.structSize(st)
	require.True(t, ok)
	// first two bitfields condense to 1 byte (6 of 8 bits used), the third
	// doesn't fit (6+3=9 > 8) so it starts a fresh byte on its own, plus
	// the trailing char: 1 + 1 + 1 = 3.
	require.EqualValues(t, 3, size)
}

func TestSolverUnionSizeIsMax(t *testing.T) {
	u := &Union{NonRef: &UnionNonRef{Members: []UnionMember{
		{Name: "a", MemberType: basicType(BasicChar, 0)},
		{Name: "b", MemberType: basicType(BasicIntSized, 4)},
	}}}
	s := NewSolver(&Section{}, &SectionHeader{})
	size, ok := s.unionSize(u)
	require.True(t, ok)
	require.EqualValues(t, 4, size)
}

func TestSolverEnumSizeFallback(t *testing.T) {
	s := NewSolver(&Section{}, &SectionHeader{})
	require.EqualValues(t, 4, s.enumSize(&Enum{NonRef: &EnumNonRef{}}))

	s = NewSolver(&Section{}, &SectionHeader{SizeEnum: 2})
	require.EqualValues(t, 2, s.enumSize(&Enum{NonRef: &EnumNonRef{}}))

	s = NewSolver(&Section{}, &SectionHeader{SizeEnum: 2})
	require.EqualValues(t, 1, s.enumSize(&Enum{NonRef: &EnumNonRef{StorageSize: 1}}))
}

func TestSolverPointerSizeModifierOverridesCM(t *testing.T) {
	header := &SectionHeader{CM: cmN16F32}
	s := NewSolver(&Section{}, header)

	require.EqualValues(t, 2, s.pointerSize(&Pointer{}))
	require.EqualValues(t, 4, s.pointerSize(&Pointer{Modifier: PointerModifierPtr32}))
	require.EqualValues(t, 8, s.pointerSize(&Pointer{Modifier: PointerModifierPtr64}))
}

func TestSolverCycleDetection(t *testing.T) {
	// Two mutually-referential typedefs: "A" -> typedef "B", "B" -> typedef "A".
	section := &Section{Types: []TypeInfo{
		{Name: []byte("A"), Ordinal: 1, Info: Type{Variant: TypeVariant{Typedef: &Typedef{Name: []byte("B")}}}},
		{Name: []byte("B"), Ordinal: 2, Info: Type{Variant: TypeVariant{Typedef: &Typedef{Name: []byte("A")}}}},
	}}
	s := NewSolver(section, &SectionHeader{})
	_, ok := s.SizeOfIndex(0)
	require.False(t, ok)
}

func TestSolverSizeOfIndexMemoizes(t *testing.T) {
	section := &Section{Types: []TypeInfo{
		{Name: []byte("C"), Ordinal: 1, Info: *basicType(BasicIntSized, 4)},
	}}
	s := NewSolver(section, &SectionHeader{})
	size1, ok := s.SizeOfIndex(0)
	require.True(t, ok)
	size2, ok := s.SizeOfIndex(0)
	require.True(t, ok)
	require.Equal(t, size1, size2)
	require.EqualValues(t, 4, size1)
}

func TestCondensateBitfieldsFromStructStopsOnNonBitfield(t *testing.T) {
	bf := &Bitfield{Width: 4, Nbytes: 1}
	rest := []StructMember{
		{MemberType: basicType(BasicChar, 0)},
	}
	n := condensateBitfieldsFromStruct(bf, &rest)
	require.EqualValues(t, 1, n)
	require.Len(t, rest, 1) // the non-bitfield member is left unconsumed
}
