// Cycle-safe sizeof/alignof over the TIL type graph: a solver that
// resolves typedefs by building name/ordinal indexes over the types
// bucket once, up front, rather than assuming indices have already been
// resolved elsewhere.
//
// The Basic::Short/Long/LongLong/LongDouble/plain-Bool cases below are
// kept for exhaustiveness but are dead code: every real size/float/
// bool/long-double value is already baked into a Basic's Bytes field by
// the time the type graph is decoded.
package til

import lru "github.com/hashicorp/golang-lru/v2"

// solverCacheSize bounds the sizeof/alignof memo, rather than letting it
// grow unbounded on a types bucket with tens of thousands of entries; the
// in-progress guard (solving) stays a plain map since it must hold every
// frame of the current recursion, not just the most recently used ones.
const solverCacheSize = 4096

// Solver computes cycle-safe sizeof/alignof over a decoded Section's
// type graph, memoizing both per type-bucket index in a bounded LRU.
type Solver struct {
	section    *Section
	header     *SectionHeader
	byName     map[string]int
	byOrdinal  map[uint64]int
	sizeCache  *lru.Cache[int, uint64]
	alignCache *lru.Cache[int, uint64]
	solving    map[int]bool
}

// NewSolver builds a Solver over section's types bucket, indexing it by
// name and by ordinal so Typedef references can be resolved without a
// linear scan per lookup.
func NewSolver(section *Section, header *SectionHeader) *Solver {
	byName := make(map[string]int, len(section.Types))
	byOrdinal := make(map[uint64]int, len(section.Types))
	for i, t := range section.Types {
		byName[string(t.Name)] = i
		byOrdinal[t.Ordinal] = i
	}
	sizeCache, _ := lru.New[int, uint64](solverCacheSize)
	alignCache, _ := lru.New[int, uint64](solverCacheSize)
	return &Solver{
		section:    section,
		header:     header,
		byName:     byName,
		byOrdinal:  byOrdinal,
		sizeCache:  sizeCache,
		alignCache: alignCache,
		solving:    make(map[int]bool),
	}
}

// ByName returns the types-bucket entry named name, if any.
func (s *Solver) ByName(name string) (*TypeInfo, bool) {
	idx, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return &s.section.Types[idx], true
}

// ByOrdinal returns the types-bucket entry with the given ordinal, if any.
func (s *Solver) ByOrdinal(ordinal uint64) (*TypeInfo, bool) {
	idx, ok := s.byOrdinal[ordinal]
	if !ok {
		return nil, false
	}
	return &s.section.Types[idx], true
}

// SizeOf returns the byte size of an anonymous type (one not itself a
// named/ordinal entry of the types bucket, e.g. a struct member's type
// or an array's element type). The in-progress guard below still
// applies to any named type it recurses into.
func (s *Solver) SizeOf(ty *Type) (uint64, bool) {
	return s.sizeOfIndexed(-1, ty)
}

// SizeOfIndex returns the byte size of the types-bucket entry at idx,
// memoized across calls.
func (s *Solver) SizeOfIndex(idx int) (uint64, bool) {
	if idx < 0 || idx >= len(s.section.Types) {
		return 0, false
	}
	return s.sizeOfIndexed(idx, &s.section.Types[idx].Info)
}

func (s *Solver) sizeOfIndexed(idx int, ty *Type) (uint64, bool) {
	if idx >= 0 {
		if v, ok := s.sizeCache.Get(idx); ok {
			return v, true
		}
		if s.solving[idx] {
			return 0, false
		}
		s.solving[idx] = true
		defer delete(s.solving, idx)
	}
	result, ok := s.innerSizeOf(ty)
	if ok && idx >= 0 {
		s.sizeCache.Add(idx, result)
	}
	return result, ok
}

func (s *Solver) innerSizeOf(ty *Type) (uint64, bool) {
	v := &ty.Variant
	switch {
	case v.Basic != nil:
		return s.basicSize(v.Basic)

	case v.Pointer != nil:
		return s.pointerSize(v.Pointer), true

	case v.Function != nil:
		return 0, true // a function type has no size; only a pointer to it does

	case v.Array != nil:
		elemSize, ok := s.innerSizeOf(v.Array.ElemType)
		if !ok {
			return 0, false
		}
		return elemSize * uint64(v.Array.Nelem), true

	case v.Typedef != nil:
		idx, ok := s.resolveTypedef(v.Typedef)
		if !ok {
			return 0, false
		}
		return s.SizeOfIndex(idx)

	case v.Struct != nil:
		return s.structSize(v.Struct)

	case v.Union != nil:
		return s.unionSize(v.Union)

	case v.Enum != nil:
		return s.enumSize(v.Enum), true

	case v.Bitfield != nil:
		return uint64(v.Bitfield.Nbytes), true
	}
	return 0, false
}

func (s *Solver) basicSize(b *Basic) (uint64, bool) {
	switch b.Kind {
	case BasicChar, BasicSegReg:
		return 1, true
	case BasicVoid:
		return 0, true
	case BasicUnknown, BasicBoolSized, BasicIntSized, BasicFloat:
		return uint64(b.Bytes), true
	case BasicInt:
		return uint64(s.header.SizeI), true
	case BasicShort: // unreachable: newBasic never constructs this kind
		return uint64(s.sizeofShort()), true
	case BasicLong: // unreachable: newBasic never constructs this kind
		return uint64(s.sizeofLong()), true
	case BasicLongLong: // unreachable: newBasic never constructs this kind
		return uint64(s.sizeofLongLong()), true
	case BasicLongDouble: // unreachable: newBasic folds this into BasicFloat
		if s.header.SizeLongDouble != 0 {
			return uint64(s.header.SizeLongDouble), true
		}
		return 8, true
	case BasicBool: // unreachable: newBasic always constructs BasicBoolSized
		return uint64(s.header.SizeB), true
	}
	return 0, false
}

// sizeofShort/sizeofLong/sizeofLongLong fall back to conventional C ABI
// sizes when the header doesn't carry the extended size trio, since no
// authoritative default value for these three could be confirmed.
func (s *Solver) sizeofShort() uint8 {
	if s.header.Sizes != nil && s.header.Sizes.Short != 0 {
		return s.header.Sizes.Short
	}
	return 2
}

func (s *Solver) sizeofLong() uint8 {
	if s.header.Sizes != nil && s.header.Sizes.Long != 0 {
		return s.header.Sizes.Long
	}
	return 4
}

func (s *Solver) sizeofLongLong() uint8 {
	if s.header.Sizes != nil && s.header.Sizes.LongLong != 0 {
		return s.header.Sizes.LongLong
	}
	return 8
}

// pointerSize honors an explicit ptr32/ptr64 attribute override before
// falling back to the section's cm-derived near pointer width. The cm
// memory model is not consulted, so the far width is never returned.
// When cm carries no usable pointer-size class, 4 is the fallback.
func (s *Solver) pointerSize(p *Pointer) uint64 {
	switch p.Modifier {
	case PointerModifierPtr32:
		return 4
	case PointerModifierPtr64:
		return 8
	}
	if cc, ok := ccPtrSizeFromCMRaw(s.header.CM, s.header.SizeI); ok {
		return uint64(cc.NearBytes())
	}
	return 4
}

func (s *Solver) structSize(st *Struct) (uint64, bool) {
	if st.Ref != nil {
		return s.innerSizeOf(st.Ref.RefType)
	}
	nr := st.NonRef
	members := nr.Members
	var sum uint64
	const defaultAlign = 1
	for len(members) > 0 {
		first := members[0]
		var fieldSize uint64
		if first.MemberType.Variant.Bitfield != nil {
			bf := first.MemberType.Variant.Bitfield
			members = members[1:]
			fieldSize = uint64(condensateBitfieldsFromStruct(bf, &members))
		} else {
			sz, ok := s.innerSizeOf(first.MemberType)
			if !ok {
				return 0, false
			}
			members = members[1:]
			fieldSize = sz
		}

		if !nr.IsUnaligned {
			memberAlign := s.memberAlignOverride(first)
			inferredAlign, ok := s.innerAlignOf(first.MemberType, fieldSize)
			align := defaultAlign
			switch {
			case memberAlign != 0 && ok:
				align = maxU64(uint64(memberAlign), inferredAlign)
			case memberAlign != 0:
				align = uint64(memberAlign)
			case ok:
				align = inferredAlign
			}
			if align < 1 {
				align = 1
			}
			if diff := sum % align; diff != 0 {
				sum += align - diff
			}
		}
		sum += fieldSize
	}
	return sum, true
}

// memberAlignOverride derives a struct member's own alignment override
// from its sdacl attribute bits, reusing the same tattr layout the
// struct-level taudt bits already use (structModifierFromValue).
func (s *Solver) memberAlignOverride(m StructMember) uint8 {
	_, _, _, _, alignment, _ := structModifierFromValue(m.Sdacl)
	return alignment
}

func (s *Solver) unionSize(u *Union) (uint64, bool) {
	if u.Ref != nil {
		return s.innerSizeOf(u.Ref.RefType)
	}
	var max uint64
	for _, m := range u.NonRef.Members {
		sz, ok := s.innerSizeOf(m.MemberType)
		if !ok {
			return 0, false
		}
		if sz > max {
			max = sz
		}
	}
	return max, true
}

func (s *Solver) enumSize(e *Enum) uint64 {
	if e.Ref != nil {
		return s.enumSizeFromTypedef(e.Ref.RefType)
	}
	if e.NonRef.StorageSize != 0 {
		return uint64(e.NonRef.StorageSize)
	}
	if s.header.SizeEnum != 0 {
		return uint64(s.header.SizeEnum)
	}
	return 4
}

func (s *Solver) enumSizeFromTypedef(td *Typedef) uint64 {
	idx, ok := s.resolveTypedef(td)
	if !ok {
		return 4
	}
	sz, ok := s.SizeOfIndex(idx)
	if !ok {
		return 4
	}
	return sz
}

func (s *Solver) resolveTypedef(td *Typedef) (int, bool) {
	if td.IsOrdinal {
		idx, ok := s.byOrdinal[uint64(td.Ordinal)]
		return idx, ok
	}
	idx, ok := s.byName[string(td.Name)]
	return idx, ok
}

// AlignOf returns the alignment, in bytes, of an anonymous type whose
// byte size has already been computed by the caller, taking the size as
// an input rather than recomputing it.
func (s *Solver) AlignOf(ty *Type, sizeBytes uint64) (uint64, bool) {
	return s.alignOfIndexed(-1, ty, sizeBytes)
}

// AlignOfIndex returns the alignment of the types-bucket entry at idx,
// memoized across calls.
func (s *Solver) AlignOfIndex(idx int) (uint64, bool) {
	if idx < 0 || idx >= len(s.section.Types) {
		return 0, false
	}
	sz, ok := s.SizeOfIndex(idx)
	if !ok {
		sz = 1
	}
	return s.alignOfIndexed(idx, &s.section.Types[idx].Info, sz)
}

func (s *Solver) alignOfIndexed(idx int, ty *Type, sizeBytes uint64) (uint64, bool) {
	if idx >= 0 {
		if v, ok := s.alignCache.Get(idx); ok {
			return v, true
		}
		if s.solving[idx] {
			return 0, false
		}
		s.solving[idx] = true
		defer delete(s.solving, idx)
	}
	result, ok := s.innerAlignOf(ty, sizeBytes)
	if ok && idx >= 0 {
		s.alignCache.Add(idx, result)
	}
	return result, ok
}

func (s *Solver) innerAlignOf(ty *Type, sizeBytes uint64) (uint64, bool) {
	v := &ty.Variant
	switch {
	case v.Basic != nil, v.Enum != nil, v.Pointer != nil:
		return sizeBytes, true

	case v.Array != nil:
		elemSize, ok := s.innerSizeOf(v.Array.ElemType)
		if !ok {
			elemSize = 1
		}
		return s.innerAlignOf(v.Array.ElemType, elemSize)

	case v.Typedef != nil:
		idx, ok := s.resolveTypedef(v.Typedef)
		if !ok {
			return 0, false
		}
		target := &s.section.Types[idx].Info
		size, ok := s.innerSizeOf(target)
		if !ok {
			size = 1
		}
		return s.innerAlignOf(target, size)

	case v.Struct != nil:
		if v.Struct.Ref != nil {
			size, ok := s.innerSizeOf(v.Struct.Ref.RefType)
			if !ok {
				size = 1
			}
			return s.innerAlignOf(v.Struct.Ref.RefType, size)
		}
		var maxAlign uint64 = 1
		for _, m := range v.Struct.NonRef.Members {
			memberSize, _ := s.SizeOf(m.MemberType)
			align, ok := s.innerAlignOf(m.MemberType, memberSize)
			if ok && align > maxAlign {
				maxAlign = align
			}
		}
		if v.Struct.NonRef.Alignment != 0 {
			return maxU64(uint64(v.Struct.NonRef.Alignment), maxAlign), true
		}
		return maxAlign, true

	case v.Union != nil:
		if v.Union.Ref != nil {
			size, ok := s.innerSizeOf(v.Union.Ref.RefType)
			if !ok {
				size = 1
			}
			return s.innerAlignOf(v.Union.Ref.RefType, size)
		}
		var maxAlign uint64 = 1
		for _, m := range v.Union.NonRef.Members {
			memberSize, _ := s.SizeOf(m.MemberType)
			align, ok := s.innerAlignOf(m.MemberType, memberSize)
			if ok && align > maxAlign {
				maxAlign = align
			}
		}
		if v.Union.NonRef.Alignment != 0 {
			return maxU64(uint64(v.Union.NonRef.Alignment), maxAlign), true
		}
		return maxAlign, true

	case v.Function != nil, v.Bitfield != nil:
		return 1, true
	}
	return 0, false
}

// condensateBitfieldsFromStruct merges a run of bitfields sharing the
// same container byte-size into one byte-field. A run
// ends when the next member isn't a bitfield, its container size
// differs, or adding its width would overflow the container's bit
// capacity; the member that ends the run is left unconsumed.
func condensateBitfieldsFromStruct(first *Bitfield, rest *[]StructMember) uint8 {
	containerBytes := first.Nbytes
	containerBits := uint16(containerBytes) * 8
	condensedBits := first.Width

	for len(*rest) > 0 {
		next := (*rest)[0].MemberType.Variant.Bitfield
		if next == nil {
			break
		}
		condensedBits += next.Width
		if next.Nbytes != containerBytes || condensedBits > containerBits {
			break
		}
		*rest = (*rest)[1:]
	}
	return containerBytes
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
