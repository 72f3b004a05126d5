package til

import (
	"github.com/goidb/idb/internal/utils"
	"github.com/goidb/idb/internal/varint"
)

// PointerClosureKind is the "closure kind" of a pointer.
type PointerClosureKind int

const (
	PointerDefault PointerClosureKind = iota
	PointerNear
	PointerFar
	// PointerClosureOverType is `__closure`: a pointer to a BT_FUNC type.
	PointerClosureOverType
	// PointerBased carries an explicit pointer size in bytes.
	PointerBased
)

// PointerType is the closure discriminant plus its kind-specific payload.
type PointerType struct {
	Kind      PointerClosureKind
	Closure   *Type // set when Kind == PointerClosureOverType
	BasedSize uint8 // set when Kind == PointerBased
}

// PointerModifier is the optional __ptr32/__ptr64/__restrict qualifier
// carried in the pointer's tah attribute bits.
type PointerModifier int

const (
	PointerModifierNone PointerModifier = iota
	PointerModifierPtr32
	PointerModifierPtr64
	PointerModifierRestricted
)

// PointerShifted is the optional `__shifted(parent, delta)` overlay.
type PointerShifted struct {
	Parent *Type
	Delta  uint32
}

// Pointer is target-type + optional modifier + closure kind + optional
// shifted overlay.
type Pointer struct {
	Closure  PointerType
	Modifier PointerModifier
	Shifted  *PointerShifted
	Typ      *Type
}

type pointerTypeRaw struct {
	kind        PointerClosureKind
	closureType *typeRaw
	basedSize   uint8
}

type pointerShiftedRaw struct {
	parent typeRaw
	delta  uint32
}

type pointerRaw struct {
	closure      pointerTypeRaw
	modifierBits uint16
	typ          typeRaw
	shifted      *pointerShiftedRaw
}

// readPointerRaw decodes one pointer type: metadata dispatch for
// default/near/far/closure, an optional TAH block (whose tattr bits
// select the __ptr32/__ptr64/__restrict modifier and the shifted-overlay
// flag), the pointee type, and (when shifted) a parent type plus a DE
// delta.
func readPointerRaw(r *varint.Reader, header *SectionHeader, typeFlags byte) (*pointerRaw, error) {
	var closure pointerTypeRaw
	switch typeFlags {
	case btmtDefptr:
		closure = pointerTypeRaw{kind: PointerDefault}
	case btmtNear:
		closure = pointerTypeRaw{kind: PointerNear}
	case btmtFar:
		closure = pointerTypeRaw{kind: PointerFar}
	case btmtClosure:
		c, err := readPointerTypeRaw(r, header)
		if err != nil {
			return nil, err
		}
		closure = *c
	default:
		return nil, utils.NewKind(utils.KindInvariantViolation, "pointer: unreachable closure sub-flag")
	}

	var modifierBits uint16
	var isShifted bool
	tah, err := r.ReadTAH()
	if err != nil {
		return nil, err
	}
	if tah != nil {
		isShifted = tah.Tattr&taptrShifted != 0
		modifierBits = tah.Tattr & taptrRestrict
	}

	typ, err := readTypeRaw(r, header)
	if err != nil {
		return nil, err
	}

	var shifted *pointerShiftedRaw
	if isShifted {
		parent, err := readTypeRaw(r, header)
		if err != nil {
			return nil, err
		}
		delta, err := r.ReadDE()
		if err != nil {
			return nil, err
		}
		shifted = &pointerShiftedRaw{parent: parent, delta: delta}
	}

	return &pointerRaw{closure: closure, modifierBits: modifierBits, typ: typ, shifted: shifted}, nil
}

// readPointerTypeRaw decodes the closure/based-size discriminant: the 0xFF sentinel
// byte means "closure to a function type" (the nested type that follows
// must itself be BT_FUNC); any other byte is a plain based-pointer size.
func readPointerTypeRaw(r *varint.Reader, header *SectionHeader) (*pointerTypeRaw, error) {
	b, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	if b == 0xFF {
		fn, err := readTypeRaw(r, header)
		if err != nil {
			return nil, err
		}
		return &pointerTypeRaw{kind: PointerClosureOverType, closureType: &fn}, nil
	}
	return &pointerTypeRaw{kind: PointerBased, basedSize: b}, nil
}

func newPointer(header *SectionHeader, raw *pointerRaw, fields *FieldNames) (*Pointer, error) {
	closure := PointerType{Kind: raw.closure.kind, BasedSize: raw.closure.basedSize}
	if raw.closure.kind == PointerClosureOverType {
		t, err := newType(header, *raw.closure.closureType, fields)
		if err != nil {
			return nil, err
		}
		closure.Closure = &t
	}

	modifier := PointerModifierNone
	switch raw.modifierBits {
	case taptrPtr32:
		modifier = PointerModifierPtr32
	case taptrPtr64:
		modifier = PointerModifierPtr64
	case taptrRestrict:
		modifier = PointerModifierRestricted
	}

	typ, err := newType(header, raw.typ, fields)
	if err != nil {
		return nil, err
	}

	var shifted *PointerShifted
	if raw.shifted != nil {
		parent, err := newType(header, raw.shifted.parent, fields)
		if err != nil {
			return nil, err
		}
		shifted = &PointerShifted{Parent: &parent, Delta: raw.shifted.delta}
	}

	return &Pointer{Closure: closure, Modifier: modifier, Shifted: shifted, Typ: &typ}, nil
}
