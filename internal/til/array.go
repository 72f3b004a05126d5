package til

import (
	"github.com/goidb/idb/internal/varint"
)

// Array is element-type + element-count (0 = unknown) + optional base.
type Array struct {
	Base     uint8
	Nelem    uint16
	ElemType *Type
}

type arrayRaw struct {
	base     uint8
	nelem    uint16
	elemType typeRaw
}

// readArrayRaw decodes one array type: a DT-encoded element count when
// the array is "non-based" (BTMT_NONBASED), else a compound DA-encoded
// (base, nelem) pair; then an optional TAH block; then the nested
// element type.
func readArrayRaw(r *varint.Reader, header *SectionHeader, typeFlags byte) (*arrayRaw, error) {
	var base uint8
	var nelem uint16
	if typeFlags&btmtNonbased != 0 {
		n, err := r.ReadDT()
		if err != nil {
			return nil, err
		}
		nelem = n
	} else {
		n, b, err := r.ReadDA()
		if err != nil {
			return nil, err
		}
		nelem = uint16(n)
		base = b
	}

	if _, err := r.ReadTAH(); err != nil {
		return nil, err
	}

	elem, err := readTypeRaw(r, header)
	if err != nil {
		return nil, err
	}
	return &arrayRaw{base: base, nelem: nelem, elemType: elem}, nil
}

func newArray(header *SectionHeader, raw *arrayRaw, fields *FieldNames) (*Array, error) {
	elem, err := newType(header, raw.elemType, fields)
	if err != nil {
		return nil, err
	}
	return &Array{Base: raw.base, Nelem: raw.nelem, ElemType: &elem}, nil
}
