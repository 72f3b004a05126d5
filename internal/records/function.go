package records

import (
	"bytes"

	"github.com/goidb/idb/internal/arch"
	"github.com/goidb/idb/internal/keyschema"
	"github.com/goidb/idb/internal/varint"
)

// FuncIdx is the "$ funcs" netnode's resolved key prefix.
type FuncIdx []byte

// Funcs resolves the "$ funcs" netnode, if the database records any
// functions at all.
func Funcs(store *keyschema.Store) (FuncIdx, bool) {
	prefix, ok := store.NetnodeByName("$ funcs")
	return FuncIdx(prefix), ok
}

// AddressRange is a half-open [Start, End) address span, recovered
// from start+length rather than start+end.
type AddressRange[K arch.Kind] struct {
	Start K
	End   K
}

func readAddressRange[K arch.Kind](r *varint.Reader) (AddressRange[K], error) {
	start, err := varint.UnpackUsize[K](r)
	if err != nil {
		return AddressRange[K]{}, err
	}
	length, err := varint.UnpackUsize[K](r)
	if err != nil {
		return AddressRange[K]{}, err
	}
	return AddressRange[K]{Start: start, End: saturatingAdd(start, length)}, nil
}

// saturatingAdd clamps to the arch-width maximum instead of wrapping —
// addresses never wrap past MaxValue in practice.
func saturatingAdd[K arch.Kind](a, b K) K {
	sum := arch.Add(a, b)
	if sum < a {
		return arch.MaxValue[K]()
	}
	return sum
}

// IDBFunctionFlag is the "$ funcs" array-sup entry's packed status word.
type IDBFunctionFlag uint64

const (
	funcNoret        IDBFunctionFlag = 0x00000001
	funcFar          IDBFunctionFlag = 0x00000002
	funcLib          IDBFunctionFlag = 0x00000004
	funcStaticdef    IDBFunctionFlag = 0x00000008
	funcFrame        IDBFunctionFlag = 0x00000010
	funcUserfar      IDBFunctionFlag = 0x00000020
	funcHidden       IDBFunctionFlag = 0x00000040
	funcThunk        IDBFunctionFlag = 0x00000080
	funcBottombp     IDBFunctionFlag = 0x00000100
	funcNoretPending IDBFunctionFlag = 0x00000200
	funcSPReady      IDBFunctionFlag = 0x00000400
	funcFuzzySP      IDBFunctionFlag = 0x00000800
	funcPrologOK     IDBFunctionFlag = 0x00001000
	funcPurgedOK     IDBFunctionFlag = 0x00002000
	funcTail         IDBFunctionFlag = 0x00008000
	funcLumina       IDBFunctionFlag = 0x00010000
	funcOutline      IDBFunctionFlag = 0x00020000
	funcReanalyze    IDBFunctionFlag = 0x00040000
	funcUnwind       IDBFunctionFlag = 0x00080000
	funcCatch        IDBFunctionFlag = 0x00100000
)

func (f IDBFunctionFlag) IsNoReturn() bool        { return f&funcNoret != 0 }
func (f IDBFunctionFlag) IsFar() bool              { return f&funcFar != 0 }
func (f IDBFunctionFlag) IsLib() bool              { return f&funcLib != 0 }
func (f IDBFunctionFlag) IsStatic() bool           { return f&funcStaticdef != 0 }
func (f IDBFunctionFlag) UseFramePointer() bool    { return f&funcFrame != 0 }
func (f IDBFunctionFlag) IsUserFar() bool          { return f&funcUserfar != 0 }
func (f IDBFunctionFlag) IsHidden() bool           { return f&funcHidden != 0 }
func (f IDBFunctionFlag) IsThunk() bool            { return f&funcThunk != 0 }
func (f IDBFunctionFlag) IsBotTombp() bool         { return f&funcBottombp != 0 }
func (f IDBFunctionFlag) IsNoretPending() bool     { return f&funcNoretPending != 0 }
func (f IDBFunctionFlag) IsSPReady() bool          { return f&funcSPReady != 0 }
func (f IDBFunctionFlag) IsFuzzySP() bool          { return f&funcFuzzySP != 0 }
func (f IDBFunctionFlag) IsPrologOK() bool         { return f&funcPrologOK != 0 }
func (f IDBFunctionFlag) IsPurgedOK() bool         { return f&funcPurgedOK != 0 }
func (f IDBFunctionFlag) IsTail() bool             { return f&funcTail != 0 }
func (f IDBFunctionFlag) IsLumina() bool           { return f&funcLumina != 0 }
func (f IDBFunctionFlag) IsOutline() bool          { return f&funcOutline != 0 }
func (f IDBFunctionFlag) IsReanalyze() bool        { return f&funcReanalyze != 0 }
func (f IDBFunctionFlag) IsUnwindHandler() bool    { return f&funcUnwind != 0 }
func (f IDBFunctionFlag) IsCatchHandler() bool     { return f&funcCatch != 0 }

// IDBFunctionTail is a function-chunk record that belongs to another
// function's owner.
type IDBFunctionTail[K arch.Kind] struct {
	Owner    K
	unknown4 uint16
	unknown5 *uint32
}

// IDBFunctionNonTail is a function's primary (owning) chunk record.
type IDBFunctionNonTail[K arch.Kind] struct {
	Frame      K
	Frsize     K
	Frregs     uint16
	Argsize    K
	Pntqty     uint16
	Llabelqty  uint16
	unknown1   uint16
	Regargqty  uint16
	Color      *uint32
	Tailqty    uint16
	Fpd        K
}

// IDBFunction is one "$ funcs" array-sup entry: an address range plus
// either tail-chunk or non-tail-chunk detail.
type IDBFunction[K arch.Kind] struct {
	Address AddressRange[K]
	Flags   IDBFunctionFlag
	Tail    *IDBFunctionTail[K]
	NonTail *IDBFunctionNonTail[K]
}

func readIDBFunction[K arch.Kind](value []byte, lenient bool) (IDBFunction[K], error) {
	r := varint.NewReader(bytes.NewReader(value), lenient)
	addr, err := readAddressRange[K](r)
	if err != nil {
		return IDBFunction[K]{}, err
	}
	flagsPart1, err := r.UnpackDW()
	if err != nil {
		return IDBFunction[K]{}, err
	}
	flags := IDBFunctionFlag(flagsPart1)

	fn := IDBFunction[K]{Address: addr, Flags: flags}
	if flags.IsTail() {
		tail, err := readFunctionTail[K](r, addr.Start)
		if err != nil {
			return IDBFunction[K]{}, err
		}
		fn.Tail = tail
	} else {
		nonTail, err := readFunctionNonTail[K](r, addr.Start)
		if err != nil {
			return IDBFunction[K]{}, err
		}
		fn.NonTail = nonTail
	}

	if b, ok, err := r.PeekU8(); err != nil {
		return IDBFunction[K]{}, err
	} else if ok {
		_ = b
		flagsFull, err := r.UnpackDQ()
		if err != nil {
			return IDBFunction[K]{}, err
		}
		if uint16(flagsFull) != flagsPart1 {
			return IDBFunction[K]{}, wrapInvariant("function flags conflict between partial and full word")
		}
		fn.Flags = IDBFunctionFlag(flagsFull)
	}
	return fn, nil
}

func readFunctionTail[K arch.Kind](r *varint.Reader, addressStart K) (*IDBFunctionTail[K], error) {
	ownerOffset, err := varint.UnpackUsize[K](r)
	if err != nil {
		return nil, err
	}
	unknown4, err := r.UnpackDW()
	if err != nil {
		return nil, err
	}
	var unknown5 *uint32
	if unknown4 == 0 {
		v, err := r.UnpackDD()
		if err != nil {
			return nil, err
		}
		unknown5 = &v
	}
	return &IDBFunctionTail[K]{
		Owner:    arch.Sub(addressStart, ownerOffset),
		unknown4: unknown4,
		unknown5: unknown5,
	}, nil
}

func readFunctionNonTail[K arch.Kind](r *varint.Reader, addressStart K) (*IDBFunctionNonTail[K], error) {
	ownerOffset, err := varint.UnpackUsize[K](r)
	if err != nil {
		return nil, err
	}
	highBit := K(1) << uint(arch.Bytes[K]()*8-1)
	frame := ownerOffset
	if ownerOffset == addressStart|highBit {
		frame = addressStart
	}
	frsize, err := varint.UnpackUsize[K](r)
	if err != nil {
		return nil, err
	}
	frregs, err := r.UnpackDW()
	if err != nil {
		return nil, err
	}
	argsize, err := varint.UnpackUsize[K](r)
	if err != nil {
		return nil, err
	}
	pntqty, err := r.UnpackDW()
	if err != nil {
		return nil, err
	}
	unknown1, err := r.UnpackDW()
	if err != nil {
		return nil, err
	}
	llabelqty, err := r.UnpackDW()
	if err != nil {
		return nil, err
	}
	regargqty, err := r.UnpackDW()
	if err != nil {
		return nil, err
	}
	colorRaw, err := r.UnpackDD()
	if err != nil {
		return nil, err
	}
	var color *uint32
	if colorRaw != 0 {
		v := colorRaw - 1
		color = &v
	}
	tailqty, err := r.UnpackDW()
	if err != nil {
		return nil, err
	}
	fpd, err := varint.UnpackUsize[K](r)
	if err != nil {
		return nil, err
	}
	return &IDBFunctionNonTail[K]{
		Frame:     frame,
		Frsize:    frsize,
		Frregs:    frregs,
		Argsize:   argsize,
		Pntqty:    pntqty,
		Llabelqty: llabelqty,
		unknown1:  unknown1,
		Regargqty: regargqty,
		Color:     color,
		Tailqty:   tailqty,
		Fpd:       fpd,
	}, nil
}

// Functions decodes every function-chunk entry under FuncIdx's array-sup
// family, in on-disk order.
func Functions[K arch.Kind](store *keyschema.Store, idx FuncIdx, lenient bool) ([]IDBFunction[K], error) {
	entries := store.SubValues(append(append([]byte{}, []byte(idx)...), tagArraySup))
	out := make([]IDBFunction[K], 0, len(entries))
	for _, e := range entries {
		fn, err := readIDBFunction[K](e.Value, lenient)
		if err != nil {
			return nil, wrapTruncated("decode $ funcs entry: " + err.Error())
		}
		out = append(out, fn)
	}
	return out, nil
}

// EntryPoint is a resolved "$ entry points" record: a named, optionally
// forwarded, optionally typed program entry address, assembled from the
// raw per-tag rows below.
type EntryPoint[K arch.Kind] struct {
	Key       K
	Name      string
	Address   K
	Ordinal   *K
	Forwarded string
}

// EntryPoints assembles every "$ entry points" record keyed by its
// numeric sub-key into one EntryPoint per key: address from
// ARRAY_ALT_TAG, name from ARRAY_SUP_TAG, forwarded symbol from 'F',
// ordinal from 'I'.
func EntryPoints[K arch.Kind](store *keyschema.Store) ([]EntryPoint[K], error) {
	prefix, ok := store.NetnodeByName("$ entry points")
	if !ok {
		return nil, nil
	}
	entries := store.SubValues(prefix)
	is64 := store.Is64()
	byKey := map[uint64]*EntryPoint[K]{}
	var order []uint64

	get := func(key uint64) *EntryPoint[K] {
		ep, ok := byKey[key]
		if !ok {
			ep = &EntryPoint[K]{Key: K(key)}
			byKey[key] = ep
			order = append(order, key)
		}
		return ep
	}

	for _, e := range entries {
		if len(e.Key) <= len(prefix) {
			continue
		}
		keyType := e.Key[len(prefix)]
		subKey := e.Key[len(prefix)+1:]
		if keyType == tagName {
			continue
		}
		n, ok := keyschema.ParseNumber(subKey, false, is64)
		if !ok {
			continue
		}
		key := uint64(n)
		switch keyType {
		case tagArrayAlt:
			v := arch.ReadLE[K](e.Value)
			ep := get(key)
			ep.Address = arch.Sub(v, K(1))
		case 'I':
			v := arch.ReadLE[K](e.Value)
			ep := get(key)
			ep.Ordinal = &v
		case 'F':
			s, ok := keyschema.ParseMaybeCString(e.Value)
			if !ok {
				continue
			}
			get(key).Forwarded = string(s)
		case tagArraySup:
			s, ok := keyschema.ParseMaybeCString(e.Value)
			if !ok {
				continue
			}
			get(key).Name = string(s)
		}
	}

	out := make([]EntryPoint[K], 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out, nil
}
