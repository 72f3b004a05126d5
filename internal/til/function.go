package til

import (
	"fmt"

	"github.com/goidb/idb/internal/utils"
	"github.com/goidb/idb/internal/varint"
)

// CallMethod is the BT_FUNC call-method sub-flag.
type CallMethod int

const (
	CallMethodNear CallMethod = iota
	CallMethodFar
	CallMethodInt
)

// CallingConvention is the cm byte's CM_CC_* sub-field. nil means
// CM_CC_UNKNOWN ("not specified").
type CallingConvention int

const (
	CCVoidarg CallingConvention = iota
	CCCdecl
	CCEllipsis
	CCStdcall
	CCPascal
	CCFastcall
	CCThiscall
	CCSwift
	CCGolang
	CCReserved3
	CCUservars
	CCUserpurge
	CCUsercall
)

// IsSpecialPE reports whether this convention carries an explicit
// per-argument/per-return ArgLoc (uservars/userpurge/usercall).
func (cc CallingConvention) IsSpecialPE() bool {
	switch cc {
	case CCUservars, CCUserpurge, CCUsercall:
		return true
	}
	return false
}

func callingConventionFromCMRaw(cm byte) (*CallingConvention, error) {
	var cc CallingConvention
	switch cm & cmCCMask {
	case cmCCSpoiled:
		return nil, utils.NewKind(utils.KindInvariantViolation, "function: unexpected spoiled calling convention byte")
	case cmCCInvalid:
		return nil, utils.NewKind(utils.KindInvariantViolation, "function: invalid calling convention")
	case cmCCUnknown:
		return nil, nil
	case cmCCVoidarg:
		cc = CCVoidarg
	case cmCCCdecl:
		cc = CCCdecl
	case cmCCEllipsis:
		cc = CCEllipsis
	case cmCCStdcall:
		cc = CCStdcall
	case cmCCPascal:
		cc = CCPascal
	case cmCCFastcall:
		cc = CCFastcall
	case cmCCThiscall:
		cc = CCThiscall
	case cmCCSwift:
		cc = CCSwift
	case cmCCGolang:
		cc = CCGolang
	case cmCCReserve3:
		cc = CCReserved3
	case cmCCSpeciale:
		cc = CCUservars
	case cmCCSpecialp:
		cc = CCUserpurge
	case cmCCSpecial:
		cc = CCUsercall
	default:
		return nil, utils.NewKind(utils.KindInvariantViolation, "function: unreachable calling convention byte")
	}
	return &cc, nil
}

// CCPtrSize is the cm byte's near/far pointer size model, exposed for
// callers computing ABI-specific pointer widths. The type-size solver
// (Solver.pointerSize) uses its near width for a pointer that carries
// no __ptr32/__ptr64 modifier.
type CCPtrSize int

const (
	CCPtrSizeN8F16 CCPtrSize = iota
	CCPtrSizeN16F32
	CCPtrSizeN32F48
	CCPtrSizeN64
)

func ccPtrSizeFromCMRaw(cm byte, sizeInt uint8) (*CCPtrSize, bool) {
	var v CCPtrSize
	switch cm & cmPtrMask {
	case cmUnknown:
		return nil, false
	case cmN8F16: // shares its raw value with cmN64; size_int disambiguates.
		if sizeInt <= 2 {
			v = CCPtrSizeN8F16
		} else {
			v = CCPtrSizeN64
		}
	case cmN16F32:
		v = CCPtrSizeN16F32
	case cmN32F48:
		v = CCPtrSizeN32F48
	default:
		return nil, false
	}
	return &v, true
}

func (s CCPtrSize) NearBytes() uint8 {
	switch s {
	case CCPtrSizeN8F16:
		return 1
	case CCPtrSizeN16F32:
		return 2
	case CCPtrSizeN32F48:
		return 4
	case CCPtrSizeN64:
		return 8
	}
	return 0
}

func (s CCPtrSize) FarBytes() uint8 {
	switch s {
	case CCPtrSizeN8F16:
		return 2
	case CCPtrSizeN16F32:
		return 4
	case CCPtrSizeN32F48:
		return 6
	case CCPtrSizeN64:
		return 8
	}
	return 0
}

// CCModel is the cm byte's code/data near-vs-far memory model.
type CCModel int

const (
	CCModelNN CCModel = iota
	CCModelFF
	CCModelNF
	CCModelFN
)

func ccModelFromCMRaw(cm byte) (*CCModel, bool) {
	m := cm & cmMMask
	p := cm & cmPtrMask
	var v CCModel
	switch {
	case m == cmMNN && p == cmUnknown:
		return nil, false
	case m == cmMNN:
		v = CCModelNN
	case m == cmMFF:
		v = CCModelFF
	case m == cmMNF:
		v = CCModelNF
	case m == cmMFN:
		v = CCModelFN
	default:
		return nil, false
	}
	return &v, true
}

func (m CCModel) IsCodeNear() bool { return m == CCModelNN || m == CCModelNF }
func (m CCModel) IsCodeFar() bool  { return !m.IsCodeNear() }
func (m CCModel) IsDataNear() bool { return m == CCModelNN || m == CCModelFN }
func (m CCModel) IsDataFar() bool  { return !m.IsDataNear() }

// ArgLocKind discriminates ArgLoc's on-disk variants.
type ArgLocKind int

const (
	ArgLocKindNone ArgLocKind = iota
	ArgLocKindStack
	ArgLocKindDist
	ArgLocKindReg1
	ArgLocKindReg2
	ArgLocKindRRel
	ArgLocKindStatic
)

// ArgLoc is an argument or return-value storage location.
type ArgLoc struct {
	Kind    ArgLocKind
	Stack   uint32
	Dist    []ArgLocDist
	Reg1    uint32
	Reg2    uint32
	RRelReg uint16
	RRelOff uint32
	Static  uint32
}

// ArgLocDist is one piece of a scattered (Dist) argument location.
type ArgLocDist struct {
	Info uint16
	Off  uint16
	Size uint16
}

// readArgLoc decodes one argument location: a compact register/stack encoding
// when the leading byte's top bit pattern allows it, else (0xFF
// sentinel) an extended dt-typed dispatch over ALOC_*.
func readArgLoc(r *varint.Reader) (*ArgLoc, error) {
	t, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	if t != 0xFF {
		if t <= 0x80 {
			b := t & 0x7F
			if b != 0 {
				return &ArgLoc{Kind: ArgLocKindReg1, Reg1: uint32(b - 1)}, nil
			}
			return &ArgLoc{Kind: ArgLocKindStack, Stack: 0}, nil
		}
		b := t & 0x7F
		c, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		if c == 0 {
			return &ArgLoc{Kind: ArgLocKindNone}, nil
		}
		return &ArgLoc{Kind: ArgLocKindReg2, Reg2: uint32(b) | uint32(c-1)<<16}, nil
	}

	typ, err := r.ReadDT()
	if err != nil {
		return nil, err
	}
	switch typ & 0xF {
	case alocNone:
		return &ArgLoc{Kind: ArgLocKindNone}, nil
	case alocStack:
		v, err := r.ReadDE()
		if err != nil {
			return nil, err
		}
		return &ArgLoc{Kind: ArgLocKindStack, Stack: v}, nil
	case alocDist:
		n := (typ >> 5) & 0x7
		dist := make([]ArgLocDist, 0, n)
		for i := uint16(0); i < n; i++ {
			info, err := r.ReadDT()
			if err != nil {
				return nil, err
			}
			off, err := r.ReadDT()
			if err != nil {
				return nil, err
			}
			size, err := r.ReadDT()
			if err != nil {
				return nil, err
			}
			dist = append(dist, ArgLocDist{Info: info, Off: off, Size: size})
		}
		return &ArgLoc{Kind: ArgLocKindDist, Dist: dist}, nil
	case alocReg1:
		reg, err := r.ReadDT()
		if err != nil {
			return nil, err
		}
		return &ArgLoc{Kind: ArgLocKindReg1, Reg1: uint32(reg)}, nil
	case alocReg2:
		reg, err := r.ReadDT()
		if err != nil {
			return nil, err
		}
		return &ArgLoc{Kind: ArgLocKindReg2, Reg2: uint32(reg)}, nil
	case alocRrel:
		reg, err := r.ReadDT()
		if err != nil {
			return nil, err
		}
		off, err := r.ReadDE()
		if err != nil {
			return nil, err
		}
		return &ArgLoc{Kind: ArgLocKindRRel, RRelReg: reg, RRelOff: off}, nil
	case alocStatic:
		v, err := r.ReadDE()
		if err != nil {
			return nil, err
		}
		return &ArgLoc{Kind: ArgLocKindStatic, Static: v}, nil
	default:
		return nil, utils.NewKind(utils.KindInvariantViolation, "argloc: custom implementation not supported")
	}
}

// Function is a prototype: calling convention, return type/location,
// argument list, and attribute bits.
type Function struct {
	CallingConvention *CallingConvention
	Ret               *Type
	Args              []FunctionArg
	Retloc            *ArgLoc
	Method            *CallMethod
	IsNoret           bool
	IsPure            bool
	IsHigh            bool
	IsStatic          bool
	IsVirtual         bool
	IsConst           bool
	IsConstructor     bool
	IsDestructor      bool
}

// FunctionArg is one declared argument: name, type, and (for "special
// PE" calling conventions) its explicit storage location.
type FunctionArg struct {
	Name string
	Type *Type
	Loc  *ArgLoc
}

type functionArgRaw struct {
	ty  typeRaw
	loc *ArgLoc
}

type functionRaw struct {
	callingConvention *CallingConvention
	ret               typeRaw
	args              []functionArgRaw
	retloc            *ArgLoc
	method            *CallMethod

	isNoret       bool
	isPure        bool
	isHigh        bool
	isStatic      bool
	isVirtual     bool
	isConst       bool
	isConstructor bool
	isDestructor  bool
}

// readFunctionRaw decodes one function type: a calling-convention byte
// (possibly extended with a spoiled-register loop), an attribute
// bitmask that must fully decode to zero, an optional TAH block, the
// return type, an optional return ArgLoc (only for the "special PE"
// conventions and a non-void return), and — unless the convention is
// CM_CC_VOIDARG — a dt-counted argument list.
func readFunctionRaw(r *varint.Reader, header *SectionHeader, typeFlags byte) (*functionRaw, error) {
	var method *CallMethod
	switch typeFlags {
	case btmtDefcall:
		method = nil
	case btmtNearcall:
		m := CallMethodNear
		method = &m
	case btmtFarcall:
		m := CallMethodFar
		method = &m
	case btmtIntcall:
		m := CallMethodInt
		method = &m
	default:
		return nil, utils.NewKind(utils.KindInvariantViolation, "function: unreachable call-method sub-flag")
	}

	ccRaw, flags, err := readCC(r)
	if err != nil {
		return nil, err
	}
	cc, err := callingConventionFromCMRaw(ccRaw)
	if err != nil {
		return nil, err
	}

	flags &^= 0x0001 // have_spoiled, not modeled further
	isNoret := flags&0x0002 != 0
	flags &^= 0x0002
	isPure := flags&0x0004 != 0
	flags &^= 0x0004
	isHigh := flags&0x0008 != 0
	flags &^= 0x0008
	isStatic := flags&0x0010 != 0
	flags &^= 0x0010
	isVirtual := flags&0x0020 != 0
	flags &^= 0x0020
	flags &^= 0x0200
	isConst := flags&0x0400 != 0
	flags &^= 0x0400
	isConstructor := flags&0x0800 != 0
	flags &^= 0x0800
	isDestructor := flags&0x1000 != 0
	flags &^= 0x0100
	if flags != 0 {
		return nil, utils.NewKind(utils.KindInvariantViolation, fmt.Sprintf("function: unknown attribute bits %#04x", flags))
	}

	if _, err := r.ReadTAH(); err != nil {
		return nil, err
	}

	ret, err := readTypeRaw(r, header)
	if err != nil {
		return nil, err
	}

	isSpecialPE := cc != nil && cc.IsSpecialPE()
	retIsVoid := ret.variant.Basic != nil && ret.variant.Basic.Kind == BasicVoid
	var retloc *ArgLoc
	if isSpecialPE && !retIsVoid {
		retloc, err = readArgLoc(r)
		if err != nil {
			return nil, err
		}
	}

	fr := &functionRaw{
		callingConvention: cc,
		ret:               ret,
		retloc:            retloc,
		method:            method,
		isNoret:           isNoret,
		isPure:            isPure,
		isHigh:            isHigh,
		isStatic:          isStatic,
		isVirtual:         isVirtual,
		isConst:           isConst,
		isConstructor:     isConstructor,
		isDestructor:      isDestructor,
	}

	if cc != nil && *cc == CCVoidarg {
		return fr, nil
	}

	n, err := r.ReadDT()
	if err != nil {
		return nil, err
	}
	fr.args = make([]functionArgRaw, 0, n)
	for i := uint16(0); i < n; i++ {
		peek, present, err := r.PeekU8()
		if err != nil {
			return nil, err
		}
		if present && peek == 0xFF {
			if _, err := r.ReadU8(); err != nil {
				return nil, err
			}
			if _, err := r.ReadDE(); err != nil {
				return nil, err
			}
		}
		tinfo, err := readTypeRaw(r, header)
		if err != nil {
			return nil, err
		}
		var argloc *ArgLoc
		if isSpecialPE {
			argloc, err = readArgLoc(r)
			if err != nil {
				return nil, err
			}
		}
		fr.args = append(fr.args, functionArgRaw{ty: tinfo, loc: argloc})
	}
	return fr, nil
}

// readCC decodes the calling-convention byte: the plain case returns it with zero
// flags; the 0xA_-prefixed case loops consuming either a flags-extension
// byte or a spoiled-register run, and the single-extended-byte case
// additionally may read a dt-counted spoiled-register run.
func readCC(r *varint.Reader) (byte, uint16, error) {
	cc, err := r.ReadU8()
	if err != nil {
		return 0, 0, err
	}
	if cc&0xF0 != 0xA0 {
		return cc, 0, nil
	}

	pbyte2, present, err := r.PeekU8()
	if err != nil {
		return 0, 0, err
	}
	if cc&0xF != 0xF || (present && pbyte2&0x80 == 0) {
		var flags uint16
		for {
			if cc&0xF == 0xF {
				byte2, err := r.ReadU8()
				if err != nil {
					return 0, 0, err
				}
				flags |= uint16(byte2&0x1F) << 1
			} else {
				nspoiled := uint16(cc) & 0xF
				flags |= 1
				if err := readCCSpoiled(r, nspoiled); err != nil {
					return 0, 0, err
				}
			}
			cc, err = r.ReadU8()
			if err != nil {
				return 0, 0, err
			}
			if cc&0xF0 != 0xA0 {
				return cc, flags, nil
			}
		}
	}

	byte2, err := r.ReadU8()
	if err != nil {
		return 0, 0, err
	}
	flag, err := r.ReadDE()
	if err != nil {
		return 0, 0, err
	}
	if byte2&1 != 0 {
		nspoiled, err := r.ReadDT()
		if err != nil {
			return 0, 0, err
		}
		if err := readCCSpoiled(r, nspoiled); err != nil {
			return 0, 0, err
		}
	}
	cc2, err := r.ReadU8()
	if err != nil {
		return 0, 0, err
	}
	return cc2, uint16(flag & 0x1E3F), nil
}

func readCCSpoiled(r *varint.Reader, nspoiled uint16) error {
	for i := uint16(0); i < nspoiled; i++ {
		b, err := r.ReadU8()
		if err != nil {
			return err
		}
		if b&0x80 != 0 {
			if b == 0xFF {
				if _, err := r.ReadDT(); err != nil {
					return err
				}
			}
			if _, err := r.ReadU8(); err != nil {
				return err
			}
		} else if b&0xF == 0 {
			return utils.NewKind(utils.KindInvariantViolation, "function: invalid spoiled register value")
		}
	}
	return nil
}

func newFunction(header *SectionHeader, raw *functionRaw, fields *FieldNames) (*Function, error) {
	ret, err := newType(header, raw.ret, fields)
	if err != nil {
		return nil, err
	}

	args := make([]FunctionArg, 0, len(raw.args))
	for _, a := range raw.args {
		name := fields.Next()
		argType, err := newType(header, a.ty, fields)
		if err != nil {
			return nil, err
		}
		args = append(args, FunctionArg{Name: name, Type: &argType, Loc: a.loc})
	}

	return &Function{
		CallingConvention: raw.callingConvention,
		Ret:               &ret,
		Args:              args,
		Retloc:            raw.retloc,
		Method:            raw.method,
		IsNoret:           raw.isNoret,
		IsPure:            raw.isPure,
		IsHigh:            raw.isHigh,
		IsStatic:          raw.isStatic,
		IsVirtual:         raw.isVirtual,
		IsConst:           raw.isConst,
		IsConstructor:     raw.isConstructor,
		IsDestructor:      raw.isDestructor,
	}, nil
}
