// Package til decodes the recursive TIL type grammar: the metadata-byte
// dispatch at the root of every type, each concrete kind's own fields,
// and the bucket/section framing that holds a TIL's (ordinal, name,
// type) triples.
package til

// Metadata-byte masks (tf_mask).
const (
	typeBaseMask  = 0x0F
	typeFlagsMask = 0x30
	typeModifMask = 0xC0
)

// Modifier bits, bits 6-7 of the metadata byte (tf_modifiers).
const (
	btmConst    = 0x40
	btmVolatile = 0x80
)

// Base kinds, low 4 bits of the metadata byte.
const (
	btUnk      = 0x00
	btVoid     = 0x01
	btInt8     = 0x02
	btInt16    = 0x03
	btInt32    = 0x04
	btInt64    = 0x05
	btInt128   = 0x06
	btInt      = 0x07
	btBool     = 0x08
	btFloat    = 0x09
	btLastBasic = btFloat
	btPtr      = 0x0A
	btArray    = 0x0B
	btFunc     = 0x0C
	btComplex  = 0x0D
	btBitfield = 0x0E
	btReserved = 0x0F
)

// tf_unk: BT_UNK/BT_VOID size sub-flags.
const (
	btmtSize0   = 0x00
	btmtSize12  = 0x10
	btmtSize48  = 0x20
	btmtSize128 = 0x30
)

// tf_int: signedness/char sub-flags.
const (
	btmtUnksign = 0x00
	btmtSigned  = 0x10
	btmtUnsigned = 0x20
	btmtChar    = 0x30
)

// tf_bool: bool-size sub-flags.
const (
	btmtDefbool = 0x00
	btmtBool1   = 0x10
	btmtBool2   = 0x20
	btmtBool8   = 0x20
	btmtBool4   = 0x30
)

// tf_float: float-size sub-flags.
const (
	btmtFloat   = 0x00
	btmtDouble  = 0x10
	btmtLngdbl  = 0x20
	btmtSpecflt = 0x30
)

// tf_ptr: pointer closure sub-flags.
const (
	btmtDefptr  = 0x00
	btmtNear    = 0x10
	btmtFar     = 0x20
	btmtClosure = 0x30
)

// tf_array sub-flags.
const btmtNonbased = 0x10

// tf_func: call-method sub-flags.
const (
	btmtDefcall  = 0x00
	btmtNearcall = 0x10
	btmtFarcall  = 0x20
	btmtIntcall  = 0x30
)

// tf_func: function attribute bits.
const (
	bfaNoret   = 0x01
	bfaPure    = 0x02
	bfaHigh    = 0x04
	bfaStatic  = 0x08
	bfaVirtual = 0x10

	bfaFuncMarker    = 0x0F
	bfaFuncExtFormat = 0x80
)

// tf_func::argloc.
const (
	alocNone   = 0
	alocStack  = 1
	alocDist   = 2
	alocReg1   = 3
	alocReg2   = 4
	alocRrel   = 5
	alocStatic = 6
	alocCustom = 7
)

// tf_complex sub-flags.
const (
	btmtStruct  = 0x00
	btmtUnion   = 0x10
	btmtEnum    = 0x20
	btmtTypedef = 0x30
)

// tf_complex::BT_BITFIELD container-size sub-flags.
const (
	btmtBfldi8  = 0x00
	btmtBfldi16 = 0x10
	btmtBfldi32 = 0x20
	btmtBfldi64 = 0x30
)

// tattr: type-attribute header bytes.
const (
	tahByte = 0xFE
	fahByte = 0xFF

	maxDeclAlign = 0x000F
)

const tahHasAttrs = 0x0010

// tattr_udt: struct/union attribute bits.
const (
	taudtMsstruct = 0x0020
	taudtCppObj   = 0x0080
	taudtUnaligned = 0x0040
	taudtVftable  = 0x0100

	taudtAlignMask = 0x7
)

// tattr_field: struct/union member attribute bits.
const (
	tafldBaseclass = 0x0020
	tafldUnaligned = 0x0040
	tafldVirtbase  = 0x0080
	tafldVftable   = 0x0100
	tafldMethod    = 0x0200
)

// tattr_ptr: pointer attribute bits.
const (
	taptrPtr32    = 0x0020
	taptrPtr64    = 0x0040
	taptrRestrict = 0x0060
	taptrShifted  = 0x0080
)

// tattr_enum: enum attribute bits. TAENUM_OCT/BIN/NUMSIGN/LZERO are
// never actually defined on disk — only these three bits exist.
const (
	taenum64bit   = 0x0020
	taenumUnsigned = 0x0040
	taenumSigned  = 0x0080
)

// tf_enum: enum storage-byte (bte) bits.
const (
	bteSizeMask = 0x07
	bteReserved = 0x08
	bteBitfield = 0x10
	bteOutMask  = 0x60
	bteHex      = 0x00
	bteChar     = 0x20
	bteSdec     = 0x40
	bteUdec     = 0x60
	bteAlways   = 0x80
)

// til: TIL section property bits (section.go's SectionFlag).
const (
	tilZip = 0x0001
	tilMac = 0x0002
	tilESI = 0x0004
	tilUni = 0x0008
	tilOrd = 0x0010
	tilAli = 0x0020
	tilMod = 0x0040
	tilStm = 0x0080
	tilSLD = 0x0100
)

// cm: calling-convention/model byte (function.go).
const (
	cmPtrMask = 0x03
	cmUnknown = 0x00
	cmN8F16   = 0x01
	cmN64     = 0x01
	cmN16F32  = 0x02
	cmN32F48  = 0x03

	cmMMask = 0x0C
	cmMNN   = 0x00
	cmMFF   = 0x04
	cmMNF   = 0x08
	cmMFN   = 0x0C

	cmCCMask     = 0xF0
	cmCCInvalid  = 0x00
	cmCCUnknown  = 0x10
	cmCCVoidarg  = 0x20
	cmCCCdecl    = 0x30
	cmCCEllipsis = 0x40
	cmCCStdcall  = 0x50
	cmCCPascal   = 0x60
	cmCCFastcall = 0x70
	cmCCThiscall = 0x80
	cmCCSwift    = 0x90
	cmCCSpoiled  = 0xA0
	cmCCGolang   = 0xB0
	cmCCReserve3 = 0xC0
	cmCCSpeciale = 0xD0
	cmCCSpecialp = 0xE0
	cmCCSpecial  = 0xF0
)
