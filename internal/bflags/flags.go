// Package bflags decodes the packed per-byte flag word carried by the ID1
// and ID2 sections: byte type (code/data/tail/unknown), per-operand
// representation hints, and the handful of common-state bits
// (comment/reference/name presence) shared across all four byte types.
package bflags

// Low 8 bits hold the byte's value; the next bit marks it initialized.
const (
	MaskValue byte = 0xFF // byte value mask, applied after shifting out of u32

	flagHasValue uint32 = 0x00000100
	maskValue    uint32 = 0x000000FF
)

// byte_type: which of the four states this byte is in.
const (
	maskClass uint32 = 0x00000600
	classCode uint32 = 0x00000600
	classData uint32 = 0x00000400
	classTail uint32 = 0x00000200
	classUnk  uint32 = 0x00000000
)

// byte_info: state common to all four byte types, preserved across state
// transitions.
const (
	flagComment       uint32 = 0x00000800
	flagReference     uint32 = 0x00001000
	flagExtraComments uint32 = 0x00002000
	flagHasName       uint32 = 0x00004000
	flagDummyName     uint32 = 0x00008000
	flagFlowFromPrev  uint32 = 0x00010000
	flagInvertedSign  uint32 = 0x00020000
	flagBitwiseNegate uint32 = 0x00040000
	flagUnusedBit     uint32 = 0x00080000
)

// inst_info: per-operand representation hint, 4 bits each, up to 8 operands.
const (
	maskOperandType byte = 0xF

	opVoid  byte = 0x0
	opHex   byte = 0x1
	opDec   byte = 0x2
	opChar  byte = 0x3
	opSeg   byte = 0x4
	opOff   byte = 0x5
	opBin   byte = 0x6
	opOct   byte = 0x7
	opEnum  byte = 0x8
	opFOp   byte = 0x9
	opStrO  byte = 0xA
	opStk   byte = 0xB
	opFlt   byte = 0xC
	opCust  byte = 0xD
)

// data_info: the data type of a FF_DATA byte, top 4 bits of the word.
const (
	maskDataType uint32 = 0xF0000000

	dataByte     uint32 = 0x00000000
	dataWord     uint32 = 0x10000000
	dataDword    uint32 = 0x20000000
	dataQword    uint32 = 0x30000000
	dataTbyte    uint32 = 0x40000000
	dataStrlit   uint32 = 0x50000000
	dataStruct   uint32 = 0x60000000
	dataOword    uint32 = 0x70000000
	dataFloat    uint32 = 0x80000000
	dataDouble   uint32 = 0x90000000
	dataPackreal uint32 = 0xA0000000
	dataAlign    uint32 = 0xB0000000
	dataReserved uint32 = 0xC0000000
	dataCustom   uint32 = 0xD0000000
	dataYword    uint32 = 0xE0000000
	dataZword    uint32 = 0xF0000000
)

// code_info: top 4 bits of a FF_CODE byte.
const (
	flagFuncStart    uint32 = 0x10000000
	flagFuncReserved uint32 = 0x20000000
	flagImmediate    uint32 = 0x40000000
	flagHasJumpTable uint32 = 0x80000000
)
