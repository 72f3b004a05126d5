package til

import (
	"bytes"
	"testing"

	"github.com/goidb/idb/internal/varint"
	"github.com/stretchr/testify/require"
)

func TestReadFunctionRawVoidargNoArgs(t *testing.T) {
	data := []byte{cmCCVoidarg, btVoid}
	r := varint.NewReader(bytes.NewReader(data), false)
	raw, err := readFunctionRaw(r, &SectionHeader{}, btmtDefcall)
	require.NoError(t, err)
	require.NotNil(t, raw.callingConvention)
	require.Equal(t, CCVoidarg, *raw.callingConvention)
	require.Equal(t, BasicVoid, raw.ret.variant.Basic.Kind)
	require.Nil(t, raw.retloc)
	require.Empty(t, raw.args)
}

func TestReadFunctionRawCdeclOneArg(t *testing.T) {
	data := []byte{cmCCCdecl, btInt32 | btmtSigned, 0x02, btInt8 | btmtChar}
	r := varint.NewReader(bytes.NewReader(data), false)
	raw, err := readFunctionRaw(r, &SectionHeader{}, btmtDefcall)
	require.NoError(t, err)
	require.Equal(t, CCCdecl, *raw.callingConvention)
	require.Equal(t, BasicIntSized, raw.ret.variant.Basic.Kind)
	require.Len(t, raw.args, 1)
	require.Equal(t, BasicChar, raw.args[0].ty.variant.Basic.Kind)
	require.Nil(t, raw.args[0].loc)

	fields := NewFieldNames([][]byte{[]byte("x")})
	fn, err := newFunction(&SectionHeader{}, raw, fields)
	require.NoError(t, err)
	require.Len(t, fn.Args, 1)
	require.Equal(t, "x", fn.Args[0].Name)
}

func TestCallingConventionIsSpecialPE(t *testing.T) {
	require.True(t, CCUsercall.IsSpecialPE())
	require.True(t, CCUserpurge.IsSpecialPE())
	require.True(t, CCUservars.IsSpecialPE())
	require.False(t, CCCdecl.IsSpecialPE())
}

func TestCCPtrSizeFromCMRaw(t *testing.T) {
	v, ok := ccPtrSizeFromCMRaw(cmN16F32, 4)
	require.True(t, ok)
	require.EqualValues(t, 2, v.NearBytes())
	require.EqualValues(t, 4, v.FarBytes())

	_, ok = ccPtrSizeFromCMRaw(cmUnknown, 4)
	require.False(t, ok)
}

func TestReadArgLocCompactReg1(t *testing.T) {
	r := varint.NewReader(bytes.NewReader([]byte{0x05}), false)
	loc, err := readArgLoc(r)
	require.NoError(t, err)
	require.Equal(t, ArgLocKindReg1, loc.Kind)
	require.EqualValues(t, 4, loc.Reg1)
}

func TestReadArgLocCompactStack(t *testing.T) {
	r := varint.NewReader(bytes.NewReader([]byte{0x00}), false)
	loc, err := readArgLoc(r)
	require.NoError(t, err)
	require.Equal(t, ArgLocKindStack, loc.Kind)
	require.EqualValues(t, 0, loc.Stack)
}

func TestReadArgLocExtendedStack(t *testing.T) {
	// 0xFF sentinel, dt(typ) with low nibble alocStack(1) -> byte 0x02; de(0x2A).
	data := []byte{0xFF, 0x02, 0x2A}
	r := varint.NewReader(bytes.NewReader(data), false)
	loc, err := readArgLoc(r)
	require.NoError(t, err)
	require.Equal(t, ArgLocKindStack, loc.Kind)
	require.EqualValues(t, 0x2A, loc.Stack)
}
