package til

import (
	"bytes"
	"testing"

	"github.com/goidb/idb/internal/varint"
	"github.com/stretchr/testify/require"
)

func TestReadPointerRawDefaultToChar(t *testing.T) {
	// No TAH (the pointee's own metadata byte, 0x32, isn't 0xFE so TAH reads absent).
	data := []byte{btInt8 | btmtChar}
	r := varint.NewReader(bytes.NewReader(data), false)
	raw, err := readPointerRaw(r, &SectionHeader{}, btmtDefptr)
	require.NoError(t, err)
	require.Equal(t, PointerDefault, raw.closure.kind)
	require.EqualValues(t, 0, raw.modifierBits)
	require.Nil(t, raw.shifted)
	require.Equal(t, BasicChar, raw.typ.variant.Basic.Kind)
}

func TestReadPointerRawBasedSize(t *testing.T) {
	data := []byte{0x04, btInt8 | btmtChar}
	r := varint.NewReader(bytes.NewReader(data), false)
	raw, err := readPointerRaw(r, &SectionHeader{}, btmtClosure)
	require.NoError(t, err)
	require.Equal(t, PointerBased, raw.closure.kind)
	require.EqualValues(t, 4, raw.closure.basedSize)
}

func TestReadPointerRawPtr32Modifier(t *testing.T) {
	// 0xFE marker + one continuation byte 0x20 (taptrPtr32, top bit clear, ends the run).
	data := []byte{0xFE, 0x20, btInt8 | btmtChar}
	r := varint.NewReader(bytes.NewReader(data), false)
	raw, err := readPointerRaw(r, &SectionHeader{}, btmtDefptr)
	require.NoError(t, err)
	require.EqualValues(t, taptrPtr32, raw.modifierBits)

	ptr, err := newPointer(&SectionHeader{}, raw, NewFieldNames(nil))
	require.NoError(t, err)
	require.Equal(t, PointerModifierPtr32, ptr.Modifier)
	require.Nil(t, ptr.Shifted)
}

func TestNewPointerClosureOverFunction(t *testing.T) {
	// 0xFF sentinel selects a closure-over-function-type; the nested type
	// here is a minimal voidarg function returning void.
	data := []byte{0xFF, btFunc | btmtDefcall, cmCCVoidarg, btVoid, btInt8 | btmtChar}
	r := varint.NewReader(bytes.NewReader(data), false)
	raw, err := readPointerRaw(r, &SectionHeader{}, btmtClosure)
	require.NoError(t, err)
	require.Equal(t, PointerClosureOverType, raw.closure.kind)
	require.NotNil(t, raw.closure.closureType)

	ptr, err := newPointer(&SectionHeader{}, raw, NewFieldNames(nil))
	require.NoError(t, err)
	require.NotNil(t, ptr.Closure.Closure)
	require.NotNil(t, ptr.Closure.Closure.Variant.Function)
}
