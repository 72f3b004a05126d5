// Package records decodes the value bytes of each IDB record family once
// internal/keyschema has resolved the byte-key prefix they live under:
// segments, root info (with its version-dependent idainfo layout),
// functions and their comments, entry points, file regions, reference
// info, and the dir-tree folder structure.
package records

import (
	"github.com/goidb/idb/internal/keyschema"
	"github.com/goidb/idb/internal/utils"
)

// Netnode tag bytes.
const (
	tagArraySup = 'S'
	tagArrayAlt = 'A'
	tagHash     = 'H'
	tagValue    = 'V'
	tagName     = 'N'
	tagLink     = 'L'
)

// Root-node sup indexes and alt indexes used by the accessors below.
const (
	ridxHPath    = 65
	ridxCMacros  = 66
	ridxMD5      = 1302
	ridxIDAVer   = 1303
	ridxSHA256   = 1349
	ridxAltVer   = -1
	ridxAltCtime = -2
	ridxAltElap  = -3
	ridxAltNop   = -4
	ridxAltCrc32 = -5
	ridxAltImage = -6
	ridxAltFsize = -8
)

// commentPrev/commentNext are the sub-key base offsets for pre- and
// post-comment lines: pre comments are 'S' -> 1000..2000, post comments
// are 'S' -> 2000..3000.
const (
	commentPrev = 1000
	commentNext = 2000
)

// supAltKeyUint appends tag then a zero-extended, arch-width big-endian
// alt index to prefix — the key shape behind every RIDX_* sup/alt lookup.
func supAltKeyUint(prefix []byte, tag byte, alt uint32, is64 bool) []byte {
	return appendWidth(append(append([]byte{}, prefix...), tag), uint64(alt), is64)
}

// supAltKeySigned is supAltKeyUint for a negative RIDX_ALT_* index,
// sign-extended to the arch width before the big-endian encode (mirrors
// Rust's `<K::Isize as From<i32>>::from(value).as_()`).
func supAltKeySigned(prefix []byte, tag byte, alt int32, is64 bool) []byte {
	return appendWidth(append(append([]byte{}, prefix...), tag), uint64(int64(alt)), is64)
}

func appendWidth(key []byte, v uint64, is64 bool) []byte {
	if is64 {
		var b [8]byte
		for i := 0; i < 8; i++ {
			b[i] = byte(v >> (56 - 8*i))
		}
		return append(key, b[:]...)
	}
	var b [4]byte
	v32 := uint32(v)
	for i := 0; i < 4; i++ {
		b[i] = byte(v32 >> (24 - 8*i))
	}
	return append(key, b[:]...)
}

func keyValue(store *keyschema.Store, key []byte) ([]byte, bool) {
	entry, ok := store.Get(key)
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

func wrapTruncated(context string) error {
	return utils.NewKind(utils.KindTruncatedInput, context)
}

func wrapInvariant(context string) error {
	return utils.NewKind(utils.KindInvariantViolation, context)
}
