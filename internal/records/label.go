package records

import (
	"github.com/goidb/idb/internal/arch"
	"github.com/goidb/idb/internal/keyschema"
)

// LabelAt resolves an address's display label the way callers building a
// per-address summary need to: the address netnode's own inline 'N' tag
// value first, falling back to the name recorded against it in "$ entry
// points" when no inline name was ever set. netnodePrefix is the
// address's netnode key prefix (Netdelta.EaToNode(address), then
// Store.AddressKey) — the caller already has it from resolving byte
// info, so it isn't recomputed here.
func LabelAt[K arch.Kind](store *keyschema.Store, netnodePrefix []byte, address K) (string, bool) {
	key := append(append([]byte{}, netnodePrefix...), tagName)
	if raw, ok := keyValue(store, key); ok {
		return string(stripNulTerm(raw)), true
	}

	entries, err := EntryPoints[K](store)
	if err != nil {
		return "", false
	}
	for _, ep := range entries {
		if ep.Address == address && ep.Name != "" {
			return ep.Name, true
		}
	}
	return "", false
}

// typeinfoBase is the sup-array base index IDA stashes an address's
// struct TIL blob under.
const typeinfoBase = 0x3000

// TypeInfoAt reads the raw TIL type blob recorded at address, if any,
// concatenating continuation blobs the same way comment_pre_at/
// comment_post_at's own multi-line runs do (commentContinuous): a blob
// too long for one sup-array row continues at consecutive indexes above
// typeinfoBase.
func TypeInfoAt(store *keyschema.Store, netnodePrefix []byte) ([]byte, bool) {
	first, ok := commentSup(store, netnodePrefix, typeinfoBase)
	if !ok {
		return nil, false
	}
	out := append([]byte{}, first...)
	for i := uint32(1); ; i++ {
		next, ok := commentSup(store, netnodePrefix, typeinfoBase+i)
		if !ok {
			break
		}
		out = append(out, next...)
	}
	return out, true
}
