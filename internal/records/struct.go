package records

import (
	"bytes"

	"github.com/goidb/idb/internal/arch"
	"github.com/goidb/idb/internal/keyschema"
)

// structNamePrefix is the legacy "$$ " marker IDA prefixes struct-type
// netnode names with; older databases omit it.
var structNamePrefix = []byte("$$ ")

// StructAt resolves the name recorded under a struct-type netnode's own
// NAME_TAG entry (SubtypeId is just a netnode id viewed through the TIL
// ordinal/struct-member lookup path).
func StructAt[K arch.Kind](store *keyschema.Store, subtypeID K) ([]byte, bool) {
	key := append(netnodeKeyPrefix(subtypeID), tagName)
	entry, ok := store.Get(key)
	if !ok {
		return nil, false
	}
	return bytes.TrimPrefix(entry.Value, structNamePrefix), true
}
