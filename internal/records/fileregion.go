package records

import (
	"github.com/goidb/idb/internal/arch"
	"github.com/goidb/idb/internal/keyschema"
)

// FileRegion is one "$ fileregions" array-sup entry: the start address
// is recovered from the entry's sub-key, but the value's concrete
// layout (end address, rva, and how both are split across IDA's pre-
// and post-7.0 on-disk forms) could not be pinned down with confidence.
// Rather than invent a byte layout, Start and the version this record
// was decoded under are exposed, and Raw carries the undecoded value
// for a caller that knows the true layout to parse further.
type FileRegion[K arch.Kind] struct {
	Start   K
	Version uint16
	Raw     []byte
}

// FileRegions decodes every "$ fileregions" entry's address key, in
// on-disk order.
func FileRegions[K arch.Kind](store *keyschema.Store, version uint16) ([]FileRegion[K], error) {
	prefix, ok := store.NetnodeByName("$ fileregions")
	if !ok {
		return nil, nil
	}
	entries := store.SubValues(append(append([]byte{}, prefix...), tagArraySup))
	out := make([]FileRegion[K], 0, len(entries))
	for _, e := range entries {
		key := e.Key[len(prefix)+1:]
		n, ok := keyschema.ParseNumber(key, false, store.Is64())
		if !ok {
			return nil, wrapTruncated("decode $ fileregions key")
		}
		out = append(out, FileRegion[K]{Start: K(n), Version: version, Raw: e.Value})
	}
	return out, nil
}
