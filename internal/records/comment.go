package records

import "github.com/goidb/idb/internal/keyschema"

// CommentAt returns the regular (non-repeatable) comment at netnode, if
// any (sup-array index 0).
func CommentAt(store *keyschema.Store, netnodePrefix []byte) ([]byte, bool) {
	return commentSup(store, netnodePrefix, 0)
}

// CommentRepeatableAt returns the repeatable comment at netnode, if any
// (sup-array index 1).
func CommentRepeatableAt(store *keyschema.Store, netnodePrefix []byte) ([]byte, bool) {
	return commentSup(store, netnodePrefix, 1)
}

func commentSup(store *keyschema.Store, netnodePrefix []byte, alt uint32) ([]byte, bool) {
	key := supAltKeyUint(netnodePrefix, tagArraySup, alt, store.Is64())
	raw, ok := keyValue(store, key)
	if !ok {
		return nil, false
	}
	return stripNulTerm(raw), true
}

// CommentPreAt returns every anterior (pre-) comment line recorded at
// netnode, in line order (sup-array indexes 1000..2000, contiguous from
// commentPrev and capped defensively at 1000 lines even though nothing
// on disk enforces that bound).
func CommentPreAt(store *keyschema.Store, netnodePrefix []byte) [][]byte {
	return commentContinuous(store, netnodePrefix, commentPrev)
}

// CommentPostAt returns every posterior (post-) comment line recorded at
// netnode, in line order (sup-array indexes 2000..3000).
func CommentPostAt(store *keyschema.Store, netnodePrefix []byte) [][]byte {
	return commentContinuous(store, netnodePrefix, commentNext)
}

func commentContinuous(store *keyschema.Store, netnodePrefix []byte, base uint32) [][]byte {
	const maxLines = 1000
	var out [][]byte
	for i := uint32(0); i < maxLines; i++ {
		key := supAltKeyUint(netnodePrefix, tagArraySup, base+i, store.Is64())
		raw, ok := keyValue(store, key)
		if !ok {
			break
		}
		out = append(out, stripNulTerm(raw))
	}
	return out
}
