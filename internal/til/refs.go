// Outgoing type-reference collection for a per-address typeinfo facade,
// walking the same Variant-switch recursion shape sizeof.go's
// innerSizeOf uses, applied to collecting Typedef leaves instead of
// sizes.
package til

// OutgoingTypeRefs returns every Typedef a type's graph names, in the
// order encountered by a depth-first walk. A typedef is itself a leaf:
// its own target is not chased here, since resolving one requires the
// owning Section (see Solver.resolveTypedef) and the facade already
// holds that context once this list is returned.
func OutgoingTypeRefs(t *Type) []Typedef {
	var out []Typedef
	collectTypeRefs(t, &out)
	return out
}

func collectTypeRefs(t *Type, out *[]Typedef) {
	if t == nil {
		return
	}
	v := &t.Variant
	switch {
	case v.Typedef != nil:
		*out = append(*out, *v.Typedef)

	case v.Pointer != nil:
		collectTypeRefs(v.Pointer.Typ, out)
		if v.Pointer.Shifted != nil {
			collectTypeRefs(v.Pointer.Shifted.Parent, out)
		}

	case v.Array != nil:
		collectTypeRefs(v.Array.ElemType, out)

	case v.Function != nil:
		collectTypeRefs(v.Function.Ret, out)
		for _, arg := range v.Function.Args {
			collectTypeRefs(arg.Type, out)
		}

	case v.Struct != nil:
		if v.Struct.Ref != nil {
			collectTypeRefs(v.Struct.Ref.RefType, out)
			return
		}
		for _, m := range v.Struct.NonRef.Members {
			collectTypeRefs(m.MemberType, out)
		}

	case v.Union != nil:
		if v.Union.Ref != nil {
			collectTypeRefs(v.Union.Ref.RefType, out)
			return
		}
		for _, m := range v.Union.NonRef.Members {
			collectTypeRefs(m.MemberType, out)
		}

	case v.Enum != nil:
		if v.Enum.Ref != nil {
			*out = append(*out, *v.Enum.Ref.RefType)
		}
	}
}
