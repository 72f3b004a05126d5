package records

import "github.com/goidb/idb/internal/arch"

// Netdelta is the wrap-around offset between an address and the netnode
// id ID0 stores its address-indexed records under: netnode = ea +
// netdelta. It is the negated image base, recovered once from root info
// and threaded through every address-keyed accessor.
type Netdelta[K arch.Kind] K

// NetdeltaFromImageBase builds a Netdelta from a database's image base
// (root info's RIDX_ALT_IMAGEBASE, or 0 if absent).
func NetdeltaFromImageBase[K arch.Kind](imageBase K) Netdelta[K] {
	return Netdelta[K](arch.Sub(K(0), imageBase))
}

// EaToNode converts an address to the netnode id its ID0 records live
// under.
func (d Netdelta[K]) EaToNode(ea K) K {
	return arch.Add(ea, K(d))
}

// NodeToEa is the inverse of EaToNode.
func (d Netdelta[K]) NodeToEa(node K) K {
	return arch.Sub(node, K(d))
}
