package til

import (
	"github.com/goidb/idb/internal/utils"
	"github.com/goidb/idb/internal/varint"
)

// Bitfield is width + container-byte-size + unsigned flag.
type Bitfield struct {
	Unsigned bool
	Width    uint16
	Nbytes   uint8
}

// readBitfield decodes one bitfield type: the container size comes from
// the metadata byte's sub-flags; width/unsigned come from a DT read
// (width = dt>>1, unsigned = dt&1); an optional TAH block follows whose
// contents this decoder does not interpret further.
func readBitfield(r *varint.Reader, typeFlags byte) (*Bitfield, error) {
	var nbytes uint8
	switch typeFlags {
	case btmtBfldi8:
		nbytes = 1
	case btmtBfldi16:
		nbytes = 2
	case btmtBfldi32:
		nbytes = 4
	case btmtBfldi64:
		nbytes = 8
	default:
		return nil, utils.NewKind(utils.KindInvariantViolation, "bitfield: unreachable container-size sub-flag")
	}

	dt, err := r.ReadDT()
	if err != nil {
		return nil, err
	}
	width := dt >> 1
	unsigned := dt&1 != 0

	if _, err := r.ReadTAH(); err != nil {
		return nil, err
	}

	return &Bitfield{Unsigned: unsigned, Width: width, Nbytes: nbytes}, nil
}
