package resultbuf

import (
	"encoding/binary"

	"github.com/h2gis/h2gis-go/errors"
)

// The native library emits geometry as PostGIS-style EWKB: the WKB
// geometry-type word carries a flag bit and a 4-byte SRID follows it.
// Standard consumers expect plain WKB, so the decoder strips the SRID
// and clears the flag, preserving the blob's own byte order.
const ewkbSRIDFlag = 0x20000000

const (
	wkbBigEndian    = 0
	wkbLittleEndian = 1
)

// NormalizeWKB converts an EWKB blob to standard WKB, returning the
// normalized blob and the embedded SRID. Blobs without the SRID flag are
// returned unchanged with SRID 0. The returned slice aliases the input
// when no rewrite is needed.
func NormalizeWKB(blob []byte) ([]byte, int32, error) {
	if len(blob) < 5 {
		return nil, 0, errors.InvalidData("geometry blob shorter than WKB header")
	}

	order := blob[0]
	var bo binary.ByteOrder
	switch order {
	case wkbLittleEndian:
		bo = binary.LittleEndian
	case wkbBigEndian:
		bo = binary.BigEndian
	default:
		return nil, 0, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Detail("unknown WKB byte order marker 0x%02x", order).
			Build()
	}

	geomType := bo.Uint32(blob[1:5])
	if geomType&ewkbSRIDFlag == 0 {
		return blob, 0, nil
	}

	if len(blob) < 9 {
		return nil, 0, errors.InvalidData("EWKB blob truncated before SRID")
	}
	srid := int32(bo.Uint32(blob[5:9]))

	// Rebuild as [order][type without flag][payload], dropping the 4 SRID
	// bytes. The type word is rewritten in the blob's own byte order.
	out := make([]byte, len(blob)-4)
	out[0] = order
	bo.PutUint32(out[1:5], geomType&^ewkbSRIDFlag)
	copy(out[5:], blob[9:])

	return out, srid, nil
}
