package resultbuf

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/h2gis/h2gis-go/errors"
)

// Value is one decoded cell. The zero Value is null.
type Value struct {
	typ  Type
	null bool
	i    int64
	f    float64
	b    bool
	s    string
	blob []byte
	srid int32
}

func (v Value) Type() Type   { return v.typ }
func (v Value) IsNull() bool { return v.null }

// Int32 returns the cell as int32. Valid for TypeInt.
func (v Value) Int32() int32 { return int32(v.i) }

// Int64 returns the cell as int64. Valid for TypeInt and TypeLong.
func (v Value) Int64() int64 { return v.i }

// Float64 returns the cell as float64. Valid for TypeFloat and TypeDouble.
func (v Value) Float64() float64 { return v.f }

func (v Value) Bool() bool { return v.b }

// Text returns the cell as a string. Valid for TypeString and TypeDate.
func (v Value) Text() string { return v.s }

// WKB returns the normalized well-known-binary blob of a geometry cell
// together with the SRID stripped from its EWKB envelope (0 when the
// source carried none).
func (v Value) WKB() ([]byte, int32) { return v.blob, v.srid }

// Geometry parses the geometry cell into an orb.Geometry.
func (v Value) Geometry() (orb.Geometry, error) {
	if v.typ != TypeGeometry || v.null {
		return nil, errors.InvalidData("value is not a geometry")
	}
	return wkb.Unmarshal(v.blob)
}

// Any returns the cell as a generic Go value: int32, int64, float64,
// bool, string, []byte (geometry WKB) or nil.
func (v Value) Any() any {
	if v.null {
		return nil
	}
	switch v.typ {
	case TypeInt:
		return int32(v.i)
	case TypeLong:
		return v.i
	case TypeFloat, TypeDouble:
		return v.f
	case TypeBool:
		return v.b
	case TypeString, TypeDate:
		return v.s
	case TypeGeometry:
		return v.blob
	}
	return nil
}

func (v Value) String() string {
	if v.null {
		return "NULL"
	}
	if v.typ == TypeGeometry {
		return fmt.Sprintf("geometry(%d bytes, srid=%d)", len(v.blob), v.srid)
	}
	return fmt.Sprint(v.Any())
}
