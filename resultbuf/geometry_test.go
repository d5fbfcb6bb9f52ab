package resultbuf

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/paulmach/orb"
)

// ewkbPointLE builds a little-endian EWKB point with an embedded SRID.
func ewkbPointLE(srid uint32, x, y float64) []byte {
	var b []byte
	b = append(b, 1) // little endian
	b = binary.LittleEndian.AppendUint32(b, 0x20000001)
	b = binary.LittleEndian.AppendUint32(b, srid)
	b = binary.LittleEndian.AppendUint64(b, math.Float64bits(x))
	b = binary.LittleEndian.AppendUint64(b, math.Float64bits(y))
	return b
}

func TestNormalizeEWKBPoint(t *testing.T) {
	in := ewkbPointLE(4326, 1.0, 2.0)

	out, srid, err := NormalizeWKB(in)
	if err != nil {
		t.Fatalf("NormalizeWKB: %v", err)
	}
	if srid != 4326 {
		t.Errorf("srid = %d, want 4326", srid)
	}
	if len(out) != len(in)-4 {
		t.Errorf("len = %d, want %d", len(out), len(in)-4)
	}
	if out[0] != 1 {
		t.Error("byte order marker not preserved")
	}
	if typ := binary.LittleEndian.Uint32(out[1:5]); typ != 0x00000001 {
		t.Errorf("type word = 0x%08x, want 0x00000001", typ)
	}
	if x := math.Float64frombits(binary.LittleEndian.Uint64(out[5:13])); x != 1.0 {
		t.Errorf("x = %v", x)
	}
	if y := math.Float64frombits(binary.LittleEndian.Uint64(out[13:21])); y != 2.0 {
		t.Errorf("y = %v", y)
	}
}

func TestNormalizeBigEndianEWKB(t *testing.T) {
	var in []byte
	in = append(in, 0) // big endian
	in = binary.BigEndian.AppendUint32(in, 0x20000001)
	in = binary.BigEndian.AppendUint32(in, 27572)
	in = binary.BigEndian.AppendUint64(in, math.Float64bits(3.0))
	in = binary.BigEndian.AppendUint64(in, math.Float64bits(4.0))

	out, srid, err := NormalizeWKB(in)
	if err != nil {
		t.Fatalf("NormalizeWKB: %v", err)
	}
	if srid != 27572 {
		t.Errorf("srid = %d, want 27572", srid)
	}
	if out[0] != 0 {
		t.Error("byte order marker not preserved")
	}
	// Flag must be cleared in the blob's own byte order.
	if typ := binary.BigEndian.Uint32(out[1:5]); typ != 0x00000001 {
		t.Errorf("type word = 0x%08x, want 0x00000001", typ)
	}
}

func TestNormalizePlainWKBPassthrough(t *testing.T) {
	var in []byte
	in = append(in, 1)
	in = binary.LittleEndian.AppendUint32(in, 1)
	in = binary.LittleEndian.AppendUint64(in, math.Float64bits(5.0))
	in = binary.LittleEndian.AppendUint64(in, math.Float64bits(6.0))

	out, srid, err := NormalizeWKB(in)
	if err != nil {
		t.Fatalf("NormalizeWKB: %v", err)
	}
	if srid != 0 {
		t.Errorf("srid = %d, want 0", srid)
	}
	if !bytes.Equal(out, in) {
		t.Error("plain WKB must pass through unchanged")
	}
}

func TestNormalizeRejectsShortBlob(t *testing.T) {
	if _, _, err := NormalizeWKB([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated blob")
	}
	// Flag set but SRID missing.
	var in []byte
	in = append(in, 1)
	in = binary.LittleEndian.AppendUint32(in, 0x20000001)
	if _, _, err := NormalizeWKB(in); err == nil {
		t.Fatal("expected error for EWKB truncated before SRID")
	}
}

func TestGeometryColumnDecode(t *testing.T) {
	enc := NewEncoder()
	col := enc.AddColumn("the_geom", TypeGeometry)
	enc.AppendBytes(col, ewkbPointLE(4326, 1.0, 2.0))
	enc.SetRows(1)

	buf, err := Decode(enc.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	row, err := buf.Next()
	if err != nil || row == nil {
		t.Fatalf("Next: (%v, %v)", row, err)
	}

	wkbBytes, srid := row[0].WKB()
	if srid != 4326 {
		t.Errorf("srid = %d", srid)
	}
	if len(wkbBytes) != 21 {
		t.Errorf("wkb len = %d, want 21", len(wkbBytes))
	}

	geom, err := row[0].Geometry()
	if err != nil {
		t.Fatalf("Geometry: %v", err)
	}
	pt, ok := geom.(orb.Point)
	if !ok {
		t.Fatalf("geometry type %T, want orb.Point", geom)
	}
	if pt.X() != 1.0 || pt.Y() != 2.0 {
		t.Errorf("point = %v", pt)
	}
}
