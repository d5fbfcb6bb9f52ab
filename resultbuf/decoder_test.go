package resultbuf

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestRoundTripInt32(t *testing.T) {
	enc := NewEncoder()
	col := enc.AddColumn("id", TypeInt)
	for _, v := range []int32{1, -1, 2147483647} {
		enc.AppendInt32(col, v)
	}
	enc.SetRows(3)

	buf, err := Decode(enc.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if buf.Rows() != 3 {
		t.Fatalf("Rows() = %d, want 3", buf.Rows())
	}
	cols := buf.Columns()
	if len(cols) != 1 || cols[0].Name != "id" || cols[0].Type != TypeInt {
		t.Fatalf("unexpected columns %+v", cols)
	}

	want := []int32{1, -1, 2147483647}
	for i, w := range want {
		row, err := buf.Next()
		if err != nil {
			t.Fatalf("row %d: %v", i, err)
		}
		if row == nil {
			t.Fatalf("row %d: premature end", i)
		}
		if got := row[0].Int32(); got != w {
			t.Errorf("row %d = %d, want %d", i, got, w)
		}
	}
	if row, _ := buf.Next(); row != nil {
		t.Error("expected nil after last row")
	}
}

func TestZeroRowBuffer(t *testing.T) {
	enc := NewEncoder()
	enc.AddColumn("name", TypeString)
	enc.AddColumn("the_geom", TypeGeometry)
	enc.SetRows(0)

	buf, err := Decode(enc.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if buf.Rows() != 0 {
		t.Fatalf("Rows() = %d, want 0", buf.Rows())
	}
	// Schema is still available: get_column_types ships zero-row buffers.
	cols := buf.Columns()
	if len(cols) != 2 || cols[0].Type != TypeString || cols[1].Type != TypeGeometry {
		t.Fatalf("unexpected columns %+v", cols)
	}
	if row, err := buf.Next(); row != nil || err != nil {
		t.Fatalf("Next on empty buffer = (%v, %v), want (nil, nil)", row, err)
	}
}

func TestEmptyInput(t *testing.T) {
	buf, err := Decode(nil)
	if err != nil {
		t.Fatalf("Decode(nil): %v", err)
	}
	if buf.Rows() != 0 || len(buf.Columns()) != 0 {
		t.Fatal("expected empty buffer")
	}
}

func TestMixedColumns(t *testing.T) {
	enc := NewEncoder()
	id := enc.AddColumn("id", TypeLong)
	name := enc.AddColumn("name", TypeString)
	height := enc.AddColumn("height", TypeDouble)
	active := enc.AddColumn("active", TypeBool)
	ratio := enc.AddColumn("ratio", TypeFloat)

	rows := []struct {
		id     int64
		name   string
		height float64
		active bool
		ratio  float32
	}{
		{1, "tower", 51.5, true, 0.25},
		{2, "", -3.25, false, 1.5},
	}
	for _, r := range rows {
		enc.AppendInt64(id, r.id)
		enc.AppendString(name, r.name)
		enc.AppendFloat64(height, r.height)
		enc.AppendBool(active, r.active)
		enc.AppendFloat32(ratio, r.ratio)
	}
	enc.SetRows(len(rows))

	buf, err := Decode(enc.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for i, want := range rows {
		row, err := buf.Next()
		if err != nil || row == nil {
			t.Fatalf("row %d: (%v, %v)", i, row, err)
		}
		if row[0].Int64() != want.id {
			t.Errorf("row %d id = %d", i, row[0].Int64())
		}
		if want.name == "" {
			if !row[1].IsNull() {
				t.Errorf("row %d: empty string should decode as null", i)
			}
		} else if row[1].Text() != want.name {
			t.Errorf("row %d name = %q", i, row[1].Text())
		}
		if row[2].Float64() != want.height {
			t.Errorf("row %d height = %v", i, row[2].Float64())
		}
		if row[3].Bool() != want.active {
			t.Errorf("row %d active = %v", i, row[3].Bool())
		}
		if row[4].Float64() != float64(want.ratio) {
			t.Errorf("row %d ratio = %v", i, row[4].Float64())
		}
	}
}

func TestUnknownTagSkipped(t *testing.T) {
	enc := NewEncoder()
	id := enc.AddColumn("id", TypeInt)
	other := enc.AddColumn("blob", TypeOther)
	enc.AppendInt32(id, 7)
	enc.AppendInt32(id, 8)
	// Opaque payload; must be skipped by declared length, never read.
	enc.AppendRaw(other, []byte{0xde, 0xad, 0xbe, 0xef, 0x01})
	enc.SetRows(2)

	buf, err := Decode(enc.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for i, want := range []int32{7, 8} {
		row, err := buf.Next()
		if err != nil || row == nil {
			t.Fatalf("row %d: (%v, %v)", i, row, err)
		}
		if row[0].Int32() != want {
			t.Errorf("row %d id = %d, want %d", i, row[0].Int32(), want)
		}
		if !row[1].IsNull() {
			t.Errorf("row %d: unknown-tag cell should be null", i)
		}
	}
}

func TestTruncatedPayload(t *testing.T) {
	enc := NewEncoder()
	col := enc.AddColumn("id", TypeLong)
	enc.AppendInt64(col, 1)
	enc.SetRows(2) // header claims one more row than the payload holds

	buf, err := Decode(enc.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, err := buf.Next(); err != nil {
		t.Fatalf("first row: %v", err)
	}
	if _, err := buf.Next(); err == nil {
		t.Fatal("expected out-of-bounds error for missing second row")
	}
}

func TestColumnOffsetOutsideBuffer(t *testing.T) {
	// Hand-build a header whose single column offset points past the end.
	var b []byte
	b = binary.LittleEndian.AppendUint32(b, 1)    // columnCount
	b = binary.LittleEndian.AppendUint32(b, 1)    // rowCount
	b = binary.LittleEndian.AppendUint64(b, 9999) // bogus offset

	if _, err := Decode(b); err == nil {
		t.Fatal("expected decode error for out-of-range column offset")
	}
}

func TestDateDecodesAsText(t *testing.T) {
	enc := NewEncoder()
	col := enc.AddColumn("built", TypeDate)
	enc.AppendString(col, "2024-06-01")
	enc.SetRows(1)

	buf, err := Decode(enc.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	row, err := buf.Next()
	if err != nil || row == nil {
		t.Fatalf("Next: (%v, %v)", row, err)
	}
	if row[0].Text() != "2024-06-01" {
		t.Errorf("date = %q", row[0].Text())
	}
}

func TestFloatBitsSurvive(t *testing.T) {
	enc := NewEncoder()
	col := enc.AddColumn("v", TypeDouble)
	want := math.Copysign(0, -1)
	enc.AppendFloat64(col, want)
	enc.SetRows(1)

	buf, err := Decode(enc.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	row, _ := buf.Next()
	if math.Float64bits(row[0].Float64()) != math.Float64bits(want) {
		t.Errorf("negative zero not preserved: %v", row[0].Float64())
	}
}
