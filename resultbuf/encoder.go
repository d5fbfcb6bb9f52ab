package resultbuf

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Encoder assembles a columnar result buffer in the same wire layout the
// native library produces. It exists for tests and for fake runtimes;
// the real buffers always come from the library itself.
type Encoder struct {
	cols []encColumn
	rows int
}

type encColumn struct {
	name    string
	typ     Type
	payload bytes.Buffer
}

func NewEncoder() *Encoder {
	return &Encoder{}
}

// AddColumn appends a column descriptor and returns its index for the
// Append calls.
func (e *Encoder) AddColumn(name string, t Type) int {
	e.cols = append(e.cols, encColumn{name: name, typ: t})
	return len(e.cols) - 1
}

// SetRows sets the row count written to the header. The encoder does not
// verify that every column holds that many values.
func (e *Encoder) SetRows(n int) {
	e.rows = n
}

func (e *Encoder) AppendInt32(col int, v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	e.cols[col].payload.Write(b[:])
}

func (e *Encoder) AppendInt64(col int, v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	e.cols[col].payload.Write(b[:])
}

func (e *Encoder) AppendFloat32(col int, v float32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
	e.cols[col].payload.Write(b[:])
}

func (e *Encoder) AppendFloat64(col int, v float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	e.cols[col].payload.Write(b[:])
}

func (e *Encoder) AppendBool(col int, v bool) {
	if v {
		e.cols[col].payload.WriteByte(1)
	} else {
		e.cols[col].payload.WriteByte(0)
	}
}

// AppendString writes a length-prefixed value, used for both string and
// date columns. An empty string encodes as length 0, which decodes to a
// null value.
func (e *Encoder) AppendString(col int, v string) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(len(v)))
	e.cols[col].payload.Write(b[:])
	e.cols[col].payload.WriteString(v)
}

// AppendBytes writes a length-prefixed blob, used for geometry columns.
// The blob is written verbatim, so tests can feed EWKB as well as WKB.
func (e *Encoder) AppendBytes(col int, v []byte) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(len(v)))
	e.cols[col].payload.Write(b[:])
	e.cols[col].payload.Write(v)
}

// AppendRaw writes bytes with no length prefix, for exercising unknown
// type tags whose payload is opaque.
func (e *Encoder) AppendRaw(col int, v []byte) {
	e.cols[col].payload.Write(v)
}

// Bytes assembles the buffer: header, column offset table, then each
// column's descriptor and payload.
func (e *Encoder) Bytes() []byte {
	var out bytes.Buffer

	writeI32 := func(v int32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(v))
		out.Write(b[:])
	}
	writeI64 := func(v int64) {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(v))
		out.Write(b[:])
	}

	writeI32(int32(len(e.cols)))
	writeI32(int32(e.rows))

	// Column offsets from buffer start: header + offset table, then each
	// preceding column's descriptor and payload.
	off := int64(8 + 8*len(e.cols))
	for _, c := range e.cols {
		writeI64(off)
		off += int64(4 + len(c.name) + 4 + 4 + c.payload.Len())
	}

	for _, c := range e.cols {
		writeI32(int32(len(c.name)))
		out.WriteString(c.name)
		writeI32(int32(c.typ))
		writeI32(int32(c.payload.Len()))
		out.Write(c.payload.Bytes())
	}

	return out.Bytes()
}
