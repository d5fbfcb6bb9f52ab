package resultbuf

import (
	"strconv"

	"github.com/h2gis/h2gis-go/errors"
)

// Buffer is the decoded view of one columnar result buffer. Decoding is
// per-buffer and carries no state between fetches: the caller requests a
// new buffer when this one is exhausted and stops when the runtime
// returns an empty one.
//
// Each column keeps its own cursor into the payload region; Next reads
// one value from every column in lock-step, so row i of column c is
// always the next unread slice at that column's cursor.
type Buffer struct {
	cols    []Column
	cursors []*Cursor // nil for columns with unknown tags
	rows    int
	row     int
}

// Decode parses the buffer header and column descriptors. A nil or empty
// slice decodes to a buffer with no columns and no rows. The returned
// Buffer aliases data; it must not be used after the underlying result
// buffer is released.
func Decode(data []byte) (*Buffer, error) {
	if len(data) == 0 {
		return &Buffer{}, nil
	}

	c := NewCursor(data)

	colCount, err := c.ReadInt32()
	if err != nil {
		return nil, err
	}
	rowCount, err := c.ReadInt32()
	if err != nil {
		return nil, err
	}
	if colCount < 0 || rowCount < 0 {
		return nil, errors.InvalidData("negative column or row count")
	}
	if colCount == 0 {
		return &Buffer{}, nil
	}

	offsets := make([]int64, colCount)
	for i := range offsets {
		if offsets[i], err = c.ReadInt64(); err != nil {
			return nil, err
		}
	}

	b := &Buffer{
		cols:    make([]Column, colCount),
		cursors: make([]*Cursor, colCount),
		rows:    int(rowCount),
	}

	for i, off := range offsets {
		col := NewCursor(data)
		if err := col.Seek(int(off)); err != nil {
			return nil, errors.New(errors.PhaseDecode, errors.KindOutOfBounds).
				Path("column", strconv.Itoa(i)).
				Detail("column offset %d outside buffer of %d bytes", off, len(data)).
				Build()
		}

		nameLen, err := col.ReadInt32()
		if err != nil {
			return nil, err
		}
		name, err := col.ReadBytes(int(nameLen))
		if err != nil {
			return nil, err
		}
		tag, err := col.ReadInt32()
		if err != nil {
			return nil, err
		}
		totalLen, err := col.ReadInt32()
		if err != nil {
			return nil, err
		}

		payload, err := col.ReadBytes(int(totalLen))
		if err != nil {
			return nil, errors.New(errors.PhaseDecode, errors.KindOutOfBounds).
				Path("column", string(name)).
				Detail("declared payload of %d bytes exceeds buffer", totalLen).
				Build()
		}

		b.cols[i] = Column{Name: string(name), Type: Type(tag)}
		if Type(tag).known() {
			b.cursors[i] = NewCursor(payload)
		}
		// Unknown tags: payload is skipped by its declared length and
		// never interpreted; rows read as null.
	}

	return b, nil
}

// Columns returns the column descriptors, in buffer order.
func (b *Buffer) Columns() []Column { return b.cols }

// Rows returns the number of rows present in this buffer.
func (b *Buffer) Rows() int { return b.rows }

// Next decodes the next row, or returns (nil, nil) when the buffer is
// exhausted. The returned slice is freshly allocated per row.
func (b *Buffer) Next() ([]Value, error) {
	if b.row >= b.rows {
		return nil, nil
	}

	row := make([]Value, len(b.cols))
	for i := range b.cols {
		v, err := readValue(b.cols[i].Type, b.cursors[i])
		if err != nil {
			return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
				Path("column", b.cols[i].Name).
				Detail("row %d", b.row).
				Cause(err).
				Build()
		}
		row[i] = v
	}

	b.row++
	return row, nil
}

func readValue(t Type, c *Cursor) (Value, error) {
	if c == nil {
		return Value{typ: t, null: true}, nil
	}

	switch t {
	case TypeInt:
		v, err := c.ReadInt32()
		if err != nil {
			return Value{}, err
		}
		return Value{typ: t, i: int64(v)}, nil

	case TypeLong:
		v, err := c.ReadInt64()
		if err != nil {
			return Value{}, err
		}
		return Value{typ: t, i: v}, nil

	case TypeFloat:
		v, err := c.ReadFloat32()
		if err != nil {
			return Value{}, err
		}
		return Value{typ: t, f: float64(v)}, nil

	case TypeDouble:
		v, err := c.ReadFloat64()
		if err != nil {
			return Value{}, err
		}
		return Value{typ: t, f: v}, nil

	case TypeBool:
		v, err := c.ReadByte()
		if err != nil {
			return Value{}, err
		}
		return Value{typ: t, b: v != 0}, nil

	case TypeString, TypeDate:
		n, err := c.ReadInt32()
		if err != nil {
			return Value{}, err
		}
		if n <= 0 {
			return Value{typ: t, null: true}, nil
		}
		raw, err := c.ReadBytes(int(n))
		if err != nil {
			return Value{}, err
		}
		return Value{typ: t, s: string(raw)}, nil

	case TypeGeometry:
		n, err := c.ReadInt32()
		if err != nil {
			return Value{}, err
		}
		if n <= 0 {
			return Value{typ: t, null: true}, nil
		}
		raw, err := c.ReadBytes(int(n))
		if err != nil {
			return Value{}, err
		}
		wkb, srid, err := NormalizeWKB(raw)
		if err != nil {
			return Value{}, err
		}
		return Value{typ: t, blob: wkb, srid: srid}, nil
	}

	return Value{typ: t, null: true}, nil
}
