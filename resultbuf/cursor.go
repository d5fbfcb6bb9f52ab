package resultbuf

import (
	"encoding/binary"
	"math"

	"github.com/h2gis/h2gis-go/errors"
)

// Cursor is a bounds-checked reader over a result buffer slice. Every
// read validates the remaining length before advancing, so a truncated
// or misaligned buffer surfaces as a decode error instead of a silent
// out-of-range read. All multi-byte reads are little-endian, matching
// the native buffer writer.
type Cursor struct {
	data []byte
	off  int
}

func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Offset returns the current read position from the start of the slice.
func (c *Cursor) Offset() int { return c.off }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.data) - c.off }

func (c *Cursor) require(n int) error {
	if n < 0 {
		return errors.InvalidData("negative length")
	}
	if rem := len(c.data) - c.off; rem < n {
		return errors.OutOfBounds(nil, n, rem)
	}
	return nil
}

// Seek moves the cursor to an absolute offset.
func (c *Cursor) Seek(off int) error {
	if off < 0 || off > len(c.data) {
		return errors.OutOfBounds(nil, off, len(c.data))
	}
	c.off = off
	return nil
}

// Skip advances the cursor by n bytes.
func (c *Cursor) Skip(n int) error {
	if err := c.require(n); err != nil {
		return err
	}
	c.off += n
	return nil
}

func (c *Cursor) ReadByte() (byte, error) {
	if err := c.require(1); err != nil {
		return 0, err
	}
	v := c.data[c.off]
	c.off++
	return v, nil
}

func (c *Cursor) ReadInt32() (int32, error) {
	if err := c.require(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.data[c.off:])
	c.off += 4
	return int32(v), nil
}

func (c *Cursor) ReadInt64() (int64, error) {
	if err := c.require(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(c.data[c.off:])
	c.off += 8
	return int64(v), nil
}

func (c *Cursor) ReadFloat32() (float32, error) {
	if err := c.require(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.data[c.off:])
	c.off += 4
	return math.Float32frombits(v), nil
}

func (c *Cursor) ReadFloat64() (float64, error) {
	if err := c.require(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(c.data[c.off:])
	c.off += 8
	return math.Float64frombits(v), nil
}

// ReadBytes returns a view of the next n bytes without copying. The view
// aliases the underlying buffer and is only valid until it is freed.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if err := c.require(n); err != nil {
		return nil, err
	}
	v := c.data[c.off : c.off+n : c.off+n]
	c.off += n
	return v, nil
}
