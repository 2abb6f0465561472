// Package byteio implements the bounds-checked big-endian primitive
// reader that every higher layer (NBT walker, region index, section
// parser) builds on. Every step is guarded against running past the end
// of the underlying buffer; nothing here allocates on the read path.
package byteio

import (
	"errors"
	"math"
)

// ErrTruncated is returned when a read would advance the cursor past the
// end of the buffer. byteio itself knows nothing about the dh error
// vocabulary, and the nbt walker returns this error as is: it is not
// converted into dh.ErrMalformed on the way up.
var ErrTruncated = errors.New("byteio: truncated buffer")

// Cursor is a position within a byte slice the caller does not own a
// copy of. It never allocates a new backing array; every Read* method
// advances pos, and ReadBytes returns a sub-slice of buf, not a copy.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor wraps buf for guarded, bounds-checked traversal from offset 0.
func NewCursor(buf []byte) Cursor {
	return Cursor{buf: buf}
}

// Pos returns the current offset into the underlying buffer.
func (c Cursor) Pos() int { return c.pos }

// Len returns the number of unread bytes remaining.
func (c Cursor) Len() int { return len(c.buf) - c.pos }

// Remaining returns the unread tail of the buffer without advancing.
func (c Cursor) Remaining() []byte { return c.buf[c.pos:] }

// step advances the cursor by n bytes, failing if that would pass the end.
func (c *Cursor) step(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.buf) {
		return nil, ErrTruncated
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// Skip advances the cursor by n bytes without returning them.
func (c *Cursor) Skip(n int) error {
	_, err := c.step(n)
	return err
}

// ReadByte reads one unsigned byte.
func (c *Cursor) ReadByte() (byte, error) {
	b, err := c.step(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadInt8 reads one signed byte.
func (c *Cursor) ReadInt8() (int8, error) {
	b, err := c.ReadByte()
	return int8(b), err
}

// ReadUint16 reads a big-endian uint16.
func (c *Cursor) ReadUint16() (uint16, error) {
	b, err := c.step(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

// ReadInt16 reads a big-endian int16.
func (c *Cursor) ReadInt16() (int16, error) {
	v, err := c.ReadUint16()
	return int16(v), err
}

// ReadUint32 reads a big-endian uint32.
func (c *Cursor) ReadUint32() (uint32, error) {
	b, err := c.step(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// ReadInt32 reads a big-endian int32.
func (c *Cursor) ReadInt32() (int32, error) {
	v, err := c.ReadUint32()
	return int32(v), err
}

// ReadUint64 reads a big-endian uint64.
func (c *Cursor) ReadUint64() (uint64, error) {
	b, err := c.step(8)
	if err != nil {
		return 0, err
	}
	hi := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	lo := uint32(b[4])<<24 | uint32(b[5])<<16 | uint32(b[6])<<8 | uint32(b[7])
	return uint64(hi)<<32 | uint64(lo), nil
}

// ReadInt64 reads a big-endian int64.
func (c *Cursor) ReadInt64() (int64, error) {
	v, err := c.ReadUint64()
	return int64(v), err
}

// ReadFloat32 reads a big-endian float32, bitcast from its uint32.
func (c *Cursor) ReadFloat32() (float32, error) {
	v, err := c.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadFloat64 reads a big-endian float64, bitcast from its uint64.
func (c *Cursor) ReadFloat64() (float64, error) {
	v, err := c.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadBytes reads n raw bytes, returning a slice into the caller's
// buffer (not a copy). Callers that retain it beyond the chunk's
// lifetime must copy it themselves.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	return c.step(n)
}
