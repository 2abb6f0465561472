package nbt

import (
	"fmt"

	"github.com/OCharnyshevich/minecraft-server/internal/dh/byteio"
)

// ByteValue decodes a TagByte payload.
func ByteValue(buf []byte, p Payload) (byte, error) {
	if p.Type != TagByte {
		return 0, fmt.Errorf("nbt: expected Byte, got %s", p.Type)
	}
	return p.bytes(buf)[0], nil
}

// ShortValue decodes a TagShort payload.
func ShortValue(buf []byte, p Payload) (int16, error) {
	if p.Type != TagShort {
		return 0, fmt.Errorf("nbt: expected Short, got %s", p.Type)
	}
	c := byteio.NewCursor(p.bytes(buf))
	return c.ReadInt16()
}

// IntValue decodes a TagInt payload.
func IntValue(buf []byte, p Payload) (int32, error) {
	if p.Type != TagInt {
		return 0, fmt.Errorf("nbt: expected Int, got %s", p.Type)
	}
	c := byteio.NewCursor(p.bytes(buf))
	return c.ReadInt32()
}

// LongValue decodes a TagLong payload.
func LongValue(buf []byte, p Payload) (int64, error) {
	if p.Type != TagLong {
		return 0, fmt.Errorf("nbt: expected Long, got %s", p.Type)
	}
	c := byteio.NewCursor(p.bytes(buf))
	return c.ReadInt64()
}

// FloatValue decodes a TagFloat payload.
func FloatValue(buf []byte, p Payload) (float32, error) {
	if p.Type != TagFloat {
		return 0, fmt.Errorf("nbt: expected Float, got %s", p.Type)
	}
	c := byteio.NewCursor(p.bytes(buf))
	return c.ReadFloat32()
}

// DoubleValue decodes a TagDouble payload.
func DoubleValue(buf []byte, p Payload) (float64, error) {
	if p.Type != TagDouble {
		return 0, fmt.Errorf("nbt: expected Double, got %s", p.Type)
	}
	c := byteio.NewCursor(p.bytes(buf))
	return c.ReadFloat64()
}

// StringValue decodes a TagString payload. The returned string is a
// fresh copy (Go strings are immutable so this cannot alias the
// caller's mutable buffer).
func StringValue(buf []byte, p Payload) (string, error) {
	if p.Type != TagString {
		return "", fmt.Errorf("nbt: expected String, got %s", p.Type)
	}
	c := byteio.NewCursor(p.bytes(buf))
	n, err := c.ReadUint16()
	if err != nil {
		return "", err
	}
	b, err := c.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ByteArrayValue returns the raw bytes of a TagByteArray payload, as a
// slice into the caller's buffer (no copy).
func ByteArrayValue(buf []byte, p Payload) ([]byte, error) {
	if p.Type != TagByteArray {
		return nil, fmt.Errorf("nbt: expected ByteArray, got %s", p.Type)
	}
	c := byteio.NewCursor(p.bytes(buf))
	n, err := c.ReadInt32()
	if err != nil {
		return nil, err
	}
	return c.ReadBytes(int(n))
}

// IntArrayValue decodes a TagIntArray payload into a freshly allocated
// slice (the on-disk layout is big-endian 4-byte ints, so a direct
// slice reinterpretation isn't possible on little-endian hosts).
func IntArrayValue(buf []byte, p Payload) ([]int32, error) {
	if p.Type != TagIntArray {
		return nil, fmt.Errorf("nbt: expected IntArray, got %s", p.Type)
	}
	c := byteio.NewCursor(p.bytes(buf))
	n, err := c.ReadInt32()
	if err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i := range out {
		v, err := c.ReadInt32()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// LongArrayValue decodes a TagLongArray payload into a freshly
// allocated slice of big-endian int64 words, as stored (not yet
// bit-unpacked into palette indices — see byteio.UnpackLongArrayNoSplit).
func LongArrayValue(buf []byte, p Payload) ([]int64, error) {
	if p.Type != TagLongArray {
		return nil, fmt.Errorf("nbt: expected LongArray, got %s", p.Type)
	}
	c := byteio.NewCursor(p.bytes(buf))
	n, err := c.ReadInt32()
	if err != nil {
		return nil, err
	}
	out := make([]int64, n)
	for i := range out {
		v, err := c.ReadInt64()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// AnyIntegerValue coerces any numeric tag (byte/short/int/long, and
// float/double truncated toward zero) to an int64. This backs the
// "any integer" pseudo-type FindNamed schemas use for fields like
// xPos/zPos/Y that vanilla Minecraft has encoded as different widths
// across versions.
func AnyIntegerValue(buf []byte, p Payload) (int64, error) {
	switch p.Type {
	case TagByte:
		v, err := ByteValue(buf, p)
		return int64(int8(v)), err
	case TagShort:
		v, err := ShortValue(buf, p)
		return int64(v), err
	case TagInt:
		v, err := IntValue(buf, p)
		return int64(v), err
	case TagLong:
		return LongValue(buf, p)
	case TagFloat:
		v, err := FloatValue(buf, p)
		return int64(v), err
	case TagDouble:
		v, err := DoubleValue(buf, p)
		return int64(v), err
	default:
		return 0, fmt.Errorf("nbt: expected a numeric tag, got %s", p.Type)
	}
}
