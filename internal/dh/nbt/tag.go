// Package nbt implements a bounds-checked, zero-copy walker over
// Notch's big-endian NBT binary format (the encoding used by Anvil
// chunk data). It never builds a generic map[string]any tree: instead
// callers describe the handful of named children they need from a
// compound and get back byte spans (Payload) into the caller's own
// buffer, which section.Parse and palette.Flatten then interpret.
package nbt

import (
	"fmt"

	"github.com/OCharnyshevich/minecraft-server/internal/dh/byteio"
)

// Type is an NBT tag type id, matching the on-disk encoding.
type Type byte

// Tag type ids, matching the teacher's internal/server/world/nbt/writer.go
// constants (which only go up to TagIntArray; LongArray is added here
// since Anvil sections rely on it for palette indices).
const (
	TagEnd       Type = 0
	TagByte      Type = 1
	TagShort     Type = 2
	TagInt       Type = 3
	TagLong      Type = 4
	TagFloat     Type = 5
	TagDouble    Type = 6
	TagByteArray Type = 7
	TagString    Type = 8
	TagList      Type = 9
	TagCompound  Type = 10
	TagIntArray  Type = 11
	TagLongArray Type = 12

	// Pseudo-types usable only as a FindNamed schema's Want field; never
	// appear on the wire and never match as an actual tag's Type.
	TagAny       Type = 0xF0
	TagAnyNumber Type = 0xF1
)

func (t Type) String() string {
	switch t {
	case TagEnd:
		return "End"
	case TagByte:
		return "Byte"
	case TagShort:
		return "Short"
	case TagInt:
		return "Int"
	case TagLong:
		return "Long"
	case TagFloat:
		return "Float"
	case TagDouble:
		return "Double"
	case TagByteArray:
		return "ByteArray"
	case TagString:
		return "String"
	case TagList:
		return "List"
	case TagCompound:
		return "Compound"
	case TagIntArray:
		return "IntArray"
	case TagLongArray:
		return "LongArray"
	default:
		return fmt.Sprintf("Type(%d)", byte(t))
	}
}

func isNumeric(t Type) bool {
	switch t {
	case TagByte, TagShort, TagInt, TagLong, TagFloat, TagDouble:
		return true
	default:
		return false
	}
}

// Payload is a zero-copy reference to a tag's payload: its type and the
// [Start,End) byte range within the buffer the caller parsed from. It
// carries no pointer to the buffer itself so it stays a small value;
// every accessor below takes the originating buffer explicitly.
type Payload struct {
	Type  Type
	Start int
	End   int
}

// Empty reports whether p is the zero value (no match found).
func (p Payload) Empty() bool { return p.Start == 0 && p.End == 0 && p.Type == TagEnd }

func (p Payload) bytes(buf []byte) []byte { return buf[p.Start:p.End] }

// payloadStep advances c past one payload of the given type, returning
// the payload's byte span. This is PayloadStep from spec §4.1.
func payloadStep(c *byteio.Cursor, t Type) (Payload, error) {
	start := c.Pos()
	switch t {
	case TagByte:
		if err := c.Skip(1); err != nil {
			return Payload{}, err
		}
	case TagShort:
		if err := c.Skip(2); err != nil {
			return Payload{}, err
		}
	case TagInt, TagFloat:
		if err := c.Skip(4); err != nil {
			return Payload{}, err
		}
	case TagLong, TagDouble:
		if err := c.Skip(8); err != nil {
			return Payload{}, err
		}
	case TagByteArray:
		n, err := c.ReadInt32()
		if err != nil {
			return Payload{}, err
		}
		if n < 0 {
			return Payload{}, byteio.ErrTruncated
		}
		if err := c.Skip(int(n)); err != nil {
			return Payload{}, err
		}
	case TagString:
		n, err := c.ReadUint16()
		if err != nil {
			return Payload{}, err
		}
		if err := c.Skip(int(n)); err != nil {
			return Payload{}, err
		}
	case TagList:
		elemType, err := c.ReadByte()
		if err != nil {
			return Payload{}, err
		}
		n, err := c.ReadInt32()
		if err != nil {
			return Payload{}, err
		}
		if n < 0 {
			return Payload{}, byteio.ErrTruncated
		}
		for i := int32(0); i < n; i++ {
			if _, err := payloadStep(c, Type(elemType)); err != nil {
				return Payload{}, err
			}
		}
	case TagCompound:
		for {
			tt, err := c.ReadByte()
			if err != nil {
				return Payload{}, err
			}
			if Type(tt) == TagEnd {
				break
			}
			nameLen, err := c.ReadUint16()
			if err != nil {
				return Payload{}, err
			}
			if err := c.Skip(int(nameLen)); err != nil {
				return Payload{}, err
			}
			if _, err := payloadStep(c, Type(tt)); err != nil {
				return Payload{}, err
			}
		}
	case TagIntArray:
		n, err := c.ReadInt32()
		if err != nil {
			return Payload{}, err
		}
		if n < 0 {
			return Payload{}, byteio.ErrTruncated
		}
		if err := c.Skip(int(n) * 4); err != nil {
			return Payload{}, err
		}
	case TagLongArray:
		n, err := c.ReadInt32()
		if err != nil {
			return Payload{}, err
		}
		if n < 0 {
			return Payload{}, byteio.ErrTruncated
		}
		if err := c.Skip(int(n) * 8); err != nil {
			return Payload{}, err
		}
	default:
		return Payload{}, fmt.Errorf("nbt: unknown tag type %d", t)
	}
	return Payload{Type: t, Start: start, End: c.Pos()}, nil
}

// Step advances c past one full tag (type byte, name, payload) and
// returns the tag's name and payload. This is Step from spec §4.1.
func Step(c *byteio.Cursor, buf []byte) (name string, p Payload, err error) {
	t, err := c.ReadByte()
	if err != nil {
		return "", Payload{}, err
	}
	if Type(t) == TagEnd {
		return "", Payload{Type: TagEnd, Start: c.Pos(), End: c.Pos()}, nil
	}
	nameLen, err := c.ReadUint16()
	if err != nil {
		return "", Payload{}, err
	}
	nameBytes, err := c.ReadBytes(int(nameLen))
	if err != nil {
		return "", Payload{}, err
	}
	p, err = payloadStep(c, Type(t))
	if err != nil {
		return "", Payload{}, err
	}
	return string(nameBytes), p, nil
}

// RootCompound parses the single root tag of a decompressed chunk
// buffer (normally an unnamed TagCompound) and returns its payload span.
func RootCompound(buf []byte) (Payload, error) {
	c := byteio.NewCursor(buf)
	_, p, err := Step(&c, buf)
	if err != nil {
		return Payload{}, err
	}
	if p.Type != TagCompound {
		return Payload{}, fmt.Errorf("nbt: root tag is %s, not Compound", p.Type)
	}
	return p, nil
}
