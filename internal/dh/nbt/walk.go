package nbt

import (
	"errors"

	"github.com/OCharnyshevich/minecraft-server/internal/dh/byteio"
)

// Field describes one child a FindNamed scan should capture out of a
// single compound payload. Out receives the matching child's payload;
// it is left untouched if the name never appears. Want may be a
// concrete Type, or the TagAny/TagAnyNumber pseudo-types to accept
// any tag / any numeric tag respectively (spec §4.1).
type Field struct {
	Name string
	Want Type
	Out  *Payload
}

// FindNamed walks one compound's payload exactly once, matching each
// child tag against schema by name. A child matches if its type equals
// the requested type, or the requested type is TagAny, or the
// requested type is TagAnyNumber and the child is any numeric type.
// Returns nil once the compound's End tag is reached, or the first
// traversal error; it does not report the position past the End tag,
// so callers cannot resume from there. This is the
// single-pass find_named primitive from spec §4.1: section and palette
// parsing fetch several named children per compound in one traversal.
func FindNamed(buf []byte, compound Payload, schema []Field) error {
	if compound.Type != TagCompound {
		return ErrWrongType
	}
	c := byteio.NewCursor(buf[:compound.End])
	if err := c.Skip(compound.Start); err != nil {
		return err
	}
	for {
		name, p, err := Step(&c, buf)
		if err != nil {
			return err
		}
		if p.Type == TagEnd {
			return nil
		}
		for _, f := range schema {
			if f.Name != name {
				continue
			}
			if f.Want == TagAny || f.Want == p.Type || (f.Want == TagAnyNumber && isNumeric(p.Type)) {
				*f.Out = p
			}
			break
		}
	}
}

// ErrWrongType is returned by FindNamed/CompoundChildren when the given
// payload is not a TagCompound, and by ListLen/ListElements when it is
// not a TagList.
var ErrWrongType = errors.New("nbt: payload is not a Compound")

// CompoundEntry is one (name, payload) pair yielded while iterating a
// compound's children in encounter order.
type CompoundEntry struct {
	Name    string
	Payload Payload
}

// CompoundChildren walks every child of compound, invoking yield for
// each. Iteration stops early if yield returns false. Used where the
// caller needs every entry (e.g. re-encoding round trips), rather than
// a fixed named subset.
func CompoundChildren(buf []byte, compound Payload, yield func(CompoundEntry) bool) error {
	if compound.Type != TagCompound {
		return ErrWrongType
	}
	c := byteio.NewCursor(buf)
	if err := c.Skip(compound.Start); err != nil {
		return err
	}
	for c.Pos() < compound.End {
		name, p, err := Step(&c, buf)
		if err != nil {
			return err
		}
		if p.Type == TagEnd {
			return nil
		}
		if !yield(CompoundEntry{Name: name, Payload: p}) {
			return nil
		}
	}
	return nil
}

// ListLen returns a list payload's declared element count and element
// type without materializing the elements.
func ListLen(buf []byte, list Payload) (elemType Type, count int32, err error) {
	if list.Type != TagList {
		return 0, 0, ErrWrongType
	}
	c := byteio.NewCursor(buf)
	if err := c.Skip(list.Start); err != nil {
		return 0, 0, err
	}
	et, err := c.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	n, err := c.ReadInt32()
	if err != nil {
		return 0, 0, err
	}
	return Type(et), n, nil
}

// ListElements walks every element of a list payload in order.
func ListElements(buf []byte, list Payload, yield func(int, Payload) bool) error {
	elemType, count, err := ListLen(buf, list)
	if err != nil {
		return err
	}
	c := byteio.NewCursor(buf)
	if err := c.Skip(list.Start + 5); err != nil { // 1 (elem type) + 4 (count)
		return err
	}
	for i := int32(0); i < count; i++ {
		p, err := payloadStep(&c, elemType)
		if err != nil {
			return err
		}
		if !yield(int(i), p) {
			return nil
		}
	}
	return nil
}
