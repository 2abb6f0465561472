// Package compress serialises an LOD's id mapping and converts its
// column stream between the raw intermediate and the three
// on-disk-compressed forms (spec §4.7/§4.10), always routing a mode
// switch through raw exactly as the original does.
package compress

import (
	"encoding/binary"
	"fmt"

	"github.com/OCharnyshevich/minecraft-server/internal/dh"
	"github.com/OCharnyshevich/minecraft-server/internal/dh/palette"
)

const maxMappingEntryLen = 65535

// EncodeMapping serialises m per spec §4.7: a 2-byte big-endian count,
// then for each string a 2-byte big-endian byte length and the bytes.
func EncodeMapping(m *palette.Mapping) ([]byte, error) {
	strs := m.Strings()
	if len(strs) > 0xFFFF {
		return nil, fmt.Errorf("compress: mapping has %d entries, exceeds 65535: %w", len(strs), dh.ErrInvalidArgument)
	}

	size := 2
	for _, s := range strs {
		if len(s) > maxMappingEntryLen {
			return nil, fmt.Errorf("compress: mapping entry %d bytes exceeds %d: %w", len(s), maxMappingEntryLen, dh.ErrInvalidArgument)
		}
		size += 2 + len(s)
	}

	out := make([]byte, size)
	binary.BigEndian.PutUint16(out, uint16(len(strs)))
	off := 2
	for _, s := range strs {
		binary.BigEndian.PutUint16(out[off:], uint16(len(s)))
		off += 2
		off += copy(out[off:], s)
	}
	return out, nil
}

// DecodeMapping parses a §4.7 serialised mapping into dst, which is
// reset first. dst may be nil, in which case a fresh Mapping is
// allocated.
func DecodeMapping(buf []byte, dst *palette.Mapping) (*palette.Mapping, error) {
	if dst == nil {
		dst = palette.NewMapping()
	} else {
		dst.Reset()
	}

	if len(buf) < 2 {
		return nil, fmt.Errorf("compress: mapping buffer too small for count: %w", dh.ErrMalformed)
	}
	count := int(binary.BigEndian.Uint16(buf))
	off := 2
	for i := 0; i < count; i++ {
		if off+2 > len(buf) {
			return nil, fmt.Errorf("compress: mapping entry %d: truncated length: %w", i, dh.ErrMalformed)
		}
		n := int(binary.BigEndian.Uint16(buf[off:]))
		off += 2
		if off+n > len(buf) {
			return nil, fmt.Errorf("compress: mapping entry %d: truncated data: %w", i, dh.ErrMalformed)
		}
		dst.Intern(string(buf[off : off+n]))
		off += n
	}
	return dst, nil
}
