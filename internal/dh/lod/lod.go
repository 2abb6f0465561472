package lod

import (
	"encoding/binary"
	"fmt"

	"github.com/OCharnyshevich/minecraft-server/internal/dh"
	"github.com/OCharnyshevich/minecraft-server/internal/dh/palette"
)

// GridDim is the number of columns along one side of an LOD's
// horizontal footprint, at every mip level (spec §3: "Horizontal
// footprint is 64x64 columns").
const GridDim = 64

const growthSlack = 128 * 1024

// Mode is an LOD's column-stream compression mode (spec §4.7).
type Mode byte

const (
	ModeRaw Mode = iota
	ModeLZ4
	ModeLZMA
	ModeZstd
)

func (m Mode) String() string {
	switch m {
	case ModeRaw:
		return "raw"
	case ModeLZ4:
		return "lz4"
	case ModeLZMA:
		return "lzma"
	case ModeZstd:
		return "zstd"
	default:
		return fmt.Sprintf("Mode(%d)", byte(m))
	}
}

// LOD is a 64x64-column Distant-Horizons level-of-detail record. At
// mip level 0 each column is a chunk-group voxel run; at higher mip
// levels each column summarizes 2^MipLevel x 2^MipLevel mip-0 columns
// via plurality vote (spec §4.6). Columns holds the column stream
// bytes in CompressionMode's encoding -- when CompressionMode ==
// ModeRaw, Columns is GridDim*GridDim sequential (count, datapoints)
// blocks in row-major (x-major, z-minor) order.
//
// Go idiom note: the original C implementation keeps a separate
// "extension" struct of scratch buffers reset (not freed) between
// builds. A Go LOD simply keeps its own buffer fields and reuses them
// directly -- there's no separate arena allocator to thread through.
type LOD struct {
	X, Z     int32
	MinY     int32
	Height   int32
	MipLevel int32

	CompressionMode Mode
	Mapping         *palette.Mapping
	Columns         []byte
	HasData         bool
}

// New returns an empty LOD with a fresh Mapping, ready for Build/Mip.
func New() *LOD {
	return &LOD{Mapping: palette.NewMapping()}
}

// Reset clears l for reuse by a subsequent Mip call, retaining its
// buffers' capacity, including wiping Mapping. Mip interns its output
// ids itself (via Mapping.MergeFrom) after this runs, so resetting
// Mapping here can never orphan an id that's already in use.
func (l *LOD) Reset() {
	l.resetColumnFields()
	if l.Mapping == nil {
		l.Mapping = palette.NewMapping()
	} else {
		l.Mapping.Reset()
	}
}

// resetColumnFields clears everything but Mapping. Build uses this
// instead of Reset: a ChunkInput's palette.Tables are flattened by the
// caller against dst.Mapping before Build ever sees them, so Build
// resetting Mapping out from under those already-interned ids would
// leave every Datapoint's id pointing at entries Mapping no longer
// holds. Callers that want a clean Mapping per group (the normal case)
// reset it themselves before flattening, not through Build.
func (l *LOD) resetColumnFields() {
	l.X, l.Z, l.MinY, l.Height, l.MipLevel = 0, 0, 0, 0, 0
	l.CompressionMode = ModeRaw
	l.Columns = l.Columns[:0]
	l.HasData = false
}

// growBuffer grows buf to have room for at least `additional` more
// bytes past its current length, following spec §4.5's capacity
// policy: new = max(1.5*cap, len+additional) + 128KiB.
func growBuffer(buf []byte, additional int) []byte {
	need := len(buf) + additional
	if cap(buf) >= need {
		return buf
	}
	target := cap(buf) + cap(buf)/2 // 1.5x
	if need > target {
		target = need
	}
	target += growthSlack
	grown := make([]byte, len(buf), target)
	copy(grown, buf)
	return grown
}

// shrinkBuffer reallocates buf tightly to its current length when it
// has grown much larger than what's actually used (spec §4.5: shrink
// when cap > 3*len and len > cap/16).
func shrinkBuffer(buf []byte) []byte {
	if cap(buf) > 3*len(buf) && len(buf) > cap(buf)/16 {
		tight := make([]byte, len(buf))
		copy(tight, buf)
		return tight
	}
	return buf
}

// EncodeDatapoint writes d as 8 big-endian bytes at dst[:8].
func EncodeDatapoint(dst []byte, d Datapoint) {
	binary.BigEndian.PutUint64(dst, uint64(d))
}

// DecodeDatapoint reads a Datapoint from the first 8 bytes of b.
func DecodeDatapoint(b []byte) Datapoint {
	return Datapoint(binary.BigEndian.Uint64(b))
}

// ColumnCursor walks a raw (ModeRaw) column stream sequentially,
// since each column's length is only known by reading its 2-byte
// count prefix -- there is no random-access index.
type ColumnCursor struct {
	buf []byte
	pos int
}

// NewColumnCursor returns a cursor over the start of a raw column stream.
func NewColumnCursor(buf []byte) *ColumnCursor { return &ColumnCursor{buf: buf} }

// Next returns the next column's datapoint bytes (length = 8*count,
// a view into the cursor's buffer) or an error if the stream is
// truncated. Callers normally call this exactly GridDim*GridDim times.
func (c *ColumnCursor) Next() ([]byte, error) {
	if c.pos+2 > len(c.buf) {
		return nil, fmt.Errorf("lod: truncated column count at offset %d: %w", c.pos, dh.ErrMalformed)
	}
	count := int(binary.BigEndian.Uint16(c.buf[c.pos : c.pos+2]))
	c.pos += 2
	n := count * 8
	if c.pos+n > len(c.buf) {
		return nil, fmt.Errorf("lod: truncated column data at offset %d: %w", c.pos, dh.ErrMalformed)
	}
	data := c.buf[c.pos : c.pos+n]
	c.pos += n
	return data, nil
}

// DatapointAt decodes the i-th datapoint out of a column's raw bytes
// (as returned by ColumnCursor.Next).
func DatapointAt(col []byte, i int) Datapoint { return DecodeDatapoint(col[i*8:]) }

// DatapointCount returns how many datapoints a column's raw bytes hold.
func DatapointCount(col []byte) int { return len(col) / 8 }
