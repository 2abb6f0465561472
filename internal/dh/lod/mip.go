package lod

import (
	"fmt"

	"github.com/OCharnyshevich/minecraft-server/internal/dh"
)

// Inflate converts an LOD's column stream to ModeRaw in place. The lod
// package has no business importing the compression facade (which
// itself needs to import *LOD to recompress one) -- callers such as
// cmd/dhlod supply a compress.Context's ToRaw method here, breaking the would-be import
// cycle with a function value instead of a direct dependency.
type Inflate func(*LOD) error

// srcCursor walks one input LOD's column top-down, tracking whether
// it has entered its first run yet and exposing the "next transition
// altitude" the altitude-aligned sweep needs (spec §4.6 step 1-2).
type srcCursor struct {
	col   []byte
	count int
	pos   int // -1: not yet entered; 0..count-1: current index; count: exited
}

func newSrcCursor(col []byte) srcCursor {
	return srcCursor{col: col, count: DatapointCount(col), pos: -1}
}

// active reports whether this source still has something to
// contribute. A column with zero datapoints (fully elided as air)
// never enters and is never active.
func (s *srcCursor) active() bool { return s.count > 0 && s.pos < s.count }

// nextY is the altitude at which this source's state next changes:
// the column's top before entry, the bottom of the current run
// otherwise, or -1 once exited (excluded from the sweep).
func (s *srcCursor) nextY(top int32) int32 {
	if s.count == 0 {
		return -1
	}
	if s.pos < 0 {
		return top
	}
	if s.pos >= s.count {
		return -1
	}
	return DatapointAt(s.col, s.pos).MinY()
}

func (s *srcCursor) current() Datapoint { return DatapointAt(s.col, s.pos) }
func (s *srcCursor) advance()           { s.pos++ }

// mipVote is one source column's contribution to a slab's plurality vote.
type mipVote struct {
	id         int32
	block, sky uint8
}

// Mip merges an S×S grid of mip-level-m LODs (row-major, inputs[i][j]
// at grid position i,j) into one mip-level-(m+k) LOD, S = 2^k, per
// spec §4.6. dst, if non-nil, is reused.
//
// Every input must share min_y and height; non-raw inputs are
// re-inflated via inflate first. Open question resolution (see
// DESIGN.md): each of the output's 64×64 columns merges the
// same-index column from every one of the S×S inputs -- the S×S
// grid arrangement describes which sibling LODs feed a single merge,
// not a further spatial subdivision of the 64×64 footprint, which is
// constant at every mip level per spec §3.
func Mip(inputs [][]*LOD, inflate Inflate, dst *LOD) (*LOD, error) {
	s := len(inputs)
	if s == 0 || (s&(s-1)) != 0 {
		return nil, fmt.Errorf("lod: Mip requires a power-of-two side length, got %d: %w", s, dh.ErrInvalidArgument)
	}
	flat := make([]*LOD, 0, s*s)
	for i := 0; i < s; i++ {
		if len(inputs[i]) != s {
			return nil, fmt.Errorf("lod: Mip requires a square S×S grid: %w", dh.ErrInvalidArgument)
		}
		for j := 0; j < s; j++ {
			in := inputs[i][j]
			if in == nil {
				return nil, fmt.Errorf("lod: Mip input (%d,%d) is nil: %w", i, j, dh.ErrInvalidArgument)
			}
			flat = append(flat, in)
		}
	}

	first := flat[0]
	for _, in := range flat[1:] {
		if in.MinY != first.MinY || in.Height != first.Height {
			return nil, fmt.Errorf("lod: Mip inputs must share min_y/height: %w", dh.ErrInvalidArgument)
		}
	}
	for _, in := range flat {
		if in.CompressionMode != ModeRaw {
			if inflate == nil {
				return nil, fmt.Errorf("lod: input is compressed (%s) and no inflate function was supplied: %w", in.CompressionMode, dh.ErrInvalidArgument)
			}
			if err := inflate(in); err != nil {
				return nil, fmt.Errorf("lod: inflating mip input: %w", err)
			}
		}
	}

	if dst == nil {
		dst = New()
	} else {
		dst.Reset()
	}
	dst.X, dst.Z = 0, 0
	dst.MinY = first.MinY
	dst.Height = first.Height
	dst.MipLevel = first.MipLevel + int32(bitsTrailingZeros(s))
	dst.CompressionMode = ModeRaw

	remap := make([][]int32, len(flat))
	for i, in := range flat {
		remap[i] = dst.Mapping.MergeFrom(in.Mapping)
	}

	cursors := make([]*ColumnCursor, len(flat))
	for i, in := range flat {
		cursors[i] = NewColumnCursor(in.Columns)
	}

	cols := make([][]byte, len(flat))
	for row := 0; row < GridDim; row++ {
		for col := 0; col < GridDim; col++ {
			total := 0
			for i := range flat {
				c, err := cursors[i].Next()
				if err != nil {
					return nil, fmt.Errorf("lod: reading source column (%d,%d) of input %d: %w", row, col, i, err)
				}
				cols[i] = c
				total += DatapointCount(c)
			}

			dst.Columns = growBuffer(dst.Columns, 2+8*total)
			countOffset := len(dst.Columns)
			dst.Columns = dst.Columns[:countOffset+2]

			n, err := mergeColumn(dst, cols, first.Height, remap)
			if err != nil {
				return nil, err
			}
			putUint16(dst.Columns[countOffset:countOffset+2], n)
			if n > 0 {
				dst.HasData = true
			}
		}
	}

	dst.Columns = shrinkBuffer(dst.Columns)
	return dst, nil
}

func putUint16(b []byte, v int) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

func bitsTrailingZeros(n int) int {
	k := 0
	for n > 1 {
		n >>= 1
		k++
	}
	return k
}

// mergeColumn runs the altitude-aligned sweep (spec §4.6 steps 2-7)
// over one (row, col) output position's S·S source columns, appending
// the merged run-length datapoints to dst.Columns (capacity must
// already cover the worst case) and returning the count written.
func mergeColumn(dst *LOD, cols [][]byte, height int32, remap [][]int32) (int, error) {
	srcs := make([]srcCursor, len(cols))
	worst := 2
	for i, c := range cols {
		srcs[i] = newSrcCursor(c)
		worst += 8 * srcs[i].count
	}
	dst.Columns = growBuffer(dst.Columns, worst)

	var lastID int32
	var lastMinY, lastHeight int32
	var lastBlock, lastSky uint8
	haveLast := false
	count := 0

	flush := func() {
		if !haveLast {
			return
		}
		d := NewDatapoint(lastBlock, lastSky, lastMinY, lastHeight, lastID)
		off := len(dst.Columns)
		dst.Columns = dst.Columns[:off+8]
		EncodeDatapoint(dst.Columns[off:], d)
		count++
	}

	for {
		anyActive := false
		for i := range srcs {
			if srcs[i].active() {
				anyActive = true
				break
			}
		}
		if !anyActive {
			break
		}

		minY := int32(-1)
		for i := range srcs {
			if !srcs[i].active() {
				continue
			}
			if ny := srcs[i].nextY(height); ny > minY {
				minY = ny
			}
		}
		if minY < 0 {
			break
		}
		for i := range srcs {
			if srcs[i].active() && srcs[i].nextY(height) == minY {
				srcs[i].advance()
			}
		}

		nextMinY := int32(-1)
		for i := range srcs {
			if srcs[i].active() {
				if ny := srcs[i].nextY(height); ny > nextMinY {
					nextMinY = ny
				}
			}
		}
		if nextMinY < 0 {
			nextMinY = 0
		}
		slabHeight := minY - nextMinY
		if slabHeight <= 0 {
			break
		}

		votes := make([]mipVote, 0, len(srcs))
		blockSum, skySum := 0, 0
		for i := range srcs {
			if srcs[i].pos < 0 || srcs[i].pos >= srcs[i].count {
				continue
			}
			d := srcs[i].current()
			id := d.ID()
			if remap[i] != nil && int(id) < len(remap[i]) {
				id = remap[i][id]
			}
			votes = append(votes, mipVote{id: id, block: d.BlockLight(), sky: d.SkyLight()})
			blockSum += int(d.BlockLight())
			skySum += int(d.SkyLight())
		}
		if len(votes) == 0 {
			continue
		}

		bestID := votes[0].id
		bestCount := 0
		for _, v := range votes {
			c := 0
			for _, v2 := range votes {
				if v2.id == v.id {
					c++
				}
			}
			if c > bestCount {
				bestCount = c
				bestID = v.id
			}
		}

		avgBlock := uint8(blockSum / len(cols))
		avgSky := uint8(skySum / len(cols))

		if haveLast && lastID == bestID {
			lastHeight += slabHeight
			lastMinY = nextMinY
		} else {
			flush()
			lastID = bestID
			lastMinY = nextMinY
			lastHeight = slabHeight
			lastBlock = avgBlock
			lastSky = avgSky
			haveLast = true
		}
	}
	flush()
	return count, nil
}
