package lod

import (
	"encoding/binary"
	"fmt"

	"github.com/OCharnyshevich/minecraft-server/internal/dh"
	"github.com/OCharnyshevich/minecraft-server/internal/dh/palette"
	"github.com/OCharnyshevich/minecraft-server/internal/dh/section"
)

const (
	chunkDim   = 16
	groupDim   = 4 // 4x4 chunks feed one mip-0 LOD
	fullStatus = "minecraft:full"
)

// ChunkInput pairs one parsed chunk with its per-section palette id
// tables (palette.Flatten's output, one Table per Bundle.Sections
// entry). Every populated section must have a non-nil Table; a slot
// the section parser never filled in (section.View.Populated ==
// false, e.g. above the world's generated height) must still get a
// Table -- typically one whose sole entry is "minecraft:air" -- so
// Build never has to guess at an id for it.
type ChunkInput struct {
	Bundle *section.Bundle
	Tables []*palette.Table
}

// Build constructs a mip-level-0 LOD from a 4x4 group of chunks,
// arranged row-major by chunk_x then chunk_z (chunks[cxi][czi]), per
// spec §4.5. dst, if non-nil, is reused (its Columns buffer retains
// capacity); pass nil to allocate a fresh LOD.
//
// dst.X/dst.Z are in LOD-grid coordinates, one tile per 4x4 chunk
// group, not the chunk coordinate chunks[0][0] carries: they are
// chunks[0][0]'s chunk_x/chunk_z divided by groupDim, matching the
// original's lod->x = chunks->chunk_x / 4.
//
// Build does not touch dst.Mapping. Every ChunkInput's Tables must
// already be flattened (palette.Flatten/AirTable) against dst.Mapping
// before this is called, since their ids are only meaningful there;
// callers that want a clean Mapping per group call dst.Mapping.Reset()
// themselves before flattening, exactly once per group.
func Build(chunks [groupDim][groupDim]*ChunkInput, dst *LOD) (*LOD, error) {
	if dst == nil {
		dst = New()
	} else {
		dst.resetColumnFields()
	}

	first := chunks[0][0]
	if first == nil {
		return nil, fmt.Errorf("lod: Build requires chunks[0][0] to be set: %w", dh.ErrInvalidArgument)
	}
	sectionCount := len(first.Bundle.Sections)
	minY := first.Bundle.MinY

	for cxi := 0; cxi < groupDim; cxi++ {
		for czi := 0; czi < groupDim; czi++ {
			c := chunks[cxi][czi]
			if c == nil {
				return nil, fmt.Errorf("lod: Build requires all %d chunk slots populated: %w", groupDim*groupDim, dh.ErrInvalidArgument)
			}
			if c.Bundle.MinY != minY || len(c.Bundle.Sections) != sectionCount {
				return nil, fmt.Errorf("lod: chunk (%d,%d) MinY/section-count mismatch with chunk (0,0): %w", cxi, czi, dh.ErrMalformed)
			}
			if len(c.Tables) != sectionCount {
				return nil, fmt.Errorf("lod: chunk (%d,%d) has %d tables, want %d: %w", cxi, czi, len(c.Tables), sectionCount, dh.ErrInvalidArgument)
			}
		}
	}

	dst.X = first.Bundle.ChunkX / groupDim
	dst.Z = first.Bundle.ChunkZ / groupDim
	dst.MinY = minY * 16
	dst.Height = int32(sectionCount) * 16
	dst.MipLevel = 0
	dst.CompressionMode = ModeRaw

	worstCase := 2 + 8*sectionCount*16

	for blockX := 0; blockX < GridDim; blockX++ {
		for blockZ := 0; blockZ < GridDim; blockZ++ {
			cxi, czi := blockX/chunkDim, blockZ/chunkDim
			lx, lz := blockX%chunkDim, blockZ%chunkDim
			chunk := chunks[cxi][czi]

			dst.Columns = growBuffer(dst.Columns, worstCase)
			countOffset := len(dst.Columns)
			dst.Columns = dst.Columns[:countOffset+2] // reserve the count slot

			n := 0
			if chunk.Bundle.Status == fullStatus {
				var err error
				n, err = emitColumn(dst, chunk, lx, lz)
				if err != nil {
					return nil, err
				}
			}
			binary.BigEndian.PutUint16(dst.Columns[countOffset:countOffset+2], uint16(n))
			if n > 0 {
				dst.HasData = true
			}
		}
	}

	dst.Columns = shrinkBuffer(dst.Columns)
	return dst, nil
}

// lightNibble extracts the 4-bit light value for voxel index out of a
// 2048-byte nibble array, or 0 if the array is absent (spec §4.5).
// section.View resets BlockLight/SkyLight to a zero-length slice
// (not nil) between Parse calls, so length, not nilness, is the
// absence check.
func lightNibble(arr []byte, index int) uint8 {
	if len(arr) == 0 {
		return 0
	}
	b := arr[index/2]
	shift := uint((index & 1) * 4)
	return (b >> shift) & 0xF
}

// emitColumn writes one (lx, lz) column's run-length-encoded
// datapoints into dst.Columns (which must already have worst-case
// capacity reserved by the caller) and returns the datapoint count.
func emitColumn(dst *LOD, chunk *ChunkInput, lx, lz int) (int, error) {
	var last Datapoint
	haveLast := false
	count := 0

	flush := func() {
		if !haveLast || last.Empty() {
			return
		}
		off := len(dst.Columns)
		dst.Columns = dst.Columns[:off+8]
		EncodeDatapoint(dst.Columns[off:], last)
		count++
	}

	sectionCount := len(chunk.Bundle.Sections)
	for si := sectionCount - 1; si >= 0; si-- {
		sec := &chunk.Bundle.Sections[si]
		table := chunk.Tables[si]
		if table == nil {
			return 0, fmt.Errorf("lod: section slot %d has no palette table: %w", si, dh.ErrInvalidArgument)
		}

		for by := 15; by >= 0; by-- {
			index := by*256 + lz*16 + lx
			biomeIndex := (by/4)*16 + (lz/4)*4 + (lx / 4)

			// Like the light arrays, a slot cleared by section.View's
			// reset holds zero-length (not nil) index slices.
			blockIdx := 0
			if len(sec.BlockIndices) > 0 {
				blockIdx = int(sec.BlockIndices[index])
			}
			biomeIdx := 0
			if len(sec.BiomeIndices) > 0 {
				biomeIdx = int(sec.BiomeIndices[biomeIndex])
			}
			id := table.Get(biomeIdx, blockIdx)

			sky := lightNibble(sec.SkyLight, index)
			block := lightNibble(sec.BlockLight, index)

			// Relative to dst.MinY (= minY*16), world Y at (si, by) is
			// always si*16+by regardless of whether this slot was
			// populated in the source NBT -- the section array is
			// sorted by world Y, so position alone fixes the offset.
			relY := int32(si*16 + by)

			if haveLast && last.ID() == id {
				last = NewDatapoint(last.BlockLight(), last.SkyLight(), relY, last.Height()+1, id)
				continue
			}
			flush()
			last = NewDatapoint(block, sky, relY, 1, id)
			haveLast = true
		}
	}
	flush()
	return count, nil
}
