// Package anvil parses Minecraft "Anvil" region files: the 8 KiB
// header of per-chunk sector offsets and timestamps, and the
// compressed chunk frames stored in the 4096-byte sectors that
// follow. It never writes region files — only the read path matters
// for converting a world into Distant-Horizons LODs.
package anvil

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/OCharnyshevich/minecraft-server/internal/dh"
)

const (
	// RegionDim is the number of chunks along one side of a region file.
	RegionDim = 32

	sectorSize = 4096
	headerSize = 2 * sectorSize // location table + timestamp table
)

// Location is one region header entry: the sector offset and sector
// count of a chunk's frame. A zero Location (Sectors == 0) means the
// chunk has never been generated.
type Location struct {
	Offset  uint32 // in sectorSize units
	Sectors uint8
}

// Present reports whether the chunk has a frame on disk.
func (l Location) Present() bool { return l.Offset >= 2 && l.Sectors > 0 }

// Region is a read-only view over one .mca file's header: the 1024
// (offset, sector_count) location entries and 1024 mtimes, indexed by
// region-local chunk coordinates. Actual chunk bytes are read lazily
// per call through a Context, not held here.
type Region struct {
	file      *os.File
	locations [1024]Location
	mtimes    [1024]uint32
}

// Open reads a region file's header and returns a Region ready for
// chunk lookups. The caller must Close it when done.
func Open(path string) (*Region, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("anvil: open %s: %w", path, dh.ErrNotExist)
		}
		return nil, fmt.Errorf("anvil: open %s: %w", path, dh.ErrIO)
	}
	r := &Region{file: f}
	if err := r.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Region) readHeader() error {
	buf := make([]byte, headerSize)
	if _, err := r.file.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("anvil: reading header of %s: %w", r.file.Name(), dh.ErrIO)
	}
	for i := 0; i < 1024; i++ {
		entry := binary.BigEndian.Uint32(buf[i*4 : i*4+4])
		r.locations[i] = Location{Offset: entry >> 8, Sectors: uint8(entry)}
	}
	for i := 0; i < 1024; i++ {
		off := sectorSize + i*4
		r.mtimes[i] = binary.BigEndian.Uint32(buf[off : off+4])
	}
	return nil
}

// Close releases the underlying file handle.
func (r *Region) Close() error {
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("anvil: close %s: %w", r.file.Name(), dh.ErrIO)
	}
	return nil
}

// index returns a chunk's position in the location/mtime tables for
// region-local coordinates cx, cz in [0, RegionDim).
func index(cx, cz int) (int, error) {
	if cx < 0 || cx >= RegionDim || cz < 0 || cz >= RegionDim {
		return 0, fmt.Errorf("anvil: chunk (%d,%d) out of region bounds: %w", cx, cz, dh.ErrInvalidArgument)
	}
	return cx + RegionDim*cz, nil
}

// LocationAt returns the header entry for region-local chunk (cx, cz).
// A chunk with Present() == false has not been generated.
func (r *Region) LocationAt(cx, cz int) (Location, error) {
	i, err := index(cx, cz)
	if err != nil {
		return Location{}, err
	}
	return r.locations[i], nil
}

// MTimeAt returns the last-modified Unix timestamp recorded for
// region-local chunk (cx, cz).
func (r *Region) MTimeAt(cx, cz int) (uint32, error) {
	i, err := index(cx, cz)
	if err != nil {
		return 0, err
	}
	return r.mtimes[i], nil
}

// ReadFrame reads the raw chunk frame (length prefix + compression
// type byte + compressed payload) for region-local (cx, cz), or a nil
// slice if the chunk is absent. It performs no decompression; see
// Context.Decompress.
func (r *Region) ReadFrame(cx, cz int) ([]byte, error) {
	loc, err := r.LocationAt(cx, cz)
	if err != nil {
		return nil, err
	}
	if !loc.Present() {
		return nil, nil
	}
	header := make([]byte, 5)
	frameOffset := int64(loc.Offset) * sectorSize
	if _, err := r.file.ReadAt(header, frameOffset); err != nil {
		return nil, fmt.Errorf("anvil: reading chunk (%d,%d) frame header: %w", cx, cz, dh.ErrIO)
	}
	length := binary.BigEndian.Uint32(header[0:4])
	if length == 0 {
		return nil, nil
	}
	maxLen := uint32(loc.Sectors) * sectorSize
	if length > maxLen {
		return nil, fmt.Errorf("anvil: chunk (%d,%d) frame length %d exceeds %d allocated sectors: %w", cx, cz, length, loc.Sectors, dh.ErrMalformed)
	}
	frame := make([]byte, 4+length)
	if _, err := r.file.ReadAt(frame, frameOffset); err != nil {
		return nil, fmt.Errorf("anvil: reading chunk (%d,%d) frame: %w", cx, cz, dh.ErrIO)
	}
	return frame, nil
}
