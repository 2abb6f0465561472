// Package section turns one decompressed chunk's NBT into a bundle of
// per-section views: block-state and biome palettes, their decoded
// index arrays, and light data. It never materializes a generic NBT
// tree — it borrows Payload spans from the nbt package and decodes
// only the handful of fields the LOD builder and palette flattener
// need.
package section

import (
	"fmt"

	"github.com/OCharnyshevich/minecraft-server/internal/dh"
	"github.com/OCharnyshevich/minecraft-server/internal/dh/byteio"
	"github.com/OCharnyshevich/minecraft-server/internal/dh/nbt"
)

const (
	// BlockVolume is the number of block-state voxels in one section (16x16x16).
	BlockVolume = 16 * 16 * 16
	// BiomeVolume is the number of biome cells in one section (4x4x4).
	BiomeVolume = 4 * 4 * 4

	minBitsBlock = 4
	minBitsBiome = 1

	lightArrayLen = 2048

	// MinDataVersion is the earliest DataVersion this core understands
	// (1.16's "no split" packed-long-array scheme, spec §4.1). Worlds
	// older than this pack block states differently; Parse refuses
	// rather than silently misreading them.
	MinDataVersion = 2529
)

// ErrUnsupportedDataVersion is returned by Parse when a chunk's
// DataVersion predates the no-split packing scheme this core decodes.
var ErrUnsupportedDataVersion = fmt.Errorf("section: DataVersion below %d (no-split packing): %w", MinDataVersion, dh.ErrUnsupportedCompression)

// Options tunes section parsing behavior that the original C
// implementation selected at compile time via debug/release builds.
type Options struct {
	// StrictPaletteIndices, when true (the default a caller should
	// choose unless they pass Options{} by mistake), rejects a chunk
	// whose packed index array decodes an out-of-range palette index
	// instead of silently clamping it to the last palette entry.
	StrictPaletteIndices bool
}

// View is a borrowed view into one chunk section's NBT. A View with
// Populated == false represents a gap: no section was parsed at this
// world-Y slot since reset() cleared it for reuse (reset keeps the
// slices' capacity, so they are empty rather than nil).
type View struct {
	Y         int32
	Populated bool

	BlockPalette nbt.Payload // TagList of TagCompound{Name, Properties}
	BiomePalette nbt.Payload // TagList of TagString

	// BlockIndices and BiomeIndices are nil when the corresponding
	// palette has <= 1 entry: every voxel implicitly selects the sole
	// entry, so there is nothing to decode.
	BlockIndices []uint16 // len BlockVolume when non-nil
	BiomeIndices []uint16 // len BiomeVolume when non-nil

	// BlockLight and SkyLight are copies, not views: unlike BlockPalette/
	// BiomePalette (which are consumed by palette.Flatten immediately
	// after Parse, before the owning Context's buffer can be
	// overwritten), these are read later by lod.Build, after every
	// chunk in a 4x4 group has been decompressed through the same
	// Context. Aliasing buf here would have every chunk but the last
	// read light nibbles out of some other chunk's bytes.
	BlockLight []byte // len lightArrayLen, or empty if absent
	SkyLight   []byte // len lightArrayLen, or empty if absent
}

func (v *View) reset() {
	v.Y = 0
	v.Populated = false
	v.BlockPalette = nbt.Payload{}
	v.BiomePalette = nbt.Payload{}
	v.BlockIndices = v.BlockIndices[:0]
	v.BiomeIndices = v.BiomeIndices[:0]
	v.BlockLight = v.BlockLight[:0]
	v.SkyLight = v.SkyLight[:0]
}

// copyBytes overwrites reuse with a copy of src, reusing reuse's
// backing array when it already has enough capacity.
func copyBytes(reuse, src []byte) []byte {
	if cap(reuse) < len(src) {
		reuse = make([]byte, len(src))
	} else {
		reuse = reuse[:len(src)]
	}
	copy(reuse, src)
	return reuse
}

// Bundle is one chunk's section views plus the chunk-level fields the
// LOD builder needs. Its Sections slice retains capacity across
// repeated Parse calls so repeated conversion of many chunks doesn't
// reallocate per chunk.
type Bundle struct {
	ChunkX, ChunkZ int32
	MinY           int32 // world section-Y of the lowest section slot
	Status         string
	DataVersion    int32

	Sections []View // indexed by (section world Y) - MinY
}

// NewBundle returns an empty, ready-to-reuse Bundle.
func NewBundle() *Bundle { return &Bundle{} }

// resize grows (or reuses) b.Sections to exactly n entries, resetting
// every slot so stale palettes/indices from a previous Parse never
// leak into a chunk that has fewer sections.
func (b *Bundle) resize(n int) {
	if cap(b.Sections) >= n {
		b.Sections = b.Sections[:n]
	} else {
		b.Sections = make([]View, n)
	}
	for i := range b.Sections {
		b.Sections[i].reset()
	}
}

// Parse decodes chunk NBT buf into b, overwriting its previous
// contents. buf must be the decompressed chunk bytes from
// anvil.ChunkView.Data (or any equivalent byte-identical buffer); it
// is only read, never retained past Parse's return, but the Payload
// spans b's Sections entries hold are only valid as long as buf is.
func (b *Bundle) Parse(buf []byte, opts Options) error {
	if len(buf) < 3 {
		return fmt.Errorf("section: chunk buffer too small (%d bytes): %w", len(buf), dh.ErrMalformed)
	}
	root, err := nbt.RootCompound(buf)
	if err != nil {
		return fmt.Errorf("section: parsing root compound: %w", err)
	}

	var xPos, yPos, zPos, status, sections, dataVersion nbt.Payload
	if err := nbt.FindNamed(buf, root, []nbt.Field{
		{Name: "xPos", Want: nbt.TagAnyNumber, Out: &xPos},
		{Name: "yPos", Want: nbt.TagAnyNumber, Out: &yPos},
		{Name: "zPos", Want: nbt.TagAnyNumber, Out: &zPos},
		{Name: "Status", Want: nbt.TagString, Out: &status},
		{Name: "sections", Want: nbt.TagList, Out: &sections},
		{Name: "DataVersion", Want: nbt.TagAnyNumber, Out: &dataVersion},
	}); err != nil {
		return fmt.Errorf("section: scanning chunk root: %w", err)
	}
	if xPos.Empty() || yPos.Empty() || zPos.Empty() || status.Empty() || sections.Empty() {
		return fmt.Errorf("section: chunk root missing a required field: %w", dh.ErrMalformed)
	}

	if !dataVersion.Empty() {
		dv, err := nbt.AnyIntegerValue(buf, dataVersion)
		if err != nil {
			return fmt.Errorf("section: reading DataVersion: %w", err)
		}
		if dv < MinDataVersion {
			return ErrUnsupportedDataVersion
		}
		b.DataVersion = int32(dv)
	}

	xv, err := nbt.AnyIntegerValue(buf, xPos)
	if err != nil {
		return fmt.Errorf("section: reading xPos: %w", err)
	}
	yv, err := nbt.AnyIntegerValue(buf, yPos)
	if err != nil {
		return fmt.Errorf("section: reading yPos: %w", err)
	}
	zv, err := nbt.AnyIntegerValue(buf, zPos)
	if err != nil {
		return fmt.Errorf("section: reading zPos: %w", err)
	}
	statusStr, err := nbt.StringValue(buf, status)
	if err != nil {
		return fmt.Errorf("section: reading Status: %w", err)
	}

	b.ChunkX = int32(xv)
	b.ChunkZ = int32(zv)
	b.MinY = int32(yv)
	b.Status = statusStr

	_, count, err := nbt.ListLen(buf, sections)
	if err != nil {
		return fmt.Errorf("section: reading sections list header: %w", err)
	}
	b.resize(int(count))

	walkErr := nbt.ListElements(buf, sections, func(_ int, p nbt.Payload) bool {
		if p.Type != nbt.TagCompound {
			err = fmt.Errorf("section: sections[] element is %s, not Compound: %w", p.Type, dh.ErrMalformed)
			return false
		}
		var y nbt.Payload
		if e := nbt.FindNamed(buf, p, []nbt.Field{{Name: "Y", Want: nbt.TagAnyNumber, Out: &y}}); e != nil {
			err = fmt.Errorf("section: scanning section compound: %w", e)
			return false
		}
		if y.Empty() {
			return true
		}
		yv, e := nbt.AnyIntegerValue(buf, y)
		if e != nil {
			err = fmt.Errorf("section: reading section Y: %w", e)
			return false
		}
		slot := int(int32(yv) - b.MinY)
		if slot < 0 || slot >= len(b.Sections) {
			return true // outside [min_y, min_y+section_count): skip per spec §4.3
		}
		if e := parseOne(buf, p, int32(yv), &b.Sections[slot], opts); e != nil {
			err = e
			return false
		}
		return true
	})
	if walkErr != nil {
		return fmt.Errorf("section: walking sections list: %w", walkErr)
	}
	if err != nil {
		return err
	}
	return nil
}

// parseOne decodes a single section compound into dst.
func parseOne(buf []byte, compound nbt.Payload, y int32, dst *View, opts Options) error {
	var blockStates, biomes, blockLight, skyLight nbt.Payload
	if err := nbt.FindNamed(buf, compound, []nbt.Field{
		{Name: "block_states", Want: nbt.TagCompound, Out: &blockStates},
		{Name: "biomes", Want: nbt.TagCompound, Out: &biomes},
		{Name: "BlockLight", Want: nbt.TagByteArray, Out: &blockLight},
		{Name: "SkyLight", Want: nbt.TagByteArray, Out: &skyLight},
	}); err != nil {
		return fmt.Errorf("section: scanning section Y=%d: %w", y, err)
	}

	dst.Y = y
	dst.Populated = true

	if !blockStates.Empty() {
		palette, indices, err := parsePaletted(buf, blockStates, BlockVolume, minBitsBlock, dst.BlockIndices, opts)
		if err != nil {
			return fmt.Errorf("section: Y=%d block_states: %w", y, err)
		}
		dst.BlockPalette = palette
		dst.BlockIndices = indices
	}
	if !biomes.Empty() {
		palette, indices, err := parsePaletted(buf, biomes, BiomeVolume, minBitsBiome, dst.BiomeIndices, opts)
		if err != nil {
			return fmt.Errorf("section: Y=%d biomes: %w", y, err)
		}
		dst.BiomePalette = palette
		dst.BiomeIndices = indices
	}
	if !blockLight.Empty() {
		if b, err := nbt.ByteArrayValue(buf, blockLight); err == nil && len(b) == lightArrayLen {
			dst.BlockLight = copyBytes(dst.BlockLight, b)
		}
	}
	if !skyLight.Empty() {
		if b, err := nbt.ByteArrayValue(buf, skyLight); err == nil && len(b) == lightArrayLen {
			dst.SkyLight = copyBytes(dst.SkyLight, b)
		}
	}
	return nil
}

// parsePaletted decodes a "palette (+ optional data)" compound shared
// by block_states and biomes (spec §4.3). reuse, if non-nil and long
// enough, is reused as the decoded index slice's backing array.
func parsePaletted(buf []byte, compound nbt.Payload, volume, minBits int, reuse []uint16, opts Options) (nbt.Payload, []uint16, error) {
	var palette, data nbt.Payload
	if err := nbt.FindNamed(buf, compound, []nbt.Field{
		{Name: "palette", Want: nbt.TagList, Out: &palette},
		{Name: "data", Want: nbt.TagLongArray, Out: &data},
	}); err != nil {
		return nbt.Payload{}, nil, err
	}
	if palette.Empty() {
		return nbt.Payload{}, nil, fmt.Errorf("missing palette: %w", dh.ErrMalformed)
	}
	_, paletteLen, err := nbt.ListLen(buf, palette)
	if err != nil {
		return nbt.Payload{}, nil, err
	}
	limit := 4096
	if volume == BiomeVolume {
		limit = 64
	}
	if int(paletteLen) > limit {
		return nbt.Payload{}, nil, fmt.Errorf("palette size %d exceeds limit %d: %w", paletteLen, limit, dh.ErrMalformed)
	}
	if paletteLen <= 1 {
		return palette, nil, nil
	}
	if data.Empty() {
		return nbt.Payload{}, nil, fmt.Errorf("palette has %d entries but no data array: %w", paletteLen, dh.ErrMalformed)
	}
	packed, err := nbt.LongArrayValue(buf, data)
	if err != nil {
		return nbt.Payload{}, nil, err
	}
	bits := byteio.BitsForPalette(int(paletteLen), minBits)

	var out []uint16
	if cap(reuse) >= volume {
		out = reuse[:volume]
	} else {
		out = make([]uint16, volume)
	}
	if !byteio.UnpackLongArrayNoSplit(packed, volume, bits, int(paletteLen), opts.StrictPaletteIndices, out) {
		return nbt.Payload{}, nil, fmt.Errorf("packed index array decode failed (bits=%d, palette=%d): %w", bits, paletteLen, dh.ErrMalformed)
	}
	return palette, out, nil
}
