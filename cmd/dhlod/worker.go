package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/OCharnyshevich/minecraft-server/internal/dh/anvil"
	"github.com/OCharnyshevich/minecraft-server/internal/dh/compress"
	"github.com/OCharnyshevich/minecraft-server/internal/dh/config"
	"github.com/OCharnyshevich/minecraft-server/internal/dh/lod"
	"github.com/OCharnyshevich/minecraft-server/internal/dh/palette"
	"github.com/OCharnyshevich/minecraft-server/internal/dh/section"
	"github.com/OCharnyshevich/minecraft-server/internal/dh/store"
	"github.com/OCharnyshevich/minecraft-server/internal/dh/store/sqlite"
)

const (
	groupChunks  = 4 // must match lod package's internal 4x4 chunk-group width
	regionGroups = anvil.RegionDim / groupChunks

	// Fallback MinY/section count for a chunk group where every chunk
	// is ungenerated: the modern (1.18+) overworld's -64..320 height,
	// used only so Build still sees a consistent, complete 4x4 grid
	// (spec §8 S1 generalizes: no data in, no data out).
	fallbackMinY        int32 = -4
	fallbackSectionSize       = 24
)

// worker owns one goroutine's decompression, parse, and build scratch
// for its lifetime (spec §5: "context and LOD values are each owned
// by exactly one thread at a time and are not internally
// synchronised").
type worker struct {
	cfg *config.Config
	db  store.Store
	log *slog.Logger

	anvilCtx    *anvil.Context
	compressCtx *compress.Context
	opts        section.Options

	bundles    [groupChunks][groupChunks]*section.Bundle
	tableCache [groupChunks][groupChunks][]*palette.Table
}

func newWorker(cfg *config.Config, db store.Store, log *slog.Logger) *worker {
	w := &worker{
		cfg:         cfg,
		db:          db,
		log:         log,
		anvilCtx:    anvil.NewContext(),
		compressCtx: compress.NewContext(),
		opts:        section.Options{StrictPaletteIndices: !cfg.LenientIndexClamp},
	}
	for xi := range w.bundles {
		for zi := range w.bundles[xi] {
			w.bundles[xi][zi] = section.NewBundle()
		}
	}
	return w
}

// parseRegionCoords extracts (rx, rz) from a region file's base name,
// "r.<x>.<z>.mca" (spec §6).
func parseRegionCoords(name string) (rx, rz int32, ok bool) {
	if !strings.HasPrefix(name, "r.") || !strings.HasSuffix(name, ".mca") {
		return 0, 0, false
	}
	var x, z int32
	n, err := fmt.Sscanf(name, "r.%d.%d.mca", &x, &z)
	if err != nil || n != 2 {
		return 0, 0, false
	}
	return x, z, true
}

// convertRegion builds a mip-level-0 LOD for every 4x4-chunk group in
// one region file (an 8x8 grid, since a region is 32x32 chunks), then
// mips that whole grid into a single mip-level-3 LOD covering the
// region, persisting every tile (spec §4.5/§4.6).
func (w *worker) convertRegion(ctx context.Context, path string) error {
	rx, rz, ok := parseRegionCoords(filepath.Base(path))
	if !ok {
		return fmt.Errorf("dhlod: %s does not match r.<x>.<z>.mca", path)
	}

	region, err := anvil.Open(path)
	if err != nil {
		return err
	}
	defer region.Close()

	var grid [regionGroups][regionGroups]*lod.LOD
	anyData := false
	for gx := 0; gx < regionGroups; gx++ {
		for gz := 0; gz < regionGroups; gz++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			l, err := w.convertGroup(region, rx, rz, gx, gz)
			if err != nil {
				return fmt.Errorf("region (%d,%d) group (%d,%d): %w", rx, rz, gx, gz, err)
			}
			grid[gx][gz] = l
			if l.HasData {
				anyData = true
			}
			if err := w.persist(ctx, l); err != nil {
				return fmt.Errorf("persisting region (%d,%d) group (%d,%d): %w", rx, rz, gx, gz, err)
			}
		}
	}

	if !anyData {
		w.log.Info("region has no generated chunks, skipping mip", "rx", rx, "rz", rz)
		return nil
	}

	flat := make([][]*lod.LOD, regionGroups)
	for gx := range grid {
		flat[gx] = grid[gx][:]
	}
	regionLOD, err := lod.Mip(flat, w.compressCtx.ToRaw, nil)
	if err != nil {
		return fmt.Errorf("mipping region (%d,%d): %w", rx, rz, err)
	}
	if err := w.persist(ctx, regionLOD); err != nil {
		return fmt.Errorf("persisting region (%d,%d) mip: %w", rx, rz, err)
	}
	return nil
}

// convertGroup decompresses, parses, and flattens the 16 chunks of one
// 4x4 group and builds their mip-level-0 LOD. dst is always a fresh
// *lod.LOD (not pooled): convertRegion keeps every group's tile alive
// through the region's Mip pass, so there is no single scratch
// instance to safely reuse across groups.
//
// A group's Mapping is reset exactly once here, before any chunk is
// flattened into it, and Build is then trusted not to touch Mapping
// itself (see lod.Build's doc comment and DESIGN.md's Open Question
// decisions) -- the ordering that matters is flatten-before-Build,
// never the reverse.
func (w *worker) convertGroup(region *anvil.Region, rx, rz int32, gx, gz int) (*lod.LOD, error) {
	dst := lod.New()

	var chunks [groupChunks][groupChunks]*lod.ChunkInput
	minY := fallbackMinY
	sectionCount := fallbackSectionSize
	haveFallback := false

	for xi := 0; xi < groupChunks; xi++ {
		for zi := 0; zi < groupChunks; zi++ {
			cx := gx*groupChunks + xi
			cz := gz*groupChunks + zi
			view, err := w.anvilCtx.Decompress(region, cx, cz)
			if err != nil {
				return nil, err
			}
			if !view.Present {
				continue
			}

			bundle := w.bundles[xi][zi]
			if err := bundle.Parse(view.Data, w.opts); err != nil {
				return nil, fmt.Errorf("parsing chunk (%d,%d): %w", cx, cz, err)
			}
			if !haveFallback {
				minY = bundle.MinY
				sectionCount = len(bundle.Sections)
				haveFallback = true
			}

			// Flatten while view.Data is still valid: it aliases
			// w.anvilCtx's internal buffer and is invalidated by the
			// next Decompress call on this context (anvil.ChunkView's
			// doc comment). bundle.Parse already copied BlockLight/
			// SkyLight out of view.Data (section.View's doc comment),
			// so only the palette views flattenChunk reads here are
			// subject to this ordering -- light data stays valid for
			// lod.Build even after every other chunk in the group has
			// been decompressed through the same w.anvilCtx.
			tables, err := w.flattenChunk(view.Data, bundle, xi, zi, dst.Mapping)
			if err != nil {
				return nil, fmt.Errorf("flattening chunk (%d,%d): %w", cx, cz, err)
			}
			chunks[xi][zi] = &lod.ChunkInput{Bundle: bundle, Tables: tables}
		}
	}

	// Synthesize an empty, non-"full" chunk for every slot the region
	// never generated, so Build always sees a complete 4x4 grid.
	for xi := 0; xi < groupChunks; xi++ {
		for zi := 0; zi < groupChunks; zi++ {
			if chunks[xi][zi] != nil {
				continue
			}
			bundle := w.bundles[xi][zi]
			bundle.ChunkX = rx*anvil.RegionDim + int32(gx*groupChunks+xi)
			bundle.ChunkZ = rz*anvil.RegionDim + int32(gz*groupChunks+zi)
			bundle.MinY = minY
			bundle.Status = ""
			bundle.Sections = make([]section.View, sectionCount)
			chunks[xi][zi] = &lod.ChunkInput{Bundle: bundle, Tables: make([]*palette.Table, sectionCount)}
		}
	}

	return lod.Build(chunks, dst)
}

// flattenChunk flattens every populated section of bundle into
// mapping, reusing this worker's per-slot Table cache across groups.
// Unpopulated sections (a gap in the chunk's generated height) get
// palette.AirTable instead of a real Flatten call.
func (w *worker) flattenChunk(buf []byte, bundle *section.Bundle, xi, zi int, mapping *palette.Mapping) ([]*palette.Table, error) {
	cache := w.tableCache[xi][zi]
	if len(cache) != len(bundle.Sections) {
		cache = make([]*palette.Table, len(bundle.Sections))
		for i := range cache {
			cache[i] = &palette.Table{}
		}
		w.tableCache[xi][zi] = cache
	}

	for i := range bundle.Sections {
		sec := &bundle.Sections[i]
		if !sec.Populated {
			cache[i] = palette.AirTable(mapping)
			continue
		}
		t, err := palette.Flatten(buf, sec, mapping, cache[i])
		if err != nil {
			return nil, fmt.Errorf("section Y=%d: %w", sec.Y, err)
		}
		cache[i] = t
	}
	return cache, nil
}

// persist recompresses l to the configured on-disk mode, serialises
// its mapping, and saves it as one LodData row (spec §4.7/§4.8).
func (w *worker) persist(ctx context.Context, l *lod.LOD) error {
	if err := w.compressCtx.Recompress(l, w.cfg.CompressionMode); err != nil {
		return fmt.Errorf("recompressing: %w", err)
	}
	mapping, err := compress.EncodeMapping(l.Mapping)
	if err != nil {
		return fmt.Errorf("encoding mapping: %w", err)
	}

	now := time.Now().Unix()
	rec := store.Record{
		DetailLevel:                l.MipLevel,
		PosX:                       l.X,
		PosZ:                       l.Z,
		MinY:                       l.MinY,
		DataChecksum:               0,
		Data:                       l.Columns,
		ColumnGenerationStep:       sqlite.GenerationStepBlob,
		ColumnWorldCompressionMode: sqlite.WorldCompressionBlob,
		Mapping:                    mapping,
		DataFormatVersion:          1,
		CompressionMode:            int32(l.CompressionMode),
		ApplyToParent:              0,
		ApplyToChildren:            0,
		LastModifiedUnixDateTime:   now,
		CreatedUnixDateTime:        now,
	}
	return w.db.Save(ctx, rec)
}
