// Package config holds the small set of CLI-tunable defaults the
// conversion pipeline needs, following the teacher's "defaults struct
// plus flag override" shape (internal/server/config.Config /
// DefaultConfig).
package config

import "github.com/OCharnyshevich/minecraft-server/internal/dh/lod"

// Config holds the pipeline's tunable defaults (spec §2/§10).
type Config struct {
	// CompressionMode is the on-disk compression_mode new LODs are
	// recompressed to before persistence (spec §4.7).
	CompressionMode lod.Mode

	// ContextPoolSize is the number of anvil.Context/compress.Context
	// pairs the worker pool runs concurrently, one per goroutine (spec
	// §4.2's "16 by default", generalized to the whole pipeline's
	// concurrency model in §5).
	ContextPoolSize int

	// LenientIndexClamp, when true, lets section.Options.StrictPaletteIndices
	// be false: out-of-range packed indices clamp to the palette's last
	// entry instead of failing (the original's release-build behavior,
	// spec §10).
	LenientIndexClamp bool
}

// DefaultConfig returns the pipeline's default settings.
func DefaultConfig() *Config {
	return &Config{
		CompressionMode: lod.ModeLZ4,
		ContextPoolSize: 16,
	}
}
