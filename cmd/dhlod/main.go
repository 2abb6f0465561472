// Command dhlod converts an Anvil Minecraft world into Distant
// Horizons level-of-detail data, following the same
// flag-parse/signal-context/slog shape as the teacher's cmd/server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/OCharnyshevich/minecraft-server/internal/dh/config"
	"github.com/OCharnyshevich/minecraft-server/internal/dh/lod"
)

func main() {
	cfg := config.DefaultConfig()

	var (
		worldPath string
		dbPath    string
		compStr   string
	)
	flag.StringVar(&worldPath, "world", "", "world directory, level.dat path, or remote source (git::, s3::, gcs::, http(s)://)")
	flag.StringVar(&dbPath, "db", "lods.sqlite", "output sqlite database path")
	flag.StringVar(&compStr, "compression", lod.ModeLZ4.String(), "on-disk compression mode: raw, lz4, lzma, zstd")
	flag.IntVar(&cfg.ContextPoolSize, "pool-size", cfg.ContextPoolSize, "number of concurrent decompression/build workers")
	flag.BoolVar(&cfg.LenientIndexClamp, "lenient-index-clamp", cfg.LenientIndexClamp, "clamp out-of-range palette indices instead of rejecting the chunk")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if worldPath == "" {
		log.Error("missing required -world flag")
		os.Exit(1)
	}

	mode, err := parseCompressionMode(compStr)
	if err != nil {
		log.Error("parse compression mode", "error", err)
		os.Exit(1)
	}
	cfg.CompressionMode = mode

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, worldPath, dbPath, log); err != nil {
		log.Error("conversion failed", "error", err)
		os.Exit(1)
	}
}

func parseCompressionMode(s string) (lod.Mode, error) {
	switch s {
	case "raw":
		return lod.ModeRaw, nil
	case "lz4":
		return lod.ModeLZ4, nil
	case "lzma":
		return lod.ModeLZMA, nil
	case "zstd":
		return lod.ModeZstd, nil
	default:
		return 0, errUnknownCompressionMode(s)
	}
}

type errUnknownCompressionMode string

func (e errUnknownCompressionMode) Error() string {
	return "unknown compression mode " + string(e) + " (want raw, lz4, lzma, or zstd)"
}
