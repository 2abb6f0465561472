package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/OCharnyshevich/minecraft-server/internal/dh/config"
	"github.com/OCharnyshevich/minecraft-server/internal/dh/store/sqlite"
	"github.com/OCharnyshevich/minecraft-server/internal/dh/worldsrc"
)

// run resolves the world, takes its session lock, opens the output
// database, and fans region conversion out across cfg.ContextPoolSize
// worker goroutines, each with its own decompression/build scratch
// (spec §5). errgroup mirrors the "N contexts, N threads" model the
// spec describes, cancelling every worker as soon as one fails.
func run(ctx context.Context, cfg *config.Config, worldPath, dbPath string, log *slog.Logger) error {
	root, cleanup, err := worldsrc.ResolveWorld(ctx, worldPath)
	if err != nil {
		return fmt.Errorf("resolving world: %w", err)
	}
	defer cleanup()

	lock, err := worldsrc.Acquire(root)
	if err != nil {
		return fmt.Errorf("acquiring session lock: %w", err)
	}
	defer lock.Close()

	db, err := sqlite.Open(dbPath, log)
	if err != nil {
		return fmt.Errorf("opening output database: %w", err)
	}
	defer db.Close()

	regions, err := listRegions(root)
	if err != nil {
		return err
	}
	log.Info("starting conversion", "regions", len(regions), "workers", cfg.ContextPoolSize)

	jobs := make(chan string)
	g, gctx := errgroup.WithContext(ctx)

	workers := cfg.ContextPoolSize
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			w := newWorker(cfg, db, log)
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case path, ok := <-jobs:
					if !ok {
						return nil
					}
					if err := w.convertRegion(gctx, path); err != nil {
						return fmt.Errorf("converting %s: %w", path, err)
					}
				}
			}
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for _, path := range regions {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case jobs <- path:
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("conversion complete")
	return nil
}

// listRegions returns every "r.<x>.<z>.mca" file under root/region, in
// the order os.ReadDir yields them: filesystem-directory order, not
// sorted, per spec §5 ("callers that require a deterministic order
// must sort").
func listRegions(root string) ([]string, error) {
	dir := filepath.Join(root, "region")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, _, ok := parseRegionCoords(e.Name()); ok {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}
