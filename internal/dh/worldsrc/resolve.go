// Package worldsrc resolves a world root from a local path or a
// remote source, and takes the exclusive session lock the core
// requires before any region file is read (spec §5/§6, expanded in
// SPEC_FULL.md §4.9).
package worldsrc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	getter "github.com/hashicorp/go-getter"

	"github.com/OCharnyshevich/minecraft-server/internal/dh"
)

// remotePrefixes mirrors go-getter's own forced-getter syntax plus the
// bare URL schemes it auto-detects, so ResolveWorld can decide locally
// whether a fetch is needed before handing off to the library.
var remotePrefixes = []string{
	"s3::", "gcs::", "git::", "hg::",
	"http://", "https://",
}

func looksRemote(path string) bool {
	for _, p := range remotePrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// trimLevelDat drops a trailing level.dat path component (spec §6).
func trimLevelDat(path string) string {
	if filepath.Base(path) == "level.dat" {
		return filepath.Dir(path)
	}
	return path
}

// ResolveWorld resolves path to a local world root directory. Local
// paths are used as-is; paths go-getter recognizes as remote (git::,
// s3::, gcs::, http(s)://, ...) are fetched into a temporary directory
// first, following the same get.Get(dst, src) call the teacher's
// cmd/dmd uses to pull schema data. cleanup removes that temporary
// directory and must always be called once the caller is done with
// root, even on error (it is a no-op then).
func ResolveWorld(ctx context.Context, path string) (root string, cleanup func(), err error) {
	trimmed := trimLevelDat(path)
	noop := func() {}

	if !looksRemote(trimmed) {
		info, statErr := os.Stat(trimmed)
		if statErr != nil {
			if os.IsNotExist(statErr) {
				return "", noop, fmt.Errorf("worldsrc: %s: %w", trimmed, dh.ErrNotExist)
			}
			return "", noop, fmt.Errorf("worldsrc: stat %s: %w", trimmed, dh.ErrIO)
		}
		if !info.IsDir() {
			return "", noop, fmt.Errorf("worldsrc: %s is not a world directory: %w", trimmed, dh.ErrInvalidArgument)
		}
		return trimmed, noop, nil
	}

	dst, err := os.MkdirTemp("", "dhlod-world-*")
	if err != nil {
		return "", noop, fmt.Errorf("worldsrc: create temp dir: %w", dh.ErrIO)
	}
	cleanup = func() { os.RemoveAll(dst) }

	client := &getter.Client{
		Ctx:  ctx,
		Src:  trimmed,
		Dst:  dst,
		Pwd:  dst,
		Mode: getter.ClientModeDir,
	}
	if err := client.Get(); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("worldsrc: fetching %s: %w", trimmed, err)
	}
	return dst, cleanup, nil
}
