package worldsrc

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/OCharnyshevich/minecraft-server/internal/dh"
)

// snowman is the single UTF-8 character written into session.lock
// (spec §5/§6: "one UTF-8 snowman character written then flushed").
const snowman = "☃"

// Lock is a world's session-wide exclusive advisory lock, held for the
// lifetime of the conversion run.
type Lock struct {
	fl   *flock.Flock
	path string
}

// Acquire writes the session.lock marker into root and takes an
// exclusive advisory lock on it (spec §5's world-level session lock).
// Failure to acquire aborts opening the world; the caller must not
// proceed to read any region file without a *Lock.
func Acquire(root string) (*Lock, error) {
	path := filepath.Join(root, "session.lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("worldsrc: opening %s: %w", path, dh.ErrIO)
	}
	_, writeErr := f.WriteString(snowman)
	closeErr := f.Close()
	if writeErr != nil {
		return nil, fmt.Errorf("worldsrc: writing %s: %w", path, dh.ErrIO)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("worldsrc: flushing %s: %w", path, dh.ErrIO)
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("worldsrc: locking %s: %w", path, dh.ErrIO)
	}
	if !locked {
		return nil, fmt.Errorf("worldsrc: %s is already locked by another process: %w", path, dh.ErrInvalidArgument)
	}
	return &Lock{fl: fl, path: path}, nil
}

// Close releases the session lock.
func (l *Lock) Close() error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("worldsrc: unlocking %s: %w", l.path, dh.ErrIO)
	}
	return nil
}
