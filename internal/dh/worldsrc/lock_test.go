package worldsrc

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireWritesSnowmanAndLocks(t *testing.T) {
	dir := t.TempDir()

	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Close()

	data, err := os.ReadFile(filepath.Join(dir, "session.lock"))
	if err != nil {
		t.Fatalf("reading session.lock: %v", err)
	}
	if string(data) != snowman {
		t.Fatalf("session.lock contents = %q, want %q", data, snowman)
	}
}

func TestAcquireFailsWhenAlreadyLocked(t *testing.T) {
	dir := t.TempDir()

	first, err := Acquire(dir)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	defer first.Close()

	if _, err := Acquire(dir); err == nil {
		t.Fatal("expected second Acquire to fail while the first lock is held")
	}
}

func TestAcquireSucceedsAfterClose(t *testing.T) {
	dir := t.TempDir()

	first, err := Acquire(dir)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire after Close: %v", err)
	}
	second.Close()
}
