package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/OCharnyshevich/minecraft-server/internal/dh/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lod.sqlite")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenAppliesMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lod.sqlite")

	s1, err := Open(path, nil)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	s1.Close()

	s2, err := Open(path, nil)
	if err != nil {
		t.Fatalf("second Open (re-applying migrations must be a no-op): %v", err)
	}
	defer s2.Close()

	var count int
	if err := s2.db.QueryRow(`SELECT COUNT(1) FROM Schema`).Scan(&count); err != nil {
		t.Fatalf("querying Schema: %v", err)
	}
	if count != len(migrations) {
		t.Fatalf("Schema has %d rows, want %d (migrations applied twice?)", count, len(migrations))
	}
}

func TestSaveIsIdempotentByPosition(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := store.Record{
		DetailLevel:                0,
		PosX:                       3,
		PosZ:                       -2,
		MinY:                       -64,
		Data:                       []byte{1, 2, 3},
		ColumnGenerationStep:       GenerationStepBlob,
		ColumnWorldCompressionMode: WorldCompressionBlob,
		DataFormatVersion:          1,
		CompressionMode:            1,
		CreatedUnixDateTime:        1000,
		LastModifiedUnixDateTime:   1000,
	}
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec.Data = []byte{9, 9, 9}
	rec.LastModifiedUnixDateTime = 2000
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save (update): %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM LodData`).Scan(&count); err != nil {
		t.Fatalf("querying LodData: %v", err)
	}
	if count != 1 {
		t.Fatalf("LodData has %d rows, want 1 (Save should replace by position)", count)
	}

	var data []byte
	var lastModified int64
	if err := s.db.QueryRow(`SELECT Data, LastModifiedUnixDateTime FROM LodData WHERE DetailLevel=0 AND PosX=3 AND PosZ=-2`).
		Scan(&data, &lastModified); err != nil {
		t.Fatalf("querying updated row: %v", err)
	}
	if string(data) != "\x09\x09\x09" {
		t.Fatalf("Data = %v, want updated bytes", data)
	}
	if lastModified != 2000 {
		t.Fatalf("LastModifiedUnixDateTime = %d, want 2000", lastModified)
	}
}

func TestSaveDistinctPositionsCoexist(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i, pos := range [][2]int32{{0, 0}, {1, 0}, {0, 1}} {
		rec := store.Record{
			DetailLevel: 0,
			PosX:        pos[0],
			PosZ:        pos[1],
			Data:        []byte{byte(i)},
		}
		if err := s.Save(ctx, rec); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM LodData`).Scan(&count); err != nil {
		t.Fatalf("querying LodData: %v", err)
	}
	if count != 3 {
		t.Fatalf("LodData has %d rows, want 3", count)
	}
}
