// Package sqlite implements store.Store on top of mattn/go-sqlite3,
// applying named migration scripts at most once via a Schema table
// (spec §4.8/§9), the same "atomic, idempotent persistence step"
// contract the teacher's internal/server/storage gives file-based
// config/world/player data, just backed by a real database instead of
// JSON-on-disk.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/OCharnyshevich/minecraft-server/internal/dh"
	"github.com/OCharnyshevich/minecraft-server/internal/dh/store"
)

// GenerationStepBlob and WorldCompressionBlob are the two opaque blob
// constants a finished row carries. Each has one fixed value; there is
// no per-compression-mode variant. Distant Horizons' own reader uses these to
// recognize a fully generated column rather than one pending a
// generation step this offline core never performs.
var (
	GenerationStepBlob   = []byte{0x01}
	WorldCompressionBlob = []byte{0x00}
)

const schemaMigration = `
CREATE TABLE IF NOT EXISTS Schema (
	SchemaVersionId INTEGER NOT NULL,
	ScriptName TEXT NOT NULL PRIMARY KEY,
	AppliedDateTime INTEGER NOT NULL
);
`

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{
		name: "0001_create_lod_data",
		sql: `
CREATE TABLE IF NOT EXISTS LodData (
	DetailLevel INTEGER NOT NULL,
	PosX INTEGER NOT NULL,
	PosZ INTEGER NOT NULL,
	MinY INTEGER NOT NULL,
	DataChecksum INTEGER NOT NULL,
	Data BLOB,
	ColumnGenerationStep BLOB,
	ColumnWorldCompressionMode BLOB,
	Mapping BLOB,
	DataFormatVersion INTEGER NOT NULL,
	CompressionMode INTEGER NOT NULL,
	ApplyToParent INTEGER NOT NULL,
	ApplyToChildren INTEGER NOT NULL,
	LastModifiedUnixDateTime INTEGER NOT NULL,
	CreatedUnixDateTime INTEGER NOT NULL,
	PRIMARY KEY (DetailLevel, PosX, PosZ)
);
`,
	},
}

// Store is the sqlite-backed store.Store implementation.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (creating if needed) the sqlite database at path and
// applies any migration not yet recorded in Schema, exactly once.
func Open(path string, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, dh.ErrIO)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: pinging %s: %w", path, dh.ErrIO)
	}

	s := &Store{db: db, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schemaMigration); err != nil {
		return fmt.Errorf("store: creating Schema table: %w", dh.ErrIO)
	}

	for _, m := range migrations {
		var already int
		row := s.db.QueryRow(`SELECT COUNT(1) FROM Schema WHERE ScriptName = ?`, m.name)
		if err := row.Scan(&already); err != nil {
			return fmt.Errorf("store: checking migration %s: %w", m.name, dh.ErrIO)
		}
		if already > 0 {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("store: starting migration %s: %w", m.name, dh.ErrIO)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("store: applying migration %s: %w", m.name, dh.ErrIO)
		}
		if _, err := tx.Exec(
			`INSERT INTO Schema (SchemaVersionId, ScriptName, AppliedDateTime) VALUES (?, ?, ?)`,
			1, m.name, time.Now().Unix(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("store: recording migration %s: %w", m.name, dh.ErrIO)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("store: committing migration %s: %w", m.name, dh.ErrIO)
		}
		if s.log != nil {
			s.log.Info("applied migration", "name", m.name)
		}
	}
	return nil
}

// Save inserts or replaces rec's row, keyed by (DetailLevel, PosX, PosZ).
func (s *Store) Save(ctx context.Context, rec store.Record) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO LodData (
	DetailLevel, PosX, PosZ, MinY, DataChecksum, Data,
	ColumnGenerationStep, ColumnWorldCompressionMode, Mapping,
	DataFormatVersion, CompressionMode, ApplyToParent, ApplyToChildren,
	LastModifiedUnixDateTime, CreatedUnixDateTime
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (DetailLevel, PosX, PosZ) DO UPDATE SET
	MinY = excluded.MinY,
	DataChecksum = excluded.DataChecksum,
	Data = excluded.Data,
	ColumnGenerationStep = excluded.ColumnGenerationStep,
	ColumnWorldCompressionMode = excluded.ColumnWorldCompressionMode,
	Mapping = excluded.Mapping,
	DataFormatVersion = excluded.DataFormatVersion,
	CompressionMode = excluded.CompressionMode,
	ApplyToParent = excluded.ApplyToParent,
	ApplyToChildren = excluded.ApplyToChildren,
	LastModifiedUnixDateTime = excluded.LastModifiedUnixDateTime
`,
		rec.DetailLevel, rec.PosX, rec.PosZ, rec.MinY, rec.DataChecksum, rec.Data,
		rec.ColumnGenerationStep, rec.ColumnWorldCompressionMode, rec.Mapping,
		rec.DataFormatVersion, rec.CompressionMode, rec.ApplyToParent, rec.ApplyToChildren,
		rec.LastModifiedUnixDateTime, rec.CreatedUnixDateTime,
	)
	if err != nil {
		return fmt.Errorf("store: saving LOD (%d,%d,%d): %w", rec.DetailLevel, rec.PosX, rec.PosZ, dh.ErrIO)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: closing database: %w", dh.ErrIO)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
