/*
Package sqlite provides the SQLite-backed snapshot slot.

PURPOSE:
  Durable persistence for the ledger snapshot. The whole dataset is one
  JSON payload written to a single keyed row, so a restart recovers the
  exact in-memory state the last successful save produced.

SCHEMA:
  snapshots: slot TEXT PRIMARY KEY, payload BLOB, saved_at TEXT

  One row per slot key. Saves are UPSERTs; the previous payload is only
  replaced once the new write commits.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Readers don't block the writer
  - Better crash recovery

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The ledger store serializes
  writes anyway; the mutex makes the slot safe on its own.

USAGE:
  slot, err := sqlite.New("./zapgo.db", "ledger.v1")
  if err != nil {
      log.Fatal(err)
  }
  defer slot.Close()

  store := ledger.NewStore(slot)

MIGRATION:
  Schema is auto-migrated on New(). Payloads themselves carry no schema
  version; the ledger backfills missing collections on load.

SEE ALSO:
  - ledger/store.go:        snapshot save/load and backfill
  - ledger/store/memory.go: in-memory slot for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Slot implements ledger.SnapshotSlot on a SQLite database.
type Slot struct {
	db  *sql.DB
	key string
	mu  sync.RWMutex
}

// New opens (or creates) the database at dbPath and prepares the slot
// under the given key. Use ":memory:" for an in-memory database.
func New(dbPath, key string) (*Slot, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	slot := &Slot{db: db, key: key}
	if err := slot.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return slot, nil
}

// Close closes the database connection.
func (s *Slot) Close() error {
	return s.db.Close()
}

func (s *Slot) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		slot TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		saved_at TEXT NOT NULL
	);`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns the stored payload, or ok=false when the slot is empty.
func (s *Slot) Load(ctx context.Context) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE slot = ?`, s.key,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return payload, true, nil
}

// Save replaces the slot's payload atomically.
func (s *Slot) Save(ctx context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (slot, payload, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		s.key, payload, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Clear removes the slot's payload. Loading afterwards reports empty.
func (s *Slot) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE slot = ?`, s.key)
	if err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}
	return nil
}
