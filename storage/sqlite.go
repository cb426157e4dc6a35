// File: storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"dao-governance/models"
)

//go:embed schema.sql
var schemaSQL string

// DefaultSlotSize is the pre-allocated account slot size in bytes. Slots are
// allocated larger than the payload so entities can grow in place; the codec
// tolerates the resulting zero padding.
const DefaultSlotSize = 4096

// SQLiteStore is a durable AccountStore backed by a single SQLite file.
type SQLiteStore struct {
	db       *sql.DB
	slotSize int
}

// OpenSQLiteStore opens (or creates) the account database under basePath.
// slotSize <= 0 disables slot padding.
func OpenSQLiteStore(basePath string, slotSize int) (*SQLiteStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	dbPath := filepath.Join(basePath, "accounts.db")
	db, err := sql.Open("sqlite", dbPath+
		"?_pragma=journal_mode(WAL)"+
		"&_pragma=busy_timeout(5000)"+
		"&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite handles concurrent writers poorly; keep the pool small.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, slotSize: slotSize}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, addr models.Address) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM accounts WHERE address = ?`,
		addr.String()).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", addr, err)
	}
	return data, nil
}

func (s *SQLiteStore) Put(ctx context.Context, addr models.Address, data []byte) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (address, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(address) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		addr.String(), s.pad(data), now)
	if err != nil {
		return fmt.Errorf("store account %s: %w", addr, err)
	}
	return nil
}

// PutBatch writes all records in one transaction so a multi-entity
// transition is never half persisted.
func (s *SQLiteStore) PutBatch(ctx context.Context, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, rec := range records {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (address, data, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(address) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
			rec.Address.String(), s.pad(rec.Data), now)
		if err != nil {
			return fmt.Errorf("store account %s: %w", rec.Address, err)
		}
	}
	return tx.Commit()
}

// pad zero-fills the payload up to the slot size, mirroring how the ledger
// pre-allocates account space.
func (s *SQLiteStore) pad(data []byte) []byte {
	if s.slotSize <= 0 || len(data) >= s.slotSize {
		out := make([]byte, len(data))
		copy(out, data)
		return out
	}
	out := make([]byte, s.slotSize)
	copy(out, data)
	return out
}
