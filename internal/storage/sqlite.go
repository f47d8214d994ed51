package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	-- Cached contract metadata
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		chain_id INTEGER NOT NULL,
		address TEXT NOT NULL,
		name TEXT,
		abi TEXT NOT NULL,
		abi_hash TEXT NOT NULL,
		is_partial_match INTEGER NOT NULL DEFAULT 0,
		source TEXT NOT NULL,
		compiler_version TEXT,
		implementation TEXT,
		fetched_at TEXT NOT NULL,
		UNIQUE(chain_id, address)
	);

	-- Indexes
	CREATE INDEX IF NOT EXISTS idx_contracts_lookup ON contracts(chain_id, address);
	CREATE INDEX IF NOT EXISTS idx_contracts_abi_hash ON contracts(abi_hash);
	`

	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.logger.Info("database migrations complete")
	return nil
}

// UpsertContract inserts or replaces the cached record for an address.
// Records arriving without an id get one assigned here.
func (s *SQLiteStore) UpsertContract(ctx context.Context, c *Contract) error {
	if c.ID == "" {
		c.ID = generateID()
	}
	query := `
		INSERT INTO contracts (id, chain_id, address, name, abi, abi_hash, is_partial_match, source, compiler_version, implementation, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chain_id, address) DO UPDATE SET
			name = excluded.name,
			abi = excluded.abi,
			abi_hash = excluded.abi_hash,
			is_partial_match = excluded.is_partial_match,
			source = excluded.source,
			compiler_version = excluded.compiler_version,
			implementation = excluded.implementation,
			fetched_at = excluded.fetched_at
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.ChainID, c.Address, c.Name, string(c.ABI), computeHash(c.ABI),
		c.IsPartialMatch, c.Source, c.CompilerVersion, c.Implementation,
		c.FetchedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// GetContract retrieves the cached record for an address
func (s *SQLiteStore) GetContract(ctx context.Context, chainID uint64, address string) (*Contract, error) {
	query := `
		SELECT id, chain_id, address, name, abi, abi_hash, is_partial_match, source, compiler_version, implementation, fetched_at
		FROM contracts
		WHERE chain_id = ? AND address = ?
	`
	var c Contract
	var abi, fetchedAt string
	err := s.db.QueryRowContext(ctx, query, chainID, address).Scan(
		&c.ID, &c.ChainID, &c.Address, &c.Name, &abi, &c.ABIHash,
		&c.IsPartialMatch, &c.Source, &c.CompilerVersion, &c.Implementation, &fetchedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.ABI = []byte(abi)
	c.FetchedAt, err = time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing fetched_at: %w", err)
	}
	return &c, nil
}

// DeleteContract removes the cached record for an address
func (s *SQLiteStore) DeleteContract(ctx context.Context, chainID uint64, address string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM contracts WHERE chain_id = ? AND address = ?", chainID, address)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountContracts returns the number of cached records
func (s *SQLiteStore) CountContracts(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM contracts").Scan(&count)
	return count, err
}
