package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	-- Cached contract metadata
	CREATE TABLE IF NOT EXISTS contracts (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		chain_id BIGINT NOT NULL,
		address TEXT NOT NULL,
		name TEXT,
		abi TEXT NOT NULL,
		abi_hash TEXT NOT NULL,
		is_partial_match BOOLEAN NOT NULL DEFAULT FALSE,
		source TEXT NOT NULL,
		compiler_version TEXT,
		implementation TEXT,
		fetched_at TIMESTAMPTZ NOT NULL,
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
func (s *PostgresStore) UpsertContract(ctx context.Context, c *Contract) error {
	if c.ID == "" {
		c.ID = generateID()
	}
	query := `
		INSERT INTO contracts (id, chain_id, address, name, abi, abi_hash, is_partial_match, source, compiler_version, implementation, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT(chain_id, address) DO UPDATE SET
			name = EXCLUDED.name,
			abi = EXCLUDED.abi,
			abi_hash = EXCLUDED.abi_hash,
			is_partial_match = EXCLUDED.is_partial_match,
			source = EXCLUDED.source,
			compiler_version = EXCLUDED.compiler_version,
			implementation = EXCLUDED.implementation,
			fetched_at = EXCLUDED.fetched_at
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.ChainID, c.Address, c.Name, string(c.ABI), computeHash(c.ABI),
		c.IsPartialMatch, c.Source, c.CompilerVersion, c.Implementation, c.FetchedAt,
	)
	return err
}

// GetContract retrieves the cached record for an address
func (s *PostgresStore) GetContract(ctx context.Context, chainID uint64, address string) (*Contract, error) {
	query := `
		SELECT id, chain_id, address, name, abi, abi_hash, is_partial_match, source, compiler_version, implementation, fetched_at
		FROM contracts
		WHERE chain_id = $1 AND address = $2
	`
	var c Contract
	var abi string
	err := s.db.QueryRowContext(ctx, query, chainID, address).Scan(
		&c.ID, &c.ChainID, &c.Address, &c.Name, &abi, &c.ABIHash,
		&c.IsPartialMatch, &c.Source, &c.CompilerVersion, &c.Implementation, &c.FetchedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.ABI = []byte(abi)
	return &c, nil
}

// DeleteContract removes the cached record for an address
func (s *PostgresStore) DeleteContract(ctx context.Context, chainID uint64, address string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM contracts WHERE chain_id = $1 AND address = $2", chainID, address)
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
func (s *PostgresStore) CountContracts(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM contracts").Scan(&count)
	return count, err
}
