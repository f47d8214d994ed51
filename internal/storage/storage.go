package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/verimeta/verimeta/internal/config"
)

// ContractStore handles cached contract metadata operations
type ContractStore interface {
	UpsertContract(ctx context.Context, c *Contract) error
	GetContract(ctx context.Context, chainID uint64, address string) (*Contract, error)
	DeleteContract(ctx context.Context, chainID uint64, address string) error
	CountContracts(ctx context.Context) (int64, error)
}

// Store combines the storage interfaces with lifecycle methods.
// Domain services define their own minimal interfaces based on their actual usage.
type Store interface {
	ContractStore

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
}

// Contract is a cached metadata record for one contract on one chain.
// Address is stored in checksummed form; (ChainID, Address) is unique.
type Contract struct {
	ID              string
	ChainID         uint64
	Address         string
	Name            string
	ABI             json.RawMessage
	ABIHash         string
	IsPartialMatch  bool
	Source          string
	CompilerVersion string
	Implementation  string
	FetchedAt       time.Time
}

// New creates a new store based on configuration
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	case "postgres":
		return NewPostgresStore(cfg.Postgres.URL, logger)
	case "memory":
		return NewMemoryStore(logger), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
