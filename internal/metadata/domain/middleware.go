package domain

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/verimeta/verimeta/internal/networks"
)

// loggingService is the interface required for logging middleware.
type loggingService interface {
	Resolve(ctx context.Context, chainID uint64, address string, opts ResolveOptions) (*Record, error)
	ABI(ctx context.Context, chainID uint64, address string, opts ResolveOptions) (json.RawMessage, error)
	Evict(ctx context.Context, chainID uint64, address string) error
	Networks(ctx context.Context) []networks.Network
}

// LoggingMiddleware returns a service middleware that logs all operations.
func LoggingMiddleware(logger *slog.Logger) func(loggingService) *loggingMiddleware {
	return func(next loggingService) *loggingMiddleware {
		return &loggingMiddleware{
			next:   next,
			logger: logger,
		}
	}
}

type loggingMiddleware struct {
	next   loggingService
	logger *slog.Logger
}

func (m *loggingMiddleware) Resolve(ctx context.Context, chainID uint64, address string, opts ResolveOptions) (*Record, error) {
	start := time.Now()
	record, err := m.next.Resolve(ctx, chainID, address, opts)
	attrs := []any{
		"chainId", chainID,
		"address", address,
		"refresh", opts.Refresh,
		"duration", time.Since(start),
		"error", err,
	}
	if record != nil {
		attrs = append(attrs,
			"source", record.Source,
			"partial", record.IsPartialMatch,
		)
	}
	m.logger.Info("Resolve", attrs...)
	return record, err
}

func (m *loggingMiddleware) ABI(ctx context.Context, chainID uint64, address string, opts ResolveOptions) (json.RawMessage, error) {
	start := time.Now()
	abi, err := m.next.ABI(ctx, chainID, address, opts)
	m.logger.Debug("ABI",
		"chainId", chainID,
		"address", address,
		"refresh", opts.Refresh,
		"size", len(abi),
		"duration", time.Since(start),
		"error", err,
	)
	return abi, err
}

func (m *loggingMiddleware) Evict(ctx context.Context, chainID uint64, address string) error {
	start := time.Now()
	err := m.next.Evict(ctx, chainID, address)
	m.logger.Info("Evict",
		"chainId", chainID,
		"address", address,
		"duration", time.Since(start),
		"error", err,
	)
	return err
}

func (m *loggingMiddleware) Networks(ctx context.Context) []networks.Network {
	start := time.Now()
	nets := m.next.Networks(ctx)
	m.logger.Debug("Networks",
		"count", len(nets),
		"duration", time.Since(start),
	)
	return nets
}
