//go:build e2e

package e2e

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/verimeta/verimeta/internal/config"
	"github.com/verimeta/verimeta/internal/server"
	"github.com/verimeta/verimeta/internal/storage"
	"github.com/verimeta/verimeta/pkg/client"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestContext holds shared test infrastructure
type TestContext struct {
	PostgresContainer *postgres.PostgresContainer
	ConnString        string
	Upstream          *upstreamStub
	TestServer        *httptest.Server
	Store             storage.Store
}

// setupPostgresE starts a Postgres container and returns the connection string
func setupPostgresE(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	postgresContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("verimeta"),
		postgres.WithUsername("verimeta"),
		postgres.WithPassword("verimeta"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = postgresContainer.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get postgres connection string: %w", err)
	}

	return postgresContainer, connString, nil
}

// upstreamStub plays the role of a Sourcify repository. Tests register
// metadata documents under a match kind, chain and address, and can inspect
// how often each entry was requested.
type upstreamStub struct {
	server *httptest.Server

	mu   sync.Mutex
	docs map[string]string
	hits map[string]int
}

func newUpstreamStub() *upstreamStub {
	s := &upstreamStub{
		docs: make(map[string]string),
		hits: make(map[string]int),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *upstreamStub) URL() string {
	return s.server.URL
}

func (s *upstreamStub) Close() {
	s.server.Close()
}

// handle serves /contracts/{match}/{chain}/{address}/metadata.json
func (s *upstreamStub) handle(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 5 || parts[0] != "contracts" || parts[4] != "metadata.json" {
		http.NotFound(w, r)
		return
	}

	key := parts[1] + "/" + parts[2] + "/" + parts[3]

	s.mu.Lock()
	s.hits[key]++
	body, ok := s.docs[key]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func stubKey(match string, chainID uint64, address string) string {
	return fmt.Sprintf("%s/%d/%s", match, chainID, address)
}

func (s *upstreamStub) register(match string, chainID uint64, address, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[stubKey(match, chainID, address)] = body
}

func (s *upstreamStub) hitCount(match string, chainID uint64, address string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[stubKey(match, chainID, address)]
}

// metadataDoc builds a minimal Sourcify metadata.json with the given
// contract name and a one-function ABI.
func metadataDoc(name string) string {
	return fmt.Sprintf(`{
		"compiler": {"version": "0.8.20+commit.a1b79de6"},
		"output": {
			"abi": [{"type":"function","name":"totalSupply","inputs":[],"outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view"}]
		},
		"settings": {
			"compilationTarget": {"src/%s.sol": "%s"}
		}
	}`, name, name)
}

// startServerE starts the verimeta server in-process, pointing the Sourcify
// source at the upstream stub
func startServerE(connString, sourcifyURL string) (*httptest.Server, storage.Store, error) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Storage: config.StorageConfig{
			Type: "postgres",
			Postgres: config.PostgresConfig{
				URL: connString,
			},
		},
		Sources: config.SourcesConfig{
			TimeoutSeconds: 5,
			Sourcify: config.SourcifyConfig{
				Enabled: true,
				BaseURL: sourcifyURL,
			},
		},
		Cache:     config.CacheConfig{Enabled: true, TTLSeconds: 3600},
		Logging:   config.LoggingConfig{Level: "debug", Format: "text"},
		RateLimit: config.RateLimitConfig{Enabled: false},
		Metrics:   config.MetricsConfig{Enabled: false},
		Security:  config.SecurityConfig{FilterEnabled: true},
		Proxy:     config.ProxyConfig{TrustProxy: false},
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create store: %w", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	srv := server.New(cfg, store, logger)
	testServer := httptest.NewServer(srv.Handler())

	return testServer, store, nil
}

// newClient creates a new API client for the test server
func newClient(testServer *httptest.Server) *client.Client {
	return client.New(testServer.URL)
}

// assertAPIError asserts that an error is an APIError with the expected code
func assertAPIError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	require.Error(t, err, "Expected an error")
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr), "Error should be an APIError, got %T: %v", err, err)
	require.Equal(t, expectedCode, apiErr.Code, "Error code mismatch")
}
