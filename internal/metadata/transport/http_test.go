package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verimeta/verimeta/internal/metadata/domain"
	"github.com/verimeta/verimeta/internal/networks"
	"github.com/verimeta/verimeta/internal/sources"
)

const testAddress = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

var testABI = json.RawMessage(`[{"type":"function","name":"transfer"}]`)

// mockService implements Service for testing
type mockService struct {
	records  map[string]*domain.Record
	err      error
	lastOpts domain.ResolveOptions
	lastAddr string
}

func newMockService() *mockService {
	return &mockService{records: make(map[string]*domain.Record)}
}

func recordKey(chainID uint64, address string) string {
	return fmt.Sprintf("%d/%s", chainID, address)
}

func (m *mockService) Resolve(ctx context.Context, chainID uint64, address string, opts domain.ResolveOptions) (*domain.Record, error) {
	m.lastOpts = opts
	m.lastAddr = address
	if m.err != nil {
		return nil, m.err
	}
	if rec, ok := m.records[recordKey(chainID, address)]; ok {
		return rec, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockService) ABI(ctx context.Context, chainID uint64, address string, opts domain.ResolveOptions) (json.RawMessage, error) {
	rec, err := m.Resolve(ctx, chainID, address, opts)
	if err != nil {
		return nil, err
	}
	return rec.ABI, nil
}

func (m *mockService) Evict(ctx context.Context, chainID uint64, address string) error {
	key := recordKey(chainID, address)
	if _, ok := m.records[key]; !ok {
		return domain.ErrNotFound
	}
	delete(m.records, key)
	return nil
}

func (m *mockService) Networks(ctx context.Context) []networks.Network {
	return networks.DefaultRegistry().List()
}

func testRecord() *domain.Record {
	return &domain.Record{
		ChainID:         1,
		Address:         testAddress,
		Name:            "Token",
		ABI:             testABI,
		IsPartialMatch:  true,
		Source:          "sourcify",
		CompilerVersion: "0.8.28+commit.7893614a",
		FetchedAt:       time.Now().UTC(),
	}
}

func setupRouter(svc Service) *chi.Mux {
	r := chi.NewRouter()
	h := NewHandler(svc)
	r.Route("/api/v1", func(r chi.Router) {
		h.RegisterRoutes(r)
	})
	return r
}

func TestHandler_GetMetadata(t *testing.T) {
	svc := newMockService()
	svc.records[recordKey(1, testAddress)] = testRecord()

	router := setupRouter(svc)

	t.Run("existing contract", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/contracts/1/"+testAddress+"/metadata", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp MetadataResponse
		err := json.Unmarshal(rec.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), resp.ChainID)
		assert.Equal(t, testAddress, resp.Address)
		assert.Equal(t, "Token", resp.Name)
		assert.JSONEq(t, string(testABI), string(resp.ABI))
		assert.True(t, resp.IsPartialMatch)
		assert.Equal(t, "sourcify", resp.Source)
	})

	t.Run("lowercase address is normalized", func(t *testing.T) {
		lower := "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
		req := httptest.NewRequest("GET", "/api/v1/contracts/1/"+lower+"/metadata", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, testAddress, svc.lastAddr)
	})

	t.Run("name omitted when unknown", func(t *testing.T) {
		anon := testRecord()
		anon.Name = ""
		svc.records[recordKey(1, testAddress)] = anon
		defer func() { svc.records[recordKey(1, testAddress)] = testRecord() }()

		req := httptest.NewRequest("GET", "/api/v1/contracts/1/"+testAddress+"/metadata", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), `"name"`)
	})

	t.Run("refresh flag forwarded", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/contracts/1/"+testAddress+"/metadata?refresh=true", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, svc.lastOpts.Refresh)
	})

	t.Run("unverified contract", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/contracts/137/"+testAddress+"/metadata", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)

		var resp ErrorResponse
		err := json.Unmarshal(rec.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	})

	t.Run("invalid address", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/contracts/1/0x1234/metadata", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp ErrorResponse
		err := json.Unmarshal(rec.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Equal(t, "INVALID_ADDRESS", resp.Error.Code)
	})

	t.Run("invalid chain id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/contracts/mainnet/"+testAddress+"/metadata", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp ErrorResponse
		err := json.Unmarshal(rec.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Equal(t, "INVALID_CHAIN", resp.Error.Code)
	})

	t.Run("malformed upstream response", func(t *testing.T) {
		broken := newMockService()
		broken.err = fmt.Errorf("sourcify: %w", sources.ErrMalformedResponse)

		req := httptest.NewRequest("GET", "/api/v1/contracts/1/"+testAddress+"/metadata", nil)
		rec := httptest.NewRecorder()

		setupRouter(broken).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadGateway, rec.Code)

		var resp ErrorResponse
		err := json.Unmarshal(rec.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Equal(t, "BAD_UPSTREAM", resp.Error.Code)
	})

	t.Run("internal error", func(t *testing.T) {
		broken := newMockService()
		broken.err = fmt.Errorf("database on fire")

		req := httptest.NewRequest("GET", "/api/v1/contracts/1/"+testAddress+"/metadata", nil)
		rec := httptest.NewRecorder()

		setupRouter(broken).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandler_GetABI(t *testing.T) {
	svc := newMockService()
	svc.records[recordKey(1, testAddress)] = testRecord()

	router := setupRouter(svc)

	t.Run("existing contract", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/contracts/1/"+testAddress+"/abi", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, string(testABI), rec.Body.String())
	})

	t.Run("unverified contract", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/contracts/137/"+testAddress+"/abi", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandler_Evict(t *testing.T) {
	svc := newMockService()
	svc.records[recordKey(1, testAddress)] = testRecord()

	router := setupRouter(svc)

	t.Run("cached contract", func(t *testing.T) {
		req := httptest.NewRequest("DELETE", "/api/v1/contracts/1/"+testAddress, nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, svc.records)
	})

	t.Run("already evicted", func(t *testing.T) {
		req := httptest.NewRequest("DELETE", "/api/v1/contracts/1/"+testAddress, nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandler_Networks(t *testing.T) {
	router := setupRouter(newMockService())

	req := httptest.NewRequest("GET", "/api/v1/networks", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp NetworksResponse
	err := json.Unmarshal(rec.Body.Bytes(), &resp)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Networks)
	assert.Equal(t, networks.ChainID(1), resp.Networks[0].ChainID)
	assert.Equal(t, "mainnet", resp.Networks[0].Name)
}
