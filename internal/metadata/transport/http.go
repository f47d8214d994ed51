// Package transport provides HTTP handlers for the metadata domain.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/verimeta/verimeta/internal/metadata/domain"
	"github.com/verimeta/verimeta/internal/networks"
	"github.com/verimeta/verimeta/internal/sources"
	"github.com/verimeta/verimeta/internal/validation"
)

// Service is the domain interface required by the HTTP transport.
type Service interface {
	Resolve(ctx context.Context, chainID uint64, address string, opts domain.ResolveOptions) (*domain.Record, error)
	ABI(ctx context.Context, chainID uint64, address string, opts domain.ResolveOptions) (json.RawMessage, error)
	Evict(ctx context.Context, chainID uint64, address string) error
	Networks(ctx context.Context) []networks.Network
}

// Handler handles HTTP requests for contract metadata.
type Handler struct {
	svc Service
}

// NewHandler creates a new metadata HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the metadata routes on an API router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/contracts", func(r chi.Router) {
		r.Get("/{chainID}/{address}/metadata", h.handleGetMetadata)
		r.Get("/{chainID}/{address}/abi", h.handleGetABI)
		r.Delete("/{chainID}/{address}", h.handleEvict)
	})
	r.Get("/networks", h.handleListNetworks)
}

func (h *Handler) handleGetMetadata(w http.ResponseWriter, r *http.Request) {
	chainID, address, ok := h.target(w, r)
	if !ok {
		return
	}

	record, err := h.svc.Resolve(r.Context(), chainID, address, resolveOptions(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromDomain(record))
}

func (h *Handler) handleGetABI(w http.ResponseWriter, r *http.Request) {
	chainID, address, ok := h.target(w, r)
	if !ok {
		return
	}

	abi, err := h.svc.ABI(r.Context(), chainID, address, resolveOptions(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(abi)
}

func (h *Handler) handleEvict(w http.ResponseWriter, r *http.Request) {
	chainID, address, ok := h.target(w, r)
	if !ok {
		return
	}

	if err := h.svc.Evict(r.Context(), chainID, address); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListNetworks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NetworksResponse{
		Networks: h.svc.Networks(r.Context()),
	})
}

// target extracts and normalizes the chain id and address URL parameters,
// writing the error response itself when they are unusable.
func (h *Handler) target(w http.ResponseWriter, r *http.Request) (uint64, string, bool) {
	chainID, err := strconv.ParseUint(chi.URLParam(r, "chainID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_CHAIN", "Chain id must be a decimal number")
		return 0, "", false
	}

	address, err := validation.ChecksumAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ADDRESS", "Address must be a 20-byte hex address")
		return 0, "", false
	}

	return chainID, address, true
}

func resolveOptions(r *http.Request) domain.ResolveOptions {
	return domain.ResolveOptions{
		Refresh: r.URL.Query().Get("refresh") == "true",
	}
}

// Helper functions

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, "INVALID_ADDRESS", "Address must be EIP-55 checksummed")
	case errors.Is(err, domain.ErrInvalidChainID):
		writeError(w, http.StatusBadRequest, "INVALID_CHAIN", "Invalid chain id")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Contract is not verified on any known source")
	case errors.Is(err, sources.ErrMalformedResponse):
		writeError(w, http.StatusBadGateway, "BAD_UPSTREAM", "Verification source returned an unusable response")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve contract metadata")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
