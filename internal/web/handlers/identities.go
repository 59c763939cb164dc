package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-id/internal/constants"
	"github.com/kozaktomas/face-id/internal/identity"
	"github.com/kozaktomas/face-id/internal/metrics"
)

// IdentityStore lists and removes enrolled identities.
type IdentityStore interface {
	All() []identity.Record
	Count() int
	Delete(ctx context.Context, id int64) error
}

// IdentitiesHandler serves the identity JSON API.
type IdentitiesHandler struct {
	store   IdentityStore
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewIdentitiesHandler creates a new identities handler.
func NewIdentitiesHandler(store IdentityStore, m *metrics.Metrics, logger *zap.Logger) *IdentitiesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentitiesHandler{store: store, metrics: m, logger: logger}
}

// IdentitiesResponse is one page of identities, ordered by id.
type IdentitiesResponse struct {
	Identities []identity.Record `json:"identities"`
	Total      int               `json:"total"`
	Limit      int               `json:"limit"`
	Offset     int               `json:"offset"`
}

// List handles GET /api/v1/identities?limit=&offset=.
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := constants.DefaultHandlerPageSize
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, constants.MaxHandlerPageSize)
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		offset = n
	}

	all := h.store.All()
	start := min(offset, len(all))
	end := min(start+limit, len(all))

	page := all[start:end]
	if page == nil {
		page = []identity.Record{}
	}

	respondJSON(w, http.StatusOK, IdentitiesResponse{
		Identities: page,
		Total:      len(all),
		Limit:      limit,
		Offset:     offset,
	})
}

// Delete handles DELETE /api/v1/identities/{id}.
func (h *IdentitiesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		respondError(w, http.StatusBadRequest, "invalid identity id")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			respondError(w, http.StatusNotFound, "identity not found")
			return
		}
		h.logger.Error("deleting identity", zap.Int64("id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to delete identity")
		return
	}

	h.metrics.SetIdentities(h.store.Count())
	h.logger.Info("identity deleted", zap.Int64("id", id))
	respondJSON(w, http.StatusOK, map[string]any{"deleted": id})
}
