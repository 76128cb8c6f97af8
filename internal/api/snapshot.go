package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"ratehub/internal/domain"
)

// SnapshotReader exposes the rate store's query surface.
type SnapshotReader interface {
	Get(ctx context.Context, pair string) (*domain.RateView, error)
	GetAll(ctx context.Context) ([]domain.RateView, error)
}

// SnapshotHandler serves read access to the latest snapshots.
type SnapshotHandler struct {
	store  SnapshotReader
	logger zerolog.Logger
}

// NewSnapshotHandler constructs a SnapshotHandler.
func NewSnapshotHandler(store SnapshotReader, logger zerolog.Logger) *SnapshotHandler {
	return &SnapshotHandler{
		store:  store,
		logger: logger.With().Str("component", "snapshot_api").Logger(),
	}
}

// List handles GET /rates.
func (h *SnapshotHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.store.GetAll(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list snapshots")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read snapshots", nil)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// Find handles GET /rates/{base}/{quote}, case-insensitive.
func (h *SnapshotHandler) Find(w http.ResponseWriter, r *http.Request) {
	pair := strings.ToUpper(r.PathValue("base")) + "/" + strings.ToUpper(r.PathValue("quote"))

	view, err := h.store.Get(r.Context(), pair)
	if err != nil {
		h.logger.Error().Err(err).Str("pair", pair).Msg("failed to read snapshot")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read snapshot", nil)
		return
	}
	if view == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
