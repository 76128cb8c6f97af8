package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"ratehub/internal/domain"
	"ratehub/internal/service"
)

// RateCreator runs the ingestion unit of work for a raw rate.
type RateCreator interface {
	CreateRateEvent(ctx context.Context, pair, bid, ask string) error
}

// rawRateRequest is the ingestion payload.
type rawRateRequest struct {
	Pair string `json:"pair"`
	Bid  string `json:"bid"`
	Ask  string `json:"ask"`
}

// IngestHandler accepts raw rate submissions.
type IngestHandler struct {
	rates  RateCreator
	logger zerolog.Logger
}

// NewIngestHandler constructs an IngestHandler.
func NewIngestHandler(rates RateCreator, logger zerolog.Logger) *IngestHandler {
	return &IngestHandler{
		rates:  rates,
		logger: logger.With().Str("component", "ingest_api").Logger(),
	}
}

// Create handles POST /rates.
func (h *IngestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req rawRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed", []FieldErrorItem{
			{Field: "body", Message: "malformed JSON body"},
		})
		return
	}

	if items := validateRequest(req); len(items) > 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed", items)
		return
	}

	if err := h.rates.CreateRateEvent(r.Context(), req.Pair, req.Bid, req.Ask); err != nil {
		h.respondServiceError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *IngestHandler) respondServiceError(w http.ResponseWriter, req rawRateRequest, err error) {
	var invalidRate *service.InvalidRateError
	if errors.As(err, &invalidRate) {
		writeError(w, http.StatusBadRequest, "INVALID_RATE", "Request validation failed", []FieldErrorItem{
			{Field: "bid", Message: invalidRate.Reason, RejectedValue: invalidRate.Bid},
		})
		return
	}

	var notActive *service.PairNotActiveError
	if errors.As(err, &notActive) {
		writeError(w, http.StatusConflict, "PAIR_NOT_AVAILABLE", "Requested pair is currently not available", nil)
		return
	}

	h.logger.Error().Err(err).Str("pair", req.Pair).Msg("failed to create rate event")
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process rate event", nil)
}

func validateRequest(req rawRateRequest) []FieldErrorItem {
	var items []FieldErrorItem
	if strings.TrimSpace(req.Pair) == "" {
		items = append(items, FieldErrorItem{Field: "pair", Message: "must not be blank", RejectedValue: req.Pair})
	} else if !domain.ValidPair(req.Pair) {
		items = append(items, FieldErrorItem{Field: "pair", Message: "invalid currency pair format", RejectedValue: req.Pair})
	}
	if strings.TrimSpace(req.Bid) == "" {
		items = append(items, FieldErrorItem{Field: "bid", Message: "must not be blank", RejectedValue: req.Bid})
	}
	if strings.TrimSpace(req.Ask) == "" {
		items = append(items, FieldErrorItem{Field: "ask", Message: "must not be blank", RejectedValue: req.Ask})
	}
	return items
}
