package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratehub/internal/service"
)

type stubCreator struct {
	err   error
	pairs []string
}

func (s *stubCreator) CreateRateEvent(_ context.Context, pair, _, _ string) error {
	s.pairs = append(s.pairs, pair)
	return s.err
}

func postRate(t *testing.T, creator RateCreator, body string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewIngestHandler(creator, zerolog.Nop())
	req := httptest.NewRequest(http.MethodPost, "/rates", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.Create(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestIngestAccepted(t *testing.T) {
	creator := &stubCreator{}
	rr := postRate(t, creator, `{"pair":"EUR/USD","bid":"1.08450","ask":"1.08470"}`)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	require.Len(t, creator.pairs, 1)
	assert.Equal(t, "EUR/USD", creator.pairs[0])
}

func TestIngestMalformedBody(t *testing.T) {
	rr := postRate(t, &stubCreator{}, `{not json`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decodeError(t, rr)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
}

func TestIngestValidation(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		fields []string
	}{
		{"blank pair", `{"pair":"","bid":"1.1","ask":"1.2"}`, []string{"pair"}},
		{"bad pair format", `{"pair":"EURUSD","bid":"1.1","ask":"1.2"}`, []string{"pair"}},
		{"blank bid and ask", `{"pair":"EUR/USD","bid":"","ask":""}`, []string{"bid", "ask"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			creator := &stubCreator{}
			rr := postRate(t, creator, c.body)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Empty(t, creator.pairs, "校验失败不应触达服务层")

			resp := decodeError(t, rr)
			assert.Equal(t, "VALIDATION_ERROR", resp.Code)
			got := make([]string, len(resp.Errors))
			for i, item := range resp.Errors {
				got[i] = item.Field
			}
			assert.Equal(t, c.fields, got)
		})
	}
}

func TestIngestInvalidRate(t *testing.T) {
	creator := &stubCreator{err: &service.InvalidRateError{Reason: "bid must be lower than ask", Bid: "1.2", Ask: "1.1"}}
	rr := postRate(t, creator, `{"pair":"EUR/USD","bid":"1.2","ask":"1.1"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decodeError(t, rr)
	assert.Equal(t, "INVALID_RATE", resp.Code)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "bid", resp.Errors[0].Field)
	assert.Equal(t, "1.2", resp.Errors[0].RejectedValue)
}

func TestIngestPairNotAvailable(t *testing.T) {
	creator := &stubCreator{err: &service.PairNotActiveError{Pair: "EUR/USD"}}
	rr := postRate(t, creator, `{"pair":"EUR/USD","bid":"1.1","ask":"1.2"}`)

	assert.Equal(t, http.StatusConflict, rr.Code)
	resp := decodeError(t, rr)
	assert.Equal(t, "PAIR_NOT_AVAILABLE", resp.Code)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestIngestInternalError(t *testing.T) {
	creator := &stubCreator{err: errors.New("database down")}
	rr := postRate(t, creator, `{"pair":"EUR/USD","bid":"1.1","ask":"1.2"}`)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	resp := decodeError(t, rr)
	assert.Equal(t, "INTERNAL_ERROR", resp.Code)
}
