package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// FieldErrorItem describes one rejected request field.
type FieldErrorItem struct {
	Field         string `json:"field"`
	Message       string `json:"message"`
	RejectedValue string `json:"rejectedValue"`
}

// ErrorResponse is the structured body of every 4xx ingestion failure.
type ErrorResponse struct {
	Code      string           `json:"code"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	Errors    []FieldErrorItem `json:"errors,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string, items []FieldErrorItem) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Errors:    items,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
