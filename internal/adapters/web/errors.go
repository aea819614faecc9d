package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"cafe-ledger/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeCoreError maps a core error to its HTTP status. Unclassified errors are
// logged and surfaced as an opaque 500.
func writeCoreError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		vErr   *core.ValidationError
		nfErr  *core.NotFoundError
		cErr   *core.ConflictError
		insErr *core.InsufficientStockError
	)
	switch {
	case errors.As(err, &vErr):
		writeError(w, r, vErr.Error(), "VALIDATION_ERROR", http.StatusBadRequest)
	case errors.As(err, &nfErr):
		writeError(w, r, nfErr.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.As(err, &cErr):
		writeError(w, r, cErr.Error(), "CONFLICT", http.StatusConflict)
	case errors.As(err, &insErr):
		writeError(w, r, insErr.Error(), "INSUFFICIENT_STOCK", http.StatusUnprocessableEntity)
	default:
		slog.Error("unhandled error", "path", r.URL.Path, "request_id", requestIDFromContext(r.Context()), "err", err)
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONStatus writes a JSON response with an explicit status code.
func writeJSONStatus(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
