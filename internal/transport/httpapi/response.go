package httpapi

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/shopfront/catalogsearch/internal/errors"
)

// statusResponse is the envelope for write endpoints.
type statusResponse struct {
	Status  string            `json:"status"`
	Count   *int              `json:"count,omitempty"`
	Stale   bool              `json:"stale,omitempty"`
	Message string            `json:"message,omitempty"`
	Error   *errors.JSONError `json:"error,omitempty"`
}

func okStatus() statusResponse {
	return statusResponse{Status: "Ok"}
}

func okCount(n int) statusResponse {
	return statusResponse{Status: "Ok", Count: &n}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("http_encode_failed", slog.String("error", err.Error()))
	}
}

// writeError renders err with a status derived from its code.
func writeError(w http.ResponseWriter, err error, message string) {
	je := errors.ToJSON(err)
	writeJSON(w, statusFor(err), statusResponse{
		Status:  "Error",
		Message: message,
		Error:   &je,
	})
}

// writeStale reports a mutation whose index sync failed after retries.
func writeStale(w http.ResponseWriter, err error) {
	je := errors.ToJSON(err)
	writeJSON(w, http.StatusServiceUnavailable, statusResponse{
		Status:  "Error",
		Stale:   true,
		Message: "catalog is authoritative; search results may be stale until reindex",
		Error:   &je,
	})
}

// StatusClientClosedRequest is reported when the caller cancelled the request.
const StatusClientClosedRequest = 499

func statusFor(err error) int {
	switch {
	case stderrors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	switch errors.GetCode(err) {
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case errors.ErrCodeStoreUnavailable, errors.ErrCodeCatalogUnavailable, errors.ErrCodeIndexFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
