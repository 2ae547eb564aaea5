package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/efreitasn/p2pescrow/internal/auth"
	"github.com/efreitasn/p2pescrow/internal/domain"
)

const timestampLayout = "2006-01-02T15:04:05Z"

// WriteJSON writes a JSON response with the given status code and data.
// Sets Content-Type to application/json before writing the status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Write error intentionally ignored in response helper
}

// errorResponse is the standard error response format.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a standard error response with the given status code,
// error code, and human-readable message.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// ParseJSON decodes the request body as JSON into v.
// It validates that the Content-Type header is application/json and
// returns an error for missing/incorrect content type or malformed JSON.
func ParseJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	return nil
}

// errorStatuses maps sentinel errors to HTTP statuses. The first match wins.
var errorStatuses = []struct {
	err    error
	status int
}{
	{domain.ErrInvalidAmount, http.StatusBadRequest},
	{domain.ErrInvalidOutcome, http.StatusBadRequest},
	{auth.ErrMissingIdentity, http.StatusUnauthorized},
	{auth.ErrInvalidToken, http.StatusUnauthorized},
	{domain.ErrUnauthorized, http.StatusForbidden},
	{domain.ErrSelfTrade, http.StatusForbidden},
	{domain.ErrTradeNotFound, http.StatusNotFound},
	{domain.ErrAccountNotFound, http.StatusNotFound},
	{domain.ErrWebhookNotFound, http.StatusNotFound},
	{domain.ErrInvalidState, http.StatusConflict},
	{domain.ErrUnsupportedAsset, http.StatusUnprocessableEntity},
	{domain.ErrUnsupportedPaymentMethod, http.StatusUnprocessableEntity},
	{domain.ErrCustodyTransferFailed, http.StatusUnprocessableEntity},
}

// mapError maps domain errors to HTTP responses. The error code is the
// sentinel's text; the message carries any wrapped detail.
func mapError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	for _, m := range errorStatuses {
		if errors.Is(err, m.err) {
			WriteError(w, m.status, m.err.Error(), err.Error())
			return
		}
	}
	WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &domain.ValidationError{Message: name + " must be a valid integer"}
	}
	return n, nil
}
