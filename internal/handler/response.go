package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/efreitasn/bilateralexchange/internal/domain"
	"github.com/efreitasn/bilateralexchange/internal/engine"
	"github.com/efreitasn/bilateralexchange/internal/service"
	"github.com/efreitasn/bilateralexchange/internal/store"
)

// senderHeader carries the address of the account issuing a request.
const senderHeader = "X-Sender"

// WriteJSON writes a JSON response with the given status code and data.
// Sets Content-Type to application/json before writing the status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Write error intentionally ignored in response helper
}

// errorResponse is the standard error response format.
type errorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
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

// requireSender reads the caller's address from the X-Sender header. It writes
// 401 and returns false when the header is missing.
func requireSender(w http.ResponseWriter, r *http.Request) (string, bool) {
	sender := strings.TrimSpace(r.Header.Get(senderHeader))
	if sender == "" {
		WriteError(w, http.StatusUnauthorized, "unauthenticated", senderHeader+" header is required")
		return "", false
	}
	return sender, true
}

// errorStatuses maps each sentinel to its HTTP status. The sentinel's text is
// the error code.
var errorStatuses = []struct {
	err    error
	status int
}{
	{domain.ErrAskNotFound, http.StatusNotFound},
	{domain.ErrBidNotFound, http.StatusNotFound},
	{domain.ErrUnauthorized, http.StatusForbidden},
	{domain.ErrInvalidFunds, http.StatusBadRequest},
	{domain.ErrAskAlreadyExists, http.StatusConflict},
	{domain.ErrBidAlreadyExists, http.StatusConflict},
	{domain.ErrCollateralInUse, http.StatusConflict},
	{store.ErrStaleWrite, http.StatusConflict},
	{domain.ErrInvalidUpdate, http.StatusUnprocessableEntity},
	{domain.ErrInvalidExternalState, http.StatusUnprocessableEntity},
	{engine.ErrNotSettleable, http.StatusUnprocessableEntity},
	{service.ErrTransferFailed, http.StatusUnprocessableEntity},
	{store.ErrSettingsNotFound, http.StatusServiceUnavailable},
}

// mapError maps service errors to HTTP responses.
func mapError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "validation_error",
			Message: validationErr.Error(),
			Details: validationErr.Messages,
		})
		return
	}

	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			WriteError(w, e.status, e.err.Error(), err.Error())
			return
		}
	}
	WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
}

// parseSearch reads type, owner, id_prefix, page, and limit query
// parameters. Page defaults to 1 and limit to 20.
func parseSearch(r *http.Request) (store.Search, error) {
	q := r.URL.Query()
	s := store.Search{
		Type:     domain.RequestType(q.Get("type")),
		Owner:    q.Get("owner"),
		IDPrefix: q.Get("id_prefix"),
		Page:     1,
		Limit:    20,
	}
	var msgs []string
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			msgs = append(msgs, "page must be an integer")
		}
		s.Page = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			msgs = append(msgs, "limit must be an integer")
		}
		s.Limit = n
	}
	return s, domain.NewValidationError(msgs)
}

// pageResponse is the JSON response for search endpoints.
type pageResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}
