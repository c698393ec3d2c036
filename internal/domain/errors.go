package domain

import (
	"errors"
	"strings"
)

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrAskNotFound          = errors.New("ask_not_found")
	ErrBidNotFound          = errors.New("bid_not_found")
	ErrAskAlreadyExists     = errors.New("ask_already_exists")
	ErrBidAlreadyExists     = errors.New("bid_already_exists")
	ErrCollateralInUse      = errors.New("collateral_in_use")
	ErrInvalidFunds         = errors.New("invalid_funds_provided")
	ErrInvalidExternalState = errors.New("invalid_external_state")
	ErrInvalidUpdate        = errors.New("invalid_update")
)

// ValidationError carries every defect found in a request. It is never used
// for a single sentinel condition.
type ValidationError struct {
	Messages []string
}

// NewValidationError returns nil when msgs is empty so callers can return it
// directly.
func NewValidationError(msgs []string) error {
	if len(msgs) == 0 {
		return nil
	}
	return &ValidationError{Messages: msgs}
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}
