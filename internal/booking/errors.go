package booking

import (
	"errors"
	"fmt"
)

// Rejection reasons. They double as the HTTP error code.
const (
	ReasonSchema          = "schema"
	ReasonNotAProvider    = "not_a_provider"
	ReasonPastDate        = "past_date"
	ReasonSlotTaken       = "slot_taken"
	ReasonTooLate         = "too_late"
	ReasonAlreadyCanceled = "already_canceled"
	ReasonInvalidPage     = "invalid_page"
	ReasonNotOwner        = "not_owner"
)

var ErrNotFound = errors.New("appointment not found")

// ValidationError is a rejected request. Retrying it unchanged fails again.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Reason, e.Message)
}

type AuthorizationError struct {
	Reason  string
	Message string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("not authorized (%s): %s", e.Reason, e.Message)
}

func invalid(reason, msg string) error {
	return &ValidationError{Reason: reason, Message: msg}
}

// ReasonOf returns the rejection reason carried by err, or "" for other errors.
func ReasonOf(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	var ae *AuthorizationError
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return ""
}
