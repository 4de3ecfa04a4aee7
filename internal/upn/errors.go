package upn

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField is returned when a required invoice field is absent.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidAmount is returned for absent, non-numeric, negative or
	// oversized amounts.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidDate is returned when a due date is not a three-part numeric date.
	ErrInvalidDate = errors.New("invalid date")
	// ErrPayloadOverflow is returned when the checksum no longer fits in three digits.
	ErrPayloadOverflow = errors.New("payload exceeds 999 characters")
	// ErrMalformedPayload is returned by Parse for text that is not a UPN payload.
	ErrMalformedPayload = errors.New("malformed payload")
)

// FieldError ties a validation failure to the record field that caused it.
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// IsDataError reports whether err stems from invalid invoice data rather than
// an infrastructure failure. Callers use it to decide between "fix your
// input" and "try again".
func IsDataError(err error) bool {
	return errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrPayloadOverflow)
}
