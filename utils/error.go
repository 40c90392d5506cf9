package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ValidationError marks caller mistakes (bad quantities, malformed input).
// These are surfaced as 400s and never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func Invalidf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError is raised when a requested status edge is not in the
// allowed transition graph. The message carries the attempted old->new pair.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "VALIDATION_ERROR"
	ErrorKindNotFound   ErrorKind = "NOT_FOUND"
	ErrorKindUnknown    ErrorKind = "UNKNOWN_ERROR"
)

// ClassifyError maps an error to the coarse batch-result taxonomy.
// Invalid transitions are caller mistakes, so they classify as validation.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ve *ValidationError
	var te *InvalidTransitionError
	switch {
	case errors.Is(err, ErrorRecordNotFound):
		return ErrorKindNotFound
	case errors.As(err, &ve), errors.As(err, &te):
		return ErrorKindValidation
	default:
		return ErrorKindUnknown
	}
}
