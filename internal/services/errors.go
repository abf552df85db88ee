package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies validation failures so the HTTP layer can pick a status.
type ErrorKind string

const (
	UnsupportedMediaType ErrorKind = "unsupported_media_type"
	MissingHeader        ErrorKind = "missing_header"
	InvalidHeader        ErrorKind = "invalid_header"
	MissingField         ErrorKind = "missing_field"
	InvalidIdentifier    ErrorKind = "invalid_identifier"
	InvalidFormat        ErrorKind = "invalid_format"
	InvalidRange         ErrorKind = "invalid_range"
	UnsupportedTimezone  ErrorKind = "unsupported_timezone"
	NoMatchingData       ErrorKind = "no_matching_data"
)

// ValidationError is a user-facing error caused by bad input.
type ValidationError struct {
	Kind    ErrorKind
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is matches another *ValidationError of the same kind, so
// errors.Is(err, &ValidationError{Kind: InvalidFormat}) works.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newValidationError(kind ErrorKind, field, value, format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		Kind:    kind,
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf(format, args...),
	}
}

// RowError ties a validation failure to the CSV line it came from.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("Error in row %d: %s", e.Row, e.Err.Error())
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first ValidationError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Kind, true
	}
	return "", false
}
