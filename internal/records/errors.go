package records

import (
	"errors"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// LoadError reports a record source that is missing, unreadable, or not in
// the expected format.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading records from %s: %v", e.Source, e.Err)
}

// Unwrap exposes both ErrLoad and the underlying cause to errors.Is/As.
func (e *LoadError) Unwrap() []error {
	return []error{apperrors.ErrLoad, e.Err}
}

// MalformedRecordError names the offending record index and field.
type MalformedRecordError struct {
	Index  int
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("record %d: field %q: %s", e.Index, e.Field, e.Reason)
}

func (e *MalformedRecordError) Unwrap() error {
	return apperrors.ErrMalformedRecord
}

// DecodeError reports input that is not a well-formed record payload. Reading
// the same bytes again fails the same way.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether err comes from the records themselves rather
// than from reaching the source, so loading again cannot succeed.
func IsPermanent(err error) bool {
	var malformed *MalformedRecordError
	var decode *DecodeError
	return errors.As(err, &malformed) || errors.As(err, &decode)
}
