package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrLoad            = errors.New("record source could not be loaded")
	ErrMalformedRecord = errors.New("malformed record")
	ErrEmptyCorpus     = errors.New("empty corpus")
	ErrInvalidQuery    = errors.New("invalid query")
	ErrRecordNotFound  = errors.New("record not found")
	ErrIndexNotReady   = errors.New("index not ready")
	ErrInternal        = errors.New("internal error")
	ErrTimeout         = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// InvalidQuery builds a 400 error for a rejected search request.
func InvalidQuery(format string, args ...any) *AppError {
	return Newf(ErrInvalidQuery, http.StatusBadRequest, format, args...)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, ErrLoad), errors.Is(err, ErrMalformedRecord),
		errors.Is(err, ErrEmptyCorpus), errors.Is(err, ErrIndexNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
