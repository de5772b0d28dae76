package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrLoad, http.StatusTeapot, "x"), http.StatusTeapot},
		{"invalid query helper", InvalidQuery("limit must be positive, got %d", 0), http.StatusBadRequest},
		{"wrapped invalid query", fmt.Errorf("search: %w", ErrInvalidQuery), http.StatusBadRequest},
		{"not found", ErrRecordNotFound, http.StatusNotFound},
		{"load", fmt.Errorf("reload: %w", ErrLoad), http.StatusServiceUnavailable},
		{"malformed", ErrMalformedRecord, http.StatusServiceUnavailable},
		{"empty corpus", ErrEmptyCorpus, http.StatusServiceUnavailable},
		{"not ready", ErrIndexNotReady, http.StatusServiceUnavailable},
		{"timeout", ErrTimeout, http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := InvalidQuery("limit must be positive")
	if !errors.Is(err, ErrInvalidQuery) {
		t.Fatal("expected AppError to unwrap to ErrInvalidQuery")
	}
	if got, want := err.Error(), "invalid query: limit must be positive"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
