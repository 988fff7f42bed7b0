package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPStatusCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"empty collection", ErrEmptyCollection, http.StatusConflict},
		{"wrapped empty collection", fmt.Errorf("search: %w", ErrEmptyCollection), http.StatusConflict},
		{"invalid input", Invalidf("unknown strategy %q", "fuzzy"), http.StatusBadRequest},
		{"too large", fmt.Errorf("decoding: %w", ErrTooLarge), http.StatusRequestEntityTooLarge},
		{"unavailable", ErrUnavailable, http.StatusServiceUnavailable},
		{"breaker open", fmt.Errorf("circuit breaker is open: %w", ErrUnavailable), http.StatusServiceUnavailable},
		{"deadline", fmt.Errorf("cache get: %w", context.DeadlineExceeded), http.StatusServiceUnavailable},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, HTTPStatusCode(tc.err))
		})
	}
}

func TestInvalidf(t *testing.T) {
	err := Invalidf("document %d: id is required", 3)
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Equal(t, "invalid input: document 3: id is required", err.Error())
}
