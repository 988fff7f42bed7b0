// Package errors names the failure classes the service tells apart and maps
// each onto an HTTP status.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrEmptyCollection = errors.New("collection is empty")
	ErrInvalidInput    = errors.New("invalid input")
	ErrTooLarge        = errors.New("payload too large")
	ErrUnavailable     = errors.New("dependency unavailable")
)

// statuses is consulted in order; the first class found in the chain wins.
var statuses = []struct {
	class  error
	status int
}{
	{ErrEmptyCollection, http.StatusConflict},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrTooLarge, http.StatusRequestEntityTooLarge},
	{context.DeadlineExceeded, http.StatusServiceUnavailable},
	{ErrUnavailable, http.StatusServiceUnavailable},
}

// Invalidf reports a caller mistake with a formatted detail.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// HTTPStatusCode returns the status for err, 500 when it belongs to no
// known class.
func HTTPStatusCode(err error) int {
	for _, s := range statuses {
		if errors.Is(err, s.class) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}
