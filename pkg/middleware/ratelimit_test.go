package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimitChargesWritesOnly(t *testing.T) {
	l := NewWriteLimiter(1, 2, time.Minute)
	clock := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return clock }

	h := RateLimit(l, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	post := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusAccepted, post("10.0.0.1:1000").Code)
	require.Equal(t, http.StatusAccepted, post("10.0.0.1:1001").Code)
	rec := post("10.0.0.1:1002")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))

	require.Equal(t, http.StatusAccepted, post("10.0.0.2:1000").Code)

	for range 5 {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=abc", nil)
		req.RemoteAddr = "10.0.0.1:1003"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	clock = clock.Add(time.Second)
	require.Equal(t, http.StatusAccepted, post("10.0.0.1:1004").Code)
}

func TestClientAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	require.Equal(t, "192.0.2.1", clientAddr(req, false))
	require.Equal(t, "203.0.113.7", clientAddr(req, true))

	req.Header.Set("X-Forwarded-For", "not-an-ip")
	require.Equal(t, "192.0.2.1", clientAddr(req, true))

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	require.Equal(t, "192.0.2.1", clientAddr(req, true))
}

func TestRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	l := NewWriteLimiter(1, 1, time.Minute)
	clock := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return clock }
	h := RateLimit(l, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	codes := make([]int, 0, 3)
	for i := range 3 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", nil)
		req.RemoteAddr = "10.0.0.9:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	require.Equal(t, []int{http.StatusAccepted, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
	require.Len(t, l.buckets, 1)
}

func TestWriteLimiterSweep(t *testing.T) {
	l := NewWriteLimiter(10, 10, time.Minute)
	clock := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return clock }

	l.Reserve("a")
	clock = clock.Add(30 * time.Second)
	l.Reserve("b")
	clock = clock.Add(45 * time.Second)

	require.Equal(t, 1, l.Sweep())
	require.Len(t, l.buckets, 1)
	require.Contains(t, l.buckets, "b")
}
