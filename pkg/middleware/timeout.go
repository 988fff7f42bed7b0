package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/logger"
)

// Timeout cancels the request context after d and answers 504 if the
// handler has not started its response by then. Later writes from the
// handler are discarded. The handler writes headers into its own map, which
// reaches the client only when the handler wins, so a handler still running
// after the 504 never touches the real writer.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			gw := &gatedWriter{w: w, header: make(http.Header)}
			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(gw, r.WithContext(ctx))
			}()

			select {
			case <-done:
				gw.finish()
			case <-ctx.Done():
				if gw.expire() {
					logger.FromContext(r.Context()).Warn("request timed out",
						"method", r.Method,
						"path", r.URL.Path,
						"timeout", d,
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusGatewayTimeout)
					_, _ = w.Write([]byte(`{"error":"request timeout"}`))
				}
			}
		})
	}
}

// gatedWriter lets exactly one side own the response: the handler once it
// writes, or the timeout once it fires. Headers are buffered until the
// handler's first write.
type gatedWriter struct {
	w       http.ResponseWriter
	header  http.Header
	mu      sync.Mutex
	started bool
	expired bool
}

// expire closes the gate and reports whether the handler had not started
// writing.
func (gw *gatedWriter) expire() bool {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	gw.expired = true
	return !gw.started
}

// finish flushes headers from a handler that returned without writing.
func (gw *gatedWriter) finish() {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if !gw.started && !gw.expired {
		gw.start()
	}
}

// start copies the buffered headers once; callers hold mu.
func (gw *gatedWriter) start() {
	if gw.started {
		return
	}
	gw.started = true
	dst := gw.w.Header()
	for k, v := range gw.header {
		dst[k] = v
	}
}

// Header is only ever touched by the handler goroutine.
func (gw *gatedWriter) Header() http.Header {
	return gw.header
}

func (gw *gatedWriter) WriteHeader(code int) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.expired {
		return
	}
	gw.start()
	gw.w.WriteHeader(code)
}

func (gw *gatedWriter) Write(b []byte) (int, error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.expired {
		return 0, http.ErrHandlerTimeout
	}
	gw.start()
	return gw.w.Write(b)
}
