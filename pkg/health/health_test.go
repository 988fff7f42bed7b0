package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func static(s Status) Check {
	return func(context.Context) ComponentHealth {
		return ComponentHealth{Status: s}
	}
}

func TestRunWorstStatus(t *testing.T) {
	c := NewChecker(time.Second)
	c.Register("store", static(StatusUp))
	require.Equal(t, StatusUp, c.Run(context.Background()).Status)

	c.Register("cache", static(StatusDegraded))
	require.Equal(t, StatusDegraded, c.Run(context.Background()).Status)

	c.Register("db", static(StatusDown))
	report := c.Run(context.Background())
	require.Equal(t, StatusDown, report.Status)
	require.Len(t, report.Components, 3)
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker(time.Second)
	c.Register("store", static(StatusUp))
	c.Register("cache", static(StatusDegraded))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var report Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	require.Equal(t, StatusDegraded, report.Status)

	c.Register("store", static(StatusDown))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker(time.Second).LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "alive", body["status"])
	require.Contains(t, body, "uptime")
}

func TestReadyHandlerBoundsSlowChecks(t *testing.T) {
	c := NewChecker(20 * time.Millisecond)
	c.Register("slow", func(ctx context.Context) ComponentHealth {
		<-ctx.Done()
		return ComponentHealth{Status: StatusDown, Message: ctx.Err().Error()}
	})
	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
