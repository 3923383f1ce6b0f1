package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuemby/self-healing-controller/pkg/history"
	"github.com/cuemby/self-healing-controller/pkg/metrics"
	"github.com/cuemby/self-healing-controller/pkg/remediation"
	"github.com/cuemby/self-healing-controller/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedStats remediation.Stats

func (f fixedStats) Stats() remediation.Stats { return remediation.Stats(f) }

type fixedLedger int

func (f fixedLedger) Len() int { return int(f) }

type brokenRecorder struct{ history.MemoryRecorder }

func (*brokenRecorder) Recent(context.Context, int) ([]types.Outcome, error) {
	return nil, errors.New("database unavailable")
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// TestHealthHandler tests the /health endpoint
func TestHealthHandler(t *testing.T) {
	hs := NewHealthServer(nil, nil, nil, "test")

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{
			name:           "GET request succeeds",
			method:         http.MethodGet,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "POST request fails",
			method:         http.MethodPost,
			expectedStatus: http.StatusMethodNotAllowed,
		},
		{
			name:           "DELETE request fails",
			method:         http.MethodDelete,
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()

			hs.healthHandler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedStatus == http.StatusOK {
				var response HealthResponse
				err := json.NewDecoder(w.Body).Decode(&response)
				assert.NoError(t, err)
				assert.Equal(t, "healthy", response.Status)
				assert.Equal(t, "test", response.Version)
				assert.NotZero(t, response.Timestamp)
			}
		})
	}
}

func TestReadyFollowsComponents(t *testing.T) {
	hs := NewHealthServer(nil, nil, nil, "test")

	metrics.UpdateComponent(metrics.ComponentCluster, true, "")
	metrics.UpdateComponent(metrics.ComponentWorkloadLoop, true, "")
	metrics.UpdateComponent(metrics.ComponentNodeLoop, true, "")
	assert.Equal(t, http.StatusOK, get(t, hs.GetHandler(), "/ready").Code)

	metrics.UpdateComponent(metrics.ComponentCluster, false, "connection refused")
	w := get(t, hs.GetHandler(), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var readiness metrics.HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&readiness))
	assert.Equal(t, "not_ready", readiness.Status)
	assert.Contains(t, readiness.Components[metrics.ComponentCluster], "connection refused")

	metrics.UpdateComponent(metrics.ComponentCluster, true, "")
}

func TestComponentsEndpoint(t *testing.T) {
	hs := NewHealthServer(nil, nil, nil, "test")

	metrics.UpdateComponent(metrics.ComponentNotifier, false, "webhook returned status 500")
	w := get(t, hs.GetHandler(), "/components")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var view metrics.HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&view))
	assert.Equal(t, "degraded", view.Status)
	assert.Equal(t, "unhealthy: webhook returned status 500", view.Components[metrics.ComponentNotifier])

	metrics.UpdateComponent(metrics.ComponentNotifier, true, "")
	w = get(t, hs.GetHandler(), "/components")
	require.NoError(t, json.NewDecoder(w.Body).Decode(&view))
	assert.Equal(t, "healthy", view.Components[metrics.ComponentNotifier])
}

func TestReadyMethodValidation(t *testing.T) {
	hs := NewHealthServer(nil, nil, nil, "test")
	req := httptest.NewRequest(http.MethodPost, "/ready", nil)
	w := httptest.NewRecorder()
	hs.GetHandler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestStatusHandler(t *testing.T) {
	stats := fixedStats{WorkloadFailuresHandled: 4, NodeFailuresHandled: 1, RollbackAttempts: 2}
	hs := NewHealthServer(stats, fixedLedger(3), nil, "test")

	w := get(t, hs.GetHandler(), "/status")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, float64(4), body["workload_failures_handled"])
	assert.Equal(t, float64(1), body["node_failures_handled"])
	assert.Equal(t, float64(2), body["rollback_attempts"])
	assert.Equal(t, float64(3), body["tracked_keys"])
}

func TestStatusHandlerWithoutSources(t *testing.T) {
	hs := NewHealthServer(nil, nil, nil, "test")

	w := get(t, hs.GetHandler(), "/status")
	require.Equal(t, http.StatusOK, w.Code)

	var resp StatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Zero(t, resp.WorkloadFailuresHandled)
	assert.Zero(t, resp.TrackedKeys)
}

func TestOutcomesHandler(t *testing.T) {
	rec := history.NewMemoryRecorder(10)
	ctx := context.Background()
	for _, target := range []string{"default/a", "default/b", "node/n1"} {
		require.NoError(t, rec.Record(ctx, types.Outcome{ID: target, Target: target, Action: types.ActionRestart, Success: true}))
	}
	hs := NewHealthServer(nil, nil, rec, "test")

	w := get(t, hs.GetHandler(), "/outcomes?limit=2")
	require.Equal(t, http.StatusOK, w.Code)

	var resp OutcomesResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "node/n1", resp.Outcomes[0].Target)

	assert.Equal(t, http.StatusBadRequest, get(t, hs.GetHandler(), "/outcomes?limit=abc").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, hs.GetHandler(), "/outcomes?limit=0").Code)
}

func TestOutcomesHandlerEmpty(t *testing.T) {
	hs := NewHealthServer(nil, nil, nil, "test")

	w := get(t, hs.GetHandler(), "/outcomes")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"outcomes":[],"count":0}`, w.Body.String())
}

func TestOutcomesHandlerRecorderError(t *testing.T) {
	hs := NewHealthServer(nil, nil, &brokenRecorder{}, "test")
	assert.Equal(t, http.StatusInternalServerError, get(t, hs.GetHandler(), "/outcomes").Code)
}

// TestNewHealthServer tests that all routes are registered
func TestNewHealthServer(t *testing.T) {
	hs := NewHealthServer(nil, nil, nil, "test")

	assert.NotNil(t, hs)
	assert.NotNil(t, hs.mux)

	tests := []struct {
		path           string
		expectedStatus int
	}{
		{path: "/health", expectedStatus: http.StatusOK},
		{path: "/live", expectedStatus: http.StatusOK},
		{path: "/metrics", expectedStatus: http.StatusOK},
		{path: "/status", expectedStatus: http.StatusOK},
		{path: "/outcomes", expectedStatus: http.StatusOK},
		{path: "/nonexistent", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := get(t, hs.GetHandler(), tt.path)
			assert.Equal(t, tt.expectedStatus, w.Code, "Path: %s", tt.path)
		})
	}
}

func TestServeAndShutdown(t *testing.T) {
	hs := NewHealthServer(nil, nil, nil, "test")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- hs.Serve(ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, hs.Shutdown(ctx))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}

func TestStartInvalidAddress(t *testing.T) {
	hs := NewHealthServer(nil, nil, nil, "test")
	assert.Error(t, hs.Start("not-an-address"))
}

// TestHealthServerConcurrency tests concurrent requests to reporting endpoints
func TestHealthServerConcurrency(t *testing.T) {
	hs := NewHealthServer(fixedStats{}, fixedLedger(0), history.NewMemoryRecorder(4), "test")

	done := make(chan bool, 20)

	for i := 0; i < 10; i++ {
		go func() {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			w := httptest.NewRecorder()
			hs.healthHandler(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		go func() {
			req := httptest.NewRequest(http.MethodGet, "/status", nil)
			w := httptest.NewRecorder()
			hs.statusHandler(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
			done <- true
		}()
	}

	for i := 0; i < 20; i++ {
		<-done
	}
}

func BenchmarkHealthHandler(b *testing.B) {
	hs := NewHealthServer(nil, nil, nil, "test")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		hs.healthHandler(w, req)
	}
}
