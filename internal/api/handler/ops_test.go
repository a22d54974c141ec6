package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqplot/aqplot/internal/api/handler"
	"github.com/aqplot/aqplot/internal/api/models"
	"github.com/aqplot/aqplot/internal/provider/resilience"
)

// registryWithOpenCircuit registers a provider whose circuit trips on the
// first failure and drives it open.
func registryWithOpenCircuit(t *testing.T, name string) *resilience.Registry {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	registry := resilience.NewRegistry()
	cb := resilience.DefaultCircuitBreakerConfig(name)
	cb.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 1 }
	client := resilience.NewClient(resilience.ClientConfig{
		Name:           name,
		Timeout:        time.Second,
		CircuitBreaker: &cb,
		Registry:       registry,
	})

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, gobreaker.StateOpen, client.CircuitBreakerState())
	return registry
}

func healthyRegistry(t *testing.T, name string) *resilience.Registry {
	t.Helper()

	registry := resilience.NewRegistry()
	resilience.NewClient(resilience.ClientConfig{Name: name, Registry: registry})
	return registry
}

func TestOps_HealthCheck(t *testing.T) {
	h := handler.NewOpsHandler("1.2.3", "2024-01-01T00:00:00Z", nil)

	w := httptest.NewRecorder()
	h.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "1.2.3", health.Details["version"])
	assert.Equal(t, "2024-01-01T00:00:00Z", health.Details["buildTime"])
}

func TestOps_ReadinessCheck(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		h := handler.NewOpsHandler("test", "now", healthyRegistry(t, "openaq"), "openaq")

		w := httptest.NewRecorder()
		h.ReadinessCheck(w, httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("critical circuit open", func(t *testing.T) {
		h := handler.NewOpsHandler("test", "now", registryWithOpenCircuit(t, "openaq"), "openaq")

		w := httptest.NewRecorder()
		h.ReadinessCheck(w, httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var health models.Health
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
		assert.Equal(t, models.HealthStatusFail, health.Status)
		assert.Equal(t, []interface{}{"openaq"}, health.Details["unavailableProviders"])
	})

	t.Run("non-critical circuit open", func(t *testing.T) {
		h := handler.NewOpsHandler("test", "now", registryWithOpenCircuit(t, "form"), "openaq")

		w := httptest.NewRecorder()
		h.ReadinessCheck(w, httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestOps_SystemStatus(t *testing.T) {
	h := handler.NewOpsHandler("test", "now", registryWithOpenCircuit(t, "openaq"))

	w := httptest.NewRecorder()
	h.SystemStatus(w, httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))

	assert.Equal(t, models.HealthStatusFail, status.Status)
	require.Len(t, status.Providers, 1)

	p := status.Providers[0]
	assert.Equal(t, "openaq", p.Provider)
	assert.Equal(t, models.HealthStatusFail, p.Status)
	assert.Equal(t, "open", p.CircuitState)
	assert.NotNil(t, p.LastFailureAt)
	assert.Nil(t, p.LastSuccessAt)
	require.NotNil(t, p.Message)
}

func TestOps_SystemStatus_NoProviders(t *testing.T) {
	h := handler.NewOpsHandler("test", "now", nil)

	w := httptest.NewRecorder()
	h.SystemStatus(w, httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusOK, status.Status)
	assert.Empty(t, status.Providers)
}
