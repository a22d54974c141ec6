package resilience_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqplot/aqplot/internal/provider/resilience"
)

func TestLogStateChanges(t *testing.T) {
	var buf bytes.Buffer
	hook := resilience.LogStateChanges(zerolog.New(&buf))

	hook("openaq", gobreaker.StateClosed, gobreaker.StateOpen)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "openaq", entry["provider"])
	assert.Equal(t, "closed", entry["from"])
	assert.Equal(t, "open", entry["to"])
}

func TestNewCircuitBreaker_NilReadyToTripUsesDefault(t *testing.T) {
	cb := resilience.NewCircuitBreaker[int](resilience.CircuitBreakerConfig{Name: "nil-trip"})

	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (int, error) { return 0, assert.AnError })
	}

	assert.Equal(t, gobreaker.StateOpen, cb.State())
}
