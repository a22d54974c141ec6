package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/aqplot/aqplot/internal/telemetry"

// ProviderMetrics records duration and count of calls to upstream data providers.
type ProviderMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	readingsTotal   metric.Int64Counter
}

// NewProviderMetrics creates the provider instruments from mp.
// A nil mp uses the global meter provider.
func NewProviderMetrics(mp metric.MeterProvider) (*ProviderMetrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	requestDuration, err := meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of provider requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Total number of provider requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	readingsTotal, err := meter.Int64Counter(
		"provider.readings.total",
		metric.WithDescription("Number of readings returned by providers"),
		metric.WithUnit("{reading}"),
	)
	if err != nil {
		return nil, err
	}

	return &ProviderMetrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		readingsTotal:   readingsTotal,
	}, nil
}

// RecordRequest records metrics for a provider request.
func (m *ProviderMetrics) RecordRequest(ctx context.Context, provider, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
	}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Detach from request cancellation so late recordings still land
	ctx = context.WithoutCancel(ctx)
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReadings records how many readings a provider call returned.
func (m *ProviderMetrics) RecordReadings(ctx context.Context, provider, parameter string, count int) {
	if m == nil {
		return
	}
	m.readingsTotal.Add(context.WithoutCancel(ctx), int64(count), metric.WithAttributes(
		attribute.String("provider.name", provider),
		attribute.String("parameter", parameter),
	))
}
