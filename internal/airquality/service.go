package airquality

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/aqplot/aqplot/internal/airquality"

// Source is an upstream air quality data API.
type Source interface {
	// FetchLocations returns the monitoring stations of a city in upstream order.
	FetchLocations(ctx context.Context, city string) ([]Location, error)

	// FetchMeasurements returns up to limit readings of parameter for a station.
	FetchMeasurements(ctx context.Context, locationID string, parameter Parameter, limit int) ([]Reading, error)
}

// ServiceConfig holds configuration for the air quality service.
type ServiceConfig struct {
	// Source is the upstream data API.
	Source Source

	// Logger for pipeline steps.
	Logger zerolog.Logger
}

// Service selects stations and readings for a chart query.
type Service struct {
	source Source
	logger zerolog.Logger
}

// NewService creates a new air quality service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		source: cfg.Source,
		logger: cfg.Logger,
	}
}

// BuildChartData looks up the stations of q's city and walks them in order,
// collecting one series per station that has readings until
// q.LocationLimit series are collected. Stations without readings are
// skipped. It returns ErrCityNotFound when the city has no stations and
// ErrNoData when none of them returned readings.
func (s *Service) BuildChartData(ctx context.Context, q Query) (*ChartData, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "airquality.BuildChartData")
	defer span.End()

	city := q.CityName()
	span.SetAttributes(
		attribute.String("aq.city", city),
		attribute.String("aq.parameter", string(q.Parameter)),
		attribute.Int("aq.result_limit", q.ResultLimit),
		attribute.Int("aq.location_limit", q.LocationLimit),
	)

	log := s.logger.With().
		Str("city", city).
		Str("parameter", string(q.Parameter)).
		Logger()

	locations, err := s.source.FetchLocations(ctx, city)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("fetch locations: %w", err)
	}
	if len(locations) == 0 {
		return nil, ErrCityNotFound
	}

	log.Debug().Int("locations", len(locations)).Msg("city locations fetched")

	data := &ChartData{
		City:        city,
		Parameter:   q.Parameter,
		ResultLimit: q.ResultLimit,
		Series:      make([]Series, 0, q.LocationLimit),
	}

	for _, loc := range locations {
		if len(data.Series) >= q.LocationLimit {
			break
		}

		readings, err := s.source.FetchMeasurements(ctx, loc.ID, q.Parameter, q.ResultLimit)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("fetch measurements for %q: %w", loc.ID, err)
		}
		if len(readings) == 0 {
			log.Debug().Str("location", loc.ID).Msg("no readings, skipping location")
			continue
		}

		sort.SliceStable(readings, func(i, j int) bool {
			return readings[i].Time.Before(readings[j].Time)
		})

		if data.Unit == "" {
			data.Unit = readings[0].Unit
		}
		data.Series = append(data.Series, Series{Location: loc, Readings: readings})
	}

	if len(data.Series) == 0 {
		return nil, ErrNoData
	}

	span.SetAttributes(attribute.Int("aq.series", len(data.Series)))
	log.Info().
		Int("series", len(data.Series)).
		Str("unit", data.Unit).
		Msg("chart data assembled")

	return data, nil
}
