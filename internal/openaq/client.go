// Package openaq provides a client for the OpenAQ v1 locations and
// measurements API.
package openaq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aqplot/aqplot/internal/airquality"
	"github.com/aqplot/aqplot/internal/provider/resilience"
	"github.com/aqplot/aqplot/internal/telemetry"
)

const (
	// DefaultBaseURL is the base URL for the OpenAQ API.
	DefaultBaseURL = "https://api.openaq.org/v1"

	// ProviderName identifies this provider.
	ProviderName = "openaq"
)

// ErrUnexpectedStatus is returned for 4xx responses other than 429.
var ErrUnexpectedStatus = errors.New("unexpected status from openaq")

// ClientConfig holds configuration for the OpenAQ client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// APIKey is sent as X-API-Key when set.
	APIKey string

	// HTTPClient is the HTTP client to use.
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests when HTTPClient is nil (default: 10s).
	Timeout time.Duration

	// MaxRetries for transient failures when HTTPClient is nil.
	MaxRetries uint64

	// Registry receives health updates of the default resilient client.
	Registry *resilience.Registry

	// Metrics records request durations. Optional.
	Metrics *telemetry.ProviderMetrics

	// Logger for circuit breaker transitions and skipped records.
	Logger zerolog.Logger
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is an OpenAQ API client. It implements airquality.Source.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient HTTPDoer
	metrics    *telemetry.ProviderMetrics
	logger     zerolog.Logger
}

var _ airquality.Source = (*Client)(nil)

// NewClient creates a new OpenAQ client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		cb := resilience.DefaultCircuitBreakerConfig(ProviderName)
		cb.OnStateChange = resilience.LogStateChanges(cfg.Logger)
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			CircuitBreaker:  &cb,
			Registry:        cfg.Registry,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}
}

// API response types (from the OpenAQ v1 API).

type meta struct {
	Found int `json:"found"`
	Limit int `json:"limit"`
	Page  int `json:"page"`
}

type coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type locationsResponse struct {
	Meta    meta           `json:"meta"`
	Results []locationData `json:"results"`
}

type locationData struct {
	Location    string      `json:"location"`
	City        string      `json:"city"`
	Country     string      `json:"country"`
	Coordinates coordinates `json:"coordinates"`
}

type measurementsResponse struct {
	Meta    meta              `json:"meta"`
	Results []measurementData `json:"results"`
}

type measurementData struct {
	Location  string  `json:"location"`
	Parameter string  `json:"parameter"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit"`
	Date      struct {
		UTC   string `json:"utc"`
		Local string `json:"local"`
	} `json:"date"`
}

// FetchLocations returns the monitoring stations OpenAQ lists for city.
// It returns airquality.ErrCityNotFound when OpenAQ reports nothing found
// or returns no usable location.
func (c *Client) FetchLocations(ctx context.Context, city string) ([]airquality.Location, error) {
	params := url.Values{}
	params.Set("city", city)

	var result locationsResponse
	if err := c.get(ctx, "locations", params, &result); err != nil {
		return nil, err
	}

	if result.Meta.Found == 0 || len(result.Results) == 0 {
		return nil, airquality.ErrCityNotFound
	}

	locations := make([]airquality.Location, 0, len(result.Results))
	for i := range result.Results {
		if loc, ok := toLocation(&result.Results[i]); ok {
			locations = append(locations, loc)
		}
	}
	if len(locations) == 0 {
		return nil, airquality.ErrCityNotFound
	}

	return locations, nil
}

// FetchMeasurements returns up to limit readings of parameter at a location,
// in the order OpenAQ returns them. Readings with an unparseable local date
// are dropped.
func (c *Client) FetchMeasurements(ctx context.Context, locationID string, parameter airquality.Parameter, limit int) ([]airquality.Reading, error) {
	params := url.Values{}
	params.Set("location", locationID)
	params.Set("parameter", string(parameter))
	params.Set("limit", strconv.Itoa(limit))

	var result measurementsResponse
	if err := c.get(ctx, "measurements", params, &result); err != nil {
		return nil, err
	}

	readings := make([]airquality.Reading, 0, len(result.Results))
	for i := range result.Results {
		m := &result.Results[i]
		measuredAt, err := parseLocalTime(m.Date.Local, m.Date.UTC)
		if err != nil {
			c.logger.Debug().
				Err(err).
				Str("location", locationID).
				Msg("skipping measurement with unparseable date")
			continue
		}
		readings = append(readings, airquality.Reading{
			Time:  measuredAt,
			Value: m.Value,
			Unit:  m.Unit,
		})
	}

	c.metrics.RecordReadings(ctx, ProviderName, string(parameter), len(readings))

	return readings, nil
}

// get performs a GET on {baseURL}/{endpoint}?{params} and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordRequest(ctx, ProviderName, endpoint, time.Since(start), err)
	}()

	reqURL := c.baseURL + "/" + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w: %w", endpoint, airquality.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return airquality.ErrRateLimited
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d from %s endpoint", airquality.ErrProviderUnavailable, resp.StatusCode, endpoint)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: status %d from %s endpoint", ErrUnexpectedStatus, resp.StatusCode, endpoint)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// toLocation converts API location data to a domain Location. The
// location name doubles as the measurements query key.
func toLocation(l *locationData) (airquality.Location, bool) {
	id := l.Location
	if id == "" {
		return airquality.Location{}, false
	}

	return airquality.Location{
		ID:      id,
		Name:    l.Location,
		City:    l.City,
		Country: l.Country,
		Coordinates: airquality.Coordinates{
			Latitude:  l.Coordinates.Latitude,
			Longitude: l.Coordinates.Longitude,
		},
	}, true
}

// localTimeLayouts are the ISO-8601 shapes OpenAQ has used for date.local.
var localTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseLocalTime parses the station-local timestamp, falling back to UTC.
func parseLocalTime(local, utc string) (time.Time, error) {
	for _, value := range []string{local, utc} {
		if value == "" {
			continue
		}
		for _, layout := range localTimeLayouts {
			if t, err := time.Parse(layout, value); err == nil {
				return t, nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamps: local %q, utc %q", local, utc)
}
