package api_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqplot/aqplot/internal/airquality"
	"github.com/aqplot/aqplot/internal/api"
	"github.com/aqplot/aqplot/internal/api/models"
	"github.com/aqplot/aqplot/internal/form"
	"github.com/aqplot/aqplot/internal/openaq"
	"github.com/aqplot/aqplot/internal/plot"
	"github.com/aqplot/aqplot/internal/provider/resilience"
)

// fakeOpenAQ serves two Amsterdam stations and an empty response for any
// other city. Every measurement request is answered with status when set.
func fakeOpenAQ(t *testing.T, status int) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != 0 {
			w.WriteHeader(status)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/locations":
			if r.URL.Query().Get("city") != "Amsterdam" {
				_, _ = io.WriteString(w, `{"meta":{"found":0},"results":[]}`)
				return
			}
			_, _ = io.WriteString(w, `{"meta":{"found":2},"results":[
				{"location":"Amsterdam-Einsteinweg","city":"Amsterdam","country":"NL","coordinates":{"latitude":52.381331,"longitude":4.845233}},
				{"location":"Amsterdam-Vondelpark","city":"Amsterdam","country":"NL","coordinates":{"latitude":52.359714,"longitude":4.866208}}
			]}`)
		case "/measurements":
			if r.URL.Query().Get("parameter") == "so2" {
				_, _ = io.WriteString(w, `{"meta":{"found":0},"results":[]}`)
				return
			}
			_, _ = io.WriteString(w, `{"meta":{"found":2},"results":[
				{"value":21.4,"unit":"µg/m³","date":{"utc":"2020-05-01T10:00:00Z","local":"2020-05-01T12:00:00+02:00"}},
				{"value":19.5,"unit":"µg/m³","date":{"utc":"2020-05-01T09:00:00Z","local":"2020-05-01T11:00:00+02:00"}}
			]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

type testRouterOptions struct {
	upstreamStatus int
	rateLimit      int
	requireTLS     bool
	remoteForm     bool
}

func newTestRouter(t *testing.T, opts testRouterOptions) (http.Handler, *resilience.Registry) {
	t.Helper()

	logger := zerolog.New(io.Discard)
	registry := resilience.NewRegistry()
	upstream := fakeOpenAQ(t, opts.upstreamStatus)

	source := openaq.NewClient(openaq.ClientConfig{
		BaseURL:  upstream.URL,
		Timeout:  time.Second,
		Registry: registry,
		Logger:   logger,
	})
	queryForm, err := form.New(form.Config{Logger: logger})
	require.NoError(t, err)

	router := api.NewRouter(api.RouterConfig{
		Version:            "test",
		BuildTime:          "2024-01-01T00:00:00Z",
		Logger:             logger,
		Charts:             airquality.NewService(airquality.ServiceConfig{Source: source, Logger: logger}),
		Form:               queryForm,
		Render:             plot.Options{Width: 800, Height: 400},
		Registry:           registry,
		RateLimitPerMinute: opts.rateLimit,
		RequireTLS:         opts.requireTLS,
		RemoteForm:         opts.remoteForm,
	})
	return router, registry
}

func get(router http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_Form(t *testing.T) {
	router, _ := newTestRouter(t, testRouterOptions{})

	for _, target := range []string{"/", "/chart"} {
		w := get(router, target)

		assert.Equal(t, http.StatusOK, w.Code, target)
		assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Body.String(), `<form method="get" action="/">`)
		assert.Contains(t, w.Body.String(), `name="loc_limit"`)
	}
}

func TestRouter_Chart(t *testing.T) {
	router, registry := newTestRouter(t, testRouterOptions{})

	w := get(router, "/?city=Amsterdam,%20NL&var=no2&result_limit=2&loc_limit=2")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "no2 concentration for last 2 readings from stations in Amsterdam")
	assert.Contains(t, body, "<svg")
	assert.Contains(t, body, "Amsterdam-Einsteinweg: 52.381331, 4.845233")
	assert.Contains(t, body, "Amsterdam-Vondelpark: 52.359714, 4.866208")
	assert.Contains(t, body, "<td>2020-05-01 11:00</td>")
	assert.Equal(t, 2, strings.Count(body, "<details"))

	health := registry.GetHealth(openaq.ProviderName)
	require.NotNil(t, health)
	assert.NotNil(t, health.LastSuccessAt)
}

func TestRouter_ChartValidation(t *testing.T) {
	router, _ := newTestRouter(t, testRouterOptions{})

	w := get(router, "/chart?city=&var=pm1")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, http.StatusBadRequest, problem.Status)
	assert.Equal(t, w.Header().Get("X-Request-Id"), problem.TraceID)
	require.Len(t, problem.Errors, 2)
}

func TestRouter_ChartMessages(t *testing.T) {
	router, _ := newTestRouter(t, testRouterOptions{})

	tests := []struct {
		target string
		want   string
	}{
		{"/?city=Atlantis", "No data for this city"},
		{"/?city=Amsterdam&var=so2", "No data for this query"},
	}

	for _, tt := range tests {
		w := get(router, tt.target)

		assert.Equal(t, http.StatusOK, w.Code, tt.target)
		assert.Equal(t, tt.want, w.Body.String())
	}
}

func TestRouter_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantStatus int
	}{
		{"rate limited", http.StatusTooManyRequests, http.StatusTooManyRequests},
		{"server error", http.StatusInternalServerError, http.StatusServiceUnavailable},
		{"client error", http.StatusBadRequest, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(t, testRouterOptions{upstreamStatus: tt.status})

			w := get(router, "/?city=Amsterdam")

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRouter_RateLimitedBodyIsPlainText(t *testing.T) {
	router, _ := newTestRouter(t, testRouterOptions{upstreamStatus: http.StatusTooManyRequests})

	w := get(router, "/chart?city=Amsterdam")

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Rate limit reached", w.Body.String())
}

func TestRouter_OpsEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, testRouterOptions{})

	for _, path := range []string{"/v1/ops/health", "/v1/ops/ready", "/v1/ops/status"} {
		w := get(router, path)

		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"), path)
	}

	w := get(router, "/v1/ops/status")
	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	require.Len(t, status.Providers, 1)
	assert.Equal(t, openaq.ProviderName, status.Providers[0].Provider)
	assert.Equal(t, "closed", status.Providers[0].CircuitState)
}

func TestRouter_RequestID(t *testing.T) {
	router, _ := newTestRouter(t, testRouterOptions{})

	w := get(router, "/v1/ops/health")
	assert.True(t, strings.HasPrefix(w.Header().Get("X-Request-Id"), "req_"))

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Request-Id", "upstream-id-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "upstream-id-123", w.Header().Get("X-Request-Id"))
}

func TestRouter_NotFound(t *testing.T) {
	router, _ := newTestRouter(t, testRouterOptions{})

	w := get(router, "/does-not-exist")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestRouter_SecurityHeaders(t *testing.T) {
	router, _ := newTestRouter(t, testRouterOptions{})

	w := get(router, "/")

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}

func TestRouter_FormActionPolicy(t *testing.T) {
	router, _ := newTestRouter(t, testRouterOptions{})
	w := get(router, "/")
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "form-action 'self';")

	router, _ = newTestRouter(t, testRouterOptions{remoteForm: true})
	w = get(router, "/")
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "form-action 'self' https:;")
}

func TestRouter_RequireTLS(t *testing.T) {
	router, _ := newTestRouter(t, testRouterOptions{requireTLS: true})

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("X-Forwarded-Proto", "http")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_InboundRateLimit(t *testing.T) {
	router, _ := newTestRouter(t, testRouterOptions{rateLimit: 2})

	for i := 0; i < 2; i++ {
		w := get(router, "/")
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := get(router, "/chart")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	w = get(router, "/v1/ops/health")
	assert.Equal(t, http.StatusOK, w.Code, "ops routes are not rate limited")
}
