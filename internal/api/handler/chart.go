package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aqplot/aqplot/internal/airquality"
	"github.com/aqplot/aqplot/internal/api/middleware"
	"github.com/aqplot/aqplot/internal/api/models"
	"github.com/aqplot/aqplot/internal/api/response"
	"github.com/aqplot/aqplot/internal/plot"
	"github.com/aqplot/aqplot/internal/provider/resilience"
)

// Plain-text outcomes of the chart route.
const (
	MessageRateLimited = "Rate limit reached"
	MessageNoCityData  = "No data for this city"
	MessageNoQueryData = "No data for this query"
)

// ChartBuilder assembles chart data for a validated query.
type ChartBuilder interface {
	BuildChartData(ctx context.Context, q airquality.Query) (*airquality.ChartData, error)
}

// FormProvider returns the HTML query form.
type FormProvider interface {
	HTML(ctx context.Context) []byte
}

// ChartHandlerConfig holds the dependencies of a ChartHandler.
type ChartHandlerConfig struct {
	Builder ChartBuilder
	Form    FormProvider
	Render  plot.Options
	Logger  zerolog.Logger
}

// ChartHandler serves the query form and the rendered chart.
type ChartHandler struct {
	builder ChartBuilder
	form    FormProvider
	render  plot.Options
	logger  zerolog.Logger
}

// NewChartHandler creates a new ChartHandler.
func NewChartHandler(cfg ChartHandlerConfig) *ChartHandler {
	return &ChartHandler{
		builder: cfg.Builder,
		form:    cfg.Form,
		render:  cfg.Render,
		logger:  cfg.Logger,
	}
}

// Chart handles GET / and GET /chart. Without query parameters it serves
// the form; otherwise it validates the query and renders the chart.
func (h *ChartHandler) Chart(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	if len(values) == 0 {
		response.HTML(w, r, http.StatusOK, h.form.HTML(r.Context()))
		return
	}

	q, err := airquality.ParseQuery(values)
	if err != nil {
		var verr *airquality.ValidationError
		if errors.As(err, &verr) {
			response.BadRequest(w, r, "invalid query parameters", toFieldErrors(verr))
			return
		}
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	data, err := h.builder.BuildChartData(r.Context(), q)
	if err != nil {
		h.writeBuildError(w, r, q, err)
		return
	}

	var buf bytes.Buffer
	if err := plot.Render(&buf, data, h.render); err != nil {
		h.logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("city", data.City).
			Msg("failed to render chart")
		response.InternalError(w, r, "failed to render chart")
		return
	}

	response.HTML(w, r, http.StatusOK, buf.Bytes())
}

// writeBuildError maps pipeline errors onto responses.
func (h *ChartHandler) writeBuildError(w http.ResponseWriter, r *http.Request, q airquality.Query, err error) {
	switch {
	case errors.Is(err, airquality.ErrRateLimited):
		response.Message(w, r, http.StatusTooManyRequests, MessageRateLimited)
		return
	case errors.Is(err, airquality.ErrCityNotFound):
		response.Message(w, r, http.StatusOK, MessageNoCityData)
		return
	case errors.Is(err, airquality.ErrNoData):
		response.Message(w, r, http.StatusOK, MessageNoQueryData)
		return
	}

	log := h.logger.With().
		Err(err).
		Str("request_id", middleware.GetRequestID(r.Context())).
		Str("city", q.CityName()).
		Str("parameter", string(q.Parameter)).
		Logger()

	if errors.Is(err, airquality.ErrProviderUnavailable) || errors.Is(err, resilience.ErrCircuitOpen) {
		log.Warn().Msg("air quality provider unavailable")
		response.ServiceUnavailable(w, r, "the air quality provider is currently unavailable")
		return
	}

	log.Error().Msg("failed to build chart data")
	response.BadGateway(w, r, "unexpected response from the air quality provider")
}

func toFieldErrors(verr *airquality.ValidationError) []models.FieldError {
	out := make([]models.FieldError, len(verr.Fields))
	for i, f := range verr.Fields {
		out[i] = models.FieldError{Field: f.Field, Message: f.Message, Code: f.Code}
	}
	return out
}
