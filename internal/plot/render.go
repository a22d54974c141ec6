// Package plot renders chart data as a self-contained HTML page with an
// inline SVG time-series chart.
package plot

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"html/template"
	"io"
	"math"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/aqplot/aqplot/internal/airquality"
)

// Default chart dimensions in pixels.
const (
	DefaultWidth  = 1500
	DefaultHeight = 600
)

const dateLayout = "2006-01-02"

// ErrNoSeries is returned when there is nothing to draw.
var ErrNoSeries = errors.New("plot: no series to render")

// Options controls chart rendering.
type Options struct {
	Width  int
	Height int

	// HideTable omits the per-series data tables under the chart.
	HideTable bool
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	return o
}

// page is the template model.
type page struct {
	Title  string
	Width  int
	SVG    template.HTML
	Series []pageSeries
}

type pageSeries struct {
	Label string
	Color string
	Rows  []pageRow
}

type pageRow struct {
	Date  string
	Value string
}

// Render writes data as an HTML document to w. Each series is drawn as a
// solid line in its own color from Colors, with a legend in the top-left
// corner of the plot.
func Render(w io.Writer, data *airquality.ChartData, opts Options) error {
	if data == nil || len(data.Series) == 0 {
		return ErrNoSeries
	}
	opts = opts.withDefaults()

	svg, err := renderSVG(data, opts)
	if err != nil {
		return err
	}

	colors := Colors(len(data.Series))
	model := page{
		Title: data.Title(),
		Width: opts.Width,
		SVG:   template.HTML(svg), //nolint:gosec // every text fed to go-chart is escaped in renderSVG
	}
	if !opts.HideTable {
		model.Series = make([]pageSeries, len(data.Series))
		for i, s := range data.Series {
			model.Series[i] = tableFor(s, colors[i])
		}
	}

	return pageTemplate.Execute(w, model)
}

// renderSVG draws the chart with go-chart and returns the SVG markup.
// go-chart writes text nodes verbatim, so labels are escaped here.
func renderSVG(data *airquality.ChartData, opts Options) (string, error) {
	colors := Colors(len(data.Series))
	series := make([]chart.Series, 0, len(data.Series))
	bounds := newBounds()

	for i, s := range data.Series {
		color := drawing.ColorFromHex(strings.TrimPrefix(colors[i], "#"))

		xs := make([]time.Time, len(s.Readings))
		ys := make([]float64, len(s.Readings))
		for j, r := range s.Readings {
			xs[j] = wallClock(r.Time)
			ys[j] = r.Value
			bounds.add(chart.TimeToFloat64(xs[j]), r.Value)
		}

		series = append(series, chart.TimeSeries{
			Name: html.EscapeString(s.Label()),
			Style: chart.Style{
				StrokeColor: color,
				StrokeWidth: 2,
				DotColor:    color,
				DotWidth:    2,
			},
			XValues: xs,
			YValues: ys,
		})
	}

	graph := chart.Chart{
		Title:  html.EscapeString(data.Title()),
		Width:  opts.Width,
		Height: opts.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: dateTick,
			Range:          bounds.xRange(),
		},
		YAxis: chart.YAxis{
			Name:  html.EscapeString(data.ValueAxisLabel()),
			Range: bounds.yRange(),
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.SVG, &buf); err != nil {
		return "", fmt.Errorf("render chart: %w", err)
	}
	return buf.String(), nil
}

// wallClock keeps the station-local wall time and drops the offset, so
// readings plot at the hour they were taken locally.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// dateTick formats x-axis ticks as dates.
func dateTick(v interface{}) string {
	switch typed := v.(type) {
	case time.Time:
		return typed.UTC().Format(dateLayout)
	case float64:
		return time.Unix(0, int64(typed)).UTC().Format(dateLayout)
	case int64:
		return time.Unix(0, typed).UTC().Format(dateLayout)
	default:
		return ""
	}
}

// bounds tracks the data extent so degenerate ranges can be widened;
// go-chart refuses to draw an axis whose range has zero width.
type bounds struct {
	minX, maxX float64
	minY, maxY float64
}

func newBounds() *bounds {
	return &bounds{
		minX: math.Inf(1), maxX: math.Inf(-1),
		minY: math.Inf(1), maxY: math.Inf(-1),
	}
}

func (b *bounds) add(x, y float64) {
	b.minX = math.Min(b.minX, x)
	b.maxX = math.Max(b.maxX, x)
	b.minY = math.Min(b.minY, y)
	b.maxY = math.Max(b.maxY, y)
}

// xRange is nil unless every reading shares one timestamp.
func (b *bounds) xRange() chart.Range {
	if b.minX != b.maxX {
		return nil
	}
	pad := float64(12 * time.Hour)
	return &chart.ContinuousRange{Min: b.minX - pad, Max: b.maxX + pad}
}

// yRange is nil unless every reading has the same value.
func (b *bounds) yRange() chart.Range {
	if b.minY != b.maxY {
		return nil
	}
	pad := math.Max(math.Abs(b.minY)*0.1, 1)
	return &chart.ContinuousRange{Min: b.minY - pad, Max: b.maxY + pad}
}

func tableFor(s airquality.Series, color string) pageSeries {
	rows := make([]pageRow, len(s.Readings))
	for i, r := range s.Readings {
		rows[i] = pageRow{
			Date:  wallClock(r.Time).Format("2006-01-02 15:04"),
			Value: fmt.Sprintf("%g", r.Value),
		}
	}
	return pageSeries{Label: s.Label(), Color: color, Rows: rows}
}
