// Package airquality turns a city query into per-station time series of
// pollutant readings ready for charting.
package airquality

import (
	"errors"
	"strconv"
	"time"
)

// Pipeline errors.
var (
	ErrCityNotFound = errors.New("no locations found for city")
	ErrNoData       = errors.New("no readings available for query")
	ErrRateLimited  = errors.New("upstream rate limit reached")

	ErrProviderUnavailable = errors.New("air quality provider unavailable")
)

// Parameter is a pollutant identifier as used by OpenAQ.
type Parameter string

const (
	ParameterBC   Parameter = "bc"
	ParameterCO   Parameter = "co"
	ParameterNO2  Parameter = "no2"
	ParameterO3   Parameter = "o3"
	ParameterPM10 Parameter = "pm10"
	ParameterPM25 Parameter = "pm25"
	ParameterSO2  Parameter = "so2"
)

// Parameters lists every supported pollutant in display order.
var Parameters = []Parameter{
	ParameterBC,
	ParameterCO,
	ParameterNO2,
	ParameterO3,
	ParameterPM10,
	ParameterPM25,
	ParameterSO2,
}

// ParseParameter returns the Parameter named by s.
func ParseParameter(s string) (Parameter, bool) {
	for _, p := range Parameters {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// Coordinates is a WGS84 position.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// String formats the coordinates as "lat, lon" using the shortest exact
// decimal form of each value.
func (c Coordinates) String() string {
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64) + ", " + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}

// Location is a monitoring station returned by a city lookup.
type Location struct {
	// ID is the identifier used to query the station's measurements.
	ID          string
	Name        string
	City        string
	Country     string
	Coordinates Coordinates
}

// Reading is a single measured value.
type Reading struct {
	Time  time.Time
	Value float64
	Unit  string
}

// Series is the ordered readings of one station.
type Series struct {
	Location Location
	Readings []Reading
}

// Label is the legend text for the series: "name: lat, lon".
func (s Series) Label() string {
	name := s.Location.Name
	if name == "" {
		name = s.Location.ID
	}
	return name + ": " + s.Location.Coordinates.String()
}

// Times returns the reading timestamps in order.
func (s Series) Times() []time.Time {
	times := make([]time.Time, len(s.Readings))
	for i, r := range s.Readings {
		times[i] = r.Time
	}
	return times
}

// Values returns the reading values in order.
func (s Series) Values() []float64 {
	values := make([]float64, len(s.Readings))
	for i, r := range s.Readings {
		values[i] = r.Value
	}
	return values
}

// ChartData is everything needed to draw one chart.
type ChartData struct {
	City        string
	Parameter   Parameter
	ResultLimit int
	Unit        string
	Series      []Series
}

// Title is the human-readable chart title.
func (d *ChartData) Title() string {
	return string(d.Parameter) + " concentration for last " + strconv.Itoa(d.ResultLimit) +
		" readings from stations in " + d.City
}

// ValueAxisLabel is the label for the concentration axis.
func (d *ChartData) ValueAxisLabel() string {
	return string(d.Parameter) + " concentration (" + d.Unit + ")"
}
