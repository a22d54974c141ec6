package airquality

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Query defaults and bounds.
const (
	DefaultParameter     = ParameterPM10
	DefaultResultLimit   = 1000
	DefaultLocationLimit = 5

	MinResultLimit   = 1
	MaxResultLimit   = 10000
	MinLocationLimit = 1
	MaxLocationLimit = 10
)

// External query parameter names.
const (
	FieldCity          = "city"
	FieldParameter     = "var"
	FieldResultLimit   = "result_limit"
	FieldLocationLimit = "loc_limit"
)

// Validation error codes.
const (
	CodeRequired       = "required"
	CodeInvalidChoice  = "invalid_choice"
	CodeInvalidInteger = "invalid_integer"
	CodeOutOfRange     = "out_of_range"
)

// Query is a validated chart request.
type Query struct {
	City          string
	Parameter     Parameter
	ResultLimit   int
	LocationLimit int
}

// CityName returns the city without any ", region/country" suffix.
func (q Query) CityName() string {
	name, _, _ := strings.Cut(q.City, ",")
	return strings.TrimSpace(name)
}

// FieldError describes one invalid query parameter.
type FieldError struct {
	Field   string
	Message string
	Code    string
}

// ValidationError collects every invalid parameter of a query.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid query: " + strings.Join(parts, "; ")
}

// ParseQuery unpacks and validates chart query parameters, applying
// defaults for absent or empty optional values. All invalid fields are
// reported together in a *ValidationError.
func ParseQuery(values url.Values) (Query, error) {
	q := Query{
		City:          strings.TrimSpace(values.Get(FieldCity)),
		Parameter:     DefaultParameter,
		ResultLimit:   DefaultResultLimit,
		LocationLimit: DefaultLocationLimit,
	}

	var fields []FieldError

	if q.CityName() == "" {
		fields = append(fields, FieldError{
			Field:   FieldCity,
			Message: "city is required",
			Code:    CodeRequired,
		})
	}

	if raw := strings.TrimSpace(values.Get(FieldParameter)); raw != "" {
		p, ok := ParseParameter(raw)
		if ok {
			q.Parameter = p
		} else {
			fields = append(fields, FieldError{
				Field:   FieldParameter,
				Message: fmt.Sprintf("must be one of %s", parameterList()),
				Code:    CodeInvalidChoice,
			})
		}
	}

	if fe := parseBoundedInt(values, FieldResultLimit, MinResultLimit, MaxResultLimit, &q.ResultLimit); fe != nil {
		fields = append(fields, *fe)
	}
	if fe := parseBoundedInt(values, FieldLocationLimit, MinLocationLimit, MaxLocationLimit, &q.LocationLimit); fe != nil {
		fields = append(fields, *fe)
	}

	if len(fields) > 0 {
		return Query{}, &ValidationError{Fields: fields}
	}
	return q, nil
}

// parseBoundedInt leaves *dst untouched when the field is absent.
func parseBoundedInt(values url.Values, field string, lo, hi int, dst *int) *FieldError {
	raw := strings.TrimSpace(values.Get(field))
	if raw == "" {
		return nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return &FieldError{Field: field, Message: "must be an integer", Code: CodeInvalidInteger}
	}
	if n < lo || n > hi {
		return &FieldError{
			Field:   field,
			Message: fmt.Sprintf("must be between %d and %d", lo, hi),
			Code:    CodeOutOfRange,
		}
	}

	*dst = n
	return nil
}

func parameterList() string {
	names := make([]string, len(Parameters))
	for i, p := range Parameters {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
