// Package form serves the HTML query form shown when the chart route is
// requested without parameters.
package form

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aqplot/aqplot/internal/airquality"
)

//go:embed templates/form.html.tmpl
var templatesFS embed.FS

// maxRemoteSize caps how much of a remote form is read.
const maxRemoteSize = 1 << 20

// ErrRemoteStatus is returned when the remote form answers with a non-200 status.
var ErrRemoteStatus = errors.New("unexpected status fetching remote form")

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds configuration for the form provider.
type Config struct {
	// Action is the URL the form submits to (default: "/").
	Action string

	// RemoteURL, when set, is fetched on every request and served instead
	// of the embedded form.
	RemoteURL string

	// HTTPClient fetches RemoteURL. Required when RemoteURL is set.
	HTTPClient HTTPDoer

	// Logger reports remote fetch failures.
	Logger zerolog.Logger
}

// Provider returns the query form.
type Provider struct {
	embedded   []byte
	remoteURL  string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

type templateData struct {
	Action               string
	Parameters           []airquality.Parameter
	DefaultParameter     airquality.Parameter
	DefaultResultLimit   int
	MinResultLimit       int
	MaxResultLimit       int
	DefaultLocationLimit int
	MinLocationLimit     int
	MaxLocationLimit     int
}

// New renders the embedded form once and returns a Provider.
func New(cfg Config) (*Provider, error) {
	if cfg.Action == "" {
		cfg.Action = "/"
	}
	if cfg.RemoteURL != "" && cfg.HTTPClient == nil {
		return nil, errors.New("form: HTTPClient is required with RemoteURL")
	}

	view, err := template.New("form.html.tmpl").ParseFS(templatesFS, "templates/form.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse form template: %w", err)
	}

	var buf bytes.Buffer
	err = view.Execute(&buf, templateData{
		Action:               cfg.Action,
		Parameters:           airquality.Parameters,
		DefaultParameter:     airquality.DefaultParameter,
		DefaultResultLimit:   airquality.DefaultResultLimit,
		MinResultLimit:       airquality.MinResultLimit,
		MaxResultLimit:       airquality.MaxResultLimit,
		DefaultLocationLimit: airquality.DefaultLocationLimit,
		MinLocationLimit:     airquality.MinLocationLimit,
		MaxLocationLimit:     airquality.MaxLocationLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("render form template: %w", err)
	}

	return &Provider{
		embedded:   buf.Bytes(),
		remoteURL:  cfg.RemoteURL,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}, nil
}

// HTML returns the form document. A remote form that cannot be fetched
// is replaced by the embedded one.
func (p *Provider) HTML(ctx context.Context) []byte {
	if p.remoteURL == "" {
		return p.embedded
	}

	body, err := p.fetchRemote(ctx)
	if err != nil {
		p.logger.Warn().
			Err(err).
			Str("url", p.remoteURL).
			Msg("remote form unavailable, serving embedded form")
		return p.embedded
	}
	return body
}

func (p *Provider) fetchRemote(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.remoteURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch remote form: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrRemoteStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteSize))
	if err != nil {
		return nil, fmt.Errorf("read remote form: %w", err)
	}
	return body, nil
}
