// Package search provides the client for the external sentence-count
// service (the Media Cloud API).
//
// A Counter answers "how many sentences match this query and these
// filters". Client talks to the HTTP API; CachedCounter puts a redis cache
// in front of any Counter.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deppfellow/countstore/internal/config"
	loggerPkg "github.com/deppfellow/countstore/internal/logger"
	"github.com/deppfellow/countstore/internal/validation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// countPath is the sentence count endpoint of the v2 API.
const countPath = "/api/v2/sentences/count"

// maxBodySize caps how much of a response is read.
const maxBodySize = 1 << 20

// Counter returns the number of sentences matching query under filters.
type Counter interface {
	Count(ctx context.Context, query string, filters ...Filter) (int64, error)
}

// APIError is a non-2xx answer from the search service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("search service returned %d", e.StatusCode)
	}
	return fmt.Sprintf("search service returned %d: %s", e.StatusCode, e.Message)
}

// countRequest is validated before any network call.
type countRequest struct {
	Query   string   `validate:"required"`
	Filters []Filter `validate:"dive,required"`
}

type countResponse struct {
	Count *int64 `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client calls the search service over HTTP.
type Client struct {
	// baseURL is the API root, e.g. https://api.mediacloud.org.
	baseURL *url.URL

	// apiKey is sent as the key query parameter. It is never logged.
	apiKey string

	httpClient *http.Client

	logger *zerolog.Logger
}

var _ Counter = (*Client)(nil)

// NewClient creates a Client from the search config.
//
// The config is validated first (base URL and API key are required).
// httpClient may be nil, in which case one with cfg.Timeout is created.
func NewClient(cfg config.SearchConfig, httpClient *http.Client, logger *zerolog.Logger) (*Client, error) {
	if err := validation.Struct(cfg); err != nil {
		return nil, err
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid search base url %q", cfg.BaseURL)
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	if logger == nil {
		logger = loggerPkg.Nop()
	}
	clientLogger := logger.With().Str("component", "search").Logger()

	return &Client{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		logger:     &clientLogger,
	}, nil
}

// Count asks the service for the number of sentences matching query.
//
// Steps:
//   - validate the request (query required, no empty filters)
//   - GET {base}/api/v2/sentences/count?q=...&fq=...&key=...
//   - decode {"count": N}
func (c *Client) Count(ctx context.Context, query string, filters ...Filter) (int64, error) {
	if err := validation.Struct(countRequest{Query: query, Filters: filters}); err != nil {
		return 0, err
	}

	params := url.Values{}
	params.Set("q", query)
	if fq := joinFilters(filters); fq != "" {
		params.Set("fq", fq)
	}
	params.Set("key", c.apiKey)

	endpoint := c.baseURL.JoinPath(countPath)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to build sentence count request")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// *url.Error repeats the full URL, api key included.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return 0, errors.Wrapf(err, "sentence count request for %q failed", query)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, errors.Wrap(err, "failed to read sentence count response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var er errorResponse
		if json.Unmarshal(body, &er) == nil {
			apiErr.Message = er.Error
		}
		return 0, errors.Wrapf(apiErr, "sentence count for %q", query)
	}

	var out countResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, errors.Wrap(err, "failed to decode sentence count response")
	}
	if out.Count == nil {
		return 0, errors.New("sentence count response has no count")
	}

	c.logger.Debug().
		Str("query", query).
		Int("filters", len(filters)).
		Int64("count", *out.Count).
		Dur("took", time.Since(start)).
		Msg("sentence count")

	return *out.Count, nil
}
