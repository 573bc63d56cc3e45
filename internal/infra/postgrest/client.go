// Package postgrest implements the catalog over the hosted backend's
// PostgREST interface (/rest/v1).
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/melodify/internal/app/catalog"
)

const (
	singleObject = "application/vnd.pgrst.object+json"
	songSelect   = "*,artist:artists(*)"
)

// APIError is an error response from PostgREST.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("postgrest error %d (%s): %s", e.Status, e.Code, e.Message)
}

// Config represents PostgREST client configuration.
type Config struct {
	URL    string // project URL, without /rest/v1
	APIKey string // anon or service role key
}

// Client is a PostgREST catalog client.
// Requests carry the access token from catalog.WithAccessToken when
// present, otherwise the API key itself.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ catalog.Store = (*Client)(nil)

// New creates a new PostgREST client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" || cfg.APIKey == "" {
		return nil, errors.New("postgrest url and api key are required")
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/") + "/rest/v1/",
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type request struct {
	method string
	table  string
	query  url.Values
	body   any
	single bool // expect exactly one row
	write  bool // ask for the written rows back
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	reqURL := c.baseURL + r.table
	if len(r.query) > 0 {
		reqURL += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request body")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, reqURL, body)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	token := c.apiKey
	if t, ok := catalog.AccessToken(ctx); ok {
		token = t
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.single {
		req.Header.Set("Accept", singleObject)
	} else {
		req.Header.Set("Accept", "application/json")
	}
	if r.write {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		// A single-object request that matched no rows.
		if resp.StatusCode == http.StatusNotAcceptable && r.single {
			return errors.Mark(apiErr, catalog.ErrNotFound)
		}
		if resp.StatusCode == http.StatusBadRequest {
			return errors.Mark(apiErr, catalog.ErrInvalidInput)
		}
		return apiErr
	}

	zlog.Debug().Msgf("postgrest: %s %s -> %d", r.method, r.table, resp.StatusCode)

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

func eq(v string) string {
	return "eq." + v
}
