// Package sparql is a thin HTTP client for the external engine's SPARQL
// endpoint. The engine owns query planning entirely; this client submits
// queries and decodes the sparql-results+json shape for page rendering,
// or relays raw responses for the protected gateway.
package sparql

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/hereditary-eu/obda-studio/internal/platform/errors"
	"github.com/hereditary-eu/obda-studio/internal/platform/timeouts"
)

// resultsAccept is the response format requested from the engine.
const resultsAccept = "application/sparql-results+json"

// pingQuery is the trivial query used to probe endpoint liveness.
const pingQuery = "ASK {}"

// Client submits SPARQL queries to one engine endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// Results holds decoded SELECT/ASK bindings for page rendering.
type Results struct {
	Vars []string
	Rows [][]string
}

// Response is a raw engine response for verbatim relay.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// QueryError reports a non-success engine response, body included, so
// callers can surface the engine's own diagnostics.
type QueryError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("engine returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("engine returned status %d: %s", e.StatusCode, body)
}

// NewClient builds a client for the endpoint. A nil httpClient gets a
// default with the shared SPARQL request timeout.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeouts.SPARQLRequest}
	}
	return &Client{
		endpoint:   strings.TrimSpace(endpoint),
		httpClient: httpClient,
	}
}

// Endpoint returns the configured endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Select submits a query and decodes the JSON results table.
func (c *Client) Select(ctx context.Context, query string) (Results, error) {
	response, err := c.post(ctx, query)
	if err != nil {
		return Results{}, err
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return Results{}, &QueryError{StatusCode: response.StatusCode, Body: string(response.Body)}
	}
	return decodeResults(response.Body)
}

// Raw submits a query and returns the engine response verbatim. Non-2xx
// responses are returned, not errors: the gateway relays them as-is.
func (c *Client) Raw(ctx context.Context, query string) (Response, error) {
	return c.post(ctx, query)
}

// Ping reports whether the endpoint answers HTTP at all. Any HTTP status
// counts as alive; only transport failures mean the engine is down.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.post(ctx, pingQuery)
	return err
}

// post submits the query as form data with the results Accept header.
func (c *Client) post(ctx context.Context, query string) (Response, error) {
	if c.endpoint == "" {
		return Response{}, apperrors.New(apperrors.CodeEngineUnreachable, "sparql endpoint is not configured")
	}

	form := url.Values{"query": {query}}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Response{}, fmt.Errorf("build sparql request: %w", err)
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	request.Header.Set("Accept", resultsAccept)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return Response{}, apperrors.Wrap(apperrors.CodeEngineUnreachable, fmt.Sprintf("sparql endpoint %s unreachable", c.endpoint), err)
	}
	defer func() {
		_ = response.Body.Close()
	}()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read sparql response: %w", err)
	}

	return Response{
		StatusCode:  response.StatusCode,
		ContentType: response.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// resultsDocument mirrors the sparql-results+json wire shape.
type resultsDocument struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Boolean *bool `json:"boolean"`
	Results struct {
		Bindings []map[string]struct {
			Value string `json:"value"`
		} `json:"bindings"`
	} `json:"results"`
}

// decodeResults flattens the bindings into a vars/rows table.
func decodeResults(body []byte) (Results, error) {
	var document resultsDocument
	if err := json.Unmarshal(body, &document); err != nil {
		return Results{}, fmt.Errorf("decode sparql results: %w", err)
	}

	if document.Boolean != nil {
		return Results{
			Vars: []string{"boolean"},
			Rows: [][]string{{fmt.Sprintf("%t", *document.Boolean)}},
		}, nil
	}

	results := Results{Vars: document.Head.Vars}
	for _, binding := range document.Results.Bindings {
		row := make([]string, len(results.Vars))
		for i, name := range results.Vars {
			if cell, ok := binding[name]; ok {
				row[i] = cell.Value
			}
		}
		results.Rows = append(results.Rows, row)
	}
	return results, nil
}
