package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vvka-141/pgload/pkg/pgload"
)

// DefaultHTTPTimeout bounds a single REST request.
const DefaultHTTPTimeout = 60 * time.Second

// maxErrorBody caps how much of a failed response is read.
const maxErrorBody = 64 << 10

// Client talks to one PostgREST table.
type Client struct {
	baseURL string
	apiKey  string
	schema  string
	table   string
	http    *http.Client
}

// NewClient creates a Client for {baseURL}/rest/v1/{table} in schema.
// A nil httpClient gets DefaultHTTPTimeout.
func NewClient(baseURL, apiKey, schema, table string, httpClient *http.Client) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid REST base URL %q: %w", baseURL, pgload.ErrInvalidConfig)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required: %w", pgload.ErrInvalidConfig)
	}
	if table == "" {
		return nil, fmt.Errorf("table is required: %w", pgload.ErrInvalidConfig)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}

	return &Client{
		baseURL: base,
		apiKey:  apiKey,
		schema:  schema,
		table:   table,
		http:    httpClient,
	}, nil
}

// Endpoint returns the table URL.
func (c *Client) Endpoint() string {
	return c.baseURL + "/rest/v1/" + url.PathEscape(c.table)
}

func (c *Client) newRequest(ctx context.Context, method, query string, body io.Reader) (*http.Request, error) {
	target := c.Endpoint()
	if query != "" {
		target += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.schema != "" {
		if method == http.MethodGet || method == http.MethodHead {
			req.Header.Set("Accept-Profile", c.schema)
		} else {
			req.Header.Set("Content-Profile", c.schema)
		}
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, c.Endpoint(), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, decodeAPIError(resp.StatusCode, body)
	}
	return resp, nil
}

// Insert POSTs records as one JSON array. An empty slice sends nothing.
func (c *Client) Insert(ctx context.Context, records []pgload.Institution) error {
	if len(records) == 0 {
		return nil
	}

	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode %d records: %w", len(records), err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Count returns the exact number of rows in the table.
func (c *Client) Count(ctx context.Context) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "select=id&limit=1", nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Prefer", "count=exact")

	resp, err := c.do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return ParseContentRange(resp.Header.Get("Content-Range"))
}

// Sample returns up to n rows with id, name, city and state.
func (c *Client) Sample(ctx context.Context, n int) ([]pgload.SampleRow, error) {
	if n <= 0 {
		return nil, nil
	}

	query := url.Values{}
	query.Set("select", "id,name,city,state")
	query.Set("order", "id")
	query.Set("limit", strconv.Itoa(n))

	req, err := c.newRequest(ctx, http.MethodGet, query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rows []struct {
		ID    json.RawMessage `json:"id"`
		Name  *string         `json:"name"`
		City  *string         `json:"city"`
		State *string         `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode sample: %w", err)
	}

	out := make([]pgload.SampleRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, pgload.SampleRow{
			ID:    strings.Trim(string(r.ID), `"`),
			Name:  deref(r.Name),
			City:  deref(r.City),
			State: deref(r.State),
		})
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ParseContentRange extracts the total from a Content-Range header such as
// "0-0/1500" or "*/0".
func ParseContentRange(header string) (int64, error) {
	_, total, ok := strings.Cut(strings.TrimSpace(header), "/")
	if !ok || total == "" || total == "*" {
		return 0, fmt.Errorf("no total in Content-Range %q", header)
	}
	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return 0, errors.Join(fmt.Errorf("invalid total in Content-Range %q", header), err)
	}
	return n, nil
}
