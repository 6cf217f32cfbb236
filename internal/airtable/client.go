// Package airtable is a small REST client for the hosted record store.
package airtable

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

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.airtable.com/v0"
	// PageSize is the largest page the list endpoint returns.
	PageSize = 100
	// MaxBatch is the record limit for a single create or update call.
	MaxBatch = 10
)

// ErrBatchTooLarge is returned when a write carries more than MaxBatch records.
var ErrBatchTooLarge = fmt.Errorf("airtable: more than %d records in one call", MaxBatch)

// APIError is a non-2xx response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("airtable: %d %s: %s", e.Status, http.StatusText(e.Status), e.Body)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Record is one row as the API returns it. Fields carry native names.
type Record struct {
	ID          string         `json:"id,omitempty"`
	CreatedTime string         `json:"createdTime,omitempty"`
	Fields      map[string]any `json:"fields"`
}

type recordsBody struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

// Config configures a Client.
type Config struct {
	BaseURL string
	BaseID  string
	Token   string
	// RPS caps outgoing requests per second; zero disables throttling.
	RPS  float64
	HTTP *http.Client
}

// Client talks to one base. Safe for concurrent use.
type Client struct {
	base    string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	hc := cfg.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	lim := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}
	return &Client{
		base:    baseURL + "/" + url.PathEscape(cfg.BaseID),
		token:   cfg.Token,
		http:    hc,
		limiter: lim,
	}
}

// ListPage returns one page of records and the cursor for the next page.
// An empty cursor means the table is exhausted.
func (c *Client) ListPage(ctx context.Context, table, offset string) ([]Record, string, error) {
	q := url.Values{}
	q.Set("pageSize", strconv.Itoa(PageSize))
	if offset != "" {
		q.Set("offset", offset)
	}
	var body recordsBody
	if err := c.do(ctx, http.MethodGet, c.tableURL(table)+"?"+q.Encode(), nil, &body); err != nil {
		return nil, "", err
	}
	return body.Records, body.Offset, nil
}

// FetchAll follows the continuation cursor until the table is exhausted.
func (c *Client) FetchAll(ctx context.Context, table string) ([]Record, error) {
	var all []Record
	offset := ""
	for {
		recs, next, err := c.ListPage(ctx, table, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, recs...)
		if next == "" {
			return all, nil
		}
		offset = next
	}
}

// Get fetches a single record.
func (c *Client) Get(ctx context.Context, table, id string) (Record, error) {
	var rec Record
	err := c.do(ctx, http.MethodGet, c.tableURL(table)+"/"+url.PathEscape(id), nil, &rec)
	return rec, err
}

// Patch updates up to MaxBatch records; only the given fields change.
func (c *Client) Patch(ctx context.Context, table string, recs []Record) ([]Record, error) {
	if len(recs) > MaxBatch {
		return nil, ErrBatchTooLarge
	}
	if len(recs) == 0 {
		return nil, nil
	}
	out := make([]Record, len(recs))
	for i, r := range recs {
		out[i] = Record{ID: r.ID, Fields: r.Fields}
	}
	var body recordsBody
	if err := c.do(ctx, http.MethodPatch, c.tableURL(table), recordsBody{Records: out}, &body); err != nil {
		return nil, err
	}
	return body.Records, nil
}

// Create inserts one record.
func (c *Client) Create(ctx context.Context, table string, fields map[string]any) (Record, error) {
	var body recordsBody
	if err := c.do(ctx, http.MethodPost, c.tableURL(table), recordsBody{Records: []Record{{Fields: fields}}}, &body); err != nil {
		return Record{}, err
	}
	if len(body.Records) != 1 {
		return Record{}, fmt.Errorf("airtable: create returned %d records", len(body.Records))
	}
	return body.Records[0], nil
}

// Ping lists a single page to check credentials and reachability.
func (c *Client) Ping(ctx context.Context, table string) error {
	q := url.Values{}
	q.Set("pageSize", "1")
	return c.do(ctx, http.MethodGet, c.tableURL(table)+"?"+q.Encode(), nil, &recordsBody{})
}

func (c *Client) tableURL(table string) string {
	return c.base + "/" + url.PathEscape(table)
}

func (c *Client) do(ctx context.Context, method, u string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	var rdr io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("airtable %s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("airtable: decode response: %w", err)
	}
	return nil
}
