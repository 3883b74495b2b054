// Package lookup talks to the third-party number lookup API.
package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/lookup-credits/internal/errs"
)

// ErrUnavailable means no endpoint produced a usable answer.
var ErrUnavailable = fmt.Errorf("lookup unavailable: %w", errs.ErrLookupFailed)

// APIError is an error reported by the lookup API itself.
type APIError struct{ Message string }

func (e *APIError) Error() string { return "lookup api: " + e.Message }

// Unwrap lets callers match APIError as errs.ErrLookupFailed.
func (e *APIError) Unwrap() error { return errs.ErrLookupFailed }

// Result is a successful lookup. Count may exceed len(Records) when the API
// reports a total larger than the page it returned.
type Result struct {
	Records []Record
	Count   int
}

// Config configures Client.
type Config struct {
	// Endpoint is the API URL; the query is sent as the "number" parameter.
	Endpoint string
	// Proxies are fallback URL templates. {url} is replaced with the escaped
	// target URL and {raw} with the unescaped one.
	Proxies []string
	// Timeout bounds each attempt.
	Timeout time.Duration
}

// Client queries the endpoint directly, then through each proxy in order.
type Client struct {
	http *http.Client
	cfg  Config
	log  *zap.Logger
}

// NewClient constructs a lookup client. A nil http client uses http.DefaultClient.
func NewClient(cfg Config, hc *http.Client, log *zap.Logger) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{http: hc, cfg: cfg, log: log}
}

// targets lists the URLs to try for query, direct endpoint first.
func (c *Client) targets(query string) ([]string, error) {
	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("lookup endpoint: %w", err)
	}
	q := u.Query()
	q.Set("number", query)
	u.RawQuery = q.Encode()
	target := u.String()

	out := []string{target}
	for _, p := range c.cfg.Proxies {
		p = strings.ReplaceAll(p, "{url}", url.QueryEscape(target))
		p = strings.ReplaceAll(p, "{raw}", target)
		out = append(out, p)
	}
	return out, nil
}

// Search runs the lookup. An empty result is returned without error; an
// error reported by the API stops the fallback chain.
func (c *Client) Search(ctx context.Context, query string) (Result, error) {
	urls, err := c.targets(query)
	if err != nil {
		return Result{}, err
	}
	for i, u := range urls {
		res, err := c.attempt(ctx, u)
		if err == nil {
			return res, nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return Result{}, err
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		c.log.Debug("lookup attempt failed", zap.Int("attempt", i), zap.Error(err))
	}
	return Result{}, ErrUnavailable
}

var errSkip = errors.New("unusable response")

func (c *Client) attempt(ctx context.Context, target string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("status %d: %w", resp.StatusCode, errSkip)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Result{}, err
	}
	return parse(body)
}

type envelope struct {
	Success bool `json:"success"`
	Data    *struct {
		RecordsCount int      `json:"records_count"`
		Records      []Record `json:"records"`
	} `json:"data"`
	Error string `json:"error"`
}

// parse accepts {success,data:{records_count,records}}, {error} and a bare array.
func parse(body []byte) (Result, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Result{}, fmt.Errorf("empty body: %w", errSkip)
	}

	if body[0] == '[' {
		var recs []Record
		if err := json.Unmarshal(body, &recs); err != nil {
			return Result{}, fmt.Errorf("decode: %w", errSkip)
		}
		return Result{Records: recs, Count: len(recs)}, nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Result{}, fmt.Errorf("decode: %w", errSkip)
	}
	switch {
	case env.Success && env.Data != nil && env.Data.Records != nil:
		n := env.Data.RecordsCount
		if n == 0 {
			n = len(env.Data.Records)
		}
		if len(env.Data.Records) == 0 {
			n = 0
		}
		return Result{Records: env.Data.Records, Count: n}, nil
	case env.Error != "":
		return Result{}, &APIError{Message: env.Error}
	}
	return Result{}, fmt.Errorf("unknown shape: %w", errSkip)
}
