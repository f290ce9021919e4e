package ampre

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://query.ampre.ca/odata"

// ErrQuotaExceeded is returned when the gateway reports the request quota
// has been exhausted (HTTP 429).
var ErrQuotaExceeded = errors.New("ampre: request quota exceeded")

// APIError is a non-2xx gateway response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ampre error %d: %s", e.Status, e.Body)
}

type Client struct {
	token   string
	baseURL string
	http    *retryablehttp.Client
	limiter *rate.Limiter
}

// NewClient builds a client for the AMPRE OData gateway. Per-call timeout
// is kept in the single-digit seconds so a serving request is never blocked
// indefinitely on the upstream.
func NewClient(token string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 900 * time.Millisecond
	rc.RetryMax = 3
	rc.Logger = nil
	rc.HTTPClient.Timeout = 6 * time.Second
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		// quota exhaustion is not retryable; let the caller back off
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return false, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	return &Client{
		token:   token,
		baseURL: defaultBaseURL,
		http:    rc,
		limiter: rate.NewLimiter(rate.Limit(10), 10), // protect upstream quota
	}
}

// WithBaseURL overrides the gateway URL (tests, staging).
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// FetchListings pages listing records according to q. The returned count is
// the gateway's total match count when q carries WithCount, otherwise -1.
func (c *Client) FetchListings(ctx context.Context, q Query) ([]Listing, int, error) {
	raw, err := c.get(ctx, "/Property", q.Values())
	if err != nil {
		return nil, 0, err
	}
	return ParseListingPayload(raw)
}

// FetchMedia returns photo records for a small batch of listing keys in one
// OR-filtered call, ordered per listing.
func (c *Client) FetchMedia(ctx context.Context, keys []string) ([]Media, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals := make([]any, 0, len(keys))
	for _, k := range keys {
		vals = append(vals, k)
	}
	q := NewQuery().
		In("ResourceRecordKey", vals...).
		Eq("MediaCategory", "Photo").
		Eq("MediaStatus", "Active").
		OrderBy("ResourceRecordKey,Order").
		Top(len(keys) * maxPhotosPerListing)
	raw, err := c.get(ctx, "/Media", q.Values())
	if err != nil {
		return nil, err
	}
	return ParseMediaPayload(raw)
}

const maxPhotosPerListing = 20

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	u := c.baseURL + path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ampre fetch %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrQuotaExceeded
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &APIError{Status: resp.StatusCode, Body: compactBody(body)}
	}
	return readAllLimit(resp.Body, 4<<20) // 4MB guard
}

func compactBody(b []byte) string {
	var m map[string]any
	if json.Unmarshal(b, &m) == nil {
		if msg, ok := m["error"]; ok {
			return fmt.Sprintf("%v", msg)
		}
	}
	return string(b)
}

func readAllLimit(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, errors.New("ampre: payload too large")
	}
	return b, nil
}
