// Package scrape contains the direct platform client: live-stream resolution
// and viewer extraction against the public web surface, used when the official
// Data API is not configured or unavailable. Requests carry a desktop browser
// User-Agent and an Accept-Language header so localized free-text fallbacks
// match predictably.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/onnwee/streamlens/backend/telemetry"
)

const defaultBaseURL = "https://www.youtube.com"

// maxBodyBytes caps how much of a page we read; watch pages run ~1-2MB.
const maxBodyBytes = 8 << 20

// ErrInvalidIdentifier marks an upstream rejection of a malformed channel or
// video id (HTTP 400-class). It is non-retryable and must never be masked by
// stale-cache fallbacks.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// StatusError is a transient upstream failure: a non-2xx status that does not
// indicate a bad identifier (5xx, 429). Callers may serve stale data instead.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d for %s", e.StatusCode, e.URL)
}

// Client scrapes the platform's public pages. The zero value works; fields
// override defaults (BaseURL and HTTPClient are swapped out in tests).
type Client struct {
	BaseURL        string
	UserAgent      string
	AcceptLanguage string
	HTTPClient     *http.Client
	Limiter        *rate.Limiter // optional outbound pacing
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return defaultBaseURL
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// newRequest builds a GET with the browser-ish headers the scraped surface expects.
func (c *Client) newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if c.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", c.AcceptLanguage)
	}
	return req, nil
}

// do waits for the rate limiter (if any) and executes the request.
func (c *Client) do(hc *http.Client, req *http.Request, kind string) (*http.Response, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	telemetry.CountFetch(kind)
	resp, err := hc.Do(req)
	if err != nil && telemetry.UpstreamErrors != nil {
		telemetry.UpstreamErrors.Inc()
	}
	return resp, err
}

// getNoRedirect issues a GET with redirect-following disabled so the caller
// can inspect 3xx responses directly.
func (c *Client) getNoRedirect(ctx context.Context, url, kind string) (*http.Response, error) {
	req, err := c.newRequest(ctx, url)
	if err != nil {
		return nil, err
	}
	hc := *c.http()
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c.do(&hc, req, kind)
}

// fetchHTML issues a GET following redirects and returns the page body.
// Non-2xx statuses become ErrInvalidIdentifier (400-class) or StatusError.
func (c *Client) fetchHTML(ctx context.Context, url, kind string) (string, error) {
	req, err := c.newRequest(ctx, url)
	if err != nil {
		return "", err
	}
	resp, err := c.do(c.http(), req, kind)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if err := classifyStatus(url, resp.StatusCode); err != nil {
		if telemetry.UpstreamErrors != nil && !errors.Is(err, ErrInvalidIdentifier) {
			telemetry.UpstreamErrors.Inc()
		}
		return "", err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", url, err)
	}
	return string(body), nil
}

// classifyStatus maps an HTTP status to the error taxonomy: nil for 2xx,
// ErrInvalidIdentifier for 400-class (except 429, which is transient),
// StatusError for everything else.
func classifyStatus(url string, code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code >= 400 && code < 500 && code != http.StatusTooManyRequests:
		return fmt.Errorf("%s returned %d: %w", url, code, ErrInvalidIdentifier)
	default:
		return &StatusError{URL: url, StatusCode: code}
	}
}

// NewLimiter returns the outbound pacing limiter for a requests-per-second
// budget, with a burst of one so pacing stays strict.
func NewLimiter(perSecond float64) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// drain discards and closes a response body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	_ = resp.Body.Close()
}

// Thumbnail is one rendition of a video's thumbnail set.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// VideoInfo is the metadata scraped from a watch page.
type VideoInfo struct {
	ID          string
	Title       string
	ChannelID   string
	ChannelName string
	IsLive      bool
	Viewers     *int64 // nil when extraction missed; live with unknown count is valid
	Thumbnails  []Thumbnail
	Tags        []string
	Description string
	StartedAt   time.Time // zero unless a live start timestamp was found
}
