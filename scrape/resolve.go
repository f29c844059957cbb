package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/streamlens/backend/extract"
	"github.com/onnwee/streamlens/backend/telemetry"
)

var (
	// Video id as it appears in a watch URL (redirect Location header).
	watchURLVideoIDPattern = regexp.MustCompile(`[?&]v=([A-Za-z0-9_-]{11})`)

	// Video id literal embedded in channel page HTML.
	embeddedVideoIDPattern = regexp.MustCompile(`"videoId"\s*:\s*"([A-Za-z0-9_-]{11})"`)
)

// liveURL is the channel's canonical live redirect URL.
func (c *Client) liveURL(channelID string) string {
	return c.base() + "/channel/" + url.PathEscape(channelID) + "/live"
}

func (c *Client) watchURL(videoID string) string {
	return c.base() + "/watch?v=" + url.QueryEscape(videoID)
}

// ResolveLiveVideoID determines the channel's current live video id, or ""
// when the channel is not broadcasting.
//
// Primary strategy: request the /live URL with redirects disabled. A 3xx
// whose Location carries a watch URL is platform-authoritative, so the id is
// returned without further verification.
//
// Secondary strategy: re-request following redirects and scan the HTML for a
// videoId literal. A scraped id is only a candidate (channel pages surface
// ended or featured videos too), so its own watch page must indicate live
// before it is reported. An unverifiable candidate, including a failed
// verification fetch, is reported as not live rather than as an error.
//
// Network failures in the primary sequence propagate to the caller.
func (c *Client) ResolveLiveVideoID(ctx context.Context, channelID string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "scrape", "resolve-live",
		attribute.String("channel_id", channelID))
	defer span.End()

	liveURL := c.liveURL(channelID)
	resp, err := c.getNoRedirect(ctx, liveURL, "live_redirect")
	if err != nil {
		telemetry.RecordError(span, err)
		return "", fmt.Errorf("live redirect probe: %w", err)
	}
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		loc := resp.Header.Get("Location")
		drain(resp)
		if m := watchURLVideoIDPattern.FindStringSubmatch(loc); m != nil {
			slog.Debug("live redirect hit", slog.String("channel", channelID), slog.String("video", m[1]))
			telemetry.SetSpanSuccess(span)
			return m[1], nil
		}
		// Redirect somewhere else (consent page, channel root); fall through
		// to the HTML scrape.
	} else {
		err := classifyStatus(liveURL, resp.StatusCode)
		drain(resp)
		if err != nil {
			telemetry.RecordError(span, err)
			return "", err
		}
	}

	html, err := c.fetchHTML(ctx, liveURL, "channel_html")
	if err != nil {
		telemetry.RecordError(span, err)
		return "", err
	}
	m := embeddedVideoIDPattern.FindStringSubmatch(html)
	if m == nil {
		telemetry.SetSpanSuccess(span)
		return "", nil
	}
	candidate := m[1]

	watchHTML, err := c.fetchHTML(ctx, c.watchURL(candidate), "watch_html")
	if err != nil {
		slog.Debug("candidate verification fetch failed; treating as not live",
			slog.String("channel", channelID), slog.String("video", candidate), slog.Any("err", err))
		telemetry.SetSpanSuccess(span)
		return "", nil
	}
	if !extract.IsLiveNowIndicated(watchHTML) {
		slog.Debug("candidate failed live verification", slog.String("channel", channelID), slog.String("video", candidate))
		telemetry.SetSpanSuccess(span)
		return "", nil
	}
	telemetry.SetSpanSuccess(span)
	return candidate, nil
}
