package scrape

import (
	"context"
	"regexp"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/streamlens/backend/extract"
	"github.com/onnwee/streamlens/backend/telemetry"
)

// Last-resort raw-text viewer count, multi-locale ("12,453 watching now").
var rawViewerPattern = regexp.MustCompile(`(?i)([0-9][0-9.,\x{00A0}\x{202F} ]*)\s*(?:people\s+watching|watching now|人が視聴中|assistindo agora|espectadores ao vivo)`)

// viewerStrategy is one extraction attempt over raw watch-page HTML.
// Strategies run in precedence order and the first hit wins; keeping the
// list explicit lets new fallback patterns slot in without touching callers.
type viewerStrategy struct {
	name string
	fn   func(html string) (int64, bool)
}

var viewerStrategies = []viewerStrategy{
	{"initial_data", viewersFromInitialData},
	{"player_response", viewersFromPlayerResponse},
	{"raw_text", viewersFromRawText},
}

func viewersFromInitialData(html string) (int64, bool) {
	obj := extract.NamedJSON(html, "ytInitialData")
	if obj == nil {
		return 0, false
	}
	return extract.FindConcurrentViewers(obj)
}

func viewersFromPlayerResponse(html string) (int64, bool) {
	obj := extract.NamedJSON(html, "ytInitialPlayerResponse")
	if obj == nil {
		return 0, false
	}
	return extract.FindConcurrentViewers(obj)
}

func viewersFromRawText(html string) (int64, bool) {
	m := rawViewerPattern.FindStringSubmatch(html)
	if m == nil {
		return 0, false
	}
	return extract.NumberFromText(m[1])
}

// ViewersFromHTML runs the extraction strategies over an already-fetched
// watch page. A miss on every strategy is a valid "unknown" outcome, not an
// error.
func ViewersFromHTML(html string) (viewers int64, strategy string, ok bool) {
	for _, s := range viewerStrategies {
		if n, hit := s.fn(html); hit {
			return n, s.name, true
		}
	}
	return 0, "", false
}

// ConcurrentViewers fetches the watch page for a (confirmed live) video once
// and extracts a viewer count. nil means unknown, never zero.
func (c *Client) ConcurrentViewers(ctx context.Context, videoID string) (*int64, error) {
	html, err := c.fetchHTML(ctx, c.watchURL(videoID), "watch_html")
	if err != nil {
		return nil, err
	}
	if n, _, ok := ViewersFromHTML(html); ok {
		return &n, nil
	}
	if telemetry.ViewerExtractionMiss != nil {
		telemetry.ViewerExtractionMiss.Inc()
	}
	return nil, nil
}

// FetchVideoInfo fetches a watch page once and assembles the scraped
// metadata. When the page indicates a live broadcast, viewer extraction is
// always attempted (the count may still come back unknown).
func (c *Client) FetchVideoInfo(ctx context.Context, videoID string) (*VideoInfo, error) {
	ctx, span := telemetry.StartSpan(ctx, "scrape", "fetch-video",
		attribute.String("video_id", videoID))
	defer span.End()

	html, err := c.fetchHTML(ctx, c.watchURL(videoID), "watch_html")
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	info := &VideoInfo{ID: videoID, IsLive: extract.IsLiveNowIndicated(html)}
	if pr := extract.NamedJSON(html, "ytInitialPlayerResponse"); pr != nil {
		fillFromPlayerResponse(info, pr)
	}
	if info.IsLive {
		if n, strategy, ok := ViewersFromHTML(html); ok {
			info.Viewers = &n
			span.SetAttributes(attribute.String("viewer_strategy", strategy))
		} else if telemetry.ViewerExtractionMiss != nil {
			telemetry.ViewerExtractionMiss.Inc()
		}
	}
	telemetry.SetSpanSuccess(span)
	return info, nil
}

// fillFromPlayerResponse copies videoDetails and live-broadcast fields out of
// a parsed player response, tolerating any missing piece.
func fillFromPlayerResponse(info *VideoInfo, pr map[string]any) {
	if vd, ok := pr["videoDetails"].(map[string]any); ok {
		if s, ok := vd["title"].(string); ok {
			info.Title = s
		}
		if s, ok := vd["author"].(string); ok {
			info.ChannelName = s
		}
		if s, ok := vd["channelId"].(string); ok {
			info.ChannelID = s
		}
		if s, ok := vd["shortDescription"].(string); ok {
			info.Description = s
		}
		if kw, ok := vd["keywords"].([]any); ok {
			for _, k := range kw {
				if s, ok := k.(string); ok {
					info.Tags = append(info.Tags, s)
				}
			}
		}
		if th, ok := vd["thumbnail"].(map[string]any); ok {
			if list, ok := th["thumbnails"].([]any); ok {
				for _, t := range list {
					tm, ok := t.(map[string]any)
					if !ok {
						continue
					}
					thumb := Thumbnail{}
					if s, ok := tm["url"].(string); ok {
						thumb.URL = s
					}
					if w, ok := tm["width"].(float64); ok {
						thumb.Width = int(w)
					}
					if h, ok := tm["height"].(float64); ok {
						thumb.Height = int(h)
					}
					if thumb.URL != "" {
						info.Thumbnails = append(info.Thumbnails, thumb)
					}
				}
			}
		}
	}
	if mf, ok := pr["microformat"].(map[string]any); ok {
		if pmr, ok := mf["playerMicroformatRenderer"].(map[string]any); ok {
			if lbd, ok := pmr["liveBroadcastDetails"].(map[string]any); ok {
				if s, ok := lbd["startTimestamp"].(string); ok {
					if t, err := time.Parse(time.RFC3339, s); err == nil {
						info.StartedAt = t.UTC()
					}
				}
			}
		}
	}
}
