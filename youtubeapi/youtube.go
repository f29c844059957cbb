// Package youtubeapi wraps the official YouTube Data API v3 as an optional
// read-only source for live-stream resolution and viewer counts. It is used
// in preference to page scraping when an API key is configured; the two
// sources answer the same questions so callers can fall back transparently.
package youtubeapi

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/onnwee/streamlens/backend/telemetry"
)

// Thumbnail is one rendition of a video's thumbnail set.
type Thumbnail struct {
	URL    string
	Width  int
	Height int
}

// Video is the metadata the Data API reports for a single video.
type Video struct {
	ID          string
	Title       string
	ChannelID   string
	ChannelName string
	Description string
	Tags        []string
	IsLive      bool
	Viewers     *int64 // nil when the API omits concurrentViewers
	Thumbnails  []Thumbnail
	StartedAt   time.Time
}

// Client is a thin wrapper over the generated Data API service.
type Client struct {
	svc *yt.Service
}

// New builds a Data API client authenticated by API key. Extra options
// (endpoint and HTTP client overrides) are for tests.
func New(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Client, error) {
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("youtube data api service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// ResolveLiveVideoID asks the API for the channel's current live broadcast.
// Returns "" when the channel is not live. API-level failures (quota, bad
// key) surface as errors so the caller can fall back to scraping.
func (c *Client) ResolveLiveVideoID(ctx context.Context, channelID string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "youtubeapi", "resolve-live",
		attribute.String("channel_id", channelID))
	defer span.End()

	telemetry.CountFetch("api_search")
	resp, err := c.svc.Search.List([]string{"id"}).
		ChannelId(channelID).
		EventType("live").
		Type("video").
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		telemetry.RecordError(span, err)
		return "", fmt.Errorf("search.list live for %s: %w", channelID, err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Id == nil {
		telemetry.SetSpanSuccess(span)
		return "", nil
	}
	telemetry.SetSpanSuccess(span)
	return resp.Items[0].Id.VideoId, nil
}

// VideoInfo fetches snippet and liveStreamingDetails for one video. Returns
// (nil, nil) when the API knows no such video.
func (c *Client) VideoInfo(ctx context.Context, videoID string) (*Video, error) {
	ctx, span := telemetry.StartSpan(ctx, "youtubeapi", "video-info",
		attribute.String("video_id", videoID))
	defer span.End()

	telemetry.CountFetch("api_videos")
	resp, err := c.svc.Videos.List([]string{"snippet", "liveStreamingDetails"}).
		Id(videoID).
		Context(ctx).
		Do()
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("videos.list %s: %w", videoID, err)
	}
	if len(resp.Items) == 0 {
		telemetry.SetSpanSuccess(span)
		return nil, nil
	}
	telemetry.SetSpanSuccess(span)
	return videoFromItem(resp.Items[0]), nil
}

func videoFromItem(item *yt.Video) *Video {
	v := &Video{ID: item.Id}
	if sn := item.Snippet; sn != nil {
		v.Title = sn.Title
		v.ChannelID = sn.ChannelId
		v.ChannelName = sn.ChannelTitle
		v.Description = sn.Description
		v.Tags = sn.Tags
		v.IsLive = sn.LiveBroadcastContent == "live"
		v.Thumbnails = thumbnailsFromSnippet(sn.Thumbnails)
	}
	if lsd := item.LiveStreamingDetails; lsd != nil {
		if lsd.ConcurrentViewers > 0 {
			n := int64(lsd.ConcurrentViewers)
			v.Viewers = &n
		}
		if lsd.ActualStartTime != "" {
			if t, err := time.Parse(time.RFC3339, lsd.ActualStartTime); err == nil {
				v.StartedAt = t.UTC()
			}
		}
		// An actual end time means the broadcast is over regardless of what
		// the snippet still says.
		if lsd.ActualEndTime != "" {
			v.IsLive = false
			v.Viewers = nil
		}
	}
	return v
}

// thumbnailsFromSnippet flattens the API's named thumbnail map, largest last.
func thumbnailsFromSnippet(td *yt.ThumbnailDetails) []Thumbnail {
	if td == nil {
		return nil
	}
	var out []Thumbnail
	for _, t := range []*yt.Thumbnail{td.Default, td.Medium, td.High, td.Standard, td.Maxres} {
		if t == nil || t.Url == "" {
			continue
		}
		out = append(out, Thumbnail{URL: t.Url, Width: int(t.Width), Height: int(t.Height)})
	}
	return out
}
