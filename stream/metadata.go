// Package stream is the resolution core: it answers "is this channel live,
// with which video, watched by how many" by combining the official Data API
// (when configured) with the page scraper, behind a TTL cache that coalesces
// concurrent lookups.
package stream

import (
	"time"

	"github.com/onnwee/streamlens/backend/scrape"
	"github.com/onnwee/streamlens/backend/youtubeapi"
)

// Thumbnail is one rendition of a video's thumbnail set.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Metadata is the resolved state of a video or channel lookup. A not-live
// channel resolution is valid Metadata with IsLive=false and no VideoID.
type Metadata struct {
	ChannelID   string      `json:"channelId,omitempty"`
	VideoID     string      `json:"videoId,omitempty"`
	Title       string      `json:"title,omitempty"`
	ChannelName string      `json:"channelName,omitempty"`
	IsLive      bool        `json:"isLive"`
	LiveViewers *int64      `json:"liveViewers,omitempty"` // nil means live-but-unknown or not live
	Thumbnails  []Thumbnail `json:"thumbnails,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Description string      `json:"description,omitempty"`
	StartedAt   *time.Time  `json:"startedAt,omitempty"`
	Source      string      `json:"source,omitempty"` // "api" or "scrape"
	FetchedAt   time.Time   `json:"fetchedAt"`
}

const (
	sourceAPI    = "api"
	sourceScrape = "scrape"
)

func fromScrape(info *scrape.VideoInfo) *Metadata {
	m := &Metadata{
		ChannelID:   info.ChannelID,
		VideoID:     info.ID,
		Title:       info.Title,
		ChannelName: info.ChannelName,
		IsLive:      info.IsLive,
		LiveViewers: info.Viewers,
		Tags:        info.Tags,
		Description: info.Description,
		Source:      sourceScrape,
	}
	for _, t := range info.Thumbnails {
		m.Thumbnails = append(m.Thumbnails, Thumbnail{URL: t.URL, Width: t.Width, Height: t.Height})
	}
	if !info.StartedAt.IsZero() {
		t := info.StartedAt
		m.StartedAt = &t
	}
	return m
}

func fromAPI(v *youtubeapi.Video) *Metadata {
	m := &Metadata{
		ChannelID:   v.ChannelID,
		VideoID:     v.ID,
		Title:       v.Title,
		ChannelName: v.ChannelName,
		IsLive:      v.IsLive,
		LiveViewers: v.Viewers,
		Tags:        v.Tags,
		Description: v.Description,
		Source:      sourceAPI,
	}
	for _, t := range v.Thumbnails {
		m.Thumbnails = append(m.Thumbnails, Thumbnail{URL: t.URL, Width: t.Width, Height: t.Height})
	}
	if !v.StartedAt.IsZero() {
		t := v.StartedAt
		m.StartedAt = &t
	}
	return m
}

// notLive is the cached resolution for a channel with no current broadcast.
func notLive(channelID, source string) *Metadata {
	return &Metadata{ChannelID: channelID, IsLive: false, Source: source}
}
