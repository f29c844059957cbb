package stream

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/streamlens/backend/scrape"
	"github.com/onnwee/streamlens/backend/telemetry"
	"github.com/onnwee/streamlens/backend/youtubeapi"
)

// pageSource is the scraping surface the service depends on; satisfied by
// *scrape.Client and mocked in tests.
type pageSource interface {
	ResolveLiveVideoID(ctx context.Context, channelID string) (string, error)
	FetchVideoInfo(ctx context.Context, videoID string) (*scrape.VideoInfo, error)
}

// apiSource is the official Data API surface; satisfied by *youtubeapi.Client.
type apiSource interface {
	ResolveLiveVideoID(ctx context.Context, channelID string) (string, error)
	VideoInfo(ctx context.Context, videoID string) (*youtubeapi.Video, error)
}

// Service answers live-status and metadata questions behind the cache. The
// Data API is used when configured, with transparent fallback to scraping on
// transient API failures; identifier rejections from either source propagate.
type Service struct {
	scraper    pageSource
	api        apiSource // nil without an API key
	cache      *Cache
	batchDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) // test hook
}

// NewService wires a service. api may be nil, leaving scraping as the only
// source.
func NewService(scraper *scrape.Client, api *youtubeapi.Client, cacheTTL, batchDelay time.Duration) *Service {
	s := &Service{
		scraper:    scraper,
		cache:      NewCache(cacheTTL),
		batchDelay: batchDelay,
		sleep:      sleepCtx,
	}
	if api != nil {
		s.api = api
	}
	return s
}

// Cache exposes the underlying cache for status reporting and invalidation.
func (s *Service) Cache() *Cache {
	return s.cache
}

// ResolveLiveChannel reports whether channelID is live right now, and with
// what video and viewer count. A not-live channel is a successful resolution,
// not an error. cached reports whether the answer came straight from a fresh
// cache entry.
func (s *Service) ResolveLiveChannel(ctx context.Context, channelID string) (meta *Metadata, cached bool, err error) {
	if channelID == "" {
		return nil, false, fmt.Errorf("empty channel id: %w", scrape.ErrInvalidIdentifier)
	}
	return s.cache.Do(ctx, "channel:"+channelID, func(ctx context.Context) (*Metadata, error) {
		return s.resolveChannel(ctx, channelID)
	})
}

func (s *Service) resolveChannel(ctx context.Context, channelID string) (*Metadata, error) {
	start := time.Now()
	defer func() {
		if telemetry.ResolveDuration != nil {
			telemetry.ResolveDuration.Observe(time.Since(start).Seconds())
		}
	}()

	var m *Metadata
	var err error
	if s.api != nil {
		m, err = s.resolveChannelAPI(ctx, channelID)
		if err != nil && !IsInvalidIdentifier(err) {
			slog.Warn("api resolution failed, falling back to scrape",
				slog.String("channel", channelID), slog.Any("err", err))
			m, err = s.resolveChannelScrape(ctx, channelID)
		}
	} else {
		m, err = s.resolveChannelScrape(ctx, channelID)
	}
	if err != nil {
		if IsInvalidIdentifier(err) && telemetry.InvalidIdentifiers != nil {
			telemetry.InvalidIdentifiers.Inc()
		}
		return nil, err
	}
	m.ChannelID = channelID
	m.FetchedAt = time.Now().UTC()
	if m.IsLive {
		if telemetry.LiveResolved != nil {
			telemetry.LiveResolved.Inc()
		}
	} else if telemetry.NotLiveResolved != nil {
		telemetry.NotLiveResolved.Inc()
	}
	return m, nil
}

func (s *Service) resolveChannelAPI(ctx context.Context, channelID string) (*Metadata, error) {
	videoID, err := s.api.ResolveLiveVideoID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if videoID == "" {
		return notLive(channelID, sourceAPI), nil
	}
	v, err := s.api.VideoInfo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if v == nil || !v.IsLive {
		// The search result went stale between the two calls.
		return notLive(channelID, sourceAPI), nil
	}
	return fromAPI(v), nil
}

func (s *Service) resolveChannelScrape(ctx context.Context, channelID string) (*Metadata, error) {
	videoID, err := s.scraper.ResolveLiveVideoID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if videoID == "" {
		return notLive(channelID, sourceScrape), nil
	}
	info, err := s.scraper.FetchVideoInfo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	return fromScrape(info), nil
}

// GetVideo returns the metadata for one video by id, live or not.
func (s *Service) GetVideo(ctx context.Context, videoID string) (meta *Metadata, cached bool, err error) {
	if videoID == "" {
		return nil, false, fmt.Errorf("empty video id: %w", scrape.ErrInvalidIdentifier)
	}
	return s.cache.Do(ctx, "video:"+videoID, func(ctx context.Context) (*Metadata, error) {
		return s.fetchVideo(ctx, videoID)
	})
}

func (s *Service) fetchVideo(ctx context.Context, videoID string) (*Metadata, error) {
	if s.api != nil {
		v, err := s.api.VideoInfo(ctx, videoID)
		switch {
		case err == nil && v == nil:
			return nil, fmt.Errorf("video %s unknown upstream: %w", videoID, scrape.ErrInvalidIdentifier)
		case err == nil:
			m := fromAPI(v)
			m.FetchedAt = time.Now().UTC()
			return m, nil
		case IsInvalidIdentifier(err):
			if telemetry.InvalidIdentifiers != nil {
				telemetry.InvalidIdentifiers.Inc()
			}
			return nil, err
		default:
			slog.Warn("api video lookup failed, falling back to scrape",
				slog.String("video", videoID), slog.Any("err", err))
		}
	}
	info, err := s.scraper.FetchVideoInfo(ctx, videoID)
	if err != nil {
		if IsInvalidIdentifier(err) && telemetry.InvalidIdentifiers != nil {
			telemetry.InvalidIdentifiers.Inc()
		}
		return nil, err
	}
	m := fromScrape(info)
	m.FetchedAt = time.Now().UTC()
	return m, nil
}

// GetConcurrentViewers returns the viewer count for a video, or nil when the
// video is not live or the count could not be extracted.
func (s *Service) GetConcurrentViewers(ctx context.Context, videoID string) (*int64, error) {
	m, _, err := s.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if !m.IsLive {
		return nil, nil
	}
	return m.LiveViewers, nil
}

// sleepCtx sleeps for d or until ctx is canceled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
