package stream

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/onnwee/streamlens/backend/scrape"
)

// routingScraper resolves per-channel so batch tests can mix outcomes.
type routingScraper struct {
	byChannel map[string]string // channel -> live video id ("" means not live)
	invalid   map[string]bool
	calls     []string
}

func (r *routingScraper) ResolveLiveVideoID(ctx context.Context, channelID string) (string, error) {
	r.calls = append(r.calls, channelID)
	if r.invalid[channelID] {
		return "", fmt.Errorf("channel %s: %w", channelID, scrape.ErrInvalidIdentifier)
	}
	return r.byChannel[channelID], nil
}

func (r *routingScraper) FetchVideoInfo(ctx context.Context, videoID string) (*scrape.VideoInfo, error) {
	return &scrape.VideoInfo{ID: videoID, IsLive: true, Viewers: int64p(100)}, nil
}

func newBatchService(scraper pageSource) (*Service, *[]time.Duration) {
	sleeps := &[]time.Duration{}
	s := &Service{
		scraper:    scraper,
		cache:      NewCache(30 * time.Second),
		batchDelay: 500 * time.Millisecond,
		sleep: func(ctx context.Context, d time.Duration) {
			*sleeps = append(*sleeps, d)
		},
	}
	return s, sleeps
}

func TestResolveChannelsIsolatesFailures(t *testing.T) {
	scraper := &routingScraper{
		byChannel: map[string]string{
			"UCone":  "VIDONE00001",
			"UCtwo":  "", // not live
			"UCfour": "VIDFOUR0001",
			"UCfive": "",
		},
		invalid: map[string]bool{"UCthree": true},
	}
	s, sleeps := newBatchService(scraper)

	ids := []string{"UCone", "UCtwo", "UCthree", "UCfour", "UCfive"}
	results := s.ResolveChannels(context.Background(), ids)

	if len(results) != 4 {
		t.Fatalf("results = %d, want 4 (invalid channel skipped)", len(results))
	}
	wantOrder := []string{"UCone", "UCtwo", "UCfour", "UCfive"}
	for i, m := range results {
		if m.ChannelID != wantOrder[i] {
			t.Errorf("results[%d] = %s, want %s", i, m.ChannelID, wantOrder[i])
		}
	}
	if len(scraper.calls) != 5 {
		t.Errorf("upstream calls = %d, want 5 (every channel attempted)", len(scraper.calls))
	}
	// Every item was a cold fetch; delay applies after each but the last.
	if len(*sleeps) != 4 {
		t.Errorf("delays = %d, want 4", len(*sleeps))
	}
	for _, d := range *sleeps {
		if d != 500*time.Millisecond {
			t.Errorf("delay = %v, want 500ms", d)
		}
	}
}

func TestResolveChannelsSkipsDelayOnCacheHits(t *testing.T) {
	scraper := &routingScraper{
		byChannel: map[string]string{"UCone": "VIDONE00001", "UCtwo": ""},
	}
	s, sleeps := newBatchService(scraper)

	ids := []string{"UCone", "UCtwo"}
	s.ResolveChannels(context.Background(), ids)
	firstSleeps := len(*sleeps)

	// Second run is fully warm: no upstream calls, no pacing.
	callsBefore := len(scraper.calls)
	s.ResolveChannels(context.Background(), ids)
	if len(scraper.calls) != callsBefore {
		t.Errorf("warm batch hit upstream %d times", len(scraper.calls)-callsBefore)
	}
	if len(*sleeps) != firstSleeps {
		t.Errorf("warm batch slept %d times", len(*sleeps)-firstSleeps)
	}
}

func TestResolveChannelsStopsOnCancel(t *testing.T) {
	scraper := &routingScraper{byChannel: map[string]string{}}
	s, _ := newBatchService(scraper)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := s.ResolveChannels(ctx, []string{"UCone", "UCtwo"})
	if len(results) != 0 {
		t.Errorf("results = %d, want 0 after cancel", len(results))
	}
	if len(scraper.calls) != 0 {
		t.Errorf("upstream calls = %d, want 0 after cancel", len(scraper.calls))
	}
}

func TestLiveOnly(t *testing.T) {
	ms := []*Metadata{
		{ChannelID: "a", IsLive: true},
		{ChannelID: "b", IsLive: false},
		{ChannelID: "c", IsLive: true},
	}
	got := LiveOnly(ms)
	if len(got) != 2 || got[0].ChannelID != "a" || got[1].ChannelID != "c" {
		t.Errorf("LiveOnly() = %+v", got)
	}
}
