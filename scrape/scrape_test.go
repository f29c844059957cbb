package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const (
	liveHTML    = `<script>var ytInitialPlayerResponse = {"videoDetails":{"title":"Live show","author":"Chan","isLive":true}};</script>`
	notLiveHTML = `<script>var ytInitialPlayerResponse = {"videoDetails":{"title":"Old vod","author":"Chan"}};</script><body>12,000 views</body>`
)

func newClient(baseURL string) *Client {
	return &Client{
		BaseURL:        baseURL,
		UserAgent:      "test-agent",
		AcceptLanguage: "en-US,en;q=0.9",
	}
}

func TestResolveLiveVideoID_RedirectIsAuthoritative(t *testing.T) {
	var watchRequests, liveRequests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/channel/UCabc/live":
			liveRequests++
			if got := r.Header.Get("User-Agent"); got != "test-agent" {
				t.Errorf("User-Agent = %q", got)
			}
			if got := r.Header.Get("Accept-Language"); got == "" {
				t.Error("missing Accept-Language")
			}
			w.Header().Set("Location", "https://www.youtube.com/watch?v=XYZ12345678")
			w.WriteHeader(http.StatusFound)
		case "/watch":
			watchRequests++
			fmt.Fprint(w, liveHTML)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	id, err := newClient(server.URL).ResolveLiveVideoID(context.Background(), "UCabc")
	if err != nil {
		t.Fatalf("ResolveLiveVideoID() error = %v", err)
	}
	if id != "XYZ12345678" {
		t.Errorf("id = %q, want XYZ12345678", id)
	}
	if liveRequests != 1 {
		t.Errorf("live URL requests = %d, want 1", liveRequests)
	}
	if watchRequests != 0 {
		t.Errorf("redirect path must skip verification, got %d watch fetches", watchRequests)
	}
}

func TestResolveLiveVideoID_ScrapedCandidateVerified(t *testing.T) {
	tests := []struct {
		name      string
		watchHTML string
		watchCode int
		wantID    string
	}{
		{"candidate confirmed live", liveHTML, http.StatusOK, "ABCDEFGHIJK"},
		{"stale featured video rejected", notLiveHTML, http.StatusOK, ""},
		{"verification fetch failure means not live", "", http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/channel/UCabc/live":
					fmt.Fprint(w, `<html><script>"videoId":"ABCDEFGHIJK"</script></html>`)
				case "/watch":
					if r.URL.Query().Get("v") != "ABCDEFGHIJK" {
						t.Errorf("watch v = %q", r.URL.Query().Get("v"))
					}
					w.WriteHeader(tt.watchCode)
					fmt.Fprint(w, tt.watchHTML)
				default:
					w.WriteHeader(http.StatusNotFound)
				}
			}))
			defer server.Close()

			id, err := newClient(server.URL).ResolveLiveVideoID(context.Background(), "UCabc")
			if err != nil {
				t.Fatalf("ResolveLiveVideoID() error = %v", err)
			}
			if id != tt.wantID {
				t.Errorf("id = %q, want %q", id, tt.wantID)
			}
		})
	}
}

func TestResolveLiveVideoID_NotLiveWhenNoCandidate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>channel page, nothing live</body></html>`)
	}))
	defer server.Close()

	id, err := newClient(server.URL).ResolveLiveVideoID(context.Background(), "UCabc")
	if err != nil {
		t.Fatalf("ResolveLiveVideoID() error = %v", err)
	}
	if id != "" {
		t.Errorf("id = %q, want empty", id)
	}
}

func TestResolveLiveVideoID_UselessRedirectFallsThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/channel/UCabc/live":
			// Consent-style redirect with no video id; the engine should
			// follow it on the second pass and scrape the result.
			http.Redirect(w, r, "/consent", http.StatusFound)
		case "/consent":
			fmt.Fprint(w, `<html>no ids here</html>`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	id, err := newClient(server.URL).ResolveLiveVideoID(context.Background(), "UCabc")
	if err != nil {
		t.Fatalf("ResolveLiveVideoID() error = %v", err)
	}
	if id != "" {
		t.Errorf("id = %q, want empty", id)
	}
}

func TestResolveLiveVideoID_ErrorKinds(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		wantInvalid bool
	}{
		{"bad request is invalid identifier", http.StatusBadRequest, true},
		{"not found is invalid identifier", http.StatusNotFound, true},
		{"server error is transient", http.StatusServiceUnavailable, false},
		{"rate limit is transient", http.StatusTooManyRequests, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := newClient(server.URL).ResolveLiveVideoID(context.Background(), "UCabc")
			if err == nil {
				t.Fatal("want error")
			}
			if got := errors.Is(err, ErrInvalidIdentifier); got != tt.wantInvalid {
				t.Errorf("errors.Is(ErrInvalidIdentifier) = %v, want %v (err=%v)", got, tt.wantInvalid, err)
			}
			var se *StatusError
			if wantSE := !tt.wantInvalid; errors.As(err, &se) != wantSE {
				t.Errorf("errors.As(StatusError) = %v, want %v (err=%v)", !wantSE, wantSE, err)
			}
		})
	}
}

func TestViewersFromHTMLPrecedence(t *testing.T) {
	initialData := `<script>var ytInitialData = {"contents":{"viewCount":{"simpleText":"111 watching now"}}};</script>`
	playerResponse := `<script>var ytInitialPlayerResponse = {"playability":{"status":{"label":"222 watching now"}}};</script>`
	rawText := `<span>333 watching now</span>`

	tests := []struct {
		name         string
		html         string
		want         int64
		wantStrategy string
		wantOK       bool
	}{
		{"initial data wins", initialData + playerResponse + rawText, 111, "initial_data", true},
		{"player response next", playerResponse + rawText, 222, "player_response", true},
		{"raw text last resort", rawText, 333, "raw_text", true},
		{"all strategies miss", `<html>nothing</html>`, 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, strategy, ok := ViewersFromHTML(tt.html)
			if ok != tt.wantOK || strategy != tt.wantStrategy {
				t.Fatalf("ViewersFromHTML() = %d, %q, %v; want %d, %q, %v", got, strategy, ok, tt.want, tt.wantStrategy, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("viewers = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestConcurrentViewersMissIsNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>no counters at all</html>`)
	}))
	defer server.Close()

	n, err := newClient(server.URL).ConcurrentViewers(context.Background(), "ABCDEFGHIJK")
	if err != nil {
		t.Fatalf("ConcurrentViewers() error = %v", err)
	}
	if n != nil {
		t.Errorf("viewers = %v, want nil (unknown)", *n)
	}
}

func TestFetchVideoInfo(t *testing.T) {
	page := `<script>var ytInitialPlayerResponse = {
		"videoDetails":{
			"title":"Big stream",
			"author":"Streamer",
			"channelId":"UCabcdefghijklmnopqrstuv",
			"isLive":true,
			"shortDescription":"hello",
			"keywords":["a","b"],
			"thumbnail":{"thumbnails":[{"url":"https://i.example/1.jpg","width":120,"height":90}]}
		},
		"microformat":{"playerMicroformatRenderer":{"liveBroadcastDetails":{"isLiveNow":true,"startTimestamp":"2026-08-30T12:00:00+00:00"}}}
	};</script>
	<script>var ytInitialData = {"primary":{"viewCount":{"simpleText":"1,234 watching now"}}};</script>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer server.Close()

	info, err := newClient(server.URL).FetchVideoInfo(context.Background(), "ABCDEFGHIJK")
	if err != nil {
		t.Fatalf("FetchVideoInfo() error = %v", err)
	}
	if !info.IsLive {
		t.Error("IsLive = false, want true")
	}
	if info.Title != "Big stream" || info.ChannelName != "Streamer" {
		t.Errorf("title/channel = %q/%q", info.Title, info.ChannelName)
	}
	if info.ChannelID != "UCabcdefghijklmnopqrstuv" {
		t.Errorf("ChannelID = %q", info.ChannelID)
	}
	if info.Viewers == nil || *info.Viewers != 1234 {
		t.Errorf("viewers = %v, want 1234", info.Viewers)
	}
	if len(info.Thumbnails) != 1 || info.Thumbnails[0].Width != 120 {
		t.Errorf("thumbnails = %v", info.Thumbnails)
	}
	if len(info.Tags) != 2 {
		t.Errorf("tags = %v", info.Tags)
	}
	if info.StartedAt.IsZero() {
		t.Error("StartedAt not parsed")
	}
}

func TestFetchVideoInfoNotLive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, notLiveHTML)
	}))
	defer server.Close()

	info, err := newClient(server.URL).FetchVideoInfo(context.Background(), "ABCDEFGHIJK")
	if err != nil {
		t.Fatalf("FetchVideoInfo() error = %v", err)
	}
	if info.IsLive {
		t.Error("IsLive = true, want false")
	}
	if info.Viewers != nil {
		t.Errorf("viewers = %v, want nil for non-live video", *info.Viewers)
	}
}
