// Command livecheck resolves a single channel's live status from the command
// line and prints the result as JSON on stdout.
//
// Exit codes:
//
//	0 - channel is live (JSON printed)
//	1 - invalid usage (bad arguments)
//	2 - resolution failed, including ids the platform rejected
//	3 - channel is not live (JSON printed)
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/streamlens/backend/config"
	"github.com/onnwee/streamlens/backend/scrape"
	"github.com/onnwee/streamlens/backend/stream"
	"github.com/onnwee/streamlens/backend/youtubeapi"
)

const (
	exitLive    = 0
	exitUsage   = 1
	exitError   = 2
	exitNotLive = 3
)

type output struct {
	ChannelID   string `json:"channelId"`
	VideoID     string `json:"videoId"`
	LiveViewers *int64 `json:"liveViewers"`
}

func main() { os.Exit(run()) }

func run() int {
	timeout := flag.Duration("timeout", 15*time.Second, "overall resolution timeout")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: livecheck [flags] <channel-id>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 || flag.Arg(0) == "" {
		flag.Usage()
		return exitUsage
	}
	channelID := flag.Arg(0)

	_ = godotenv.Load("backend/.env")
	// Keep stdout clean for the JSON result.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	scraper := &scrape.Client{
		BaseURL:        cfg.ScrapeBaseURL,
		UserAgent:      cfg.UserAgent,
		AcceptLanguage: cfg.AcceptLanguage,
		Limiter:        scrape.NewLimiter(cfg.ScrapeRate),
	}
	var api *youtubeapi.Client
	if cfg.YTAPIKey != "" {
		api, err = youtubeapi.New(ctx, cfg.YTAPIKey)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitError
		}
	}
	svc := stream.NewService(scraper, api, cfg.CacheTTL, cfg.BatchDelay)

	m, _, err := svc.ResolveLiveChannel(ctx, channelID)
	return report(os.Stdout, os.Stderr, m, err)
}

// report writes the JSON result (or the error) and maps the outcome onto the
// exit code contract. Errors of any kind, upstream identifier rejections
// included, exit 2; only argument-shape failures exit 1.
func report(out, errOut io.Writer, m *stream.Metadata, err error) int {
	if err != nil {
		fmt.Fprintln(errOut, err)
		return exitError
	}
	_ = json.NewEncoder(out).Encode(output{ChannelID: m.ChannelID, VideoID: m.VideoID, LiveViewers: m.LiveViewers})
	if !m.IsLive {
		return exitNotLive
	}
	return exitLive
}
