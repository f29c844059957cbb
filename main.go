// Command backend is the main entrypoint for the streamlens resolver API and
// background poll job. It:
//   - Loads configuration and initializes structured logging.
//   - Optionally connects to Postgres and runs idempotent migrations
//     (snapshot history is disabled without DB_DSN).
//   - Starts the live poll job for the configured channels.
//   - Exposes the HTTP API with /healthz, /readyz, /status, /metrics and the
//     video/channel resolution endpoints.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/streamlens/backend/config"
	"github.com/onnwee/streamlens/backend/db"
	"github.com/onnwee/streamlens/backend/scrape"
	"github.com/onnwee/streamlens/backend/server"
	"github.com/onnwee/streamlens/backend/stream"
	"github.com/onnwee/streamlens/backend/telemetry"
	"github.com/onnwee/streamlens/backend/youtubeapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load("backend/.env")

	initLogging()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()

	// Optional OpenTelemetry tracing (requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("streamlens", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional Postgres for snapshot history
	var database *sql.DB
	var store *db.Store
	if cfg.DBDsn != "" {
		database, err = db.Connect()
		if err != nil {
			slog.Error("failed to open db", slog.Any("err", err))
			os.Exit(1)
		}
		defer func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}()
		slog.Info("running database migrations", slog.String("component", "db_migrate"))
		if err := db.RunMigrations(database); err != nil {
			slog.Warn("versioned migrations failed, attempting fallback to embedded SQL",
				slog.Any("err", err), slog.String("component", "db_migrate"))
			if err := db.Migrate(context.Background(), database); err != nil {
				slog.Error("failed to migrate db (both versioned and embedded SQL failed)", slog.Any("err", err))
				os.Exit(1)
			}
		}
		store = &db.Store{DB: database}
	} else {
		slog.Info("DB_DSN not set, snapshot history disabled")
	}

	// Resolution sources
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
			slog.Error("youtube data api init failed", slog.Any("err", err))
			os.Exit(1)
		}
		slog.Info("official data api enabled")
	} else {
		slog.Info("YT_API_KEY not set, using scrape-only resolution")
	}
	svc := stream.NewService(scraper, api, cfg.CacheTTL, cfg.BatchDelay)

	// Live poll job for the configured channels
	if err := cfg.ValidatePollReady(); err != nil {
		slog.Info("live poll job disabled", slog.Any("reason", err))
	} else {
		poller := &stream.Poller{
			Service:  svc,
			Channels: cfg.Channels,
			Interval: cfg.PollInterval,
		}
		if store != nil {
			poller.Store = store
		}
		go poller.Run(ctx)
	}

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	handlers := server.NewHandlers(svc, storeOrNil(store), database)
	go func() {
		if err := server.Start(ctx, handlers, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()
	slog.Info("http server started", slog.String("addr", cfg.HTTPAddr))

	<-ctx.Done()
	slog.Info("shutting down")
}

// storeOrNil avoids handing the server a typed-nil interface value.
func storeOrNil(s *db.Store) server.HistoryStore {
	if s == nil {
		return nil
	}
	return s
}

// initLogging configures slog from LOG_LEVEL and LOG_FORMAT (text | json).
func initLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()))
}
