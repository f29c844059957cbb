package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/onnwee/streamlens/backend/db"
	"github.com/onnwee/streamlens/backend/stream"
	"github.com/onnwee/streamlens/backend/telemetry"
)

// maxBatchSize caps how many channels one batch request may resolve.
const maxBatchSize = 50

// resolver is the slice of *stream.Service the handlers need; an interface so
// tests can swap in a fake.
type resolver interface {
	ResolveLiveChannel(ctx context.Context, channelID string) (*stream.Metadata, bool, error)
	GetVideo(ctx context.Context, videoID string) (*stream.Metadata, bool, error)
	ResolveChannels(ctx context.Context, channelIDs []string) []*stream.Metadata
	Cache() *stream.Cache
}

// HistoryStore serves the snapshot history endpoint; nil when Postgres is not
// configured.
type HistoryStore interface {
	RecentSnapshots(ctx context.Context, channelID string, limit int) ([]db.Snapshot, error)
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	svc       resolver
	store     HistoryStore
	db        *sql.DB // optional, for health checks
	startedAt time.Time
}

// NewHandlers creates a new Handlers instance. store and database may be nil.
func NewHandlers(svc resolver, store HistoryStore, database *sql.DB) *Handlers {
	return &Handlers{svc: svc, store: store, db: database, startedAt: time.Now()}
}

// writeJSON writes v with the right content type; encode failures are logged
// since the status line is already gone.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("response encode failed", slog.Any("err", err))
	}
}

// writeError maps a resolution error onto the API error contract: 400 for
// rejected identifiers, 502 for upstream trouble.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	telemetry.LoggerWithCorr(r.Context()).Warn("request failed",
		slog.String("path", r.URL.Path),
		slog.String("class", stream.Classify(err).String()),
		slog.Any("err", err))
	if stream.IsInvalidIdentifier(err) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid identifier"})
		return
	}
	writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream unavailable"})
}

// HandleVideo serves GET /video/{id}: metadata and live status for one video.
func (h *Handlers) HandleVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/video/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid identifier"})
		return
	}
	m, _, err := h.svc.GetVideo(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandleChannelDispatcher routes /channel/{id} and /channel/{id}/history.
func (h *Handlers) HandleChannelDispatcher(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/channel/")
	if id, ok := strings.CutSuffix(rest, "/history"); ok {
		h.handleChannelHistory(w, r, id)
		return
	}
	if rest == "" || strings.Contains(rest, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid identifier"})
		return
	}
	m, _, err := h.svc.ResolveLiveChannel(r.Context(), rest)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handlers) handleChannelHistory(w http.ResponseWriter, r *http.Request, channelID string) {
	if channelID == "" || strings.Contains(channelID, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid identifier"})
		return
	}
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "history storage not configured"})
		return
	}
	limit := parseIntQuery(r, "limit", 100)
	snaps, err := h.store.RecentSnapshots(r.Context(), channelID, limit)
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("history query failed",
			slog.String("channel", channelID), slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history query failed"})
		return
	}
	if snaps == nil {
		snaps = []db.Snapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"channelId": channelID, "snapshots": snaps})
}

type batchRequest struct {
	ChannelIDs []string `json:"channelIds"`
}

// HandleBatch serves POST /channels/batch: resolves every requested channel
// and returns only the ones currently live, in request order.
func (h *Handlers) HandleBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req batchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	if len(req.ChannelIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "channelIds is required"})
		return
	}
	if len(req.ChannelIDs) > maxBatchSize {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "too many channels in one batch"})
		return
	}
	results := stream.LiveOnly(h.svc.ResolveChannels(r.Context(), req.ChannelIDs))
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// HandleHealthz responds to liveness probes. Database connectivity is checked
// only when Postgres is configured; the resolver itself has no local state to
// probe.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probes with per-check detail.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":       "not_ready",
				"failed_check": "database",
				"error":        err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HandleStatus reports operational state for dashboards and debugging.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"uptimeSeconds":     int64(time.Since(h.startedAt).Seconds()),
		"cacheEntries":      h.svc.Cache().Len(),
		"historyConfigured": h.store != nil,
	})
}
