package stream

import (
	"context"
	"log/slog"
	"time"

	"github.com/onnwee/streamlens/backend/telemetry"
)

// SnapshotStore persists one resolved live observation per cycle, typically
// backed by Postgres. Optional; a nil store disables persistence.
type SnapshotStore interface {
	InsertSnapshot(ctx context.Context, m *Metadata) error
}

// CursorStore persists small operational values across restarts. A
// SnapshotStore that also implements it gets the poller's last-cycle cursor.
type CursorStore interface {
	SetKV(ctx context.Context, key, value string) error
	GetKV(ctx context.Context, key string) (string, error)
}

// lastCycleKey records when the poller last completed a cycle, so a
// crash-looping process does not re-resolve every channel on each restart.
const lastCycleKey = "poller:last_cycle"

// Poller periodically resolves the configured channels, keeps the live-viewer
// gauges current and optionally records snapshots for history queries.
type Poller struct {
	Service  *Service
	Channels []string
	Interval time.Duration
	Store    SnapshotStore
}

// Run blocks until ctx is canceled. The first cycle runs immediately unless
// the persisted cursor shows a cycle completed within the last interval.
func (p *Poller) Run(ctx context.Context) {
	slog.Info("live poll job started",
		slog.Int("channels", len(p.Channels)),
		slog.Duration("interval", p.Interval))
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	if p.shouldRunImmediately(ctx) {
		p.cycle(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			slog.Info("live poll job stopped")
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

// shouldRunImmediately consults the last-cycle cursor when the store keeps
// one. Any read problem errs on the side of polling now.
func (p *Poller) shouldRunImmediately(ctx context.Context) bool {
	cs, ok := p.Store.(CursorStore)
	if !ok {
		return true
	}
	v, err := cs.GetKV(ctx, lastCycleKey)
	if err != nil || v == "" {
		return true
	}
	last, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return true
	}
	if time.Since(last) < p.Interval {
		slog.Info("recent poll cycle on record, waiting for next tick",
			slog.Time("last_cycle", last))
		return false
	}
	return true
}

func (p *Poller) cycle(ctx context.Context) {
	results := p.Service.ResolveChannels(ctx, p.Channels)

	live := make(map[string]*Metadata, len(results))
	for _, m := range results {
		if m.IsLive {
			live[m.ChannelID] = m
		}
	}
	for _, id := range p.Channels {
		m, ok := live[id]
		switch {
		case ok && m.LiveViewers != nil:
			telemetry.SetLiveViewers(id, *m.LiveViewers)
		default:
			// Not live, or live with unknown count: drop the series rather
			// than report a misleading number.
			telemetry.SetLiveViewers(id, -1)
		}
	}

	if p.Store == nil {
		return
	}
	for _, m := range live {
		if err := p.Store.InsertSnapshot(ctx, m); err != nil {
			slog.Warn("snapshot insert failed",
				slog.String("channel", m.ChannelID), slog.Any("err", err))
		}
	}
	if cs, ok := p.Store.(CursorStore); ok {
		if err := cs.SetKV(ctx, lastCycleKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
			slog.Warn("poll cursor update failed", slog.Any("err", err))
		}
	}
}
