package stream

import (
	"context"
	"log/slog"

	"github.com/onnwee/streamlens/backend/telemetry"
)

// ResolveChannels resolves a list of channels one at a time, in input order.
// A failing channel is logged and skipped without aborting the rest. After
// every item that needed an upstream fetch (cache miss or failure) the
// configured delay is applied before the next item, so a cold batch does not
// hammer upstream; cache hits proceed immediately.
func (s *Service) ResolveChannels(ctx context.Context, channelIDs []string) []*Metadata {
	results := make([]*Metadata, 0, len(channelIDs))
	for i, id := range channelIDs {
		if ctx.Err() != nil {
			slog.Debug("batch aborted by context", slog.Int("remaining", len(channelIDs)-i))
			break
		}
		m, cached, err := s.ResolveLiveChannel(ctx, id)
		if err != nil {
			slog.Warn("batch channel resolution failed",
				slog.String("channel", id),
				slog.String("class", Classify(err).String()),
				slog.Any("err", err))
		} else {
			results = append(results, m)
		}
		if !cached && i < len(channelIDs)-1 {
			s.sleep(ctx, s.batchDelay)
		}
	}
	if telemetry.BatchCycles != nil {
		telemetry.BatchCycles.Inc()
	}
	return results
}

// LiveOnly filters a batch result down to channels currently broadcasting,
// preserving order.
func LiveOnly(ms []*Metadata) []*Metadata {
	out := make([]*Metadata, 0, len(ms))
	for _, m := range ms {
		if m.IsLive {
			out = append(out, m)
		}
	}
	return out
}
