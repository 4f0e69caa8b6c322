// Package snapshot runs the periodic fetch-and-decode loop and fans the
// decoded RIB out to the configured sinks.
package snapshot

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/route-beacon/rib-gateway/internal/metrics"
	"github.com/route-beacon/rib-gateway/internal/rib"
	"go.uber.org/zap"
)

// Source fetches one raw RIB snapshot from the daemon.
type Source interface {
	GetRib(ctx context.Context) (*rib.Snapshot, error)
}

// Sink receives each decoded snapshot. A failing sink is logged and
// counted but never stops the poll loop or the other sinks.
type Sink interface {
	Name() string
	Publish(ctx context.Context, res *Result) error
}

// Result is one decoded RIB snapshot.
type Result struct {
	InstanceID string       `json:"instance_id"`
	FetchedAt  time.Time    `json:"fetched_at"`
	Routes     []*rib.Route `json:"routes"`
}

type Poller struct {
	source     Source
	extractor  *rib.Extractor
	sinks      []Sink
	interval   time.Duration
	instanceID string
	logger     *zap.Logger

	latest atomic.Pointer[Result]
}

func NewPoller(source Source, extractor *rib.Extractor, sinks []Sink, interval time.Duration, instanceID string, logger *zap.Logger) *Poller {
	return &Poller{
		source:     source,
		extractor:  extractor,
		sinks:      sinks,
		interval:   interval,
		instanceID: instanceID,
		logger:     logger,
	}
}

// Latest returns the most recent successfully decoded snapshot, or nil
// before the first successful poll.
func (p *Poller) Latest() *Result {
	return p.latest.Load()
}

// Run polls immediately, then on every tick until the context is
// cancelled. A failed poll keeps the previous snapshot in place.
func (p *Poller) Run(ctx context.Context) {
	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	start := time.Now()

	snap, err := p.source.GetRib(ctx)
	if err != nil {
		metrics.PollsTotal.WithLabelValues("error").Inc()
		p.logger.Error("rib fetch failed", zap.Error(err))
		return
	}

	res := &Result{
		InstanceID: p.instanceID,
		FetchedAt:  start.UTC(),
		Routes:     p.extractor.ExtractAll(snap),
	}
	p.latest.Store(res)

	metrics.PollsTotal.WithLabelValues("ok").Inc()
	metrics.PollDuration.Observe(time.Since(start).Seconds())
	metrics.RoutesDecoded.Set(float64(len(res.Routes)))
	metrics.LastPollTimestamp.SetToCurrentTime()

	p.logger.Debug("rib poll complete",
		zap.Int("destinations", len(snap.Destinations)),
		zap.Int("routes", len(res.Routes)),
		zap.Duration("took", time.Since(start)),
	)

	for _, sink := range p.sinks {
		sinkStart := time.Now()
		if err := sink.Publish(ctx, res); err != nil {
			metrics.SinkPublishTotal.WithLabelValues(sink.Name(), "error").Inc()
			p.logger.Error("sink publish failed",
				zap.String("sink", sink.Name()),
				zap.Error(err),
			)
			continue
		}
		metrics.SinkPublishTotal.WithLabelValues(sink.Name(), "ok").Inc()
		metrics.SinkPublishDuration.WithLabelValues(sink.Name()).Observe(time.Since(sinkStart).Seconds())
	}
}
