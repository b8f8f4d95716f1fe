package ingest

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.graphsync.dev/core/graph"
	"go.graphsync.dev/core/metrics"
	"go.graphsync.dev/core/term"
)

// ErrStopped is returned by Pending once the Aggregator has stopped running.
var ErrStopped = errors.New("aggregator stopped")

// PendingStats describe triples awaiting the next flush.
type PendingStats struct {
	Triples  int            `json:"triples"`
	BySource map[string]int `json:"bySource"`
	// Flushes is the number of ticks which attempted to merge pending triples.
	Flushes int `json:"flushes"`
}

// Aggregator decodes Notifications and accumulates their triples by source,
// periodically merging each source's pending triples into a graph.Integrator.
//
// Pending triples are owned by the goroutine of Run, and aren't shared.
// Triples of a source are merged in the order their notifications arrived,
// and sources are merged in order of their first pending notification.
type Aggregator struct {
	in       <-chan Notification
	decoder  Decoder
	into     graph.Integrator
	interval time.Duration
	inspect  chan chan PendingStats
	done     chan struct{}

	// Overrides the flush ticker, if non-nil.
	tick <-chan time.Time

	// Owned by Run.
	order   []string
	pending map[string][]term.Triple
	size    int
	flushes int
}

// NewAggregator returns an Aggregator of Notifications |in|, which are decoded
// with |dec| and merged into |into| every |interval|.
func NewAggregator(in <-chan Notification, dec Decoder, into graph.Integrator, interval time.Duration) *Aggregator {
	return &Aggregator{
		in:       in,
		decoder:  dec,
		into:     into,
		interval: interval,
		inspect:  make(chan chan PendingStats),
		done:     make(chan struct{}),
		pending:  make(map[string][]term.Triple),
	}
}

// Run the Aggregator until |ctx| is cancelled. Upon cancellation, Run
// accepts Notifications already buffered, performs a final flush, and returns.
func (a *Aggregator) Run(ctx context.Context) error {
	defer close(a.done)

	var tick = a.tick
	if tick == nil {
		var ticker = time.NewTicker(a.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case n := <-a.in:
			a.accept(n)
		case <-tick:
			a.flush(ctx)
		case ch := <-a.inspect:
			ch <- a.stats()
		case <-ctx.Done():
			a.drain()
			a.flush(context.WithoutCancel(ctx))

			if a.size != 0 {
				log.WithField("triples", a.size).Warn("exiting with unmerged triples")
			}
			return nil
		}
	}
}

// Pending returns stats of the Aggregator's pending triples.
func (a *Aggregator) Pending(ctx context.Context) (PendingStats, error) {
	var ch = make(chan PendingStats, 1)

	select {
	case a.inspect <- ch:
	case <-a.done:
		return PendingStats{}, ErrStopped
	case <-ctx.Done():
		return PendingStats{}, ctx.Err()
	}
	return <-ch, nil
}

func (a *Aggregator) accept(n Notification) {
	var src, t, err = a.decoder.Decode(n)
	if err != nil {
		var status = metrics.Undecodable
		if errors.Is(err, ErrUnsupportedAction) {
			status = metrics.Unsupported
		} else if errors.Is(err, term.ErrMalformed) {
			status = metrics.Malformed
		}
		metrics.NotificationsTotal.WithLabelValues(status).Inc()

		log.WithFields(log.Fields{
			"channel": n.Channel,
			"payload": n.Payload,
			"err":     err,
		}).Warn("dropping notification")
		return
	}
	metrics.NotificationsTotal.WithLabelValues(metrics.Ok).Inc()

	if _, ok := a.pending[src]; !ok {
		a.order = append(a.order, src)
	}
	a.pending[src] = append(a.pending[src], t)
	a.size++
	metrics.PendingTriples.Set(float64(a.size))
}

// drain accepts Notifications which are immediately available.
func (a *Aggregator) drain() {
	for {
		select {
		case n := <-a.in:
			a.accept(n)
		default:
			return
		}
	}
}

// flush merges each pending source. Sources which fail to merge remain
// pending, ahead of triples which arrive later.
func (a *Aggregator) flush(ctx context.Context) {
	if len(a.order) == 0 {
		return
	}
	var retained []string

	for _, src := range a.order {
		var triples = a.pending[src]
		var started = time.Now()

		if err := a.into.Merge(ctx, src, triples); err != nil {
			metrics.MergesTotal.WithLabelValues(metrics.Fail).Inc()
			log.WithFields(log.Fields{
				"source":  src,
				"triples": len(triples),
				"err":     err,
			}).Warn("failed to merge source (will retry)")

			retained = append(retained, src)
			continue
		}
		metrics.MergesTotal.WithLabelValues(metrics.Ok).Inc()
		metrics.MergeDurationSeconds.Observe(time.Since(started).Seconds())

		log.WithFields(log.Fields{
			"source":  src,
			"triples": len(triples),
		}).Debug("merged source")

		delete(a.pending, src)
		a.size -= len(triples)
	}
	a.order = retained
	a.flushes++
	metrics.PendingTriples.Set(float64(a.size))
}

func (a *Aggregator) stats() PendingStats {
	var out = PendingStats{
		Triples:  a.size,
		BySource: make(map[string]int, len(a.pending)),
		Flushes:  a.flushes,
	}
	for src, triples := range a.pending {
		out.BySource[src] = len(triples)
	}
	return out
}
