package ingest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.graphsync.dev/core/graph"
	"go.graphsync.dev/core/graph/memstore"
	"go.graphsync.dev/core/term"
)

func TestAggregatorEmptyTicksDontMerge(t *testing.T) {
	var in, tick = make(chan Notification), make(chan time.Time)
	var rec = new(recordingIntegrator)
	var agg, stop = startAggregator(t, in, rec, tick)

	tick <- time.Now()
	tick <- time.Now()

	var stats, err = agg.Pending(context.Background())
	require.NoError(t, err)
	require.Equal(t, PendingStats{BySource: map[string]int{}}, stats)

	in <- notification("a", "<urn:ex:1>")
	tick <- time.Now() // Merges.
	tick <- time.Now() // Doesn't.
	tick <- time.Now() // Doesn't.

	stats, err = agg.Pending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Flushes)

	stop()
	require.Len(t, rec.merges, 1)
}

func TestAggregatorFlushOrder(t *testing.T) {
	var in, tick = make(chan Notification), make(chan time.Time)
	var rec = new(recordingIntegrator)
	var agg, stop = startAggregator(t, in, rec, tick)

	in <- notification("b", "<urn:ex:1>")
	in <- notification("a", "<urn:ex:2>")
	in <- notification("b", "<urn:ex:3>")
	in <- Notification{Payload: "garbage"} // Dropped.
	in <- notification("a", "bad term")    // Dropped.
	in <- notification("c", "<urn:ex:4>")
	in <- notification("b", "<urn:ex:5>")

	var stats, err = agg.Pending(context.Background())
	require.NoError(t, err)
	require.Equal(t, PendingStats{
		Triples:  5,
		BySource: map[string]int{"a": 1, "b": 3, "c": 1},
	}, stats)

	tick <- time.Now()
	stats, err = agg.Pending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, stats.Triples)

	stop()
	require.Equal(t, []merge{
		{"b", []string{"urn:ex:1", "urn:ex:3", "urn:ex:5"}},
		{"a", []string{"urn:ex:2"}},
		{"c", []string{"urn:ex:4"}},
	}, rec.merges)
}

func TestAggregatorRetainsFailedMerges(t *testing.T) {
	var in, tick = make(chan Notification), make(chan time.Time)
	var rec = &recordingIntegrator{failures: map[string]int{"a": 1}}
	var agg, stop = startAggregator(t, in, rec, tick)

	in <- notification("a", "<urn:ex:1>")
	in <- notification("b", "<urn:ex:2>")
	tick <- time.Now() // "a" fails.

	var stats, err = agg.Pending(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]int{"a": 1}, stats.BySource)

	in <- notification("b", "<urn:ex:3>")
	in <- notification("a", "<urn:ex:4>")
	tick <- time.Now()

	stop()
	require.Equal(t, []merge{
		{"b", []string{"urn:ex:2"}},
		// Retained "a" is merged first, with earlier triples ahead of later ones.
		{"a", []string{"urn:ex:1", "urn:ex:4"}},
		{"b", []string{"urn:ex:3"}},
	}, rec.merges)
}

func TestAggregatorFinalFlushOnCancel(t *testing.T) {
	var in = make(chan Notification, 8)
	var rec = new(recordingIntegrator)

	for i := 0; i != 3; i++ {
		in <- notification("a", fmt.Sprintf("<urn:ex:%d>", i))
	}
	var agg = NewAggregator(in, Decoder{}, rec, time.Hour)

	var ctx, cancel = context.WithCancel(context.Background())
	cancel()
	require.NoError(t, agg.Run(ctx))

	require.Equal(t, []merge{
		{"a", []string{"urn:ex:0", "urn:ex:1", "urn:ex:2"}},
	}, rec.merges)

	var _, err = agg.Pending(context.Background())
	require.Equal(t, ErrStopped, err)
}

func TestNotificationBecomesQueryable(t *testing.T) {
	var ctx = context.Background()
	var in, tick = make(chan Notification), make(chan time.Time)
	var store = memstore.New(8)
	var agg, stop = startAggregator(t, in, store, tick)
	defer stop()

	in <- Notification{Channel: "events", Payload: bldg1Payload}
	var _, err = agg.Pending(ctx)
	require.NoError(t, err)

	var query = `SELECT ?o WHERE { ?s <urn:ex:has> ?o }`
	res, err := store.Query(ctx, graph.Named("bldg1"), query)
	require.NoError(t, err)
	require.Empty(t, res.Solutions) // Not visible until the next tick.

	tick <- time.Now()
	_, err = agg.Pending(ctx)
	require.NoError(t, err)

	res, err = store.Query(ctx, graph.Named("bldg1"), query)
	require.NoError(t, err)
	require.Equal(t, []graph.Solution{{"o": term.NewLiteral(`"42"`)}}, res.Solutions)
}

func TestAggregatorFlushesOnInterval(t *testing.T) {
	var in = make(chan Notification, 1)
	var store = memstore.New(0)
	var agg = NewAggregator(in, Decoder{}, store, 10*time.Millisecond)

	var ctx, cancel = context.WithCancel(context.Background())
	var done = make(chan error)
	go func() { done <- agg.Run(ctx) }()

	in <- notification("a", "<urn:ex:1>")
	require.Eventually(t, func() bool {
		return store.Stats()["a"] == 1
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

type merge struct {
	source   string
	subjects []string
}

// recordingIntegrator records merges, and fails merges of a source while it
// has remaining |failures|.
type recordingIntegrator struct {
	mu       sync.Mutex
	merges   []merge
	failures map[string]int
}

func (r *recordingIntegrator) Merge(_ context.Context, source string, triples []term.Triple) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failures[source] > 0 {
		r.failures[source]--
		return errors.New("injected failure")
	}
	var m = merge{source: source}
	for _, t := range triples {
		m.subjects = append(m.subjects, t.Subject.Value)
	}
	r.merges = append(r.merges, m)
	return nil
}

func (r *recordingIntegrator) Query(context.Context, graph.Scope, string) (*graph.Results, error) {
	return nil, errors.New("not implemented")
}

func startAggregator(t *testing.T, in chan Notification, into graph.Integrator, tick chan time.Time) (*Aggregator, func()) {
	var agg = NewAggregator(in, Decoder{}, into, time.Hour)
	agg.tick = tick

	var ctx, cancel = context.WithCancel(context.Background())
	var done = make(chan error)
	go func() { done <- agg.Run(ctx) }()

	return agg, func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func notification(source, subject string) Notification {
	return Notification{
		Channel: "events",
		Payload: fmt.Sprintf(`{"table":"latest_triples","action":"INSERT",`+
			`"data":{"source":%q,"s":%q,"p":"<urn:ex:p>","o":"\"o\""}}`, source, subject),
	}
}
