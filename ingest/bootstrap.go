package ingest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.graphsync.dev/core/graph"
	"go.graphsync.dev/core/metrics"
	"go.graphsync.dev/core/source"
	"go.graphsync.dev/core/term"
	"golang.org/x/sync/errgroup"
)

// TripleSource is the read portion of a source.Store.
type TripleSource interface {
	// Sources returns the distinct sources of the table.
	Sources(ctx context.Context) ([]string, error)
	// Triples returns all triples of the source, passing malformed rows to
	// |onMalformed|.
	Triples(ctx context.Context, src string, onMalformed func(source.RowError)) ([]term.Triple, error)
}

var _ TripleSource = (*source.Store)(nil)

// BootstrapStats summarize a completed Bootstrap.
type BootstrapStats struct {
	Sources   int
	Triples   int
	Malformed int
	Elapsed   time.Duration
}

// Fetch all triples of every source of |src|. Sources are read concurrently,
// with up to |concurrency| reads in flight. Rows having malformed terms are
// logged and skipped, and their number returned. Any other error of a read
// aborts the Fetch.
func Fetch(ctx context.Context, src TripleSource, concurrency int) (map[string][]term.Triple, int, error) {
	var sources, err = src.Sources(ctx)
	if err != nil {
		return nil, 0, errors.WithMessage(err, "listing sources")
	}

	var mu sync.Mutex
	var out = make(map[string][]term.Triple, len(sources))
	var malformed int

	var onMalformed = func(re source.RowError) {
		log.WithFields(log.Fields{
			"source":   re.Source,
			"position": re.Position,
			"text":     re.Text,
			"err":      re.Err,
		}).Warn("skipping row with malformed term")

		mu.Lock()
		malformed++
		mu.Unlock()
	}

	var eg, egCtx = errgroup.WithContext(ctx)
	if concurrency > 0 {
		eg.SetLimit(concurrency)
	}
	for _, name := range sources {
		var name = name
		eg.Go(func() error {
			var triples, err = src.Triples(egCtx, name, onMalformed)
			if err != nil {
				return errors.WithMessagef(err, "fetching source %q", name)
			}
			mu.Lock()
			out[name] = triples
			mu.Unlock()
			return nil
		})
	}
	if err = eg.Wait(); err != nil {
		return nil, malformed, err
	}
	return out, malformed, nil
}

// Bootstrap Fetches all triples of |src| and merges each source into |into|,
// one source at a time and in sorted source order.
func Bootstrap(ctx context.Context, src TripleSource, into graph.Integrator, concurrency int) (BootstrapStats, error) {
	var started = time.Now()

	var fetched, malformed, err = Fetch(ctx, src, concurrency)
	if err != nil {
		return BootstrapStats{}, err
	}
	var stats = BootstrapStats{Sources: len(fetched), Malformed: malformed}

	var names = make([]string, 0, len(fetched))
	for name := range fetched {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		var triples = fetched[name]

		if err = into.Merge(ctx, name, triples); err != nil {
			return stats, errors.WithMessagef(err, "merging source %q", name)
		}
		stats.Triples += len(triples)

		log.WithFields(log.Fields{
			"source":  name,
			"triples": humanize.Comma(int64(len(triples))),
		}).Debug("merged source")
	}
	stats.Elapsed = time.Since(started)

	metrics.BootstrapTriplesTotal.Add(float64(stats.Triples))
	metrics.BootstrapMalformedRowsTotal.Add(float64(stats.Malformed))
	metrics.BootstrapDurationSeconds.Set(stats.Elapsed.Seconds())

	log.WithFields(log.Fields{
		"sources":   stats.Sources,
		"triples":   humanize.Comma(int64(stats.Triples)),
		"malformed": stats.Malformed,
		"elapsed":   stats.Elapsed,
	}).Info("bootstrap complete")

	return stats, nil
}
