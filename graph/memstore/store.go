// Package memstore is an in-memory graph engine implementing graph.Integrator.
// It keeps a separately indexed triple set for each named graph, and
// evaluates SELECT and ASK queries consisting of a single basic graph
// pattern, with optional DISTINCT, LIMIT and OFFSET.
//
// A named Scope evaluates against its one graph. The union Scope matches
// every pattern against each graph in turn, so a triple present in two
// graphs also appears twice in results.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"go.graphsync.dev/core/graph"
	"go.graphsync.dev/core/term"
)

// Store is an in-memory graph.Integrator. It's safe for concurrent use:
// Merges are exclusive, while Queries run concurrently with one another.
type Store struct {
	mu     sync.RWMutex
	graphs map[string]*index
	// Parsed queries, keyed on query text. Nil if caching is disabled.
	parsed *lru.Cache
}

var _ graph.Integrator = (*Store)(nil)

// New returns an empty Store which caches up to |cacheSize| parsed queries.
// A |cacheSize| of zero disables caching.
func New(cacheSize int) *Store {
	var s = &Store{graphs: make(map[string]*index)}

	if cacheSize > 0 {
		var cache, err = lru.New(cacheSize)
		if err != nil {
			panic(err.Error()) // Only errors on size <= 0.
		}
		s.parsed = cache
	}
	return s
}

// Merge |triples| into the graph of |source|. Triples already present in
// the graph are ignored.
func (s *Store) Merge(ctx context.Context, source string, triples []term.Triple) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var ix, ok = s.graphs[source]
	if !ok {
		ix = newIndex()
		s.graphs[source] = ix
	}
	for _, t := range triples {
		ix.add(t)
	}
	return nil
}

// Query evaluates |text| within |scope|. Errors in parsing or evaluating
// the query have cause graph.ErrQuery.
func (s *Store) Query(ctx context.Context, scope graph.Scope, text string) (*graph.Results, error) {
	var q, err = s.parse(text)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var graphs []*index
	if scope.Union {
		var names = make([]string, 0, len(s.graphs))
		for name := range s.graphs {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			graphs = append(graphs, s.graphs[name])
		}
	} else if ix, ok := s.graphs[scope.Graph]; ok {
		graphs = append(graphs, ix)
	}

	var res, evalErr = evaluate(ctx, q, graphs)
	if evalErr != nil {
		return nil, errors.WithMessage(evalErr, "evaluating query")
	}
	return res, nil
}

// Stats returns the number of triples of each graph.
func (s *Store) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out = make(map[string]int, len(s.graphs))
	for name, ix := range s.graphs {
		out[name] = len(ix.triples)
	}
	return out
}

// Graphs returns the sorted names of all graphs.
func (s *Store) Graphs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names = make([]string, 0, len(s.graphs))
	for name := range s.graphs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Store) parse(text string) (*query, error) {
	if s.parsed != nil {
		if v, ok := s.parsed.Get(text); ok {
			return v.(*query), nil
		}
	}
	var q, err = parse(text)
	if err != nil {
		return nil, err
	}
	if s.parsed != nil {
		s.parsed.Add(text, q)
	}
	return q, nil
}
