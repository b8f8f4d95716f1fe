// Package graph defines the contract between the ingestion pipeline, the
// query gateway, and a graph engine which holds triples in per-source
// named graphs.
package graph

import (
	"context"

	"github.com/pkg/errors"
	"go.graphsync.dev/core/term"
)

// Integrator is the mutation and query entry point of a graph engine.
//
// Implementations must be safe for concurrent use: Merge may be called
// while any number of Query calls are in flight. Callers do not add
// locking of their own.
type Integrator interface {
	// Merge |triples| into the named graph of |source|. An empty |source|
	// names the default (unnamed) graph. Triples are merged in order.
	Merge(ctx context.Context, source string, triples []term.Triple) error
	// Query evaluates |text| within |scope|.
	Query(ctx context.Context, scope Scope, text string) (*Results, error)
}

// Querier is the read-only portion of an Integrator.
type Querier interface {
	Query(ctx context.Context, scope Scope, text string) (*Results, error)
}

// Solution binds variable names to Terms. Unbound variables are absent.
type Solution map[string]term.Term

// Results of a query. Exactly one of Solutions (with Vars) or Boolean is
// meaningful: a tabular result has a nil Boolean.
type Results struct {
	Vars      []string
	Solutions []Solution
	Boolean   *bool
}

// IsTabular is true if the Results are a table of Solutions.
func (r *Results) IsTabular() bool { return r != nil && r.Boolean == nil }

// ErrQuery is the cause of errors returned by engines which could not parse
// or evaluate a query.
var ErrQuery = errors.New("query failed")

// QueryErrorf returns an error formatted per |format| and having ErrQuery
// as its cause.
func QueryErrorf(format string, args ...interface{}) error {
	return errors.WithMessagef(ErrQuery, format, args...)
}
