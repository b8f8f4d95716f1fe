package memstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.graphsync.dev/core/graph"
	"go.graphsync.dev/core/term"
)

func TestUnionAndNamedScopes(t *testing.T) {
	var ctx, s = context.Background(), New(16)

	require.NoError(t, s.Merge(ctx, "a", []term.Triple{
		triple("urn:a:1", "urn:ex:p", "one"),
		triple("urn:a:2", "urn:ex:p", "two"),
	}))
	require.NoError(t, s.Merge(ctx, "b", []term.Triple{
		triple("urn:b:1", "urn:ex:p", "one"),
		triple("urn:b:2", "urn:ex:p", "two"),
		triple("urn:b:3", "urn:ex:q", "three"),
	}))

	var q = `SELECT * WHERE { ?s ?p ?o }`

	res, err := s.Query(ctx, graph.ResolveScope("all"), q)
	require.NoError(t, err)
	require.Equal(t, []string{"s", "p", "o"}, res.Vars)
	require.Len(t, res.Solutions, 5)
	// Graphs are visited in name order, and triples in insertion order.
	require.Equal(t, term.NewIRI("urn:a:1"), res.Solutions[0]["s"])
	require.Equal(t, term.NewIRI("urn:b:3"), res.Solutions[4]["s"])

	res, err = s.Query(ctx, graph.Named("a"), q)
	require.NoError(t, err)
	require.Len(t, res.Solutions, 2)

	res, err = s.Query(ctx, graph.Named("b"), `SELECT ?s WHERE { ?s <urn:ex:q> "three" }`)
	require.NoError(t, err)
	require.Equal(t, []graph.Solution{{"s": term.NewIRI("urn:b:3")}}, res.Solutions)

	// An unknown graph has no solutions.
	res, err = s.Query(ctx, graph.Named("missing"), q)
	require.NoError(t, err)
	require.True(t, res.IsTabular())
	require.Equal(t, []graph.Solution{}, res.Solutions)

	require.Equal(t, map[string]int{"a": 2, "b": 3}, s.Stats())
	require.Equal(t, []string{"a", "b"}, s.Graphs())
}

func TestMergeDeduplicatesWithinGraph(t *testing.T) {
	var ctx, s = context.Background(), New(0)
	var tr = triple("urn:ex:1", "urn:ex:has", "42")

	require.NoError(t, s.Merge(ctx, "bldg1", []term.Triple{tr, tr}))
	require.NoError(t, s.Merge(ctx, "bldg1", []term.Triple{tr}))
	require.NoError(t, s.Merge(ctx, "bldg2", []term.Triple{tr}))
	require.Equal(t, map[string]int{"bldg1": 1, "bldg2": 1}, s.Stats())
	require.Equal(t, []string{"bldg1", "bldg2"}, s.Graphs())

	// Union scope doesn't deduplicate across graphs.
	res, err := s.Query(ctx, graph.UnionScope, `SELECT ?o WHERE { <urn:ex:1> <urn:ex:has> ?o }`)
	require.NoError(t, err)
	require.Len(t, res.Solutions, 2)

	res, err = s.Query(ctx, graph.UnionScope, `SELECT DISTINCT ?o WHERE { <urn:ex:1> <urn:ex:has> ?o }`)
	require.NoError(t, err)
	require.Equal(t, []graph.Solution{{"o": term.NewLiteral("42")}}, res.Solutions)
}

func TestJoinsAndPrefixes(t *testing.T) {
	var ctx, s = context.Background(), New(16)

	var sensor, room = term.NewIRI("urn:ex:sensor1"), term.NewIRI("urn:ex:room1")
	require.NoError(t, s.Merge(ctx, "bldg1", []term.Triple{
		{Subject: sensor, Predicate: term.NewIRI(rdfType), Object: term.NewIRI("https://brickschema.org/schema/Brick#Temperature_Sensor")},
		{Subject: sensor, Predicate: term.NewIRI("https://brickschema.org/schema/Brick#isPointOf"), Object: room},
		{Subject: room, Predicate: term.NewIRI(rdfType), Object: term.NewIRI("https://brickschema.org/schema/Brick#Room")},
		{Subject: room, Predicate: term.NewIRI("urn:ex:label"), Object: term.Term{Kind: term.Literal, Value: "salle", Language: "fr"}},
		{Subject: room, Predicate: term.NewIRI("urn:ex:floor"), Object: term.Term{Kind: term.Literal, Value: "3", Datatype: xsdInteger}},
	}))

	res, err := s.Query(ctx, graph.Named("bldg1"), `
		PREFIX brick: <https://brickschema.org/schema/Brick#>
		SELECT ?sensor ?room WHERE {
			?sensor a brick:Temperature_Sensor ;
			        brick:isPointOf ?room .
			?room a brick:Room .
		}`)
	require.NoError(t, err)
	require.Equal(t, []graph.Solution{{"sensor": sensor, "room": room}}, res.Solutions)

	// Typed and tagged literals match only their exact form.
	res, err = s.Query(ctx, graph.Named("bldg1"), `SELECT ?r { ?r <urn:ex:floor> 3 . ?r <urn:ex:label> "salle"@fr }`)
	require.NoError(t, err)
	require.Equal(t, []graph.Solution{{"r": room}}, res.Solutions)

	res, err = s.Query(ctx, graph.Named("bldg1"), `SELECT ?r { ?r <urn:ex:label> "salle" }`)
	require.NoError(t, err)
	require.Empty(t, res.Solutions)

	// A blank node label joins, but isn't projected.
	res, err = s.Query(ctx, graph.Named("bldg1"), `SELECT * { ?s <https://brickschema.org/schema/Brick#isPointOf> _:r . _:r a ?t }`)
	require.NoError(t, err)
	require.Equal(t, []string{"s", "t"}, res.Vars)
	require.Len(t, res.Solutions, 1)
}

func TestRepeatedVariableMustAgree(t *testing.T) {
	var ctx, s = context.Background(), New(0)
	var x = term.NewIRI("urn:ex:x")

	require.NoError(t, s.Merge(ctx, "", []term.Triple{
		{Subject: x, Predicate: term.NewIRI("urn:ex:self"), Object: x},
		{Subject: x, Predicate: term.NewIRI("urn:ex:self"), Object: term.NewIRI("urn:ex:y")},
	}))
	res, err := s.Query(ctx, graph.Named(""), `SELECT ?a { ?a <urn:ex:self> ?a }`)
	require.NoError(t, err)
	require.Equal(t, []graph.Solution{{"a": x}}, res.Solutions)
}

func TestLimitOffsetAndAsk(t *testing.T) {
	var ctx, s = context.Background(), New(4)

	var triples []term.Triple
	for _, o := range []string{"a", "b", "c", "d", "e"} {
		triples = append(triples, triple("urn:ex:s", "urn:ex:p", o))
	}
	require.NoError(t, s.Merge(ctx, "g", triples))

	res, err := s.Query(ctx, graph.UnionScope, `SELECT ?o { ?s ?p ?o } OFFSET 1 LIMIT 2`)
	require.NoError(t, err)
	require.Equal(t, []graph.Solution{
		{"o": term.NewLiteral("b")},
		{"o": term.NewLiteral("c")},
	}, res.Solutions)

	res, err = s.Query(ctx, graph.UnionScope, `SELECT ?o { ?s ?p ?o } LIMIT 0`)
	require.NoError(t, err)
	require.Empty(t, res.Solutions)

	res, err = s.Query(ctx, graph.UnionScope, `ASK { ?s <urn:ex:p> "c" }`)
	require.NoError(t, err)
	require.False(t, res.IsTabular())
	require.True(t, *res.Boolean)

	res, err = s.Query(ctx, graph.Named("other"), `ASK { ?s <urn:ex:p> "c" }`)
	require.NoError(t, err)
	require.False(t, *res.Boolean)
}

func TestQueryErrors(t *testing.T) {
	var ctx, s = context.Background(), New(4)

	for _, tc := range []struct {
		query, expect string
	}{
		{`SELECT ?s WHERE { ?s ?p ?o FILTER(?o) }`, `unsupported query feature "FILTER" at offset 27: query failed`},
		{`SELECT ?s WHERE { ?s ?p ?o } ORDER BY ?s`, `unsupported query feature "ORDER" at offset 29: query failed`},
		{`SELECT ?s WHERE { { ?s ?p ?o } }`, `unsupported query feature "{" at offset 18: query failed`},
		{`BASE <urn:ex:> SELECT * { ?s ?p ?o }`, `unsupported query feature "BASE" at offset 0: query failed`},
		{`CONSTRUCT { ?s ?p ?o } WHERE { ?s ?p ?o }`, `expected SELECT or ASK at offset 0, not "CONSTRUCT": query failed`},
		{`SELECT ?s WHERE { ?s ex:p ?o }`, `undeclared prefix "ex" at offset 21: query failed`},
		{`SELECT ?s WHERE { ?s ?p "oops }`, `unterminated string at offset 24: query failed`},
		{`SELECT ?s WHERE { ?s ?p`, `expected term or variable, but the query ended: query failed`},
		{`SELECT WHERE { ?s ?p ?o }`, `expected projection at offset 7, not "WHERE": query failed`},
	} {
		var _, err = s.Query(ctx, graph.UnionScope, tc.query)
		require.EqualError(t, err, tc.expect, tc.query)
		require.True(t, errors.Is(err, graph.ErrQuery))
	}
}

func TestQueryCache(t *testing.T) {
	var ctx, s = context.Background(), New(1)
	var q = `SELECT ?s { ?s ?p ?o }`

	var _, err = s.Query(ctx, graph.UnionScope, q)
	require.NoError(t, err)
	require.Equal(t, 1, s.parsed.Len())

	cached, ok := s.parsed.Get(q)
	require.True(t, ok)

	_, err = s.Query(ctx, graph.UnionScope, q)
	require.NoError(t, err)

	again, _ := s.parsed.Get(q)
	require.True(t, cached == again)

	// Failed parses aren't cached.
	_, err = s.Query(ctx, graph.UnionScope, `SELECT`)
	require.Error(t, err)
	require.Equal(t, 1, s.parsed.Len())
}

func TestCancelledMerge(t *testing.T) {
	var ctx, cancel = context.WithCancel(context.Background())
	cancel()

	var s = New(0)
	require.Equal(t, context.Canceled, s.Merge(ctx, "a", []term.Triple{triple("urn:ex:1", "urn:ex:p", "o")}))
	require.Empty(t, s.Stats())
}

func TestCancelledScanWithoutMatches(t *testing.T) {
	var s = New(0)
	var triples []term.Triple
	for i := 0; i != 5000; i++ {
		triples = append(triples, triple(fmt.Sprintf("urn:ex:%d", i), "urn:ex:p", "o"))
	}
	require.NoError(t, s.Merge(context.Background(), "a", triples))

	var ctx, cancel = context.WithCancel(context.Background())
	cancel()

	// No subject is also an object, so the scan never extends a binding.
	var _, err = s.Query(ctx, graph.Named("a"), `SELECT * WHERE { ?x ?p ?x }`)
	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled))

	res, err := s.Query(context.Background(), graph.Named("a"), `SELECT * WHERE { ?x ?p ?x }`)
	require.NoError(t, err)
	require.Empty(t, res.Solutions)
}

func triple(s, p, o string) term.Triple {
	return term.Triple{Subject: term.NewIRI(s), Predicate: term.NewIRI(p), Object: term.NewLiteral(o)}
}
