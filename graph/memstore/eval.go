package memstore

import (
	"context"
	"strings"

	"go.graphsync.dev/core/graph"
	"go.graphsync.dev/core/term"
)

// binding of variable names to Terms, shared between the patterns of a join.
type binding map[string]term.Term

type evaluator struct {
	ctx      context.Context
	q        *query
	patterns []pattern
	graphs   []*index

	// Projection state.
	out      []graph.Solution
	distinct map[string]struct{}
	skipped  int
	found    bool

	steps int
	err   error
}

func evaluate(ctx context.Context, q *query, graphs []*index) (*graph.Results, error) {
	var e = &evaluator{
		ctx:      ctx,
		q:        q,
		patterns: plan(q.patterns),
		graphs:   graphs,
	}
	if q.distinct {
		e.distinct = make(map[string]struct{})
	}

	if q.form == askForm || q.limit != 0 {
		e.join(0, binding{})
	}
	if e.err != nil {
		return nil, e.err
	}

	if q.form == askForm {
		var found = e.found
		return &graph.Results{Boolean: &found}, nil
	}
	if e.out == nil {
		e.out = []graph.Solution{}
	}
	return &graph.Results{Vars: q.vars, Solutions: e.out}, nil
}

// join extends |b| with matches of patterns[i:], emitting each complete
// binding. It returns false when evaluation should stop.
func (e *evaluator) join(i int, b binding) bool {
	if !e.step() {
		return false
	} else if i == len(e.patterns) {
		return e.emit(b)
	}
	var pat = e.patterns[i]
	var s, p, o = resolve(pat.s, b), resolve(pat.p, b), resolve(pat.o, b)

	for _, ix := range e.graphs {
		var cont = ix.match(s, p, o, func(t term.Triple) bool {
			if next, ok := extend(b, pat, t); ok {
				return e.join(i+1, next)
			}
			return e.step() // Scans of non-matching triples are also bounded.
		})
		if !cont {
			return false
		}
	}
	return true
}

// step counts an evaluation step, periodically checking for cancellation.
// It returns false if evaluation should stop.
func (e *evaluator) step() bool {
	if e.steps++; e.steps%1024 == 0 && e.ctx.Err() != nil {
		e.err = e.ctx.Err()
		return false
	}
	return true
}

func (e *evaluator) emit(b binding) bool {
	if e.q.form == askForm {
		e.found = true
		return false
	}

	var sol = make(graph.Solution, len(e.q.vars))
	for _, v := range e.q.vars {
		if t, ok := b[v]; ok {
			sol[v] = t
		}
	}
	if e.distinct != nil {
		var key = solutionKey(e.q.vars, sol)
		if _, ok := e.distinct[key]; ok {
			return true
		}
		e.distinct[key] = struct{}{}
	}
	if e.skipped < e.q.offset {
		e.skipped++
		return true
	}
	e.out = append(e.out, sol)

	return e.q.limit < 0 || len(e.out) < e.q.limit
}

// plan orders |patterns| so that each next pattern has the greatest number
// of positions which are constant, or bound by an earlier pattern.
func plan(patterns []pattern) []pattern {
	var remaining = append([]pattern(nil), patterns...)
	var bound = make(map[string]bool)
	var out = make([]pattern, 0, len(patterns))

	for len(remaining) != 0 {
		var best, bestScore = 0, -1

		for i, pat := range remaining {
			var score = 0
			for _, n := range [3]node{pat.s, pat.p, pat.o} {
				if n.variable == "" || bound[n.variable] {
					score++
				}
			}
			if score > bestScore {
				best, bestScore = i, score
			}
		}

		var pat = remaining[best]
		remaining = append(remaining[:best], remaining[best+1:]...)
		out = append(out, pat)

		for _, n := range [3]node{pat.s, pat.p, pat.o} {
			if n.variable != "" {
				bound[n.variable] = true
			}
		}
	}
	return out
}

// resolve returns the Term of |n| under |b|, or nil if |n| is an unbound variable.
func resolve(n node, b binding) *term.Term {
	if n.variable == "" {
		return &n.term
	} else if t, ok := b[n.variable]; ok {
		return &t
	}
	return nil
}

// extend returns a copy of |b| which additionally binds the variables of
// |pat| to the matched |t|. It fails if a variable repeated within |pat| would
// bind to different Terms.
func extend(b binding, pat pattern, t term.Triple) (binding, bool) {
	var out = make(binding, len(b)+3)
	for k, v := range b {
		out[k] = v
	}
	for _, c := range [3]struct {
		n node
		t term.Term
	}{{pat.s, t.Subject}, {pat.p, t.Predicate}, {pat.o, t.Object}} {
		if c.n.variable == "" {
			continue
		} else if prev, ok := out[c.n.variable]; ok && prev != c.t {
			return nil, false
		}
		out[c.n.variable] = c.t
	}
	return out, true
}

func solutionKey(vars []string, sol graph.Solution) string {
	var b strings.Builder
	for _, v := range vars {
		if t, ok := sol[v]; ok {
			b.WriteByte(byte('0' + t.Kind))
			b.WriteString(t.String())
		}
		b.WriteByte(0)
	}
	return b.String()
}
