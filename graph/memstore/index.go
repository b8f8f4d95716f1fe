package memstore

import "go.graphsync.dev/core/term"

// index is the triple set of a single named graph. Triples are held in
// insertion order, with posting lists of triple offsets for each subject,
// predicate, and object.
type index struct {
	triples     []term.Triple
	seen        map[term.Triple]struct{}
	bySubject   map[term.Term][]int32
	byPredicate map[term.Term][]int32
	byObject    map[term.Term][]int32
}

func newIndex() *index {
	return &index{
		seen:        make(map[term.Triple]struct{}),
		bySubject:   make(map[term.Term][]int32),
		byPredicate: make(map[term.Term][]int32),
		byObject:    make(map[term.Term][]int32),
	}
}

// add |t| to the index, returning false if it was already present.
func (ix *index) add(t term.Triple) bool {
	if _, ok := ix.seen[t]; ok {
		return false
	}
	var off = int32(len(ix.triples))

	ix.seen[t] = struct{}{}
	ix.triples = append(ix.triples, t)
	ix.bySubject[t.Subject] = append(ix.bySubject[t.Subject], off)
	ix.byPredicate[t.Predicate] = append(ix.byPredicate[t.Predicate], off)
	ix.byObject[t.Object] = append(ix.byObject[t.Object], off)
	return true
}

// match invokes |fn| with each triple matching the non-nil positions of
// |s|, |p|, and |o|, in insertion order. The posting list of the most
// selective bound position drives the scan. Iteration stops if |fn|
// returns false, and match then returns false.
func (ix *index) match(s, p, o *term.Term, fn func(term.Triple) bool) bool {
	var postings []int32
	var bound = false

	for _, c := range [3]struct {
		t *term.Term
		m map[term.Term][]int32
	}{{s, ix.bySubject}, {p, ix.byPredicate}, {o, ix.byObject}} {
		if c.t == nil {
			continue
		}
		var l = c.m[*c.t]
		if len(l) == 0 {
			return true // No triple can match.
		} else if !bound || len(l) < len(postings) {
			postings, bound = l, true
		}
	}

	var check = func(t term.Triple) bool {
		return (s == nil || t.Subject == *s) &&
			(p == nil || t.Predicate == *p) &&
			(o == nil || t.Object == *o)
	}

	if !bound {
		for _, t := range ix.triples {
			if !fn(t) {
				return false
			}
		}
		return true
	}
	for _, off := range postings {
		if t := ix.triples[off]; check(t) && !fn(t) {
			return false
		}
	}
	return true
}
