package memstore

import (
	"strconv"
	"strings"

	"go.graphsync.dev/core/graph"
	"go.graphsync.dev/core/term"
)

const (
	rdfType    = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	xsdInteger = "http://www.w3.org/2001/XMLSchema#integer"
	xsdDecimal = "http://www.w3.org/2001/XMLSchema#decimal"
	xsdBoolean = "http://www.w3.org/2001/XMLSchema#boolean"
)

type queryForm int

const (
	selectForm queryForm = iota
	askForm
)

// node is a pattern position: a variable if |variable| is non-empty, and
// otherwise the constant |term|. Blank node labels of a query are variables
// named with their "_:" prefix, which are never projected.
type node struct {
	variable string
	term     term.Term
}

type pattern struct {
	s, p, o node
}

// query is a parsed basic graph pattern query.
type query struct {
	form     queryForm
	distinct bool
	vars     []string // Projected variables, in order.
	patterns []pattern
	limit    int // -1 if not limited.
	offset   int
}

type parser struct {
	toks     []token
	i        int
	prefixes map[string]string
}

// parse |text| as a SELECT or ASK query over a single basic graph pattern.
func parse(text string) (*query, error) {
	var toks, err = lex(text)
	if err != nil {
		return nil, err
	}
	var p = &parser{toks: toks, prefixes: make(map[string]string)}
	var q = &query{limit: -1}

	if err = p.prologue(); err != nil {
		return nil, err
	}

	var projectAll bool
	switch {
	case p.acceptWord("SELECT"):
		q.form = selectForm
		if p.acceptWord("DISTINCT") {
			q.distinct = true
		} else {
			p.acceptWord("REDUCED")
		}
		if p.acceptPunct("*") {
			projectAll = true
		} else {
			for p.peek().kind == tokVar {
				q.vars = append(q.vars, p.next().text)
			}
			if len(q.vars) == 0 {
				return nil, p.unexpected("projection")
			}
		}
	case p.acceptWord("ASK"):
		q.form = askForm
	default:
		return nil, p.unexpected("SELECT or ASK")
	}

	p.acceptWord("WHERE")
	if q.patterns, err = p.groupPattern(); err != nil {
		return nil, err
	}
	if err = p.modifiers(q); err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, p.unexpected("end of query")
	}

	if projectAll {
		q.vars = patternVars(q.patterns)
	}
	return q, nil
}

func (p *parser) prologue() error {
	for {
		if p.acceptWord("PREFIX") {
			var name = p.next()
			if name.kind != tokPName || !strings.HasSuffix(name.text, ":") {
				return graph.QueryErrorf("expected prefix name at offset %d", name.pos)
			}
			var iri = p.next()
			if iri.kind != tokIRI {
				return graph.QueryErrorf("expected IRI at offset %d", iri.pos)
			}
			p.prefixes[strings.TrimSuffix(name.text, ":")] = iri.text
		} else if p.isWord("BASE") {
			return p.unsupported()
		} else {
			return nil
		}
	}
}

func (p *parser) groupPattern() ([]pattern, error) {
	if !p.acceptPunct("{") {
		return nil, p.unexpected("'{'")
	}
	var out []pattern

	for !p.acceptPunct("}") {
		if p.peek().kind == tokWord && !p.isWord("a") && !p.isWord("true") && !p.isWord("false") {
			return nil, p.unsupported()
		} else if p.peek().kind == tokPunct && p.peek().text == "{" {
			return nil, p.unsupported()
		}

		var subject, err = p.node()
		if err != nil {
			return nil, err
		}
		if out, err = p.propertyList(subject, out); err != nil {
			return nil, err
		}
		if p.acceptPunct(".") {
			continue
		} else if p.peek().kind == tokWord {
			return nil, p.unsupported()
		} else if p.peek().kind != tokPunct || p.peek().text != "}" {
			return nil, p.unexpected("'.' or '}'")
		}
	}
	return out, nil
}

func (p *parser) propertyList(subject node, out []pattern) ([]pattern, error) {
	for {
		var verb node
		var err error

		if p.acceptWord("a") {
			verb = node{term: term.NewIRI(rdfType)}
		} else if verb, err = p.node(); err != nil {
			return nil, err
		}

		for {
			var object node
			if object, err = p.node(); err != nil {
				return nil, err
			}
			out = append(out, pattern{subject, verb, object})

			if !p.acceptPunct(",") {
				break
			}
		}

		if !p.acceptPunct(";") {
			return out, nil
		}
		for p.acceptPunct(";") {
			// Repeated separators are permitted.
		}
		if t := p.peek(); t.kind == tokPunct && (t.text == "." || t.text == "}") {
			return out, nil
		}
	}
}

func (p *parser) node() (node, error) {
	var t = p.next()

	switch t.kind {
	case tokVar:
		return node{variable: t.text}, nil
	case tokBlank:
		return node{variable: t.text}, nil
	case tokIRI:
		return node{term: term.NewIRI(t.text)}, nil
	case tokPName:
		var iri, err = p.expand(t)
		return node{term: term.NewIRI(iri)}, err
	case tokString:
		var lit = term.NewLiteral(t.text)

		if p.peek().kind == tokLang {
			lit.Language = p.next().text
		} else if p.peek().kind == tokCarets {
			p.next()
			var dt = p.next()
			var err error

			switch dt.kind {
			case tokIRI:
				lit.Datatype = dt.text
			case tokPName:
				lit.Datatype, err = p.expand(dt)
			default:
				err = graph.QueryErrorf("expected datatype IRI at offset %d", dt.pos)
			}
			if err != nil {
				return node{}, err
			}
		}
		return node{term: lit}, nil
	case tokInteger:
		return node{term: term.Term{Kind: term.Literal, Value: t.text, Datatype: xsdInteger}}, nil
	case tokDecimal:
		return node{term: term.Term{Kind: term.Literal, Value: t.text, Datatype: xsdDecimal}}, nil
	case tokWord:
		if w := strings.ToLower(t.text); w == "true" || w == "false" {
			return node{term: term.Term{Kind: term.Literal, Value: w, Datatype: xsdBoolean}}, nil
		}
	}
	if t.kind != tokEOF {
		p.i--
	}
	return node{}, p.unexpected("term or variable")
}

func (p *parser) modifiers(q *query) error {
	for {
		var dst *int
		if p.acceptWord("LIMIT") {
			dst = &q.limit
		} else if p.acceptWord("OFFSET") {
			dst = &q.offset
		} else if p.peek().kind == tokEOF {
			return nil
		} else {
			return p.unsupported()
		}

		var t = p.next()
		if t.kind != tokInteger {
			return graph.QueryErrorf("expected integer at offset %d", t.pos)
		}
		var n, err = strconv.Atoi(t.text)
		if err != nil || n < 0 {
			return graph.QueryErrorf("invalid integer %q at offset %d", t.text, t.pos)
		}
		*dst = n
	}
}

func (p *parser) expand(t token) (string, error) {
	var colon = strings.IndexByte(t.text, ':')
	var ns, ok = p.prefixes[t.text[:colon]]
	if !ok {
		return "", graph.QueryErrorf("undeclared prefix %q at offset %d", t.text[:colon], t.pos)
	}
	return ns + t.text[colon+1:], nil
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	var t = p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) isWord(w string) bool {
	var t = p.peek()
	return t.kind == tokWord && strings.EqualFold(t.text, w)
}

func (p *parser) acceptWord(w string) bool {
	if p.isWord(w) {
		p.i++
		return true
	}
	return false
}

func (p *parser) acceptPunct(s string) bool {
	if t := p.peek(); t.kind == tokPunct && t.text == s {
		p.i++
		return true
	}
	return false
}

func (p *parser) unexpected(expected string) error {
	var t = p.peek()
	if t.kind == tokEOF {
		return graph.QueryErrorf("expected %s, but the query ended", expected)
	}
	return graph.QueryErrorf("expected %s at offset %d, not %q", expected, t.pos, t.text)
}

func (p *parser) unsupported() error {
	var t = p.peek()
	return graph.QueryErrorf("unsupported query feature %q at offset %d", t.text, t.pos)
}

// patternVars returns the non-blank variables of |patterns| in order of
// first appearance.
func patternVars(patterns []pattern) []string {
	var seen = make(map[string]bool)
	var out = []string{}

	for _, pat := range patterns {
		for _, n := range [3]node{pat.s, pat.p, pat.o} {
			if n.variable == "" || strings.HasPrefix(n.variable, "_:") || seen[n.variable] {
				continue
			}
			seen[n.variable] = true
			out = append(out, n.variable)
		}
	}
	return out
}
