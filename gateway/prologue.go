package gateway

import (
	"strings"

	"github.com/pkg/errors"
)

// Prefix is a namespace declaration of a query prologue.
type Prefix struct {
	Name string
	IRI  string
}

// DefaultPrefixes are declared by the prologue of every query.
var DefaultPrefixes = []Prefix{
	{"brick", "https://brickschema.org/schema/Brick#"},
	{"tag", "https://brickschema.org/schema/BrickTag#"},
	{"rdf", "http://www.w3.org/1999/02/22-rdf-syntax-ns#"},
	{"rdfs", "http://www.w3.org/2000/01/rdf-schema#"},
	{"owl", "http://www.w3.org/2002/07/owl#"},
	{"qudt", "http://qudt.org/schema/qudt/"},
}

// ParsePrefixes parses declarations of the form "name=iri".
func ParsePrefixes(decls []string) ([]Prefix, error) {
	var out []Prefix
	for _, d := range decls {
		var eq = strings.IndexByte(d, '=')
		if eq <= 0 || eq == len(d)-1 {
			return nil, errors.Errorf("invalid prefix %q (expected name=iri)", d)
		}
		var p = Prefix{Name: d[:eq], IRI: d[eq+1:]}

		if strings.ContainsAny(p.Name, ": \t<>") || strings.ContainsAny(p.IRI, " \t<>") {
			return nil, errors.Errorf("invalid prefix %q", d)
		}
		out = append(out, p)
	}
	return out, nil
}

// Prologue returns PREFIX declarations of DefaultPrefixes followed by |extra|.
// An |extra| Prefix of the same name as a default replaces it.
func Prologue(extra []Prefix) string {
	var b strings.Builder
	var overridden = make(map[string]bool)

	for _, p := range extra {
		overridden[p.Name] = true
	}
	for _, p := range DefaultPrefixes {
		if !overridden[p.Name] {
			writePrefix(&b, p)
		}
	}
	for _, p := range extra {
		writePrefix(&b, p)
	}
	return b.String()
}

func writePrefix(b *strings.Builder, p Prefix) {
	b.WriteString("PREFIX ")
	b.WriteString(p.Name)
	b.WriteString(": <")
	b.WriteString(p.IRI)
	b.WriteString(">\n")
}
