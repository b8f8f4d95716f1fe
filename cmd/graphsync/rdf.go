package main

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/knakk/rdf"
	"github.com/pkg/errors"
	"go.graphsync.dev/core/term"
)

const xsdString = "http://www.w3.org/2001/XMLSchema#string"

// rdfFormat returns the rdf.Format named by |name|, or inferred from the
// extension of |path| if |name| is empty.
func rdfFormat(name, path string) (rdf.Format, error) {
	if name == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".ttl":
			name = "turtle"
		case ".nt":
			name = "ntriples"
		case ".rdf", ".owl", ".xml":
			name = "rdfxml"
		default:
			return 0, errors.Errorf("cannot infer the RDF format of %q", path)
		}
	}
	switch name {
	case "turtle":
		return rdf.Turtle, nil
	case "ntriples":
		return rdf.NTriples, nil
	case "rdfxml":
		return rdf.RDFXML, nil
	default:
		return 0, errors.Errorf("unknown RDF format %q", name)
	}
}

// decodeRDF decodes all triples of |r| in format |f|.
func decodeRDF(r io.Reader, f rdf.Format) ([]term.Triple, error) {
	var dec = rdf.NewTripleDecoder(r, f)
	var out []term.Triple

	for {
		var t, err = dec.Decode()
		if err == io.EOF {
			return out, nil
		} else if err != nil {
			return nil, errors.WithMessagef(err, "decoding triple %d", len(out)+1)
		}
		out = append(out, term.Triple{
			Subject:   fromRDF(t.Subj),
			Predicate: fromRDF(t.Pred),
			Object:    fromRDF(t.Obj),
		})
	}
}

func fromRDF(t rdf.Term) term.Term {
	switch v := t.(type) {
	case rdf.IRI:
		return term.NewIRI(v.String())
	case rdf.Blank:
		var label = v.String()
		if !strings.HasPrefix(label, "_:") {
			label = "_:" + label
		}
		return term.NewBlank(label)
	case rdf.Literal:
		var out = term.NewLiteral(v.String())
		if out.Language = v.Lang(); out.Language == "" {
			if dt := v.DataType.String(); dt != xsdString {
				out.Datatype = dt
			}
		}
		return out
	default:
		return term.NewLiteral(t.String())
	}
}
