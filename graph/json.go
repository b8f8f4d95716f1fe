package graph

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/pkg/errors"
	"go.graphsync.dev/core/term"
)

// ResultsContentType is the Content-Type of WriteJSON output.
const ResultsContentType = "application/json"

type jsonResults struct {
	Head    jsonHead   `json:"head"`
	Results *jsonTable `json:"results,omitempty"`
	Boolean *bool      `json:"boolean,omitempty"`
}

type jsonHead struct {
	Vars []string `json:"vars,omitempty"`
}

type jsonTable struct {
	Bindings []map[string]jsonTerm `json:"bindings"`
}

type jsonTerm struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Lang     string `json:"xml:lang,omitempty"`
	Datatype string `json:"datatype,omitempty"`
}

// WriteJSON writes Results to |w| in the SPARQL 1.1 Query Results JSON format.
func WriteJSON(w io.Writer, r *Results) error {
	var out jsonResults

	if r.Boolean != nil {
		out.Boolean = r.Boolean
	} else {
		out.Head.Vars = r.Vars
		if out.Head.Vars == nil {
			out.Head.Vars = []string{}
		}
		out.Results = &jsonTable{Bindings: make([]map[string]jsonTerm, 0, len(r.Solutions))}

		for _, sol := range r.Solutions {
			var row = make(map[string]jsonTerm, len(sol))
			for v, t := range sol {
				row[v] = encodeTerm(t)
			}
			out.Results.Bindings = append(out.Results.Bindings, row)
		}
	}
	return errors.WithMessage(json.NewEncoder(w).Encode(&out), "encoding results")
}

// ReadJSON reads Results in the SPARQL 1.1 Query Results JSON format.
func ReadJSON(r io.Reader) (*Results, error) {
	var in jsonResults
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, errors.Wrap(err, "decoding results")
	}
	if in.Boolean != nil {
		return &Results{Boolean: in.Boolean}, nil
	} else if in.Results == nil {
		return nil, errors.New("decoding results: neither boolean nor results are present")
	}

	var out = &Results{
		Vars:      in.Head.Vars,
		Solutions: make([]Solution, 0, len(in.Results.Bindings)),
	}
	for _, row := range in.Results.Bindings {
		var sol = make(Solution, len(row))
		for v, jt := range row {
			var t, err = decodeTerm(jt)
			if err != nil {
				return nil, errors.WithMessagef(err, "binding %q", v)
			}
			sol[v] = t
		}
		out.Solutions = append(out.Solutions, sol)
	}
	return out, nil
}

func encodeTerm(t term.Term) jsonTerm {
	switch t.Kind {
	case term.IRI:
		return jsonTerm{Type: "uri", Value: t.Value}
	case term.Blank:
		return jsonTerm{Type: "bnode", Value: strings.TrimPrefix(t.Value, "_:")}
	default:
		return jsonTerm{Type: "literal", Value: t.Value, Lang: t.Language, Datatype: t.Datatype}
	}
}

func decodeTerm(jt jsonTerm) (term.Term, error) {
	switch jt.Type {
	case "uri":
		return term.NewIRI(jt.Value), nil
	case "bnode":
		return term.NewBlank("_:" + jt.Value), nil
	case "literal", "typed-literal":
		return term.Term{Kind: term.Literal, Value: jt.Value, Language: jt.Lang, Datatype: jt.Datatype}, nil
	default:
		return term.Term{}, errors.Errorf("unknown term type %q", jt.Type)
	}
}
