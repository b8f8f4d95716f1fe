// Package term implements the textual encoding of RDF terms used by the
// relational triple table and by change notifications. An encoded term is
// one of:
//
//	<http://example.com/iri>   an IRI
//	_:b0                       a blank node
//	"a literal"                a literal
//
// The encoding is decided by its first byte alone.
package term

import (
	"strings"

	"github.com/pkg/errors"
)

// Kind of a Term.
type Kind int

const (
	// IRI is an IRI reference.
	IRI Kind = iota + 1
	// Blank is a blank node.
	Blank
	// Literal is a literal value.
	Literal
)

func (k Kind) String() string {
	switch k {
	case IRI:
		return "iri"
	case Blank:
		return "blank"
	case Literal:
		return "literal"
	default:
		return "invalid"
	}
}

// Term is a tagged RDF term. Terms are comparable and may be used as map keys.
type Term struct {
	Kind Kind
	// Value is the IRI (without angle brackets), the blank node label
	// (including its "_:" prefix), or the value of a literal. Literals built
	// with NewLiteral hold their lexical form, while parsed literals hold
	// their complete textual encoding.
	Value string
	// Datatype IRI of a Literal. Empty if absent.
	Datatype string
	// Language tag of a Literal. Empty if absent.
	Language string
}

// ErrMalformed is the cause of all Parse failures.
var ErrMalformed = errors.New("malformed term")

// NewIRI returns an IRI Term.
func NewIRI(iri string) Term { return Term{Kind: IRI, Value: iri} }

// NewBlank returns a blank node Term of the label, which should include "_:".
func NewBlank(label string) Term { return Term{Kind: Blank, Value: label} }

// NewLiteral returns a plain Literal Term.
func NewLiteral(value string) Term { return Term{Kind: Literal, Value: value} }

// Parse the textual encoding |text| into a Term. Parse fails with an error
// wrapping ErrMalformed if |text| is empty, or if its first byte is not one
// of '<', '_', or '"'.
//
// All '<' and '>' bytes of an IRI are removed, not just the enclosing pair.
// The Value of a parsed Literal is the complete |text|, quotes and any
// "@lang" or "^^<datatype>" suffix included, and its Datatype and Language
// are left empty.
func Parse(text string) (Term, error) {
	if len(text) == 0 {
		return Term{}, errors.WithMessage(ErrMalformed, "empty term")
	}
	switch text[0] {
	case '<':
		return Term{Kind: IRI, Value: stripAngles.Replace(text)}, nil
	case '_':
		return Term{Kind: Blank, Value: text}, nil
	case '"':
		return Term{Kind: Literal, Value: text}, nil
	default:
		return Term{}, errors.WithMessagef(ErrMalformed, "unexpected leading %q of %q", text[0], text)
	}
}

// String returns the textual encoding of the Term.
func (t Term) String() string {
	switch t.Kind {
	case IRI:
		return "<" + t.Value + ">"
	case Blank:
		return t.Value
	case Literal:
		var s = `"` + escapeLiteral.Replace(t.Value) + `"`
		if t.Language != "" {
			s += "@" + t.Language
		} else if t.Datatype != "" {
			s += "^^<" + t.Datatype + ">"
		}
		return s
	default:
		return ""
	}
}

// IsZero returns true if the Term is the zero value.
func (t Term) IsZero() bool { return t == Term{} }

var (
	stripAngles   = strings.NewReplacer("<", "", ">", "")
	escapeLiteral = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
)
