package term

import "github.com/pkg/errors"

// Triple is a (subject, predicate, object) fact.
type Triple struct {
	Subject, Predicate, Object Term
}

// ParseTriple parses the textual encodings of a subject, predicate, and
// object. A returned error names the failed position.
func ParseTriple(s, p, o string) (Triple, error) {
	var t Triple
	var err error

	if t.Subject, err = Parse(s); err != nil {
		return Triple{}, errors.WithMessage(err, "subject")
	} else if t.Predicate, err = Parse(p); err != nil {
		return Triple{}, errors.WithMessage(err, "predicate")
	} else if t.Object, err = Parse(o); err != nil {
		return Triple{}, errors.WithMessage(err, "object")
	}
	return t, nil
}

// String returns the Triple as an N-Triples statement.
func (t Triple) String() string {
	return t.Subject.String() + " " + t.Predicate.String() + " " + t.Object.String() + " ."
}
