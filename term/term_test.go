package term

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestParseCases(t *testing.T) {
	for _, tc := range []struct {
		in  string
		out Term
	}{
		{"<http://x>", NewIRI("http://x")},
		{"<http://ex<ample>.com/a>", NewIRI("http://example.com/a")},
		{"<>", NewIRI("")},
		{"_:b0", NewBlank("_:b0")},
		{"_foo", NewBlank("_foo")},
		{`"42"`, NewLiteral(`"42"`)},
		{`""`, NewLiteral(`""`)},
	} {
		var term, err = Parse(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.out, term, tc.in)
	}
}

// Parsed literals keep their complete encoding as their value, and record no
// datatype or language. Query results expose this value verbatim, as clients
// of the existing service expect.
func TestParseLiteralsVerbatim(t *testing.T) {
	for _, in := range []string{
		`"42"`,
		`"hello"@en`,
		`"1"^^<http://www.w3.org/2001/XMLSchema#integer>`,
		`"say \"hi\"\n"`,
		`"unterminated`,
	} {
		var term, err = Parse(in)
		require.NoError(t, err, in)
		require.Equal(t, Term{Kind: Literal, Value: in}, term, in)
	}
}

func TestParseMalformed(t *testing.T) {
	for _, in := range []string{"", "http://x", "42", " <http://x>", "?x", ">"} {
		var _, err = Parse(in)
		require.Error(t, err, in)
		require.True(t, errors.Is(err, ErrMalformed), in)
	}
}

func TestIRIStrippingIsIdempotent(t *testing.T) {
	var first, err = Parse("<<http://x>>")
	require.NoError(t, err)
	require.Equal(t, "http://x", first.Value)

	second, err := Parse(first.String())
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestStringEncoding(t *testing.T) {
	require.Equal(t, "<urn:ex:1>", NewIRI("urn:ex:1").String())
	require.Equal(t, "_:b1", NewBlank("_:b1").String())
	require.Equal(t, `"a \"b\""`, NewLiteral(`a "b"`).String())
	require.Equal(t, `"chat"@fr`, Term{Kind: Literal, Value: "chat", Language: "fr"}.String())
	require.Equal(t, `"1"^^<urn:int>`, Term{Kind: Literal, Value: "1", Datatype: "urn:int"}.String())

	// A literal's encoding becomes the value of its parsed Term.
	var lit = Term{Kind: Literal, Value: "line\none\t\"q\"", Language: "en"}
	var out, err = Parse(lit.String())
	require.NoError(t, err)
	require.Equal(t, NewLiteral(`"line\none\t\"q\""@en`), out)
}

func TestParseTriple(t *testing.T) {
	var tr, err = ParseTriple("<urn:ex:1>", "<urn:ex:has>", `"42"`)
	require.NoError(t, err)
	require.Equal(t, Triple{NewIRI("urn:ex:1"), NewIRI("urn:ex:has"), NewLiteral(`"42"`)}, tr)
	require.Equal(t, `<urn:ex:1> <urn:ex:has> "42" .`,
		Triple{NewIRI("urn:ex:1"), NewIRI("urn:ex:has"), NewLiteral("42")}.String())

	_, err = ParseTriple("<urn:ex:1>", "has", `"42"`)
	require.EqualError(t, err, `predicate: unexpected leading 'h' of "has": malformed term`)
	require.True(t, errors.Is(err, ErrMalformed))

	_, err = ParseTriple("<urn:ex:1>", "<urn:ex:has>", "")
	require.EqualError(t, err, "object: empty term: malformed term")
}
