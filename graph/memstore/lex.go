package memstore

import (
	"strings"

	"go.graphsync.dev/core/graph"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIRI
	tokPName
	tokVar
	tokBlank
	tokString
	tokLang
	tokCarets
	tokInteger
	tokDecimal
	tokWord
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// lex splits |text| into tokens. It recognizes the subset of SPARQL lexical
// forms which the parser understands, and fails on anything else.
func lex(text string) ([]token, error) {
	var out []token
	var i = 0

	for i < len(text) {
		var c = text[i]

		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '#':
			for i < len(text) && text[i] != '\n' {
				i++
			}

		case c == '<':
			var end = strings.IndexByte(text[i:], '>')
			if end == -1 {
				return nil, graph.QueryErrorf("unterminated IRI at offset %d", i)
			}
			out = append(out, token{tokIRI, text[i+1 : i+end], i})
			i += end + 1

		case c == '?' || c == '$':
			var j = scanWhile(text, i+1, isNameByte)
			if j == i+1 {
				return nil, graph.QueryErrorf("empty variable name at offset %d", i)
			}
			out = append(out, token{tokVar, text[i+1 : j], i})
			i = j

		case c == '"' || c == '\'':
			var s, j, err = scanString(text, i)
			if err != nil {
				return nil, err
			}
			out = append(out, token{tokString, s, i})
			i = j

		case c == '@':
			var j = scanWhile(text, i+1, func(b byte) bool { return isAlnum(b) || b == '-' })
			if j == i+1 {
				return nil, graph.QueryErrorf("empty language tag at offset %d", i)
			}
			out = append(out, token{tokLang, text[i+1 : j], i})
			i = j

		case c == '^':
			if i+1 == len(text) || text[i+1] != '^' {
				return nil, graph.QueryErrorf("unexpected '^' at offset %d", i)
			}
			out = append(out, token{tokCarets, "^^", i})
			i += 2

		case c == '_' && i+1 < len(text) && text[i+1] == ':':
			var j = scanWhile(text, i+2, isNameByte)
			if j == i+2 {
				return nil, graph.QueryErrorf("empty blank node label at offset %d", i)
			}
			out = append(out, token{tokBlank, text[i:j], i})
			i = j

		case isDigit(c) || ((c == '+' || c == '-') && i+1 < len(text) && isDigit(text[i+1])):
			var j = scanWhile(text, i+1, isDigit)
			var kind = tokInteger
			if j+1 < len(text) && text[j] == '.' && isDigit(text[j+1]) {
				j = scanWhile(text, j+1, isDigit)
				kind = tokDecimal
			}
			out = append(out, token{kind, text[i:j], i})
			i = j

		case strings.IndexByte("{}.;,*()", c) != -1:
			out = append(out, token{tokPunct, text[i : i+1], i})
			i++

		case isNameByte(c) || c == ':':
			var j = scanWhile(text, i, func(b byte) bool { return isNameByte(b) || b == ':' || b == '.' })
			// A trailing '.' terminates a triple rather than continuing a name.
			for text[j-1] == '.' {
				j--
			}
			var word = text[i:j]
			if strings.IndexByte(word, ':') != -1 {
				out = append(out, token{tokPName, word, i})
			} else {
				out = append(out, token{tokWord, word, i})
			}
			i = j

		default:
			return nil, graph.QueryErrorf("unexpected %q at offset %d", c, i)
		}
	}
	return append(out, token{tokEOF, "", len(text)}), nil
}

// scanString scans a quoted string beginning at |text[i]|, returning its
// unescaped content and the offset following the closing quote.
func scanString(text string, i int) (string, int, error) {
	var quote = text[i]
	var b strings.Builder

	for j := i + 1; j < len(text); j++ {
		var c = text[j]

		if c == quote {
			return b.String(), j + 1, nil
		} else if c == '\n' || c == '\r' {
			break
		} else if c != '\\' {
			b.WriteByte(c)
			continue
		} else if j+1 == len(text) {
			break
		}
		j++
		switch text[j] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case '"', '\'', '\\':
			b.WriteByte(text[j])
		default:
			return "", 0, graph.QueryErrorf("unknown escape '\\%c' at offset %d", text[j], j-1)
		}
	}
	return "", 0, graph.QueryErrorf("unterminated string at offset %d", i)
}

func scanWhile(text string, i int, fn func(byte) bool) int {
	for i < len(text) && fn(text[i]) {
		i++
	}
	return i
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isAlnum(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
func isNameByte(b byte) bool { return isAlnum(b) || b == '_' || b == '-' || b >= 0x80 }
