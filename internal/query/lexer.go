package query

import (
	"strconv"
	"strings"
	"unicode"

	bterrors "github.com/bibdex/bibdex/internal/errors"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokTerm
	tokPhrase
	tokLParen
	tokRParen
	tokColon
	tokAnd
	tokOr
	tokNot
	tokNear
)

type token struct {
	kind tokenKind
	text string // term/phrase content, or raw operator text
	dist int    // NEAR distance, 0 when unspecified
	pos  int    // byte offset in the input
}

// lex splits the query string into tokens, tracking byte positions for
// error reporting.
func lex(input string) ([]token, error) {
	var tokens []token
	i := 0
	n := len(input)

	for i < n {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == ':':
			tokens = append(tokens, token{kind: tokColon, text: ":", pos: i})
			i++
		case c == '"':
			start := i
			i++
			var phrase strings.Builder
			closed := false
			for i < n {
				if input[i] == '"' {
					// A doubled quote inside the span is a literal quote
					if i+1 < n && input[i+1] == '"' {
						phrase.WriteByte('"')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				phrase.WriteByte(input[i])
				i++
			}
			if !closed {
				return nil, bterrors.QuerySyntax("unbalanced quote", input[start:], start)
			}
			tokens = append(tokens, token{kind: tokPhrase, text: phrase.String(), pos: start})
			// A * directly after the closing quote makes it a prefix phrase
			if i < n && input[i] == '*' {
				tokens[len(tokens)-1].text += "*"
				i++
			}
		default:
			start := i
			for i < n && !isTermBoundary(input[i]) {
				i++
			}
			word := input[start:i]
			tokens = append(tokens, classifyWord(word, start))
		}
	}

	tokens = append(tokens, token{kind: tokEOF, pos: n})
	return tokens, nil
}

// isTermBoundary reports whether the byte ends a bare term.
func isTermBoundary(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '(', ')', ':', '"':
		return true
	}
	return false
}

// classifyWord turns a bare word into an operator or term token.
// Operators are recognized case-insensitively; NEAR accepts an optional
// /N distance suffix.
func classifyWord(word string, pos int) token {
	upper := strings.ToUpper(word)
	switch upper {
	case "AND":
		return token{kind: tokAnd, text: word, pos: pos}
	case "OR":
		return token{kind: tokOr, text: word, pos: pos}
	case "NOT":
		return token{kind: tokNot, text: word, pos: pos}
	case "NEAR":
		return token{kind: tokNear, text: word, pos: pos}
	}
	if rest, ok := strings.CutPrefix(upper, "NEAR/"); ok {
		if dist, err := strconv.Atoi(rest); err == nil && dist > 0 {
			return token{kind: tokNear, text: word, dist: dist, pos: pos}
		}
	}
	return token{kind: tokTerm, text: word, pos: pos}
}

// validateTerm checks wildcard placement in a bare term.
// Only a single trailing * is supported; FTS5 cannot express infix wildcards.
func validateTerm(text string, pos int) error {
	if idx := strings.IndexByte(text, '*'); idx >= 0 && idx != len(text)-1 {
		return bterrors.QuerySyntax("wildcard * is only supported at the end of a term", text, pos)
	}
	if text == "*" {
		return bterrors.QuerySyntax("wildcard * needs a preceding prefix", text, pos)
	}
	return nil
}

// isFieldName reports whether a word is shaped like a field qualifier.
func isFieldName(text string) bool {
	for _, r := range text {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return len(text) > 0
}
