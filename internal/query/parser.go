package query

import (
	"strings"

	bterrors "github.com/bibdex/bibdex/internal/errors"
	"github.com/bibdex/bibdex/internal/store"
)

// Parse parses a user query string into an expression tree.
// Returns QueryEmptyError for blank input and QuerySyntaxError (with the
// offending substring and position) for malformed input.
func Parse(input string) (Expr, error) {
	if strings.TrimSpace(input) == "" {
		return nil, bterrors.QueryEmpty()
	}

	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		if tok.kind == tokRParen {
			return nil, bterrors.QuerySyntax("unbalanced closing parenthesis", ")", tok.pos)
		}
		return nil, bterrors.QuerySyntax("unexpected token", tok.text, tok.pos)
	}
	return expr, nil
}

// Translate parses a user query and renders it to FTS5 match syntax.
func Translate(input string) (string, error) {
	expr, err := Parse(input)
	if err != nil {
		return "", err
	}
	return Render(expr)
}

type parser struct {
	tokens []token
	i      int
}

func (p *parser) peek() token {
	return p.tokens[p.i]
}

func (p *parser) next() token {
	tok := p.tokens[p.i]
	if tok.kind != tokEOF {
		p.i++
	}
	return tok
}

// parseOr handles the lowest-precedence operator.
func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Or{Left: left, Right: right}
	}
	return left, nil
}

// parseAnd handles explicit AND plus implicit AND between adjacent terms.
func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind == tokAnd {
			p.next()
		} else if !startsOperand(tok.kind) {
			return left, nil
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &And{Left: left, Right: right}
	}
}

// startsOperand reports whether a token can begin a primary expression,
// which makes adjacency an implicit AND.
func startsOperand(k tokenKind) bool {
	switch k {
	case tokTerm, tokPhrase, tokLParen, tokNot:
		return true
	}
	return false
}

// parseNot handles the tightest-binding boolean operator.
func (p *parser) parseNot() (Expr, error) {
	if p.peek().kind == tokNot {
		tok := p.next()
		if !startsOperand(p.peek().kind) {
			return nil, bterrors.QuerySyntax("NOT needs an operand", tok.text, tok.pos)
		}
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		if n, ok := inner.(*Not); ok {
			// Double negation cancels
			return n.X, nil
		}
		return &Not{X: inner}, nil
	}
	return p.parseNear()
}

// parseNear handles NEAR chains between terms.
func (p *parser) parseNear() (Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokNear {
		return left, nil
	}

	first, ok := left.(*Term)
	if !ok || first.Field != "" {
		tok := p.peek()
		return nil, bterrors.QuerySyntax(
			"NEAR operands must be plain terms or phrases", tok.text, tok.pos)
	}

	near := &Near{Terms: []*Term{first}}
	for p.peek().kind == tokNear {
		tok := p.next()
		if tok.dist > 0 && (near.Dist == 0 || tok.dist < near.Dist) {
			// Tightest requested distance wins across a chain
			near.Dist = tok.dist
		}
		operand, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		if operand.Field != "" {
			return nil, bterrors.QuerySyntax(
				"NEAR operands must be plain terms or phrases", operand.Field+":"+operand.Text, tok.pos)
		}
		near.Terms = append(near.Terms, operand)
	}
	return near, nil
}

// parsePrimary handles parenthesized groups and terms.
func (p *parser) parsePrimary() (Expr, error) {
	tok := p.peek()
	if tok.kind == tokLParen {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, bterrors.QuerySyntax("unbalanced opening parenthesis", "(", tok.pos)
		}
		p.next()
		return inner, nil
	}
	return p.parseTerm()
}

// parseTerm handles bare terms, phrases, and field-qualified values.
func (p *parser) parseTerm() (*Term, error) {
	tok := p.next()
	switch tok.kind {
	case tokPhrase:
		return phraseTerm("", tok)
	case tokTerm:
		// field:value qualifier
		if p.peek().kind == tokColon {
			colon := p.next()
			field := strings.ToLower(tok.text)
			if !isFieldName(tok.text) || !store.IsSearchField(field) {
				return nil, bterrors.QuerySyntax(
					"unknown field qualifier "+tok.text,
					tok.text+":", tok.pos).
					WithDetail("valid_fields", strings.Join(store.SearchFields(), ", "))
			}
			val := p.next()
			switch val.kind {
			case tokPhrase:
				return phraseTerm(field, val)
			case tokTerm:
				return wordTerm(field, val)
			default:
				return nil, bterrors.QuerySyntax(
					"field qualifier needs a value", tok.text+":", colon.pos)
			}
		}
		return wordTerm("", tok)
	case tokEOF:
		return nil, bterrors.QuerySyntax("unexpected end of query", "", tok.pos)
	default:
		return nil, bterrors.QuerySyntax("unexpected token", tok.text, tok.pos)
	}
}

// wordTerm builds a Term from a bare word, handling the trailing wildcard.
func wordTerm(field string, tok token) (*Term, error) {
	if err := validateTerm(tok.text, tok.pos); err != nil {
		return nil, err
	}
	text := tok.text
	prefix := false
	if strings.HasSuffix(text, "*") {
		text = text[:len(text)-1]
		prefix = true
	}
	return &Term{Field: field, Text: text, Prefix: prefix}, nil
}

// phraseTerm builds a Term from a quoted phrase, handling the trailing
// wildcard the lexer folded into the text.
func phraseTerm(field string, tok token) (*Term, error) {
	text := tok.text
	prefix := false
	if strings.HasSuffix(text, "*") {
		text = text[:len(text)-1]
		prefix = true
	}
	if strings.TrimSpace(text) == "" {
		return nil, bterrors.QuerySyntax("empty phrase", `""`, tok.pos)
	}
	return &Term{Field: field, Text: text, Phrase: true, Prefix: prefix}, nil
}
