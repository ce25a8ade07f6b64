// Package query parses the bibdex search grammar into an expression tree
// and renders it to SQLite FTS5 match syntax.
//
// Grammar:
//   - bare terms AND together: quantum computing
//   - explicit operators: AND, OR, NOT (NOT binds tightest, then AND, then OR)
//   - parentheses override precedence
//   - field qualifiers: author:feynman, title:"least action"
//   - quoted phrases match contiguously: "least action"
//   - trailing * matches by prefix: quan*
//   - NEAR and NEAR/N match terms within N tokens: action NEAR/5 principle
//
// The tree keeps the user grammar decoupled from FTS5 syntax, so the storage
// engine can change without touching the parser.
package query

// Expr is a node in the parsed query tree.
type Expr interface {
	isExpr()
}

// Term is a single token, phrase, or prefix match, optionally restricted
// to one searchable column.
type Term struct {
	// Field restricts the match to one column. Empty means all columns.
	Field string
	// Text is the raw term or phrase text.
	Text string
	// Phrase marks a quoted span that must match contiguously.
	Phrase bool
	// Prefix marks a trailing-wildcard match.
	Prefix bool
}

// And requires both operands to match.
type And struct {
	Left, Right Expr
}

// Or requires either operand to match.
type Or struct {
	Left, Right Expr
}

// Not excludes matches of its operand. Renderable only as the right-hand
// side of an AND, since FTS5 NOT is set difference.
type Not struct {
	X Expr
}

// Near matches its terms within Dist tokens of each other, unordered.
type Near struct {
	Terms []*Term
	// Dist is the maximum token distance. Zero means the engine default.
	Dist int
}

func (*Term) isExpr() {}
func (*And) isExpr()  {}
func (*Or) isExpr()   {}
func (*Not) isExpr()  {}
func (*Near) isExpr() {}
