package query

import (
	"fmt"
	"strings"

	bterrors "github.com/bibdex/bibdex/internal/errors"
)

// Render translates an expression tree into FTS5 match syntax.
//
// FTS5's NOT is a binary set-difference operator, so Not nodes are only
// renderable as conjuncts of an And: a AND NOT b becomes (a NOT b). A
// negation with no positive sibling has no FTS5 equivalent and is rejected.
func Render(e Expr) (string, error) {
	var sb strings.Builder
	if err := render(e, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func render(e Expr, sb *strings.Builder) error {
	switch v := e.(type) {
	case *Term:
		sb.WriteString(renderTerm(v))
		return nil

	case *Near:
		renderNear(v, sb)
		return nil

	case *Or:
		if containsBareNot(v.Left) || containsBareNot(v.Right) {
			return bterrors.QuerySyntax(
				"NOT cannot be an operand of OR; combine it with AND", "NOT", 0)
		}
		if err := renderChild(v.Left, sb); err != nil {
			return err
		}
		sb.WriteString(" OR ")
		return renderChild(v.Right, sb)

	case *And:
		return renderAnd(v, sb)

	case *Not:
		return bterrors.QuerySyntax(
			"NOT must follow a positive expression", "NOT", 0)

	default:
		return bterrors.InternalError(fmt.Sprintf("unknown query node %T", e), nil)
	}
}

// renderAnd flattens an AND chain, emits the positive conjuncts joined by
// AND, then applies each negated conjunct with FTS5's binary NOT.
func renderAnd(a *And, sb *strings.Builder) error {
	var positive, negative []Expr
	for _, op := range flattenAnd(a) {
		if n, ok := op.(*Not); ok {
			negative = append(negative, n.X)
		} else {
			positive = append(positive, op)
		}
	}

	if len(positive) == 0 {
		return bterrors.QuerySyntax(
			"NOT must follow a positive expression", "NOT", 0)
	}

	// ((p1 AND p2) NOT n1) NOT n2 with explicit parens; FTS5 precedence
	// differs from ours.
	for i := 0; i < len(negative); i++ {
		sb.WriteString("(")
	}
	if len(positive) > 1 {
		sb.WriteString("(")
	}
	for i, op := range positive {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		if err := renderChild(op, sb); err != nil {
			return err
		}
	}
	if len(positive) > 1 {
		sb.WriteString(")")
	}
	for _, op := range negative {
		sb.WriteString(" NOT ")
		if err := renderChild(op, sb); err != nil {
			return err
		}
		sb.WriteString(")")
	}
	return nil
}

// flattenAnd collects the operands of a left-leaning AND chain.
func flattenAnd(e Expr) []Expr {
	if a, ok := e.(*And); ok {
		return append(flattenAnd(a.Left), flattenAnd(a.Right)...)
	}
	return []Expr{e}
}

// containsBareNot reports whether the node is a Not, looking through
// nothing: And children handle their own negations.
func containsBareNot(e Expr) bool {
	_, ok := e.(*Not)
	return ok
}

// renderChild renders a subexpression, parenthesizing composites.
// And output is already parenthesized by renderAnd.
func renderChild(e Expr, sb *strings.Builder) error {
	switch e.(type) {
	case *Or, *Not:
		sb.WriteString("(")
		if err := render(e, sb); err != nil {
			return err
		}
		sb.WriteString(")")
		return nil
	default:
		return render(e, sb)
	}
}

// renderTerm renders one term as an FTS5 string, with optional column
// filter and prefix star.
func renderTerm(t *Term) string {
	var sb strings.Builder
	if t.Field != "" {
		sb.WriteString(t.Field)
		sb.WriteString(":")
	}
	sb.WriteString(quote(t.Text))
	if t.Prefix {
		sb.WriteString("*")
	}
	return sb.String()
}

// renderNear renders a NEAR group: NEAR("a" "b", 5).
func renderNear(n *Near, sb *strings.Builder) {
	sb.WriteString("NEAR(")
	for i, t := range n.Terms {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(quote(t.Text))
		if t.Prefix {
			sb.WriteString("*")
		}
	}
	if n.Dist > 0 {
		fmt.Fprintf(sb, ", %d", n.Dist)
	}
	sb.WriteString(")")
}

// quote wraps text as an FTS5 string literal, doubling embedded quotes.
func quote(text string) string {
	return `"` + strings.ReplaceAll(text, `"`, `""`) + `"`
}
