package domain

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"strings"

	m "faultline.dev/pkg/faultline/internal/model"
)

// NormalizeExpr parses expr as a Go expression and prints it in canonical form.
// Two predicates are duplicates when their normalized texts are equal.
func NormalizeExpr(expr string) (string, error) {
	node, err := parser.ParseExpr(strings.TrimSpace(expr))
	if err != nil {
		return "", fmt.Errorf("%w: predicate %q: %v", m.ErrMalformedInput, expr, err)
	}

	return printExpr(stripParens(node))
}

// Complement returns the logical complement of a normalized expression. The
// complement of "!(e)" is e itself.
func Complement(normalized string) string {
	if node, err := parser.ParseExpr(normalized); err == nil {
		if unary, ok := node.(*ast.UnaryExpr); ok && unary.Op == token.NOT {
			if inner, err := printExpr(stripParens(unary.X)); err == nil {
				return inner
			}
		}
	}

	return "!(" + normalized + ")"
}

func stripParens(expr ast.Expr) ast.Expr {
	for {
		paren, ok := expr.(*ast.ParenExpr)
		if !ok {
			return expr
		}

		expr = paren.X
	}
}

func printExpr(expr ast.Expr) (string, error) {
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, token.NewFileSet(), expr); err != nil {
		return "", fmt.Errorf("%w: print expression: %v", m.ErrMalformedInput, err)
	}

	out := buf.String()
	if strings.ContainsAny(out, "\n\t") {
		return "", fmt.Errorf("%w: predicate %q spans lines", m.ErrMalformedInput, out)
	}

	return out, nil
}
