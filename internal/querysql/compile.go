// Package querysql compiles queryir queries to parameterised SQLite.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/assetq/internal/queryir"
	"github.com/roach88/assetq/internal/schema"
)

// SQLCompiler compiles QueryIR to parameterized SQL for SQLite.
//
// All values are parameterized, never interpolated. All identifiers are
// quoted. Every select has an ORDER BY so results are deterministic.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a query to parameterized SQL.
// Returns (sql, params, error). Invalid queries are rejected before any SQL
// is produced.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if res := queryir.Validate(q); !res.Valid {
		return "", nil, fmt.Errorf("invalid query: %s", strings.Join(res.Problems, "; "))
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	var b strings.Builder
	var params []any

	b.WriteString("SELECT ")
	b.WriteString(quoteAll(q.Columns))
	b.WriteString(" FROM ")
	b.WriteString(schema.QuoteIdent(q.From))

	if q.Filter != nil {
		where, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
		params = append(params, filterParams...)
	}

	b.WriteString(" ORDER BY ")
	b.WriteString(stableOrderKey(q))

	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}

	return b.String(), params, nil
}

// stableOrderKey returns the ORDER BY clause body. Without explicit columns
// rows come back in insertion order.
func stableOrderKey(q queryir.Select) string {
	if len(q.OrderBy) == 0 {
		return "rowid ASC"
	}
	parts := make([]string, len(q.OrderBy))
	for i, col := range q.OrderBy {
		parts[i] = schema.QuoteIdent(col) + " ASC COLLATE BINARY"
	}
	return strings.Join(parts, ", ")
}

// compilePredicate compiles a predicate to a WHERE fragment.
// Values are NEVER interpolated - always ? placeholders.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case queryir.Equals:
		return compileEquals(pred)
	case *queryir.Equals:
		return compileEquals(*pred)
	case queryir.Like:
		return compileLike(pred)
	case *queryir.Like:
		return compileLike(*pred)
	case queryir.And:
		return c.compileJunction(pred.Predicates, " AND ", "1 = 1")
	case *queryir.And:
		return c.compileJunction(pred.Predicates, " AND ", "1 = 1")
	case queryir.Or:
		return c.compileJunction(pred.Predicates, " OR ", "1 = 0")
	case *queryir.Or:
		return c.compileJunction(pred.Predicates, " OR ", "1 = 0")
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileEquals(eq queryir.Equals) (string, []any, error) {
	return schema.QuoteIdent(eq.Field) + " = ?", []any{eq.Value}, nil
}

func compileLike(l queryir.Like) (string, []any, error) {
	field := schema.QuoteIdent(l.Field)
	if l.Fold {
		return "UPPER(" + field + ") LIKE UPPER(?)", []any{l.Pattern}, nil
	}
	return field + " LIKE ?", []any{l.Pattern}, nil
}

// compileJunction joins sub-predicates with sep. Nested junctions are
// parenthesised so precedence follows the tree, not SQL's AND-over-OR.
func (c *SQLCompiler) compileJunction(preds []queryir.Predicate, sep, empty string) (string, []any, error) {
	if len(preds) == 0 {
		return empty, nil, nil
	}

	parts := make([]string, 0, len(preds))
	var params []any
	for _, pred := range preds {
		sql, ps, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		if isJunction(pred) && len(preds) > 1 {
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return strings.Join(parts, sep), params, nil
}

func isJunction(p queryir.Predicate) bool {
	switch p.(type) {
	case queryir.And, *queryir.And, queryir.Or, *queryir.Or:
		return true
	}
	return false
}

func quoteAll(cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = schema.QuoteIdent(c)
	}
	return strings.Join(parts, ", ")
}
