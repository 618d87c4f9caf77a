package store

import (
	"strings"
	"unicode"

	"github.com/roach88/assetq/internal/errs"
)

// allowedLeads are the statement keywords Guard lets through.
var allowedLeads = map[string]bool{
	"SELECT": true,
	"WITH":   true,
	"VALUES": true,
}

// forbidden keywords are rejected anywhere outside literals and comments.
// A CTE can wrap a data-modifying statement, so checking the lead is not
// enough on its own. REPLACE is also a scalar function, so REPLACE INTO is
// caught through INTO.
var forbidden = map[string]bool{
	"INSERT":  true,
	"UPDATE":  true,
	"DELETE":  true,
	"INTO":    true,
	"DROP":    true,
	"CREATE":  true,
	"ALTER":   true,
	"ATTACH":  true,
	"DETACH":  true,
	"PRAGMA":  true,
	"VACUUM":  true,
	"REINDEX": true,
}

// Guard rejects SQL that is not a single read-only query.
//
// The scan skips string literals, quoted identifiers and comments, so
// keywords and semicolons inside them are ignored. A trailing semicolon
// followed only by whitespace or comments is accepted.
func Guard(query string) error {
	words, statements := scanSQL(query)
	if len(words) == 0 {
		return errs.New(errs.KindSQL, "store.guard", "empty SQL")
	}
	if statements > 1 {
		return errs.New(errs.KindSQL, "store.guard", "multiple statements are not allowed")
	}
	if !allowedLeads[words[0]] {
		return errs.New(errs.KindSQL, "store.guard", "only SELECT queries are allowed, got "+words[0])
	}
	for _, w := range words[1:] {
		if forbidden[w] {
			return errs.New(errs.KindSQL, "store.guard", "statement contains forbidden keyword "+w)
		}
	}
	return nil
}

// scanSQL returns the upper-cased bare words of query in order and the
// number of non-empty statements separated by semicolons.
func scanSQL(query string) ([]string, int) {
	var (
		words      []string
		statements int
		pending    bool // current statement has content
	)
	rs := []rune(query)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case r == '\'' || r == '"' || r == '`':
			pending = true
			i = skipQuoted(rs, i, r)
		case r == '[':
			pending = true
			i = skipQuoted(rs, i, ']')
		case r == '-' && i+1 < len(rs) && rs[i+1] == '-':
			for i < len(rs) && rs[i] != '\n' {
				i++
			}
		case r == '/' && i+1 < len(rs) && rs[i+1] == '*':
			i += 2
			for i+1 < len(rs) && !(rs[i] == '*' && rs[i+1] == '/') {
				i++
			}
			i += 2
		case r == ';':
			if pending {
				statements++
				pending = false
			}
			i++
		case isIdentStart(r):
			j := i
			for j < len(rs) && isIdentPart(rs[j]) {
				j++
			}
			words = append(words, strings.ToUpper(string(rs[i:j])))
			pending = true
			i = j
		case unicode.IsSpace(r):
			i++
		default:
			pending = true
			i++
		}
	}
	if pending {
		statements++
	}
	return words, statements
}

// skipQuoted advances past a quoted run starting at rs[i]. A doubled closing
// quote is an escaped quote.
func skipQuoted(rs []rune, i int, closing rune) int {
	i++
	for i < len(rs) {
		if rs[i] == closing {
			if i+1 < len(rs) && rs[i+1] == closing {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return i
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
