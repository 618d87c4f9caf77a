package harness

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/assetq/internal/engine"
	"github.com/roach88/assetq/internal/schema"
	"github.com/roach88/assetq/internal/store"
	"github.com/roach88/assetq/internal/testutil"
)

// validIdentifier matches the table and column names row_count accepts.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError describes a failed assertion.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %q -> %s (%s, %d)\n", ev.Seq, ev.Question, ev.Method, ev.Status, ev.Count)
		}
	}
	return buf.String()
}

// AssertionContext gives assertions access to the pipeline that ran.
type AssertionContext struct {
	Ctx    context.Context
	Store  *store.Store
	Oracle *testutil.ScriptedOracle
	Engine *engine.Service
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if ev.Method == a.Method && (a.Question == "" || ev.Question == a.Question) {
			return nil
		}
	}
	expected := "method " + a.Method
	if a.Question != "" {
		expected += fmt.Sprintf(" for question %q", a.Question)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first occurrence of each method comes
// after the first occurrence of the one before it.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, ev := range trace {
		if _, seen := positions[ev.Method]; !seen {
			positions[ev.Method] = i
		}
	}

	last := -1
	for _, m := range a.Methods {
		pos, ok := positions[m]
		if !ok {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("methods in order %v", a.Methods),
				Actual:   fmt.Sprintf("method %s not found in trace", m),
				Trace:    trace,
			}
		}
		if pos <= last {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("methods in order %v", a.Methods),
				Actual:   fmt.Sprintf("method %s first appears at position %d, out of order", m, pos+1),
				Trace:    trace,
			}
		}
		last = pos
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, ev := range trace {
		if ev.Method == a.Method {
			n++
		}
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("method %s exactly %d times", a.Method, a.Count),
			Actual:   fmt.Sprintf("%d times", n),
			Trace:    trace,
		}
	}
	return nil
}

func assertOracleCalls(orc *testutil.ScriptedOracle, a Assertion) error {
	if n := orc.Calls(a.Question); n != a.Count {
		return &AssertionError{
			Type:     AssertOracleCalls,
			Expected: fmt.Sprintf("oracle asked %q %d times", a.Question, a.Count),
			Actual:   fmt.Sprintf("%d times", n),
		}
	}
	return nil
}

func assertCacheSize(svc *engine.Service, a Assertion) error {
	if n := svc.CacheSize(); n != a.Count {
		return &AssertionError{
			Type:     AssertCacheSize,
			Expected: fmt.Sprintf("%d cached results", a.Count),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

// assertRowCount counts rows in a.Table matching every a.Where equality.
// Identifiers are validated since they cannot be bound as parameters.
func assertRowCount(ctx context.Context, st *store.Store, a Assertion) error {
	if !validIdentifier.MatchString(a.Table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", a.Table, validIdentifier.String())
	}
	where, args, err := buildWhereClause(a.Where)
	if err != nil {
		return err
	}

	query := "SELECT COUNT(*) FROM " + schema.QuoteIdent(a.Table)
	if where != "" {
		query += " WHERE " + where
	}
	n, err := st.Count(ctx, query, args...)
	if err != nil {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("query table %s", a.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows in %s where %s", a.Count, a.Table, formatWhereClause(a.Where)),
			Actual:   fmt.Sprintf("%d rows", n),
		}
	}
	return nil
}

// buildWhereClause returns a parameterised conjunction over where, keys
// sorted.
func buildWhereClause(where map[string]string) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}
	keys := sortedKeys(where)
	conds := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		if !validIdentifier.MatchString(k) {
			return "", nil, fmt.Errorf("invalid column name %q: must match pattern %s", k, validIdentifier.String())
		}
		conds = append(conds, schema.QuoteIdent(k)+" = ?")
		args = append(args, where[k])
	}
	return strings.Join(conds, " AND "), args, nil
}

func formatWhereClause(where map[string]string) string {
	if len(where) == 0 {
		return "(all rows)"
	}
	keys := sortedKeys(where)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%q", k, where[k])
	}
	return strings.Join(parts, ", ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EvaluateAssertions checks every assertion and returns the failure
// messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertOracleCalls, AssertCacheSize, AssertRowCount:
			if actx == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a pipeline context", i, a.Type)
				break
			}
			switch a.Type {
			case AssertOracleCalls:
				err = assertOracleCalls(actx.Oracle, a)
			case AssertCacheSize:
				err = assertCacheSize(actx.Engine, a)
			default:
				err = assertRowCount(actx.Ctx, actx.Store, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}
