package queryir

import "fmt"

// ValidationResult lists the problems found in a query.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	// Problems describes each violation in traversal order.
	Problems []string
}

// Validate checks a query for structural problems that would otherwise
// surface only as SQL errors at execution time.
//
// Rules:
//  1. From must be set
//  2. Columns must be explicit (no SELECT *) and non-empty names
//  3. Predicates must name a field; Like patterns must be non-empty
//  4. Limit must not be negative
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{problems: []string{}}
	v.validateQuery(query)
	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addProblem("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	default:
		v.addProblem("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if sel.From == "" {
		v.addProblem("select has no source table")
	}
	if len(sel.Columns) == 0 {
		v.addProblem("select on %q has no columns - explicit column list required", sel.From)
	}
	for i, c := range sel.Columns {
		if c == "" {
			v.addProblem("select on %q has empty column name at position %d", sel.From, i)
		}
	}
	for i, c := range sel.OrderBy {
		if c == "" {
			v.addProblem("select on %q has empty order column at position %d", sel.From, i)
		}
	}
	if sel.Limit < 0 {
		v.addProblem("select on %q has negative limit %d", sel.From, sel.Limit)
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		return
	case Equals:
		v.validateField("equals", pred.Field)
	case *Equals:
		v.validateField("equals", pred.Field)
	case Like:
		v.validateLike(pred)
	case *Like:
		v.validateLike(*pred)
	case And:
		v.validateAll(pred.Predicates)
	case *And:
		v.validateAll(pred.Predicates)
	case Or:
		v.validateAll(pred.Predicates)
	case *Or:
		v.validateAll(pred.Predicates)
	default:
		v.addProblem("unknown predicate type: %T", p)
	}
}

func (v *validator) validateField(kind, field string) {
	if field == "" {
		v.addProblem("%s predicate has no field", kind)
	}
}

func (v *validator) validateLike(l Like) {
	v.validateField("like", l.Field)
	if l.Pattern == "" {
		v.addProblem("like predicate on %q has empty pattern", l.Field)
	}
}

func (v *validator) validateAll(preds []Predicate) {
	for _, sub := range preds {
		v.validatePredicate(sub)
	}
}
