package queryir

// Query represents an abstract query.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode()
}

// Predicate represents a filter condition.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Equals: field = value
//   - Like: field LIKE pattern, optionally case-insensitive
//   - And: all predicates must be true
//   - Or: at least one predicate must be true
type Predicate interface {
	predicateNode()
}

// Select represents a single-table read.
//
// Semantics:
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY <order> LIMIT <limit>
//
// Example:
//
//	Select{
//	  From:    "devices",
//	  Columns: []string{"Asset_Number", "Manufacturer"},
//	  Filter: Or{Predicates: []Predicate{
//	    Like{Field: "Manufacturer", Pattern: "%lenovo%", Fold: true},
//	    Like{Field: "City", Pattern: "%lenovo%", Fold: true},
//	  }},
//	  Limit: 5,
//	}
//
// Translates to SQL:
//
//	SELECT "Asset_Number", "Manufacturer" FROM "devices"
//	WHERE UPPER("Manufacturer") LIKE UPPER(?) OR UPPER("City") LIKE UPPER(?)
//	ORDER BY rowid ASC LIMIT ?
//
// An empty OrderBy orders by rowid so results follow ingestion order.
// Limit 0 means no limit.
type Select struct {
	From    string
	Columns []string
	Filter  Predicate
	OrderBy []string
	Limit   int
}

func (Select) queryNode() {}

// Equals represents a field-equals-value predicate.
//
//	<field> = ?
type Equals struct {
	Field string
	Value any
}

func (Equals) predicateNode() {}

// Like represents a pattern match. Pattern uses SQL LIKE wildcards and is
// always bound as a parameter. Fold upper-cases both sides so the match is
// case-insensitive beyond ASCII.
//
//	UPPER(<field>) LIKE UPPER(?)
type Like struct {
	Field   string
	Pattern string
	Fold    bool
}

func (Like) predicateNode() {}

// And represents a conjunction of predicates (all must be true).
// Empty Predicates means always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or represents a disjunction of predicates (at least one must be true).
// Empty Predicates means always false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Contains builds the %term% pattern for a substring match.
func Contains(term string) string {
	return "%" + term + "%"
}

// AnyLike builds an Or of case-insensitive Like predicates over fields.
func AnyLike(fields []string, pattern string) Or {
	preds := make([]Predicate, 0, len(fields))
	for _, f := range fields {
		preds = append(preds, Like{Field: f, Pattern: pattern, Fold: true})
	}
	return Or{Predicates: preds}
}
