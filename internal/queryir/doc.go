// Package queryir is the small query representation the fixed, internally
// built queries are expressed in before they reach SQL.
//
// Only trusted code builds QueryIR. Untrusted oracle SQL never passes
// through here; it goes straight to the store guard. The representation
// exists so that search terms are always bound as parameters and column
// names always come from the schema-resolution pass.
//
//	[keyword search] → [Query IR] → [querysql] → parameterised SQLite
//
// FRAGMENT:
//   - Select(from, columns, filter, order, limit)
//   - Predicates: Equals, Like, And, Or
//   - Explicit column lists (no SELECT *)
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed interfaces using the marker method pattern,
// so backends can switch over them exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	case Like:
//	case And:
//	case Or:
//	}
package queryir
