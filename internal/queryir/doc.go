// Package queryir provides a small query intermediate representation for
// the ledger's history queries.
//
// Callers describe what they want (a table, its columns, a filter and an
// order) and a backend compiler turns it into SQL. Keeping the two apart
// means filters are built from typed nodes, never from string
// concatenation, and every identifier is checked before it reaches a
// statement.
//
// # Sealed Interfaces
//
// Query and Predicate are sealed with marker methods, so backends can
// switch over every node type exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	case ParamEquals:
//	case And:
//	}
//
// # Nodes
//
//   - Select(from, columns, filter, order): table access
//   - Equals: text column equals a literal
//   - ParamEquals: a key of a canonical-JSON parameter column equals a value
//   - And: every predicate holds
//
// There is no OR, no join and no aggregation. Results are always ordered:
// a Select without an order is invalid.
package queryir
