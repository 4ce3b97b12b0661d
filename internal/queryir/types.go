package queryir

import "github.com/roach88/clqa/internal/params"

// Query is a sealed query node.
type Query interface {
	queryNode()
}

// Predicate is a sealed filter node.
type Predicate interface {
	predicateNode()
}

// Select reads Columns from a table, keeps the rows matching Filter (nil
// keeps everything) and orders them by OrderBy.
//
//	Select{
//	  From:    "runs",
//	  Columns: []string{"run_token", "status"},
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Field: "kind", Value: "ccl"},
//	    ParamEquals{Column: "params", Key: "nside", Value: params.Int(128)},
//	  }},
//	  OrderBy: []Order{{Column: "started_at"}, {Column: "run_token"}},
//	}
type Select struct {
	From    string
	Columns []string
	Filter  Predicate
	OrderBy []Order
}

func (Select) queryNode() {}

// Order is one ORDER BY term.
type Order struct {
	Column string
	Desc   bool
}

// Equals matches rows whose text column Field equals Value.
type Equals struct {
	Field string
	Value string
}

func (Equals) predicateNode() {}

// ParamEquals matches rows whose JSON object column holds Key with a value
// equal to Value. A row without Key never matches, not even a null Value.
type ParamEquals struct {
	Column string
	Key    string
	Value  params.Value
}

func (ParamEquals) predicateNode() {}

// And matches rows satisfying every predicate.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// All returns the conjunction of preds, dropping nils. It returns nil when
// nothing is left and the single predicate when only one is.
func All(preds ...Predicate) Predicate {
	kept := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return And{Predicates: kept}
	}
}
