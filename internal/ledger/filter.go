package ledger

import (
	"github.com/roach88/clqa/internal/cache"
	"github.com/roach88/clqa/internal/params"
	"github.com/roach88/clqa/internal/queryir"
)

// Filter selects runs. Zero fields match everything.
type Filter struct {
	Kind     string
	Store    string
	RecordID string
	Status   cache.RunStatus

	// Params matches runs whose parameters contain every key with an equal
	// JSON value. A key absent from a run never matches, not even null.
	Params params.Params
}

var runColumns = []string{
	"run_token", "kind", "store_root", "record_id", "mode", "params", "params_hash", "quantities",
	"status", "artifacts", "error", "started_at", "finished_at",
}

// query builds the runs query for f, ordered by start time, then token.
func (f Filter) query() queryir.Select {
	var preds []queryir.Predicate
	eq := func(column, value string) {
		if value != "" {
			preds = append(preds, queryir.Equals{Field: column, Value: value})
		}
	}
	eq("kind", f.Kind)
	eq("store_root", f.Store)
	eq("record_id", f.RecordID)
	eq("status", string(f.Status))

	for _, key := range f.Params.SortedKeys() {
		preds = append(preds, queryir.ParamEquals{Column: "params", Key: key, Value: f.Params[key]})
	}

	return queryir.Select{
		From:    "runs",
		Columns: runColumns,
		Filter:  queryir.All(preds...),
		OrderBy: []queryir.Order{{Column: "started_at"}, {Column: "run_token"}},
	}
}
