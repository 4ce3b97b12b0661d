// Package cache resolves parameter queries against a result store, computing
// missing results on demand.
//
// A Gate answers "which record holds the results for this query?" with one
// of four outcomes:
//   - Available: exactly one record matches
//   - Ambiguous: several records match; all candidates are returned and none
//     is picked
//   - Declined: nothing matches and the confirmer refused to compute
//   - Unavailable: nothing matches and computing is not possible for the
//     query (it names an id, or the gate has no computer)
//
// A Reader loads one quantity and keeps the two kinds of miss apart: no
// matching record (RECORD_NOT_FOUND, may create a new record) versus a
// matching record lacking the quantity (ARTIFACT_MISSING, filled in place
// under the same id).
//
// Every computation gets a run token that ties its log lines and its ledger
// rows together.
package cache
