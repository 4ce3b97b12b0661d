// Package ledger provides SQLite-backed history of cache computations and
// guarded deletions.
//
// The ledger is an audit trail beside the result stores, never a source of
// truth: INFO.json files alone decide what a store contains.
//
// Tables:
//   - runs: one row per computation (create or fill), keyed by run token
//   - removals: one row per confirmed or cancelled deletion
//
// # Deterministic Query Results
//
// All queries order by (started_at, run_token) or (removed_at, id), so the
// same database always lists rows in the same order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Queries are built as queryir nodes and compiled by querysql. Parameters
// are stored as canonical JSON, so parameter filters compile to
// json_extract predicates.
package ledger
