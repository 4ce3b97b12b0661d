// Package store provides the directory-backed, parameter-keyed result store.
//
// Layout under a store root:
//
//	<root>/<id>/INFO.json        parameter record, including "id"
//	<root>/<id>/<quantity>.dat   one numeric artifact per quantity
//
// # Record Lifecycle
//
//   - Allocate reserves <root>/<id> with a fail-if-exists mkdir
//   - WriteRecord writes every artifact, then INFO.json last
//   - A directory without a valid INFO.json is not a record and is skipped
//   - INFO.json is never rewritten once published
//   - AddArtifacts may later add missing artifacts to a record in place
//
// # File Publication
//
// Every file is written to a temporary name in the record directory and then
// hard-linked into place, so readers never observe a partial file and an
// existing file is never replaced.
//
// Records are never deduplicated: two records with identical parameters are
// both kept, and a query matching both is ambiguous.
package store
