// Package params provides the typed parameter values that key cached results.
//
// A Params map is what INFO.json stores and what queries are matched against.
// Values are restricted to the JSON data model (null, bool, number, string,
// list, object) so that every record can be written and read back without
// loss.
//
// Key design constraints:
//   - Numbers keep their int/float distinction through a round trip, but
//     compare numerically: Int(1) equals Float(1.0)
//   - Object keys are always emitted in sorted order
//   - Strings are NFC normalized at the serialization boundary
//   - NaN and infinities are rejected
package params
