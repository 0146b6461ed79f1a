// Package result defines the record a domain command hands to trustgate
// after it runs, and validates it at that boundary.
//
// Domain commands emit a JSON object. Parse checks it against the embedded
// CUE schema (schema.cue) before decoding it into Result, so a command that
// reports `"success": "yes"` or a negative chart count is rejected with a
// precise message instead of being half-understood by the governance layer.
//
// Keys the schema does not know are kept in Result.Extra and written back
// out by MarshalJSON.
package result
