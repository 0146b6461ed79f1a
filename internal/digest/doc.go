// Package digest provides content hashing for trustgate audit artifacts.
//
// Two kinds of digest are produced:
//
//   - File hashes: SHA-256 over the full file content, hex encoded. Missing or
//     unreadable files hash to nil rather than failing.
//   - Document digests: SHA-256 over RFC 8785 style canonical JSON with a
//     domain prefix, used to content-address saved ledgers.
//
// Canonical JSON sorts object keys by UTF-16 code units, NFC-normalizes
// strings and never escapes HTML characters, so the same document always
// produces the same bytes regardless of map iteration order.
package digest
