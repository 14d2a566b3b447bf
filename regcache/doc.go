// Package regcache persists registry discovery results between processes.
//
// The file-backed store writes one JSON envelope per discovery scope under
// the user cache directory and validates it on read against a format
// version, a maximum age, and an optional content fingerprint of the
// scanned tree. Every validation or I/O failure downgrades to a cache miss:
// the cache is an optimization, and a registry must come out identical
// whether the cache was warm, cold, or corrupt.
package regcache
