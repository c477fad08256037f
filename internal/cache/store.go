// Package cache persists fetched source content between pipeline runs so a
// resumed run can skip acquisition entirely.
//
// Entries are keyed by run identifier and wrapped in a small envelope that
// embeds the key, which lets reads detect entries that were moved, renamed
// or otherwise corrupted. A corrupt entry is reported but reads treat it as
// a miss: stale cache state must never be able to fail a run.
package cache

import "errors"

// ErrCorrupt marks a cache entry whose envelope cannot be decoded or whose
// embedded key does not match the requested key. Get reports it alongside
// found=false; callers log it and re-fetch.
var ErrCorrupt = errors.New("cache: corrupt entry")

// Store is a keyed blob store.
//
// Blobs must be valid JSON: the store wraps them in a JSON envelope, and a
// non-JSON blob would make the envelope unwritable.
type Store interface {
	// Put stores blob under key, replacing any previous entry. The entry
	// becomes visible atomically: readers see either the old blob or the
	// new one, never a partial write.
	Put(key string, blob []byte) error

	// Get returns the blob stored under key. found is false when no entry
	// exists. A corrupt entry returns found=false and an error matching
	// ErrCorrupt; any other error means the read itself failed.
	Get(key string) ([]byte, bool, error)

	// Has reports whether an entry exists under key, without validating it.
	Has(key string) bool

	// Delete removes the entry under key. Deleting a missing key is a no-op.
	Delete(key string) error

	// Keys lists the stored keys in lexical order.
	Keys() ([]string, error)
}
