// Package engine defines the byte-addressable storage contract the page
// store is built on (§6, "Storage engine contract"), and ships the
// two concrete implementations this module needs: a file-backed engine for
// real persistence and an in-memory engine for tests and ephemeral stores.
package engine

import "io"

// Engine is the byte-addressed storage contract consumed by the core.
// Reads are only ever issued within ranges the caller already knows are
// valid (§6: "read is only called within known-valid ranges"), so
// implementations need not zero-pad past EOF.
type Engine interface {
	// Size returns the current size of the underlying storage in bytes.
	Size() (int64, error)

	// ReadAt reads length bytes starting at offset.
	ReadAt(offset int64, length int) ([]byte, error)

	// WriteAt overwrites length(data) bytes starting at offset. The range
	// must lie within the current size.
	WriteAt(offset int64, data []byte) error

	// Append writes data past the current end of storage and returns the
	// new total size.
	Append(data []byte) (int64, error)

	// Commit flushes any buffered writes. May be a no-op.
	Commit() error

	// Reset truncates the underlying storage to empty. Used only by
	// journal/recovery (not implemented by this module; see §1).
	Reset() error

	// Close releases any resources (file handles) held by the engine.
	Close() error
}

var _ io.Closer = Engine(nil)
