package library

import (
	"context"
	"errors"
)

// AnyVersion makes a Write unconditional.
const AnyVersion int64 = -1

// ErrVersionMismatch is returned by KV.Apply when a conditional write finds a
// different version than expected. No write of the batch is applied.
var ErrVersionMismatch = errors.New("kv: version mismatch")

// Entry is a stored value and its version. Versions start at 1 and grow by
// one on every write; an absent key has version 0.
type Entry struct {
	Value   []byte
	Version int64
}

// Write is one element of an atomic KV.Apply batch.
type Write struct {
	Key       string
	Value     []byte
	Delete    bool
	IfVersion int64 // AnyVersion, 0 for "must not exist", or the expected version
}

// KV is the key-value backend the record store persists into.
type KV interface {
	// Get returns the entry stored at key. The bool is false when the key
	// has never been written or was deleted.
	Get(ctx context.Context, key string) (Entry, bool, error)

	// Apply performs every write or none of them.
	Apply(ctx context.Context, writes ...Write) error

	Close() error
}
