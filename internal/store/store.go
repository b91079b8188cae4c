// Package store provides the chunk storage backends: a map-backed memory
// store, an embedded badger key-value store and a gocloud.dev blob bucket.
//
// Every backend stores encoded chunks under Zarr v2 style keys built by
// ChunkKey. A missing chunk is reported with ErrNotFound so that callers can
// substitute fill values.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("chunk not found")

// Engine names accepted by Open.
const (
	MemoryEngine = "memory"
	BadgerEngine = "badger"
	BlobEngine   = "blob"
)

// Store is a key-value backend for encoded chunks.
// Implementations are safe for concurrent use.
type Store interface {
	// Get returns a copy of the value stored under key, or an error
	// wrapping ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores val under key, replacing any previous value.
	Put(ctx context.Context, key string, val []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Type returns the engine name.
	Type() string

	// Close releases the backend's resources.
	Close() error
}

// ChunkKey builds the storage key of a chunk from its coordinates, joining
// the indices with sep ("." or "/"). A scalar (empty coordinate) maps to "0".
//
// Example:
//
//	ChunkKey([]uint64{2, 4}, ".") // "2.4"
//	ChunkKey([]uint64{2, 4}, "/") // "2/4"
func ChunkKey(coord []uint64, sep string) string {
	if len(coord) == 0 {
		return "0"
	}
	var b strings.Builder
	for i, c := range coord {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(strconv.FormatUint(c, 10))
	}
	return b.String()
}

// ParseChunkKey is the inverse of ChunkKey for a variable of the given rank.
func ParseChunkKey(key, sep string, rank int) ([]uint64, error) {
	if rank == 0 {
		if key != "0" {
			return nil, fmt.Errorf("scalar chunk key must be \"0\", got %q", key)
		}
		return []uint64{}, nil
	}
	parts := strings.Split(key, sep)
	if len(parts) != rank {
		return nil, fmt.Errorf("chunk key %q has %d indices, want %d", key, len(parts), rank)
	}
	coord := make([]uint64, rank)
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("chunk key %q: %w", key, err)
		}
		coord[i] = v
	}
	return coord, nil
}

// Open creates a store for the given engine.
//
// Location is interpreted per engine:
//   - memory: ignored
//   - badger: database directory; empty runs badger in memory
//   - blob: a gocloud.dev bucket URL ("file:///data/chunks", "mem://"),
//     or a plain directory path which is created if needed
func Open(ctx context.Context, engine, location string) (Store, error) {
	switch engine {
	case MemoryEngine, "":
		return NewMemoryStore(), nil
	case BadgerEngine:
		return NewBadgerStore(location)
	case BlobEngine:
		return NewBlobStore(ctx, location)
	default:
		return nil, fmt.Errorf("unknown store engine %q", engine)
	}
}
