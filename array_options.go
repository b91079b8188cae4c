// Copyright (c) 2025 SciGo HDF5 Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package nczarr

import (
	"fmt"

	"github.com/scigolib/nczarr/internal/cache"
	"github.com/scigolib/nczarr/internal/codec"
	"github.com/scigolib/nczarr/internal/store"
)

// ArrayOption configures an Array during creation.
//
// Example:
//
//	arr, err := nczarr.NewArray(shape,
//	    nczarr.WithStore(st),
//	    nczarr.WithCodecs(pipeline),
//	    nczarr.WithCacheSize(64<<20),
//	)
type ArrayOption func(*Array) error

// WithStore sets the chunk store. The default is a fresh in-memory store.
func WithStore(s store.Store) ArrayOption {
	return func(a *Array) error {
		if s == nil {
			return fmt.Errorf("%w: nil store", ErrInvalidArgument)
		}
		a.store = s
		return nil
	}
}

// WithCodecs sets the codec pipeline applied to every chunk.
// The default stores chunks uncompressed.
func WithCodecs(p *codec.Pipeline) ArrayOption {
	return func(a *Array) error {
		a.codecs = p
		return nil
	}
}

// WithCache attaches a decoded chunk cache. The cache may be shared by
// several arrays as long as their key prefixes differ.
func WithCache(c *cache.ChunkCache) ArrayOption {
	return func(a *Array) error {
		a.cache = c
		return nil
	}
}

// WithCacheSize attaches a new decoded chunk cache of about sizeBytes.
// Zero disables caching.
func WithCacheSize(sizeBytes int) ArrayOption {
	return func(a *Array) error {
		a.cache = cache.New(sizeBytes)
		return nil
	}
}

// WithFillValue sets the element value used for chunks that were never
// written. fill must be exactly one element long. The default is all zero
// bytes.
func WithFillValue(fill []byte) ArrayOption {
	return func(a *Array) error {
		if uint64(len(fill)) != a.shape.ElemSize {
			return fmt.Errorf("%w: fill value has %d bytes, element size is %d",
				ErrInvalidArgument, len(fill), a.shape.ElemSize)
		}
		a.fill = append([]byte(nil), fill...)
		return nil
	}
}

// WithDimensionSeparator sets the separator used in chunk keys: "." (the
// default, keys like "2.4") or "/" (keys like "2/4").
func WithDimensionSeparator(sep string) ArrayOption {
	return func(a *Array) error {
		if sep != "." && sep != "/" {
			return fmt.Errorf("%w: dimension separator must be \".\" or \"/\", got %q", ErrInvalidArgument, sep)
		}
		a.sep = sep
		return nil
	}
}

// WithKeyPrefix prepends prefix to every chunk key, e.g. "temperature/".
func WithKeyPrefix(prefix string) ArrayOption {
	return func(a *Array) error {
		a.prefix = prefix
		return nil
	}
}

// WithConcurrency bounds the number of chunks transferred in parallel.
// The default is GOMAXPROCS.
func WithConcurrency(n int) ArrayOption {
	return func(a *Array) error {
		if n < 1 {
			return fmt.Errorf("%w: concurrency must be >= 1, got %d", ErrInvalidArgument, n)
		}
		a.concurrency = n
		return nil
	}
}

// WithWholeChunkFastPath enables or disables the direct transfer used when
// a request covers exactly one chunk. It is enabled by default.
func WithWholeChunkFastPath(enabled bool) ArrayOption {
	return func(a *Array) error {
		a.wholeChunk = enabled
		return nil
	}
}

// WithMetrics records chunk traffic on m.
func WithMetrics(m *Metrics) ArrayOption {
	return func(a *Array) error {
		a.metrics = m
		return nil
	}
}
