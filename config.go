// Copyright (c) 2025 SciGo HDF5 Library Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

package nczarr

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/scigolib/nczarr/internal/codec"
	"github.com/scigolib/nczarr/internal/logging"
	"github.com/scigolib/nczarr/internal/store"
)

// Config is the TOML configuration of a chunk store and its transfer
// settings. A typical file:
//
//	[log]
//	logfile = "nczarr.log"
//	max_log_size = 500 # MB
//	level = "info"
//
//	[store]
//	engine = "badger"
//	path = "data/chunks"
//
//	[cache]
//	size_mb = 64
//
//	[transfer]
//	concurrency = 8
//	dimension_separator = "."
//	whole_chunk = true
//
//	[[codec]]
//	id = "shuffle"
//	elemsize = 4
//
//	[[codec]]
//	id = "zstd"
//	level = 3
type Config struct {
	Log      logging.LogConfig
	Store    StoreConfig
	Cache    CacheConfig
	Transfer TransferConfig
	Codecs   []codec.Params `toml:"codec"`
}

// StoreConfig selects the chunk store backend.
type StoreConfig struct {
	Engine string // "memory", "badger" or "blob"
	Path   string // badger directory, or blob directory
	URL    string // blob bucket URL, e.g. "file:///data" or "mem://"
}

// CacheConfig sizes the decoded chunk cache.
type CacheConfig struct {
	SizeMB int `toml:"size_mb"`
}

// TransferConfig tunes hyperslab transfers.
type TransferConfig struct {
	Concurrency        int
	DimensionSeparator string `toml:"dimension_separator"`
	WholeChunk         bool   `toml:"whole_chunk"`
}

// DefaultConfig returns an in-memory configuration without compression.
func DefaultConfig() *Config {
	return &Config{
		Log:   logging.LogConfig{Level: "info"},
		Store: StoreConfig{Engine: store.MemoryEngine},
		Transfer: TransferConfig{
			DimensionSeparator: ".",
			WholeChunk:         true,
		},
	}
}

// LoadConfig reads a TOML configuration file. Settings missing from the
// file keep their DefaultConfig values, and relative paths are taken
// relative to the file's directory.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("no TOML configuration file provided")
	}
	c := DefaultConfig()
	md, err := toml.DecodeFile(filename, c)
	if err != nil {
		return nil, fmt.Errorf("could not decode TOML config: %w", err)
	}
	for _, key := range md.Undecoded() {
		logging.Warningf("config %s: unknown setting %q ignored", filename, key.String())
	}

	dir := filepath.Dir(filename)
	c.Log.Logfile = absPath(c.Log.Logfile, dir)
	c.Store.Path = absPath(c.Store.Path, dir)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", filename, err)
	}
	logging.Debugf("config %s: %+v", filename, *c)
	return c, nil
}

func absPath(path, dir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// Validate checks the configuration for values no Array could use.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Store.Engine) {
	case "", store.MemoryEngine, store.BadgerEngine:
	case store.BlobEngine:
		if c.Store.URL == "" && c.Store.Path == "" {
			return fmt.Errorf("%w: blob store needs a url or path", ErrInvalidArgument)
		}
	default:
		return fmt.Errorf("%w: unknown store engine %q", ErrInvalidArgument, c.Store.Engine)
	}
	if c.Cache.SizeMB < 0 {
		return fmt.Errorf("%w: cache size %d MB", ErrInvalidArgument, c.Cache.SizeMB)
	}
	if c.Transfer.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency %d", ErrInvalidArgument, c.Transfer.Concurrency)
	}
	switch c.Transfer.DimensionSeparator {
	case "", ".", "/":
	default:
		return fmt.Errorf("%w: dimension separator %q", ErrInvalidArgument, c.Transfer.DimensionSeparator)
	}
	if _, err := logging.ParseMode(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if _, err := c.Pipeline(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return nil
}

// OpenStore opens the configured chunk store. The caller closes it.
func (c *Config) OpenStore(ctx context.Context) (store.Store, error) {
	engine := strings.ToLower(c.Store.Engine)
	location := c.Store.Path
	if engine == store.BlobEngine && c.Store.URL != "" {
		location = c.Store.URL
	}
	s, err := store.Open(ctx, engine, location)
	if err != nil {
		return nil, err
	}
	logging.Infof("opened %s chunk store %q", s.Type(), location)
	return s, nil
}

// Pipeline builds the configured codec pipeline.
func (c *Config) Pipeline() (*codec.Pipeline, error) {
	return codec.Build(c.Codecs)
}

// ArrayOptions turns the cache, transfer and codec settings into Array
// options. The store is not included; pair the result with WithStore.
func (c *Config) ArrayOptions() ([]ArrayOption, error) {
	pipeline, err := c.Pipeline()
	if err != nil {
		return nil, err
	}
	opts := []ArrayOption{
		WithCodecs(pipeline),
		WithWholeChunkFastPath(c.Transfer.WholeChunk),
	}
	if c.Transfer.DimensionSeparator != "" {
		opts = append(opts, WithDimensionSeparator(c.Transfer.DimensionSeparator))
	}
	if c.Transfer.Concurrency > 0 {
		opts = append(opts, WithConcurrency(c.Transfer.Concurrency))
	}
	if c.Cache.SizeMB > 0 {
		opts = append(opts, WithCacheSize(c.Cache.SizeMB<<20))
	}
	return opts, nil
}
