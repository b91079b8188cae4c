// Package codec provides the chunk codec pipeline: compressors and byte
// transforms applied to a chunk before it is stored and reversed after it
// is loaded.
package codec

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Codec transforms encoded chunk bytes.
// Codecs are applied in sequence on write (e.g. shuffle → zstd → fletcher32)
// and reversed on read (fletcher32 → zstd → shuffle).
type Codec interface {
	// ID returns the codec identifier used in compressor specs ("zlib", "zstd", ...).
	ID() string

	// Encode transforms data on the write path.
	Encode(data []byte) ([]byte, error)

	// Decode reverses Encode on the read path.
	Decode(data []byte) ([]byte, error)
}

// Params configure a codec. It mirrors a Zarr compressor object:
//
//	{"id": "zstd", "level": 3}
//	{"id": "shuffle", "elementsize": 4}
type Params struct {
	ID       string `json:"id" toml:"id"`
	Level    int    `json:"level,omitempty" toml:"level"`
	ElemSize int    `json:"elementsize,omitempty" toml:"elemsize"`
}

// Factory builds a codec from its parameters.
type Factory func(p Params) (Codec, error)

// Registry maps codec ids to factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry holding the built-in codecs.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(IDZlib, func(p Params) (Codec, error) { return NewZlibCodec(p.Level), nil })
	r.Register(IDGzip, func(p Params) (Codec, error) { return NewGzipCodec(p.Level), nil })
	r.Register(IDZstd, func(p Params) (Codec, error) { return NewZstdCodec(p.Level) })
	r.Register(IDSnappy, func(Params) (Codec, error) { return NewSnappyCodec(), nil })
	r.Register(IDLZ4, func(p Params) (Codec, error) { return NewLZ4Codec(p.Level), nil })
	r.Register(IDBZ2, func(p Params) (Codec, error) { return NewBZ2Codec(p.Level), nil })
	r.Register(IDShuffle, func(p Params) (Codec, error) { return NewShuffleCodec(p.ElemSize) })
	r.Register(IDFletcher32, func(Params) (Codec, error) { return NewFletcher32Codec(), nil })
	return r
}

// Default is the registry used by New and Build.
var Default = NewRegistry()

// Register adds or replaces the factory for id.
func (r *Registry) Register(id string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = f
}

// IDs returns the registered codec ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// New builds the codec described by p.
func (r *Registry) New(p Params) (Codec, error) {
	r.mu.RLock()
	f, ok := r.factories[p.ID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown codec %q", p.ID)
	}
	c, err := f(p)
	if err != nil {
		return nil, fmt.Errorf("codec %s: %w", p.ID, err)
	}
	return c, nil
}

// Build creates a pipeline from a list of codec parameters, in write order.
func (r *Registry) Build(params []Params) (*Pipeline, error) {
	p := NewPipeline()
	for _, cp := range params {
		c, err := r.New(cp)
		if err != nil {
			return nil, err
		}
		p.Add(c)
	}
	return p, nil
}

// New builds a codec from the default registry.
func New(p Params) (Codec, error) {
	return Default.New(p)
}

// Build creates a pipeline from the default registry.
func Build(params []Params) (*Pipeline, error) {
	return Default.Build(params)
}

// ParseSpec decodes a compressor spec. The input is either a single JSON
// object ({"id":"zlib","level":5}), a JSON array of such objects, or JSON
// null for no compression.
func ParseSpec(data []byte) ([]Params, error) {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "" || trimmed == "null":
		return nil, nil
	case strings.HasPrefix(trimmed, "["):
		var list []Params
		if err := json.Unmarshal([]byte(trimmed), &list); err != nil {
			return nil, fmt.Errorf("parse codec list: %w", err)
		}
		for i, p := range list {
			if p.ID == "" {
				return nil, fmt.Errorf("codec %d: missing id", i)
			}
		}
		return list, nil
	default:
		var p Params
		if err := json.Unmarshal([]byte(trimmed), &p); err != nil {
			return nil, fmt.Errorf("parse codec: %w", err)
		}
		if p.ID == "" {
			return nil, fmt.Errorf("codec: missing id")
		}
		return []Params{p}, nil
	}
}

// Pipeline manages a chain of codecs applied to chunk data.
//
// On write: data → codec[0] → codec[1] → ... → stored.
// On read:  stored → codec[n-1] → ... → codec[0] → data.
//
// An empty pipeline stores chunks uncompressed.
type Pipeline struct {
	codecs []Codec
}

// NewPipeline creates a pipeline from codecs in write order.
func NewPipeline(codecs ...Codec) *Pipeline {
	return &Pipeline{codecs: append([]Codec(nil), codecs...)}
}

// Add appends a codec to the end of the pipeline.
func (p *Pipeline) Add(c Codec) {
	p.codecs = append(p.codecs, c)
}

// Encode applies all codecs in sequence (write path).
func (p *Pipeline) Encode(data []byte) ([]byte, error) {
	if p == nil {
		return data, nil
	}
	result := data
	for _, c := range p.codecs {
		var err error
		result, err = c.Encode(result)
		if err != nil {
			return nil, fmt.Errorf("codec %s encode failed: %w", c.ID(), err)
		}
	}
	return result, nil
}

// Decode reverses all codecs in reverse order (read path).
func (p *Pipeline) Decode(data []byte) ([]byte, error) {
	if p == nil {
		return data, nil
	}
	result := data
	for i := len(p.codecs) - 1; i >= 0; i-- {
		c := p.codecs[i]
		var err error
		result, err = c.Decode(result)
		if err != nil {
			return nil, fmt.Errorf("codec %s decode failed: %w", c.ID(), err)
		}
	}
	return result, nil
}

// IsEmpty returns true if the pipeline has no codecs.
func (p *Pipeline) IsEmpty() bool {
	return p == nil || len(p.codecs) == 0
}

// Len returns the number of codecs in the pipeline.
func (p *Pipeline) Len() int {
	if p == nil {
		return 0
	}
	return len(p.codecs)
}

// String lists the codec ids in write order, e.g. "shuffle|zstd".
func (p *Pipeline) String() string {
	if p.IsEmpty() {
		return "none"
	}
	ids := make([]string, len(p.codecs))
	for i, c := range p.codecs {
		ids[i] = c.ID()
	}
	return strings.Join(ids, "|")
}
