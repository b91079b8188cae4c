package nczarr

import (
	"fmt"

	"github.com/scigolib/nczarr/internal/store"
)

// IODescriptor describes one chunk-level transfer: which chunk to touch,
// which elements inside it, and where they go in the caller's buffer.
//
// ChunkRanges are in chunk-local coordinates and may be strided.
// MemRanges index the caller's buffer, whose shape is the per-dimension
// selected counts (see ChunkWalker.MemShape); they always have unit stride.
type IODescriptor struct {
	ChunkCoord  []uint64
	ChunkRanges []Slice
	MemRanges   []Slice
}

// ElementCount returns the number of elements the descriptor transfers.
func (d IODescriptor) ElementCount() uint64 {
	n := uint64(1)
	for _, m := range d.MemRanges {
		n *= m.Len
	}
	return n
}

// ChunkKey returns the storage key of the descriptor's chunk, e.g. "2.4"
// with sep ".".
func (d IODescriptor) ChunkKey(sep string) string {
	return store.ChunkKey(d.ChunkCoord, sep)
}

// ByteRange is a contiguous run of bytes inside a decoded chunk.
type ByteRange struct {
	Offset uint64
	Length uint64
}

// ByteRanges returns the contiguous byte runs the descriptor touches inside
// a full chunk buffer of shape chunklens, in ascending offset order.
// Adjacent runs are merged, so a descriptor covering whole rows collapses
// into fewer, longer ranges.
func (d IODescriptor) ByteRanges(chunklens []uint64, elemSize uint64) ([]ByteRange, error) {
	odom, err := OdometerFromSlices(d.ChunkRanges, chunklens)
	if err != nil {
		return nil, err
	}

	unit := len(d.ChunkRanges) == 0 || d.ChunkRanges[len(d.ChunkRanges)-1].Stride == 1

	var ranges []ByteRange
	for ; odom.More(); odom.Next() {
		n := uint64(1)
		if unit {
			n = odom.Avail()
		}
		off := odom.Offset() * elemSize
		length := n * elemSize
		if k := len(ranges); k > 0 && ranges[k-1].Offset+ranges[k-1].Length == off {
			ranges[k-1].Length += length
		} else {
			ranges = append(ranges, ByteRange{Offset: off, Length: length})
		}
		if unit {
			odom.SkipAvail()
		}
	}
	return ranges, nil
}

// ChunkWalker enumerates the Cartesian product of per-dimension projection
// sets and emits an IODescriptor for every chunk that holds at least one
// selected element. Tuples containing a skip projection in any dimension
// are elided.
//
// Usage:
//
//	w, err := Plan(slices, shape)
//	if err != nil {
//	    return err
//	}
//	for d, ok := w.Next(); ok; d, ok = w.Next() {
//	    process(d)
//	}
//
// Descriptors are produced in row-major order of chunk coordinates.
// A ChunkWalker is not safe for concurrent use; the descriptors it returns
// share no memory with it or with each other.
type ChunkWalker struct {
	sets []SliceProjections
	odom *Odometer
}

// NewChunkWalker creates a walker over the given per-dimension sets.
// An empty list of sets describes a scalar and yields one descriptor with
// empty coordinate vectors.
func NewChunkWalker(sets []SliceProjections) (*ChunkWalker, error) {
	rank := len(sets)
	start := make([]uint64, rank)
	stop := make([]uint64, rank)
	stride := make([]uint64, rank)
	for r := range sets {
		if sets[r].Count != len(sets[r].Projections) {
			return nil, fmt.Errorf("%w: dimension %d count %d but %d projections",
				ErrInvalidArgument, r, sets[r].Count, len(sets[r].Projections))
		}
		stop[r] = uint64(sets[r].Count)
		stride[r] = 1
	}

	odom, err := NewOdometer(start, stop, stride)
	if err != nil {
		return nil, err
	}
	return &ChunkWalker{sets: sets, odom: odom}, nil
}

// Next returns the next descriptor. ok is false once the walk is exhausted.
func (w *ChunkWalker) Next() (d IODescriptor, ok bool) {
	for ; w.odom.More(); w.odom.Next() {
		if w.skipped() {
			continue
		}
		d = w.descriptor()
		w.odom.Next()
		return d, true
	}
	return IODescriptor{}, false
}

// skipped reports whether the current tuple contains a skip projection.
func (w *ChunkWalker) skipped() bool {
	for r, n := range w.odom.index {
		if w.sets[r].Projections[n].Skip {
			return true
		}
	}
	return false
}

func (w *ChunkWalker) descriptor() IODescriptor {
	rank := len(w.sets)
	d := IODescriptor{
		ChunkCoord:  make([]uint64, rank),
		ChunkRanges: make([]Slice, rank),
		MemRanges:   make([]Slice, rank),
	}
	for r, n := range w.odom.index {
		p := &w.sets[r].Projections[n]
		d.ChunkCoord[r] = p.ChunkIndex
		d.ChunkRanges[r] = p.ChunkSlice
		d.MemRanges[r] = p.MemSlice
	}
	return d
}

// Reset restarts the walk. The following Next calls reproduce the same
// sequence of descriptors.
func (w *ChunkWalker) Reset() {
	w.odom.Reset()
}

// Descriptors drains a fresh walk and returns every descriptor. The walker
// is reset before and after.
func (w *ChunkWalker) Descriptors() []IODescriptor {
	w.Reset()
	defer w.Reset()

	var out []IODescriptor
	for d, ok := w.Next(); ok; d, ok = w.Next() {
		out = append(out, d)
	}
	return out
}

// Rank returns the number of dimensions.
func (w *ChunkWalker) Rank() int {
	return len(w.sets)
}

// Sets returns the per-dimension projection sets the walker was built from.
func (w *ChunkWalker) Sets() []SliceProjections {
	return w.sets
}

// MemShape returns the shape of the caller's buffer: the number of
// selected elements in each dimension.
func (w *ChunkWalker) MemShape() []uint64 {
	shape := make([]uint64, len(w.sets))
	for r := range w.sets {
		shape[r] = w.sets[r].IOCount()
	}
	return shape
}

// MaxDescriptors returns the number of chunk tuples visited, which bounds
// the number of descriptors from above (skips are elided).
func (w *ChunkWalker) MaxDescriptors() uint64 {
	return w.odom.Count()
}
