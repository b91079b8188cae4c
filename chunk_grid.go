package nczarr

import (
	"fmt"

	"github.com/scigolib/nczarr/internal/utils"
)

// ChunkGrid describes how a variable is partitioned into chunks.
//
// It maps between:
//   - linear chunk indices and N-dimensional chunk coordinates
//   - chunk coordinates and the element extents they cover
//
// Example (2D variable):
//
//	Variable: 25x35 elements
//	Chunks:   10x10 elements
//	Result:   3x4 = 12 chunks
//	  - Chunk [0,0]: 10x10 (full)
//	  - Chunk [0,3]: 10x5  (partial in dim 1)
//	  - Chunk [2,3]: 5x5   (partial in both dims)
//
// Edge chunks are still stored at full chunk size; ChunkExtent reports the
// part of them that lies inside the variable.
type ChunkGrid struct {
	dimlens   []uint64
	chunklens []uint64
	numChunks []uint64
}

// NewChunkGrid creates the grid for a variable shape.
//
// numChunks[i] = ceil(Dimlens[i] / Chunklens[i]). A zero-length dimension
// has no chunks; a rank-0 shape has exactly one.
func NewChunkGrid(shape VarShape) (*ChunkGrid, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}

	numChunks := make([]uint64, shape.Rank())
	for i := range shape.Dimlens {
		numChunks[i] = utils.CeilDiv(shape.Dimlens[i], shape.Chunklens[i])
	}
	if _, err := utils.CalculateChunkSize64(numChunks, 1); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	return &ChunkGrid{
		dimlens:   append([]uint64(nil), shape.Dimlens...),
		chunklens: append([]uint64(nil), shape.Chunklens...),
		numChunks: numChunks,
	}, nil
}

// Rank returns the number of dimensions.
func (g *ChunkGrid) Rank() int {
	return len(g.dimlens)
}

// TotalChunks returns the number of chunks in the grid.
//
// Example:
//
//	// Variable: 100x200, chunks: 10x20
//	// numChunks = [10, 10], total = 100
func (g *ChunkGrid) TotalChunks() uint64 {
	total := uint64(1)
	for _, n := range g.numChunks {
		total *= n
	}
	return total
}

// Coordinate converts a linear chunk index to its N-dimensional coordinate
// in row-major order (rightmost dimension fastest).
//
// Example (3x4 chunks):
//
//	index=0  → [0,0]
//	index=3  → [0,3]
//	index=4  → [1,0]
//	index=11 → [2,3]
func (g *ChunkGrid) Coordinate(index uint64) []uint64 {
	coord := make([]uint64, len(g.numChunks))
	remaining := index
	for i := len(g.numChunks) - 1; i >= 0; i-- {
		coord[i] = remaining % g.numChunks[i]
		remaining /= g.numChunks[i]
	}
	return coord
}

// Index converts a chunk coordinate back to its linear index.
func (g *ChunkGrid) Index(coord []uint64) (uint64, error) {
	if !g.Contains(coord) {
		return 0, fmt.Errorf("%w: chunk %s outside grid %s",
			ErrInvalidArgument, formatVector(coord), formatVector(g.numChunks))
	}
	var index uint64
	for i := range coord {
		index = index*g.numChunks[i] + coord[i]
	}
	return index, nil
}

// Contains reports whether coord is a valid chunk coordinate.
func (g *ChunkGrid) Contains(coord []uint64) bool {
	if len(coord) != len(g.numChunks) {
		return false
	}
	for i := range coord {
		if coord[i] >= g.numChunks[i] {
			return false
		}
	}
	return true
}

// ChunkOrigin returns the element index of the chunk's first element.
func (g *ChunkGrid) ChunkOrigin(coord []uint64) []uint64 {
	origin := make([]uint64, len(coord))
	for i := range coord {
		origin[i] = coord[i] * g.chunklens[i]
	}
	return origin
}

// ChunkExtent returns the number of elements of the chunk that lie inside
// the variable, per dimension. Edge chunks are clipped.
//
// Example (variable 25x35, chunks 10x10):
//
//	[0,0] → [10,10]
//	[2,3] → [5,5]
func (g *ChunkGrid) ChunkExtent(coord []uint64) []uint64 {
	size := make([]uint64, len(coord))
	for i := range coord {
		start := coord[i] * g.chunklens[i]
		end := min(start+g.chunklens[i], g.dimlens[i])
		size[i] = end - start
	}
	return size
}

// ChunkSlices returns unit-stride slices selecting the part of the chunk
// that lies inside the variable, in variable coordinates.
func (g *ChunkGrid) ChunkSlices(coord []uint64) []Slice {
	slices := make([]Slice, len(coord))
	origin := g.ChunkOrigin(coord)
	extent := g.ChunkExtent(coord)
	for i := range coord {
		slices[i] = mustSlice(origin[i], origin[i]+extent[i], 1)
	}
	return slices
}

// IsEdgeChunk reports whether the chunk is clipped by the variable bounds
// in any dimension.
func (g *ChunkGrid) IsEdgeChunk(coord []uint64) bool {
	for i, n := range g.ChunkExtent(coord) {
		if n != g.chunklens[i] {
			return true
		}
	}
	return false
}

// NumChunks returns the number of chunks per dimension (copy).
func (g *ChunkGrid) NumChunks() []uint64 {
	nums := make([]uint64, len(g.numChunks))
	copy(nums, g.numChunks)
	return nums
}

// Dimlens returns the variable dimensions (copy).
func (g *ChunkGrid) Dimlens() []uint64 {
	dims := make([]uint64, len(g.dimlens))
	copy(dims, g.dimlens)
	return dims
}

// Chunklens returns the chunk dimensions (copy).
func (g *ChunkGrid) Chunklens() []uint64 {
	dims := make([]uint64, len(g.chunklens))
	copy(dims, g.chunklens)
	return dims
}
