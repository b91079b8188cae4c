package nczarr

import (
	"context"
	"errors"
)

// ChunkIterator visits the chunks of an Array one at a time in row-major
// chunk order, so variables larger than memory can be processed chunk by
// chunk.
//
// Usage:
//
//	iter := arr.ChunkIterator(ctx)
//	for iter.Next() {
//	    data, err := iter.Chunk()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    process(iter.ChunkCoords(), data)
//	}
//	if err := iter.Err(); err != nil {
//	    log.Fatal(err)
//	}
//
// The iterator follows the bufio.Scanner pattern. Every chunk of the grid is
// visited, including chunks that were never written; those read as the fill
// value.
type ChunkIterator struct {
	array      *Array
	total      uint64
	current    uint64
	err        error
	ctx        context.Context
	onProgress func(current, total int)
}

// ChunkIterator returns an iterator over all chunks of the array. ctx is
// checked before each step and used for every chunk read.
func (a *Array) ChunkIterator(ctx context.Context) *ChunkIterator {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ChunkIterator{
		array: a,
		total: a.grid.TotalChunks(),
		ctx:   ctx,
	}
}

// Next advances to the next chunk. It returns false when iteration is
// complete or the context is done; check Err to tell them apart.
func (it *ChunkIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if err := it.ctx.Err(); err != nil {
		it.err = err
		return false
	}

	if it.current >= it.total {
		return false
	}
	it.current++

	if it.onProgress != nil {
		it.onProgress(int(it.current), int(it.total)) //nolint:gosec // G115: chunk counts fit in int
	}
	return true
}

// Chunk returns the in-bounds elements of the current chunk in row-major
// order. Edge chunks are clipped to the variable, so the result holds
// product(Extent()) elements.
func (it *ChunkIterator) Chunk() ([]byte, error) {
	coord := it.ChunkCoords()
	if coord == nil {
		return nil, errors.New("no current chunk: call Next() first")
	}
	g := it.array.grid
	return it.array.ReadSlice(it.ctx, g.ChunkOrigin(coord), g.ChunkExtent(coord))
}

// RawChunk returns the current chunk at full chunk size, as stored.
func (it *ChunkIterator) RawChunk() ([]byte, error) {
	coord := it.ChunkCoords()
	if coord == nil {
		return nil, errors.New("no current chunk: call Next() first")
	}
	return it.array.ReadChunk(it.ctx, coord)
}

// ChunkCoords returns the coordinate of the current chunk, or nil before
// the first call to Next and after the last chunk.
func (it *ChunkIterator) ChunkCoords() []uint64 {
	if it.current < 1 || it.current > it.total {
		return nil
	}
	return it.array.grid.Coordinate(it.current - 1)
}

// Extent returns the in-bounds size of the current chunk per dimension.
func (it *ChunkIterator) Extent() []uint64 {
	coord := it.ChunkCoords()
	if coord == nil {
		return nil
	}
	return it.array.grid.ChunkExtent(coord)
}

// Progress returns the current chunk number (1-based) and the total.
func (it *ChunkIterator) Progress() (current, total int) {
	return int(it.current), int(it.total) //nolint:gosec // G115: chunk counts fit in int
}

// Total returns the number of chunks in the array.
func (it *ChunkIterator) Total() int {
	return int(it.total) //nolint:gosec // G115: chunk counts fit in int
}

// Err returns the error that stopped iteration, if any.
func (it *ChunkIterator) Err() error {
	return it.err
}

// OnProgress sets a callback invoked after each successful Next with the
// 1-based chunk number and the total.
func (it *ChunkIterator) OnProgress(fn func(current, total int)) {
	it.onProgress = fn
}

// Reset rewinds the iterator to the beginning.
func (it *ChunkIterator) Reset() {
	it.current = 0
	it.err = nil
}

// ChunkDims returns the chunk dimensions.
func (it *ChunkIterator) ChunkDims() []uint64 {
	return it.array.grid.Chunklens()
}

// Dimlens returns the variable dimensions.
func (it *ChunkIterator) Dimlens() []uint64 {
	return it.array.grid.Dimlens()
}
