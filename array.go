package nczarr

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scigolib/nczarr/internal/cache"
	"github.com/scigolib/nczarr/internal/codec"
	"github.com/scigolib/nczarr/internal/logging"
	"github.com/scigolib/nczarr/internal/store"
	"github.com/scigolib/nczarr/internal/utils"
)

// Array is a chunked N-dimensional variable backed by a chunk store.
//
// Every chunk is stored at full chunk size, encoded through the codec
// pipeline, under the key prefix+ChunkKey(coord, sep). Chunks that were
// never written read as the fill value.
//
// An Array is safe for concurrent reads. Concurrent writes that touch the
// same chunk must be serialized by the caller, since each write performs a
// read-modify-write of the chunks it touches.
type Array struct {
	shape       VarShape
	grid        *ChunkGrid
	store       store.Store
	codecs      *codec.Pipeline
	cache       *cache.ChunkCache
	fill        []byte
	sep         string
	prefix      string
	concurrency int
	wholeChunk  bool
	metrics     *Metrics
}

// NewArray creates an Array for a variable of the given shape.
//
// Example:
//
//	shape := nczarr.VarShape{Dimlens: []uint64{100, 200}, Chunklens: []uint64{10, 20}, ElemSize: 8}
//	arr, err := nczarr.NewArray(shape, nczarr.WithCodecs(pipeline))
func NewArray(shape VarShape, opts ...ArrayOption) (*Array, error) {
	grid, err := NewChunkGrid(shape)
	if err != nil {
		return nil, utils.WrapError("new array", err)
	}
	if err := utils.ValidateBufferSize(shape.ChunkBytes(), utils.MaxChunkSize, "chunk"); err != nil {
		return nil, utils.WrapError("new array", fmt.Errorf("%w: %v", ErrInvalidArgument, err))
	}

	a := &Array{
		shape: VarShape{
			Dimlens:   grid.Dimlens(),
			Chunklens: grid.Chunklens(),
			ElemSize:  shape.ElemSize,
		},
		grid:        grid,
		sep:         ".",
		concurrency: runtime.GOMAXPROCS(0),
		wholeChunk:  true,
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, utils.WrapError("new array", err)
		}
	}
	if a.store == nil {
		a.store = store.NewMemoryStore()
	}
	return a, nil
}

// Shape returns the variable shape.
func (a *Array) Shape() VarShape {
	return VarShape{
		Dimlens:   a.grid.Dimlens(),
		Chunklens: a.grid.Chunklens(),
		ElemSize:  a.shape.ElemSize,
	}
}

// Grid returns the chunk grid.
func (a *Array) Grid() *ChunkGrid {
	return a.grid
}

// Store returns the underlying chunk store.
func (a *Array) Store() store.Store {
	return a.store
}

// CacheStats returns the decoded chunk cache counters.
func (a *Array) CacheStats() cache.Stats {
	return a.cache.Stats()
}

// ChunkKey returns the full storage key of a chunk.
func (a *Array) ChunkKey(coord []uint64) string {
	return a.prefix + store.ChunkKey(coord, a.sep)
}

// HyperslabSelection selects elements the way netCDF's nc_get_vars does.
//
// Parameters:
//   - Start: first selected index in each dimension (0-based)
//   - Count: number of elements to select in each dimension
//   - Stride: step between selected elements (nil = all 1s)
//
// The caller's buffer holds product(Count) elements in row-major order.
//
// Example (every 2nd row of the first 8 rows, columns 10..14):
//
//	sel := &HyperslabSelection{
//	    Start:  []uint64{0, 10},
//	    Count:  []uint64{4, 5},
//	    Stride: []uint64{2, 1},
//	}
type HyperslabSelection struct {
	Start  []uint64
	Count  []uint64
	Stride []uint64 // nil means all 1s
}

// Slices converts the selection into per-dimension Slices, validating it
// against dimlens.
func (sel *HyperslabSelection) Slices(dimlens []uint64) ([]Slice, error) {
	rank := len(dimlens)
	if len(sel.Start) != rank || len(sel.Count) != rank {
		return nil, fmt.Errorf("%w: start has %d dims, count has %d dims, variable has %d",
			ErrRankMismatch, len(sel.Start), len(sel.Count), rank)
	}
	if sel.Stride != nil && len(sel.Stride) != rank {
		return nil, fmt.Errorf("%w: stride has %d dims, variable has %d",
			ErrRankMismatch, len(sel.Stride), rank)
	}

	slices := make([]Slice, rank)
	for i := 0; i < rank; i++ {
		stride := uint64(1)
		if sel.Stride != nil {
			stride = sel.Stride[i]
		}
		s, err := SliceFromCount(sel.Start[i], sel.Count[i], stride, dimlens[i])
		if err != nil {
			return nil, utils.WrapError(fmt.Sprintf("dimension %d", i), err)
		}
		slices[i] = s
	}
	return slices, nil
}

// Read copies the selected elements into buf, which must hold exactly
// product(sel.Count) elements.
func (a *Array) Read(ctx context.Context, sel *HyperslabSelection, buf []byte) error {
	defer a.metrics.observeTransfer("read", time.Now())
	return a.transfer(ctx, sel, buf, false)
}

// Write stores the elements of buf into the selection. buf must hold
// exactly product(sel.Count) elements in row-major order.
func (a *Array) Write(ctx context.Context, sel *HyperslabSelection, buf []byte) error {
	defer a.metrics.observeTransfer("write", time.Now())
	return a.transfer(ctx, sel, buf, true)
}

// ReadSlice reads a contiguous block using start/count and returns a new
// buffer holding it.
//
// Example (2D):
//
//	// Read a 50x50 block starting at (100, 200)
//	data, err := arr.ReadSlice(ctx, []uint64{100, 200}, []uint64{50, 50})
func (a *Array) ReadSlice(ctx context.Context, start, count []uint64) ([]byte, error) {
	n, err := utils.CalculateHyperslabElements(count)
	if err != nil {
		return nil, utils.WrapError("read slice", fmt.Errorf("%w: %v", ErrInvalidArgument, err))
	}
	buf := make([]byte, n*a.shape.ElemSize)
	if err := a.Read(ctx, &HyperslabSelection{Start: start, Count: count}, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// transfer plans a request and moves data in the requested direction.
func (a *Array) transfer(ctx context.Context, sel *HyperslabSelection, buf []byte, write bool) error {
	op := "read"
	if write {
		op = "write"
	}

	slices, err := sel.Slices(a.shape.Dimlens)
	if err != nil {
		return utils.WrapError(op, err)
	}

	want := a.shape.ElemSize
	for _, s := range slices {
		want *= s.Len
	}
	if uint64(len(buf)) != want {
		return utils.WrapError(op, fmt.Errorf("%w: buffer has %d bytes, selection needs %d",
			ErrInvalidArgument, len(buf), want))
	}

	walker, err := Plan(slices, a.shape)
	if err != nil {
		return utils.WrapError(op, err)
	}

	if a.shape.Rank() == 0 {
		return a.transferScalar(ctx, buf, write)
	}
	if a.wholeChunk && a.isWholeChunk(slices) {
		return a.transferWholeChunk(ctx, slices, buf, write)
	}

	memShape := walker.MemShape()
	descs := walker.Descriptors()
	logging.Debugf("%s: %s -> %d chunk(s)", op, FormatSlices(slices), len(descs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for _, d := range descs {
		d := d
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if write {
				return a.writeDescriptor(gctx, d, memShape, buf)
			}
			return a.readDescriptor(gctx, d, memShape, buf)
		})
	}
	if err := g.Wait(); err != nil {
		return utils.WrapError(op, err)
	}
	return nil
}

// isWholeChunk reports whether the request is exactly one full,
// chunk-aligned chunk with unit strides.
func (a *Array) isWholeChunk(slices []Slice) bool {
	for i, s := range slices {
		c := a.shape.Chunklens[i]
		if s.Stride != 1 || s.Start%c != 0 || s.Len != c {
			return false
		}
	}
	return true
}

func (a *Array) transferWholeChunk(ctx context.Context, slices []Slice, buf []byte, write bool) error {
	coord := make([]uint64, len(slices))
	for i, s := range slices {
		coord[i] = s.Start / a.shape.Chunklens[i]
	}
	if write {
		return a.storeChunk(ctx, coord, buf)
	}
	chunk, err := a.loadChunk(ctx, coord)
	if err != nil {
		return utils.WrapError("read", err)
	}
	copy(buf, chunk)
	return nil
}

// transferScalar moves the single element of a rank-0 variable.
func (a *Array) transferScalar(ctx context.Context, buf []byte, write bool) error {
	if write {
		return a.storeChunk(ctx, nil, buf)
	}
	chunk, err := a.loadChunk(ctx, nil)
	if err != nil {
		return utils.WrapError("read", err)
	}
	copy(buf, chunk)
	return nil
}

// walkRuns drives a chunk odometer and a memory odometer in lockstep over
// one descriptor and calls fn with matching byte offsets and a run length.
// With unit stride in the fastest dimension whole runs are visited at once;
// otherwise each element is a run of its own.
func (a *Array) walkRuns(d IODescriptor, memShape []uint64, fn func(chunkOff, memOff, n uint64)) error {
	co, err := OdometerFromSlices(d.ChunkRanges, a.shape.Chunklens)
	if err != nil {
		return err
	}
	mo, err := OdometerFromSlices(d.MemRanges, memShape)
	if err != nil {
		return err
	}

	es := a.shape.ElemSize
	unit := d.ChunkRanges[len(d.ChunkRanges)-1].Stride == 1
	for co.More() && mo.More() {
		n := uint64(1)
		if unit {
			n = co.Avail()
		}
		fn(co.Offset()*es, mo.Offset()*es, n*es)
		if unit {
			co.SkipAvail()
			mo.SkipAvail()
		}
		co.Next()
		mo.Next()
	}
	return nil
}

func (a *Array) readDescriptor(ctx context.Context, d IODescriptor, memShape []uint64, buf []byte) error {
	chunk, err := a.loadChunk(ctx, d.ChunkCoord)
	if err != nil {
		return err
	}
	return a.walkRuns(d, memShape, func(chunkOff, memOff, n uint64) {
		copy(buf[memOff:memOff+n], chunk[chunkOff:chunkOff+n])
	})
}

func (a *Array) writeDescriptor(ctx context.Context, d IODescriptor, memShape []uint64, buf []byte) error {
	var chunk []byte
	if a.coversChunk(d) {
		chunk = utils.GetBuffer(int(a.shape.ChunkBytes())) //nolint:gosec // G115: bounded by MaxChunkSize
		defer utils.ReleaseBuffer(chunk)
		utils.FillBuffer(chunk, a.fill)
	} else {
		var err error
		chunk, err = a.loadChunk(ctx, d.ChunkCoord)
		if err != nil {
			return err
		}
	}

	if err := a.walkRuns(d, memShape, func(chunkOff, memOff, n uint64) {
		copy(chunk[chunkOff:chunkOff+n], buf[memOff:memOff+n])
	}); err != nil {
		return err
	}
	return a.storeChunk(ctx, d.ChunkCoord, chunk)
}

// coversChunk reports whether d overwrites every byte of its chunk, in
// which case the old contents need not be loaded.
func (a *Array) coversChunk(d IODescriptor) bool {
	for i, r := range d.ChunkRanges {
		if r.Start != 0 || r.Stride != 1 || r.Len != a.shape.Chunklens[i] {
			return false
		}
	}
	return true
}

// fillChunk returns a new full-size chunk holding the fill value.
func (a *Array) fillChunk() []byte {
	chunk := make([]byte, a.shape.ChunkBytes())
	utils.FillBuffer(chunk, a.fill)
	return chunk
}

// loadChunk returns the decoded chunk at coord, substituting the fill value
// when the chunk was never written. The result is owned by the caller.
func (a *Array) loadChunk(ctx context.Context, coord []uint64) ([]byte, error) {
	key := a.ChunkKey(coord)

	if a.cache != nil {
		data, ok := a.cache.Get(key)
		a.metrics.cacheLookup(ok)
		if ok {
			return data, nil
		}
	}

	raw, err := a.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		logging.Debugf("chunk %q missing, using fill value", key)
		a.metrics.chunkFill()
		return a.fillChunk(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load chunk %q: %w", key, err)
	}
	a.metrics.chunkRead(len(raw))

	data, err := a.codecs.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode chunk %q: %w", key, err)
	}
	if uint64(len(data)) != a.shape.ChunkBytes() {
		return nil, fmt.Errorf("decode chunk %q: got %d bytes, want %d", key, len(data), a.shape.ChunkBytes())
	}

	a.cache.Put(key, data)
	return data, nil
}

// storeChunk encodes and stores a full decoded chunk, then refreshes the
// cache.
func (a *Array) storeChunk(ctx context.Context, coord []uint64, data []byte) error {
	key := a.ChunkKey(coord)
	if uint64(len(data)) != a.shape.ChunkBytes() {
		return fmt.Errorf("store chunk %q: got %d bytes, want %d", key, len(data), a.shape.ChunkBytes())
	}

	enc, err := a.codecs.Encode(data)
	if err != nil {
		return fmt.Errorf("encode chunk %q: %w", key, err)
	}
	if err := a.store.Put(ctx, key, enc); err != nil {
		a.cache.Invalidate(key)
		return fmt.Errorf("store chunk %q: %w", key, err)
	}
	a.metrics.chunkWrite(len(enc))
	a.cache.Put(key, data)
	return nil
}

// ReadChunk returns the decoded chunk at coord. Chunks that were never
// written come back filled with the fill value. Edge chunks are returned at
// full chunk size; use Grid().ChunkExtent for the valid part.
func (a *Array) ReadChunk(ctx context.Context, coord []uint64) ([]byte, error) {
	if !a.grid.Contains(coord) {
		return nil, utils.WrapError("read chunk", fmt.Errorf("%w: chunk %s outside grid %s",
			ErrInvalidArgument, formatVector(coord), formatVector(a.grid.numChunks)))
	}
	chunk, err := a.loadChunk(ctx, coord)
	if err != nil {
		return nil, utils.WrapError("read chunk", err)
	}
	return chunk, nil
}

// WriteChunk stores a full decoded chunk at coord.
func (a *Array) WriteChunk(ctx context.Context, coord []uint64, data []byte) error {
	if !a.grid.Contains(coord) {
		return utils.WrapError("write chunk", fmt.Errorf("%w: chunk %s outside grid %s",
			ErrInvalidArgument, formatVector(coord), formatVector(a.grid.numChunks)))
	}
	if err := a.storeChunk(ctx, coord, data); err != nil {
		return utils.WrapError("write chunk", err)
	}
	return nil
}

// DeleteChunk removes the chunk at coord; it reads as the fill value
// afterwards.
func (a *Array) DeleteChunk(ctx context.Context, coord []uint64) error {
	key := a.ChunkKey(coord)
	a.cache.Invalidate(key)
	if err := a.store.Delete(ctx, key); err != nil {
		return utils.WrapError("delete chunk", err)
	}
	return nil
}
