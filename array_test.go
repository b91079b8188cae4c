package nczarr

import (
	"context"
	"math/rand"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/scigolib/nczarr/internal/codec"
	"github.com/scigolib/nczarr/internal/store"
	mocktesting "github.com/scigolib/nczarr/internal/testing"
)

// refOffsets returns, in row-major selection order, the flat element index
// of every element the selection picks from a variable of shape dimlens.
func refOffsets(dimlens []uint64, sel HyperslabSelection) []uint64 {
	rank := len(dimlens)
	n := uint64(1)
	for _, c := range sel.Count {
		n *= c
	}
	out := make([]uint64, 0, n)
	idx := make([]uint64, rank)
	for lin := uint64(0); lin < n; lin++ {
		rem := lin
		for i := rank - 1; i >= 0; i-- {
			idx[i] = rem % sel.Count[i]
			rem /= sel.Count[i]
		}
		var flat uint64
		for i := 0; i < rank; i++ {
			stride := uint64(1)
			if sel.Stride != nil {
				stride = sel.Stride[i]
			}
			flat = flat*dimlens[i] + sel.Start[i] + idx[i]*stride
		}
		out = append(out, flat)
	}
	return out
}

func refRead(full []byte, dimlens []uint64, es uint64, sel HyperslabSelection) []byte {
	var out []byte
	for _, off := range refOffsets(dimlens, sel) {
		out = append(out, full[off*es:(off+1)*es]...)
	}
	return out
}

func refWrite(full []byte, dimlens []uint64, es uint64, sel HyperslabSelection, buf []byte) {
	for k, off := range refOffsets(dimlens, sel) {
		copy(full[off*es:(off+1)*es], buf[uint64(k)*es:uint64(k+1)*es])
	}
}

func sequence(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func fullSelection(dimlens []uint64) *HyperslabSelection {
	return &HyperslabSelection{Start: make([]uint64, len(dimlens)), Count: append([]uint64(nil), dimlens...)}
}

func exampleShape() VarShape {
	return VarShape{Dimlens: []uint64{10, 5}, Chunklens: []uint64{4, 5}, ElemSize: 1}
}

func TestArrayReadWriteExample(t *testing.T) {
	ctx := context.Background()
	shape := exampleShape()
	st := store.NewMemoryStore()
	arr, err := NewArray(shape, WithStore(st))
	require.NoError(t, err)

	full := sequence(50)
	require.NoError(t, arr.Write(ctx, fullSelection(shape.Dimlens), full))
	require.Equal(t, []string{"0.0", "1.0", "2.0"}, st.Keys())

	// Rows 1,3,5,7, all columns.
	sel := HyperslabSelection{Start: []uint64{1, 0}, Count: []uint64{4, 5}, Stride: []uint64{2, 1}}
	got := make([]byte, 20)
	require.NoError(t, arr.Read(ctx, &sel, got))
	require.Equal(t, refRead(full, shape.Dimlens, 1, sel), got)
	require.Equal(t, []byte{5, 6, 7, 8, 9}, got[:5])

	// Edge chunks are stored at full size.
	chunk, err := arr.ReadChunk(ctx, []uint64{2, 0})
	require.NoError(t, err)
	require.Len(t, chunk, 20)
	require.Equal(t, full[40:50], chunk[:10])
	require.Equal(t, make([]byte, 10), chunk[10:])
}

func TestArrayUnwrittenReadsFill(t *testing.T) {
	ctx := context.Background()
	shape := VarShape{Dimlens: []uint64{6, 6}, Chunklens: []uint64{4, 4}, ElemSize: 2}
	arr, err := NewArray(shape, WithFillValue([]byte{0xAB, 0xCD}))
	require.NoError(t, err)

	got, err := arr.ReadSlice(ctx, []uint64{2, 3}, []uint64{3, 2})
	require.NoError(t, err)
	require.Len(t, got, 12)
	for i := 0; i < len(got); i += 2 {
		require.Equal(t, []byte{0xAB, 0xCD}, got[i:i+2])
	}

	// A partial write keeps the fill value around it.
	require.NoError(t, arr.Write(ctx,
		&HyperslabSelection{Start: []uint64{1, 1}, Count: []uint64{1, 1}},
		[]byte{1, 2}))
	got, err = arr.ReadSlice(ctx, []uint64{1, 0}, []uint64{1, 3})
	require.NoError(t, err)
	require.Equal(t, []byte{0xAB, 0xCD, 1, 2, 0xAB, 0xCD}, got)
}

func TestArrayStridedWritePreservesNeighbours(t *testing.T) {
	ctx := context.Background()
	shape := exampleShape()
	arr, err := NewArray(shape)
	require.NoError(t, err)

	full := sequence(50)
	require.NoError(t, arr.Write(ctx, fullSelection(shape.Dimlens), full))

	sel := HyperslabSelection{Start: []uint64{1, 1}, Count: []uint64{5, 2}, Stride: []uint64{2, 2}}
	patch := make([]byte, 10)
	for i := range patch {
		patch[i] = 0xF0 + byte(i)
	}
	require.NoError(t, arr.Write(ctx, &sel, patch))
	refWrite(full, shape.Dimlens, 1, sel, patch)

	got, err := arr.ReadSlice(ctx, []uint64{0, 0}, []uint64{10, 5})
	require.NoError(t, err)
	require.Equal(t, full, got)
}

func TestArrayRandomSelections(t *testing.T) {
	ctx := context.Background()
	shape := VarShape{Dimlens: []uint64{7, 5, 6}, Chunklens: []uint64{3, 2, 4}, ElemSize: 2}
	rng := rand.New(rand.NewSource(42)) //nolint:gosec // deterministic test data

	randomSel := func() HyperslabSelection {
		sel := HyperslabSelection{
			Start:  make([]uint64, 3),
			Count:  make([]uint64, 3),
			Stride: make([]uint64, 3),
		}
		for i, d := range shape.Dimlens {
			sel.Stride[i] = uint64(rng.Intn(3) + 1)
			sel.Start[i] = uint64(rng.Intn(int(d)))
			maxCount := (d-1-sel.Start[i])/sel.Stride[i] + 1
			sel.Count[i] = uint64(rng.Intn(int(maxCount) + 1))
		}
		return sel
	}

	for _, concurrency := range []int{1, 4} {
		arr, err := NewArray(shape, WithConcurrency(concurrency))
		require.NoError(t, err)

		full := sequence(7 * 5 * 6 * 2)
		require.NoError(t, arr.Write(ctx, fullSelection(shape.Dimlens), full))

		for iter := 0; iter < 200; iter++ {
			sel := randomSel()
			n := uint64(len(refOffsets(shape.Dimlens, sel))) * shape.ElemSize

			if iter%3 == 0 {
				patch := make([]byte, n)
				_, _ = rng.Read(patch)
				require.NoError(t, arr.Write(ctx, &sel, patch))
				refWrite(full, shape.Dimlens, shape.ElemSize, sel, patch)
				continue
			}

			got := make([]byte, n)
			require.NoError(t, arr.Read(ctx, &sel, got), "selection %+v", sel)
			require.Equal(t, refRead(full, shape.Dimlens, shape.ElemSize, sel), got, "selection %+v", sel)
		}
	}
}

func TestArrayWholeChunkFastPath(t *testing.T) {
	ctx := context.Background()
	shape := VarShape{Dimlens: []uint64{8, 8}, Chunklens: []uint64{4, 4}, ElemSize: 1}

	for _, enabled := range []bool{true, false} {
		st := mocktesting.NewMockStore()
		arr, err := NewArray(shape, WithStore(st), WithWholeChunkFastPath(enabled))
		require.NoError(t, err)

		data := sequence(16)
		sel := &HyperslabSelection{Start: []uint64{4, 0}, Count: []uint64{4, 4}}
		require.NoError(t, arr.Write(ctx, sel, data))

		// A fully covered chunk is never loaded before being overwritten.
		require.Equal(t, 0, st.Gets())
		require.Equal(t, []string{"1.0"}, st.PutKeys())

		got := make([]byte, 16)
		require.NoError(t, arr.Read(ctx, sel, got))
		require.Equal(t, data, got)
		require.Equal(t, 1, st.Gets())
	}
}

func TestArrayScalar(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	arr, err := NewArray(VarShape{ElemSize: 4}, WithStore(st), WithFillValue([]byte{9, 9, 9, 9}))
	require.NoError(t, err)

	sel := &HyperslabSelection{}
	got := make([]byte, 4)
	require.NoError(t, arr.Read(ctx, sel, got))
	require.Equal(t, []byte{9, 9, 9, 9}, got)

	require.NoError(t, arr.Write(ctx, sel, []byte{1, 2, 3, 4}))
	require.Equal(t, []string{"0"}, st.Keys())
	require.NoError(t, arr.Read(ctx, sel, got))
	require.Equal(t, []byte{1, 2, 3, 4}, got)
}

func TestArrayEmptySelection(t *testing.T) {
	st := mocktesting.NewMockStore()
	arr, err := NewArray(exampleShape(), WithStore(st))
	require.NoError(t, err)

	sel := &HyperslabSelection{Start: []uint64{3, 0}, Count: []uint64{0, 5}}
	require.NoError(t, arr.Read(context.Background(), sel, nil))
	require.NoError(t, arr.Write(context.Background(), sel, []byte{}))
	require.Zero(t, st.Gets())
	require.Zero(t, st.Puts())
}

func TestArrayKeys(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	arr, err := NewArray(exampleShape(), WithStore(st),
		WithDimensionSeparator("/"), WithKeyPrefix("temp/"))
	require.NoError(t, err)

	require.NoError(t, arr.Write(ctx,
		&HyperslabSelection{Start: []uint64{5, 0}, Count: []uint64{1, 1}}, []byte{7}))
	require.Equal(t, []string{"temp/1/0"}, st.Keys())
	require.Equal(t, "temp/1/0", arr.ChunkKey([]uint64{1, 0}))

	require.NoError(t, arr.DeleteChunk(ctx, []uint64{1, 0}))
	require.Empty(t, st.Keys())
}

func TestArrayCodecsAndBackends(t *testing.T) {
	ctx := context.Background()
	shape := VarShape{Dimlens: []uint64{9, 7}, Chunklens: []uint64{4, 3}, ElemSize: 2}

	shuffle, err := codec.NewShuffleCodec(2)
	require.NoError(t, err)
	zstd, err := codec.NewZstdCodec(3)
	require.NoError(t, err)

	badgerStore, err := store.NewBadgerStore("")
	require.NoError(t, err)
	defer badgerStore.Close()
	blobStore, err := store.NewBlobStore(ctx, "mem://")
	require.NoError(t, err)
	defer blobStore.Close()
	fileStore, err := store.NewBlobStore(ctx, t.TempDir())
	require.NoError(t, err)
	defer fileStore.Close()

	tests := []struct {
		name  string
		store store.Store
		opts  []ArrayOption
	}{
		{name: "badger zstd", store: badgerStore, opts: []ArrayOption{WithCodecs(codec.NewPipeline(shuffle, zstd))}},
		{name: "memblob gzip", store: blobStore, opts: []ArrayOption{WithCodecs(codec.NewPipeline(codec.NewGzipCodec(6)))}},
		{name: "fileblob lz4 cached", store: fileStore, opts: []ArrayOption{
			WithCodecs(codec.NewPipeline(codec.NewLZ4Codec(0), codec.NewFletcher32Codec())),
			WithCacheSize(1 << 20),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arr, err := NewArray(shape, append(tt.opts, WithStore(tt.store))...)
			require.NoError(t, err)

			full := sequence(9 * 7 * 2)
			require.NoError(t, arr.Write(ctx, fullSelection(shape.Dimlens), full))

			sel := HyperslabSelection{Start: []uint64{1, 2}, Count: []uint64{3, 2}, Stride: []uint64{3, 4}}
			got := make([]byte, 12)
			require.NoError(t, arr.Read(ctx, &sel, got))
			require.Equal(t, refRead(full, shape.Dimlens, 2, sel), got)
		})
	}
}

func TestArrayCache(t *testing.T) {
	ctx := context.Background()
	st := mocktesting.NewMockStore()
	arr, err := NewArray(exampleShape(), WithStore(st), WithCacheSize(1<<20))
	require.NoError(t, err)

	full := sequence(50)
	require.NoError(t, arr.Write(ctx, fullSelection([]uint64{10, 5}), full))
	st.ResetCounts()

	got, err := arr.ReadSlice(ctx, []uint64{0, 0}, []uint64{10, 5})
	require.NoError(t, err)
	require.Equal(t, full, got)
	require.Zero(t, st.Gets(), "written chunks should be served from the cache")
	require.EqualValues(t, 3, arr.CacheStats().Hits)
}

func TestArrayMetrics(t *testing.T) {
	ctx := context.Background()
	m := NewMetrics(prometheus.NewRegistry())
	arr, err := NewArray(exampleShape(), WithMetrics(m))
	require.NoError(t, err)

	require.NoError(t, arr.Write(ctx, fullSelection([]uint64{10, 5}), sequence(50)))
	// Chunk 2.0 is an edge chunk, so it is loaded (as fill) before writing.
	require.Equal(t, 3.0, testutil.ToFloat64(m.chunkOps.WithLabelValues("write")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.chunkOps.WithLabelValues("fill")))
	require.Equal(t, 60.0, testutil.ToFloat64(m.bytes.WithLabelValues("write")))

	got := make([]byte, 20)
	sel := &HyperslabSelection{Start: []uint64{1, 0}, Count: []uint64{4, 5}, Stride: []uint64{2, 1}}
	require.NoError(t, arr.Read(ctx, sel, got))
	require.Equal(t, 2.0, testutil.ToFloat64(m.chunkOps.WithLabelValues("read")))
	require.Equal(t, 40.0, testutil.ToFloat64(m.bytes.WithLabelValues("read")))
}

func TestArrayErrors(t *testing.T) {
	ctx := context.Background()
	shape := exampleShape()

	t.Run("buffer size", func(t *testing.T) {
		arr, err := NewArray(shape)
		require.NoError(t, err)
		err = arr.Read(ctx, fullSelection(shape.Dimlens), make([]byte, 49))
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("rank mismatch", func(t *testing.T) {
		arr, err := NewArray(shape)
		require.NoError(t, err)
		err = arr.Read(ctx, &HyperslabSelection{Start: []uint64{0}, Count: []uint64{1}}, make([]byte, 1))
		require.ErrorIs(t, err, ErrRankMismatch)
		err = arr.Read(ctx, &HyperslabSelection{
			Start: []uint64{0, 0}, Count: []uint64{1, 1}, Stride: []uint64{1},
		}, make([]byte, 1))
		require.ErrorIs(t, err, ErrRankMismatch)
	})

	t.Run("out of bounds", func(t *testing.T) {
		arr, err := NewArray(shape)
		require.NoError(t, err)
		err = arr.Read(ctx, &HyperslabSelection{
			Start: []uint64{8, 0}, Count: []uint64{2, 1}, Stride: []uint64{2, 1},
		}, make([]byte, 2))
		require.ErrorIs(t, err, ErrInvalidSlice)
	})

	t.Run("store get failure", func(t *testing.T) {
		st := mocktesting.NewMockStore()
		arr, err := NewArray(shape, WithStore(st))
		require.NoError(t, err)
		st.FailGet("1.0")
		_, err = arr.ReadSlice(ctx, []uint64{0, 0}, []uint64{10, 5})
		require.ErrorIs(t, err, mocktesting.ErrInjected)
	})

	t.Run("store put failure", func(t *testing.T) {
		st := mocktesting.NewMockStore()
		arr, err := NewArray(shape, WithStore(st))
		require.NoError(t, err)
		st.FailPut("0.0")
		err = arr.Write(ctx, fullSelection(shape.Dimlens), sequence(50))
		require.ErrorIs(t, err, mocktesting.ErrInjected)
	})

	t.Run("corrupt chunk", func(t *testing.T) {
		st := store.NewMemoryStore()
		require.NoError(t, st.Put(ctx, "0.0", []byte{1, 2, 3}))
		arr, err := NewArray(shape, WithStore(st))
		require.NoError(t, err)
		_, err = arr.ReadChunk(ctx, []uint64{0, 0})
		require.Error(t, err)
	})

	t.Run("chunk outside grid", func(t *testing.T) {
		arr, err := NewArray(shape)
		require.NoError(t, err)
		_, err = arr.ReadChunk(ctx, []uint64{3, 0})
		require.ErrorIs(t, err, ErrInvalidArgument)
		err = arr.WriteChunk(ctx, []uint64{0}, make([]byte, 20))
		require.ErrorIs(t, err, ErrInvalidArgument)
		err = arr.WriteChunk(ctx, []uint64{0, 0}, make([]byte, 19))
		require.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		arr, err := NewArray(shape)
		require.NoError(t, err)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err = arr.ReadSlice(cctx, []uint64{0, 0}, []uint64{10, 5})
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("options", func(t *testing.T) {
		_, err := NewArray(shape, WithStore(nil))
		require.ErrorIs(t, err, ErrInvalidArgument)
		_, err = NewArray(shape, WithFillValue([]byte{1, 2}))
		require.ErrorIs(t, err, ErrInvalidArgument)
		_, err = NewArray(shape, WithDimensionSeparator("_"))
		require.ErrorIs(t, err, ErrInvalidArgument)
		_, err = NewArray(shape, WithConcurrency(0))
		require.ErrorIs(t, err, ErrInvalidArgument)
		_, err = NewArray(VarShape{Dimlens: []uint64{4}, Chunklens: []uint64{0}, ElemSize: 1})
		require.ErrorIs(t, err, ErrInvalidArgument)
	})
}
