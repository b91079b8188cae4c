package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkKey(t *testing.T) {
	tests := []struct {
		name  string
		coord []uint64
		sep   string
		want  string
	}{
		{name: "scalar", coord: nil, sep: ".", want: "0"},
		{name: "1D", coord: []uint64{7}, sep: ".", want: "7"},
		{name: "2D dot", coord: []uint64{2, 4}, sep: ".", want: "2.4"},
		{name: "3D slash", coord: []uint64{0, 10, 3}, sep: "/", want: "0/10/3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := ChunkKey(tt.coord, tt.sep)
			require.Equal(t, tt.want, key)

			coord, err := ParseChunkKey(key, tt.sep, len(tt.coord))
			require.NoError(t, err)
			if len(tt.coord) == 0 {
				require.Empty(t, coord)
			} else {
				require.Equal(t, tt.coord, coord)
			}
		})
	}
}

func TestParseChunkKeyErrors(t *testing.T) {
	_, err := ParseChunkKey("1.2", ".", 3)
	require.Error(t, err)
	_, err = ParseChunkKey("1.x", ".", 2)
	require.Error(t, err)
	_, err = ParseChunkKey("1", ".", 0)
	require.Error(t, err)
}

// openers builds one fresh, hermetic store per backend.
func openers(t *testing.T) map[string]func() Store {
	t.Helper()
	ctx := context.Background()
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"badger in memory": func() Store {
			s, err := NewBadgerStore("")
			require.NoError(t, err)
			return s
		},
		"badger on disk": func() Store {
			s, err := Open(ctx, BadgerEngine, filepath.Join(t.TempDir(), "db"))
			require.NoError(t, err)
			return s
		},
		"memblob": func() Store {
			s, err := Open(ctx, BlobEngine, "mem://")
			require.NoError(t, err)
			return s
		},
		"fileblob": func() Store {
			s, err := Open(ctx, BlobEngine, filepath.Join(t.TempDir(), "chunks"))
			require.NoError(t, err)
			return s
		},
	}
}

func TestStoreBackends(t *testing.T) {
	ctx := context.Background()

	for name, open := range openers(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			defer func() { require.NoError(t, s.Close()) }()

			_, err := s.Get(ctx, "0.0")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Put(ctx, "0.0", []byte{1, 2, 3}))
			require.NoError(t, s.Put(ctx, "0/1", []byte{4, 5}))

			got, err := s.Get(ctx, "0.0")
			require.NoError(t, err)
			require.Equal(t, []byte{1, 2, 3}, got)

			// Returned values are copies.
			got[0] = 99
			again, err := s.Get(ctx, "0.0")
			require.NoError(t, err)
			require.Equal(t, []byte{1, 2, 3}, again)

			got, err = s.Get(ctx, "0/1")
			require.NoError(t, err)
			require.Equal(t, []byte{4, 5}, got)

			require.NoError(t, s.Put(ctx, "0.0", []byte{7}))
			got, err = s.Get(ctx, "0.0")
			require.NoError(t, err)
			require.Equal(t, []byte{7}, got)

			require.NoError(t, s.Delete(ctx, "0.0"))
			_, err = s.Get(ctx, "0.0")
			require.ErrorIs(t, err, ErrNotFound)
			require.NoError(t, s.Delete(ctx, "never-written"))
		})
	}
}

func TestStoreConcurrentPut(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			require.NoError(t, s.Put(ctx, fmt.Sprintf("%d", i), []byte{byte(i)}))
		}(i)
	}
	wg.Wait()
	require.Len(t, s.Keys(), 16)
}

func TestOpenUnknownEngine(t *testing.T) {
	_, err := Open(context.Background(), "leveldb", "")
	require.Error(t, err)

	_, err = Open(context.Background(), BlobEngine, "")
	require.Error(t, err)

	s, err := Open(context.Background(), "", "")
	require.NoError(t, err)
	require.Equal(t, MemoryEngine, s.Type())
}

func TestBadgerCancelledContext(t *testing.T) {
	s, err := NewBadgerStore("")
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Put(ctx, "k", []byte{1}), context.Canceled)
	_, err = s.Get(ctx, "k")
	require.ErrorIs(t, err, context.Canceled)
}
