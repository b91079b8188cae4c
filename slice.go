// Package nczarr implements the chunk planning layer of a Zarr-style chunked
// array store: it translates a hyperslab request into per-chunk element
// ranges and the matching ranges of the caller's memory buffer, and moves
// bytes between the two through a pluggable chunk store and codec pipeline.
package nczarr

import (
	"fmt"

	"github.com/scigolib/nczarr/internal/utils"
)

// Slice selects elements along one dimension: every Stride'th index in
// [Start, Stop). Len is the number of selected elements,
// ceil((Stop-Start)/Stride), not Stop-Start.
//
// Example:
//
//	s, _ := NewSlice(1, 9, 2) // elements 1, 3, 5, 7
//	// s.Len == 4
type Slice struct {
	Start  uint64
	Stop   uint64
	Stride uint64
	Len    uint64
}

// NewSlice creates a Slice and computes its Len.
//
// Returns ErrInvalidSlice if stride is zero or start > stop.
func NewSlice(start, stop, stride uint64) (Slice, error) {
	if stride == 0 {
		return Slice{}, utils.WrapError(fmt.Sprintf("slice [%d:%d:%d]", start, stop, stride),
			fmt.Errorf("%w: stride must be > 0", ErrInvalidSlice))
	}
	if start > stop {
		return Slice{}, utils.WrapError(fmt.Sprintf("slice [%d:%d:%d]", start, stop, stride),
			fmt.Errorf("%w: start > stop", ErrInvalidSlice))
	}
	return Slice{
		Start:  start,
		Stop:   stop,
		Stride: stride,
		Len:    utils.CeilDiv(stop-start, stride),
	}, nil
}

// mustSlice is NewSlice for arguments already known to be valid.
func mustSlice(start, stop, stride uint64) Slice {
	s, err := NewSlice(start, stop, stride)
	if err != nil {
		panic(err)
	}
	return s
}

// SliceFromCount converts the (start, count, stride) triple used by
// netCDF's nc_get_vars into a Slice over a dimension of length dimlen.
//
// The resulting Stop is one past the last selected element, so Len == count.
// A zero count yields an empty Slice positioned at start.
//
// Returns ErrInvalidSlice if stride is zero or the selection runs past dimlen.
func SliceFromCount(start, count, stride, dimlen uint64) (Slice, error) {
	if stride == 0 {
		return Slice{}, fmt.Errorf("%w: stride must be > 0", ErrInvalidSlice)
	}
	if count == 0 {
		if start > dimlen {
			return Slice{}, fmt.Errorf("%w: start %d beyond dimension length %d", ErrInvalidSlice, start, dimlen)
		}
		return NewSlice(start, start, stride)
	}

	span, err := utils.SafeMultiply(count-1, stride)
	if err != nil {
		return Slice{}, fmt.Errorf("%w: %v", ErrInvalidSlice, err)
	}
	last, err := utils.SafeAdd(start, span)
	if err != nil {
		return Slice{}, fmt.Errorf("%w: %v", ErrInvalidSlice, err)
	}
	if last >= dimlen {
		return Slice{}, fmt.Errorf("%w: start=%d count=%d stride=%d exceeds dimension length %d",
			ErrInvalidSlice, start, count, stride, dimlen)
	}
	return NewSlice(start, last+1, stride)
}

// Validate re-checks the Slice invariants. It is useful for Slices built
// as struct literals rather than through NewSlice.
func (s Slice) Validate() error {
	if s.Stride == 0 {
		return fmt.Errorf("%w: stride must be > 0", ErrInvalidSlice)
	}
	if s.Start > s.Stop {
		return fmt.Errorf("%w: start %d > stop %d", ErrInvalidSlice, s.Start, s.Stop)
	}
	if want := utils.CeilDiv(s.Stop-s.Start, s.Stride); s.Len != want {
		return fmt.Errorf("%w: len %d, want %d", ErrInvalidSlice, s.Len, want)
	}
	return nil
}

// IsEmpty reports whether the slice selects no elements.
func (s Slice) IsEmpty() bool {
	return s.Len == 0
}

// Contains reports whether absolute index i is selected by the slice.
func (s Slice) Contains(i uint64) bool {
	if s.Stride == 0 || i < s.Start || i >= s.Stop {
		return false
	}
	return (i-s.Start)%s.Stride == 0
}

// Last returns the last selected index. It is meaningless for an empty slice.
func (s Slice) Last() uint64 {
	if s.Len == 0 {
		return s.Start
	}
	return s.Start + (s.Len-1)*s.Stride
}

// ChunkRange is the half-open interval [Start, Stop) of chunk indices along
// one dimension that intersect a Slice.
type ChunkRange struct {
	Start uint64
	Stop  uint64
}

// Count returns the number of chunks in the range.
func (r ChunkRange) Count() uint64 {
	return r.Stop - r.Start
}

// IsEmpty reports whether the range covers no chunks.
func (r ChunkRange) IsEmpty() bool {
	return r.Stop <= r.Start
}

// ChunkRange returns the chunks touched by the slice for the given chunk
// length: Start = start/chunklen, Stop = (stop-1)/chunklen + 1.
// An empty slice yields an empty range.
//
// Returns ErrInvalidArgument if chunklen is zero.
func (s Slice) ChunkRange(chunklen uint64) (ChunkRange, error) {
	if chunklen == 0 {
		return ChunkRange{}, fmt.Errorf("%w: chunk length must be > 0", ErrInvalidArgument)
	}
	if s.Start >= s.Stop {
		first := s.Start / chunklen
		return ChunkRange{Start: first, Stop: first}, nil
	}
	return ChunkRange{
		Start: s.Start / chunklen,
		Stop:  (s.Stop-1)/chunklen + 1,
	}, nil
}
