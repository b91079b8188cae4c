package nczarr

import (
	"fmt"

	"github.com/scigolib/nczarr/internal/utils"
)

// Projection maps, for one dimension and one chunk, the elements selected
// inside the chunk onto their positions in the caller's buffer.
//
// Fields:
//   - ID: ordinal of the projection within its SliceProjections
//   - Skip: the stride steps over this chunk entirely; it contributes no
//     elements and must be excluded from I/O
//   - ChunkIndex: index of the chunk along the dimension
//   - First, Last: absolute indices of the first and last selected element
//     inside the chunk (zero when Skip)
//   - Limit: chunk-local length, cstop-cstart (shorter for the edge chunk)
//   - IOPos, IOCount: position and count of the transfer in the selected
//     (already strided) output sequence
//   - ChunkSlice: element range in chunk-local coordinates
//   - MemSlice: element range in the caller's buffer (always unit stride)
type Projection struct {
	ID         int
	Skip       bool
	ChunkIndex uint64
	First      uint64
	Last       uint64
	Limit      uint64
	IOPos      uint64
	IOCount    uint64
	ChunkSlice Slice
	MemSlice   Slice
}

// ComputeProjection computes the projection of slice onto chunk chunkindex
// of a dimension of length dimlen cut into chunks of chunklen elements.
//
// Algorithm:
//  1. cstart = c*chunklen, cstop = min((c+1)*chunklen, dimlen)
//  2. find the first stride grid point slice.Start + k*slice.Stride at or
//     after max(cstart, slice.Start); if there is none before
//     min(cstop, slice.Stop) the chunk is a Skip projection
//  3. First is that point, Last the final grid point before the bound
//  4. ChunkSlice = [First-cstart, Last-cstart+1) with the slice stride
//  5. MemSlice = [(First-Start)/Stride, (Last-Start)/Stride+1) unit stride
//  6. IOPos = MemSlice.Start, IOCount = MemSlice.Len
//  7. Limit = cstop - cstart
//
// A grid point lying exactly on a chunk boundary belongs to the chunk whose
// half-open interval [cstart, cstop) contains it.
//
// The caller guarantees that chunklen > 0, slice is valid and
// (chunkindex+1)*chunklen does not overflow; ComputeSliceProjections
// checks all three.
func ComputeProjection(id int, slice Slice, chunkindex, chunklen, dimlen uint64) Projection {
	cstart := chunkindex * chunklen
	cstop := min(cstart+chunklen, dimlen)

	p := Projection{
		ID:         id,
		ChunkIndex: chunkindex,
	}
	if cstop > cstart {
		p.Limit = cstop - cstart
	}

	lo := max(cstart, slice.Start)
	hi := min(cstop, slice.Stop)

	if lo >= hi {
		return skipProjection(p, slice, lo)
	}

	// Round lo up onto the stride grid.
	k := utils.CeilDiv(lo-slice.Start, slice.Stride)
	if k >= slice.Len {
		return skipProjection(p, slice, lo)
	}
	first := slice.Start + k*slice.Stride
	if first >= hi {
		return skipProjection(p, slice, lo)
	}
	last := slice.Start + ((hi-1-slice.Start)/slice.Stride)*slice.Stride

	p.First = first
	p.Last = last
	p.ChunkSlice = mustSlice(first-cstart, last-cstart+1, slice.Stride)
	p.MemSlice = mustSlice((first-slice.Start)/slice.Stride, (last-slice.Start)/slice.Stride+1, 1)
	p.IOPos = p.MemSlice.Start
	p.IOCount = p.MemSlice.Len
	return p
}

// skipProjection marks p as contributing nothing. IOPos still records how
// many selected elements precede the chunk so that the positions of the
// projections in a set stay monotone.
func skipProjection(p Projection, slice Slice, lo uint64) Projection {
	p.Skip = true
	p.First = 0
	p.Last = 0
	p.IOCount = 0
	p.ChunkSlice = Slice{Stride: 1}
	p.MemSlice = Slice{Stride: 1}
	if lo > slice.Start {
		p.IOPos = min(utils.CeilDiv(lo-slice.Start, slice.Stride), slice.Len)
	}
	return p
}

// SliceProjections is the ordered list of projections of one dimension's
// slice, one per chunk in Range, sorted by ascending ChunkIndex.
// Count always equals len(Projections) and Range.Count(); chunks the stride
// steps over are present as Skip projections.
type SliceProjections struct {
	R           int
	Range       ChunkRange
	Count       int
	Projections []Projection
}

// ComputeSliceProjections builds the projections of slice for dimension r.
//
// Parameters:
//   - r: dimension index, recorded in the result
//   - slice: the caller's selection along this dimension
//   - dimlen: length of the dimension
//   - chunklen: chunk length along this dimension
//
// Returns:
//   - SliceProjections: one projection per chunk in slice.ChunkRange(chunklen)
//   - error: ErrInvalidSlice for a malformed or out of bounds slice,
//     ErrInvalidArgument for a zero chunk length or overflowing extents
func ComputeSliceProjections(r int, slice Slice, dimlen, chunklen uint64) (SliceProjections, error) {
	if err := slice.Validate(); err != nil {
		return SliceProjections{}, utils.WrapError(fmt.Sprintf("dimension %d", r), err)
	}
	if chunklen == 0 {
		return SliceProjections{}, utils.WrapError(fmt.Sprintf("dimension %d", r),
			fmt.Errorf("%w: chunk length must be > 0", ErrInvalidArgument))
	}
	if slice.Stop > dimlen {
		return SliceProjections{}, utils.WrapError(fmt.Sprintf("dimension %d", r),
			fmt.Errorf("%w: stop %d exceeds dimension length %d", ErrInvalidSlice, slice.Stop, dimlen))
	}

	// Every chunk index of the dimension must have a representable end.
	nchunks := utils.CeilDiv(dimlen, chunklen)
	if _, err := utils.SafeMultiply(nchunks, chunklen); err != nil {
		return SliceProjections{}, utils.WrapError(fmt.Sprintf("dimension %d", r),
			fmt.Errorf("%w: %v", ErrInvalidArgument, err))
	}

	rng, err := slice.ChunkRange(chunklen)
	if err != nil {
		return SliceProjections{}, utils.WrapError(fmt.Sprintf("dimension %d", r), err)
	}

	count := int(rng.Count()) //nolint:gosec // G115: bounded by the chunk count of an addressable dimension
	slp := SliceProjections{
		R:           r,
		Range:       rng,
		Count:       count,
		Projections: make([]Projection, count),
	}
	for n := 0; n < count; n++ {
		slp.Projections[n] = ComputeProjection(n, slice, rng.Start+uint64(n), chunklen, dimlen)
	}
	return slp, nil
}

// IOCount returns the total number of elements the set transfers, which
// equals the slice's Len.
func (s SliceProjections) IOCount() uint64 {
	var total uint64
	for i := range s.Projections {
		total += s.Projections[i].IOCount
	}
	return total
}

// Lookup returns the projection for chunk index c, if c is in Range.
func (s SliceProjections) Lookup(c uint64) (Projection, bool) {
	if c < s.Range.Start || c >= s.Range.Stop {
		return Projection{}, false
	}
	return s.Projections[c-s.Range.Start], true
}

// SkipCount returns how many projections in the set are skips.
func (s SliceProjections) SkipCount() int {
	n := 0
	for i := range s.Projections {
		if s.Projections[i].Skip {
			n++
		}
	}
	return n
}
