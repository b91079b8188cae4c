package nczarr

import (
	"fmt"

	"github.com/scigolib/nczarr/internal/logging"
	"github.com/scigolib/nczarr/internal/utils"
)

// VarShape describes the geometry of a chunked variable.
//
// Dimlens and Chunklens have one entry per dimension. ElemSize is the size
// of one element in bytes; it does not affect planning but is carried so
// that descriptors can be turned into byte ranges.
type VarShape struct {
	Dimlens   []uint64
	Chunklens []uint64
	ElemSize  uint64
}

// Rank returns the number of dimensions.
func (v VarShape) Rank() int {
	return len(v.Dimlens)
}

// Validate checks that the shape is usable for planning.
func (v VarShape) Validate() error {
	if len(v.Chunklens) != len(v.Dimlens) {
		return fmt.Errorf("%w: %d dimension lengths, %d chunk lengths",
			ErrRankMismatch, len(v.Dimlens), len(v.Chunklens))
	}
	if v.ElemSize == 0 {
		return fmt.Errorf("%w: element size must be > 0", ErrInvalidArgument)
	}
	for i, c := range v.Chunklens {
		if c == 0 {
			return fmt.Errorf("%w: chunk length of dimension %d must be > 0", ErrInvalidArgument, i)
		}
	}
	// A full chunk must be addressable in bytes.
	if _, err := utils.CalculateChunkSize64(v.Chunklens, v.ElemSize); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return nil
}

// ChunkBytes returns the size in bytes of one full chunk.
func (v VarShape) ChunkBytes() uint64 {
	n := v.ElemSize
	for _, c := range v.Chunklens {
		n *= c
	}
	return n
}

// FullSlices returns slices selecting the whole variable.
func (v VarShape) FullSlices() []Slice {
	slices := make([]Slice, len(v.Dimlens))
	for i, d := range v.Dimlens {
		slices[i] = mustSlice(0, d, 1)
	}
	return slices
}

// ComputeAllSliceProjections builds one SliceProjections per dimension.
//
// Returns ErrRankMismatch if the three vectors differ in length, and the
// first error of ComputeSliceProjections otherwise.
func ComputeAllSliceProjections(slices []Slice, dimlens, chunklens []uint64) ([]SliceProjections, error) {
	if len(dimlens) != len(slices) || len(chunklens) != len(slices) {
		return nil, fmt.Errorf("%w: %d slices, %d dimension lengths, %d chunk lengths",
			ErrRankMismatch, len(slices), len(dimlens), len(chunklens))
	}

	sets := make([]SliceProjections, len(slices))
	for r := range slices {
		slp, err := ComputeSliceProjections(r, slices[r], dimlens[r], chunklens[r])
		if err != nil {
			return nil, err
		}
		sets[r] = slp
	}
	return sets, nil
}

// Plan validates a hyperslab request against a variable's shape and returns
// a ChunkWalker producing one IODescriptor per chunk that holds selected
// elements.
//
// All errors are detected here; the returned walker cannot fail.
//
// Example (the 2-D request touching two chunks):
//
//	shape := VarShape{Dimlens: []uint64{8, 8}, Chunklens: []uint64{4, 4}, ElemSize: 4}
//	s0, _ := NewSlice(0, 4, 1)
//	s1, _ := NewSlice(2, 6, 1)
//	w, err := Plan([]Slice{s0, s1}, shape)
//	for d, ok := w.Next(); ok; d, ok = w.Next() {
//	    // d.ChunkCoord is [0 0] then [0 1]
//	}
func Plan(slices []Slice, shape VarShape) (*ChunkWalker, error) {
	if len(slices) != shape.Rank() {
		return nil, utils.WrapError("plan",
			fmt.Errorf("%w: %d slices for a rank %d variable", ErrRankMismatch, len(slices), shape.Rank()))
	}
	if err := shape.Validate(); err != nil {
		return nil, utils.WrapError("plan", err)
	}

	sets, err := ComputeAllSliceProjections(slices, shape.Dimlens, shape.Chunklens)
	if err != nil {
		return nil, utils.WrapError("plan", err)
	}

	w, err := NewChunkWalker(sets)
	if err != nil {
		return nil, utils.WrapError("plan", err)
	}

	if logging.LogMode() == logging.DebugMode {
		for i := range sets {
			logging.Debugf("plan: %s", sets[i])
		}
	}
	return w, nil
}
