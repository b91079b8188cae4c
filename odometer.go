package nczarr

import (
	"fmt"

	"github.com/scigolib/nczarr/internal/utils"
)

// Odometer is a bounded multi-dimensional counter. It enumerates every
// coordinate tuple of the index space [Start[i], Stop[i]) stepping by
// Stride[i], in row-major order: the last dimension varies fastest.
//
// Usage:
//
//	odom, err := NewOdometer(start, stop, stride)
//	if err != nil {
//	    return err
//	}
//	for ; odom.More(); odom.Next() {
//	    idx := odom.Indices()
//	    off := odom.Offset()
//	    ...
//	}
//
// An Odometer is single-use iterator state owned by one walk; Reset
// returns it to its initial position.
type Odometer struct {
	start  []uint64
	stop   []uint64
	stride []uint64
	shape  []uint64 // buffer extent used by Offset
	index  []uint64
	done   bool
}

// NewOdometer creates an odometer over [start[i], stop[i]) with the given
// strides. The buffer extent used by Offset defaults to stop.
//
// Returns ErrRankMismatch if the vectors differ in length and
// ErrInvalidArgument if start[i] > stop[i] or stride[i] == 0.
func NewOdometer(start, stop, stride []uint64) (*Odometer, error) {
	return NewOdometerWithShape(start, stop, stride, stop)
}

// NewOdometerWithShape creates an odometer whose Offset is computed against
// shape, the per-dimension extent of the buffer being addressed. shape may
// exceed the walked range but must satisfy stop[i] <= shape[i].
//
// Example (walk the odd rows of a 4x6 buffer, columns 2..4):
//
//	odom, _ := NewOdometerWithShape(
//	    []uint64{1, 2}, []uint64{4, 5}, []uint64{2, 1}, []uint64{4, 6})
//	// tuples: [1,2] [1,3] [1,4] [3,2] [3,3] [3,4]
//	// offsets: 8 9 10 20 21 22
func NewOdometerWithShape(start, stop, stride, shape []uint64) (*Odometer, error) {
	rank := len(start)
	if len(stop) != rank || len(stride) != rank || len(shape) != rank {
		return nil, fmt.Errorf("%w: odometer start=%d stop=%d stride=%d shape=%d",
			ErrRankMismatch, len(start), len(stop), len(stride), len(shape))
	}

	o := &Odometer{
		start:  append([]uint64(nil), start...),
		stop:   append([]uint64(nil), stop...),
		stride: append([]uint64(nil), stride...),
		shape:  append([]uint64(nil), shape...),
		index:  make([]uint64, rank),
	}

	for i := 0; i < rank; i++ {
		if stride[i] == 0 {
			return nil, fmt.Errorf("%w: odometer stride[%d] must be > 0", ErrInvalidArgument, i)
		}
		if start[i] > stop[i] {
			return nil, fmt.Errorf("%w: odometer start[%d]=%d > stop[%d]=%d",
				ErrInvalidArgument, i, start[i], i, stop[i])
		}
		if stop[i] > shape[i] {
			return nil, fmt.Errorf("%w: odometer stop[%d]=%d exceeds shape %d",
				ErrInvalidArgument, i, stop[i], shape[i])
		}
	}

	if _, err := utils.CalculateChunkSize64(shape, 1); err != nil {
		return nil, fmt.Errorf("%w: odometer shape: %v", ErrInvalidArgument, err)
	}

	o.Reset()
	return o, nil
}

// OdometerFromSlices builds an odometer that walks each slice, addressing a
// buffer of the given shape.
func OdometerFromSlices(slices []Slice, shape []uint64) (*Odometer, error) {
	start := make([]uint64, len(slices))
	stop := make([]uint64, len(slices))
	stride := make([]uint64, len(slices))
	for i, s := range slices {
		start[i] = s.Start
		stop[i] = s.Stop
		stride[i] = s.Stride
	}
	return NewOdometerWithShape(start, stop, stride, shape)
}

// Reset returns the odometer to its initial (fresh) position.
func (o *Odometer) Reset() {
	copy(o.index, o.start)
	o.done = false
	for i := range o.start {
		if o.start[i] >= o.stop[i] {
			o.done = true
		}
	}
}

// Rank returns the number of dimensions.
func (o *Odometer) Rank() int {
	return len(o.start)
}

// More reports whether the odometer still points at a valid tuple.
func (o *Odometer) More() bool {
	return !o.done
}

// Next advances to the next tuple in row-major order. The fastest (last)
// dimension is incremented by its stride; overflowing past stop carries
// into the next slower dimension and resets the overflowed one to its
// start. The odometer is exhausted when the slowest dimension overflows.
func (o *Odometer) Next() {
	if o.done {
		return
	}
	for i := len(o.index) - 1; i >= 0; i-- {
		// Compare against the remaining distance so a large stride cannot wrap.
		if o.stop[i]-o.index[i] > o.stride[i] {
			o.index[i] += o.stride[i]
			return
		}
		o.index[i] = o.start[i]
	}
	o.done = true
}

// Indices returns a copy of the current coordinate tuple.
func (o *Odometer) Indices() []uint64 {
	return append([]uint64(nil), o.index...)
}

// Offset returns the row-major linear offset of the current tuple into a
// buffer shaped by the odometer's shape.
func (o *Odometer) Offset() uint64 {
	var offset uint64
	for i := range o.index {
		offset = offset*o.shape[i] + o.index[i]
	}
	return offset
}

// Avail returns how many tuples remain along the fastest dimension,
// counting the current one. A rank-0 odometer has exactly one.
func (o *Odometer) Avail() uint64 {
	if o.done {
		return 0
	}
	r := len(o.index) - 1
	if r < 0 {
		return 1
	}
	return (o.stop[r]-1-o.index[r])/o.stride[r] + 1
}

// SkipAvail moves the fastest dimension to its last selected position, so
// that the following Next carries into the slower dimensions. Callers use
// it after consuming Avail() contiguous elements in one copy.
func (o *Odometer) SkipAvail() {
	if o.done || len(o.index) == 0 {
		return
	}
	r := len(o.index) - 1
	o.index[r] += (o.Avail() - 1) * o.stride[r]
}

// Count returns the total number of tuples the odometer enumerates.
func (o *Odometer) Count() uint64 {
	total := uint64(1)
	for i := range o.start {
		total *= utils.CeilDiv(o.stop[i]-o.start[i], o.stride[i])
	}
	return total
}
