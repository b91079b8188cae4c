package nczarr

import "errors"

// Planning errors. Every error returned by Plan, NewSlice, NewOdometer and
// the projection builders wraps exactly one of these, so callers can test
// with errors.Is.
var (
	// ErrInvalidSlice reports a malformed per-dimension request: zero stride,
	// start after stop, an inconsistent Len, or a selection past the
	// dimension length.
	ErrInvalidSlice = errors.New("invalid slice")

	// ErrRankMismatch reports that the slice count, chunk shape and array
	// shape disagree on the number of dimensions.
	ErrRankMismatch = errors.New("rank mismatch")

	// ErrInvalidArgument reports a zero chunk length, a zero element size or
	// an extent whose offset arithmetic would overflow uint64.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnknownVariable is returned by a ShapeProvider that cannot resolve
	// the requested variable.
	ErrUnknownVariable = errors.New("unknown variable")
)
