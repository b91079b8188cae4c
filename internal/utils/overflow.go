package utils

import (
	"fmt"
	"math"
)

// CheckMultiplyOverflow checks if multiplying two uint64 values would overflow.
// Returns an error if overflow would occur.
func CheckMultiplyOverflow(a, b uint64) error {
	if a == 0 || b == 0 {
		return nil // No overflow when either is zero
	}

	if a > math.MaxUint64/b {
		return fmt.Errorf("multiplication overflow: %d * %d exceeds uint64 max", a, b)
	}

	return nil
}

// SafeMultiply multiplies two uint64 values and returns the result if no overflow occurs.
// Returns 0 and an error if overflow would occur.
func SafeMultiply(a, b uint64) (uint64, error) {
	if err := CheckMultiplyOverflow(a, b); err != nil {
		return 0, err
	}
	return a * b, nil
}

// SafeAdd adds two uint64 values and returns the result if no overflow occurs.
func SafeAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, fmt.Errorf("addition overflow: %d + %d exceeds uint64 max", a, b)
	}
	return a + b, nil
}

// CeilDiv returns ceil(x/y) without computing x+y-1, so it cannot overflow.
// y must be non-zero.
func CeilDiv(x, y uint64) uint64 {
	q := x / y
	if q*y != x {
		q++
	}
	return q
}

// CalculateChunkSize64 safely calculates the byte size of a chunk from its
// per-dimension lengths and the element size.
//
// Parameters:
//   - dimensions: chunk length in each dimension (empty means a scalar chunk)
//   - elementSize: bytes per element
//
// Returns an error if the element size is zero or the product overflows.
func CalculateChunkSize64(dimensions []uint64, elementSize uint64) (uint64, error) {
	if elementSize == 0 {
		return 0, fmt.Errorf("element size cannot be zero")
	}

	// Calculate product of all dimensions
	size := uint64(1)
	for i, dim := range dimensions {
		// Check for overflow before multiplication
		if dim > 0 && size > math.MaxUint64/dim {
			return 0, fmt.Errorf("chunk size overflow at dimension %d: dimensions too large", i)
		}

		size *= dim
	}

	// Check element size multiplication
	if size > math.MaxUint64/elementSize {
		return 0, fmt.Errorf("chunk size overflow: total size too large (dims product: %d, elem size: %d)", size, elementSize)
	}

	return size * elementSize, nil
}

// ValidateBufferSize validates that a buffer size is within reasonable limits.
// maxSize parameter allows different limits for different use cases.
func ValidateBufferSize(size, maxSize uint64, description string) error {
	if size == 0 {
		return fmt.Errorf("%s: size cannot be zero", description)
	}

	if size > maxSize {
		return fmt.Errorf("%s: size %d exceeds maximum %d", description, size, maxSize)
	}

	return nil
}

// Common buffer size limits.
const (
	// MaxChunkSize limits a decoded chunk to 1GB (reasonable for in-memory processing).
	MaxChunkSize = 1024 * 1024 * 1024 // 1GB

	// MaxHyperslabElements limits a single transfer to 1 billion elements.
	MaxHyperslabElements = 1_000_000_000
)

// CalculateHyperslabElements calculates total elements in a selection with overflow checking.
// Total elements = product(count[i]) for all dimensions. A zero count yields zero.
func CalculateHyperslabElements(count []uint64) (uint64, error) {
	total := uint64(1)
	for i, c := range count {
		if err := CheckMultiplyOverflow(total, c); err != nil {
			return 0, fmt.Errorf("hyperslab element overflow at dimension %d: %w", i, err)
		}
		total *= c
	}

	if total > MaxHyperslabElements {
		return 0, fmt.Errorf("hyperslab selection: %d elements exceeds maximum %d", total, MaxHyperslabElements)
	}

	return total, nil
}
