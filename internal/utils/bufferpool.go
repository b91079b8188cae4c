// Package utils provides shared helpers for the chunk layer: contextual
// errors, overflow-checked arithmetic and pooled chunk buffers.
package utils

import "sync"

var bufferPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, 0, 64*1024)
	},
}

// GetBuffer returns a byte slice of length size from the pool.
// The contents are unspecified; callers that need a defined value must
// initialize it, e.g. with FillBuffer.
func GetBuffer(size int) []byte {
	buf := bufferPool.Get().([]byte)
	if cap(buf) < size {
		return make([]byte, size)
	}
	return buf[:size]
}

// ReleaseBuffer returns a buffer to the pool.
// The caller must not retain any reference to buf afterwards.
func ReleaseBuffer(buf []byte) {
	if buf == nil {
		return
	}
	//nolint:staticcheck // SA6002: slice descriptor copy is acceptable for sync.Pool
	bufferPool.Put(buf[:0])
}

// FillBuffer repeats pattern across buf. A nil or empty pattern zeroes buf.
// A trailing partial pattern is written when len(buf) is not a multiple
// of len(pattern).
func FillBuffer(buf, pattern []byte) {
	if len(pattern) == 0 {
		clear(buf)
		return
	}
	if len(buf) == 0 {
		return
	}
	n := copy(buf, pattern)
	// Doubling copy: each pass copies everything written so far.
	for n < len(buf) {
		n += copy(buf[n:], buf[:n])
	}
}
