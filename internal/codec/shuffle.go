package codec

import (
	"encoding/binary"
	"fmt"
)

// ShuffleCodec implements byte shuffle.
//
// The shuffle reorders bytes to improve compression ratios for numeric
// data by transposing byte order from element-by-element to byte-by-byte.
//
// For example, with 4-byte integers [A1 A2 A3 A4][B1 B2 B3 B4][C1 C2 C3 C4]:
//
//	Original: [A1 A2 A3 A4 B1 B2 B3 B4 C1 C2 C3 C4]
//	Shuffled: [A1 B1 C1 A2 B2 C2 A3 B3 C3 A4 B4 C4]
//
// Shuffle belongs before a compressor in the pipeline.
type ShuffleCodec struct {
	elementSize int
}

// NewShuffleCodec creates a shuffle codec for elements of elementSize bytes.
func NewShuffleCodec(elementSize int) (*ShuffleCodec, error) {
	if elementSize < 1 {
		return nil, fmt.Errorf("shuffle element size must be >= 1, got %d", elementSize)
	}
	return &ShuffleCodec{elementSize: elementSize}, nil
}

// ID implements Codec.
func (c *ShuffleCodec) ID() string { return IDShuffle }

// Encode groups byte k of every element together, for k = 0..elementSize-1.
func (c *ShuffleCodec) Encode(data []byte) ([]byte, error) {
	n := len(data)
	if n == 0 || c.elementSize == 1 {
		return data, nil
	}
	if n%c.elementSize != 0 {
		return nil, fmt.Errorf("data length %d not multiple of element size %d", n, c.elementSize)
	}

	numElements := n / c.elementSize
	shuffled := make([]byte, n)
	for byteIndex := 0; byteIndex < c.elementSize; byteIndex++ {
		for elemIndex := 0; elemIndex < numElements; elemIndex++ {
			shuffled[byteIndex*numElements+elemIndex] = data[elemIndex*c.elementSize+byteIndex]
		}
	}
	return shuffled, nil
}

// Decode reverses Encode.
func (c *ShuffleCodec) Decode(data []byte) ([]byte, error) {
	n := len(data)
	if n == 0 || c.elementSize == 1 {
		return data, nil
	}
	if n%c.elementSize != 0 {
		return nil, fmt.Errorf("data length %d not multiple of element size %d", n, c.elementSize)
	}

	numElements := n / c.elementSize
	unshuffled := make([]byte, n)
	for byteIndex := 0; byteIndex < c.elementSize; byteIndex++ {
		for elemIndex := 0; elemIndex < numElements; elemIndex++ {
			unshuffled[elemIndex*c.elementSize+byteIndex] = data[byteIndex*numElements+elemIndex]
		}
	}
	return unshuffled, nil
}

// Fletcher32Codec appends a Fletcher32 checksum on encode and verifies and
// strips it on decode.
type Fletcher32Codec struct{}

// NewFletcher32Codec creates a checksum codec.
func NewFletcher32Codec() *Fletcher32Codec { return &Fletcher32Codec{} }

// ID implements Codec.
func (c *Fletcher32Codec) ID() string { return IDFletcher32 }

// Encode returns data followed by its 4-byte little-endian checksum.
func (c *Fletcher32Codec) Encode(data []byte) ([]byte, error) {
	result := make([]byte, len(data)+4)
	copy(result, data)
	binary.LittleEndian.PutUint32(result[len(data):], fletcher32(data))
	return result, nil
}

// Decode verifies the trailing checksum and returns the payload.
func (c *Fletcher32Codec) Decode(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("data too short for fletcher32: %d bytes", len(data))
	}
	n := len(data) - 4
	stored := binary.LittleEndian.Uint32(data[n:])
	if calc := fletcher32(data[:n]); calc != stored {
		return nil, fmt.Errorf("fletcher32 checksum mismatch: stored=%08x, calculated=%08x", stored, calc)
	}
	return data[:n], nil
}

// fletcher32 sums little-endian 16-bit words modulo 65535; an odd trailing
// byte is taken as a word with a zero high byte.
func fletcher32(data []byte) uint32 {
	var sum1, sum2 uint32
	i := 0
	for ; i+1 < len(data); i += 2 {
		sum1 = (sum1 + (uint32(data[i]) | uint32(data[i+1])<<8)) % 65535
		sum2 = (sum2 + sum1) % 65535
	}
	if i < len(data) {
		sum1 = (sum1 + uint32(data[i])) % 65535
		sum2 = (sum2 + sum1) % 65535
	}
	return (sum2 << 16) | sum1
}
