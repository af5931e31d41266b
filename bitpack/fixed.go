package bitpack

import (
	"fmt"
	"math/bits"

	"github.com/seiflotfy/varc/codec"
)

// MaxFixedBitSize is the widest value UnpackFixed accepts.
const MaxFixedBitSize = 32

// BitLength returns the number of bits needed to represent n (0 for 0).
func BitLength(n int) int {
	return bits.Len(uint(n))
}

// ByteWidth returns the number of bytes used per value for bitSize.
func ByteWidth(bitSize int) int {
	return (bitSize + 7) / 8
}

// PackFixed stores every value as a little-endian integer of
// ByteWidth(bitSize) bytes. Values must be non-negative and fit in bitSize
// bits; higher bits are dropped.
func PackFixed(values []int, bitSize int) []byte {
	width := ByteWidth(bitSize)
	out := make([]byte, 0, len(values)*width)
	for _, v := range values {
		u := uint32(v)
		for j := 0; j < width; j++ {
			out = append(out, byte(u))
			u >>= 8
		}
	}
	return out
}

// UnpackFixed reverses PackFixed. It fails with codec.ErrInvalidMetadata when
// bitSize is out of range, when the payload length is not a multiple of the
// value width, or when a value does not fit in bitSize bits.
func UnpackFixed(payload []byte, bitSize int) ([]int, error) {
	if bitSize < 0 || bitSize > MaxFixedBitSize {
		return nil, fmt.Errorf("%w: bit size %d out of range [0, %d]", codec.ErrInvalidMetadata, bitSize, MaxFixedBitSize)
	}
	if bitSize == 0 {
		if len(payload) != 0 {
			return nil, fmt.Errorf("%w: bit size 0 with %d payload bytes", codec.ErrInvalidMetadata, len(payload))
		}
		return nil, nil
	}

	width := ByteWidth(bitSize)
	if len(payload)%width != 0 {
		return nil, fmt.Errorf("%w: payload length %d is not a multiple of %d-byte values (bit size %d)", codec.ErrInvalidMetadata, len(payload), width, bitSize)
	}

	limit := uint64(1) << bitSize
	values := make([]int, len(payload)/width)
	for i := range values {
		var u uint64
		chunk := payload[i*width : (i+1)*width]
		for j := width - 1; j >= 0; j-- {
			u = u<<8 | uint64(chunk[j])
		}
		if u >= limit {
			return nil, fmt.Errorf("%w: value %d at index %d exceeds bit size %d", codec.ErrInvalidMetadata, u, i, bitSize)
		}
		values[i] = int(u)
	}
	return values, nil
}
