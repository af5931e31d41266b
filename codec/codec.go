// Package codec defines the contract shared by the varc compression codecs.
package codec

import (
	"errors"
	"fmt"
)

// Algorithm identifies a codec. Its value doubles as the file extension
// (without the dot) of archives produced with that codec.
type Algorithm string

const (
	LZW     Algorithm = "lzw"
	Huffman Algorithm = "huf"
)

// Algorithms lists every supported algorithm in a stable order.
var Algorithms = []Algorithm{LZW, Huffman}

var (
	// ErrCorruptStream indicates a payload with no valid interpretation.
	ErrCorruptStream = errors.New("corrupt stream")
	// ErrInvalidMetadata indicates metadata that is inconsistent with the payload.
	ErrInvalidMetadata = errors.New("invalid metadata")
	// ErrUnknownAlgorithm indicates an algorithm name or extension with no codec.
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
)

// ParseAlgorithm maps a name such as "lzw" or "huf" (case-sensitive, with or
// without a leading dot) to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	if len(name) > 0 && name[0] == '.' {
		name = name[1:]
	}
	for _, alg := range Algorithms {
		if string(alg) == name {
			return alg, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
}

// Ext returns the file extension, including the dot, for archives of alg.
func (alg Algorithm) Ext() string {
	return "." + string(alg)
}

// Metadata is the algorithm-specific information that must travel with a
// payload for it to be decoded.
type Metadata interface {
	Algorithm() Algorithm
}

// Result is the output of an Encode call.
type Result struct {
	Metadata Metadata
	Payload  []byte
}

// Codec compresses and decompresses whole byte slices.
//
// Implementations hold only configuration; dictionaries and codebooks are
// built per call. Decode(Encode(d)) must return d byte for byte.
type Codec interface {
	Algorithm() Algorithm
	Encode(data []byte) (Result, error)
	Decode(meta Metadata, payload []byte) ([]byte, error)
}
