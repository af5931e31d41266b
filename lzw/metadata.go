package lzw

import (
	"encoding/binary"
	"fmt"

	"github.com/seiflotfy/varc/bitpack"
	"github.com/seiflotfy/varc/codec"
)

const (
	metadataLen = 7

	flagRestart = 1 << 0
)

// Metadata is everything besides the payload that Decode needs.
type Metadata struct {
	BitSize           int     // Bit length of the largest emitted code (0 for empty input)
	Packing           Packing // Payload layout
	Restart           bool    // Code 256 is a restart marker
	MaxDictionarySize int     // Dictionary cap used while encoding
}

// Algorithm implements codec.Metadata.
func (Metadata) Algorithm() codec.Algorithm {
	return codec.LZW
}

// validate checks the fields against each other, not against a payload.
func (m Metadata) validate() error {
	if m.Packing != PackingFixed && m.Packing != PackingVariable {
		return fmt.Errorf("%w: unknown packing %d", codec.ErrInvalidMetadata, m.Packing)
	}
	if m.BitSize < 0 || m.BitSize > bitpack.MaxFixedBitSize {
		return fmt.Errorf("%w: bit size %d out of range", codec.ErrInvalidMetadata, m.BitSize)
	}
	if lo := firstFreeCode(m.Restart) + 1; m.MaxDictionarySize < lo || m.MaxDictionarySize > MaxDictionarySize {
		return fmt.Errorf("%w: dictionary size %d out of range [%d, %d]", codec.ErrInvalidMetadata, m.MaxDictionarySize, lo, MaxDictionarySize)
	}
	if m.BitSize > bitpack.BitLength(m.MaxDictionarySize-1) {
		return fmt.Errorf("%w: bit size %d too wide for dictionary size %d", codec.ErrInvalidMetadata, m.BitSize, m.MaxDictionarySize)
	}
	return nil
}

// MarshalBinary encodes the metadata as
//
//	packing  = uint8
//	flags    = uint8 (bit 0: restart)
//	bitSize  = uint8
//	maxSize  = uint32 little-endian
func (m Metadata) MarshalBinary() ([]byte, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, metadataLen)
	buf[0] = byte(m.Packing)
	if m.Restart {
		buf[1] |= flagRestart
	}
	buf[2] = byte(m.BitSize)
	binary.LittleEndian.PutUint32(buf[3:], uint32(m.MaxDictionarySize))
	return buf, nil
}

// UnmarshalBinary decodes metadata written by MarshalBinary.
func (m *Metadata) UnmarshalBinary(data []byte) error {
	if len(data) != metadataLen {
		return fmt.Errorf("%w: lzw metadata length %d, want %d", codec.ErrInvalidMetadata, len(data), metadataLen)
	}
	if data[1]&^flagRestart != 0 {
		return fmt.Errorf("%w: unknown lzw flags %#x", codec.ErrInvalidMetadata, data[1])
	}
	tmp := Metadata{
		Packing:           Packing(data[0]),
		Restart:           data[1]&flagRestart != 0,
		BitSize:           int(data[2]),
		MaxDictionarySize: int(binary.LittleEndian.Uint32(data[3:])),
	}
	if err := tmp.validate(); err != nil {
		return err
	}
	*m = tmp
	return nil
}
