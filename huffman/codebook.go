package huffman

import (
	"fmt"
	"sort"

	"github.com/seiflotfy/varc/bitpack"
	"github.com/seiflotfy/varc/codec"
)

// Codebook maps each symbol to its code, a string of '0' and '1'.
// It is the metadata a Huffman payload needs to be decoded.
type Codebook map[byte]string

// ReverseCodebook maps each code back to its symbol.
type ReverseCodebook map[string]byte

var _ codec.Metadata = Codebook(nil)

// Algorithm implements codec.Metadata.
func (Codebook) Algorithm() codec.Algorithm {
	return codec.Huffman
}

// BuildCodebook counts the bytes of data, builds the Huffman tree and returns
// the codebook together with its inverse.
func BuildCodebook(data []byte) (Codebook, ReverseCodebook) {
	cb := BuildTree(Frequencies(data)).Codebook()
	return cb, cb.Reverse()
}

// Reverse returns the inverse mapping.
func (cb Codebook) Reverse() ReverseCodebook {
	rev := make(ReverseCodebook, len(cb))
	for sym, code := range cb {
		rev[code] = sym
	}
	return rev
}

// Validate reports whether cb can encode and decode unambiguously: every
// code is a non-empty string of '0'/'1' and no code is a prefix of another.
func (cb Codebook) Validate() error {
	_, err := newDecoder(cb)
	return err
}

// symbols returns the symbols of cb in ascending order.
func (cb Codebook) symbols() []byte {
	syms := make([]byte, 0, len(cb))
	for sym := range cb {
		syms = append(syms, sym)
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i] < syms[j] })
	return syms
}

// MarshalBinary encodes the codebook as
//
//	count = uint16 little-endian
//	repeat count times, in ascending symbol order:
//	  symbol = uint8
//	  bits   = uint8 (code length, 1..255)
//	  code   = ceil(bits/8) bytes, MSB first, zero padded
func (cb Codebook) MarshalBinary() ([]byte, error) {
	if len(cb) > 256 {
		return nil, fmt.Errorf("%w: %d codebook entries", codec.ErrInvalidMetadata, len(cb))
	}
	out := make([]byte, 2, 2+len(cb)*4)
	out[0] = byte(len(cb))
	out[1] = byte(len(cb) >> 8)

	for _, sym := range cb.symbols() {
		code := cb[sym]
		if len(code) == 0 || len(code) > 255 {
			return nil, fmt.Errorf("%w: code for symbol %d has length %d", codec.ErrInvalidMetadata, sym, len(code))
		}
		padded := code
		if extra := bitpack.PaddingFor(len(code)); extra > 0 {
			padded += "00000000"[:extra]
		}
		packed, err := bitpack.PackString(padded)
		if err != nil {
			return nil, fmt.Errorf("%w: code for symbol %d: %v", codec.ErrInvalidMetadata, sym, err)
		}
		out = append(out, sym, byte(len(code)))
		out = append(out, packed...)
	}
	return out, nil
}

// UnmarshalBinary decodes a codebook written by MarshalBinary and checks
// that it is prefix-free.
func (cb *Codebook) UnmarshalBinary(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("%w: codebook too short: %d bytes", codec.ErrInvalidMetadata, len(data))
	}
	count := int(data[0]) | int(data[1])<<8
	if count > 256 {
		return fmt.Errorf("%w: %d codebook entries", codec.ErrInvalidMetadata, count)
	}

	tmp := make(Codebook, count)
	pos := 2
	for i := 0; i < count; i++ {
		if pos+2 > len(data) {
			return fmt.Errorf("%w: codebook entry %d truncated", codec.ErrInvalidMetadata, i)
		}
		sym, bits := data[pos], int(data[pos+1])
		pos += 2
		if bits == 0 {
			return fmt.Errorf("%w: empty code for symbol %d", codec.ErrInvalidMetadata, sym)
		}
		n := (bits + 7) / 8
		if pos+n > len(data) {
			return fmt.Errorf("%w: code for symbol %d truncated", codec.ErrInvalidMetadata, sym)
		}
		if _, dup := tmp[sym]; dup {
			return fmt.Errorf("%w: duplicate symbol %d", codec.ErrInvalidMetadata, sym)
		}
		tmp[sym] = bitpack.UnpackString(data[pos : pos+n])[:bits]
		pos += n
	}
	if pos != len(data) {
		return fmt.Errorf("%w: %d trailing codebook bytes", codec.ErrInvalidMetadata, len(data)-pos)
	}
	if err := tmp.Validate(); err != nil {
		return err
	}
	*cb = tmp
	return nil
}

// decoder is the codebook as a binary trie. Walking it bit by bit and
// emitting at each leaf is greedy prefix matching against the reverse
// codebook.
type decoder struct {
	nodes []trieNode
}

type trieNode struct {
	child  [2]int32 // 0 = absent; the root is never a child
	symbol byte
	leaf   bool
}

func newDecoder(cb Codebook) (*decoder, error) {
	d := &decoder{nodes: make([]trieNode, 1, 2*len(cb)+1)}
	for _, sym := range cb.symbols() {
		code := cb[sym]
		if code == "" {
			return nil, fmt.Errorf("%w: empty code for symbol %d", codec.ErrInvalidMetadata, sym)
		}
		cur := int32(0)
		for i := 0; i < len(code); i++ {
			if d.nodes[cur].leaf {
				return nil, fmt.Errorf("%w: code %q for symbol %d has another code as prefix", codec.ErrInvalidMetadata, code, sym)
			}
			var bit int
			switch code[i] {
			case '0':
				bit = 0
			case '1':
				bit = 1
			default:
				return nil, fmt.Errorf("%w: code %q for symbol %d has invalid bit %q", codec.ErrInvalidMetadata, code, sym, code[i])
			}
			next := d.nodes[cur].child[bit]
			if next == 0 {
				d.nodes = append(d.nodes, trieNode{})
				next = int32(len(d.nodes) - 1)
				d.nodes[cur].child[bit] = next
			}
			cur = next
		}
		n := &d.nodes[cur]
		if n.leaf || n.child[0] != 0 || n.child[1] != 0 {
			return nil, fmt.Errorf("%w: code %q for symbol %d is a prefix of another code", codec.ErrInvalidMetadata, code, sym)
		}
		n.leaf = true
		n.symbol = sym
	}
	return d, nil
}
