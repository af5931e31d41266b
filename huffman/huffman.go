// Package huffman implements a static Huffman codec over bytes.
//
// The codebook is derived from the byte frequencies of the input and is
// returned alongside the payload; the payload is the concatenated codes,
// packed MSB-first behind a one-byte padding header (see package bitpack).
package huffman

import (
	"fmt"
	"io"

	"github.com/op/go-logging"
	"github.com/seiflotfy/varc/bitpack"
	"github.com/seiflotfy/varc/codec"
)

const logModule = "varc/huffman"

var log = logging.MustGetLogger(logModule)

// Until a program installs its own backend, only warnings and errors from
// this package reach stderr.
func init() {
	logging.SetLevel(logging.WARNING, logModule)
}

// Config holds codec options.
type Config struct {
	// Cache, when set, reuses codebooks across inputs with identical byte
	// frequencies.
	Cache *CodebookCache
}

// Option configures a Codec.
type Option func(*Config)

// WithCache attaches a codebook cache.
func WithCache(cache *CodebookCache) Option {
	return func(c *Config) {
		c.Cache = cache
	}
}

// Codec implements codec.Codec.
type Codec struct {
	config Config
}

var _ codec.Codec = (*Codec)(nil)

// New creates a codec with the given options.
func New(opts ...Option) *Codec {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Codec{config: cfg}
}

// Algorithm implements codec.Codec.
func (c *Codec) Algorithm() codec.Algorithm {
	return codec.Huffman
}

// Encode implements codec.Codec. The result metadata is a Codebook.
func (c *Codec) Encode(data []byte) (codec.Result, error) {
	var cb Codebook
	if c.config.Cache != nil {
		cb = c.config.Cache.Codebook(Frequencies(data))
	}
	cb, payload, err := Encode(data, cb)
	if err != nil {
		return codec.Result{}, err
	}
	return codec.Result{Metadata: cb, Payload: payload}, nil
}

// Decode implements codec.Codec. meta must be a Codebook or *Codebook.
func (c *Codec) Decode(meta codec.Metadata, payload []byte) ([]byte, error) {
	switch m := meta.(type) {
	case Codebook:
		return Decode(m, payload)
	case *Codebook:
		if m == nil {
			return nil, fmt.Errorf("%w: nil codebook", codec.ErrInvalidMetadata)
		}
		return Decode(*m, payload)
	default:
		return nil, fmt.Errorf("%w: expected huffman codebook, got %T", codec.ErrInvalidMetadata, meta)
	}
}

// compiledCode is a code ready for bitpack.Writer.WriteBits. Codes longer
// than 64 bits keep their string form.
type compiledCode struct {
	bits uint64
	n    uint8
	long string
	ok   bool
}

func compile(cb Codebook) (*[256]compiledCode, error) {
	if err := cb.Validate(); err != nil {
		return nil, err
	}
	var table [256]compiledCode
	for sym, code := range cb {
		cc := compiledCode{ok: true}
		if len(code) > 64 {
			cc.long = code
		} else {
			for i := 0; i < len(code); i++ {
				cc.bits = cc.bits<<1 | uint64(code[i]-'0')
			}
			cc.n = uint8(len(code))
		}
		table[sym] = cc
	}
	return &table, nil
}

// Encode compresses data. When cb is nil a codebook is built from data;
// otherwise cb is validated and must cover every byte of data. The codebook
// used is returned with the payload.
func Encode(data []byte, cb Codebook) (Codebook, []byte, error) {
	if cb == nil {
		cb, _ = BuildCodebook(data)
	}
	table, err := compile(cb)
	if err != nil {
		return nil, nil, err
	}
	if len(data) == 0 {
		return cb, []byte{}, nil
	}

	w := bitpack.NewWriter()
	for i, b := range data {
		cc := &table[b]
		if !cc.ok {
			return nil, nil, fmt.Errorf("%w: symbol %d at offset %d has no code", codec.ErrInvalidMetadata, b, i)
		}
		if cc.long != "" {
			err = w.WriteCode(cc.long)
		} else {
			err = w.WriteBits(cc.bits, cc.n)
		}
		if err != nil {
			return nil, nil, err
		}
	}
	payload, err := w.Bytes()
	if err != nil {
		return nil, nil, err
	}
	log.Debugf("encoded %d bytes with %d symbols into %d payload bytes", len(data), len(cb), len(payload))
	return cb, payload, nil
}

// Decode reverses Encode.
//
// It fails with codec.ErrInvalidMetadata when cb is not a valid prefix code
// and with codec.ErrCorruptStream when the padding header is malformed or the
// bits do not split exactly into codes of cb.
func Decode(cb Codebook, payload []byte) ([]byte, error) {
	d, err := newDecoder(cb)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return []byte{}, nil
	}
	r, err := bitpack.NewReader(payload)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, r.Remaining()/2+1)
	cur := int32(0)
	consumed := 0
	for {
		bit, err := r.ReadBit()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", codec.ErrCorruptStream, err)
		}
		consumed++

		idx := 0
		if bit {
			idx = 1
		}
		next := d.nodes[cur].child[idx]
		if next == 0 {
			return nil, fmt.Errorf("%w: bit %d does not continue any code", codec.ErrCorruptStream, consumed-1)
		}
		if n := &d.nodes[next]; n.leaf {
			out = append(out, n.symbol)
			cur = 0
			continue
		}
		cur = next
	}
	if cur != 0 {
		return nil, fmt.Errorf("%w: trailing bits do not form a code", codec.ErrCorruptStream)
	}
	return out, nil
}
