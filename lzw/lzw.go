// Package lzw implements an adaptive-dictionary (LZW) codec over bytes.
//
// The dictionary starts with the 256 single-byte phrases and learns one
// phrase per emitted code until it reaches its maximum size, after which it
// is frozen for the rest of the stream (or, with WithRestart, reseeded).
// Encoder and decoder grow their dictionaries in lock-step, so only the code
// array and a small Metadata value need to be stored.
package lzw

import (
	"fmt"

	"github.com/op/go-logging"
	"github.com/seiflotfy/varc/bitpack"
	"github.com/seiflotfy/varc/codec"
)

const logModule = "varc/lzw"

var log = logging.MustGetLogger(logModule)

// Until a program installs its own backend, only warnings and errors from
// this package reach stderr.
func init() {
	logging.SetLevel(logging.WARNING, logModule)
}

// Codec implements codec.Codec. It only holds configuration; every call
// builds its own dictionary, so a Codec may be reused.
type Codec struct {
	config Config
}

var _ codec.Codec = (*Codec)(nil)

// New creates a codec with the given options.
func New(opts ...Option) *Codec {
	return &Codec{config: newConfig(opts)}
}

// Config returns the resolved configuration.
func (c *Codec) Config() Config {
	return c.config
}

// Algorithm implements codec.Codec.
func (c *Codec) Algorithm() codec.Algorithm {
	return codec.LZW
}

// Encode implements codec.Codec. It never fails.
func (c *Codec) Encode(data []byte) (codec.Result, error) {
	meta, payload := encodeWithConfig(data, c.config)
	return codec.Result{Metadata: meta, Payload: payload}, nil
}

// Decode implements codec.Codec. meta must be a Metadata or *Metadata.
func (c *Codec) Decode(meta codec.Metadata, payload []byte) ([]byte, error) {
	switch m := meta.(type) {
	case Metadata:
		return Decode(m, payload)
	case *Metadata:
		if m == nil {
			return nil, fmt.Errorf("%w: nil lzw metadata", codec.ErrInvalidMetadata)
		}
		return Decode(*m, payload)
	default:
		return nil, fmt.Errorf("%w: expected lzw metadata, got %T", codec.ErrInvalidMetadata, meta)
	}
}

// Encode compresses data and returns the metadata needed to decode it.
func Encode(data []byte, opts ...Option) (Metadata, []byte) {
	return encodeWithConfig(data, newConfig(opts))
}

func encodeWithConfig(data []byte, cfg Config) (Metadata, []byte) {
	enc := encodeCodes(data, cfg)

	meta := Metadata{
		Packing:           cfg.Packing,
		Restart:           cfg.Restart,
		MaxDictionarySize: cfg.MaxDictionarySize,
	}
	if len(enc.codes) == 0 {
		return meta, []byte{}
	}

	// A stream of only code 0 still needs one bit per value.
	meta.BitSize = max(1, bitpack.BitLength(enc.maxCode))

	switch cfg.Packing {
	case PackingVariable:
		w := bitpack.NewWriter()
		for i, code := range enc.codes {
			// Widths never exceed 16 bits and codes always fit their width.
			_ = w.WriteBits(uint64(code), enc.widths[i])
		}
		payload, _ := w.Bytes()
		return meta, payload
	default:
		return meta, bitpack.PackFixed(enc.codes, meta.BitSize)
	}
}

// encoding is the code array produced by one pass over the input.
type encoding struct {
	codes    []int
	widths   []uint8 // per-code widths, PackingVariable only
	maxCode  int
	peak     int // largest dictionary size reached
	restarts int
}

// emitter appends codes and tracks the width the decoder will expect for
// each one. The decoder learns its first phrase one code later than the
// encoder, so when it reads code k its next free code is base+k-2.
type emitter struct {
	enc        *encoding
	variable   bool
	base       int
	limit      int
	sinceStart int
}

func (e *emitter) emit(code int) {
	if e.variable {
		next := e.base
		if e.sinceStart > 0 {
			next = min(e.base+e.sinceStart-1, e.limit)
		}
		e.enc.widths = append(e.enc.widths, codeWidth(next, e.limit))
	}
	e.enc.codes = append(e.enc.codes, code)
	e.enc.maxCode = max(e.enc.maxCode, code)
	e.sinceStart++
}

// codeWidth returns the variable-packing width of a code read while the
// decoder's next free code is next. The code may equal next (the KwK case)
// unless the dictionary is full.
func codeWidth(next, limit int) uint8 {
	top := min(next, limit-1)
	return uint8(max(minVariableWidth, bitpack.BitLength(top)))
}

func encodeCodes(data []byte, cfg Config) encoding {
	var enc encoding
	if len(data) == 0 {
		return enc
	}

	base := firstFreeCode(cfg.Restart)
	dict := newEncodeDictionary(base, cfg.MaxDictionarySize)
	em := emitter{
		enc:      &enc,
		variable: cfg.Packing == PackingVariable,
		base:     base,
		limit:    cfg.MaxDictionarySize,
	}
	enc.codes = make([]int, 0, len(data)/2+1)
	enc.peak = dict.Len()

	frozen := false
	w := int(data[0])
	for pos := 1; pos < len(data); pos++ {
		c := data[pos]
		if code, ok := dict.find(w, c); ok {
			w = code
			continue
		}

		em.emit(w)
		if !dict.add(w, c) {
			if cfg.Restart {
				em.emit(restartCode)
				dict.reset()
				em.sinceStart = 0
				enc.restarts++
				log.Debugf("dictionary full at %d entries, restarting at input offset %d", cfg.MaxDictionarySize, pos)
			} else if !frozen {
				frozen = true
				log.Debugf("dictionary frozen at %d entries at input offset %d", dict.Len(), pos)
			}
		}
		enc.peak = max(enc.peak, dict.Len())
		w = int(c)
	}
	em.emit(w)

	return enc
}

// Decode reverses Encode.
//
// It fails with codec.ErrInvalidMetadata when meta does not fit the payload
// and with codec.ErrCorruptStream when a code is neither a known phrase nor
// the next code to be assigned. A zero MaxDictionarySize means
// DefaultDictionarySize.
func Decode(meta Metadata, payload []byte) ([]byte, error) {
	if meta.MaxDictionarySize == 0 {
		meta.MaxDictionarySize = DefaultDictionarySize
	}
	if err := meta.validate(); err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return []byte{}, nil
	}
	if meta.BitSize == 0 {
		return nil, fmt.Errorf("%w: bit size 0 with %d payload bytes", codec.ErrInvalidMetadata, len(payload))
	}

	var src codeSource
	sizeHint := len(payload) * 2
	switch meta.Packing {
	case PackingVariable:
		r, err := bitpack.NewReader(payload)
		if err != nil {
			return nil, err
		}
		src = &variableSource{r: r, bitSize: meta.BitSize, limit: meta.MaxDictionarySize}
	default:
		codes, err := bitpack.UnpackFixed(payload, meta.BitSize)
		if err != nil {
			return nil, err
		}
		src = &fixedSource{codes: codes}
		sizeHint = len(codes) * 2
	}

	out, _, err := decodeCodes(src, meta, sizeHint)
	return out, err
}

// codeSource yields codes one at a time. next is the decoder's next free
// code, which fixes the width of variable-packed codes.
type codeSource interface {
	read(next int) (code int, ok bool, err error)
}

type fixedSource struct {
	codes []int
	pos   int
}

func (s *fixedSource) read(int) (int, bool, error) {
	if s.pos >= len(s.codes) {
		return 0, false, nil
	}
	code := s.codes[s.pos]
	s.pos++
	return code, true, nil
}

type variableSource struct {
	r       *bitpack.Reader
	bitSize int
	limit   int
	count   int
}

func (s *variableSource) read(next int) (int, bool, error) {
	if s.r.Remaining() == 0 {
		return 0, false, nil
	}
	width := codeWidth(next, s.limit)
	if s.r.Remaining() < int(width) {
		return 0, false, fmt.Errorf("%w: %d trailing bits after code %d", codec.ErrCorruptStream, s.r.Remaining(), s.count)
	}
	v, err := s.r.ReadBits(width)
	if err != nil {
		return 0, false, fmt.Errorf("%w: code %d: %v", codec.ErrCorruptStream, s.count, err)
	}
	if v>>uint(s.bitSize) != 0 {
		return 0, false, fmt.Errorf("%w: code %d value %d exceeds bit size %d", codec.ErrInvalidMetadata, s.count, v, s.bitSize)
	}
	s.count++
	return int(v), true, nil
}

// decodeCodes replays dictionary growth while consuming codes. It returns
// the output and the largest dictionary size reached.
func decodeCodes(src codeSource, meta Metadata, sizeHint int) ([]byte, int, error) {
	base := firstFreeCode(meta.Restart)
	limit := meta.MaxDictionarySize
	dict := newDecodeDictionary(base, limit)
	peak := dict.Len()

	out := make([]byte, 0, sizeHint)
	var w span
	started := false
	for i := 0; ; i++ {
		code, ok, err := src.read(dict.next())
		if err != nil {
			return nil, peak, err
		}
		if !ok {
			break
		}

		if meta.Restart && code == restartCode {
			dict.reset()
			started = false
			continue
		}

		if !started {
			if code >= literalCodes {
				return nil, peak, fmt.Errorf("%w: code %d at index %d opens a dictionary but is not a single byte", codec.ErrCorruptStream, code, i)
			}
			w = span{start: len(out), length: 1}
			out = append(out, byte(code))
			started = true
			continue
		}

		start := len(out)
		switch next := dict.next(); {
		case code < literalCodes:
			out = append(out, byte(code))
		case code < next:
			s, ok := dict.lookup(code)
			if !ok {
				return nil, peak, fmt.Errorf("%w: reserved code %d at index %d", codec.ErrCorruptStream, code, i)
			}
			out = append(out, out[s.start:s.start+s.length]...)
		case code == next && next < limit:
			// The phrase being defined by this very code: w + w[0].
			out = append(out, out[w.start:w.start+w.length]...)
			out = append(out, out[w.start])
		default:
			return nil, peak, fmt.Errorf("%w: unknown code %d at index %d (next code %d)", codec.ErrCorruptStream, code, i, next)
		}

		// w followed by the first byte of the new entry is contiguous in out.
		dict.add(span{start: w.start, length: w.length + 1})
		peak = max(peak, dict.Len())
		w = span{start: start, length: len(out) - start}
	}

	return out, peak, nil
}
