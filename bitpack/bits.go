// Package bitpack converts between bit sequences and byte sequences.
//
// Two strategies live here and must not be conflated. The padded bit stream
// (Writer, Reader, Pad, Unpad) packs variable-length codes MSB-first and
// prefixes them with one byte holding the number of zero bits appended at
// the tail. The fixed-width integer packer (PackFixed, UnpackFixed) stores
// every value in the same number of little-endian bytes.
package bitpack

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/icza/bitio"
	"github.com/seiflotfy/varc/codec"
)

// legacyFullPadding is the padding count written by encoders that always
// append at least one bit, even to an already byte-aligned payload.
const legacyFullPadding = 8

var errWriterClosed = errors.New("bitpack: writer closed")

// PaddingFor returns the number of zero bits needed to round n up to a
// multiple of 8.
func PaddingFor(n int) int {
	return (8 - n%8) % 8
}

// Writer accumulates bits MSB-first and produces a padded bit stream.
// The zero value is not usable; call NewWriter.
type Writer struct {
	buf bytes.Buffer
	bw  *bitio.Writer
	n   int
	err error
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	w := &Writer{}
	w.bw = bitio.NewWriter(&w.buf)
	return w
}

// Len reports the number of payload bits written so far.
func (w *Writer) Len() int {
	return w.n
}

// WriteBits appends the n low bits of v, most significant first.
func (w *Writer) WriteBits(v uint64, n uint8) error {
	if w.err != nil {
		return w.err
	}
	if n > 64 {
		w.err = fmt.Errorf("bitpack: cannot write %d bits at once", n)
		return w.err
	}
	if n == 0 {
		return nil
	}
	if n < 64 {
		v &= 1<<n - 1
	}
	if err := w.bw.WriteBits(v, n); err != nil {
		w.err = err
		return err
	}
	w.n += int(n)
	return nil
}

// WriteCode appends a code given as a string of '0' and '1' characters.
func (w *Writer) WriteCode(code string) error {
	for len(code) > 0 {
		chunk := code
		if len(chunk) > 64 {
			chunk = chunk[:64]
		}
		v, err := parseBits(chunk)
		if err != nil {
			return err
		}
		if err := w.WriteBits(v, uint8(len(chunk))); err != nil {
			return err
		}
		code = code[len(chunk):]
	}
	return nil
}

// Bytes finishes the stream and returns the padding byte followed by the
// packed payload. The Writer must not be used afterwards.
func (w *Writer) Bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	// Close flushes the partial byte with zero bits.
	if err := w.bw.Close(); err != nil {
		w.err = err
		return nil, err
	}
	w.err = errWriterClosed

	out := make([]byte, 1+w.buf.Len())
	out[0] = byte(PaddingFor(w.n))
	copy(out[1:], w.buf.Bytes())
	return out, nil
}

// Reader reads the payload bits of a padded bit stream.
type Reader struct {
	br        *bitio.Reader
	remaining int
}

// NewReader validates the padding byte of packed and returns a Reader
// positioned at the first payload bit.
func NewReader(packed []byte) (*Reader, error) {
	if len(packed) == 0 {
		return nil, fmt.Errorf("%w: missing padding byte", codec.ErrCorruptStream)
	}
	extra := int(packed[0])
	payload := packed[1:]
	if extra > legacyFullPadding {
		return nil, fmt.Errorf("%w: padding count %d out of range", codec.ErrCorruptStream, extra)
	}
	if extra > len(payload)*8 {
		return nil, fmt.Errorf("%w: padding count %d exceeds %d payload bits", codec.ErrCorruptStream, extra, len(payload)*8)
	}
	if extra > 0 {
		last := payload[len(payload)-1]
		if last&byte(1<<extra-1) != 0 {
			return nil, fmt.Errorf("%w: non-zero padding bits", codec.ErrCorruptStream)
		}
	}

	return &Reader{
		br:        bitio.NewReader(bytes.NewReader(payload)),
		remaining: len(payload)*8 - extra,
	}, nil
}

// Remaining reports the number of unread payload bits.
func (r *Reader) Remaining() int {
	return r.remaining
}

// ReadBit returns the next payload bit, or io.EOF once the payload is
// exhausted. Padding bits are never returned.
func (r *Reader) ReadBit() (bool, error) {
	if r.remaining == 0 {
		return false, io.EOF
	}
	b, err := r.br.ReadBool()
	if err != nil {
		return false, err
	}
	r.remaining--
	return b, nil
}

// ReadBits returns the next n payload bits as the low bits of a uint64.
// It returns io.ErrUnexpectedEOF if fewer than n bits remain.
func (r *Reader) ReadBits(n uint8) (uint64, error) {
	if n > 64 {
		return 0, fmt.Errorf("bitpack: cannot read %d bits at once", n)
	}
	if int(n) > r.remaining {
		return 0, io.ErrUnexpectedEOF
	}
	if n == 0 {
		return 0, nil
	}
	v, err := r.br.ReadBits(n)
	if err != nil {
		return 0, err
	}
	r.remaining -= int(n)
	return v, nil
}

func parseBits(s string) (uint64, error) {
	var v uint64
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '0':
			v <<= 1
		case '1':
			v = v<<1 | 1
		default:
			return 0, fmt.Errorf("bitpack: invalid bit %q at position %d", s[i], i)
		}
	}
	return v, nil
}
