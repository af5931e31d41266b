package bitpack

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/seiflotfy/varc/codec"
)

// Pad appends PaddingFor(len(bits)) zero bits to bits and prefixes the result
// with the padding count as an 8-bit binary string. The result length is
// always a multiple of 8.
func Pad(bits string) string {
	extra := PaddingFor(len(bits))
	var sb strings.Builder
	sb.Grow(8 + len(bits) + extra)
	sb.WriteString(byteString(byte(extra)))
	sb.WriteString(bits)
	sb.WriteString(strings.Repeat("0", extra))
	return sb.String()
}

// Unpad reverses Pad.
func Unpad(padded string) (string, error) {
	if len(padded) < 8 || len(padded)%8 != 0 {
		return "", fmt.Errorf("%w: padded length %d is not a whole number of bytes", codec.ErrCorruptStream, len(padded))
	}
	extra, err := strconv.ParseUint(padded[:8], 2, 8)
	if err != nil {
		return "", fmt.Errorf("%w: padding byte %q: %v", codec.ErrCorruptStream, padded[:8], err)
	}
	body := padded[8:]
	if extra > legacyFullPadding || int(extra) > len(body) {
		return "", fmt.Errorf("%w: padding count %d exceeds %d payload bits", codec.ErrCorruptStream, extra, len(body))
	}
	tail := body[len(body)-int(extra):]
	if strings.ContainsRune(tail, '1') {
		return "", fmt.Errorf("%w: non-zero padding bits", codec.ErrCorruptStream)
	}
	return body[:len(body)-int(extra)], nil
}

// PackString packs a string of '0'/'1' characters whose length is a multiple
// of 8 into bytes, MSB first.
func PackString(bits string) ([]byte, error) {
	if len(bits)%8 != 0 {
		return nil, fmt.Errorf("bitpack: %d bits do not fill whole bytes", len(bits))
	}
	out := make([]byte, len(bits)/8)
	for i := range out {
		v, err := parseBits(bits[i*8 : i*8+8])
		if err != nil {
			return nil, err
		}
		out[i] = byte(v)
	}
	return out, nil
}

// UnpackString expands each byte into 8 '0'/'1' characters, MSB first.
func UnpackString(data []byte) string {
	var sb strings.Builder
	sb.Grow(len(data) * 8)
	for _, b := range data {
		sb.WriteString(byteString(b))
	}
	return sb.String()
}

func byteString(b byte) string {
	s := strconv.FormatUint(uint64(b), 2)
	return strings.Repeat("0", 8-len(s)) + s
}
