// Package varc ties the lzw and huffman codecs together behind one registry
// and persists their output as self-describing archive files.
//
// Each codec lives in its own package and can be used directly. This package
// adds algorithm lookup by name or file extension, the Archive container
// that stores metadata, payload and the original file extension, and the
// EncodeFile/DecodeFile helpers used by cmd/varc.
package varc

import (
	"fmt"

	"github.com/op/go-logging"
	"github.com/seiflotfy/varc/codec"
	"github.com/seiflotfy/varc/huffman"
	"github.com/seiflotfy/varc/lzw"
)

const logModule = "varc"

var log = logging.MustGetLogger(logModule)

// Until a program installs its own backend, only warnings and errors from
// this package reach stderr.
func init() {
	logging.SetLevel(logging.WARNING, logModule)
}

// Config holds per-codec options.
type Config struct {
	LZW     []lzw.Option
	Huffman []huffman.Option
}

// Option is a functional option for configuring codecs built by New.
type Option func(*Config)

// WithLZW appends options for the LZW codec.
func WithLZW(opts ...lzw.Option) Option {
	return func(c *Config) {
		c.LZW = append(c.LZW, opts...)
	}
}

// WithHuffman appends options for the Huffman codec.
func WithHuffman(opts ...huffman.Option) Option {
	return func(c *Config) {
		c.Huffman = append(c.Huffman, opts...)
	}
}

func newConfig(opts []Option) Config {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// New returns the codec registered for alg.
func New(alg codec.Algorithm, opts ...Option) (codec.Codec, error) {
	cfg := newConfig(opts)
	switch alg {
	case codec.LZW:
		return lzw.New(cfg.LZW...), nil
	case codec.Huffman:
		return huffman.New(cfg.Huffman...), nil
	default:
		return nil, fmt.Errorf("%w: %q", codec.ErrUnknownAlgorithm, string(alg))
	}
}

// ForExtension returns the codec for an archive file extension such as
// ".lzw" or "huf".
func ForExtension(ext string, opts ...Option) (codec.Codec, error) {
	alg, err := codec.ParseAlgorithm(ext)
	if err != nil {
		return nil, err
	}
	return New(alg, opts...)
}
