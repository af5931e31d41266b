package lzw

import "fmt"

const (
	literalCodes          = 256   // literalCodes is the number of single-byte phrases (codes 0-255)
	restartCode           = 256   // restartCode is reserved when restart mode is enabled
	DefaultDictionarySize = 4096  // DefaultDictionarySize is the 12-bit code space
	MaxDictionarySize     = 65536 // MaxDictionarySize keeps every code below 1<<16
	minVariableWidth      = 9
)

// Packing selects how the code array is stored in the payload.
type Packing uint8

const (
	// PackingFixed stores every code as a little-endian integer whose width is
	// set by the largest code in the stream.
	PackingFixed Packing = iota
	// PackingVariable stores codes MSB-first in a padded bit stream, each code
	// as wide as the decoder's dictionary needs at that point.
	PackingVariable
)

func (p Packing) String() string {
	switch p {
	case PackingFixed:
		return "fixed"
	case PackingVariable:
		return "variable"
	default:
		return fmt.Sprintf("Packing(%d)", uint8(p))
	}
}

// Config holds configuration for the codec.
type Config struct {
	MaxDictionarySize int     // Dictionary cap including the seed phrases (0 = 4096)
	Packing           Packing // Payload layout (default fixed width)
	Restart           bool    // Reseed the dictionary when full instead of freezing it
}

// Option is a functional option for configuring the codec.
type Option func(*Config)

// WithMaxDictionarySize sets the dictionary cap.
// Values are clamped to [first free code + 1, 65536].
func WithMaxDictionarySize(n int) Option {
	return func(c *Config) {
		c.MaxDictionarySize = n
	}
}

// WithPacking selects the payload layout.
func WithPacking(p Packing) Option {
	return func(c *Config) {
		c.Packing = p
	}
}

// WithRestart reserves code 256 as a restart marker. When the dictionary is
// full the encoder emits the marker and starts over from the 256 seed
// phrases instead of freezing.
func WithRestart() Option {
	return func(c *Config) {
		c.Restart = true
	}
}

func newConfig(opts []Option) Config {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.MaxDictionarySize = resolveDictionarySize(cfg.MaxDictionarySize, cfg.Restart)
	return cfg
}

// firstFreeCode returns the first code assigned to a learned phrase.
func firstFreeCode(restart bool) int {
	if restart {
		return restartCode + 1
	}
	return literalCodes
}

func resolveDictionarySize(n int, restart bool) int {
	if n == 0 {
		return DefaultDictionarySize
	}
	if lo := firstFreeCode(restart) + 1; n < lo {
		return lo
	}
	if n > MaxDictionarySize {
		return MaxDictionarySize
	}
	return n
}
