// Package prng provides a small deterministic generator for reproducible
// pseudo-random test input.
package prng

// LCG is a linear congruential generator. The same seed yields the same
// sequence on every platform.
type LCG struct {
	state uint64
}

// New creates a generator with the given seed.
func New(seed uint64) *LCG {
	return &LCG{state: seed}
}

// Next advances the generator. Multiplier and increment are Knuth's MMIX
// constants.
func (p *LCG) Next() uint64 {
	p.state = p.state*6364136223846793005 + 1442695040888963407
	return p.state
}

// Byte returns a pseudo-random byte taken from the high bits of the state,
// which have a much longer period than the low bits.
func (p *LCG) Byte() byte {
	return byte(p.Next() >> 56)
}

// Bytes returns n pseudo-random bytes.
func (p *LCG) Bytes(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = p.Byte()
	}
	return out
}

// Uint64N returns a number in [0, n).
func (p *LCG) Uint64N(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	return (p.Next() >> 32) % n
}

// Shuffle performs an in-place Fisher-Yates shuffle.
func (p *LCG) Shuffle(b []byte) {
	for i := len(b) - 1; i > 0; i-- {
		j := int(p.Uint64N(uint64(i + 1)))
		b[i], b[j] = b[j], b[i]
	}
}
