package huffman

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/seiflotfy/varc/codec"
	"github.com/seiflotfy/varc/internal/prng"
)

func roundTripInputs() map[string][]byte {
	return map[string][]byte{
		"empty":         {},
		"single byte":   {'x'},
		"identical":     bytes.Repeat([]byte{'A'}, 1000),
		"abracadabra":   []byte("ABRACADABRA"),
		"text":          []byte(strings.Repeat("the quick brown fox jumps over the lazy dog. ", 200)),
		"all bytes":     allBytes(),
		"pseudo-random": prng.New(42).Bytes(5000),
		"skewed":        skewed(),
	}
}

func allBytes() []byte {
	b := make([]byte, 512)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

// skewed has a few dominant symbols and a long tail of rare ones.
func skewed() []byte {
	var b []byte
	b = append(b, bytes.Repeat([]byte{'e'}, 4000)...)
	b = append(b, bytes.Repeat([]byte{'t'}, 900)...)
	for i := 0; i < 256; i++ {
		b = append(b, byte(i))
	}
	p := prng.New(3)
	p.Shuffle(b)
	return b
}

func TestRoundTrip(t *testing.T) {
	for name, data := range roundTripInputs() {
		t.Run(name, func(t *testing.T) {
			cb, payload, err := Encode(data, nil)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := Decode(cb, payload)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(data))
			}
		})
	}
}

func TestEncodeSingleSymbol(t *testing.T) {
	cb, payload, err := Encode([]byte("AAAA"), nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if want := (Codebook{'A': "0"}); !reflect.DeepEqual(cb, want) {
		t.Fatalf("codebook = %v, want %v", cb, want)
	}
	// Four one-bit codes leave four bits of padding.
	if want := []byte{0x04, 0x00}; !bytes.Equal(payload, want) {
		t.Fatalf("payload = %v, want %v", payload, want)
	}
	got, err := Decode(cb, payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(got) != "AAAA" {
		t.Fatalf("Decode = %q", got)
	}
}

func TestEncodeABRACADABRA(t *testing.T) {
	cb, payload, err := Encode([]byte("ABRACADABRA"), nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := Codebook{'A': "0", 'C': "100", 'D': "101", 'B': "110", 'R': "111"}
	if !reflect.DeepEqual(cb, want) {
		t.Fatalf("codebook = %v, want %v", cb, want)
	}
	// 0 110 111 0 100 0 101 0 110 111 0 + one padding bit
	if want := []byte{0x01, 0x6E, 0x8A, 0xDC}; !bytes.Equal(payload, want) {
		t.Fatalf("payload = %#v, want %#v", payload, want)
	}
}

func TestEmptyInput(t *testing.T) {
	cb, payload, err := Encode(nil, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(cb) != 0 {
		t.Fatalf("codebook = %v, want empty", cb)
	}
	if len(payload) != 0 {
		t.Fatalf("payload = %v, want empty", payload)
	}
	got, err := Decode(cb, payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("Decode = %#v, want empty non-nil slice", got)
	}
}

func TestCodebookIsPrefixFree(t *testing.T) {
	for name, data := range roundTripInputs() {
		t.Run(name, func(t *testing.T) {
			cb, rev := BuildCodebook(data)
			if err := cb.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if len(rev) != len(cb) {
				t.Fatalf("reverse codebook has %d entries, want %d", len(rev), len(cb))
			}
			for a, ca := range cb {
				if rev[ca] != a {
					t.Fatalf("reverse[%q] = %d, want %d", ca, rev[ca], a)
				}
				for b, cbb := range cb {
					if a != b && strings.HasPrefix(cbb, ca) {
						t.Fatalf("code %q of %d is a prefix of %q of %d", ca, a, cbb, b)
					}
				}
			}
		})
	}
}

func TestCodebookCoversInputExactly(t *testing.T) {
	data := []byte("mississippi")
	cb, _ := BuildCodebook(data)
	freq := Frequencies(data)
	for sym := 0; sym < 256; sym++ {
		_, ok := cb[byte(sym)]
		if ok != (freq[sym] > 0) {
			t.Fatalf("symbol %d: in codebook %v, count %d", sym, ok, freq[sym])
		}
	}
}

func TestCodebookDeterministic(t *testing.T) {
	data := prng.New(9).Bytes(2000)
	first, _ := BuildCodebook(data)
	for i := 0; i < 20; i++ {
		cb, _ := BuildCodebook(data)
		if !reflect.DeepEqual(cb, first) {
			t.Fatalf("run %d produced a different codebook", i)
		}
	}
}

func TestCodebookIsComplete(t *testing.T) {
	// A Huffman tree is full, so Kraft's sum is exactly one.
	cb, _ := BuildCodebook([]byte(strings.Repeat("the quick brown fox jumps over the lazy dog", 10)))
	sum := 0.0
	for _, code := range cb {
		sum += 1 / float64(uint64(1)<<len(code))
	}
	if sum != 1 {
		t.Fatalf("Kraft sum = %v, want 1", sum)
	}
}

func TestFrequentSymbolsGetShorterCodes(t *testing.T) {
	cb, _ := BuildCodebook(skewed())
	if len(cb['e']) > len(cb['t']) {
		t.Fatalf("len(e)=%d > len(t)=%d", len(cb['e']), len(cb['t']))
	}
	for sym, code := range cb {
		if sym != 'e' && len(code) < len(cb['e']) {
			t.Fatalf("rare symbol %d has code %q shorter than %q", sym, code, cb['e'])
		}
	}
}

// fibonacciFrequencies returns a frequency table whose tree is a chain, giving
// codes far longer than 64 bits.
func fibonacciFrequencies(n int) *[256]uint64 {
	var freq [256]uint64
	a, b := uint64(1), uint64(1)
	for i := 0; i < n; i++ {
		freq[i] = a
		a, b = b, a+b
	}
	return &freq
}

func TestLongCodes(t *testing.T) {
	cb := BuildTree(fibonacciFrequencies(90)).Codebook()
	longest := 0
	for _, code := range cb {
		longest = max(longest, len(code))
	}
	if longest != 89 {
		t.Fatalf("longest code = %d bits, want 89", longest)
	}

	data := make([]byte, 0, 180)
	for i := 89; i >= 0; i-- {
		data = append(data, byte(i), byte(i))
	}
	used, payload, err := Encode(data, cb)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !reflect.DeepEqual(used, cb) {
		t.Fatalf("Encode replaced the supplied codebook")
	}
	got, err := Decode(cb, payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch")
	}
}

func TestSuppliedCodebook(t *testing.T) {
	cb := Codebook{'a': "1", 'b': "01", 'c': "00"}
	used, payload, err := Encode([]byte("abcab"), cb)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !reflect.DeepEqual(used, cb) {
		t.Fatalf("codebook = %v, want %v", used, cb)
	}
	// 1 01 00 1 01 = 8 bits, no padding
	if want := []byte{0x00, 0xA5}; !bytes.Equal(payload, want) {
		t.Fatalf("payload = %#v, want %#v", payload, want)
	}

	_, _, err = Encode([]byte("abcd"), cb)
	if !errors.Is(err, codec.ErrInvalidMetadata) {
		t.Fatalf("missing symbol: err = %v, want ErrInvalidMetadata", err)
	}
}

func TestInvalidCodebook(t *testing.T) {
	tests := map[string]Codebook{
		"prefix":       {'a': "0", 'b': "01"},
		"prefix after": {'a': "01", 'b': "0"},
		"duplicate":    {'a': "10", 'b': "10"},
		"empty code":   {'a': ""},
		"bad bit":      {'a': "0", 'b': "12"},
	}
	for name, cb := range tests {
		t.Run(name, func(t *testing.T) {
			if err := cb.Validate(); !errors.Is(err, codec.ErrInvalidMetadata) {
				t.Fatalf("Validate err = %v, want ErrInvalidMetadata", err)
			}
			if _, _, err := Encode([]byte("ab"), cb); !errors.Is(err, codec.ErrInvalidMetadata) {
				t.Fatalf("Encode err = %v, want ErrInvalidMetadata", err)
			}
			if _, err := Decode(cb, []byte{0x00, 0x00}); !errors.Is(err, codec.ErrInvalidMetadata) {
				t.Fatalf("Decode err = %v, want ErrInvalidMetadata", err)
			}
		})
	}
}

func TestDecodeCorruptStream(t *testing.T) {
	three := Codebook{'A': "0", 'B': "10", 'C': "11"}
	incomplete := Codebook{'A': "00", 'B': "01"}
	tests := []struct {
		name    string
		cb      Codebook
		payload []byte
	}{
		{"padding out of range", three, []byte{0x09, 0x00}},
		{"padding exceeds payload", three, []byte{0x05}},
		{"non-zero padding", three, []byte{0x04, 0x01}},
		{"unfinished code", three, []byte{0x07, 0x80}},
		{"unknown path", incomplete, []byte{0x06, 0x80}},
		{"empty codebook", Codebook{}, []byte{0x00, 0xFF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.cb, tt.payload)
			if !errors.Is(err, codec.ErrCorruptStream) {
				t.Fatalf("err = %v, want ErrCorruptStream", err)
			}
		})
	}
}

func TestDecodeLegacyPadding(t *testing.T) {
	cb := Codebook{'A': "0"}
	got, err := Decode(cb, []byte{0x08, 0x00, 0x00})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(got) != "AAAAAAAA" {
		t.Fatalf("Decode = %q, want 8 A", got)
	}
}

func TestCodebookBinary(t *testing.T) {
	books := map[string]Codebook{
		"empty":  {},
		"single": {'A': "0"},
		"text":   func() Codebook { cb, _ := BuildCodebook([]byte("hello, world")); return cb }(),
		"long":   BuildTree(fibonacciFrequencies(90)).Codebook(),
	}
	for name, cb := range books {
		t.Run(name, func(t *testing.T) {
			data, err := cb.MarshalBinary()
			if err != nil {
				t.Fatalf("MarshalBinary: %v", err)
			}
			var got Codebook
			if err := got.UnmarshalBinary(data); err != nil {
				t.Fatalf("UnmarshalBinary: %v", err)
			}
			if !reflect.DeepEqual(got, cb) {
				t.Fatalf("got %v, want %v", got, cb)
			}
		})
	}

	bad := map[string][]byte{
		"short":        {0x01},
		"truncated":    {0x01, 0x00, 'A'},
		"zero length":  {0x01, 0x00, 'A', 0x00},
		"missing code": {0x01, 0x00, 'A', 0x09, 0x00},
		"trailing":     {0x01, 0x00, 'A', 0x01, 0x00, 0xFF},
		"duplicate":    {0x02, 0x00, 'A', 0x01, 0x00, 'A', 0x01, 0x80},
		"not prefix":   {0x02, 0x00, 'A', 0x01, 0x00, 'B', 0x02, 0x00},
		"too many":     {0x01, 0x01},
	}
	for name, data := range bad {
		t.Run("invalid/"+name, func(t *testing.T) {
			var cb Codebook
			if err := cb.UnmarshalBinary(data); !errors.Is(err, codec.ErrInvalidMetadata) {
				t.Fatalf("err = %v, want ErrInvalidMetadata", err)
			}
		})
	}
}

type otherMetadata struct{}

func (otherMetadata) Algorithm() codec.Algorithm { return codec.LZW }

func TestCodec(t *testing.T) {
	c := New()
	if c.Algorithm() != codec.Huffman {
		t.Fatalf("Algorithm = %q", c.Algorithm())
	}
	data := []byte("codec interface round trip")
	res, err := c.Encode(data)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	cb, ok := res.Metadata.(Codebook)
	if !ok {
		t.Fatalf("metadata is %T, want Codebook", res.Metadata)
	}
	for _, meta := range []codec.Metadata{cb, &cb} {
		got, err := c.Decode(meta, res.Payload)
		if err != nil {
			t.Fatalf("Decode(%T): %v", meta, err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("Decode(%T) = %q", meta, got)
		}
	}

	var nilBook *Codebook
	for _, meta := range []codec.Metadata{nilBook, otherMetadata{}} {
		if _, err := c.Decode(meta, res.Payload); !errors.Is(err, codec.ErrInvalidMetadata) {
			t.Fatalf("Decode(%T) err = %v, want ErrInvalidMetadata", meta, err)
		}
	}
}

func TestCodebookCache(t *testing.T) {
	cache, err := NewCodebookCache(2)
	if err != nil {
		t.Fatalf("NewCodebookCache: %v", err)
	}
	c := New(WithCache(cache))

	first, err := c.Encode([]byte("hello"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// Same histogram, different order.
	second, err := c.Encode([]byte("olleh"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if hits, misses := cache.Stats(); hits != 1 || misses != 1 {
		t.Fatalf("hits=%d misses=%d, want 1 and 1", hits, misses)
	}
	if !reflect.DeepEqual(first.Metadata, second.Metadata) {
		t.Fatalf("cached codebook differs: %v vs %v", first.Metadata, second.Metadata)
	}
	uncached, _ := BuildCodebook([]byte("hello"))
	if !reflect.DeepEqual(first.Metadata, uncached) {
		t.Fatalf("cached codebook %v, want %v", first.Metadata, uncached)
	}

	// Callers own the returned codebook.
	first.Metadata.(Codebook)['h'] = "111111"
	third, _ := c.Encode([]byte("hello"))
	if !reflect.DeepEqual(third.Metadata, uncached) {
		t.Fatalf("cache entry was modified through a returned codebook")
	}

	c.Encode([]byte("abc"))
	c.Encode([]byte("xyz"))
	if cache.Len() != 2 {
		t.Fatalf("Len = %d, want 2", cache.Len())
	}
	got, err := c.Decode(third.Metadata, third.Payload)
	if err != nil || string(got) != "hello" {
		t.Fatalf("Decode = %q, %v", got, err)
	}
}

func BenchmarkEncode(b *testing.B) {
	data := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog. ", 2000))
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := Encode(data, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecode(b *testing.B) {
	data := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog. ", 2000))
	cb, payload, err := Encode(data, nil)
	if err != nil {
		b.Fatal(err)
	}
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Decode(cb, payload); err != nil {
			b.Fatal(err)
		}
	}
}

func ExampleEncode() {
	cb, payload, _ := Encode([]byte("AAAA"), nil)
	fmt.Println(cb, payload)

	data, _ := Decode(cb, payload)
	fmt.Println(string(data))
	// Output:
	// map[65:0] [4 0]
	// AAAA
}
