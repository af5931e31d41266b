package prng

import (
	"bytes"
	"testing"
)

func TestDeterministic(t *testing.T) {
	a := New(42).Bytes(64)
	b := New(42).Bytes(64)
	if !bytes.Equal(a, b) {
		t.Fatal("same seed produced different sequences")
	}
	c := New(43).Bytes(64)
	if bytes.Equal(a, c) {
		t.Fatal("different seeds produced identical sequences")
	}
}

func TestBytesCoverAlphabet(t *testing.T) {
	var seen [256]bool
	for _, b := range New(7).Bytes(1 << 14) {
		seen[b] = true
	}
	for v, ok := range seen {
		if !ok {
			t.Errorf("byte %d never produced", v)
		}
	}
}

func TestShufflePermutes(t *testing.T) {
	b := make([]byte, 256)
	for i := range b {
		b[i] = byte(i)
	}
	New(1).Shuffle(b)

	var seen [256]bool
	for _, v := range b {
		if seen[v] {
			t.Fatalf("duplicate value %d after shuffle", v)
		}
		seen[v] = true
	}
}
