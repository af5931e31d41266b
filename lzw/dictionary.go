package lzw

// encodeDictionary maps a phrase to its code. A phrase longer than one byte
// is always a known phrase plus one byte, so it is keyed by the prefix code
// and the trailing byte rather than by its full contents. Single-byte
// phrases are implicit: the code of byte b is b.
type encodeDictionary struct {
	phrases map[uint32]int // prefixCode<<8 | nextByte -> code
	next    int            // next code to assign; equals the dictionary size
	base    int            // first learned code
	limit   int            // maximum dictionary size
}

func newEncodeDictionary(base, limit int) *encodeDictionary {
	return &encodeDictionary{
		phrases: make(map[uint32]int, limit-base),
		next:    base,
		base:    base,
		limit:   limit,
	}
}

func phraseKey(prefix int, b byte) uint32 {
	return uint32(prefix)<<8 | uint32(b)
}

// find returns the code for prefix+b.
func (d *encodeDictionary) find(prefix int, b byte) (int, bool) {
	code, ok := d.phrases[phraseKey(prefix, b)]
	return code, ok
}

// add inserts prefix+b under the next code. It reports false once the
// dictionary is full.
func (d *encodeDictionary) add(prefix int, b byte) bool {
	if d.next >= d.limit {
		return false
	}
	d.phrases[phraseKey(prefix, b)] = d.next
	d.next++
	return true
}

func (d *encodeDictionary) full() bool {
	return d.next >= d.limit
}

// Len reports the number of phrases, including the 256 seeds and the
// restart marker when one is reserved.
func (d *encodeDictionary) Len() int {
	return d.next
}

func (d *encodeDictionary) reset() {
	clear(d.phrases)
	d.next = d.base
}

// span locates a phrase inside the decoder output buffer.
type span struct {
	start  int
	length int
}

// decodeDictionary maps a learned code to a phrase already present in the
// output. Every learned phrase is the previous phrase plus the first byte of
// the phrase that follows it, and the two are adjacent in the output, so a
// phrase is an offset and a length.
type decodeDictionary struct {
	spans []span // indexed by code - base
	base  int
	limit int
}

func newDecodeDictionary(base, limit int) *decodeDictionary {
	return &decodeDictionary{
		spans: make([]span, 0, limit-base),
		base:  base,
		limit: limit,
	}
}

// next returns the code the next learned phrase will receive.
func (d *decodeDictionary) next() int {
	return d.base + len(d.spans)
}

func (d *decodeDictionary) lookup(code int) (span, bool) {
	i := code - d.base
	if i < 0 || i >= len(d.spans) {
		return span{}, false
	}
	return d.spans[i], true
}

func (d *decodeDictionary) add(s span) {
	if d.next() < d.limit {
		d.spans = append(d.spans, s)
	}
}

// Len mirrors encodeDictionary.Len.
func (d *decodeDictionary) Len() int {
	return d.next()
}

func (d *decodeDictionary) reset() {
	d.spans = d.spans[:0]
}
