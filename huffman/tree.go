package huffman

import "container/heap"

// node is a Huffman tree node. Leaves carry a symbol; internal nodes carry
// the summed weight of their children.
type node struct {
	symbol byte
	weight uint64
	seq    int // tie-break key: symbol value for leaves, 256+merge index otherwise
	left   *node
	right  *node
}

func (n *node) leaf() bool {
	return n.left == nil && n.right == nil
}

// nodeQueue is a min-heap on (weight, seq).
type nodeQueue []*node

func (q nodeQueue) Len() int { return len(q) }

func (q nodeQueue) Less(i, j int) bool {
	if q[i].weight != q[j].weight {
		return q[i].weight < q[j].weight
	}
	return q[i].seq < q[j].seq
}

func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *nodeQueue) Push(x any) {
	*q = append(*q, x.(*node))
}

func (q *nodeQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// Frequencies counts the occurrences of every byte value in data.
func Frequencies(data []byte) *[256]uint64 {
	var freq [256]uint64
	for _, b := range data {
		freq[b]++
	}
	return &freq
}

// Tree is a Huffman tree over byte symbols.
type Tree struct {
	root    *node
	symbols int
}

// BuildTree builds the tree for a frequency table. Symbols with a zero count
// get no leaf. Equal weights are ordered by symbol value, then by merge
// order, so the same table always yields the same tree.
func BuildTree(freq *[256]uint64) *Tree {
	q := make(nodeQueue, 0, 256)
	for sym, count := range freq {
		if count == 0 {
			continue
		}
		q = append(q, &node{symbol: byte(sym), weight: count, seq: sym})
	}
	t := &Tree{symbols: len(q)}
	if len(q) == 0 {
		return t
	}
	heap.Init(&q)

	merges := 0
	for q.Len() > 1 {
		left := heap.Pop(&q).(*node)
		right := heap.Pop(&q).(*node)
		heap.Push(&q, &node{
			weight: left.weight + right.weight,
			seq:    256 + merges,
			left:   left,
			right:  right,
		})
		merges++
	}
	t.root = heap.Pop(&q).(*node)
	return t
}

// Symbols reports the number of leaves.
func (t *Tree) Symbols() int {
	return t.symbols
}

// Codebook derives the code of every leaf from its path: '0' for a left
// edge, '1' for a right edge. A tree that is a single leaf gives that symbol
// the code "0".
func (t *Tree) Codebook() Codebook {
	cb := make(Codebook, t.symbols)
	if t.root == nil {
		return cb
	}

	type frame struct {
		n    *node
		path string
	}
	// Iterative walk: skewed frequency tables produce trees up to 255 deep.
	stack := []frame{{n: t.root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.n.leaf() {
			if f.path == "" {
				f.path = "0"
			}
			cb[f.n.symbol] = f.path
			continue
		}
		stack = append(stack,
			frame{n: f.n.right, path: f.path + "1"},
			frame{n: f.n.left, path: f.path + "0"},
		)
	}
	return cb
}
