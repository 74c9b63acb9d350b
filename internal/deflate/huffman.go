package deflate

import (
	"container/heap"
	"errors"
	"fmt"
	"math/bits"
	"sort"
)

// ErrInvalidCodeLengths is returned by buildCanonicalCodes when a length
// vector is over-subscribed or otherwise cannot be assigned valid
// canonical codes. It indicates a bug in the block splitter, not a
// problem with the input being compressed.
var ErrInvalidCodeLengths = errors.New("deflate: invalid huffman code lengths")

// huffCode is a single entry of a HuffmanTree: the canonical code for one
// symbol, already bit-reversed within its length so that the bit emitter's
// LSB-first write_bits produces the correct MSB-first wire order. length
// zero means the symbol is unused.
type huffCode struct {
	bits   uint16
	length uint8
}

// buildCanonicalCodes assigns canonical Huffman codes to a vector of code
// lengths, following RFC 1951 section 3.2.2: symbols are ordered first by
// code length then by symbol id, and codes within a length increase
// monotonically. The returned slice is bit-reversed per code, per the
// emitter's packing convention (see bitwriter.go).
func buildCanonicalCodes(lengths []int) ([]huffCode, error) {
	var count [maxCodeLen + 1]int
	for _, l := range lengths {
		if l < 0 || l > maxCodeLen {
			return nil, fmt.Errorf("deflate: code length %d out of range: %w", l, ErrInvalidCodeLengths)
		}
		if l > 0 {
			count[l]++
		}
	}

	// Two-pass assignment: first derive next_code[n] for each length,
	// then hand them out in ascending symbol order.
	var nextCode [maxCodeLen + 1]int
	code := 0
	for n := 1; n <= maxCodeLen; n++ {
		code <<= 1
		nextCode[n] = code
		code += count[n]
	}

	codes := make([]huffCode, len(lengths))
	for id, l := range lengths {
		if l == 0 {
			continue
		}
		c := nextCode[l]
		nextCode[l]++
		if c>>uint(l) != 0 {
			return nil, fmt.Errorf("deflate: code for symbol %d overflows %d bits: %w", id, l, ErrInvalidCodeLengths)
		}
		codes[id] = huffCode{bits: reverseBits(uint16(c), uint8(l)), length: uint8(l)}
	}
	return codes, nil
}

// reverseBits reverses the low n bits of v.
func reverseBits(v uint16, n uint8) uint16 {
	return bits.Reverse16(v) >> (16 - n)
}

// huffmanNode is an internal node of the frequency tree used to derive
// unrestricted code lengths before length-limiting.
type huffmanNode struct {
	freq        int
	minID       int // smallest leaf symbol id in this subtree, used as a deterministic tie-break
	left, right *huffmanNode
	leaf        int // valid when left == nil
}

// nodeHeap is a small min-heap over huffmanNode, ordered by frequency and
// then by minID so that ties resolve deterministically regardless of
// insertion order.
type nodeHeap []*huffmanNode

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].freq != h[j].freq {
		return h[i].freq < h[j].freq
	}
	return h[i].minID < h[j].minID
}
func (h nodeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x any)        { *h = append(*h, x.(*huffmanNode)) }
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// lengthLimitedLengths builds a canonical-ready code-length vector from a
// symbol frequency histogram, such that no length exceeds maxLen. It
// combines an ordinary Huffman-tree length assignment with the standard
// overflow-redistribution fix (move codes that are too deep up to maxLen,
// then restore the Kraft equality by borrowing from a shallower level)
// rather than a full package-merge search, which the spec permits ("the
// standard package-merge or any length-limited algorithm").
func lengthLimitedLengths(freq []int, maxLen int) []int {
	lengths := make([]int, len(freq))

	var present []weightedSymbol
	for id, f := range freq {
		if f > 0 {
			present = append(present, weightedSymbol{id, f})
		}
	}
	switch len(present) {
	case 0:
		return lengths
	case 1:
		lengths[present[0].id] = 1
		return lengths
	}

	raw := huffmanTreeLengths(present)

	var count [64]int // deep enough: a tree over <=286 leaves has depth < 286, and overflow is folded in below
	maxRaw := 0
	for _, l := range raw {
		if l >= len(count) {
			l = len(count) - 1
		}
		count[l]++
		if l > maxRaw {
			maxRaw = l
		}
	}
	for l := maxRaw; l > maxLen; l-- {
		count[maxLen] += count[l]
		count[l] = 0
	}

	// Kraft inequality fix-up: shallower codes were made too numerous by
	// the clamp above, so borrow capacity from progressively shallower
	// levels until the tree is exactly full again.
	total := 0
	for l := maxLen; l >= 1; l-- {
		total += count[l] << uint(maxLen-l)
	}
	full := 1 << uint(maxLen)
	for total > full {
		l := maxLen - 1
		for count[l] == 0 {
			l--
		}
		count[l]--
		count[l+1] += 2
		count[maxLen]--
		total--
	}

	// Hand the rebuilt length histogram back out, giving the shortest
	// lengths to the most frequent symbols.
	sort.Slice(present, func(i, j int) bool {
		if present[i].freq != present[j].freq {
			return present[i].freq > present[j].freq
		}
		return present[i].id < present[j].id
	})
	idx := 0
	for l := 1; l <= maxLen; l++ {
		for c := 0; c < count[l]; c++ {
			lengths[present[idx].id] = l
			idx++
		}
	}
	return lengths
}

// weightedSymbol is a symbol id paired with its histogram frequency,
// the input to huffmanTreeLengths.
type weightedSymbol struct{ id, freq int }

// huffmanTreeLengths builds an ordinary (not length-limited) Huffman tree
// over the given symbols and returns each symbol's resulting depth.
func huffmanTreeLengths(present []weightedSymbol) map[int]int {
	h := make(nodeHeap, len(present))
	for i, s := range present {
		h[i] = &huffmanNode{freq: s.freq, minID: s.id, leaf: s.id}
	}
	heap.Init(&h)
	for h.Len() > 1 {
		a := heap.Pop(&h).(*huffmanNode)
		b := heap.Pop(&h).(*huffmanNode)
		minID := a.minID
		if b.minID < minID {
			minID = b.minID
		}
		heap.Push(&h, &huffmanNode{freq: a.freq + b.freq, minID: minID, left: a, right: b})
	}
	root := h[0]

	lengths := make(map[int]int, len(present))
	var walk func(n *huffmanNode, depth int)
	walk = func(n *huffmanNode, depth int) {
		if n.left == nil {
			if depth == 0 {
				depth = 1 // a single-symbol alphabet still needs one bit
			}
			lengths[n.leaf] = depth
			return
		}
		walk(n.left, depth+1)
		walk(n.right, depth+1)
	}
	walk(root, 0)
	return lengths
}
