package deflate

// Tokenizer turns raw bytes into a stream of literal/copy Tokens (LZ77),
// the input the block splitter and bit emitter build a DEFLATE stream
// from. It is a hash-chain matcher in the classic zlib/flate style: a
// table of the most recent position for every 3-byte prefix, chained
// through previous occurrences of the same prefix, searched up to a
// bounded chain length and refined by one step of lazy matching.

const (
	hashBits = 15
	hashSize = 1 << hashBits
	hashMask = hashSize - 1

	// defaultMaxChain bounds how many candidate positions the matcher
	// walks per input byte. Larger values find marginally better matches
	// on highly repetitive input at a real cost in time.
	defaultMaxChain = 128

	// niceMatchLength stops the chain walk early once a match this long
	// is found, since length 258 is both the format's cap and rare
	// enough beyond a few hundred bytes that searching further is a
	// waste of chain budget.
	niceMatchLength = 128
)

// Hint lets a caller outside this package suggest a candidate
// back-reference for the 3 bytes starting at data[pos:], ahead of
// searching the position's own hash chain. A distance greater than pos
// would reach before the start of data, which no ordinary DEFLATE
// decoder can resolve without a matching preset dictionary, so
// bestMatch ignores any Suggest result with dist > pos: a Hint is only
// useful for surfacing a match this call's own chain search would
// eventually find anyway, earlier or cheaper than the chain would.
type Hint interface {
	Suggest(data []byte, pos int, prefix uint32) (dist, length int, ok bool)
}

// TokenizeOptions configures a single Tokenize call. The zero value is
// the default configuration.
type TokenizeOptions struct {
	// MaxChain bounds the hash-chain search per position. Zero selects
	// defaultMaxChain.
	MaxChain int

	// Hint, if non-nil, is consulted for every position before this
	// file's own hash chain is searched.
	Hint Hint
}

// Tokenize converts data into a sequence of literal and copy Tokens
// whose concatenated expansion reproduces data exactly.
func Tokenize(data []byte, opts TokenizeOptions) []Token {
	maxChain := opts.MaxChain
	if maxChain <= 0 {
		maxChain = defaultMaxChain
	}

	t := &tokenizer{
		data:     data,
		maxChain: maxChain,
		hint:     opts.Hint,
		head:     make([]int32, hashSize),
		prev:     make([]int32, len(data)),
	}
	for i := range t.head {
		t.head[i] = -1
	}

	var tokens []Token
	n := len(data)
	i := 0
	for i < n {
		if i+minMatchLength > n {
			tokens = append(tokens, Literal(data[i]))
			t.insert(i)
			i++
			continue
		}

		length, dist := t.bestMatch(i)
		if length < minMatchLength {
			tokens = append(tokens, Literal(data[i]))
			t.insert(i)
			i++
			continue
		}

		// Lazy matching: a match starting one byte later sometimes beats
		// this one outright (classic "aab" vs "ab" case). Give up the
		// shorter match here in exchange for a literal, and let the next
		// iteration take the longer one.
		t.insert(i)
		if i+1+minMatchLength <= n && length < maxMatchLength {
			nextLen, nextDist := t.bestMatch(i + 1)
			if nextLen > length {
				tokens = append(tokens, Literal(data[i]))
				i++
				length, dist = nextLen, nextDist
				t.insert(i)
			}
		}

		tokens = append(tokens, Repeat(length, dist))
		end := i + length
		for i++; i < end; i++ {
			t.insert(i)
		}
	}
	return tokens
}

type tokenizer struct {
	data     []byte
	maxChain int
	hint     Hint
	head     []int32
	prev     []int32
}

func hashPrefix(b []byte) uint32 {
	h := uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	h *= 0x9e3779b1
	return (h >> (32 - hashBits)) & hashMask
}

// insert records data's 3-byte prefix starting at pos in the hash chain.
// Positions within minMatchLength of the end have no full prefix and are
// never chained.
func (t *tokenizer) insert(pos int) {
	if pos+minMatchLength > len(t.data) {
		return
	}
	h := hashPrefix(t.data[pos:])
	t.prev[pos] = t.head[h]
	t.head[h] = int32(pos)
}

// bestMatch searches pos's hash chain (and the caller's Hint, if any)
// for the longest back-reference, returning its length and distance.
// length is 0 if nothing at least minMatchLength long was found.
func (t *tokenizer) bestMatch(pos int) (length, dist int) {
	data := t.data
	limit := len(data) - pos
	if limit > maxMatchLength {
		limit = maxMatchLength
	}

	if t.hint != nil {
		if hd, hl, ok := t.hint.Suggest(data, pos, hashPrefix(data[pos:])); ok && hd >= 1 && hd <= pos && hd <= maxMatchDistance {
			if hl > limit {
				hl = limit
			}
			if hl >= minMatchLength {
				length, dist = hl, hd
			}
		}
	}

	h := hashPrefix(data[pos:])
	cand := t.head[h]
	for chain := 0; cand >= 0 && chain < t.maxChain; chain++ {
		cpos := int(cand)
		d := pos - cpos
		if d < 1 || d > maxMatchDistance {
			break
		}
		if l := matchLength(data, pos, cpos, limit); l > length {
			length, dist = l, d
			if l >= niceMatchLength {
				break
			}
		}
		cand = t.prev[cpos]
	}
	return length, dist
}

// matchLength returns how many bytes starting at a and at b agree, up to
// limit. Both a and b must be valid indices into data.
func matchLength(data []byte, a, b, limit int) int {
	n := 0
	for n < limit && data[a+n] == data[b+n] {
		n++
	}
	return n
}
