package deflate

import "io"

// Options configures a single Deflate call. The zero value compresses
// with no match hint and the tokenizer's default chain length.
type Options struct {
	// MaxChain bounds the LZ77 hash-chain search; see TokenizeOptions.
	MaxChain int

	// Hint supplies candidate back-references ahead of the tokenizer's
	// own chain search, honored only when they stay within the data
	// being compressed (see Hint's doc comment). Nil disables it.
	Hint Hint

	// Stats, if non-nil, is filled in with the LZ77 coverage this call
	// achieved. Callers like internal/dictcache use it to learn how
	// compressible a kind of content turned out to be.
	Stats *Stats
}

// Stats summarizes one Deflate call's LZ77 token stream.
type Stats struct {
	MatchedBytes int // input bytes covered by a back-reference
	TotalBytes   int // total input bytes tokenized
}

// Deflate compresses input into a complete, self-terminating DEFLATE
// stream written to w, with no match hint. It is DeflateWithOptions
// with the zero Options value.
func Deflate(input []byte, w io.Writer) error {
	return DeflateWithOptions(input, w, Options{})
}

// DeflateWithOptions is Deflate with control over the tokenizer's chain
// length and match hint. The stream it writes is one or
// more blocks, each a fixed or dynamic Huffman encoding of its share of
// the LZ77 token stream, with the final block's header bit set and the
// output padded out to a byte boundary. It returns once the stream is
// fully written or a sink write has failed; there is no implicit
// teardown step to call afterward.
func DeflateWithOptions(input []byte, w io.Writer, opts Options) error {
	tokens := Tokenize(input, TokenizeOptions{MaxChain: opts.MaxChain, Hint: opts.Hint})
	if opts.Stats != nil {
		opts.Stats.MatchedBytes, opts.Stats.TotalBytes = tokenCoverage(tokens)
	}
	blocks := splitBlocks(tokens)

	bw := newBitWriter(w)
	for _, b := range blocks {
		if err := bw.writeBlock(b); err != nil {
			return err
		}
	}
	bw.flush()
	return bw.err
}

func tokenCoverage(tokens []Token) (matched, total int) {
	for _, t := range tokens {
		if t.IsLiteral() {
			total++
		} else {
			matched += t.Len
			total += t.Len
		}
	}
	return matched, total
}
