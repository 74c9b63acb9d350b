package deflate

// Format constants from RFC 1951 section 3.2.5.
const (
	minMatchLength   = 3
	maxMatchLength   = 258
	maxMatchDistance = 32768

	endOfBlock     = 256
	numLitSymbols  = 286 // 0..255 literals, 256 end-of-block, 257..285 length codes
	numDistSymbols = 30
	numCLSymbols   = 19 // code-length alphabet, RFC 1951 section 3.2.7
	maxCodeLen     = 15
)

// lenRow is one row of the length-code table: a match of length in
// [start,end) is encoded with this row's Huffman symbol plus extraBits
// raw bits holding (length - start).
type lenRow struct {
	start, end int
	extraBits  uint
	code       int
}

// distRow is the distance-table analogue of lenRow.
type distRow struct {
	start, end int
	extraBits  uint
	code       int
}

// lenToCode is RFC 1951's length-code table: lengths 3..258 map to
// symbols 257..285. The final row's end is exclusive, so a length of
// exactly 258 matches only the last row — using <= here instead of <
// would make 258 ambiguous with the second-to-last row's open end.
var lenToCode = [29]lenRow{
	{3, 4, 0, 257}, {4, 5, 0, 258}, {5, 6, 0, 259}, {6, 7, 0, 260},
	{7, 8, 0, 261}, {8, 9, 0, 262}, {9, 10, 0, 263}, {10, 11, 0, 264},
	{11, 13, 1, 265}, {13, 15, 1, 266}, {15, 17, 1, 267}, {17, 19, 1, 268},
	{19, 23, 2, 269}, {23, 27, 2, 270}, {27, 31, 2, 271}, {31, 35, 2, 272},
	{35, 43, 3, 273}, {43, 51, 3, 274}, {51, 59, 3, 275}, {59, 67, 3, 276},
	{67, 83, 4, 277}, {83, 99, 4, 278}, {99, 115, 4, 279}, {115, 131, 4, 280},
	{131, 163, 5, 281}, {163, 195, 5, 282}, {195, 227, 5, 283}, {227, 258, 5, 284},
	{258, 259, 0, 285},
}

// distToCode is RFC 1951's distance-code table: distances 1..32768 map
// to symbols 0..29.
var distToCode = [30]distRow{
	{1, 2, 0, 0}, {2, 3, 0, 1}, {3, 4, 0, 2}, {4, 5, 0, 3},
	{5, 7, 1, 4}, {7, 9, 1, 5}, {9, 13, 2, 6}, {13, 17, 2, 7},
	{17, 25, 3, 8}, {25, 33, 3, 9}, {33, 49, 4, 10}, {49, 65, 4, 11},
	{65, 97, 5, 12}, {97, 129, 5, 13}, {129, 193, 6, 14}, {193, 257, 6, 15},
	{257, 385, 7, 16}, {385, 513, 7, 17}, {513, 769, 8, 18}, {769, 1025, 8, 19},
	{1025, 1537, 9, 20}, {1537, 2049, 9, 21}, {2049, 3073, 10, 22}, {3073, 4097, 10, 23},
	{4097, 6145, 11, 24}, {6145, 8193, 11, 25}, {8193, 12289, 12, 26}, {12289, 16385, 12, 27},
	{16385, 24577, 13, 28}, {24577, 32769, 13, 29},
}

// findLenRow returns the unique lenToCode row covering length.
func findLenRow(length int) lenRow {
	for _, r := range lenToCode {
		if length >= r.start && length < r.end {
			return r
		}
	}
	panic("deflate: length out of table range")
}

// findDistRow returns the unique distToCode row covering dist.
func findDistRow(dist int) distRow {
	for _, r := range distToCode {
		if dist >= r.start && dist < r.end {
			return r
		}
	}
	panic("deflate: distance out of table range")
}

// fixedLitLengths and fixedDistLengths are the fixed Huffman code lengths
// defined by RFC 1951 section 3.2.6.
var fixedLitLengths = func() [288]int {
	var l [288]int
	for i := 0; i < 144; i++ {
		l[i] = 8
	}
	for i := 144; i < 256; i++ {
		l[i] = 9
	}
	for i := 256; i < 280; i++ {
		l[i] = 7
	}
	for i := 280; i < 288; i++ {
		l[i] = 8
	}
	return l
}()

var fixedDistLengths = func() [30]int {
	var l [30]int
	for i := range l {
		l[i] = 5
	}
	return l
}()

// codeLengthOrder is the permutation in which code-length-of-code values
// are transmitted in a dynamic block's preamble, RFC 1951 section 3.2.7.
var codeLengthOrder = [numCLSymbols]int{
	16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15,
}
