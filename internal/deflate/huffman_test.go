package deflate

import "testing"

func TestBuildCanonicalCodesPrefixFree(t *testing.T) {
	lengths := []int{3, 3, 3, 3, 3, 2, 4, 4}
	codes, err := buildCanonicalCodes(lengths)
	if err != nil {
		t.Fatalf("buildCanonicalCodes: %v", err)
	}

	type entry struct{ bits uint16; length uint8 }
	var used []entry
	for _, c := range codes {
		if c.length == 0 {
			continue
		}
		// Undo the bit-reversal to check prefix-freedom in canonical
		// (MSB-first) order, which is how the property is normally stated.
		canon := reverseBits(c.bits, c.length)
		for _, u := range used {
			if isPrefix(canon, c.length, u.bits, u.length) || isPrefix(u.bits, u.length, canon, c.length) {
				t.Fatalf("codes are not prefix-free: %v vs %v", entry{canon, c.length}, u)
			}
		}
		used = append(used, entry{canon, c.length})
	}
}

// isPrefix reports whether the first aLen bits of a equal the first
// aLen bits of b, when aLen <= bLen.
func isPrefix(a uint16, aLen uint8, b uint16, bLen uint8) bool {
	if aLen == 0 || aLen > bLen {
		return false
	}
	return a == b>>(bLen-aLen)
}

func TestBuildCanonicalCodesAscendingWithinLength(t *testing.T) {
	lengths := []int{2, 2, 2, 2}
	codes, err := buildCanonicalCodes(lengths)
	if err != nil {
		t.Fatalf("buildCanonicalCodes: %v", err)
	}
	var prev uint16
	for i, c := range codes {
		canon := reverseBits(c.bits, c.length)
		if i > 0 && canon <= prev {
			t.Fatalf("symbol %d's code %d did not increase over previous %d", i, canon, prev)
		}
		prev = canon
	}
}

func TestBuildCanonicalCodesOverSubscribed(t *testing.T) {
	// Four symbols cannot all take length 1: the alphabet is over-subscribed.
	_, err := buildCanonicalCodes([]int{1, 1, 1, 1})
	if err == nil {
		t.Fatal("expected an error for an over-subscribed length vector")
	}
}

func TestLengthLimitedLengthsRespectsKraft(t *testing.T) {
	freq := make([]int, 20)
	for i := range freq {
		freq[i] = i*i + 1
	}
	const maxLen = 7
	lengths := lengthLimitedLengths(freq, maxLen)

	for _, l := range lengths {
		if l > maxLen {
			t.Fatalf("length %d exceeds max %d", l, maxLen)
		}
	}

	sum := 0
	full := 1 << maxLen
	for _, l := range lengths {
		if l == 0 {
			continue
		}
		sum += full >> l
	}
	if sum > full {
		t.Fatalf("Kraft inequality violated: sum=%d full=%d", sum, full)
	}

	if _, err := buildCanonicalCodes(lengths); err != nil {
		t.Fatalf("length-limited lengths were not a valid canonical vector: %v", err)
	}
}

func TestLengthLimitedLengthsSingleSymbol(t *testing.T) {
	freq := make([]int, 5)
	freq[2] = 100
	lengths := lengthLimitedLengths(freq, 15)
	if lengths[2] != 1 {
		t.Fatalf("single-symbol alphabet got length %d, want 1", lengths[2])
	}
	for i, l := range lengths {
		if i != 2 && l != 0 {
			t.Fatalf("unused symbol %d got nonzero length %d", i, l)
		}
	}
}

func TestLengthLimitedLengthsEmpty(t *testing.T) {
	lengths := lengthLimitedLengths(make([]int, 10), 15)
	for i, l := range lengths {
		if l != 0 {
			t.Fatalf("symbol %d in an all-zero histogram got length %d", i, l)
		}
	}
}

func TestLengthLimitedLengthsShorterForMoreFrequent(t *testing.T) {
	freq := []int{1, 1000, 2, 3}
	lengths := lengthLimitedLengths(freq, 15)
	if lengths[1] > lengths[0] || lengths[1] > lengths[3] {
		t.Fatalf("most frequent symbol did not get the shortest code: lengths=%v", lengths)
	}
}
