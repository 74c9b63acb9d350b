// Package dictcache remembers how compressible recently seen content
// prefixes turned out to be, so a build walking many files can skip
// the tokenizer's expensive exhaustive hash-chain search on files that
// look like ones already known to be incompressible — already-deflated
// archives, photos, anything dense enough that a deep search mostly
// just burns chain budget without finding anything. It never touches
// DEFLATE semantics directly: internal/deflate stays self-contained,
// and this package only ever recommends a cheaper Options.MaxChain.
package dictcache

import (
	"hash/maphash"

	"github.com/dgryski/go-tinylfu"
)

// prefixLen is how many leading bytes of a file's content key an
// observation, long enough to distinguish most file formats by magic
// bytes without being so long that near-identical files miss each
// other's history.
const prefixLen = 8

// PrefixOf returns the cache key for content: its first prefixLen
// bytes, or all of it if shorter. Shorter content is zero-padded to
// prefixLen before hashing, so it shares a key with content that
// continues with zero bytes.
func PrefixOf(content []byte) uint64 {
	n := len(content)
	if n > prefixLen {
		n = prefixLen
	}
	var buf [prefixLen]byte
	copy(buf[:], content[:n])
	return maphash.Comparable(seed, buf)
}

type observation struct {
	matchedBytes, totalBytes int64
}

// Cache is a bounded, concurrency-unsafe history of compression ratios
// by content prefix. Callers needing concurrent access should guard it
// themselves, the same way the tinylfu-backed caches in this
// codebase's ancestor (internal/spinner) do at a layer above the cache
// itself rather than inside it.
type Cache struct {
	lfu *tinylfu.T[uint64, observation]
}

// New returns a Cache holding observations for up to capacity distinct
// content prefixes.
func New(capacity int) *Cache {
	c := &Cache{}
	c.lfu = tinylfu.New[uint64, observation](capacity, capacity*10, identityHash, tinylfu.OnEvict(func(uint64, observation) {}))
	return c
}

// Observe records that a block of content keyed by prefix compressed
// matchedBytes worth of back-reference coverage out of totalBytes.
// Low coverage (most bytes went out as literals) means this kind of
// content isn't worth searching hard for matches.
func (c *Cache) Observe(prefix uint64, matchedBytes, totalBytes int) {
	if totalBytes <= 0 {
		return
	}
	prev, _ := c.lfu.Get(prefix)
	prev.matchedBytes += int64(matchedBytes)
	prev.totalBytes += int64(totalBytes)
	c.lfu.Add(prefix, prev)
}

// SuggestMaxChain returns a hash-chain search budget for content keyed
// by prefix: defaultChain if this prefix has no history or has
// compressed reasonably well before, and a sharply reduced budget if
// history shows it's mostly incompressible.
func (c *Cache) SuggestMaxChain(prefix uint64, defaultChain int) int {
	obs, ok := c.lfu.Get(prefix)
	if !ok || obs.totalBytes == 0 {
		return defaultChain
	}
	if obs.matchedBytes*5 < obs.totalBytes { // matched less than 20% by byte count
		reduced := defaultChain / 8
		if reduced < 1 {
			reduced = 1
		}
		return reduced
	}
	return defaultChain
}

var seed = maphash.MakeSeed()

func identityHash(k uint64) uint64 { return k }
