// Package archivecache memoizes the one expensive byte-producing step
// this builder can redundantly repeat within a single run: deflating a
// file whose content is duplicated elsewhere in the tree. The cache is
// content-addressed and held in memory, so its entries last only for
// the current process; nothing carries over to a later run.
package archivecache

import (
	"context"
	"encoding/binary"

	"github.com/allegro/bigcache/v3"
)

// CompressedKey identifies a span of source content by its size and
// content digest (xxhash64), the unit that GetCompressed/PutCompressed
// dedup on: two files with the same key are guaranteed, for archiving
// purposes, to compress to the same DEFLATE bytes.
type CompressedKey struct {
	Size   int64
	Digest uint64
}

// GetCompressed returns a previously cached DEFLATE member for key, if
// this process has already produced one.
func GetCompressed(key CompressedKey) ([]byte, bool) {
	blob, err := members.Get(compressedKey(key))
	if err != nil {
		return nil, false
	}
	return blob, true
}

// PutCompressed records deflated as the DEFLATE member for key.
func PutCompressed(key CompressedKey, deflated []byte) {
	members.Set(compressedKey(key), deflated)
}

func compressedKey(key CompressedKey) string {
	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], uint64(key.Size))
	binary.BigEndian.PutUint64(b[8:], key.Digest)
	return string(b[:])
}

var members *bigcache.BigCache

func init() {
	var err error
	members, err = bigcache.New(context.Background(), bigcache.Config{
		HardMaxCacheSize: 512, // megabytes
		Shards:           1024,
	})
	if err != nil {
		panic(err)
	}
}
