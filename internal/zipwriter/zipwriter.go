// Package zipwriter builds a ZIP archive (PKWARE APPNOTE section 4.3)
// around DEFLATE members produced by internal/deflate. It owns the
// container framing only: local file headers, the central directory,
// and the end-of-central-directory record. All of the actual byte
// compression is delegated elsewhere, the same division of labor the
// ancestor codebase's own internal/zip package drew between container
// parsing and internal/flate decompression.
package zipwriter

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"time"

	"github.com/elliotnunn/zipwright/internal/deflate"
)

// ErrNameTooLong is returned by Add when a member name can't fit in
// the 16-bit length field the format allots it.
var ErrNameTooLong = errors.New("zipwriter: member name too long")

// ErrSinkWrite wraps a failure writing to the archive's underlying
// io.Writer.
var ErrSinkWrite = errors.New("zipwriter: write failed")

const (
	localFileHeaderSig  = 0x04034b50
	centralDirHeaderSig = 0x02014b50
	eocdSig             = 0x06054b50

	methodStored  = 0
	methodDeflate = 8

	versionNeeded = 20 // matches the oldest feature this writer uses
	versionMadeBy = 20 | (3 << 8) // low byte version, high byte OS (3 = Unix)
)

// Writer writes each ZIP member to an underlying io.Writer as it is
// added, and completes the archive with the central directory when
// Close is called. Members must be added in final archive order; there
// is no random-access rewriting.
type Writer struct {
	w       io.Writer
	offset  int64
	entries []centralEntry
	err     error

	// CompressOptions configures every member's DEFLATE encoding (chain
	// length, match hint); the zero value is the package default.
	CompressOptions deflate.Options
}

type centralEntry struct {
	name           string
	method         uint16
	modTime        uint16
	modDate        uint16
	crc32          uint32
	compressedSize uint32
	size           uint32
	localOffset    uint32
}

// NewWriter returns a Writer that will write its archive to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Add compresses content with internal/deflate and appends it to the
// archive as a member named name, stamped with modTime. Content
// shorter than a few bytes, or that DEFLATE fails to shrink, is still
// written compressed: the format tolerates near-incompressible members
// fine, and a dedicated stored-method path isn't worth the complexity
// it would add for a marginal handful of bytes.
func (zw *Writer) Add(name string, modTime time.Time, content []byte) error {
	var compressed fastBuffer
	if err := deflate.DeflateWithOptions(content, &compressed, zw.CompressOptions); err != nil {
		return fmt.Errorf("zipwriter: compressing %q: %w", name, err)
	}
	return zw.AddCompressed(name, modTime, crc32.ChecksumIEEE(content), len(content), compressed.b)
}

// AddCompressed appends a member whose DEFLATE bytes were already
// produced elsewhere — reused from a previous build's manifest, or
// from internal/archivecache's content-addressed cache when another
// file earlier in this same archive has identical content. Callers
// are trusted to pass a crc32 and size that actually match compressed.
func (zw *Writer) AddCompressed(name string, modTime time.Time, checksum uint32, size int, compressed []byte) error {
	if zw.err != nil {
		return zw.err
	}
	if len(name) > 0xffff {
		return fmt.Errorf("%q: %w", name, ErrNameTooLong)
	}

	entry := centralEntry{
		name:           name,
		method:         methodDeflate,
		crc32:          checksum,
		compressedSize: uint32(len(compressed)),
		size:           uint32(size),
		localOffset:    uint32(zw.offset),
	}
	entry.modDate, entry.modTime = dosDateTime(modTime)

	if err := zw.writeLocalHeader(entry); err != nil {
		return err
	}
	if err := zw.write(compressed); err != nil {
		return err
	}
	zw.entries = append(zw.entries, entry)
	return zw.err
}

// Close writes the central directory and end-of-central-directory
// record, finishing the archive. It does not close the underlying
// io.Writer.
func (zw *Writer) Close() error {
	if zw.err != nil {
		return zw.err
	}
	cdStart := zw.offset
	for _, e := range zw.entries {
		if err := zw.writeCentralHeader(e); err != nil {
			return err
		}
	}
	cdSize := zw.offset - cdStart
	zw.writeEOCD(len(zw.entries), cdSize, cdStart)
	return zw.err
}

func (zw *Writer) write(p []byte) error {
	if zw.err != nil {
		return zw.err
	}
	n, err := zw.w.Write(p)
	zw.offset += int64(n)
	if err != nil {
		zw.err = fmt.Errorf("%w: %w", ErrSinkWrite, err)
	}
	return zw.err
}

func (zw *Writer) writeLocalHeader(e centralEntry) error {
	var hdr [30]byte
	binary.LittleEndian.PutUint32(hdr[0:], localFileHeaderSig)
	binary.LittleEndian.PutUint16(hdr[4:], versionNeeded)
	binary.LittleEndian.PutUint16(hdr[6:], 0) // flags
	binary.LittleEndian.PutUint16(hdr[8:], e.method)
	binary.LittleEndian.PutUint16(hdr[10:], e.modTime)
	binary.LittleEndian.PutUint16(hdr[12:], e.modDate)
	binary.LittleEndian.PutUint32(hdr[14:], e.crc32)
	binary.LittleEndian.PutUint32(hdr[18:], e.compressedSize)
	binary.LittleEndian.PutUint32(hdr[22:], e.size)
	binary.LittleEndian.PutUint16(hdr[26:], uint16(len(e.name)))
	binary.LittleEndian.PutUint16(hdr[28:], 0) // extra field length
	if err := zw.write(hdr[:]); err != nil {
		return err
	}
	return zw.write([]byte(e.name))
}

func (zw *Writer) writeCentralHeader(e centralEntry) error {
	var hdr [46]byte
	binary.LittleEndian.PutUint32(hdr[0:], centralDirHeaderSig)
	binary.LittleEndian.PutUint16(hdr[4:], versionMadeBy)
	binary.LittleEndian.PutUint16(hdr[6:], versionNeeded)
	binary.LittleEndian.PutUint16(hdr[8:], 0) // flags
	binary.LittleEndian.PutUint16(hdr[10:], e.method)
	binary.LittleEndian.PutUint16(hdr[12:], e.modTime)
	binary.LittleEndian.PutUint16(hdr[14:], e.modDate)
	binary.LittleEndian.PutUint32(hdr[16:], e.crc32)
	binary.LittleEndian.PutUint32(hdr[20:], e.compressedSize)
	binary.LittleEndian.PutUint32(hdr[24:], e.size)
	binary.LittleEndian.PutUint16(hdr[28:], uint16(len(e.name)))
	binary.LittleEndian.PutUint16(hdr[30:], 0) // extra field length
	binary.LittleEndian.PutUint16(hdr[32:], 0) // comment length
	binary.LittleEndian.PutUint16(hdr[34:], 0) // disk number start
	binary.LittleEndian.PutUint16(hdr[36:], 0) // internal attributes
	binary.LittleEndian.PutUint32(hdr[38:], 0) // external attributes
	binary.LittleEndian.PutUint32(hdr[42:], e.localOffset)
	if err := zw.write(hdr[:]); err != nil {
		return err
	}
	return zw.write([]byte(e.name))
}

func (zw *Writer) writeEOCD(count int, cdSize, cdOffset int64) {
	var hdr [22]byte
	binary.LittleEndian.PutUint32(hdr[0:], eocdSig)
	binary.LittleEndian.PutUint16(hdr[4:], 0) // disk number
	binary.LittleEndian.PutUint16(hdr[6:], 0) // disk with central dir
	binary.LittleEndian.PutUint16(hdr[8:], uint16(count))
	binary.LittleEndian.PutUint16(hdr[10:], uint16(count))
	binary.LittleEndian.PutUint32(hdr[12:], uint32(cdSize))
	binary.LittleEndian.PutUint32(hdr[16:], uint32(cdOffset))
	binary.LittleEndian.PutUint16(hdr[20:], 0) // comment length
	zw.write(hdr[:])
}

// fastBuffer is an io.Writer sink that appends to a byte slice, used
// to materialize a member's compressed bytes before its size is known
// well enough to write the local file header.
type fastBuffer struct{ b []byte }

func (f *fastBuffer) Write(p []byte) (int, error) {
	f.b = append(f.b, p...)
	return len(p), nil
}
