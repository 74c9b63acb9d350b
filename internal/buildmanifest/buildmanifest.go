// Package buildmanifest records, across runs, what this builder last
// wrote for each source file, so a second build over a mostly
// unchanged tree can skip redeflating anything whose identity and
// size haven't moved. It is the persistent analogue of the
// checkpoint/resume design this codebase's own streaming DEFLATE
// reader uses on the read side, applied here to writing instead.
package buildmanifest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/pebble/v2"

	"github.com/elliotnunn/zipwright/internal/fileid"
)

// ErrClosed is returned by any Manifest method called after Close.
var ErrClosed = errors.New("buildmanifest: manifest is closed")

// Record is what the manifest remembers about one archived file as of
// the last time it was written, including the actual compressed bytes
// so a later run can re-emit them verbatim instead of re-deflating.
type Record struct {
	Size        int64
	ModTime     time.Time
	CRC32       uint32
	LocalOffset uint32 // byte offset of its local file header in the archive that produced this record
	Path        string // archive member name, for diagnostics and re-emission
	Compressed  []byte // the DEFLATE bytes last written for this member
}

// Manifest is a persistent key-value store keyed by fileid.ID. It is
// safe for concurrent use: pebble.DB already is.
type Manifest struct {
	db *pebble.DB
}

// Open opens (creating if necessary) a manifest database at dir.
func Open(dir string) (*Manifest, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("buildmanifest: opening %s: %w", dir, err)
	}
	return &Manifest{db: db}, nil
}

// Close releases the underlying database.
func (m *Manifest) Close() error {
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}

// Lookup returns the record last stored for id, if any.
func (m *Manifest) Lookup(id fileid.ID) (Record, bool, error) {
	if m.db == nil {
		return Record{}, false, ErrClosed
	}
	value, closer, err := m.db.Get(id[:])
	if err == pebble.ErrNotFound {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("buildmanifest: lookup: %w", err)
	}
	defer closer.Close()

	rec, err := decodeRecord(value)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Unchanged reports whether id's last recorded size matches size —
// the cheap precondition for reusing a previous build's compressed
// bytes wholesale instead of redeflating.
func (m *Manifest) Unchanged(id fileid.ID, size int64) (Record, bool, error) {
	rec, ok, err := m.Lookup(id)
	if err != nil || !ok || rec.Size != size {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Put stores rec as the current record for id.
func (m *Manifest) Put(id fileid.ID, rec Record) error {
	if m.db == nil {
		return ErrClosed
	}
	if err := m.db.Set(id[:], encodeRecord(rec), pebble.Sync); err != nil {
		return fmt.Errorf("buildmanifest: put: %w", err)
	}
	return nil
}

func encodeRecord(r Record) []byte {
	buf := make([]byte, 8+8+4+4+2+len(r.Path)+len(r.Compressed))
	binary.BigEndian.PutUint64(buf[0:], uint64(r.Size))
	binary.BigEndian.PutUint64(buf[8:], uint64(r.ModTime.UnixNano()))
	binary.BigEndian.PutUint32(buf[16:], r.CRC32)
	binary.BigEndian.PutUint32(buf[20:], r.LocalOffset)
	binary.BigEndian.PutUint16(buf[24:], uint16(len(r.Path)))
	n := copy(buf[26:], r.Path)
	copy(buf[26+n:], r.Compressed)
	return buf
}

func decodeRecord(buf []byte) (Record, error) {
	if len(buf) < 26 {
		return Record{}, fmt.Errorf("buildmanifest: record too short (%d bytes): %w", len(buf), io.ErrUnexpectedEOF)
	}
	pathLen := int(binary.BigEndian.Uint16(buf[24:]))
	if len(buf) < 26+pathLen {
		return Record{}, fmt.Errorf("buildmanifest: record path length %d overruns buffer: %w", pathLen, io.ErrUnexpectedEOF)
	}
	return Record{
		Size:        int64(binary.BigEndian.Uint64(buf[0:])),
		ModTime:     time.Unix(0, int64(binary.BigEndian.Uint64(buf[8:]))),
		CRC32:       binary.BigEndian.Uint32(buf[16:]),
		LocalOffset: binary.BigEndian.Uint32(buf[20:]),
		Path:        string(buf[26 : 26+pathLen]),
		Compressed:  append([]byte(nil), buf[26+pathLen:]...),
	}, nil
}
