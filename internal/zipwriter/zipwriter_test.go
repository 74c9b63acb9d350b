package zipwriter

import (
	"archive/zip"
	"bytes"
	"hash/crc32"
	"io"
	"testing"
	"time"

	"github.com/elliotnunn/zipwright/internal/deflate"
)

func TestWriterReadableByStdlibZip(t *testing.T) {
	var buf bytes.Buffer
	zw := NewWriter(&buf)

	members := map[string][]byte{
		"hello.txt":        []byte("hello, world\n"),
		"dir/empty.txt":    nil,
		"dir/repeated.txt": bytes.Repeat([]byte("la"), 10000),
	}
	modTime := time.Date(2024, 6, 15, 12, 30, 0, 0, time.UTC)

	for _, name := range []string{"hello.txt", "dir/empty.txt", "dir/repeated.txt"} {
		if err := zw.Add(name, modTime, members[name]); err != nil {
			t.Fatalf("Add(%q): %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("stdlib zip.NewReader rejected our archive: %v", err)
	}
	if len(r.File) != len(members) {
		t.Fatalf("got %d entries, want %d", len(r.File), len(members))
	}

	for _, f := range r.File {
		want, ok := members[f.Name]
		if !ok {
			t.Fatalf("unexpected member %q", f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("opening %q: %v", f.Name, err)
		}
		got, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("reading %q: %v", f.Name, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("member %q: got %d bytes, want %d", f.Name, len(got), len(want))
		}
	}
}

func TestDosDateTimeRoundTripsWithinResolution(t *testing.T) {
	in := time.Date(2030, 3, 17, 9, 45, 32, 0, time.UTC)
	date, dtime := dosDateTime(in)

	year := int(date>>9) + 1980
	month := int((date >> 5) & 0xf)
	day := int(date & 0x1f)
	hour := int(dtime >> 11)
	min := int((dtime >> 5) & 0x3f)
	sec := int(dtime&0x1f) * 2

	got := time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC)
	if !got.Equal(time.Date(2030, 3, 17, 9, 45, 32, 0, time.UTC)) {
		t.Fatalf("dosDateTime round trip gave %v, want 2030-03-17 09:45:32 (2s resolution)", got)
	}
}

func TestDosDateTimeClampsBeforeEpoch(t *testing.T) {
	date, dtime := dosDateTime(time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC))
	if date>>9 != 0 {
		t.Fatalf("expected clamped year 1980, got DOS year field %d", date>>9)
	}
	_ = dtime
}

func TestAddCompressedReusesPrecomputedBytes(t *testing.T) {
	content := []byte("previously deflated by an earlier build, reused verbatim")
	var compressed bytes.Buffer
	if err := deflate.Deflate(content, &compressed); err != nil {
		t.Fatalf("deflate.Deflate: %v", err)
	}

	var buf bytes.Buffer
	zw := NewWriter(&buf)
	checksum := crc32.ChecksumIEEE(content)
	if err := zw.AddCompressed("reused.txt", time.Now(), checksum, len(content), compressed.Bytes()); err != nil {
		t.Fatalf("AddCompressed: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("stdlib zip.NewReader rejected our archive: %v", err)
	}
	if len(r.File) != 1 {
		t.Fatalf("got %d entries, want 1", len(r.File))
	}
	rc, err := r.File[0].Open()
	if err != nil {
		t.Fatalf("opening member: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading member: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("got %q, want %q", got, content)
	}
}

func TestAddNameTooLong(t *testing.T) {
	zw := NewWriter(&bytes.Buffer{})
	name := string(make([]byte, 0x10000))
	if err := zw.Add(name, time.Now(), nil); err == nil {
		t.Fatal("expected an error for an oversized member name")
	}
}
