package main

import (
	"archive/zip"
	"bytes"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
}

func readZipMembers(t *testing.T, path string) map[string]string {
	t.Helper()
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("zip.OpenReader(%s): %v", path, err)
	}
	defer r.Close()

	out := make(map[string]string)
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("opening %s: %v", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("reading %s: %v", f.Name, err)
		}
		out[f.Name] = string(content)
	}
	return out
}

func TestRunBuildsReadableArchive(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"a.txt":        "hello from a",
		"dir/b.txt":    "hello from b, repeated repeated repeated repeated",
		"dir/dupe.txt": "hello from a", // identical content to a.txt
	})

	out := filepath.Join(t.TempDir(), "out.zip")
	if err := run([]string{"-src", src, "-out", out}); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := readZipMembers(t, out)
	want := map[string]string{
		"a.txt":        "hello from a",
		"dir/b.txt":    "hello from b, repeated repeated repeated repeated",
		"dir/dupe.txt": "hello from a",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d members, want %d: %v", len(got), len(want), got)
	}
	for name, content := range want {
		if got[name] != content {
			t.Fatalf("member %q: got %q, want %q", name, got[name], content)
		}
	}
}

func TestRunSecondPassReusesManifest(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"only.txt": "content that should be reused across builds, not redeflated",
	})
	out := filepath.Join(t.TempDir(), "out.zip")
	args := []string{"-src", src, "-out", out}

	if err := run(args); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if err := run(args); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Fatal("rebuilding an unchanged tree produced a different archive")
	}

	members := readZipMembers(t, out)
	if members["only.txt"] != "content that should be reused across builds, not redeflated" {
		t.Fatalf("unexpected content after second run: %q", members["only.txt"])
	}
}

func TestRunHonorsIncludeExclude(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"keep.txt":      "keep me",
		"skip.log":      "drop me",
		"nested/keep.go": "package nested",
	})
	out := filepath.Join(t.TempDir(), "out.zip")
	err := run([]string{
		"-src", src,
		"-out", out,
		"-include", "**/*.txt,**/*.go",
		"-exclude", "**/*.log",
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	got := readZipMembers(t, out)
	if _, ok := got["skip.log"]; ok {
		t.Fatal("skip.log should have been excluded")
	}
	if len(got) != 2 {
		t.Fatalf("got %d members, want 2: %v", len(got), got)
	}
}

// xzFixtureHex is "hello from an xz-compressed source file, duplicated
// duplicated duplicated" compressed with `xz -9 --format=xz`, embedded
// directly since this repository only ever reads XZ, never writes it.
const xzFixtureHex = "fd377a585a000004e6d6b44604c0404921011c00000000000000000097c9dfb8e0004800385d00341949ee8de912e6140ebfb920e7cd8ddeb723ac283f4497c23ff4b9bc79b18ee5cb1a9efa654c86c9729160651fa07fb1c92cd347394c00004f1eb1f76fad471000015c49475e88391fb6f37d010000000004595a"

func TestRunRecompressesForeignXZSources(t *testing.T) {
	xzBytes, err := hex.DecodeString(xzFixtureHex)
	if err != nil {
		t.Fatalf("decoding xz fixture: %v", err)
	}
	const want = "hello from an xz-compressed source file, duplicated duplicated duplicated"

	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "dir"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, "dir", "notes.txt.xz"), xzBytes, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	out := filepath.Join(t.TempDir(), "out.zip")
	if err := run([]string{"-src", src, "-out", out}); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := readZipMembers(t, out)
	if _, ok := got["dir/notes.txt.xz"]; ok {
		t.Fatal("member should have been stored under its decompressed name, without the .xz suffix")
	}
	if got["dir/notes.txt"] != want {
		t.Fatalf("member %q: got %q, want %q", "dir/notes.txt", got["dir/notes.txt"], want)
	}
}

func TestParseArgsRequiresSrcAndOut(t *testing.T) {
	if _, err := parseArgs([]string{}); err == nil {
		t.Fatal("expected an error with no flags set")
	}
	if _, err := parseArgs([]string{"-src", "x"}); err == nil {
		t.Fatal("expected an error with -out missing")
	}
}
