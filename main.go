// Command zipwright deflates a directory tree into a .zip archive,
// reusing previously compressed bytes across runs wherever a file's
// identity and size haven't changed.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/therootcompany/xz"

	"github.com/elliotnunn/zipwright/internal/archivecache"
	"github.com/elliotnunn/zipwright/internal/buildmanifest"
	"github.com/elliotnunn/zipwright/internal/deflate"
	"github.com/elliotnunn/zipwright/internal/dictcache"
	"github.com/elliotnunn/zipwright/internal/fileid"
	"github.com/elliotnunn/zipwright/internal/walk"
	"github.com/elliotnunn/zipwright/internal/zipwriter"

	"log/slog"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

type config struct {
	src, out, manifestDir string
	includes, excludes    []string
	workers               int
	maxChain              int
}

func parseArgs(args []string) (config, error) {
	fset := flag.NewFlagSet("zipwright", flag.ContinueOnError)
	src := fset.String("src", "", "directory to archive")
	out := fset.String("out", "", "path of the .zip file to write")
	include := fset.String("include", "", "comma-separated doublestar globs; only matching paths are archived (default: everything)")
	exclude := fset.String("exclude", "", "comma-separated doublestar globs; matching paths are never archived, even if also included")
	workers := fset.Int("workers", 0, "number of files to deflate concurrently (default: GOMAXPROCS)")
	manifest := fset.String("manifest", "", "build manifest directory, for skipping unchanged files across runs (default: <out>.manifest)")
	chain := fset.Int("chain", 0, "LZ77 hash-chain search budget per file (default: internal/deflate's own default)")

	if err := fset.Parse(args); err != nil {
		return config{}, err
	}
	if *src == "" || *out == "" {
		return config{}, fmt.Errorf("zipwright: -src and -out are required")
	}

	cfg := config{
		src:      *src,
		out:      *out,
		workers:  *workers,
		maxChain: *chain,
	}
	if *include != "" {
		cfg.includes = strings.Split(*include, ",")
	}
	if *exclude != "" {
		cfg.excludes = strings.Split(*exclude, ",")
	}
	cfg.manifestDir = *manifest
	if cfg.manifestDir == "" {
		cfg.manifestDir = *out + ".manifest"
	}
	if cfg.workers <= 0 {
		cfg.workers = runtime.GOMAXPROCS(-1)
	}
	return cfg, nil
}

func run(args []string) error {
	cfg, err := parseArgs(args)
	if err != nil {
		return err
	}

	manifest, err := buildmanifest.Open(cfg.manifestDir)
	if err != nil {
		return fmt.Errorf("opening build manifest: %w", err)
	}
	defer manifest.Close()

	fsys := os.DirFS(cfg.src)
	filter := walk.Filter{Includes: cfg.includes, Excludes: cfg.excludes}
	waysort, found := walk.FilesInDiskOrder(fsys, filter)
	slog.Info("walkStart", "src", cfg.src, "sortorder", waysort)

	var paths []string
	for p := range found {
		paths = append(paths, p)
	}
	slog.Info("walkDone", "files", len(paths))

	dc := dictcache.New(4096)
	results := make([]fileOutcome, len(paths))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range cfg.workers {
		wg.Go(func() {
			for i := range jobs {
				results[i] = processFile(fsys, paths[i], manifest, dc, cfg.maxChain)
			}
		})
	}
	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if err := os.MkdirAll(filepath.Dir(cfg.out), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	out, err := os.Create(cfg.out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", cfg.out, err)
	}
	defer out.Close()

	zw := zipwriter.NewWriter(out)

	var reused, deflated, skipped int
	for i, r := range results {
		if r.err != nil {
			slog.Error("skipFile", "path", paths[i], "err", r.err)
			skipped++
			continue
		}
		if err := zw.AddCompressed(r.name, r.modTime, r.checksum, r.size, r.compressed); err != nil {
			return fmt.Errorf("writing %s to archive: %w", r.name, err)
		}
		if r.reused {
			reused++
		} else {
			deflated++
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}

	slog.Info("archiveDone", "out", cfg.out, "members", reused+deflated, "reused", reused, "deflated", deflated, "skipped", skipped)
	return nil
}

// fileOutcome is one worker's result for a single source path: either
// the bytes ready to hand to zipwriter.Writer.AddCompressed, or an
// error that should exclude it from the archive entirely.
type fileOutcome struct {
	name       string
	modTime    time.Time
	checksum   uint32
	size       int
	compressed []byte
	reused     bool
	err        error
}

// dcMu guards the dictcache.Cache that every worker shares; the cache
// itself is not safe for concurrent use.
var dcMu sync.Mutex

// processFile prepares one archive member. It tries, in order: the
// build manifest's memory of this exact file (skipping the read
// entirely), the content-addressed compression cache (skipping only
// the deflate, for content duplicated elsewhere in this tree), and
// finally a fresh internal/deflate call, informed by dictcache's
// compressibility history.
func processFile(fsys fs.FS, path string, manifest *buildmanifest.Manifest, dc *dictcache.Cache, maxChain int) fileOutcome {
	info, err := fs.Stat(fsys, path)
	if err != nil {
		return fileOutcome{err: fmt.Errorf("stat: %w", err)}
	}

	memberName := path
	recompressForeign := strings.HasSuffix(path, ".xz")
	if recompressForeign {
		memberName = strings.TrimSuffix(path, ".xz")
	}

	id, idErr := fileid.Get(fsys, path)
	if idErr == nil && !recompressForeign {
		if rec, ok, err := manifest.Unchanged(id, info.Size()); err == nil && ok {
			return fileOutcome{
				name:       memberName,
				modTime:    info.ModTime(),
				checksum:   rec.CRC32,
				size:       int(rec.Size),
				compressed: rec.Compressed,
				reused:     true,
			}
		}
	}

	raw, err := fs.ReadFile(fsys, path)
	if err != nil {
		return fileOutcome{err: fmt.Errorf("read: %w", err)}
	}

	content := raw
	if recompressForeign {
		zr, err2 := xz.NewReader(bytes.NewReader(raw), xz.DefaultDictMax)
		if err2 != nil {
			return fileOutcome{err: fmt.Errorf("decompressing xz: %w", err2)}
		}
		content, err = io.ReadAll(zr)
		if err != nil {
			return fileOutcome{err: fmt.Errorf("decompressing xz: %w", err)}
		}
	}

	checksum := crc32.ChecksumIEEE(content)
	digest := xxhash.Sum64(content)
	cacheKey := archivecache.CompressedKey{Size: int64(len(content)), Digest: digest}

	compressed, ok := archivecache.GetCompressed(cacheKey)
	if !ok {
		prefix := dictcache.PrefixOf(content)
		var stats deflate.Stats
		var buf bytes.Buffer
		dcMu.Lock()
		suggested := dc.SuggestMaxChain(prefix, maxChain)
		dcMu.Unlock()
		opts := deflate.Options{
			MaxChain: suggested,
			Stats:    &stats,
		}
		if err := deflate.DeflateWithOptions(content, &buf, opts); err != nil {
			return fileOutcome{err: fmt.Errorf("deflate: %w", err)}
		}
		compressed = buf.Bytes()
		dcMu.Lock()
		dc.Observe(prefix, stats.MatchedBytes, stats.TotalBytes)
		dcMu.Unlock()
		archivecache.PutCompressed(cacheKey, compressed)
	}

	if idErr == nil && !recompressForeign {
		if err := manifest.Put(id, buildmanifest.Record{
			Size:       info.Size(),
			ModTime:    info.ModTime(),
			CRC32:      checksum,
			Path:       memberName,
			Compressed: compressed,
		}); err != nil {
			slog.Error("manifestPutFailed", "path", path, "err", err)
		}
	}

	return fileOutcome{
		name:       memberName,
		modTime:    info.ModTime(),
		checksum:   checksum,
		size:       len(content),
		compressed: compressed,
	}
}
