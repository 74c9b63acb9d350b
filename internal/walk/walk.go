// Package walk enumerates the regular files under an fs.FS in an order
// that approximates their order on disk, so an archive built by
// reading them sequentially doesn't thrash a spinning disk or an
// unindexed network mount jumping between unrelated directories.
package walk

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter selects which of the files fs.WalkDir would visit actually
// get archived. A nil Includes matches everything; a path matching any
// Excludes pattern is always dropped, even if it also matches an
// include.
type Filter struct {
	Includes []string
	Excludes []string
}

func (f Filter) keep(name string) bool {
	for _, pat := range f.Excludes {
		if ok, _ := doublestar.Match(pat, name); ok {
			return false
		}
	}
	if len(f.Includes) == 0 {
		return true
	}
	for _, pat := range f.Includes {
		if ok, _ := doublestar.Match(pat, name); ok {
			return true
		}
	}
	return false
}

// FilesInDiskOrder returns every regular file under fsys that f
// admits, in an order chosen by whatever disk-locality signal is
// available (inode number on platforms that expose one, otherwise
// plain walk order), along with the name of that ordering for logging.
func FilesInDiskOrder(fsys fs.FS, f Filter) (string, <-chan string) {
	return sortPaths(fsys, walkAsync(fsys, f))
}

func walkAsync(fsys fs.FS, f Filter) <-chan string {
	ch, wg := make(chan string), new(sync.WaitGroup)
	wg.Add(1)
	go recurse(fsys, ".", f, ch, wg)
	go func() { wg.Wait(); close(ch) }()
	return ch
}

func recurse(fsys fs.FS, name string, f Filter, ch chan<- string, wg *sync.WaitGroup) {
	defer wg.Done()
	file, err := fsys.Open(name)
	if err != nil {
		return
	}
	defer file.Close()
	dir, ok := file.(fs.ReadDirFile)
	if !ok {
		panic(fmt.Sprintf("%q is a %T, does not satisfy ReadDirFile", name, file))
	}
	for {
		entries, err := dir.ReadDir(10)
		for _, de := range entries {
			child := path.Join(name, de.Name())
			switch de.Type() {
			case fs.ModeDir:
				wg.Add(1)
				go recurse(fsys, child, f, ch, wg)
			case 0: // regular file
				if f.keep(child) {
					ch <- child
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// sortPaths orders ch's files by disk-locality key when fsys exposes
// one (inode number, on the platforms walk/inode_unix.go supports),
// falling back to passing files through in arrival order otherwise.
func sortPaths(fsys fs.FS, ch <-chan string) (string, <-chan string) {
	out := make(chan string)
	f1, ok := <-ch
	if !ok {
		close(out)
		return "no-files", out
	}

	stat1, err := fs.Stat(fsys, f1)
	var (
		k1      uint64
		waysort string
		cansort bool
	)
	if err != nil {
		waysort = "walk-order"
	} else {
		k1, waysort, cansort = getkey(stat1)
		if !cansort {
			waysort = "walk-order"
		}
	}

	if !cansort {
		go func() {
			defer close(out)
			out <- f1
			for f := range ch {
				out <- f
			}
		}()
		return waysort, out
	}

	go func() {
		defer close(out)
		sortlist := fileSlice{file{path: f1, key: k1}}
		for f := range ch {
			el := file{path: f}
			if info, err := fs.Stat(fsys, f); err == nil {
				el.key, _, _ = getkey(info)
			}
			sortlist = append(sortlist, el)
		}
		sort.Sort(sortlist)
		for _, f := range sortlist {
			out <- f.path
		}
	}()
	return waysort, out
}

type fileSlice []file
type file struct {
	path string
	key  uint64
}

func (x fileSlice) Len() int           { return len(x) }
func (x fileSlice) Less(i, j int) bool { return x[i].key < x[j].key }
func (x fileSlice) Swap(i, j int)      { x[i], x[j] = x[j], x[i] }

func getkey(i fs.FileInfo) (uint64, string, bool) {
	if ino, ok := tryInode(i); ok { // a vague proxy for "order on disk"
		return ino, "inode-number", true
	}
	switch t := i.Sys().(type) {
	case interface{ ByteOffset() int64 }:
		return uint64(t.ByteOffset()), "byte-offset", true
	case interface{ Inode() uint64 }:
		return t.Inode(), "inode-number", true
	}
	return 0, "", false
}

var tryInode = func(i fs.FileInfo) (uint64, bool) { return 0, false }
