// Package fileid derives a stable identity for a regular file on disk,
// used to recognize "the same file" across incremental archive builds
// even if it moves to another directory. Where the ID includes a hash
// of the file name, renaming the file changes its identity.
package fileid

import "errors"

// ID identifies a file: the low 8 bytes are usually its inode number,
// the high 4 a hash distinguishing files that have been deleted and
// had their inode reused. Platform-specific Get implementations fill
// it in; see fileid_linux.go, fileid_darwin.go, and the fallbacks.
type ID [12]byte

// ErrNotOS is returned by Get when the fs.FS or fs.File backing a path
// isn't a real OS file, so no platform identity is available.
var ErrNotOS = errors.New("fileid: not backed by an OS file")
