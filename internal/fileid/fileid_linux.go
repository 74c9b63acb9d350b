package fileid

import (
	"encoding/binary"
	"errors"
	"io/fs"
	"os"
	"path"
	"syscall"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sys/unix"
)

func Get(fsys fs.FS, pathname string) (ID, error) {
	// Use statx to get access to the birth time of the file
	// unfortunately this forces us into some awkward interactions with io/fs
	// specifically to make sure we don't try to retrieve a symlink
	inf, err := fs.Lstat(fsys, pathname)
	if err != nil {
		return ID{}, err
	}
	if inf.Mode().Type() == fs.ModeSymlink {
		return ID{}, errors.New("is a symlink")
	}
	if _, isos := inf.Sys().(*syscall.Stat_t); !isos {
		return ID{}, ErrNotOS
	}

	f, err := fsys.Open(pathname)
	if err != nil {
		return ID{}, err
	}
	defer f.Close()

	osf, ok := f.(*os.File)
	if !ok {
		return ID{}, ErrNotOS
	}

	conn, err := osf.SyscallConn()
	if err != nil {
		return ID{}, err
	}

	var stat unix.Statx_t
	var inerr error
	err = conn.Control(func(fd uintptr) {
		inerr = unix.Statx(int(fd), "",
			unix.AT_EMPTY_PATH|unix.AT_STATX_FORCE_SYNC,
			unix.STATX_BTIME|unix.STATX_MTIME|unix.STATX_INO,
			&stat)
	})
	if err != nil {
		return ID{}, err
	} else if inerr != nil {
		return ID{}, inerr
	}

	var id ID

	// ID = (64 bits of inode number) + (32 bits of hash of (creation time + filename))
	binary.BigEndian.PutUint64(id[:], stat.Ino)
	var h xxhash.Digest
	binary.Write(&h, binary.BigEndian, stat.Btime.Sec)
	binary.Write(&h, binary.BigEndian, uint32(stat.Btime.Nsec))
	h.WriteString(path.Base(pathname))
	binary.BigEndian.PutUint32(id[8:], uint32(h.Sum64()))

	return id, nil
}
