//go:build unix

package checkpoint

import (
	"os"

	"golang.org/x/sys/unix"
)

// mmapFile memory-maps a file for reading (Unix implementation).
func mmapFile(f *os.File, size int64) ([]byte, error) {
	return unix.Mmap(
		int(f.Fd()), //nolint:gosec // G115: file descriptor fits in int
		0,
		int(size), //nolint:gosec // G115: file size validated by caller
		unix.PROT_READ,
		unix.MAP_SHARED,
	)
}

// munmapFile unmaps a memory-mapped file (Unix implementation).
func munmapFile(data []byte) error {
	return unix.Munmap(data)
}
