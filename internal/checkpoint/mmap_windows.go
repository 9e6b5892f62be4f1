//go:build windows

package checkpoint

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// mmapFile memory-maps a file for reading (Windows implementation).
func mmapFile(f *os.File, size int64) ([]byte, error) {
	handle, err := windows.CreateFileMapping(
		windows.Handle(f.Fd()),
		nil,
		windows.PAGE_READONLY,
		uint32(size>>32), //nolint:gosec // G115: split of a non-negative file size
		uint32(size),     //nolint:gosec // G115: split of a non-negative file size
		nil,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = windows.CloseHandle(handle) }()

	addr, err := windows.MapViewOfFile(handle, windows.FILE_MAP_READ, 0, 0, uintptr(size))
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

// munmapFile unmaps a memory-mapped file (Windows implementation).
func munmapFile(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return windows.UnmapViewOfFile(uintptr(unsafe.Pointer(&data[0])))
}
