//go:build unix

package bulkio

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func allocDirect(size int) (Buffer, error) {
	if size == 0 {
		return &directBuffer{b: []byte{}}, nil
	}
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("bulkio: mmap %d bytes: %w", size, err)
	}
	return &directBuffer{b: b, free: unix.Munmap}, nil
}
