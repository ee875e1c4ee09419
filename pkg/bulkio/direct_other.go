//go:build !unix

package bulkio

// allocDirect falls back to heap memory on platforms without anonymous mmap.
func allocDirect(size int) (Buffer, error) {
	return &directBuffer{b: make([]byte, size)}, nil
}
