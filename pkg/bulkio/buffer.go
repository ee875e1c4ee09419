// Package bulkio reads whole files into caller-chosen memory targets using a
// bounded pool of parallel positional reads.
package bulkio

import (
	"sync"

	"niftiloader/internal/models"
)

// Buffer is a contiguous byte region owned by an Allocator.
type Buffer interface {
	// Bytes returns the full region. It must not be used after Free.
	Bytes() []byte

	// Location reports the memory space the region lives in.
	Location() models.Location

	// Free releases the region. Calling Free more than once is a no-op.
	Free() error
}

// Allocator hands out Buffers in a particular memory space.
type Allocator interface {
	Alloc(size int) (Buffer, error)
	Location() models.Location
}

// HostAllocator allocates on the Go heap.
type HostAllocator struct{}

func (HostAllocator) Alloc(size int) (Buffer, error) {
	return &hostBuffer{b: make([]byte, size)}, nil
}

func (HostAllocator) Location() models.Location { return models.Host }

type hostBuffer struct {
	b []byte
}

func (h *hostBuffer) Bytes() []byte             { return h.b }
func (h *hostBuffer) Location() models.Location { return models.Host }
func (h *hostBuffer) Free() error {
	h.b = nil
	return nil
}

// DirectAllocator allocates page-aligned memory outside the Go heap where the
// platform supports it.
type DirectAllocator struct{}

func (DirectAllocator) Alloc(size int) (Buffer, error) {
	return allocDirect(size)
}

func (DirectAllocator) Location() models.Location { return models.Direct }

type directBuffer struct {
	mu   sync.Mutex
	b    []byte
	free func([]byte) error
}

func (d *directBuffer) Bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.b
}

func (d *directBuffer) Location() models.Location { return models.Direct }

func (d *directBuffer) Free() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.b == nil {
		return nil
	}
	b := d.b
	d.b = nil
	if d.free == nil {
		return nil
	}
	return d.free(b)
}
