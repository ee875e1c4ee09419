package bulkio

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"niftiloader/internal/models"
)

func writeFile(t *testing.T, size int) (string, []byte) {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i * 7)
	}
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path, data
}

// trackingAllocator records every buffer it hands out.
type trackingAllocator struct {
	inner   Allocator
	buffers []*trackedBuffer
}

type trackedBuffer struct {
	Buffer
	freed bool
}

func (b *trackedBuffer) Free() error {
	b.freed = true
	return b.Buffer.Free()
}

func (a *trackingAllocator) Alloc(size int) (Buffer, error) {
	buf, err := a.inner.Alloc(size)
	if err != nil {
		return nil, err
	}
	tb := &trackedBuffer{Buffer: buf}
	a.buffers = append(a.buffers, tb)
	return tb, nil
}

func (a *trackingAllocator) Location() models.Location { return a.inner.Location() }

func TestReadFileChunked(t *testing.T) {
	path, want := writeFile(t, 10_000)

	for _, alloc := range []Allocator{HostAllocator{}, DirectAllocator{}} {
		t.Run(alloc.Location().String(), func(t *testing.T) {
			r := &ParallelReader{Threads: 3, ChunkSize: 777}
			buf, err := r.ReadFile(context.Background(), path, alloc)
			require.NoError(t, err)
			defer buf.Free()

			assert.Equal(t, alloc.Location(), buf.Location())
			assert.Equal(t, want, buf.Bytes())
		})
	}
}

func TestReadFileDefaults(t *testing.T) {
	path, want := writeFile(t, 1234)

	var r ParallelReader
	buf, err := r.ReadFile(context.Background(), path, HostAllocator{})
	require.NoError(t, err)
	assert.Equal(t, want, buf.Bytes())
	require.NoError(t, buf.Free())
}

func TestReadFileEmpty(t *testing.T) {
	path, _ := writeFile(t, 0)

	r := &ParallelReader{Threads: 2}
	buf, err := r.ReadFile(context.Background(), path, DirectAllocator{})
	require.NoError(t, err)
	assert.Empty(t, buf.Bytes())
	require.NoError(t, buf.Free())
}

func TestReadFileMissing(t *testing.T) {
	alloc := &trackingAllocator{inner: HostAllocator{}}
	r := &ParallelReader{}
	_, err := r.ReadFile(context.Background(), filepath.Join(t.TempDir(), "missing"), alloc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Empty(t, alloc.buffers)
}

func TestReadFileDirectory(t *testing.T) {
	r := &ParallelReader{}
	_, err := r.ReadFile(context.Background(), t.TempDir(), HostAllocator{})
	require.Error(t, err)
}

func TestReadFileCanceledFreesBuffer(t *testing.T) {
	path, _ := writeFile(t, 4096)
	alloc := &trackingAllocator{inner: DirectAllocator{}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &ParallelReader{Threads: 2, ChunkSize: 512}
	_, err := r.ReadFile(ctx, path, alloc)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, alloc.buffers, 1)
	assert.True(t, alloc.buffers[0].freed)
}

func TestDirectBufferFreeIdempotent(t *testing.T) {
	buf, err := DirectAllocator{}.Alloc(8192)
	require.NoError(t, err)
	require.Len(t, buf.Bytes(), 8192)
	assert.Equal(t, models.Direct, buf.Location())

	require.NoError(t, buf.Free())
	require.NoError(t, buf.Free())
	assert.Nil(t, buf.Bytes())
}
