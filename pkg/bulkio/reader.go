package bulkio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// DefaultChunkSize is the number of bytes each positional read covers.
const DefaultChunkSize = 4 << 20

// ParallelReader reads a whole file with up to Threads concurrent ReadAt calls.
// The zero value uses runtime.NumCPU() threads and DefaultChunkSize chunks.
type ParallelReader struct {
	// Threads is the number of worker goroutines used for one file.
	Threads int

	// ChunkSize is the size of each positional read in bytes.
	ChunkSize int

	// Logger receives debug output. Nil disables logging.
	Logger *slog.Logger
}

func (r *ParallelReader) threads() int {
	if r.Threads > 0 {
		return r.Threads
	}
	return runtime.NumCPU()
}

func (r *ParallelReader) chunkSize() int {
	if r.ChunkSize > 0 {
		return r.ChunkSize
	}
	return DefaultChunkSize
}

func (r *ParallelReader) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// ReadFile reads the whole file at path into a Buffer obtained from alloc.
// It returns once every chunk has been read. On error the file is closed and
// the buffer freed before returning.
func (r *ParallelReader) ReadFile(ctx context.Context, path string, alloc Allocator) (_ Buffer, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("bulkio: %s is a directory", path)
	}
	size := info.Size()
	if int64(int(size)) != size {
		return nil, fmt.Errorf("bulkio: %s is too large (%d bytes)", path, size)
	}

	buf, err := alloc.Alloc(int(size))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			buf.Free()
		}
	}()

	if err := r.fill(ctx, f, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("bulkio: read %s: %w", path, err)
	}

	r.logger().Debug("bulk read complete",
		slog.String("path", path),
		slog.Int64("bytes", size),
		slog.String("location", alloc.Location().String()),
		slog.Int("threads", r.threads()))
	return buf, nil
}

func (r *ParallelReader) fill(ctx context.Context, src io.ReaderAt, dst []byte) error {
	chunk := r.chunkSize()
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(r.threads())

	for off := 0; off < len(dst); off += chunk {
		end := min(off+chunk, len(dst))
		part := dst[off:end]
		pos := int64(off)
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := src.ReadAt(part, pos)
			if n == len(part) {
				return nil
			}
			if err == nil || err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return err
		})
	}
	return eg.Wait()
}
