// Package loader loads NIfTI-1 volumes through two interchangeable paths and
// compares their results.
//
// LoadAccelerated reads the whole file into a direct memory buffer with a
// pool of parallel positional reads, parses the header from a host copy of
// the leading bytes and reinterprets the payload in place. LoadReference
// decodes the file with the github.com/henghuang/nifti library into host
// float64 values. Neither path applies the header's intensity scaling; it is
// reported in Metadata instead.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gonum.org/v1/gonum/mat"

	"niftiloader/pkg/bulkio"
	"niftiloader/pkg/nifti"
	"niftiloader/pkg/volume"
)

// Metadata is the header information returned with every decoded volume.
type Metadata struct {
	// Affine maps voxel indices to world coordinates.
	Affine *mat.Dense

	// Slope and Inter are the header's intensity scaling. A zero slope means
	// no scaling.
	Slope, Inter float64

	// Fields is the raw header as a name/value mapping.
	Fields map[string]any
}

// HasScaling reports whether the header asks for a non-identity rescale.
func (m Metadata) HasScaling() bool { return nifti.Scales(m.Slope, m.Inter) }

// Result is a decoded volume and its metadata.
type Result struct {
	Volume   *volume.Volume
	Metadata Metadata
}

// Close releases the buffer backing the volume, if any.
func (r *Result) Close() error {
	if r == nil || r.Volume == nil {
		return nil
	}
	return r.Volume.Release()
}

// Loader holds the collaborators for both load paths. It keeps no state
// between calls and is safe for concurrent use.
type Loader struct {
	parser    HeaderParser
	reader    BulkReader
	alloc     bulkio.Allocator
	decoder   VolumeDecoder
	threads   int
	chunkSize int
	logger    *slog.Logger
}

// New returns a Loader using the NIfTI-1 parser, a parallel bulk reader
// writing into direct memory, and the reference NIfTI decoder.
func New(opts ...Option) *Loader {
	l := &Loader{
		parser:  nifti.Parser{},
		alloc:   bulkio.DirectAllocator{},
		decoder: NiftiDecoder{},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.New(slog.DiscardHandler)
	}
	if l.reader == nil {
		l.reader = &bulkio.ParallelReader{
			Threads:   l.threads,
			ChunkSize: l.chunkSize,
			Logger:    l.logger,
		}
	}
	return l
}

// LoadAccelerated reads path in one bulk read into the loader's memory target
// and returns a zero-copy view of the payload. The caller owns the result and
// should Close it to release the buffer.
func (l *Loader) LoadAccelerated(ctx context.Context, path string) (_ *Result, err error) {
	start := time.Now()

	buf, err := l.reader.ReadFile(ctx, path, l.alloc)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	defer func() {
		if err != nil {
			buf.Free()
		}
	}()

	data := buf.Bytes()
	hs := l.parser.HeaderSize()
	if len(data) < hs {
		return nil, &FormatError{Path: path, Err: fmt.Errorf("%w: file is %d bytes, header needs %d",
			nifti.ErrTruncated, len(data), hs)}
	}

	// Only the header crosses back into host memory.
	head := make([]byte, hs)
	copy(head, data[:hs])
	info, err := l.parser.ParseHeader(head)
	if err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}
	if err := checkPayload(info, int64(len(data))); err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}

	vol, err := volume.FromBytes(data[info.DataOffset:], info.Shape, info.DType, info.ByteOrder, buf)
	if err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}

	l.logger.Debug("accelerated load",
		slog.String("path", path),
		slog.Any("shape", info.Shape),
		slog.String("dtype", info.DType.String()),
		slog.String("location", vol.Location().String()),
		slog.Duration("elapsed", time.Since(start)))

	return &Result{Volume: vol, Metadata: metadataFrom(info)}, nil
}

// LoadReference parses the header on the host and decodes the full array
// with the reference decoder.
func (l *Loader) LoadReference(ctx context.Context, path string) (*Result, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, &IOError{Path: path, Err: err}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	if st.IsDir() {
		return nil, &IOError{Path: path, Err: fmt.Errorf("%s is a directory", path)}
	}

	head := make([]byte, l.parser.HeaderSize())
	if _, err := io.ReadFull(f, head); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &FormatError{Path: path, Err: fmt.Errorf("%w: file is %d bytes, header needs %d",
				nifti.ErrTruncated, st.Size(), len(head))}
		}
		return nil, &IOError{Path: path, Err: err}
	}

	info, err := l.parser.ParseHeader(head)
	if err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}
	if err := checkPayload(info, st.Size()); err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}

	values, err := l.decoder.Decode(path, info)
	if err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}
	vol, err := volume.FromFloat64s(values, info.Shape)
	if err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}

	l.logger.Debug("reference load",
		slog.String("path", path),
		slog.Any("shape", info.Shape),
		slog.Duration("elapsed", time.Since(start)))

	return &Result{Volume: vol, Metadata: metadataFrom(info)}, nil
}

// checkPayload enforces elements * width == fileLen - dataOffset. The element
// count is bounded by what the file can hold, so extents whose product
// overflows int64 are rejected rather than wrapped.
func checkPayload(info *nifti.Info, fileLen int64) error {
	if info.DataOffset > fileLen {
		return fmt.Errorf("%w: data offset %d beyond end of %d-byte file",
			nifti.ErrBadOffset, info.DataOffset, fileLen)
	}
	width := int64(info.DType.Size())
	if width == 0 {
		return fmt.Errorf("%w: %s", nifti.ErrUnsupportedType, info.DType)
	}
	have := fileLen - info.DataOffset
	n, ok := nifti.ElementCount(info.Shape, have/width)
	if !ok {
		return fmt.Errorf("%w: %v %s needs more than the %d bytes after offset %d",
			volume.ErrSizeMismatch, info.Shape, info.DType, have, info.DataOffset)
	}
	if want := n * width; have != want {
		return fmt.Errorf("%w: %v %s needs %d bytes, file has %d after offset %d",
			volume.ErrSizeMismatch, info.Shape, info.DType, want, have, info.DataOffset)
	}
	return nil
}

func metadataFrom(info *nifti.Info) Metadata {
	return Metadata{
		Affine: info.Affine,
		Slope:  info.Slope,
		Inter:  info.Inter,
		Fields: info.Fields,
	}
}
