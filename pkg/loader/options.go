package loader

import (
	"context"
	"log/slog"

	"niftiloader/pkg/bulkio"
	"niftiloader/pkg/nifti"
)

// HeaderParser turns the leading bytes of a file into metadata.
type HeaderParser interface {
	// HeaderSize is the number of leading bytes ParseHeader needs.
	HeaderSize() int
	ParseHeader(b []byte) (*nifti.Info, error)
}

// BulkReader reads a whole file into a buffer from the given allocator.
type BulkReader interface {
	ReadFile(ctx context.Context, path string, alloc bulkio.Allocator) (bulkio.Buffer, error)
}

// VolumeDecoder decodes the full voxel array of a file into host memory,
// returning column-major float64 values for the header described by info.
type VolumeDecoder interface {
	Decode(path string, info *nifti.Info) ([]float64, error)
}

// Option configures a Loader.
type Option func(*Loader)

// WithParser replaces the NIfTI-1 header parser.
func WithParser(p HeaderParser) Option {
	return func(l *Loader) { l.parser = p }
}

// WithBulkReader replaces the parallel reader used by LoadAccelerated.
func WithBulkReader(r BulkReader) Option {
	return func(l *Loader) { l.reader = r }
}

// WithAllocator sets the memory target LoadAccelerated reads into.
func WithAllocator(a bulkio.Allocator) Option {
	return func(l *Loader) { l.alloc = a }
}

// WithDecoder replaces the decoder used by LoadReference.
func WithDecoder(d VolumeDecoder) Option {
	return func(l *Loader) { l.decoder = d }
}

// WithThreads sets the worker count of the default parallel reader. It has
// no effect when WithBulkReader is also given.
func WithThreads(n int) Option {
	return func(l *Loader) { l.threads = n }
}

// WithChunkSize sets the positional read size of the default parallel reader.
func WithChunkSize(n int) Option {
	return func(l *Loader) { l.chunkSize = n }
}

// WithLogger sets the logger for load diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}
