package loader

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	niftiio "github.com/henghuang/nifti"

	"niftiloader/pkg/nifti"
	"niftiloader/pkg/volume"
)

// NiftiDecoder decodes volumes with the github.com/henghuang/nifti reader
// where that reader is exact, and with typed binary.Read otherwise.
//
// The library picks its element decoder from bitpix alone and always reads
// little-endian: 1 and 2 byte voxels come back unsigned, 4 byte voxels as
// float32 bits and 8 byte voxels as float64 narrowed to float32. It is used
// for little-endian uint8, int8, uint16, int16 and float32 files of up to four
// dimensions, with the signed types recovered through their unsigned width.
// Neither route applies scl_slope/scl_inter.
type NiftiDecoder struct{}

// Decode loads path and returns its voxels in column-major order. info is the
// already-parsed header; the library's own view of the dimensions must agree
// with it.
func (NiftiDecoder) Decode(path string, info *nifti.Info) ([]float64, error) {
	if !libraryDecodes(info) {
		return decodeTyped(path, info)
	}

	img, err := safelyLoadImage(path)
	if err != nil {
		return nil, fmt.Errorf("reference decoder: %w", err)
	}

	ext := [4]int{1, 1, 1, 1}
	copy(ext[:], info.Shape)

	dims := img.GetDims()
	for i := 0; i < 4; i++ {
		got := 1
		if i < len(dims) && dims[i] > 0 {
			got = int(dims[i])
		}
		if got != ext[i] {
			return nil, fmt.Errorf("reference decoder: dimension %d is %d, header declares %d", i, got, ext[i])
		}
	}

	return safelyReadVoxels(&img, ext, signedFixup(info.DType))
}

// libraryDecodes reports whether the library returns exact values for info.
func libraryDecodes(info *nifti.Info) bool {
	if len(info.Shape) > 4 || info.ByteOrder != binary.LittleEndian {
		return false
	}
	switch info.DType {
	case nifti.Uint8, nifti.Int8, nifti.Uint16, nifti.Int16, nifti.Float32:
		return true
	}
	return false
}

// signedFixup maps the library's unsigned reading of a signed voxel back to
// its signed value.
func signedFixup(dt nifti.DType) func(float32) float64 {
	switch dt {
	case nifti.Int8:
		return func(v float32) float64 { return float64(int8(uint8(v))) }
	case nifti.Int16:
		return func(v float32) float64 { return float64(int16(uint16(v))) }
	}
	return func(v float32) float64 { return float64(v) }
}

// safelyLoadImage consumes panics emitted by the nifti library on malformed
// input and turns them into errors.
func safelyLoadImage(path string) (img niftiio.Nifti1Image, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("%v", panicErr)
		}
	}()

	img.LoadImage(path, true)

	return
}

func safelyReadVoxels(img *niftiio.Nifti1Image, ext [4]int, conv func(float32) float64) (values []float64, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			values = nil
			err = fmt.Errorf("reference decoder: %v", panicErr)
		}
	}()

	nx, ny, nz, nt := ext[0], ext[1], ext[2], ext[3]
	values = make([]float64, nx*ny*nz*nt)
	for t := 0; t < nt; t++ {
		for z := 0; z < nz; z++ {
			for y := 0; y < ny; y++ {
				for x := 0; x < nx; x++ {
					values[x+nx*(y+ny*(z+nz*t))] = conv(img.GetAt(x, y, z, t))
				}
			}
		}
	}
	return values, nil
}

// decodeTyped reads the payload of path as a []T of the header's dtype in
// the header's byte order.
func decodeTyped(path string, info *nifti.Info) ([]float64, error) {
	if !info.DType.Supported() {
		return nil, fmt.Errorf("reference decoder: unsupported dtype %s", info.DType)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	n, ok := nifti.ElementCount(info.Shape, (st.Size()-info.DataOffset)/int64(info.DType.Size()))
	if !ok {
		return nil, fmt.Errorf("reference decoder: %w: shape %v does not fit the file",
			volume.ErrSizeMismatch, info.Shape)
	}
	if _, err := f.Seek(info.DataOffset, io.SeekStart); err != nil {
		return nil, err
	}
	r := bufio.NewReaderSize(f, 1<<20)

	switch info.DType {
	case nifti.Uint8:
		return readAs[uint8](r, info.ByteOrder, n)
	case nifti.Int8:
		return readAs[int8](r, info.ByteOrder, n)
	case nifti.Uint16:
		return readAs[uint16](r, info.ByteOrder, n)
	case nifti.Int16:
		return readAs[int16](r, info.ByteOrder, n)
	case nifti.Uint32:
		return readAs[uint32](r, info.ByteOrder, n)
	case nifti.Int32:
		return readAs[int32](r, info.ByteOrder, n)
	case nifti.Uint64:
		return readAs[uint64](r, info.ByteOrder, n)
	case nifti.Int64:
		return readAs[int64](r, info.ByteOrder, n)
	case nifti.Float32:
		return readAs[float32](r, info.ByteOrder, n)
	case nifti.Float64:
		return readAs[float64](r, info.ByteOrder, n)
	}
	return nil, fmt.Errorf("reference decoder: unsupported dtype %s", info.DType)
}

func readAs[T volume.Element](r io.Reader, order binary.ByteOrder, n int64) ([]float64, error) {
	raw := make([]T, n)
	if err := binary.Read(r, order, raw); err != nil {
		return nil, fmt.Errorf("reference decoder: %w", err)
	}
	out := make([]float64, n)
	for i, v := range raw {
		out[i] = float64(v)
	}
	return out, nil
}
