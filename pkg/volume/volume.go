// Package volume holds decoded voxel arrays in column-major (first index
// fastest) order, either as a reinterpreted view over a raw byte buffer or as
// host float64 data.
package volume

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"niftiloader/internal/models"
	"niftiloader/pkg/bulkio"
	"niftiloader/pkg/nifti"
)

var (
	ErrSizeMismatch = errors.New("volume: payload size does not match shape and dtype")
	ErrIndex        = errors.New("volume: index out of range")
	ErrReleased     = errors.New("volume: buffer released")
)

// Volume is a decoded N-dimensional voxel array.
type Volume struct {
	shape    []int
	strides  []int
	dtype    nifti.DType
	order    binary.ByteOrder
	location models.Location
	n        int

	// Exactly one of raw or values is set until the volume is released.
	raw    []byte
	values []float64

	owner bulkio.Buffer
}

// FromBytes reinterprets payload as a column-major array of the given shape
// and element type without copying. owner, if non-nil, is the buffer payload
// points into and is freed by Release.
func FromBytes(payload []byte, shape []int, dt nifti.DType, order binary.ByteOrder, owner bulkio.Buffer) (*Volume, error) {
	if !dt.Supported() {
		return nil, fmt.Errorf("volume: unsupported dtype %s", dt)
	}
	w := int64(dt.Size())
	n, ok := nifti.ElementCount(shape, int64(len(payload))/w)
	if !ok || n*w != int64(len(payload)) {
		return nil, fmt.Errorf("%w: shape %v of %s does not fit %d bytes",
			ErrSizeMismatch, shape, dt, len(payload))
	}

	loc := models.Host
	if owner != nil {
		loc = owner.Location()
	}
	return &Volume{
		shape:    append([]int(nil), shape...),
		strides:  columnMajorStrides(shape),
		dtype:    dt,
		order:    order,
		location: loc,
		n:        int(n),
		raw:      payload,
		owner:    owner,
	}, nil
}

// FromFloat64s wraps host values laid out in column-major order.
func FromFloat64s(values []float64, shape []int) (*Volume, error) {
	n, ok := nifti.ElementCount(shape, int64(len(values)))
	if !ok || n != int64(len(values)) {
		return nil, fmt.Errorf("%w: shape %v does not fit %d values",
			ErrSizeMismatch, shape, len(values))
	}
	return &Volume{
		shape:    append([]int(nil), shape...),
		strides:  columnMajorStrides(shape),
		dtype:    nifti.Float64,
		location: models.Host,
		n:        len(values),
		values:   values,
	}, nil
}

// Shape returns a copy of the array extents.
func (v *Volume) Shape() []int { return append([]int(nil), v.shape...) }

// DType is the element type of the underlying storage.
func (v *Volume) DType() nifti.DType { return v.dtype }

// Location is the memory space the voxel data lives in.
func (v *Volume) Location() models.Location { return v.location }

// Len is the total number of elements. It does not change after Release.
func (v *Volume) Len() int { return v.n }

// Released reports whether the volume's buffer has been freed.
func (v *Volume) Released() bool { return v.raw == nil && v.values == nil }

// SameShape reports whether v and o have identical extents.
func (v *Volume) SameShape(o *Volume) bool {
	if len(v.shape) != len(o.shape) {
		return false
	}
	for i := range v.shape {
		if v.shape[i] != o.shape[i] {
			return false
		}
	}
	return true
}

// Index converts an N-dimensional index to a flat column-major offset.
func (v *Volume) Index(idx ...int) (int, error) {
	if len(idx) != len(v.shape) {
		return 0, fmt.Errorf("%w: got %d indices for %d dimensions", ErrIndex, len(idx), len(v.shape))
	}
	flat := 0
	for d, i := range idx {
		if i < 0 || i >= v.shape[d] {
			return 0, fmt.Errorf("%w: index %d=%d, extent %d", ErrIndex, d, i, v.shape[d])
		}
		flat += i * v.strides[d]
	}
	return flat, nil
}

// At returns the element at the given N-dimensional index as float64.
func (v *Volume) At(idx ...int) (float64, error) {
	flat, err := v.Index(idx...)
	if err != nil {
		return 0, err
	}
	return v.Float64At(flat), nil
}

// Float64At returns the flat element i converted to float64. It panics if i
// is out of range or the backing buffer has been released.
func (v *Volume) Float64At(i int) float64 {
	if v.values != nil {
		return v.values[i]
	}
	if v.raw == nil {
		panic(ErrReleased)
	}
	w := v.dtype.Size()
	b := v.raw[i*w : (i+1)*w]
	switch v.dtype {
	case nifti.Uint8:
		return float64(b[0])
	case nifti.Int8:
		return float64(int8(b[0]))
	case nifti.Int16:
		return float64(int16(v.order.Uint16(b)))
	case nifti.Uint16:
		return float64(v.order.Uint16(b))
	case nifti.Int32:
		return float64(int32(v.order.Uint32(b)))
	case nifti.Uint32:
		return float64(v.order.Uint32(b))
	case nifti.Float32:
		return float64(math.Float32frombits(v.order.Uint32(b)))
	case nifti.Int64:
		return float64(int64(v.order.Uint64(b)))
	case nifti.Uint64:
		return float64(v.order.Uint64(b))
	case nifti.Float64:
		return math.Float64frombits(v.order.Uint64(b))
	}
	panic(fmt.Sprintf("volume: unsupported dtype %s", v.dtype))
}

// Float64s returns a host copy of every element in column-major order. Like
// Float64At it panics on a released volume.
func (v *Volume) Float64s() []float64 {
	out := make([]float64, v.Len())
	if v.values != nil {
		copy(out, v.values)
		return out
	}
	for i := range out {
		out[i] = v.Float64At(i)
	}
	return out
}

// Release frees the buffer the volume views. The volume must not be read
// afterwards. Calling Release on a host volume or more than once is a no-op.
func (v *Volume) Release() error {
	if v.owner == nil {
		return nil
	}
	owner := v.owner
	v.owner = nil
	v.raw = nil
	return owner.Free()
}

func columnMajorStrides(shape []int) []int {
	strides := make([]int, len(shape))
	s := 1
	for i, d := range shape {
		strides[i] = s
		s *= d
	}
	return strides
}
