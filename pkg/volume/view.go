package volume

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"

	"niftiloader/pkg/nifti"
)

// ErrNotViewable is returned by View when the buffer cannot be aliased as the
// requested element type.
var ErrNotViewable = errors.New("volume: buffer cannot be viewed as requested type")

// Element is the set of Go types a raw voxel buffer can be aliased as. Named
// types are excluded so every member maps to exactly one dtype.
type Element interface {
	uint8 | int8 | uint16 | int16 | uint32 | int32 | uint64 | int64 | float32 | float64
}

// View aliases the raw buffer of v as []T without copying. It fails when v
// holds host float64 values of a different type, T does not match the stored
// dtype, the payload is not in native byte order, or the payload is not
// aligned for T.
func View[T Element](v *Volume) ([]T, error) {
	var zero T
	want := dtypeOf(zero)
	if v.values != nil {
		if want != nifti.Float64 {
			return nil, fmt.Errorf("%w: host volume holds float64", ErrNotViewable)
		}
		return any(v.values).([]T), nil
	}
	if v.raw == nil {
		return nil, ErrReleased
	}
	if want != v.dtype {
		return nil, fmt.Errorf("%w: stored %s, requested %s", ErrNotViewable, v.dtype, want)
	}
	if v.dtype.Size() > 1 && !isNative(v.order) {
		return nil, fmt.Errorf("%w: payload is not in native byte order", ErrNotViewable)
	}
	if len(v.raw) == 0 {
		return []T{}, nil
	}
	ptr := unsafe.Pointer(unsafe.SliceData(v.raw))
	if uintptr(ptr)%unsafe.Alignof(zero) != 0 {
		return nil, fmt.Errorf("%w: payload is not %d-byte aligned", ErrNotViewable, unsafe.Alignof(zero))
	}
	//nolint:gosec // aliasing the voxel payload is the point of View
	return unsafe.Slice((*T)(ptr), len(v.raw)/int(unsafe.Sizeof(zero))), nil
}

func dtypeOf(x any) nifti.DType {
	switch x.(type) {
	case uint8:
		return nifti.Uint8
	case int8:
		return nifti.Int8
	case uint16:
		return nifti.Uint16
	case int16:
		return nifti.Int16
	case uint32:
		return nifti.Uint32
	case int32:
		return nifti.Int32
	case uint64:
		return nifti.Uint64
	case int64:
		return nifti.Int64
	case float32:
		return nifti.Float32
	case float64:
		return nifti.Float64
	}
	return 0
}

func isNative(order binary.ByteOrder) bool {
	probe := []byte{1, 0}
	return order.Uint16(probe) == binary.NativeEndian.Uint16(probe)
}
