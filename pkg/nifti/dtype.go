package nifti

import "fmt"

// DType is a NIfTI-1 datatype code.
type DType int16

// Supported fixed-width numeric datatypes. Complex, RGB and float128 codes
// are recognised by the format but rejected by Parse.
const (
	Uint8   DType = 2
	Int16   DType = 4
	Int32   DType = 8
	Float32 DType = 16
	Float64 DType = 64
	Int8    DType = 256
	Uint16  DType = 512
	Uint32  DType = 768
	Int64   DType = 1024
	Uint64  DType = 1280
)

var dtypeInfo = map[DType]struct {
	name string
	size int
}{
	Uint8:   {"uint8", 1},
	Int8:    {"int8", 1},
	Int16:   {"int16", 2},
	Uint16:  {"uint16", 2},
	Int32:   {"int32", 4},
	Uint32:  {"uint32", 4},
	Float32: {"float32", 4},
	Int64:   {"int64", 8},
	Uint64:  {"uint64", 8},
	Float64: {"float64", 8},
}

// Supported reports whether d is a fixed-width numeric type this package decodes.
func (d DType) Supported() bool {
	_, ok := dtypeInfo[d]
	return ok
}

// Size returns the element width in bytes, or 0 for unsupported types.
func (d DType) Size() int {
	return dtypeInfo[d].size
}

func (d DType) String() string {
	if info, ok := dtypeInfo[d]; ok {
		return info.name
	}
	return fmt.Sprintf("dtype(%d)", int16(d))
}
