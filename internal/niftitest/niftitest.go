// Package niftitest writes synthetic NIfTI-1 files for tests.
package niftitest

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"niftiloader/pkg/nifti"
)

// Spec describes a synthetic file. Values are written in column-major order
// converted to DType.
type Spec struct {
	Shape  []int
	DType  nifti.DType
	Offset int64
	Order  binary.ByteOrder
	Values []float64

	// Edit, if set, adjusts the header before it is written.
	Edit func(h *nifti.Header)
}

// Sequential returns n values 0, 1, ..., n-1.
func Sequential(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = float64(i)
	}
	return v
}

// Bytes encodes s as a complete file image.
func Bytes(s Spec) []byte {
	order := s.Order
	if order == nil {
		order = binary.LittleEndian
	}
	offset := s.Offset
	if offset == 0 {
		offset = 352
	}

	h := nifti.New(s.Shape, s.DType, offset, order)
	if s.Edit != nil {
		s.Edit(h)
	}

	var buf bytes.Buffer
	buf.Write(nifti.Marshal(h))
	for int64(buf.Len()) < offset {
		buf.WriteByte(0)
	}
	for _, v := range s.Values {
		writeValue(&buf, order, s.DType, v)
	}
	return buf.Bytes()
}

// Write encodes s into a file under t.TempDir() and returns its path.
func Write(t testing.TB, name string, s Spec) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, Bytes(s), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

func writeValue(buf *bytes.Buffer, order binary.ByteOrder, dt nifti.DType, v float64) {
	var x any
	switch dt {
	case nifti.Uint8:
		x = uint8(v)
	case nifti.Int8:
		x = int8(v)
	case nifti.Int16:
		x = int16(v)
	case nifti.Uint16:
		x = uint16(v)
	case nifti.Int32:
		x = int32(v)
	case nifti.Uint32:
		x = uint32(v)
	case nifti.Float32:
		x = float32(v)
	case nifti.Int64:
		x = int64(v)
	case nifti.Uint64:
		x = uint64(v)
	default:
		x = v
	}
	_ = binary.Write(buf, order, x)
}
