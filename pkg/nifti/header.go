// Package nifti parses and writes NIfTI-1 headers and derives the metadata the
// loader needs from them: data offset, shape, element type and affine.
package nifti

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

// HeaderSize is the fixed length of a NIfTI-1 header in bytes.
const HeaderSize = 348

// Magic strings for single-file (.nii) and paired (.hdr/.img) datasets.
const (
	MagicSingle = "n+1\x00"
	MagicPair   = "ni1\x00"
)

var (
	ErrTruncated       = errors.New("nifti: header truncated")
	ErrBadHeaderSize   = errors.New("nifti: sizeof_hdr is not 348")
	ErrBadMagic        = errors.New("nifti: bad magic")
	ErrBadDims         = errors.New("nifti: invalid dimensions")
	ErrUnsupportedType = errors.New("nifti: unsupported datatype")
	ErrBadOffset       = errors.New("nifti: invalid vox_offset")
	ErrPairedDataset   = errors.New("nifti: paired .hdr/.img dataset, payload is not in this file")
)

// Raw mirrors the on-disk NIfTI-1 header layout field for field.
type Raw struct {
	SizeofHdr     int32
	DataType      [10]byte
	DBName        [18]byte
	Extents       int32
	SessionError  int16
	Regular       byte
	DimInfo       byte
	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	Datatype      int16
	Bitpix        int16
	SliceStart    int16
	Pixdim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     byte
	XYZTUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	TOffset       float32
	GLMax         int32
	GLMin         int32
	Descrip       [80]byte
	AuxFile       [24]byte
	QformCode     int16
	SformCode     int16
	QuaternB      float32
	QuaternC      float32
	QuaternD      float32
	QoffsetX      float32
	QoffsetY      float32
	QoffsetZ      float32
	SrowX         [4]float32
	SrowY         [4]float32
	SrowZ         [4]float32
	IntentName    [16]byte
	Magic         [4]byte
}

// Header is a validated NIfTI-1 header together with the byte order it was
// stored in.
type Header struct {
	Raw
	order binary.ByteOrder
}

// Parse decodes and validates the first HeaderSize bytes of b.
func Parse(b []byte) (*Header, error) {
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrTruncated, len(b), HeaderSize)
	}

	var order binary.ByteOrder
	switch {
	case binary.LittleEndian.Uint32(b) == HeaderSize:
		order = binary.LittleEndian
	case binary.BigEndian.Uint32(b) == HeaderSize:
		order = binary.BigEndian
	default:
		return nil, ErrBadHeaderSize
	}

	h := &Header{order: order}
	if err := binary.Read(bytes.NewReader(b[:HeaderSize]), order, &h.Raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}

	if err := h.validate(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Header) validate() error {
	magic := string(h.Magic[:])
	if magic != MagicSingle && magic != MagicPair {
		return fmt.Errorf("%w: %q", ErrBadMagic, magic)
	}

	ndim := int(h.Dim[0])
	if ndim < 1 || ndim > 7 {
		return fmt.Errorf("%w: dim[0]=%d", ErrBadDims, ndim)
	}
	for i := 1; i <= ndim; i++ {
		if h.Dim[i] < 1 {
			return fmt.Errorf("%w: dim[%d]=%d", ErrBadDims, i, h.Dim[i])
		}
	}

	dt := DType(h.Datatype)
	if !dt.Supported() {
		return fmt.Errorf("%w: %d", ErrUnsupportedType, h.Datatype)
	}
	if int(h.Bitpix) != dt.Size()*8 {
		return fmt.Errorf("%w: bitpix %d does not match %s", ErrUnsupportedType, h.Bitpix, dt)
	}

	if magic == MagicSingle && h.VoxOffset < HeaderSize {
		return fmt.Errorf("%w: %g", ErrBadOffset, h.VoxOffset)
	}
	if h.VoxOffset < 0 || h.VoxOffset != float32(int64(h.VoxOffset)) {
		return fmt.Errorf("%w: %g", ErrBadOffset, h.VoxOffset)
	}
	return nil
}

// ByteOrder returns the byte order the header (and its payload) was written in.
func (h *Header) ByteOrder() binary.ByteOrder { return h.order }

// DataOffset is the byte position at which the voxel payload starts.
func (h *Header) DataOffset() int64 { return int64(h.VoxOffset) }

// DType returns the element type of the voxel payload.
func (h *Header) DType() DType { return DType(h.Datatype) }

// Shape returns the dim[1..dim[0]] extents.
func (h *Header) Shape() []int {
	shape := make([]int, h.Dim[0])
	for i := range shape {
		shape[i] = int(h.Dim[i+1])
	}
	return shape
}

// NumElements is the product of Shape. ok is false when the product does not
// fit in an int64.
func (h *Header) NumElements() (n int64, ok bool) {
	return ElementCount(h.Shape(), math.MaxInt64)
}

// ElementCount multiplies the extents in shape and reports whether the
// product stays within limit. It never overflows: the product is abandoned as
// soon as the next factor would take it past limit.
func ElementCount(shape []int, limit int64) (n int64, ok bool) {
	for _, d := range shape {
		if d < 0 {
			return 0, false
		}
	}
	for _, d := range shape {
		if d == 0 {
			return 0, true
		}
	}
	n = 1
	for _, d := range shape {
		if n > limit/int64(d) {
			return 0, false
		}
		n *= int64(d)
	}
	return n, true
}

// Scaling returns the intensity slope and intercept. A zero slope means the
// stored values are used as is.
func (h *Header) Scaling() (slope, inter float64) {
	return float64(h.SclSlope), float64(h.SclInter)
}

// HasScaling reports whether the header asks for a non-identity rescale.
func (h *Header) HasScaling() bool {
	return Scales(h.Scaling())
}

// Scales reports whether slope and inter describe a non-identity rescale. A
// zero slope disables scaling altogether.
func Scales(slope, inter float64) bool {
	return slope != 0 && (slope != 1 || inter != 0)
}

// Fields returns the raw header as a name/value mapping.
func (h *Header) Fields() map[string]any {
	return map[string]any{
		"sizeof_hdr":     h.SizeofHdr,
		"dim_info":       h.DimInfo,
		"dim":            h.Dim,
		"intent_p1":      h.IntentP1,
		"intent_p2":      h.IntentP2,
		"intent_p3":      h.IntentP3,
		"intent_code":    h.IntentCode,
		"datatype":       h.DType().String(),
		"bitpix":         h.Bitpix,
		"slice_start":    h.SliceStart,
		"pixdim":         h.Pixdim,
		"vox_offset":     h.VoxOffset,
		"scl_slope":      h.SclSlope,
		"scl_inter":      h.SclInter,
		"slice_end":      h.SliceEnd,
		"slice_code":     h.SliceCode,
		"xyzt_units":     h.XYZTUnits,
		"cal_max":        h.CalMax,
		"cal_min":        h.CalMin,
		"slice_duration": h.SliceDuration,
		"toffset":        h.TOffset,
		"descrip":        cstring(h.Descrip[:]),
		"aux_file":       cstring(h.AuxFile[:]),
		"qform_code":     h.QformCode,
		"sform_code":     h.SformCode,
		"quatern_b":      h.QuaternB,
		"quatern_c":      h.QuaternC,
		"quatern_d":      h.QuaternD,
		"qoffset_x":      h.QoffsetX,
		"qoffset_y":      h.QoffsetY,
		"qoffset_z":      h.QoffsetZ,
		"srow_x":         h.SrowX,
		"srow_y":         h.SrowY,
		"srow_z":         h.SrowZ,
		"intent_name":    cstring(h.IntentName[:]),
		"magic":          cstring(h.Magic[:]),
	}
}

// Marshal encodes h in its byte order. The result is exactly HeaderSize bytes.
func Marshal(h *Header) []byte {
	order := h.order
	if order == nil {
		order = binary.LittleEndian
	}
	var buf bytes.Buffer
	buf.Grow(HeaderSize)
	// Writing a fixed-size struct to a bytes.Buffer cannot fail.
	_ = binary.Write(&buf, order, &h.Raw)
	return buf.Bytes()
}

// New builds a single-file header for a volume of the given shape and type,
// with the payload starting at offset and an identity sform.
func New(shape []int, dt DType, offset int64, order binary.ByteOrder) *Header {
	h := &Header{order: order}
	h.SizeofHdr = HeaderSize
	h.Dim[0] = int16(len(shape))
	for i := range h.Dim[1:] {
		h.Dim[i+1] = 1
	}
	for i, d := range shape {
		h.Dim[i+1] = int16(d)
	}
	h.Datatype = int16(dt)
	h.Bitpix = int16(dt.Size() * 8)
	for i := range h.Pixdim {
		h.Pixdim[i] = 1
	}
	h.VoxOffset = float32(offset)
	h.SclSlope = 1
	h.SformCode = 1
	h.SrowX = [4]float32{1, 0, 0, 0}
	h.SrowY = [4]float32{0, 1, 0, 0}
	h.SrowZ = [4]float32{0, 0, 1, 0}
	copy(h.Magic[:], MagicSingle)
	return h
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSpace(string(b))
}
