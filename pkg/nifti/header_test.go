package nifti

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func identity() *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
}

func TestParseRoundTrip(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		t.Run(order.String(), func(t *testing.T) {
			b := Marshal(New([]int{4, 5, 6}, Int16, 352, order))
			require.Len(t, b, HeaderSize)

			h, err := Parse(b)
			require.NoError(t, err)
			assert.Equal(t, order.String(), h.ByteOrder().String())
			assert.Equal(t, []int{4, 5, 6}, h.Shape())
			assert.Equal(t, Int16, h.DType())
			assert.Equal(t, int64(352), h.DataOffset())
			n, ok := h.NumElements()
			require.True(t, ok)
			assert.Equal(t, int64(120), n)
			assert.True(t, mat.Equal(identity(), h.Affine()))
			assert.False(t, h.HasScaling())
		})
	}
}

func TestParseErrors(t *testing.T) {
	valid := func() *Header { return New([]int{2, 2, 2}, Float32, 352, binary.LittleEndian) }

	tests := []struct {
		name string
		edit func(h *Header)
		want error
	}{
		{"bad sizeof_hdr", func(h *Header) { h.SizeofHdr = 540 }, ErrBadHeaderSize},
		{"bad magic", func(h *Header) { copy(h.Magic[:], "n+2\x00") }, ErrBadMagic},
		{"zero ndim", func(h *Header) { h.Dim[0] = 0 }, ErrBadDims},
		{"too many dims", func(h *Header) { h.Dim[0] = 8 }, ErrBadDims},
		{"zero extent", func(h *Header) { h.Dim[2] = 0 }, ErrBadDims},
		{"complex datatype", func(h *Header) { h.Datatype = 32; h.Bitpix = 64 }, ErrUnsupportedType},
		{"bitpix mismatch", func(h *Header) { h.Bitpix = 16 }, ErrUnsupportedType},
		{"offset inside header", func(h *Header) { h.VoxOffset = 100 }, ErrBadOffset},
		{"fractional offset", func(h *Header) { h.VoxOffset = 352.5 }, ErrBadOffset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := valid()
			tt.edit(h)
			_, err := Parse(Marshal(h))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseTruncated(t *testing.T) {
	b := Marshal(New([]int{2, 2}, Uint8, 352, binary.LittleEndian))
	_, err := Parse(b[:200])
	require.ErrorIs(t, err, ErrTruncated)
}

func TestPairMagic(t *testing.T) {
	h := New([]int{3, 3}, Uint8, 0, binary.LittleEndian)
	copy(h.Magic[:], MagicPair)

	// A bare .hdr is a valid header on its own.
	parsed, err := Parse(Marshal(h))
	require.NoError(t, err)
	assert.Equal(t, int64(0), parsed.DataOffset())

	// The single-file parser refuses it regardless of offset.
	_, err = Parser{}.ParseHeader(Marshal(h))
	require.ErrorIs(t, err, ErrPairedDataset)
	h.VoxOffset = 352
	_, err = Parser{}.ParseHeader(Marshal(h))
	require.ErrorIs(t, err, ErrPairedDataset)
}

func TestElementCount(t *testing.T) {
	tests := []struct {
		name  string
		shape []int
		limit int64
		want  int64
		ok    bool
	}{
		{"empty shape", nil, 10, 1, true},
		{"within limit", []int{4, 5, 6}, 120, 120, true},
		{"over limit", []int{4, 5, 6}, 119, 0, false},
		{"zero extent", []int{32767, 0, 32767}, 1, 0, true},
		{"negative extent", []int{2, -1}, 10, 0, false},
		{"wraps int64", []int{16384, 16384, 16384, 16384, 16384}, math.MaxInt64, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := ElementCount(tt.shape, tt.limit)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, n)
		})
	}

	h := New([]int{32767, 32767, 32767, 32767, 32767}, Uint8, 352, binary.LittleEndian)
	_, ok := h.NumElements()
	assert.False(t, ok)
}

func TestScales(t *testing.T) {
	assert.False(t, Scales(0, 5))
	assert.False(t, Scales(1, 0))
	assert.True(t, Scales(1, -1))
	assert.True(t, Scales(2, 0))

	h := New([]int{2}, Int16, 352, binary.LittleEndian)
	h.SclSlope, h.SclInter = 2, 0
	info, err := Parser{}.ParseHeader(Marshal(h))
	require.NoError(t, err)
	assert.True(t, info.HasScaling())
	assert.True(t, h.HasScaling())
}

func TestAffineSform(t *testing.T) {
	h := New([]int{2, 2, 2}, Int16, 352, binary.LittleEndian)
	h.SrowX = [4]float32{-2, 0, 0, 90}
	h.SrowY = [4]float32{0, 2, 0, -126}
	h.SrowZ = [4]float32{0, 0, 2.5, -72}
	h.QformCode = 1

	want := mat.NewDense(4, 4, []float64{
		-2, 0, 0, 90,
		0, 2, 0, -126,
		0, 0, 2.5, -72,
		0, 0, 0, 1,
	})
	assert.True(t, mat.Equal(want, h.Affine()))
}

func TestAffineQform(t *testing.T) {
	h := New([]int{2, 2, 2}, Int16, 352, binary.LittleEndian)
	h.SformCode = 0
	h.QformCode = 1
	h.Pixdim = [8]float32{-1, 2, 3, 4, 1, 1, 1, 1}
	h.QoffsetX, h.QoffsetY, h.QoffsetZ = 10, 20, 30

	want := mat.NewDense(4, 4, []float64{
		2, 0, 0, 10,
		0, 3, 0, 20,
		0, 0, -4, 30,
		0, 0, 0, 1,
	})
	assert.True(t, mat.Equal(want, h.Affine()))

	// 180 degree rotation about z: b=c=0, d=1.
	h.Pixdim[0] = 1
	h.QuaternD = 1
	want = mat.NewDense(4, 4, []float64{
		-2, 0, 0, 10,
		0, -3, 0, 20,
		0, 0, 4, 30,
		0, 0, 0, 1,
	})
	assert.True(t, mat.EqualApprox(want, h.Affine(), 1e-12))
}

func TestAffinePixdimFallback(t *testing.T) {
	h := New([]int{2, 2, 2}, Int16, 352, binary.LittleEndian)
	h.SformCode = 0
	h.Pixdim = [8]float32{1, 0.5, 0.75, 3}

	want := mat.NewDense(4, 4, []float64{
		0.5, 0, 0, 0,
		0, 0.75, 0, 0,
		0, 0, 3, 0,
		0, 0, 0, 1,
	})
	assert.True(t, mat.Equal(want, h.Affine()))
}

func TestInfoAndFields(t *testing.T) {
	h := New([]int{4, 4, 4}, Int16, 352, binary.LittleEndian)
	h.SclSlope, h.SclInter = 2, -1
	copy(h.Descrip[:], "synthetic")

	info, err := Parser{}.ParseHeader(Marshal(h))
	require.NoError(t, err)
	assert.Equal(t, int64(352), info.DataOffset)
	assert.Equal(t, []int{4, 4, 4}, info.Shape)
	assert.Equal(t, 2.0, info.Slope)
	assert.Equal(t, -1.0, info.Inter)
	assert.Equal(t, "synthetic", info.Fields["descrip"])
	assert.Equal(t, "n+1", info.Fields["magic"])
	assert.Equal(t, "int16", info.Fields["datatype"])
	assert.Equal(t, HeaderSize, Parser{}.HeaderSize())
}

func TestDTypeSizes(t *testing.T) {
	assert.Equal(t, 1, Uint8.Size())
	assert.Equal(t, 2, Int16.Size())
	assert.Equal(t, 4, Float32.Size())
	assert.Equal(t, 8, Float64.Size())
	assert.Equal(t, 0, DType(32).Size())
	assert.False(t, DType(128).Supported())
	assert.Equal(t, "dtype(2304)", DType(2304).String())
}

func TestDecompress(t *testing.T) {
	dir := t.TempDir()
	payload := Marshal(New([]int{2, 2}, Uint8, 352, binary.LittleEndian))

	src := filepath.Join(dir, "scan.nii.gz")
	f, err := os.Create(src)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	require.True(t, IsCompressed(src))
	dst, err := Decompress(src, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "scan.nii"), dst)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}
