package nifti

import (
	"encoding/binary"

	"gonum.org/v1/gonum/mat"
)

// Info is the subset of a header the loader consumes.
type Info struct {
	DataOffset int64
	Shape      []int
	DType      DType
	ByteOrder  binary.ByteOrder
	Affine     *mat.Dense
	Slope      float64
	Inter      float64
	Fields     map[string]any
}

// Info extracts the loader-facing metadata from h.
func (h *Header) Info() *Info {
	slope, inter := h.Scaling()
	return &Info{
		DataOffset: h.DataOffset(),
		Shape:      h.Shape(),
		DType:      h.DType(),
		ByteOrder:  h.ByteOrder(),
		Affine:     h.Affine(),
		Slope:      slope,
		Inter:      inter,
		Fields:     h.Fields(),
	}
}

// HasScaling reports whether the header asks for a non-identity rescale.
func (i *Info) HasScaling() bool { return Scales(i.Slope, i.Inter) }

// Parser parses the header of a single-file (.nii) dataset, whose payload
// follows the header in the same file. The zero value is ready to use.
type Parser struct{}

// HeaderSize returns the number of leading bytes ParseHeader needs.
func (Parser) HeaderSize() int { return HeaderSize }

// ParseHeader parses b and returns its metadata. Paired-file headers are
// rejected with ErrPairedDataset since their payload lives in a separate .img.
func (Parser) ParseHeader(b []byte) (*Info, error) {
	h, err := Parse(b)
	if err != nil {
		return nil, err
	}
	if string(h.Magic[:]) != MagicSingle {
		return nil, ErrPairedDataset
	}
	return h.Info(), nil
}
