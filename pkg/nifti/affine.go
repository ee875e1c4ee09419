package nifti

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Affine returns the 4x4 voxel-to-world transform. The sform is preferred
// when sform_code is set, then the quaternion qform, then a plain pixdim
// scaling.
func (h *Header) Affine() *mat.Dense {
	switch {
	case h.SformCode > 0:
		return h.sform()
	case h.QformCode > 0:
		return h.qform()
	default:
		return mat.NewDense(4, 4, []float64{
			float64(h.Pixdim[1]), 0, 0, 0,
			0, float64(h.Pixdim[2]), 0, 0,
			0, 0, float64(h.Pixdim[3]), 0,
			0, 0, 0, 1,
		})
	}
}

func (h *Header) sform() *mat.Dense {
	a := mat.NewDense(4, 4, nil)
	for j := 0; j < 4; j++ {
		a.Set(0, j, float64(h.SrowX[j]))
		a.Set(1, j, float64(h.SrowY[j]))
		a.Set(2, j, float64(h.SrowZ[j]))
	}
	a.Set(3, 3, 1)
	return a
}

// qform builds R * diag(pixdim) with the translation column set from the
// qoffsets. qfac (pixdim[0]) of -1 flips the third axis.
func (h *Header) qform() *mat.Dense {
	b, c, d := float64(h.QuaternB), float64(h.QuaternC), float64(h.QuaternD)
	a := 1 - (b*b + c*c + d*d)
	if a < 1e-7 {
		// Quaternion is already unit length; treat as a 180 degree rotation.
		n := math.Sqrt(b*b + c*c + d*d)
		b, c, d = b/n, c/n, d/n
		a = 0
	} else {
		a = math.Sqrt(a)
	}

	qfac := 1.0
	if h.Pixdim[0] < 0 {
		qfac = -1
	}
	dx, dy, dz := float64(h.Pixdim[1]), float64(h.Pixdim[2]), float64(h.Pixdim[3])
	dz *= qfac

	return mat.NewDense(4, 4, []float64{
		(a*a + b*b - c*c - d*d) * dx, 2 * (b*c - a*d) * dy, 2 * (b*d + a*c) * dz, float64(h.QoffsetX),
		2 * (b*c + a*d) * dx, (a*a + c*c - b*b - d*d) * dy, 2 * (c*d - a*b) * dz, float64(h.QoffsetY),
		2 * (b*d - a*c) * dx, 2 * (c*d + a*b) * dy, (a*a + d*d - c*c - b*b) * dz, float64(h.QoffsetZ),
		0, 0, 0, 1,
	})
}
