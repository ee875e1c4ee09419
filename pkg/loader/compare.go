package loader

import (
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"

	"niftiloader/pkg/metrics"
	"niftiloader/pkg/volume"
)

// Tolerance bounds the elementwise difference Compare accepts. Two values
// match when they are within Abs of each other or within Rel relative to the
// larger magnitude.
type Tolerance struct {
	Abs float64
	Rel float64
}

// Compare reports whether a and b hold the same array within tol (used as both
// the absolute and relative bound) and carry exactly equal affines.
func Compare(a, b *Result, tol float64) (bool, error) {
	return CompareWithin(a, b, Tolerance{Abs: tol, Rel: tol})
}

// CompareWithin is Compare with separate absolute and relative bounds. It
// returns a *ShapeMismatchError when the arrays differ in shape and
// volume.ErrReleased when either result has been closed.
func CompareWithin(a, b *Result, tol Tolerance) (bool, error) {
	va, vb := a.Volume, b.Volume
	if va.Released() || vb.Released() {
		return false, volume.ErrReleased
	}
	if !va.SameShape(vb) {
		return false, &ShapeMismatchError{A: va.Shape(), B: vb.Shape()}
	}

	if !affineEqual(a.Metadata.Affine, b.Metadata.Affine) {
		return false, nil
	}

	for i, n := 0, va.Len(); i < n; i++ {
		if !scalar.EqualWithinAbsOrRel(va.Float64At(i), vb.Float64At(i), tol.Abs, tol.Rel) {
			return false, nil
		}
	}
	return true, nil
}

// Divergence measures how far the voxel values of b are from a. It fails like
// CompareWithin on mismatched shapes or closed results.
func Divergence(a, b *Result) (metrics.Divergence, error) {
	va, vb := a.Volume, b.Volume
	if va.Released() || vb.Released() {
		return metrics.Divergence{}, volume.ErrReleased
	}
	if !va.SameShape(vb) {
		return metrics.Divergence{}, &ShapeMismatchError{A: va.Shape(), B: vb.Shape()}
	}
	return metrics.Compare(va.Float64s(), vb.Float64s()), nil
}

func affineEqual(a, b *mat.Dense) bool {
	if a == nil || b == nil {
		return a == b
	}
	return mat.Equal(a, b)
}
