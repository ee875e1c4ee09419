// Package metrics computes summary statistics of voxel data and measures how
// far two decodings of the same volume diverge.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the intensity distribution of a volume.
type Summary struct {
	Min, Max float64
	Mean     float64
	StdDev   float64
	Count    int
}

// Summarize computes min, max, mean and standard deviation of data.
func Summarize(data []float64) Summary {
	if len(data) == 0 {
		return Summary{}
	}
	mean, std := stat.MeanStdDev(data, nil)
	if len(data) == 1 {
		std = 0
	}
	return Summary{
		Min:    floats.Min(data),
		Max:    floats.Max(data),
		Mean:   mean,
		StdDev: std,
		Count:  len(data),
	}
}

// Divergence quantifies the elementwise difference between two decodings.
type Divergence struct {
	// RMSE is the root mean square difference.
	RMSE float64

	// MaxAbsDiff is the largest absolute elementwise difference.
	MaxAbsDiff float64

	// Correlation is the Pearson correlation of the two arrays. It is NaN
	// when either array is constant.
	Correlation float64
}

// Compare measures the divergence of b from a. Both slices must have the
// same length; mismatched or empty input returns a zero Divergence.
func Compare(a, b []float64) Divergence {
	n := len(a)
	if n != len(b) || n == 0 {
		return Divergence{}
	}

	mse := 0.0
	maxAbs := 0.0
	for i := 0; i < n; i++ {
		diff := a[i] - b[i]
		mse += diff * diff
		if d := math.Abs(diff); d > maxAbs {
			maxAbs = d
		}
	}
	mse /= float64(n)

	corr := math.NaN()
	if n > 1 && stat.Variance(a, nil) > 0 && stat.Variance(b, nil) > 0 {
		corr = stat.Correlation(a, b, nil)
	}

	return Divergence{
		RMSE:        math.Sqrt(mse),
		MaxAbsDiff:  maxAbs,
		Correlation: corr,
	}
}
