package model

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Score holds the loss functions we use to judge an estimated trend against
// a reference (a known trend in tests, or a reference series from a file).
type Score struct {
	MeanAbsError     float64 // mean |estimate - reference|
	MaxAbsError      float64 // max |estimate - reference|
	RMSE             float64 // root mean squared error
	ResidualVariance float64 // sample variance of (estimate - reference)
}

// NewScore compares estimate to reference element-wise
func NewScore(estimate []float64, reference []float64) (*Score, error) {
	if len(estimate) != len(reference) {
		return nil, errors.Wrapf(ErrConfig, "length mismatch %d != %d", len(estimate), len(reference))
	}
	if len(estimate) < 1 {
		return nil, errors.Wrap(ErrConfig, "nothing to score")
	}

	resid := make([]float64, len(estimate))
	floats.SubTo(resid, estimate, reference)

	sc := &Score{
		MeanAbsError: MeanAbsDiff(estimate, reference),
		MaxAbsError:  MaxAbsDiff(estimate, reference),
		RMSE:         floats.Norm(resid, 2) / math.Sqrt(float64(len(resid))),
	}
	if len(resid) > 1 {
		sc.ResidualVariance = stat.Variance(resid, nil)
	}

	return sc, nil
}

// MaxAbsDiff returns the maximum absolute difference found between the two
// vectors. They are assumed to be the same length.
func MaxAbsDiff(v1 []float64, v2 []float64) float64 {
	maxErr := 0.0
	for i, a := range v1 {
		maxErr = math.Max(maxErr, math.Abs(a-v2[i]))
	}
	return maxErr
}

// MeanAbsDiff returns the mean absolute difference between the two vectors
func MeanAbsDiff(v1 []float64, v2 []float64) float64 {
	if len(v1) < 1 {
		return 0
	}
	return floats.Distance(v1, v2, 1) / float64(len(v1))
}
