package model

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// MaxDifferenceOrder is the highest supported total variation order.
const MaxDifferenceOrder = 3

// DifferenceCoefficients returns the finite difference stencil for the given
// order (0 through 3).
func DifferenceCoefficients(order int) ([]float64, error) {
	switch order {
	case 0:
		return []float64{1}, nil
	case 1:
		return []float64{-1, 1}, nil
	case 2:
		return []float64{1, -2, 1}, nil
	case 3:
		return []float64{-1, 3, -3, 1}, nil
	}
	return nil, errors.Wrapf(ErrConfig, "difference order %d not in [0, %d]", order, MaxDifferenceOrder)
}

// DifferenceMatrix builds the (size-order) x size discrete derivative operator.
// Row n holds the stencil for the given order starting at column n.
func DifferenceMatrix(size int, order int) (*mat.Dense, error) {
	coef, err := DifferenceCoefficients(order)
	if err != nil {
		return nil, err
	}
	rows := size - order
	if rows <= 0 {
		return nil, errors.Wrapf(ErrConfig, "series length %d too short for difference order %d", size, order)
	}

	d := mat.NewDense(rows, size, nil)
	for n := 0; n < rows; n++ {
		for l, c := range coef {
			d.Set(n, n+l, c)
		}
	}
	return d, nil
}
