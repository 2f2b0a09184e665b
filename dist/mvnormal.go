package dist

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/CraigKelly/tvtrend/model"
)

// MVNormal is a multivariate normal specified by its mean and a scaled
// precision: the covariance is Scale * P^-1. Draws use the Cholesky factor of
// P directly, so P^-1 is never formed.
type MVNormal struct {
	mean  []float64
	scale float64
	chol  *mat.Cholesky
	std   distuv.Normal
}

// NewMVNormalPrecision factorizes prec and returns the distribution. A
// precision that is not positive definite is a sampling failure.
func NewMVNormalPrecision(mean []float64, prec mat.Symmetric, scale float64, src rand.Source) (*MVNormal, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(prec); !ok {
		return nil, errors.Wrap(model.ErrSampling, "precision matrix is not positive definite")
	}
	return NewMVNormalChol(mean, &chol, scale, src)
}

// NewMVNormalChol uses an existing factorization of the precision matrix
func NewMVNormalChol(mean []float64, chol *mat.Cholesky, scale float64, src rand.Source) (*MVNormal, error) {
	if chol == nil || chol.SymmetricDim() != len(mean) {
		return nil, errors.Wrapf(model.ErrConfig, "precision does not match mean of length %d", len(mean))
	}
	if !finitePositive(scale) {
		return nil, errors.Wrapf(model.ErrSampling, "invalid covariance scale %v", scale)
	}
	for i, m := range mean {
		if math.IsNaN(m) || math.IsInf(m, 0) {
			return nil, errors.Wrapf(model.ErrSampling, "non-finite mean at %d", i)
		}
	}

	mu := make([]float64, len(mean))
	copy(mu, mean)

	return &MVNormal{
		mean:  mu,
		scale: scale,
		chol:  chol,
		std:   distuv.Normal{Mu: 0, Sigma: 1, Src: src},
	}, nil
}

// Family is always Normal
func (m *MVNormal) Family() model.Family {
	return model.Normal
}

// Len is the dimension
func (m *MVNormal) Len() int {
	return len(m.mean)
}

// Mean copies the mean into dst (allocated if nil)
func (m *MVNormal) Mean(dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(m.mean))
	}
	copy(dst, m.mean)
	return dst
}

// CovarianceTo stores Scale * P^-1 in dst
func (m *MVNormal) CovarianceTo(dst *mat.SymDense) error {
	if err := m.chol.InverseTo(dst); err != nil {
		return errors.Wrap(model.ErrSampling, err.Error())
	}
	dst.ScaleSym(m.scale, dst)
	return nil
}

// Rand draws mean + sqrt(Scale) * U^-1 z where P = U'U and z is standard
// normal, which has covariance Scale * P^-1.
func (m *MVNormal) Rand(dst []float64) error {
	n := len(m.mean)
	if len(dst) != n {
		return errors.Wrapf(model.ErrConfig, "draw needs %d values, dst has %d", n, len(dst))
	}

	z := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		z.SetVec(i, m.std.Rand())
	}

	var w mat.VecDense
	if err := w.SolveVec(m.chol.RawU(), z); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return errors.Wrapf(model.ErrSampling, "triangular solve failed: %v", err)
		}
	}

	sd := math.Sqrt(m.scale)
	for i := 0; i < n; i++ {
		v := m.mean[i] + sd*w.AtVec(i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(model.ErrSampling, "non-finite draw at %d", i)
		}
		dst[i] = v
	}
	return nil
}

func finitePositive(x float64) bool {
	return x > 0 && !math.IsInf(x, 0) && !math.IsNaN(x)
}
