package dist

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/CraigKelly/tvtrend/model"
)

// Scalar adapts a gonum univariate distribution to a (1,1) Conditional
type Scalar struct {
	family model.Family
	rander distuv.Rander
	Shape  float64 // first distribution argument, kept for inspection
	Second float64 // rate (Gamma) or scale (InverseGamma)
}

// NewGamma is Gamma(shape, rate)
func NewGamma(shape float64, rate float64, src rand.Source) (*Scalar, error) {
	if !finitePositive(shape) || !finitePositive(rate) {
		return nil, errors.Wrapf(model.ErrSampling, "invalid gamma shape=%v rate=%v", shape, rate)
	}
	return &Scalar{
		family: model.Gamma,
		rander: distuv.Gamma{Alpha: shape, Beta: rate, Src: src},
		Shape:  shape,
		Second: rate,
	}, nil
}

// NewInverseGamma is InverseGamma(shape, scale)
func NewInverseGamma(shape float64, scale float64, src rand.Source) (*Scalar, error) {
	if !finitePositive(shape) || !finitePositive(scale) {
		return nil, errors.Wrapf(model.ErrSampling, "invalid inverse gamma shape=%v scale=%v", shape, scale)
	}
	return &Scalar{
		family: model.InverseGamma,
		rander: distuv.InverseGamma{Alpha: shape, Beta: scale, Src: src},
		Shape:  shape,
		Second: scale,
	}, nil
}

// Family of the wrapped distribution
func (s *Scalar) Family() model.Family {
	return s.family
}

// Len is always 1
func (s *Scalar) Len() int {
	return 1
}

// Rand draws one strictly positive finite value into dst[0]
func (s *Scalar) Rand(dst []float64) error {
	if len(dst) != 1 {
		return errors.Wrapf(model.ErrConfig, "scalar draw needs 1 value, dst has %d", len(dst))
	}
	v := s.rander.Rand()
	if !finitePositive(v) {
		return errors.Wrapf(model.ErrSampling, "degenerate %v draw %v", s.family, v)
	}
	dst[0] = v
	return nil
}
