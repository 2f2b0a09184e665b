package dist

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/CraigKelly/tvtrend/model"
)

// Wald is the inverse Gaussian distribution with mean Mu and shape Lambda.
// gonum's distuv does not provide one, so it is implemented here in the same
// style.
type Wald struct {
	Mu     float64
	Lambda float64
	Src    rand.Source
}

// Validate returns a sampling error if the parameters are not usable
func (w Wald) Validate() error {
	if !finitePositive(w.Mu) || !finitePositive(w.Lambda) {
		return errors.Wrapf(model.ErrSampling, "invalid inverse gaussian mu=%v lambda=%v", w.Mu, w.Lambda)
	}
	return nil
}

// Mean returns the mean of the distribution
func (w Wald) Mean() float64 {
	return w.Mu
}

// Variance returns the variance of the distribution
func (w Wald) Variance() float64 {
	return w.Mu * w.Mu * w.Mu / w.Lambda
}

// LogProb computes the natural logarithm of the density at x
func (w Wald) LogProb(x float64) float64 {
	if x <= 0 {
		return math.Inf(-1)
	}
	d := x - w.Mu
	return 0.5*math.Log(w.Lambda/(2*math.Pi*x*x*x)) - w.Lambda*d*d/(2*w.Mu*w.Mu*x)
}

// Rand returns a random sample using the transformation with multiple roots
// of Michael, Schucany and Haas (1976).
func (w Wald) Rand() float64 {
	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: w.Src}
	unif := distuv.Uniform{Min: 0, Max: 1, Src: w.Src}

	v := norm.Rand()
	a := w.Mu * v * v / (2 * w.Lambda)
	// smaller root of the quadratic; 1+a-sqrt(a^2+2a) rewritten to avoid cancellation
	x := w.Mu / (1 + a + math.Sqrt(a*a+2*a))

	if unif.Rand() <= w.Mu/(w.Mu+x) {
		return x
	}
	return w.Mu * w.Mu / x
}

// ReciprocalWald draws a vector whose entries are 1/X_i with X_i ~ Wald(Mu_i,
// Lambda). This is how the local scales of a Laplace scale mixture are drawn.
type ReciprocalWald struct {
	waldDists []Wald
}

// NewReciprocalWald validates every component
func NewReciprocalWald(mu []float64, lambda float64, src rand.Source) (*ReciprocalWald, error) {
	r := &ReciprocalWald{waldDists: make([]Wald, len(mu))}
	for i, m := range mu {
		w := Wald{Mu: m, Lambda: lambda, Src: src}
		if err := w.Validate(); err != nil {
			return nil, errors.Wrapf(err, "component %d", i)
		}
		r.waldDists[i] = w
	}
	return r, nil
}

// Family is always InverseGaussian
func (r *ReciprocalWald) Family() model.Family {
	return model.InverseGaussian
}

// Len is the number of components
func (r *ReciprocalWald) Len() int {
	return len(r.waldDists)
}

// Component returns the i'th inverse gaussian
func (r *ReciprocalWald) Component(i int) Wald {
	return r.waldDists[i]
}

// Rand fills dst with reciprocal draws
func (r *ReciprocalWald) Rand(dst []float64) error {
	if len(dst) != len(r.waldDists) {
		return errors.Wrapf(model.ErrConfig, "draw needs %d values, dst has %d", len(r.waldDists), len(dst))
	}
	for i, w := range r.waldDists {
		x := w.Rand()
		v := 1 / x
		if !finitePositive(x) || !finitePositive(v) {
			return errors.Wrapf(model.ErrSampling, "degenerate inverse gaussian draw %v at %d", x, i)
		}
		dst[i] = v
	}
	return nil
}
