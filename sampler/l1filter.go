package sampler

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/CraigKelly/tvtrend/dist"
	"github.com/CraigKelly/tvtrend/model"
)

// Parameter names used by L1Filter
const (
	ParamTrend   = "trend"
	ParamSigma2  = "sigma2"
	ParamLambda2 = "lambda2"
	ParamOmega   = "omega"
)

// Config holds the construction time settings for a trend filter
type Config struct {
	Alpha float64 // gamma prior shape offset for lambda2
	Rho   float64 // gamma prior rate offset for lambda2
	Order int     // total variation order (0 through 3)
}

// DefaultConfig is alpha=0.1, rho=0.1, order=2
func DefaultConfig() Config {
	return Config{
		Alpha: 0.1,
		Rho:   0.1,
		Order: 2,
	}
}

// L1Filter estimates a smooth trend under a total variation (fused lasso)
// penalty of the given order. The Laplace-like prior on the differenced
// trend is written as a scale mixture of normals, which makes every full
// conditional closed form:
//
//	E       = D' diag(omega)^-1 D
//	trend   ~ Normal(mean (I+E)^-1 y, cov sigma2 (I+E)^-1)
//	sigma2  ~ InverseGamma(shape n, scale |y-trend|^2/2 + trend' E trend/2)
//	lambda2 ~ Gamma(shape n-k-1+alpha, rate |D trend|_1/(2 sigma2) + rho)
//	omega_j = 1/X_j, X_j ~ InverseGaussian(mean p_j lambda2^2, shape lambda2^2)
//
// where p_j = sqrt(lambda2^2 sigma2 / (D trend)_j^2) and D is the difference
// operator of order k.
type L1Filter struct {
	src    rand.Source
	y      *mat.VecDense
	size   int
	cfg    Config
	deriv  *mat.Dense
	params *model.ParameterSet
}

// NewL1Filter creates a trend filter for the observations in data, which are
// copied. DefineParameters must be called before the filter can be run.
func NewL1Filter(src rand.Source, data []float64, cfg Config) (*L1Filter, error) {
	if len(data) < 1 {
		return nil, errors.Wrap(model.ErrConfig, "No observations supplied")
	}
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.Wrapf(model.ErrConfig, "observation %d is not finite", i)
		}
	}
	if !(cfg.Alpha > 0) || math.IsInf(cfg.Alpha, 0) {
		return nil, errors.Wrapf(model.ErrConfig, "alpha must be positive, got %v", cfg.Alpha)
	}
	if !(cfg.Rho > 0) || math.IsInf(cfg.Rho, 0) {
		return nil, errors.Wrapf(model.ErrConfig, "rho must be positive, got %v", cfg.Rho)
	}

	deriv, err := model.DifferenceMatrix(len(data), cfg.Order)
	if err != nil {
		return nil, errors.Wrap(err, "Could not build difference operator")
	}

	y := make([]float64, len(data))
	copy(y, data)

	return &L1Filter{
		src:   src,
		y:     mat.NewVecDense(len(y), y),
		size:  len(y),
		cfg:   cfg,
		deriv: deriv,
	}, nil
}

// Config returns the settings the filter was built with
func (f *L1Filter) Config() Config {
	return f.cfg
}

// DefineParameters declares trend, sigma2, lambda2 and omega, swept in that order
func (f *L1Filter) DefineParameters() (*model.ParameterSet, error) {
	n, k := f.size, f.cfg.Order

	params := model.NewParameterSet()
	decl := []*model.Parameter{
		{Name: ParamTrend, Family: model.Normal, Rows: n, Cols: 1},
		{Name: ParamSigma2, Family: model.InverseGamma, Rows: 1, Cols: 1},
		{Name: ParamLambda2, Family: model.Gamma, Rows: 1, Cols: 1},
		{Name: ParamOmega, Family: model.InverseGaussian, Rows: n - k, Cols: 1},
	}
	for _, p := range decl {
		if err := params.Append(p); err != nil {
			return nil, err
		}
	}
	if err := params.SetHierarchy(ParamTrend, ParamSigma2, ParamLambda2, ParamOmega); err != nil {
		return nil, err
	}

	f.params = params
	return params, nil
}

// Parameters returns the declared parameters (nil before DefineParameters)
func (f *L1Filter) Parameters() *model.ParameterSet {
	return f.params
}

// InitialValue returns fixed warm starts that keep the first sweeps stable
func (f *L1Filter) InitialValue(name string) ([]float64, error) {
	switch name {
	case ParamTrend:
		v := make([]float64, f.size)
		for i := range v {
			v[i] = float64(4*i+10) / 20
		}
		return v, nil
	case ParamSigma2:
		return []float64{0.8}, nil
	case ParamLambda2:
		return []float64{1}, nil
	case ParamOmega:
		v := make([]float64, f.size-f.cfg.Order)
		for i := range v {
			h := float64(i / 2)
			v[i] = 0.8 * (30*h + 3) / (2*h + 35)
		}
		return v, nil
	}
	return nil, errors.Wrapf(model.ErrConfig, "unknown parameter %s", name)
}

func (f *L1Filter) current(name string) (*model.Parameter, error) {
	if f.params == nil {
		return nil, errors.Wrap(model.ErrConfig, "parameters have not been defined")
	}
	p, err := f.params.Get(name)
	if err != nil {
		return nil, err
	}
	if p.Value == nil {
		return nil, errors.Wrapf(model.ErrConfig, "parameter %s has no current value", name)
	}
	return p, nil
}

// Penalty computes the weighted roughness penalty E = D' diag(omega)^-1 D
// from the current omega.
func (f *L1Filter) Penalty() (*mat.SymDense, error) {
	omega, err := f.current(ParamOmega)
	if err != nil {
		return nil, err
	}

	rows, n := f.deriv.Dims()
	weighted := mat.DenseCopyOf(f.deriv)
	for j := 0; j < rows; j++ {
		w := omega.Value[j]
		if !(w > 0) || math.IsInf(w, 0) {
			return nil, errors.Wrapf(model.ErrSampling, "omega[%d]=%v is not a valid scale", j, w)
		}
		row := weighted.RawRowView(j)
		floats.Scale(1/w, row)
	}

	var full mat.Dense
	full.Mul(f.deriv.T(), weighted)

	e := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			e.SetSym(i, j, 0.5*(full.At(i, j)+full.At(j, i)))
		}
	}
	return e, nil
}

// differenced returns D * trend
func (f *L1Filter) differenced(trend *model.Parameter) *mat.VecDense {
	var d mat.VecDense
	d.MulVec(f.deriv, trend.Vector())
	return &d
}

// DistributionParameters returns the full conditional for name
func (f *L1Filter) DistributionParameters(name string) (dist.Conditional, error) {
	switch name {
	case ParamTrend:
		return f.trendConditional()
	case ParamSigma2:
		return f.sigma2Conditional()
	case ParamLambda2:
		return f.lambda2Conditional()
	case ParamOmega:
		return f.omegaConditional()
	}
	return nil, errors.Wrapf(model.ErrConfig, "unknown parameter %s", name)
}

func (f *L1Filter) trendConditional() (dist.Conditional, error) {
	sigma2, err := f.current(ParamSigma2)
	if err != nil {
		return nil, err
	}
	e, err := f.Penalty()
	if err != nil {
		return nil, err
	}

	// precision I + E
	for i := 0; i < f.size; i++ {
		e.SetSym(i, i, e.At(i, i)+1)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(e); !ok {
		return nil, errors.Wrap(model.ErrSampling, "I + E is not positive definite")
	}

	var mean mat.VecDense
	if err := chol.SolveVecTo(&mean, f.y); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, errors.Wrapf(model.ErrSampling, "trend mean solve failed: %v", err)
		}
		// ill conditioned but solved; the draw is checked for finiteness
	}

	return dist.NewMVNormalChol(mean.RawVector().Data, &chol, sigma2.Scalar(), f.src)
}

func (f *L1Filter) sigma2Conditional() (dist.Conditional, error) {
	trend, err := f.current(ParamTrend)
	if err != nil {
		return nil, err
	}
	e, err := f.Penalty()
	if err != nil {
		return nil, err
	}

	resid := make([]float64, f.size)
	floats.SubTo(resid, f.y.RawVector().Data, trend.Value)
	t := trend.Vector()

	shape := float64(f.size)
	scale := 0.5*floats.Dot(resid, resid) + 0.5*mat.Inner(t, e, t)
	return dist.NewInverseGamma(shape, scale, f.src)
}

func (f *L1Filter) lambda2Conditional() (dist.Conditional, error) {
	trend, err := f.current(ParamTrend)
	if err != nil {
		return nil, err
	}
	sigma2, err := f.current(ParamSigma2)
	if err != nil {
		return nil, err
	}

	d := f.differenced(trend)
	shape := float64(f.size-f.cfg.Order-1) + f.cfg.Alpha
	rate := 0.5*floats.Norm(d.RawVector().Data, 1)/sigma2.Scalar() + f.cfg.Rho
	return dist.NewGamma(shape, rate, f.src)
}

func (f *L1Filter) omegaConditional() (dist.Conditional, error) {
	trend, err := f.current(ParamTrend)
	if err != nil {
		return nil, err
	}
	sigma2, err := f.current(ParamSigma2)
	if err != nil {
		return nil, err
	}
	lambda2, err := f.current(ParamLambda2)
	if err != nil {
		return nil, err
	}

	l2 := lambda2.Scalar()
	scale := l2 * l2
	d := f.differenced(trend)

	// X = scale * IG(mean pos, shape 1) is IG(mean pos*scale, shape scale)
	mu := make([]float64, d.Len())
	for j := range mu {
		pos := math.Sqrt(scale*sigma2.Scalar()) / math.Abs(d.AtVec(j))
		mu[j] = pos * scale
	}
	return dist.NewReciprocalWald(mu, scale, f.src)
}

// Generate draws a new value for name from its full conditional
func (f *L1Filter) Generate(name string) ([]float64, error) {
	p, err := f.current(name)
	if err != nil {
		return nil, err
	}
	cond, err := f.DistributionParameters(name)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not compute conditional for %s", name)
	}
	if cond.Len() != p.Size() {
		return nil, errors.Wrapf(model.ErrConfig, "%s conditional has %d values, parameter has %d", name, cond.Len(), p.Size())
	}

	v := make([]float64, p.Size())
	if err := cond.Rand(v); err != nil {
		return nil, errors.Wrapf(err, "Could not draw %s", name)
	}
	return v, nil
}

// Output is the posterior mean of the post burn-in draws
func (f *L1Filter) Output(tr Trace, burn int, name string) (*mat.Dense, error) {
	pt, err := tr.Get(name)
	if err != nil {
		return nil, err
	}
	return pt.Mean(burn)
}
