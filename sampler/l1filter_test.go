package sampler

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/CraigKelly/tvtrend/dist"
	"github.com/CraigKelly/tvtrend/model"
	"github.com/CraigKelly/tvtrend/rand"
)

func testFilter(t *testing.T, seed int64, data []float64, cfg Config) *L1Filter {
	gen, err := rand.NewGenerator(seed)
	require.NoError(t, err)
	f, err := NewL1Filter(gen, data, cfg)
	require.NoError(t, err)
	_, err = f.DefineParameters()
	require.NoError(t, err)
	return f
}

func setValue(t *testing.T, f *L1Filter, name string, v ...float64) {
	p, err := f.Parameters().Get(name)
	require.NoError(t, err)
	require.NoError(t, p.SetValue(v))
}

// ramp plus gaussian noise with the given standard deviation
func noisyRamp(t *testing.T, n int, sd float64) (truth []float64, obs []float64) {
	gen, err := rand.NewGenerator(1234)
	require.NoError(t, err)
	noise := distuv.Normal{Mu: 0, Sigma: sd, Src: gen}

	truth = make([]float64, n)
	obs = make([]float64, n)
	for i := range truth {
		truth[i] = 1 + 0.1*float64(i)
		obs[i] = truth[i] + noise.Rand()
	}
	return truth, obs
}

func TestL1FilterConfig(t *testing.T) {
	assert := assert.New(t)

	good := []float64{1, 2, 3, 4, 5}
	cfg := DefaultConfig()
	assert.Equal(0.1, cfg.Alpha)
	assert.Equal(0.1, cfg.Rho)
	assert.Equal(2, cfg.Order)

	bad := []struct {
		data []float64
		cfg  Config
	}{
		{nil, cfg},
		{[]float64{1, math.NaN(), 3}, cfg},
		{[]float64{1, math.Inf(1), 3}, cfg},
		{good, Config{Alpha: 0, Rho: 0.1, Order: 2}},
		{good, Config{Alpha: 0.1, Rho: -1, Order: 2}},
		{good, Config{Alpha: math.NaN(), Rho: 0.1, Order: 2}},
		{good, Config{Alpha: 0.1, Rho: 0.1, Order: 4}},
		{good, Config{Alpha: 0.1, Rho: 0.1, Order: -1}},
		{[]float64{1, 2}, Config{Alpha: 0.1, Rho: 0.1, Order: 2}},
	}
	for i, c := range bad {
		f, err := NewL1Filter(nil, c.data, c.cfg)
		assert.Nil(f)
		assert.True(errors.Is(err, model.ErrConfig), "case %d", i)
	}

	f, err := NewL1Filter(nil, good, cfg)
	assert.NoError(err)
	assert.Equal(cfg, f.Config())

	// data is copied
	data := []float64{1, 2, 3}
	f, err = NewL1Filter(nil, data, Config{Alpha: 1, Rho: 1, Order: 1})
	assert.NoError(err)
	data[0] = 100
	assert.Equal(1.0, f.y.AtVec(0))
}

func TestL1FilterDefineParameters(t *testing.T) {
	assert := assert.New(t)

	f, err := NewL1Filter(nil, make([]float64, 10), Config{Alpha: 0.1, Rho: 0.1, Order: 3})
	assert.NoError(err)
	assert.Nil(f.Parameters())

	_, err = f.DistributionParameters(ParamTrend)
	assert.True(errors.Is(err, model.ErrConfig))

	params, err := f.DefineParameters()
	assert.NoError(err)
	assert.NoError(params.Check())
	assert.Equal([]string{ParamTrend, ParamSigma2, ParamLambda2, ParamOmega}, params.Hierarchy())

	shapes := map[string][3]int{
		ParamTrend:   {10, 1, int(model.Normal)},
		ParamSigma2:  {1, 1, int(model.InverseGamma)},
		ParamLambda2: {1, 1, int(model.Gamma)},
		ParamOmega:   {7, 1, int(model.InverseGaussian)},
	}
	for name, exp := range shapes {
		p, err := params.Get(name)
		assert.NoError(err)
		assert.Equal(exp[0], p.Rows, name)
		assert.Equal(exp[1], p.Cols, name)
		assert.Equal(model.Family(exp[2]), p.Family, name)
	}
}

func TestL1FilterInitialValues(t *testing.T) {
	assert := assert.New(t)

	f := testFilter(t, 42, make([]float64, 8), DefaultConfig())

	trend, err := f.InitialValue(ParamTrend)
	assert.NoError(err)
	assert.Len(trend, 8)
	assert.InDelta(0.5, trend[0], 1e-12)
	assert.InDelta(0.7, trend[1], 1e-12)
	assert.InDelta(1.9, trend[7], 1e-12)

	v, err := f.InitialValue(ParamSigma2)
	assert.NoError(err)
	assert.Equal([]float64{0.8}, v)

	v, err = f.InitialValue(ParamLambda2)
	assert.NoError(err)
	assert.Equal([]float64{1}, v)

	omega, err := f.InitialValue(ParamOmega)
	assert.NoError(err)
	assert.Len(omega, 6)
	assert.InDelta(0.8*3/35, omega[0], 1e-12)
	assert.InDelta(0.8*3/35, omega[1], 1e-12)
	assert.InDelta(0.8*33/37, omega[2], 1e-12)
	assert.InDelta(0.8*63/39, omega[5], 1e-12)

	_, err = f.InitialValue("nope")
	assert.True(errors.Is(err, model.ErrConfig))
}

// values with non-zero second differences: D2 trend = 1, -3, 3, 2
var (
	condY     = []float64{1.5, 2, 3, 3.5, 5, 8}
	condTrend = []float64{1, 2, 4, 3, 5, 9}
	condOmega = []float64{0.5, 1, 2, 4}
	condD     = []float64{1, -3, 3, 2}
)

func TestL1FilterPenalty(t *testing.T) {
	assert := assert.New(t)

	f := testFilter(t, 42, condY, DefaultConfig())
	setValue(t, f, ParamOmega, 1, 1, 1, 1)

	e, err := f.Penalty()
	assert.NoError(err)

	var dtd mat.Dense
	dtd.Mul(f.deriv.T(), f.deriv)
	assert.True(mat.EqualApprox(&dtd, e, 1e-12))

	setValue(t, f, ParamOmega, condOmega...)
	e, err = f.Penalty()
	assert.NoError(err)
	// trend' E trend == sum_j (D trend)_j^2 / omega_j
	tv := mat.NewVecDense(len(condTrend), condTrend)
	exp := 0.0
	for j, d := range condD {
		exp += d * d / condOmega[j]
	}
	assert.InDelta(exp, mat.Inner(tv, e, tv), 1e-10)

	setValue(t, f, ParamOmega, 1, 0, 1, 1)
	_, err = f.Penalty()
	assert.True(model.IsRetryable(err))
}

func TestL1FilterConditionals(t *testing.T) {
	assert := assert.New(t)

	cfg := DefaultConfig()
	f := testFilter(t, 42, condY, cfg)
	n := float64(len(condY))

	const sigma2, lambda2 = 2.0, 1.5
	setValue(t, f, ParamTrend, condTrend...)
	setValue(t, f, ParamSigma2, sigma2)
	setValue(t, f, ParamLambda2, lambda2)
	setValue(t, f, ParamOmega, condOmega...)

	e, err := f.Penalty()
	require.NoError(t, err)
	prec := mat.NewDense(len(condY), len(condY), nil)
	prec.Add(e, mat.NewDiagDense(len(condY), []float64{1, 1, 1, 1, 1, 1}))

	// trend: mean (I+E)^-1 y, covariance sigma2 (I+E)^-1
	cond, err := f.DistributionParameters(ParamTrend)
	assert.NoError(err)
	mvn, ok := cond.(*dist.MVNormal)
	require.True(t, ok)
	var back mat.VecDense
	back.MulVec(prec, mat.NewVecDense(len(condY), mvn.Mean(nil)))
	assert.InDeltaSlice(condY, back.RawVector().Data, 1e-9)

	var cov mat.SymDense
	assert.NoError(mvn.CovarianceTo(&cov))
	var ident mat.Dense
	ident.Mul(&cov, prec)
	for i := 0; i < len(condY); i++ {
		for j := 0; j < len(condY); j++ {
			exp := 0.0
			if i == j {
				exp = sigma2
			}
			assert.InDelta(exp, ident.At(i, j), 1e-9)
		}
	}

	// sigma2: shape n, scale |y-trend|^2/2 + trend' E trend/2
	cond, err = f.DistributionParameters(ParamSigma2)
	assert.NoError(err)
	sc, ok := cond.(*dist.Scalar)
	require.True(t, ok)
	resid := 0.0
	for i, y := range condY {
		resid += (y - condTrend[i]) * (y - condTrend[i])
	}
	quad := 0.0
	for j, d := range condD {
		quad += d * d / condOmega[j]
	}
	assert.Equal(model.InverseGamma, sc.Family())
	assert.InDelta(n, sc.Shape, 1e-12)
	assert.InDelta(0.5*resid+0.5*quad, sc.Second, 1e-10)

	// lambda2: shape n-k-1+alpha, rate |D trend|_1/(2 sigma2) + rho
	cond, err = f.DistributionParameters(ParamLambda2)
	assert.NoError(err)
	sc, ok = cond.(*dist.Scalar)
	require.True(t, ok)
	assert.Equal(model.Gamma, sc.Family())
	assert.InDelta(n-2-1+cfg.Alpha, sc.Shape, 1e-12)
	assert.InDelta(0.5*9/sigma2+cfg.Rho, sc.Second, 1e-12)

	// omega: reciprocal inverse gaussian components
	cond, err = f.DistributionParameters(ParamOmega)
	assert.NoError(err)
	rw, ok := cond.(*dist.ReciprocalWald)
	require.True(t, ok)
	assert.Equal(len(condD), rw.Len())
	l4 := lambda2 * lambda2
	for j, d := range condD {
		pos := math.Sqrt(l4 * sigma2 / (d * d))
		assert.InDelta(pos*l4, rw.Component(j).Mu, 1e-10)
		assert.InDelta(l4, rw.Component(j).Lambda, 1e-12)
	}

	_, err = f.DistributionParameters("nope")
	assert.True(errors.Is(err, model.ErrConfig))

	// every draw is shaped like its parameter
	for _, name := range f.Parameters().Hierarchy() {
		v, err := f.Generate(name)
		assert.NoError(err, name)
		p, _ := f.Parameters().Get(name)
		assert.Len(v, p.Size(), name)
	}
}

func TestL1FilterFlatTrendIsRetryable(t *testing.T) {
	assert := assert.New(t)

	f := testFilter(t, 42, []float64{1, 1, 1, 1}, Config{Alpha: 0.1, Rho: 0.1, Order: 1})
	setValue(t, f, ParamTrend, 2, 2, 2, 2)
	setValue(t, f, ParamSigma2, 1)
	setValue(t, f, ParamLambda2, 1)
	setValue(t, f, ParamOmega, 1, 1, 1)

	_, err := f.Generate(ParamOmega)
	assert.True(model.IsRetryable(err))
}

func TestL1FilterDeterministic(t *testing.T) {
	assert := assert.New(t)

	_, obs := noisyRamp(t, 15, 0.1)

	run := func() Trace {
		g, err := NewGibbs(testFilter(t, 99, obs, DefaultConfig()))
		require.NoError(t, err)
		require.NoError(t, g.Run(12, DefaultMaxRestart))
		tr, err := g.Trace()
		require.NoError(t, err)
		return tr
	}

	tr1, tr2 := run(), run()
	assert.Equal(tr1.Names(), tr2.Names())
	for _, name := range tr1.Names() {
		for i := 0; i < 12; i++ {
			assert.Equal(tr1[name].Draw(i), tr2[name].Draw(i), "%s at %d", name, i)
		}
	}
}

func TestL1FilterRecoversRamp(t *testing.T) {
	assert := assert.New(t)

	const (
		n     = 20
		sd    = 0.1
		iters = 50
		burn  = 20
	)
	truth, obs := noisyRamp(t, n, sd)

	f := testFilter(t, 42, obs, DefaultConfig())
	g, err := NewGibbs(f)
	require.NoError(t, err)
	require.NoError(t, g.Run(iters, DefaultMaxRestart))

	trend, err := g.Output(burn, ParamTrend)
	assert.NoError(err)
	r, c := trend.Dims()
	assert.Equal(n, r)
	assert.Equal(1, c)

	score, err := model.NewScore(mat.Col(nil, 0, trend), truth)
	assert.NoError(err)
	assert.True(score.MeanAbsError < 2*sd, "mean abs error %v", score.MeanAbsError)

	// The full conditionals shrink sigma2 toward zero as the chain goes on,
	// so it ends up positive and below the injected noise variance.
	sigma2, err := g.Output(burn, ParamSigma2)
	assert.NoError(err)
	assert.True(sigma2.At(0, 0) > 0)
	assert.True(sigma2.At(0, 0) < sd*sd, "sigma2 %v", sigma2.At(0, 0))

	omega, err := g.Output(burn, ParamOmega)
	assert.NoError(err)
	r, _ = omega.Dims()
	assert.Equal(n-2, r)

	_, err = g.Output(iters, ParamTrend)
	assert.True(errors.Is(err, model.ErrConfig))

	// every recorded draw conforms to the declared shape
	tr, err := g.Trace()
	assert.NoError(err)
	for _, name := range f.Parameters().Names() {
		p, _ := f.Parameters().Get(name)
		assert.Equal(p.Rows, tr[name].Rows)
		assert.Equal(p.Cols, tr[name].Cols)
		assert.Len(p.Value, p.Size())
	}
}

func BenchmarkL1FilterSweep(b *testing.B) {
	gen, err := rand.NewGenerator(42)
	if err != nil {
		b.Fatalf("Could not init PRNG %v", err)
	}

	data := make([]float64, 100)
	for i := range data {
		data[i] = math.Sin(float64(i) / 10)
	}

	f, err := NewL1Filter(gen, data, DefaultConfig())
	if err != nil {
		b.Fatalf("Could not create filter %v", err)
	}
	if _, err = f.DefineParameters(); err != nil {
		b.Fatalf("Could not define parameters %v", err)
	}
	g, err := NewGibbs(f)
	if err != nil {
		b.Fatalf("Could not create engine %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err = g.Run(1, DefaultMaxRestart); err != nil {
			b.Fatalf("Failure on sweep (it %d) %v", i, err)
		}
	}
}
