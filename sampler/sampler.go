package sampler

import (
	"gonum.org/v1/gonum/mat"

	"github.com/CraigKelly/tvtrend/dist"
	"github.com/CraigKelly/tvtrend/model"
)

// A Sampler is a model the Gibbs engine can drive. The engine owns the
// iteration bookkeeping; the Sampler owns the parameters and the math.
type Sampler interface {
	// DefineParameters declares every latent quantity, its family, shape and
	// the sweep hierarchy. Must be called before a run.
	DefineParameters() (*model.ParameterSet, error)

	// Parameters returns the set from DefineParameters, or nil if it has not
	// been called.
	Parameters() *model.ParameterSet

	// InitialValue is the deterministic starting value for a parameter.
	InitialValue(name string) ([]float64, error)

	// DistributionParameters returns the full conditional for name given the
	// current values of every other parameter.
	DistributionParameters(name string) (dist.Conditional, error)

	// Generate draws a new value for name, shaped like the parameter.
	// Transient numerical failures wrap model.ErrSampling.
	Generate(name string) ([]float64, error)

	// Output reduces the trace for name to a point estimate using draws at
	// index >= burn.
	Output(tr Trace, burn int, name string) (*mat.Dense, error)
}
