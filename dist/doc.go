// Package dist provides the full conditional distributions drawn from by the
// Gibbs samplers. Each type is parameterized once (by a sampler's
// DistributionParameters) and then asked for a draw. Numerical problems with
// the arguments or the draw are reported as model.ErrSampling so the Gibbs
// engine can retry the sweep step.
package dist

import (
	"github.com/CraigKelly/tvtrend/model"
)

// Conditional is a fully parameterized full conditional distribution
type Conditional interface {
	Family() model.Family
	Len() int                 // Number of values produced by a draw
	Rand(dst []float64) error // Draw into dst, which must have Len() entries
}
