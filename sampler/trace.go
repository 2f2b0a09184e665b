package sampler

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/CraigKelly/tvtrend/model"
)

// ParamTrace stores every accepted draw of one parameter: conceptually a
// (Rows, Cols, Iterations) array. Each draw is stored column-major.
type ParamTrace struct {
	Rows       int
	Cols       int
	Iterations int
	data       []float64
}

// NewParamTrace allocates a zeroed trace
func NewParamTrace(rows int, cols int, iterations int) *ParamTrace {
	return &ParamTrace{
		Rows:       rows,
		Cols:       cols,
		Iterations: iterations,
		data:       make([]float64, rows*cols*iterations),
	}
}

// Size is the number of values in one draw
func (pt *ParamTrace) Size() int {
	return pt.Rows * pt.Cols
}

// Set records the draw for iteration i
func (pt *ParamTrace) Set(i int, v []float64) error {
	if i < 0 || i >= pt.Iterations {
		return errors.Wrapf(model.ErrConfig, "iteration %d outside trace of %d", i, pt.Iterations)
	}
	if len(v) != pt.Size() {
		return errors.Wrapf(model.ErrConfig, "draw has %d values, trace expects %d", len(v), pt.Size())
	}
	copy(pt.data[i*pt.Size():], v)
	return nil
}

// Draw returns the values recorded for iteration i. The slice shares storage
// with the trace.
func (pt *ParamTrace) Draw(i int) []float64 {
	sz := pt.Size()
	return pt.data[i*sz : (i+1)*sz]
}

// At is element (r, c) of draw i
func (pt *ParamTrace) At(r int, c int, i int) float64 {
	return pt.data[i*pt.Size()+c*pt.Rows+r]
}

// Mean averages the draws with index >= burn, returned in the declared shape
func (pt *ParamTrace) Mean(burn int) (*mat.Dense, error) {
	if burn < 0 || burn >= pt.Iterations {
		return nil, errors.Wrapf(model.ErrConfig, "burn %d must be in [0, %d)", burn, pt.Iterations)
	}

	sum := make([]float64, pt.Size())
	for i := burn; i < pt.Iterations; i++ {
		floats.Add(sum, pt.Draw(i))
	}
	floats.Scale(1/float64(pt.Iterations-burn), sum)

	out := mat.NewDense(pt.Rows, pt.Cols, nil)
	for c := 0; c < pt.Cols; c++ {
		for r := 0; r < pt.Rows; r++ {
			out.Set(r, c, sum[c*pt.Rows+r])
		}
	}
	return out, nil
}

// Trace maps parameter names to their recorded draws
type Trace map[string]*ParamTrace

// NewTrace allocates a trace for every parameter in the set
func NewTrace(params *model.ParameterSet, iterations int) (Trace, error) {
	if iterations < 1 {
		return nil, errors.Wrapf(model.ErrConfig, "trace needs at least one iteration, got %d", iterations)
	}
	tr := make(Trace, params.Len())
	for _, name := range params.Names() {
		p, err := params.Get(name)
		if err != nil {
			return nil, err
		}
		tr[name] = NewParamTrace(p.Rows, p.Cols, iterations)
	}
	return tr, nil
}

// Get returns the trace for name
func (t Trace) Get(name string) (*ParamTrace, error) {
	pt, ok := t[name]
	if !ok {
		return nil, errors.Wrapf(model.ErrConfig, "no trace for parameter %s", name)
	}
	return pt, nil
}

// Names returns the traced parameter names, sorted
func (t Trace) Names() []string {
	names := make([]string, 0, len(t))
	for n := range t {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
