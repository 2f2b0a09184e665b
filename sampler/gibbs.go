package sampler

import (
	"io"
	"log/slog"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/CraigKelly/tvtrend/buffer"
	"github.com/CraigKelly/tvtrend/model"
)

// Defaults for a run
const (
	DefaultIterations = 100
	DefaultMaxRestart = 10
)

// SweepInfo describes one completed sweep step
type SweepInfo struct {
	Iteration  int                // zero-based iteration just recorded
	Iterations int                // total iterations in the run
	Attempts   int                // attempts used for this step (1 if no restart)
	Restarts   int                // total restarts so far in the run
	Scalars    map[string]float64 // current values of (1,1) parameters
}

// Gibbs drives a Sampler: it initializes the parameters, sweeps the
// hierarchy once per iteration, and records every accepted sweep in a Trace.
// A sweep step that fails with a sampling error is abandoned as a whole
// (every parameter goes back to its value at the start of the step) and
// retried from the top of the hierarchy.
type Gibbs struct {
	Sampler  Sampler
	Log      *slog.Logger    // nil discards
	Window   int             // drift window for scalar parameters, 0 disables
	Progress func(SweepInfo) // optional callback after each recorded sweep

	trace    Trace
	fitted   bool
	restarts int
	windows  map[string]*buffer.CircularFloat
}

// NewGibbs returns an engine around the sampler
func NewGibbs(s Sampler) (*Gibbs, error) {
	if s == nil {
		return nil, errors.Wrap(model.ErrConfig, "No sampler supplied")
	}
	return &Gibbs{Sampler: s}, nil
}

func (g *Gibbs) logger() *slog.Logger {
	if g.Log == nil {
		g.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return g.Log
}

// Run performs iterations full sweeps. Each sweep step may be attempted at
// most maxRestart+1 times before the run fails with model.ErrConvergence.
// Any error other than a sampling failure ends the run immediately. A failed
// run leaves the engine unfitted.
func (g *Gibbs) Run(iterations int, maxRestart int) error {
	log := g.logger()

	g.trace = nil
	g.fitted = false
	g.restarts = 0
	g.windows = nil

	if iterations < 1 {
		return errors.Wrapf(model.ErrConfig, "iterations must be >= 1, got %d", iterations)
	}
	if maxRestart < 0 {
		return errors.Wrapf(model.ErrConfig, "max restart must be >= 0, got %d", maxRestart)
	}

	params := g.Sampler.Parameters()
	if params == nil {
		return errors.Wrap(model.ErrConfig, "run called before parameters were defined")
	}
	if err := params.Check(); err != nil {
		return errors.Wrap(err, "Invalid parameter set")
	}
	hierarchy := params.Hierarchy()

	for _, name := range hierarchy {
		p, err := params.Get(name)
		if err != nil {
			return err
		}
		v, err := g.Sampler.InitialValue(name)
		if err != nil {
			return errors.Wrapf(err, "Could not get initial value for %s", name)
		}
		if err := p.SetValue(v); err != nil {
			return err
		}
	}

	trace, err := NewTrace(params, iterations)
	if err != nil {
		return err
	}
	g.initWindows(params)

	log.Debug("starting gibbs run", "iterations", iterations, "max_restart", maxRestart, "hierarchy", hierarchy)

	for i := 0; i < iterations; i++ {
		attempts, err := g.sweep(i, params, hierarchy, maxRestart)
		if err != nil {
			return err
		}

		for _, name := range hierarchy {
			p, _ := params.Get(name)
			if err := trace[name].Set(i, p.Value); err != nil {
				return err
			}
		}

		g.observe(i, iterations, attempts, params)
	}

	g.trace = trace
	g.fitted = true
	log.Debug("gibbs run complete", "iterations", iterations, "restarts", g.restarts)
	return nil
}

// sweep updates every parameter once, retrying the whole step on sampling
// failures. Returns the number of attempts used.
func (g *Gibbs) sweep(i int, params *model.ParameterSet, hierarchy []string, maxRestart int) (int, error) {
	snap := params.Snapshot()

	for attempt := 0; ; attempt++ {
		err := g.step(params, hierarchy)
		if err == nil {
			return attempt + 1, nil
		}

		params.Restore(snap)

		if !model.IsRetryable(err) {
			return attempt + 1, errors.Wrapf(err, "Sweep step %d failed", i)
		}
		if attempt >= maxRestart {
			return attempt + 1, errors.Wrapf(
				model.ErrConvergence,
				"sweep step %d failed %d times (max restart %d), last failure: %v",
				i, attempt+1, maxRestart, err,
			)
		}

		g.restarts++
		g.logger().Warn("restarting sweep step", "iteration", i, "attempt", attempt+1, "err", err)
	}
}

func (g *Gibbs) step(params *model.ParameterSet, hierarchy []string) error {
	for _, name := range hierarchy {
		v, err := g.Sampler.Generate(name)
		if err != nil {
			return errors.Wrapf(err, "Could not generate %s", name)
		}
		p, err := params.Get(name)
		if err != nil {
			return err
		}
		if err := p.SetValue(v); err != nil {
			return err
		}
	}
	return nil
}

func (g *Gibbs) initWindows(params *model.ParameterSet) {
	if g.Window < 2 {
		return
	}
	g.windows = make(map[string]*buffer.CircularFloat)
	for _, name := range params.Names() {
		p, _ := params.Get(name)
		if p.Size() == 1 {
			g.windows[name] = buffer.NewCircularFloat(g.Window)
		}
	}
}

func (g *Gibbs) observe(i int, iterations int, attempts int, params *model.ParameterSet) {
	scalars := make(map[string]float64)
	for _, name := range params.Names() {
		p, _ := params.Get(name)
		if p.Size() == 1 {
			scalars[name] = p.Scalar()
		}
	}

	for name, w := range g.windows {
		w.Add(scalars[name])
	}

	if g.windows != nil && (i+1)%g.Window == 0 {
		for name := range g.windows {
			if d, ok := g.Drift(name); ok {
				g.logger().Debug("chain drift", "iteration", i, "parameter", name, "drift", d)
			}
		}
	}

	if g.Progress != nil {
		g.Progress(SweepInfo{
			Iteration:  i,
			Iterations: iterations,
			Attempts:   attempts,
			Restarts:   g.restarts,
			Scalars:    scalars,
		})
	}
}

// Drift is |mean(older half) - mean(newer half)| of the most recent Window
// draws of a scalar parameter. ok is false until the window has filled.
func (g *Gibbs) Drift(name string) (float64, bool) {
	w, ok := g.windows[name]
	if !ok || !w.Full() {
		return 0, false
	}
	return math.Abs(w.FirstHalf().Mean() - w.SecondHalf().Mean()), true
}

// Fitted is true after a successful Run
func (g *Gibbs) Fitted() bool {
	return g.fitted
}

// Restarts is the number of sweep-step restarts in the last run
func (g *Gibbs) Restarts() int {
	return g.restarts
}

// Trace returns the simulation trace of the last successful run
func (g *Gibbs) Trace() (Trace, error) {
	if !g.fitted {
		return nil, errors.Wrap(model.ErrNotFitted, "Trace requested before a completed run")
	}
	return g.trace, nil
}

// Output returns the sampler's point estimate for name, discarding the first
// burn draws.
func (g *Gibbs) Output(burn int, name string) (*mat.Dense, error) {
	if !g.fitted {
		return nil, errors.Wrapf(model.ErrNotFitted, "Output for %s requested before a completed run", name)
	}
	return g.Sampler.Output(g.trace, burn, name)
}
