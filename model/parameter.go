package model

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Family identifies the distribution family a parameter is drawn from.
type Family int

// Supported distribution families
const (
	Normal Family = iota
	InverseGamma
	Gamma
	InverseGaussian
)

func (f Family) String() string {
	switch f {
	case Normal:
		return "Normal"
	case InverseGamma:
		return "InverseGamma"
	case Gamma:
		return "Gamma"
	case InverseGaussian:
		return "InverseGaussian"
	}
	return "Unknown"
}

// Parameter is a single named latent quantity in a model. Value is stored
// column-major with Rows*Cols entries; vectors are (n,1) and scalars (1,1).
type Parameter struct {
	Name   string    // Unique within a ParameterSet
	Family Family    // Distribution family used for draws
	Rows   int       // Declared shape
	Cols   int       // Declared shape
	Value  []float64 // Current value - nil until initialized
}

// NewParameter creates a parameter with the given shape and no value.
func NewParameter(name string, family Family, rows int, cols int) (*Parameter, error) {
	p := &Parameter{
		Name:   name,
		Family: family,
		Rows:   rows,
		Cols:   cols,
	}
	if err := p.Check(); err != nil {
		return nil, err
	}
	return p, nil
}

// Size is the number of entries in the parameter (Rows * Cols)
func (p *Parameter) Size() int {
	return p.Rows * p.Cols
}

// Check returns an error if the parameter is malformed
func (p *Parameter) Check() error {
	if len(p.Name) < 1 {
		return errors.Wrap(ErrConfig, "parameter has no name")
	}
	if p.Rows < 1 || p.Cols < 1 {
		return errors.Wrapf(ErrConfig, "parameter %s has invalid shape (%d,%d)", p.Name, p.Rows, p.Cols)
	}
	if p.Value != nil && len(p.Value) != p.Size() {
		return errors.Wrapf(ErrConfig, "parameter %s value len %d != shape (%d,%d)", p.Name, len(p.Value), p.Rows, p.Cols)
	}
	return nil
}

// SetValue copies v into the parameter. v must conform to the declared shape.
func (p *Parameter) SetValue(v []float64) error {
	if len(v) != p.Size() {
		return errors.Wrapf(ErrConfig, "parameter %s expects %d values, got %d", p.Name, p.Size(), len(v))
	}
	if p.Value == nil {
		p.Value = make([]float64, p.Size())
	}
	copy(p.Value, v)
	return nil
}

// Scalar returns the first entry of the current value. Only meaningful for (1,1)
// parameters; NaN if uninitialized.
func (p *Parameter) Scalar() float64 {
	if len(p.Value) < 1 {
		return math.NaN()
	}
	return p.Value[0]
}

// Vector returns the current value as a column vector sharing storage.
func (p *Parameter) Vector() *mat.VecDense {
	return mat.NewVecDense(p.Size(), p.Value)
}

// Matrix returns a copy of the current value in its declared shape.
func (p *Parameter) Matrix() *mat.Dense {
	m := mat.NewDense(p.Rows, p.Cols, nil)
	for c := 0; c < p.Cols; c++ {
		for r := 0; r < p.Rows; r++ {
			m.Set(r, c, p.Value[c*p.Rows+r])
		}
	}
	return m
}

// Clone returns a deep copy of the parameter
func (p *Parameter) Clone() *Parameter {
	cp := &Parameter{
		Name:   p.Name,
		Family: p.Family,
		Rows:   p.Rows,
		Cols:   p.Cols,
	}
	if p.Value != nil {
		cp.Value = make([]float64, len(p.Value))
		copy(cp.Value, p.Value)
	}
	return cp
}

// ParameterSet owns the parameters of a model and the hierarchy (sweep
// order) used by the Gibbs engine.
type ParameterSet struct {
	params    map[string]*Parameter
	order     []string // declaration order
	hierarchy []string
}

// NewParameterSet returns an empty set
func NewParameterSet() *ParameterSet {
	return &ParameterSet{
		params: make(map[string]*Parameter),
	}
}

// Append adds a parameter. Unless SetHierarchy is called, the hierarchy is
// the order of Append calls.
func (s *ParameterSet) Append(p *Parameter) error {
	if p == nil {
		return errors.Wrap(ErrConfig, "nil parameter")
	}
	if err := p.Check(); err != nil {
		return err
	}
	if _, dup := s.params[p.Name]; dup {
		return errors.Wrapf(ErrConfig, "duplicate parameter %s", p.Name)
	}
	s.params[p.Name] = p
	s.order = append(s.order, p.Name)
	s.hierarchy = append(s.hierarchy, p.Name)
	return nil
}

// Len is the number of parameters
func (s *ParameterSet) Len() int {
	return len(s.order)
}

// Get returns the named parameter or an error
func (s *ParameterSet) Get(name string) (*Parameter, error) {
	p, ok := s.params[name]
	if !ok {
		return nil, errors.Wrapf(ErrConfig, "unknown parameter %s", name)
	}
	return p, nil
}

// Names returns the parameter names in declaration order
func (s *ParameterSet) Names() []string {
	cp := make([]string, len(s.order))
	copy(cp, s.order)
	return cp
}

// Hierarchy returns the sweep order
func (s *ParameterSet) Hierarchy() []string {
	cp := make([]string, len(s.hierarchy))
	copy(cp, s.hierarchy)
	return cp
}

// SetHierarchy replaces the sweep order. It must be a permutation of the
// declared parameter names.
func (s *ParameterSet) SetHierarchy(names ...string) error {
	if err := s.checkHierarchy(names); err != nil {
		return err
	}
	s.hierarchy = make([]string, len(names))
	copy(s.hierarchy, names)
	return nil
}

func (s *ParameterSet) checkHierarchy(names []string) error {
	if len(names) != len(s.params) {
		return errors.Wrapf(ErrConfig, "hierarchy has %d names for %d parameters", len(names), len(s.params))
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := s.params[n]; !ok {
			return errors.Wrapf(ErrConfig, "hierarchy names unknown parameter %s", n)
		}
		if seen[n] {
			return errors.Wrapf(ErrConfig, "hierarchy repeats parameter %s", n)
		}
		seen[n] = true
	}
	return nil
}

// Check returns an error if any parameter is invalid or the hierarchy is not
// a permutation of the parameters.
func (s *ParameterSet) Check() error {
	if len(s.params) < 1 {
		return errors.Wrap(ErrConfig, "no parameters defined")
	}
	for _, name := range s.order {
		if err := s.params[name].Check(); err != nil {
			return err
		}
	}
	return s.checkHierarchy(s.hierarchy)
}

// Snapshot copies every current value, keyed by name
func (s *ParameterSet) Snapshot() map[string][]float64 {
	snap := make(map[string][]float64, len(s.params))
	for name, p := range s.params {
		if p.Value == nil {
			snap[name] = nil
			continue
		}
		v := make([]float64, len(p.Value))
		copy(v, p.Value)
		snap[name] = v
	}
	return snap
}

// Restore puts back values taken with Snapshot
func (s *ParameterSet) Restore(snap map[string][]float64) {
	for name, v := range snap {
		p, ok := s.params[name]
		if !ok {
			continue
		}
		if v == nil {
			p.Value = nil
			continue
		}
		p.Value = append(p.Value[:0], v...)
	}
}

// Clone returns a deep copy of the set, hierarchy included
func (s *ParameterSet) Clone() *ParameterSet {
	cp := NewParameterSet()
	for _, name := range s.order {
		p := s.params[name].Clone()
		cp.params[name] = p
		cp.order = append(cp.order, name)
	}
	cp.hierarchy = make([]string, len(s.hierarchy))
	copy(cp.hierarchy, s.hierarchy)
	return cp
}
