package sampler

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"

	"github.com/CraigKelly/tvtrend/model"
)

// Constructor builds a ready-to-run Sampler (parameters already defined)
type Constructor func(src rand.Source, data []float64, cfg Config) (Sampler, error)

// Registry maps model names to constructors. Build one at startup with
// NewRegistry or DefaultRegistry; lookups of unknown names fail with
// model.ErrUnknownModel.
type Registry struct {
	ctors map[string]Constructor
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{
		ctors: make(map[string]Constructor),
	}
}

// DefaultRegistry has every model in this package: currently the total
// variation trend filter, as "l1filter" and "lasso".
func DefaultRegistry() *Registry {
	r := NewRegistry()
	if err := r.Register("l1filter", newL1FilterSampler); err != nil {
		panic(err)
	}
	if err := r.Register("lasso", newL1FilterSampler); err != nil {
		panic(err)
	}
	return r
}

func newL1FilterSampler(src rand.Source, data []float64, cfg Config) (Sampler, error) {
	f, err := NewL1Filter(src, data, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := f.DefineParameters(); err != nil {
		return nil, err
	}
	return f, nil
}

func normName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds a constructor. Names are case insensitive and may only be
// registered once.
func (r *Registry) Register(name string, ctor Constructor) error {
	key := normName(name)
	if len(key) < 1 {
		return errors.Wrap(model.ErrConfig, "model name is empty")
	}
	if ctor == nil {
		return errors.Wrapf(model.ErrConfig, "nil constructor for model %s", name)
	}
	if _, dup := r.ctors[key]; dup {
		return errors.Wrapf(model.ErrConfig, "model %s is already registered", name)
	}
	r.ctors[key] = ctor
	return nil
}

// New constructs the named model
func (r *Registry) New(name string, src rand.Source, data []float64, cfg Config) (Sampler, error) {
	ctor, ok := r.ctors[normName(name)]
	if !ok {
		return nil, errors.Wrapf(model.ErrUnknownModel, "%q (known: %s)", name, strings.Join(r.Names(), ", "))
	}
	s, err := ctor(src, data, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not create model %s", name)
	}
	return s, nil
}

// Names returns the registered names, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ctors))
	for n := range r.ctors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
