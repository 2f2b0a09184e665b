package sampler

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/rand"

	"github.com/CraigKelly/tvtrend/model"
)

func TestDefaultRegistry(t *testing.T) {
	assert := assert.New(t)

	r := DefaultRegistry()
	assert.Equal([]string{"l1filter", "lasso"}, r.Names())

	data := []float64{1, 2, 3, 4, 5}
	for _, name := range []string{"l1filter", "LASSO", " L1Filter "} {
		s, err := r.New(name, nil, data, DefaultConfig())
		assert.NoError(err, name)
		assert.NotNil(s.Parameters(), name)
		_, ok := s.(*L1Filter)
		assert.True(ok)
	}

	_, err := r.New("l1filter", nil, data, Config{Alpha: 0.1, Rho: 0.1, Order: 9})
	assert.True(errors.Is(err, model.ErrConfig))
	assert.False(errors.Is(err, model.ErrUnknownModel))

	_, err = r.New("hodrick-prescott", nil, data, DefaultConfig())
	assert.True(errors.Is(err, model.ErrUnknownModel))
	assert.True(errors.Is(err, model.ErrConfig))
}

func TestRegistryRegister(t *testing.T) {
	assert := assert.New(t)

	r := NewRegistry()
	assert.Empty(r.Names())

	called := 0
	ctor := func(src rand.Source, data []float64, cfg Config) (Sampler, error) {
		called++
		return newScriptedForRegistry(), nil
	}

	assert.NoError(r.Register("Scripted", ctor))
	assert.Error(r.Register("scripted", ctor))
	assert.Error(r.Register("  ", ctor))
	assert.Error(r.Register("other", nil))

	s, err := r.New("SCRIPTED", nil, nil, Config{})
	assert.NoError(err)
	assert.NotNil(s)
	assert.Equal(1, called)
	assert.Equal([]string{"scripted"}, r.Names())
}

func newScriptedForRegistry() Sampler {
	s := &scriptedSampler{}
	if _, err := s.DefineParameters(); err != nil {
		panic(err)
	}
	return s
}
