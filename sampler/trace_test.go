package sampler

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/CraigKelly/tvtrend/model"
)

func TestParamTrace(t *testing.T) {
	assert := assert.New(t)

	pt := NewParamTrace(2, 2, 4)
	assert.Equal(4, pt.Size())

	for i := 0; i < 4; i++ {
		f := float64(i)
		assert.NoError(pt.Set(i, []float64{f, 10 + f, 20 + f, 30 + f}))
	}
	assert.Error(pt.Set(4, []float64{1, 2, 3, 4}))
	assert.Error(pt.Set(0, []float64{1}))

	assert.Equal([]float64{2, 12, 22, 32}, pt.Draw(2))
	assert.Equal(11.0, pt.At(1, 0, 1)) // column-major: (1,0) is index 1
	assert.Equal(21.0, pt.At(0, 1, 1))

	m, err := pt.Mean(2)
	assert.NoError(err)
	r, c := m.Dims()
	assert.Equal(2, r)
	assert.Equal(2, c)
	assert.InDelta(2.5, m.At(0, 0), 1e-12)
	assert.InDelta(12.5, m.At(1, 0), 1e-12)
	assert.InDelta(22.5, m.At(0, 1), 1e-12)
	assert.InDelta(32.5, m.At(1, 1), 1e-12)

	all, err := pt.Mean(0)
	assert.NoError(err)
	assert.InDelta(1.5, all.At(0, 0), 1e-12)

	for _, burn := range []int{-1, 4, 10} {
		_, err := pt.Mean(burn)
		assert.True(errors.Is(err, model.ErrConfig), "burn %d", burn)
	}
}

func TestTraceFromParameters(t *testing.T) {
	assert := assert.New(t)

	params := model.NewParameterSet()
	assert.NoError(params.Append(&model.Parameter{Name: "b", Rows: 3, Cols: 1}))
	assert.NoError(params.Append(&model.Parameter{Name: "a", Rows: 1, Cols: 1}))

	tr, err := NewTrace(params, 5)
	assert.NoError(err)
	assert.Equal([]string{"a", "b"}, tr.Names())

	b, err := tr.Get("b")
	assert.NoError(err)
	assert.Equal(3, b.Rows)
	assert.Equal(1, b.Cols)
	assert.Equal(5, b.Iterations)

	_, err = tr.Get("c")
	assert.Error(err)

	_, err = NewTrace(params, 0)
	assert.Error(err)
}
