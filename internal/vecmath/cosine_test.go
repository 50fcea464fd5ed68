package vecmath_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aixlab/aix/internal/vecmath"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, vecmath.Cosine([]float32{1, 0}, []float32{2, 0}), 1e-6)
	assert.InDelta(t, 0.0, vecmath.Cosine([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, vecmath.Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-6)

	// Mismatched lengths and zero vectors are "not similar", not errors.
	assert.Zero(t, vecmath.Cosine([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Zero(t, vecmath.Cosine([]float32{0, 0}, []float32{1, 0}))
	assert.Zero(t, vecmath.Cosine(nil, nil))
}
