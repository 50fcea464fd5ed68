package vecmath

import (
	"gonum.org/v1/gonum/mat"
)

// Cosine computes the cosine similarity between two vectors. Mismatched
// lengths and zero vectors yield 0 rather than an error so callers can treat
// the result as "not similar".
func Cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	av := make([]float64, len(a))
	bv := make([]float64, len(b))
	for i := range a {
		av[i] = float64(a[i])
		bv[i] = float64(b[i])
	}

	va := mat.NewVecDense(len(av), av)
	vb := mat.NewVecDense(len(bv), bv)

	na := mat.Norm(va, 2)
	nb := mat.Norm(vb, 2)
	if na == 0 || nb == 0 {
		return 0
	}

	return float32(mat.Dot(va, vb) / (na * nb))
}
