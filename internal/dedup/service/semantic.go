package service

import "math"

// CosineSimilarity of two embeddings. Empty vectors, mismatched dimensions and
// zero vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / math.Sqrt(na*nb)
	switch {
	case math.IsNaN(s):
		return 0
	case s > 1-1e-12:
		// rounding noise for parallel vectors
		return 1
	case s < -1:
		return -1
	}
	return s
}
