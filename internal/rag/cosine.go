package rag

import (
	"errors"
	"math"
)

// ErrDimensionMismatch is returned by Cosine for vectors of unequal length.
var ErrDimensionMismatch = errors.New("rag: vector dimension mismatch")

// Cosine returns the cosine similarity of a and b. A zero-norm vector has
// similarity 0 with anything, and the result is clamped to [-1, 1] to absorb
// floating point drift.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return max(-1, min(1, sim)), nil
}
