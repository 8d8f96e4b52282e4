package analytics

import "math"

// PMI scores how strongly two tokens are associated, with additive smoothing
// on every count.
type PMI struct {
	epsilon float64
}

// NewPMI returns a scorer; non-positive epsilon falls back to 1.
func NewPMI(epsilon float64) PMI {
	if epsilon <= 0 {
		epsilon = 1.0
	}
	return PMI{epsilon: epsilon}
}

// Score computes log((n_ab + ε) * n / ((n_a + ε)(n_b + ε))).
func (p PMI) Score(nAB, nA, nB, n int64) float64 {
	if n == 0 {
		return 0
	}
	num := (float64(nAB) + p.epsilon) * float64(n)
	den := (float64(nA) + p.epsilon) * (float64(nB) + p.epsilon)
	return math.Log(num / den)
}

// Normalized divides Score by -log P(a,b), bounding it to roughly [-1, 1].
func (p PMI) Normalized(nAB, nA, nB, n int64) float64 {
	if n == 0 || nAB == 0 {
		return 0
	}
	logP := math.Log((float64(nAB) + p.epsilon) / float64(n))
	if logP == 0 {
		return 0
	}
	return p.Score(nAB, nA, nB, n) / -logP
}
