package staple

import (
	"gonum.org/v1/gonum/mat"

	"rtstaple/internal/models"
)

// Iteration is a snapshot of the parameters after one EM iteration.
type Iteration struct {
	Index      int
	P          []float64
	Q          []float64
	MaxDelta   float64
	Prevalence float64
}

// Result holds the outputs of Solve. Nothing in it is shared with the
// estimator.
type Result struct {
	// TrueSegmentation is W thresholded at TruthThreshold, in the shape of
	// the input volumes.
	TrueSegmentation *models.LabelArray

	// W is the posterior probability of every voxel being truly positive,
	// from the last E-step.
	W *models.ProbabilityArray

	// P and Q are the sensitivity and specificity of every rater, in
	// input order.
	P []float64
	Q []float64

	// Phi stacks P (row 0) and Q (row 1) as a 2×R matrix.
	Phi *mat.Dense

	// Prevalence is the prior in effect at the end of the run.
	Prevalence float64

	Iterations int
	Converged  bool

	// History has one entry per iteration.
	History []Iteration
}

func newResult(shape models.Shape, st *state, converged bool) *Result {
	w := &models.ProbabilityArray{Shape: shape, Data: append([]float64(nil), st.w...)}
	raters := len(st.p)

	phi := mat.NewDense(2, raters, nil)
	phi.SetRow(0, st.p)
	phi.SetRow(1, st.q)

	return &Result{
		TrueSegmentation: w.Threshold(TruthThreshold),
		W:                w,
		P:                append([]float64(nil), st.p...),
		Q:                append([]float64(nil), st.q...),
		Phi:              phi,
		Prevalence:       st.prevalence,
		Iterations:       st.iteration,
		Converged:        converged,
		History:          st.history,
	}
}

// Rater describes the performance of one rater.
type Rater struct {
	Index       int
	Sensitivity float64
	Specificity float64
}

// Raters returns P and Q paired per rater.
func (r *Result) Raters() []Rater {
	out := make([]Rater, len(r.P))
	for j := range r.P {
		out[j] = Rater{Index: j, Sensitivity: r.P[j], Specificity: r.Q[j]}
	}
	return out
}
