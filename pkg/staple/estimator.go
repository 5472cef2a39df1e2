// Package staple estimates a consensus segmentation and per-rater
// performance from two or more aligned binary volumes using the STAPLE
// Expectation-Maximization algorithm (Warfield et al., 2004).
package staple

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"rtstaple/internal/models"
	"rtstaple/internal/monitoring"
)

const (
	// DefaultMaxIterations caps the EM loop when Options.MaxIterations is 0.
	DefaultMaxIterations = 8

	// DefaultEpsilon is the convergence threshold on the largest change of
	// any sensitivity or specificity between two iterations.
	DefaultEpsilon = 1e-7

	// TruthThreshold is the posterior at or above which a voxel is labelled
	// positive. A posterior of exactly 0.5 is positive.
	TruthThreshold = 0.5

	// clampEpsilon keeps sensitivities and specificities away from 0 and 1
	// inside the E-step logarithms. Reported values are never clamped.
	clampEpsilon = 1e-10
)

// Options controls the EM loop.
type Options struct {
	// MaxIterations bounds the number of EM iterations. Zero means
	// DefaultMaxIterations.
	MaxIterations int

	// Epsilon is the convergence threshold. Zero means DefaultEpsilon.
	Epsilon float64

	// Prevalence fixes the prior probability that a voxel is truly
	// positive. Zero means the mean decision over all raters and voxels.
	Prevalence float64

	// ReestimatePrevalence replaces the prior with the mean posterior
	// after every M-step.
	ReestimatePrevalence bool

	// Workers splits the E-step over this many goroutines. Values below 2
	// run it sequentially. Results do not depend on the worker count.
	Workers int
}

func (o Options) validate() (Options, error) {
	if o.MaxIterations < 0 {
		return o, fmt.Errorf("%w: max iterations must not be negative, got %d", models.ErrInvalidArgument, o.MaxIterations)
	}
	if o.Epsilon < 0 || math.IsNaN(o.Epsilon) {
		return o, fmt.Errorf("%w: epsilon must not be negative, got %g", models.ErrInvalidArgument, o.Epsilon)
	}
	if o.Prevalence < 0 || o.Prevalence > 1 || math.IsNaN(o.Prevalence) {
		return o, fmt.Errorf("%w: prevalence must lie in [0, 1], got %g", models.ErrInvalidArgument, o.Prevalence)
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Epsilon == 0 {
		o.Epsilon = DefaultEpsilon
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	return o, nil
}

// Estimator runs STAPLE over a fixed set of rater volumes. It is safe to
// call Solve more than once; every call starts from the same initial
// state.
type Estimator struct {
	shape      models.Shape
	decisions  [][]float64 // D[j][i]
	complement [][]float64 // 1 - D[j][i]
	opts       Options
}

// New validates the rater volumes and options. At least two volumes of
// identical shape are required. The volumes are copied.
func New(volumes []*models.LabelArray, opts Options) (*Estimator, error) {
	if len(volumes) < 2 {
		return nil, fmt.Errorf("%w: STAPLE needs at least 2 raters, got %d", models.ErrInvalidArgument, len(volumes))
	}
	for j, v := range volumes {
		if v == nil {
			return nil, fmt.Errorf("%w: rater %d has no volume", models.ErrInvalidArgument, j)
		}
		if len(v.Data) != v.Shape.Len() {
			return nil, fmt.Errorf("%w: rater %d holds %d voxels for shape %v",
				models.ErrShapeMismatch, j, len(v.Data), v.Shape)
		}
	}
	shape := volumes[0].Shape
	for j, v := range volumes[1:] {
		if v.Shape != shape {
			return nil, fmt.Errorf("%w: rater %d has shape %v, rater 0 has %v",
				models.ErrShapeMismatch, j+1, v.Shape, shape)
		}
	}

	opts, err := opts.validate()
	if err != nil {
		return nil, err
	}

	e := &Estimator{
		shape:      shape,
		decisions:  make([][]float64, len(volumes)),
		complement: make([][]float64, len(volumes)),
		opts:       opts,
	}
	for j, v := range volumes {
		d := make([]float64, len(v.Data))
		nd := make([]float64, len(v.Data))
		for i, label := range v.Data {
			if label > 1 {
				return nil, fmt.Errorf("%w: rater %d has non-binary label %d at voxel %d",
					models.ErrInvalidArgument, j, label, i)
			}
			d[i] = float64(label)
			nd[i] = 1 - d[i]
		}
		e.decisions[j] = d
		e.complement[j] = nd
	}
	return e, nil
}

// Raters returns the number of rater volumes.
func (e *Estimator) Raters() int { return len(e.decisions) }

// Shape returns the common volume shape.
func (e *Estimator) Shape() models.Shape { return e.shape }

// Options returns the effective options after defaults were applied.
func (e *Estimator) Options() Options { return e.opts }

// prevalence returns the prior used by the first E-step.
func (e *Estimator) prevalence() float64 {
	if e.opts.Prevalence > 0 {
		return e.opts.Prevalence
	}
	if e.shape.Len() == 0 {
		return 0
	}
	means := make([]float64, len(e.decisions))
	for j, d := range e.decisions {
		means[j] = stat.Mean(d, nil)
	}
	return stat.Mean(means, nil)
}

// Solve runs the EM loop until the parameters move less than Epsilon or
// MaxIterations is reached. It never fails: a non-converged result is
// reported through Result.Converged.
func (e *Estimator) Solve() *Result {
	st := newState(len(e.decisions), e.shape.Len(), e.prevalence())
	converged := false

	for st.iteration < e.opts.MaxIterations {
		st.iteration++

		e.expectation(st)
		delta := e.maximization(st)

		if e.opts.ReestimatePrevalence && len(st.w) > 0 {
			st.prevalence = stat.Mean(st.w, nil)
		}
		st.record(delta)

		monitoring.Debugf("staple: iteration %d max delta %.3g prevalence %.4f", st.iteration, delta, st.prevalence)

		if delta < e.opts.Epsilon {
			converged = true
			break
		}
	}

	if !converged {
		monitoring.Logf("staple: stopped after %d iterations without converging (epsilon %g)",
			st.iteration, e.opts.Epsilon)
	}

	return newResult(e.shape, st, converged)
}
