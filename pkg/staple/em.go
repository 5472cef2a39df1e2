package staple

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// state is the working set of one Solve call.
type state struct {
	w          []float64 // posterior P(true=1 | D) per voxel
	notW       []float64 // 1 - w
	p          []float64 // sensitivity per rater
	q          []float64 // specificity per rater
	prevalence float64
	iteration  int
	history    []Iteration
}

func newState(raters, voxels int, prevalence float64) *state {
	st := &state{
		w:          make([]float64, voxels),
		notW:       make([]float64, voxels),
		p:          make([]float64, raters),
		q:          make([]float64, raters),
		prevalence: prevalence,
	}
	// every rater starts as perfect
	for j := range st.p {
		st.p[j] = 1
		st.q[j] = 1
	}
	return st
}

func (st *state) record(delta float64) {
	st.history = append(st.history, Iteration{
		Index:      st.iteration,
		P:          append([]float64(nil), st.p...),
		Q:          append([]float64(nil), st.q...),
		MaxDelta:   delta,
		Prevalence: st.prevalence,
	})
}

// logOdds returns log(x / (1 - x)) with 0 and 1 mapped to -Inf and +Inf.
func logOdds(x float64) float64 {
	switch {
	case x <= 0:
		return math.Inf(-1)
	case x >= 1:
		return math.Inf(1)
	}
	return math.Log(x / (1 - x))
}

func clamp(x float64) float64 {
	return math.Min(math.Max(x, clampEpsilon), 1-clampEpsilon)
}

// sigmoid maps log-odds back to a probability without overflow.
func sigmoid(s float64) float64 {
	if s >= 0 {
		return 1 / (1 + math.Exp(-s))
	}
	e := math.Exp(s)
	return e / (1 + e)
}

// expectation computes the posterior of every voxel in log-odds form:
//
//	logit(W_i) = logit(π) + Σ_j D_ij·log(p_j/(1-q_j)) + (1-D_ij)·log((1-p_j)/q_j)
//
// which is the product form a·π / (a·π + b·(1-π)) without underflow.
func (e *Estimator) expectation(st *state) {
	raters := len(e.decisions)
	positive := make([]float64, raters)
	negative := make([]float64, raters)
	for j := 0; j < raters; j++ {
		p, q := clamp(st.p[j]), clamp(st.q[j])
		positive[j] = math.Log(p) - math.Log1p(-q)
		negative[j] = math.Log1p(-p) - math.Log(q)
	}
	prior := logOdds(st.prevalence)

	run := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			s := prior
			for j := 0; j < raters; j++ {
				if e.decisions[j][i] == 1 {
					s += positive[j]
				} else {
					s += negative[j]
				}
			}
			w := sigmoid(s)
			st.w[i] = w
			st.notW[i] = 1 - w
		}
	}

	n := len(st.w)
	workers := e.opts.Workers
	if workers < 2 || n < 2*workers {
		run(0, n)
		return
	}

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			run(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}

// maximization updates every rater's sensitivity and specificity from the
// current posterior and returns the largest absolute parameter change.
// A parameter whose denominator vanishes keeps its previous value.
func (e *Estimator) maximization(st *state) float64 {
	sumW := floats.Sum(st.w)
	sumNotW := floats.Sum(st.notW)

	prevP := append([]float64(nil), st.p...)
	prevQ := append([]float64(nil), st.q...)

	for j := range e.decisions {
		if sumW > 0 {
			st.p[j] = math.Min(1, floats.Dot(st.w, e.decisions[j])/sumW)
		}
		if sumNotW > 0 {
			st.q[j] = math.Min(1, floats.Dot(st.notW, e.complement[j])/sumNotW)
		}
	}

	if len(st.p) == 0 {
		return 0
	}
	inf := math.Inf(1)
	return math.Max(floats.Distance(st.p, prevP, inf), floats.Distance(st.q, prevQ, inf))
}
