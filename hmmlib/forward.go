package hmmlib

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Forward runs the scaled forward procedure over obs.  Row t of the returned
// matrix holds the forward probabilities after t symbols, each row rescaled to
// sum to 1; c[t] is the factor that was applied.  The log probability of obs
// is -Σ log c[t].  A sequence with probability zero yields -Inf.
func (hmm *HMM) Forward(obs []int) (*mat.Dense, []float64, float64) {

	nt := len(obs)
	ns := hmm.NState
	alpha := mat.NewDense(nt+1, ns, nil)
	c := make([]float64, nt+1)

	copy(alpha.RawRowView(0), hmm.Init)
	c[0] = 1

	badScale := false
	for t := 1; t <= nt; t++ {
		prev := alpha.RawRowView(t - 1)
		cur := alpha.RawRowView(t)
		o := obs[t-1]
		for j := 0; j < ns; j++ {
			var s float64
			for i, p := range prev {
				if p != 0 {
					s += p * hmm.weight(i, j, o)
				}
			}
			cur[j] = s
		}

		sum := floats.Sum(cur)
		if sum == 0 {
			c[t] = 1
			badScale = true
			continue
		}
		c[t] = 1 / sum
		floats.Scale(c[t], cur)
	}

	var logprob float64
	for _, v := range c {
		logprob -= math.Log(v)
	}
	if badScale {
		logprob += math.Log(floats.Sum(alpha.RawRowView(nt)))
	}

	return alpha, c, logprob
}

// Backward runs the backward procedure using the scale factors c returned by
// Forward, so that Σ_i alpha(t,i)·beta(t,i) = c[t] for every t.
func (hmm *HMM) Backward(obs []int, c []float64) *mat.Dense {

	nt := len(obs)
	ns := hmm.NState
	beta := mat.NewDense(nt+1, ns, nil)

	last := beta.RawRowView(nt)
	for i := range last {
		last[i] = c[nt]
	}

	for t := nt - 1; t >= 0; t-- {
		next := beta.RawRowView(t + 1)
		cur := beta.RawRowView(t)
		o := obs[t]
		for i := 0; i < ns; i++ {
			var s float64
			for j, b := range next {
				if b != 0 {
					s += hmm.weight(i, j, o) * b
				}
			}
			cur[i] = s * c[t]
		}
	}

	return beta
}

// StatePosteriors returns gamma, where gamma(t,i) is the posterior probability
// of being in state i after t symbols.  Rows with no mass are left at zero.
func StatePosteriors(alpha, beta *mat.Dense) *mat.Dense {

	var gamma mat.Dense
	gamma.MulElem(alpha, beta)

	nt, _ := gamma.Dims()
	for t := 0; t < nt; t++ {
		row := gamma.RawRowView(t)
		if s := floats.Sum(row); s > 0 {
			floats.Scale(1/s, row)
		}
	}

	return &gamma
}

// TransitionPosteriors fills dst with the posterior probabilities of moving
// from state i to state j while emitting obs[t].  dst must be NState x NState.
func (hmm *HMM) TransitionPosteriors(obs []int, alpha, beta *mat.Dense, t int, dst *mat.Dense) {

	ar := alpha.RawRowView(t)
	br := beta.RawRowView(t + 1)
	o := obs[t]

	var sum float64
	for i := 0; i < hmm.NState; i++ {
		row := dst.RawRowView(i)
		if ar[i] == 0 {
			zero(row)
			continue
		}
		for j := range row {
			row[j] = ar[i] * hmm.weight(i, j, o) * br[j]
		}
		sum += floats.Sum(row)
	}

	if sum > 0 {
		dst.Scale(1/sum, dst)
	}
}

// Posteriors runs Forward and Backward over obs and returns the state
// posteriors together with the log probability of obs.
func (hmm *HMM) Posteriors(obs []int) (*mat.Dense, float64) {

	alpha, c, logprob := hmm.Forward(obs)
	beta := hmm.Backward(obs, c)

	return StatePosteriors(alpha, beta), logprob
}

// Zero the elements of x
func zero(x []float64) {
	for j := range x {
		x[j] = 0
	}
}
