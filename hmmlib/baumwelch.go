package hmmlib

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Counts holds expected Baum-Welch counts shaped like the parameters of the
// HMM that produced them.
type Counts struct {
	Init  []float64
	Trans *mat.Dense
	Emit  []*mat.Dense
}

// NewCounts returns zero counts shaped for hmm.
func (hmm *HMM) NewCounts() Counts {

	cts := Counts{
		Init:  make([]float64, hmm.NState),
		Trans: mat.NewDense(hmm.NState, hmm.NState, nil),
		Emit:  make([]*mat.Dense, len(hmm.Emit)),
	}
	for i := range cts.Emit {
		cts.Emit[i] = mat.NewDense(hmm.NState, hmm.NSymbol, nil)
	}

	return cts
}

// Add accumulates other into cts.  Both must have the same shape.
func (cts Counts) Add(other Counts) {
	floats.Add(cts.Init, other.Init)
	cts.Trans.Add(cts.Trans, other.Trans)
	for i, e := range cts.Emit {
		e.Add(e, other.Emit[i])
	}
}

// BWCountExpectation returns the expected initial-state, transition and
// emission counts of one sequence, given its forward and backward matrices.
func (hmm *HMM) BWCountExpectation(obs []int, alpha, beta *mat.Dense) Counts {

	cts := hmm.NewCounts()
	ns := hmm.NState

	ar := alpha.RawRowView(0)
	br := beta.RawRowView(0)
	for i := range cts.Init {
		cts.Init[i] = ar[i] * br[i]
	}
	normalizeSum(cts.Init, 0)

	xi := mat.NewDense(ns, ns, nil)
	for t := range obs {
		hmm.TransitionPosteriors(obs, alpha, beta, t, xi)
		cts.Trans.Add(cts.Trans, xi)

		o := obs[t]
		for i := 0; i < ns; i++ {
			row := xi.RawRowView(i)
			switch hmm.Emission {
			case Arc:
				b := cts.Emit[i]
				for j, v := range row {
					b.Set(j, o, b.At(j, o)+v)
				}
			case StateEntry:
				b := cts.Emit[0]
				for j, v := range row {
					b.Set(j, o, b.At(j, o)+v)
				}
			default:
				b := cts.Emit[0]
				b.Set(i, o, b.At(i, o)+floats.Sum(row))
			}
		}
	}

	return cts
}

// BWForwardBackwardCount runs Forward and Backward over obs and returns the
// expected counts together with the log probability of obs.
func (hmm *HMM) BWForwardBackwardCount(obs []int) (Counts, float64) {

	alpha, c, logprob := hmm.Forward(obs)
	beta := hmm.Backward(obs, c)

	return hmm.BWCountExpectation(obs, alpha, beta), logprob
}

// BWReestimate replaces the parameters with the normalized counts.  Rows
// without counts become uniform.
func (hmm *HMM) BWReestimate(cts Counts) {

	copy(hmm.Init, cts.Init)
	normalizeSum(hmm.Init, 1/float64(hmm.NState))

	hmm.Trans.Copy(cts.Trans)
	for i := 0; i < hmm.NState; i++ {
		normalizeSum(hmm.Trans.RawRowView(i), 1/float64(hmm.NState))
	}

	for e, b := range hmm.Emit {
		b.Copy(cts.Emit[e])
		for i := 0; i < hmm.NState; i++ {
			normalizeSum(b.RawRowView(i), 1/float64(hmm.NSymbol))
		}
	}
}
