package hmmlib

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Scores within this relative distance of each other are ties, which go to
// the lowest state index in both Viterbi and ViterbiLog.
const tieTol = 1e-12

// Viterbi returns the most probable state path for obs and its log
// probability.  The path has len(obs)+1 entries, the first being the initial
// state.  Scores are kept in probability space and rescaled whenever they
// risk underflow.  If every path has probability zero the log probability is
// -Inf.
func (hmm *HMM) Viterbi(obs []int) ([]int, float64) {

	nt := len(obs)
	ns := hmm.NState
	psi := makeIntArray(nt+1, ns)
	prev := make([]float64, ns)
	cur := make([]float64, ns)
	copy(prev, hmm.Init)

	var logScale float64
	for t := 1; t <= nt; t++ {
		o := obs[t-1]
		var best float64
		for j := 0; j < ns; j++ {
			mx, arg := 0.0, -1
			for i, p := range prev {
				v := p * hmm.weight(i, j, o)
				if arg == -1 || v > mx*(1+tieTol) {
					mx, arg = v, i
				}
			}
			cur[j] = mx
			psi[t][j] = arg
			if mx > best {
				best = mx
			}
		}

		if best > 0 && best < minScale {
			floats.Scale(1/best, cur)
			logScale += math.Log(best)
		}
		prev, cur = cur, prev
	}

	last := 0
	for i, v := range prev {
		if v > prev[last]*(1+tieTol) {
			last = i
		}
	}
	return traceback(psi, last), logScale + math.Log(prev[last])
}

// ViterbiLog is Viterbi computed with log probabilities.  It is slower but
// needs no rescaling.
func (hmm *HMM) ViterbiLog(obs []int) ([]int, float64) {

	nt := len(obs)
	ns := hmm.NState
	psi := makeIntArray(nt+1, ns)
	prev := make([]float64, ns)
	cur := make([]float64, ns)
	for i, p := range hmm.Init {
		prev[i] = math.Log(p)
	}

	for t := 1; t <= nt; t++ {
		o := obs[t-1]
		for j := 0; j < ns; j++ {
			mx, arg := math.Inf(-1), -1
			for i, lp := range prev {
				v := lp + math.Log(hmm.weight(i, j, o))
				if arg == -1 || v > mx+tieTol {
					mx, arg = v, i
				}
			}
			cur[j] = mx
			psi[t][j] = arg
		}
		prev, cur = cur, prev
	}

	last := 0
	for i, v := range prev {
		if v > prev[last]+tieTol {
			last = i
		}
	}
	return traceback(psi, last), prev[last]
}

func traceback(psi [][]int, last int) []int {

	nt := len(psi) - 1
	path := make([]int, nt+1)
	path[nt] = last
	for t := nt; t > 0; t-- {
		path[t-1] = psi[t][path[t]]
	}

	return path
}
