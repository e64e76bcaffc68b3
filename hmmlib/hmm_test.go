package hmmlib

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	niter = 20
	tol   = 1e-9
)

// gendat returns a random model and nseq random sequences of length ntm.
func gendat(rng *rand.Rand, nst, nsym, ntm, nseq int, et EmissionType) (*HMM, [][]int) {

	hmm := New(nst, nsym, et)

	for i := range hmm.Init {
		hmm.Init[i] = rng.Float64()
	}
	normalizeSum(hmm.Init, 0)

	for i := 0; i < nst; i++ {
		row := hmm.Trans.RawRowView(i)
		for j := range row {
			row[j] = rng.Float64()
		}
		normalizeSum(row, 0)
	}

	for _, b := range hmm.Emit {
		for i := 0; i < nst; i++ {
			row := b.RawRowView(i)
			for j := range row {
				row[j] = rng.Float64()
			}
			normalizeSum(row, 0)
		}
	}

	seqs := make([][]int, nseq)
	for k := range seqs {
		obs := make([]int, ntm)
		for t := range obs {
			obs[t] = rng.Intn(nsym)
		}
		seqs[k] = obs
	}

	return hmm, seqs
}

// paths calls f on every state path of length ntm+1.
func paths(nst, ntm int, f func([]int)) {

	path := make([]int, ntm+1)
	var rec func(t int)
	rec = func(t int) {
		if t > ntm {
			f(path)
			return
		}
		for s := 0; s < nst; s++ {
			path[t] = s
			rec(t + 1)
		}
	}
	rec(0)
}

func pathProb(hmm *HMM, obs, path []int) float64 {
	p := hmm.Init[path[0]]
	for t, o := range obs {
		p *= hmm.weight(path[t], path[t+1], o)
	}
	return p
}

func pathLogProb(hmm *HMM, obs, path []int) float64 {
	lp := math.Log(hmm.Init[path[0]])
	for t, o := range obs {
		lp += math.Log(hmm.weight(path[t], path[t+1], o))
	}
	return lp
}

var emissionTypes = []EmissionType{Arc, StateEntry, StateExit}

func TestForwardBruteForce(t *testing.T) {

	rng := rand.New(rand.NewSource(1))
	for _, et := range emissionTypes {
		for _, nst := range []int{1, 2, 3} {
			for _, ntm := range []int{0, 1, 4} {
				hmm, seqs := gendat(rng, nst, 3, ntm, 3, et)
				for _, obs := range seqs {
					var total float64
					paths(nst, ntm, func(p []int) {
						total += pathProb(hmm, obs, p)
					})

					_, _, lp := hmm.Forward(obs)
					if math.Abs(lp-math.Log(total)) > 1e-8 {
						t.Errorf("emission %d, %d states, T=%d: got %f; want %f", et, nst, ntm, lp, math.Log(total))
					}
				}
			}
		}
	}
}

func TestForwardBackwardScale(t *testing.T) {

	rng := rand.New(rand.NewSource(2))
	for _, et := range emissionTypes {
		hmm, seqs := gendat(rng, 5, 4, 60, 4, et)
		for _, obs := range seqs {
			alpha, c, lp := hmm.Forward(obs)
			beta := hmm.Backward(obs, c)

			for tt := 0; tt <= len(obs); tt++ {
				s := floats.Dot(alpha.RawRowView(tt), beta.RawRowView(tt)) / c[tt]
				if math.Abs(s-1) > 1e-8 {
					t.Errorf("emission %d, t=%d: Σ alpha·beta/c = %f", et, tt, s)
				}
			}

			// Unscaled Σ alpha·beta at any time step is the sequence probability.
			for tt := 0; tt <= len(obs); tt++ {
				var lscale float64
				for _, v := range c {
					lscale += math.Log(v)
				}
				got := math.Log(floats.Dot(alpha.RawRowView(tt), beta.RawRowView(tt))) - math.Log(c[tt]) - lscale
				if math.Abs(got-lp) > 1e-6 {
					t.Errorf("emission %d, t=%d: got %f; want %f", et, tt, got, lp)
				}
			}
		}
	}
}

func TestPosteriors(t *testing.T) {

	rng := rand.New(rand.NewSource(3))
	for _, et := range emissionTypes {
		hmm, seqs := gendat(rng, 4, 5, 12, 2, et)
		for _, obs := range seqs {
			alpha, c, _ := hmm.Forward(obs)
			beta := hmm.Backward(obs, c)
			gamma := StatePosteriors(alpha, beta)

			xi := mat.NewDense(hmm.NState, hmm.NState, nil)
			for tt := range obs {
				if s := floats.Sum(gamma.RawRowView(tt)); math.Abs(s-1) > tol {
					t.Errorf("gamma row %d sums to %f", tt, s)
				}

				// Summing xi over the destination gives gamma.
				hmm.TransitionPosteriors(obs, alpha, beta, tt, xi)
				for i := 0; i < hmm.NState; i++ {
					s := floats.Sum(xi.RawRowView(i))
					if math.Abs(s-gamma.At(tt, i)) > 1e-8 {
						t.Errorf("emission %d, t=%d, i=%d: Σ xi = %f; gamma = %f", et, tt, i, s, gamma.At(tt, i))
					}
				}
			}

			cts := hmm.BWCountExpectation(obs, alpha, beta)
			if s := mat.Sum(cts.Trans); math.Abs(s-float64(len(obs))) > 1e-8 {
				t.Errorf("transition counts sum to %f; want %d", s, len(obs))
			}
			var es float64
			for _, b := range cts.Emit {
				es += mat.Sum(b)
			}
			if math.Abs(es-float64(len(obs))) > 1e-8 {
				t.Errorf("emission counts sum to %f; want %d", es, len(obs))
			}
		}
	}
}

func TestViterbi(t *testing.T) {

	rng := rand.New(rand.NewSource(4))
	for _, et := range emissionTypes {
		for _, nst := range []int{2, 3} {
			hmm, seqs := gendat(rng, nst, 3, 5, 5, et)
			for _, obs := range seqs {
				best := math.Inf(-1)
				paths(nst, len(obs), func(p []int) {
					if lp := math.Log(pathProb(hmm, obs, p)); lp > best {
						best = lp
					}
				})

				// Equally good paths may differ in the last bits of
				// their scores, so only the scores are compared.
				p1, lp1 := hmm.Viterbi(obs)
				p2, lp2 := hmm.ViterbiLog(obs)
				if math.Abs(lp1-best) > 1e-8 || math.Abs(lp2-best) > 1e-8 {
					t.Errorf("got %f and %f; want %f", lp1, lp2, best)
				}
				for _, p := range [][]int{p1, p2} {
					if math.Abs(pathLogProb(hmm, obs, p)-best) > 1e-8 {
						t.Errorf("path %v does not reach the best score", p)
					}
				}
			}
		}
	}
}

// Alternating paths that emit the same symbols in a different order tie;
// both decoders must pick the one ending in the lowest state.
func TestViterbiTie(t *testing.T) {

	for _, et := range []EmissionType{StateEntry, StateExit} {
		hmm := New(2, 2, et)
		hmm.Init[0], hmm.Init[1] = 0.5, 0.5
		hmm.Trans.SetRow(0, []float64{0.1, 0.9})
		hmm.Trans.SetRow(1, []float64{0.9, 0.1})
		hmm.Emit[0].SetRow(0, []float64{0.2, 0.8})
		hmm.Emit[0].SetRow(1, []float64{0.6, 0.4})

		for _, obs := range [][]int{{0, 0}, {0, 0, 0, 0}, {1, 1}} {
			p1, lp1 := hmm.Viterbi(obs)
			p2, lp2 := hmm.ViterbiLog(obs)
			if !intSliceEqual(p1, p2) {
				t.Errorf("emission %d, obs %v: paths differ: %v %v", et, obs, p1, p2)
			}
			if p1[len(p1)-1] != 0 {
				t.Errorf("emission %d, obs %v: tie not broken toward state 0: %v", et, obs, p1)
			}
			if math.Abs(lp1-lp2) > 1e-12 {
				t.Errorf("emission %d, obs %v: got %f and %f", et, obs, lp1, lp2)
			}
		}
	}
}

func TestViterbiLong(t *testing.T) {

	rng := rand.New(rand.NewSource(5))
	hmm, seqs := gendat(rng, 6, 20, 3000, 1, StateEntry)
	obs := seqs[0]

	p1, lp1 := hmm.Viterbi(obs)
	p2, lp2 := hmm.ViterbiLog(obs)
	if math.IsInf(lp1, 0) || math.Abs(lp1-lp2) > 1e-6*math.Abs(lp2) {
		t.Errorf("got %f; want %f", lp1, lp2)
	}
	if d := pathLogProb(hmm, obs, p1) - pathLogProb(hmm, obs, p2); math.Abs(d) > 1e-6*math.Abs(lp2) {
		t.Errorf("long paths score differently: %f", d)
	}

	_, _, lp := hmm.Forward(obs)
	if math.IsInf(lp, 0) || lp < lp1 {
		t.Errorf("forward %f below viterbi %f", lp, lp1)
	}
}

func TestZeroProbability(t *testing.T) {

	rng := rand.New(rand.NewSource(6))
	hmm, _ := gendat(rng, 3, 3, 0, 0, StateEntry)
	for i := 0; i < hmm.NState; i++ {
		hmm.Emit[0].Set(i, 2, 0)
	}
	obs := []int{0, 1, 2, 0}

	_, _, lp := hmm.Forward(obs)
	if !math.IsInf(lp, -1) {
		t.Errorf("Forward: got %f; want -Inf", lp)
	}

	_, lp = hmm.Viterbi(obs)
	if !math.IsInf(lp, -1) {
		t.Errorf("Viterbi: got %f; want -Inf", lp)
	}

	_, lp = hmm.ViterbiLog(obs)
	if !math.IsInf(lp, -1) {
		t.Errorf("ViterbiLog: got %f; want -Inf", lp)
	}

	_, lp = hmm.Posteriors(obs)
	if !math.IsInf(lp, -1) {
		t.Errorf("Posteriors: got %f; want -Inf", lp)
	}
}

func TestCheck(t *testing.T) {

	rng := rand.New(rand.NewSource(7))
	hmm, _ := gendat(rng, 3, 4, 0, 0, StateEntry)
	if err := hmm.CheckTransitions(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := hmm.CheckEmissions(true, false); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	hmm.Trans.Set(1, 1, hmm.Trans.At(1, 1)+0.1)
	if err := hmm.CheckTransitions(); err == nil {
		t.Errorf("row sum not detected")
	}

	hmm.Emit[0].Set(2, 0, hmm.Emit[0].At(2, 0)+0.5)
	if err := hmm.CheckEmissions(true, false); err == nil {
		t.Errorf("emission sum not detected")
	}
	if err := hmm.CheckEmissions(false, true); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	hmm.Emit[0].Set(0, 0, -0.1)
	if err := hmm.CheckEmissions(false, true); err == nil {
		t.Errorf("negative emission not detected")
	}
}

// Check that the log-likelihood values are non-decreasing over the EM iterations.
func TestLLF(t *testing.T) {

	rng := rand.New(rand.NewSource(8))
	for _, et := range emissionTypes {
		for _, nst := range []int{2, 4} {
			for _, ntm := range []int{10, 30} {
				hmm, seqs := gendat(rng, nst, 5, ntm, 10, et)
				llf := hmm.Fit(seqs, niter)
				for i := 1; i < len(llf); i++ {
					if llf[i] < llf[i-1]-1e-8 {
						t.Errorf("emission %d, iter=%d: %f %f", et, i, llf[i-1], llf[i])
					}
				}
				if err := hmm.CheckTransitions(); err != nil {
					t.Errorf("after fit: %v", err)
				}
			}
		}
	}
}

func intSliceEqual(x, y []int) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
