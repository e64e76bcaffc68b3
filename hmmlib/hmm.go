//

package hmmlib

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/golang/glog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// Tolerance used when checking that a distribution sums to 1.
	distTol = 1e-6

	// Viterbi scores are rescaled when they fall below the smallest normal float32.
	minScale = 0x1p-126
)

// EmissionType indicates where symbols are emitted.
type EmissionType uint8

// Arc emission attaches a symbol distribution to every transition.  StateEntry
// and StateExit attach one to every state, emitting on entry or on exit.
const (
	Arc EmissionType = iota
	StateEntry
	StateExit
)

// HMM is a discrete hidden Markov model with a fixed number of states and
// symbols.  The caller fills Init, Trans and Emit before running any of the
// algorithms.
type HMM struct {

	// Number of states
	NState int

	// Number of output symbols
	NSymbol int

	// Where symbols are emitted
	Emission EmissionType

	// The initial probability distribution
	Init []float64

	// The transition probability matrix, NState x NState
	Trans *mat.Dense

	// The emission probabilities.  For Arc emission Emit[i] holds the
	// NState x NSymbol matrix of symbol probabilities on transitions out
	// of i.  Otherwise Emit has a single NState x NSymbol matrix.
	Emit []*mat.Dense
}

// New returns an HMM with the given size.  The initial distribution puts all
// mass on state 0, everything else is zero.
func New(nstate, nsymbol int, emission EmissionType) *HMM {

	if nstate <= 0 || nsymbol <= 0 {
		panic(fmt.Sprintf("hmmlib: bad size %d states, %d symbols", nstate, nsymbol))
	}

	hmm := &HMM{
		NState:   nstate,
		NSymbol:  nsymbol,
		Emission: emission,
		Init:     make([]float64, nstate),
		Trans:    mat.NewDense(nstate, nstate, nil),
	}
	hmm.Init[0] = 1

	nemit := 1
	if emission == Arc {
		nemit = nstate
	}
	hmm.Emit = make([]*mat.Dense, nemit)
	for i := range hmm.Emit {
		hmm.Emit[i] = mat.NewDense(nstate, nsymbol, nil)
	}

	return hmm
}

// B returns the probability of emitting symbol k on the transition from i to j.
func (hmm *HMM) B(i, j, k int) float64 {
	switch hmm.Emission {
	case Arc:
		return hmm.Emit[i].At(j, k)
	case StateEntry:
		return hmm.Emit[0].At(j, k)
	default:
		return hmm.Emit[0].At(i, k)
	}
}

// weight is A(i,j)·B(i,j,o).
func (hmm *HMM) weight(i, j, o int) float64 {
	a := hmm.Trans.At(i, j)
	if a == 0 {
		return 0
	}
	return a * hmm.B(i, j, o)
}

// CheckTransitions returns an error describing the first violation of the
// requirement that Init and every row of Trans are distributions.
func (hmm *HMM) CheckTransitions() error {

	if err := checkDist(hmm.Init, true, false); err != nil {
		return fmt.Errorf("initial distribution: %w", err)
	}

	for i := 0; i < hmm.NState; i++ {
		if err := checkDist(hmm.Trans.RawRowView(i), true, false); err != nil {
			return fmt.Errorf("transitions from state %d: %w", i, err)
		}
	}

	return nil
}

// CheckEmissions returns an error describing the first bad emission row.  If
// complete is false the rows only need to sum to at most 1, and if mayExceed1
// is also true only the signs are checked.
func (hmm *HMM) CheckEmissions(complete, mayExceed1 bool) error {

	for e, b := range hmm.Emit {
		for i := 0; i < hmm.NState; i++ {
			if err := checkDist(b.RawRowView(i), complete, mayExceed1); err != nil {
				if hmm.Emission == Arc {
					return fmt.Errorf("emissions on arc %d->%d: %w", e, i, err)
				}
				return fmt.Errorf("emissions from state %d: %w", i, err)
			}
		}
	}

	return nil
}

func checkDist(x []float64, complete, mayExceed1 bool) error {

	for k, v := range x {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("entry %d is %g", k, v)
		}
	}

	s := floats.Sum(x)
	switch {
	case complete && math.Abs(s-1) > distTol:
		return fmt.Errorf("sums to %g", s)
	case !complete && !mayExceed1 && s > 1+distTol:
		return fmt.Errorf("sums to %g > 1", s)
	}

	return nil
}

// Fit runs Baum-Welch reestimation over the given sequences.  It returns the
// total log-likelihood before each update.  All parameters are reestimated, so
// Fit is only useful for models without tied parameters.
func (hmm *HMM) Fit(seqs [][]int, maxiter int) []float64 {

	llfs := make([]float64, 0, maxiter)
	var llf float64

	for i := 0; i < maxiter; i++ {
		total := hmm.NewCounts()
		var llfnew float64
		for _, obs := range seqs {
			cts, lp := hmm.BWForwardBackwardCount(obs)
			if math.IsInf(lp, -1) {
				continue
			}
			total.Add(cts)
			llfnew += lp
		}

		if i > 0 {
			if llfnew < llf-1e-10 {
				glog.Warningf("log-likelihood decreased by %f", llf-llfnew)
			} else if llfnew-llf < 1e-8 {
				glog.V(1).Infof("converged at iteration %d", i)
				llfs = append(llfs, llfnew)
				break
			}
		}

		llf = llfnew
		llfs = append(llfs, llf)
		glog.V(1).Infof("llf=%f", llf)

		hmm.BWReestimate(total)
	}

	return llfs
}

// WriteSummary writes the model parameters in text form.
func (hmm *HMM) WriteSummary(w io.Writer, title string) {

	fmt.Fprintf(w, "%s\n", title)

	fmt.Fprintf(w, "Initial states distribution:\n")
	writeMatrix(w, hmm.Init, hmm.NState, 1)
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "Transition matrix:\n")
	writeMatrix(w, hmm.Trans.RawMatrix().Data, hmm.NState, hmm.NState)
	fmt.Fprintf(w, "\n")

	for e, b := range hmm.Emit {
		if hmm.Emission == Arc {
			fmt.Fprintf(w, "Emissions from state %d:\n", e)
		} else {
			fmt.Fprintf(w, "Emissions:\n")
		}
		writeMatrix(w, b.RawMatrix().Data, hmm.NState, hmm.NSymbol)
		fmt.Fprintf(w, "\n")
	}
}

// writeMatrix writes a row-major matrix with row labels.
func writeMatrix(w io.Writer, x []float64, nrow, ncol int) {

	var buf bytes.Buffer
	for i := 0; i < nrow; i++ {
		buf.Reset()
		fmt.Fprintf(&buf, "%-6d", i)
		for j := 0; j < ncol; j++ {
			fmt.Fprintf(&buf, "%12.4f", x[i*ncol+j])
		}
		buf.WriteString("\n")
		_, _ = w.Write(buf.Bytes())
	}
}

// normalize the values in x to have a sum of 1, or set them all to z if
// the sum is zero.
func normalizeSum(x []float64, z float64) {
	scale := floats.Sum(x)
	if scale <= 0 {
		for j := range x {
			x[j] = z
		}
		return
	}
	floats.Scale(1/scale, x)
}

// makeIntArray makes a collection of r slices
// of length c, packed contiguously.
func makeIntArray(r, c int) [][]int {

	bka := make([]int, r*c)
	x := make([][]int, r)
	ii := 0
	for j := 0; j < r; j++ {
		x[j] = bka[ii : ii+c]
		ii += c
	}

	return x
}
