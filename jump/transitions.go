package jump

import (
	"fmt"

	"github.com/kshedden/hmmalign/hmmlib"
	"gonum.org/v1/gonum/mat"
)

// Origin tells whether the current target word aligns to a source position or
// is unaligned, having last been aligned to it.
type Origin uint8

// Observed and NullDuplicate are the two HMM states of one source position.
const (
	Observed Origin = iota
	NullDuplicate
)

// State is one HMM state of a sentence pair.  Position 0 is the start.
type State struct {
	Pos    int
	Origin Origin
}

// NumStates returns the number of HMM states for I source positions.
func NumStates(I int) int {
	return 2 * (I + 1)
}

// Index returns the HMM state number of s for I source positions.
func Index(s State, I int) int {
	if s.Origin == NullDuplicate {
		return s.Pos + I + 1
	}
	return s.Pos
}

// StateOf is the inverse of Index.
func StateOf(k, I int) State {
	if k > I {
		return State{Pos: k - I - 1, Origin: NullDuplicate}
	}
	return State{Pos: k}
}

// Transitions is the transition table of the HMM for one sentence pair,
// indexed by the last aligned position.  The Observed and NullDuplicate states
// of a position share every outgoing probability.  Apart from its own null
// duplicate, a position can only move to Observed states.
type Transitions struct {
	I    int
	jump *mat.Dense
	stay []float64
}

// NewTransitions returns an all-zero table for I source positions.
func NewTransitions(I int) *Transitions {
	return &Transitions{
		I:    I,
		jump: mat.NewDense(I+1, I+1, nil),
		stay: make([]float64, I+1),
	}
}

// At returns the probability of moving from s to the Observed state of
// position to.
func (t *Transitions) At(s State, to int) float64 {
	return t.jump.At(s.Pos, to)
}

// Set sets the probability of moving from either state of position from to
// the Observed state of position to.
func (t *Transitions) Set(from, to int, p float64) {
	t.jump.Set(from, to, p)
}

// Stay returns the probability of moving from s to the null duplicate of s.Pos.
func (t *Transitions) Stay(s State) float64 {
	return t.stay[s.Pos]
}

// SetStay sets the probability of moving from either state of position from
// to its null duplicate.
func (t *Transitions) SetStay(from int, p float64) {
	t.stay[from] = p
}

// Apply writes the table into the transition matrix of h, which must have
// NumStates(t.I) states.
func (t *Transitions) Apply(h *hmmlib.HMM) {

	if h.NState != NumStates(t.I) {
		panic(fmt.Sprintf("jump: HMM has %d states; want %d", h.NState, NumStates(t.I)))
	}

	h.Trans.Zero()
	for i := 0; i <= t.I; i++ {
		row := t.jump.RawRowView(i)
		null := Index(State{Pos: i, Origin: NullDuplicate}, t.I)
		for _, o := range []Origin{Observed, NullDuplicate} {
			k := Index(State{Pos: i, Origin: o}, t.I)
			copy(h.Trans.RawRowView(k), row)
			h.Trans.Set(k, null, t.stay[i])
		}
	}
}

// FoldCounts folds an NumStates(I) x NumStates(I) matrix of expected
// transition counts into a table, adding up the counts out of the two states
// of each position.  Counts into other null states are dropped.
func FoldCounts(a *mat.Dense, I int) *Transitions {

	t := NewTransitions(I)
	for i := 0; i <= I; i++ {
		row := t.jump.RawRowView(i)
		null := Index(State{Pos: i, Origin: NullDuplicate}, I)
		for _, o := range []Origin{Observed, NullDuplicate} {
			k := Index(State{Pos: i, Origin: o}, I)
			src := a.RawRowView(k)
			for j := range row {
				row[j] += src[j]
			}
			t.stay[i] += src[null]
		}
	}

	return t
}
