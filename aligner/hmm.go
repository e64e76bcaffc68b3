package aligner

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/golang/glog"
	"github.com/kshedden/hmmalign/hmmlib"
	"github.com/kshedden/hmmalign/jump"
	"github.com/kshedden/hmmalign/lexicon"
)

// pairHMM is the HMM of one sentence pair.
type pairHMM struct {
	hmm *hmmlib.HMM

	// Source words with the null word first
	src []string

	tgt []string

	// Number of source positions, including the anchor
	I int

	// The observations: symbol k is tgt[k], or the anchor symbol
	obs []int
}

// makeHMM builds the HMM of a sentence pair.  Zero emission probabilities
// are replaced by smooth, or by eqSmooth (if not 0) when the two words are
// identical.  The null states use p(t|NULL).
//
// With an anchor, one more source position and one more observation are
// added; the anchor state emits only the anchor symbol, which no other state
// emits.
func (a *Aligner) makeHMM(src, tgt []string, smooth, eqSmooth float64) *pairHMM {

	if len(src) == 0 || len(tgt) == 0 {
		panic("aligner: empty sentence")
	}
	if n := len(src) * len(tgt); n > 300*300 {
		glog.Warningf("aligner: long sentence pair (%d and %d words) may take a long time", len(src), len(tgt))
	}

	p := &pairHMM{src: withNull(src), tgt: tgt, I: len(src)}
	J := len(tgt)
	anchor := a.js.Params().Anchor
	if anchor {
		p.I++
		J++
	}
	I := p.I

	h := hmmlib.New(jump.NumStates(I), J, hmmlib.StateEntry)
	p.hmm = h

	a.js.FillJumpProbs(h, p.src, tgt, I)
	if err := h.CheckTransitions(); err != nil {
		a.badHMM(p, err)
	}

	// State 0 is never entered
	e := h.Emit[0]
	e.Set(0, 0, 1)

	for i := 1; i <= I; i++ {
		row := e.RawRowView(i)
		if anchor && i == I {
			row[J-1] = 1
			continue
		}
		s := p.src[i]
		for k, t := range tgt {
			b := a.lex.Prob(s, t)
			if b == 0 {
				if eqSmooth != 0 && s == t {
					b = eqSmooth
				} else {
					b = smooth
				}
			}
			row[k] = b
		}
	}

	null := make([]float64, J)
	for k, t := range tgt {
		if null[k] = a.lex.Prob(lexicon.NullWord, t); null[k] == 0 {
			null[k] = smooth
		}
	}
	for i := 0; i <= I; i++ {
		if anchor && i == I {
			continue
		}
		copy(e.RawRowView(jump.Index(jump.State{Pos: i, Origin: jump.NullDuplicate}, I)), null)
	}

	if err := h.CheckEmissions(false, true); err != nil {
		a.badHMM(p, err)
	}

	if glog.V(2) {
		glog.Info(p.dump())
	}

	p.obs = make([]int, J)
	for k := range p.obs {
		p.obs[k] = k
	}

	return p
}

func (p *pairHMM) dump() string {
	var buf bytes.Buffer
	title := fmt.Sprintf("hidden: %s\nobserved: %s", strings.Join(p.src, " "), strings.Join(p.tgt, " "))
	p.hmm.WriteSummary(&buf, title)
	return buf.String()
}

func (a *Aligner) badHMM(p *pairHMM, err error) {
	glog.Error(p.dump())
	panic(fmt.Sprintf("aligner: bad HMM for %q / %q: %v", p.src, p.tgt, err))
}
