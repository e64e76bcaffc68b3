package aligner

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/kshedden/hmmalign/hmmlib"
	"github.com/kshedden/hmmalign/jump"
	"github.com/kshedden/hmmalign/lexicon"
	"gonum.org/v1/gonum/mat"
)

// symHelper holds the posteriors of one direction of a pair for symmetric
// counting.
type symHelper struct {
	a *Aligner
	p *pairHMM

	alpha, beta, gamma *mat.Dense
	logprob            float64

	// Probability that target word k is unaligned
	nullPost []float64

	// Probability that no target word aligns to source word i, which is
	// the null probability of i in the other direction
	nullPostRev []float64
}

func (a *Aligner) newSymHelper(src, tgt []string) *symHelper {

	p := a.makeHMM(src, tgt, a.cfg.TrainSmooth, 0)
	h := &symHelper{a: a, p: p}

	var c []float64
	h.alpha, c, h.logprob = p.hmm.Forward(p.obs)
	h.beta = p.hmm.Backward(p.obs, c)
	h.gamma = hmmlib.StatePosteriors(h.alpha, h.beta)

	h.nullPost = make([]float64, len(tgt))
	for k := range tgt {
		g := h.gamma.RawRowView(k + 1)
		for s := p.I + 1; s < len(g); s++ {
			h.nullPost[k] += g[s]
		}
	}

	h.nullPostRev = make([]float64, len(src))
	for i := range src {
		x := 1.0
		for k := range tgt {
			x *= 1 - h.gamma.At(k+1, i+1)
		}
		h.nullPostRev[i] = x
	}

	return h
}

// countExpectations adds the jump and lexical counts of this direction,
// weighted by the posteriors r of the other.
func (h *symHelper) countExpectations(r *symHelper) {

	p := h.p
	I := p.I
	n := p.hmm.NState
	nobs := len(p.obs)
	g, rg := h.gamma, r.gamma
	counts := mat.NewDense(n, n, nil)

	if h.a.cfg.ExactTransitions {
		xi := mat.NewDense(n, n, nil)
		for k := 0; k < nobs; k++ {
			p.hmm.TransitionPosteriors(p.obs, h.alpha, h.beta, k, xi)
			for i := 0; i <= I; i++ {
				ni := jump.Index(jump.State{Pos: i, Origin: jump.NullDuplicate}, I)
				for j := 1; j <= I; j++ {
					x := (xi.At(i, j) + xi.At(ni, j)) * rg.At(i, k) * rg.At(j, k+1)
					counts.Set(i, j, counts.At(i, j)+x)
				}
			}
		}
	} else {
		for i := 0; i <= I; i++ {
			ni := jump.Index(jump.State{Pos: i, Origin: jump.NullDuplicate}, I)
			for j := 1; j <= I; j++ {
				var x float64
				for k := 0; k < nobs; k++ {
					x += (g.At(k, i) + g.At(k, ni)) * g.At(k+1, j) * rg.At(i, k) * rg.At(j, k+1)
				}
				counts.Set(i, j, x)
			}
		}
	}
	h.a.js.CountJumps(counts, p.src, p.tgt, I)

	// Lexical counts
	lex := h.a.lex
	src := p.src[1:]
	for i, s := range src {
		for k, t := range p.tgt {
			lex.Count(s, t, g.At(k+1, i+1)*rg.At(i+1, k+1))
		}
	}
	for k, t := range p.tgt {
		lex.Count(lexicon.NullWord, t, h.nullPost[k]*r.nullPostRev[k])
	}
}

// CountSymmetrized adds the counts of one sentence pair to a and to rev, an
// aligner for the opposite direction, so that each model counts a link in
// proportion to the product of its own posterior and that of the other
// model.  Both aligners must agree on the anchor and on ExactTransitions.
func (a *Aligner) CountSymmetrized(src, tgt []string, rev *Aligner) {

	if a.js.Params().Anchor != rev.js.Params().Anchor || a.cfg.ExactTransitions != rev.cfg.ExactTransitions {
		panic(fmt.Sprintf("aligner: symmetric training with anchor %t/%t, exact transitions %t/%t",
			a.js.Params().Anchor, rev.js.Params().Anchor, a.cfg.ExactTransitions, rev.cfg.ExactTransitions))
	}
	if len(src) == 0 || len(tgt) == 0 {
		return
	}

	if chunks := a.split(src, tgt); chunks != nil {
		for _, c := range chunks {
			a.CountSymmetrized(c.src, c.tgt, rev)
		}
		return
	}

	f := a.newSymHelper(src, tgt)
	r := rev.newSymHelper(tgt, src)
	if !finite(f.logprob) || !finite(r.logprob) {
		glog.Warningf("aligner: log probability %g, reverse %g, skipping pair %q / %q",
			f.logprob, r.logprob, src, tgt)
		return
	}
	a.logprob += f.logprob
	a.ntoks += len(tgt)
	rev.logprob += r.logprob
	rev.ntoks += len(src)

	f.countExpectations(r)
	r.countExpectations(f)
}
