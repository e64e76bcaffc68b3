package aligner

import (
	"github.com/golang/glog"
	"github.com/kshedden/hmmalign/jump"
	"github.com/kshedden/hmmalign/lexicon"
)

// InitCounts starts a training pass.
func (a *Aligner) InitCounts() {
	a.lex.InitCounts()
	a.js.InitCounts(a.lex)
	a.logprob = 0
	a.ntoks = 0
}

// Count adds the expected jump and lexical counts of one sentence pair and
// returns its log probability.  A pair with probability zero is skipped.
func (a *Aligner) Count(src, tgt []string) float64 {

	if len(src) == 0 || len(tgt) == 0 {
		return 0
	}

	if chunks := a.split(src, tgt); chunks != nil {
		var lp float64
		for _, c := range chunks {
			lp += a.Count(c.src, c.tgt)
		}
		return lp
	}

	p := a.makeHMM(src, tgt, a.cfg.TrainSmooth, 0)
	cts, lp := p.hmm.BWForwardBackwardCount(p.obs)
	if !finite(lp) {
		glog.Warningf("aligner: log probability %g, skipping pair %q / %q", lp, src, tgt)
		return lp
	}
	a.logprob += lp
	a.ntoks += len(tgt)

	a.js.CountJumps(cts.Trans, p.src, tgt, p.I)

	// The anchor state and symbol have no lexical counts.
	e := cts.Emit[0]
	for i := 1; i <= len(src); i++ {
		for k, t := range tgt {
			a.lex.Count(p.src[i], t, e.At(i, k))
		}
	}
	for k, t := range tgt {
		var x float64
		for i := 0; i <= p.I; i++ {
			x += e.At(jump.Index(jump.State{Pos: i, Origin: jump.NullDuplicate}, p.I), k)
		}
		a.lex.Count(lexicon.NullWord, t, x)
	}

	return lp
}

// Estimate ends a training pass by re-estimating both models.  Lexical pairs
// whose probability falls below prune, or nullPrune for the null word, are
// removed.  It returns the log probability and number of target words of the
// pairs counted.
func (a *Aligner) Estimate(prune, nullPrune float64) (float64, int) {
	a.js.Estimate()
	a.lex.Estimate(prune, nullPrune)
	return a.logprob, a.ntoks
}
