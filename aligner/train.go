package aligner

import (
	"fmt"
	"io"
	"math"

	"github.com/golang/glog"
	progressbar "github.com/schollz/progressbar/v2"
)

// Pair is a sentence pair of a training corpus.
type Pair struct {
	Src, Tgt []string
}

// TrainConfig controls the training drivers.
type TrainConfig struct {

	// Number of EM iterations
	Iterations int

	// Pruning thresholds passed to Estimate
	Prune, NullPrune float64

	// If not nil a progress bar is drawn here during each iteration
	Progress io.Writer
}

// DefaultTrainConfig returns the default training settings.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Iterations: 5,
		Prune:      1e-10,
		NullPrune:  1e-10,
	}
}

type progress struct {
	bar *progressbar.ProgressBar
	w   io.Writer
}

func newProgress(w io.Writer, n int, desc string) *progress {
	if w == nil {
		return &progress{}
	}
	fmt.Fprintf(w, "%s\n", desc)
	return &progress{bar: progressbar.NewOptions(n, progressbar.OptionSetWriter(w)), w: w}
}

func (p *progress) add() {
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}

func (p *progress) done() {
	if p.w != nil {
		fmt.Fprintf(p.w, "\n")
	}
}

// logIteration logs the result of an iteration and returns the log
// probability per target word.
func logIteration(name string, it int, logprob float64, ntoks int) float64 {

	if ntoks == 0 {
		glog.Warningf("aligner: %s iteration %d counted no pairs", name, it)
		return math.Inf(-1)
	}
	lp := logprob / float64(ntoks)
	glog.V(1).Infof("aligner: %s iteration %d: log prob %g over %d words, perplexity %g",
		name, it, logprob, ntoks, math.Exp(-lp))

	return lp
}

// Train runs cfg.Iterations EM iterations of a over pairs.  It returns the
// log probability per target word of each iteration.
func Train(a *Aligner, pairs []Pair, cfg TrainConfig) []float64 {

	var lps []float64
	for it := 1; it <= cfg.Iterations; it++ {
		a.InitCounts()
		bar := newProgress(cfg.Progress, len(pairs), fmt.Sprintf("iteration %d", it))
		for _, p := range pairs {
			a.Count(p.Src, p.Tgt)
			bar.add()
		}
		bar.done()

		logprob, ntoks := a.Estimate(cfg.Prune, cfg.NullPrune)
		lps = append(lps, logIteration("", it, logprob, ntoks))
	}

	return lps
}

// TrainSymmetric trains f and r, aligners for opposite directions, jointly:
// each pair is given to f in its source to target order.  It returns the
// log probabilities per target word of each iteration for both models.
func TrainSymmetric(f, r *Aligner, pairs []Pair, cfg TrainConfig) ([]float64, []float64) {

	var flps, rlps []float64
	for it := 1; it <= cfg.Iterations; it++ {
		f.InitCounts()
		r.InitCounts()
		bar := newProgress(cfg.Progress, len(pairs), fmt.Sprintf("symmetric iteration %d", it))
		for _, p := range pairs {
			f.CountSymmetrized(p.Src, p.Tgt, r)
			bar.add()
		}
		bar.done()

		logprob, ntoks := f.Estimate(cfg.Prune, cfg.NullPrune)
		flps = append(flps, logIteration("forward", it, logprob, ntoks))
		logprob, ntoks = r.Estimate(cfg.Prune, cfg.NullPrune)
		rlps = append(rlps, logIteration("reverse", it, logprob, ntoks))
	}

	return flps, rlps
}
