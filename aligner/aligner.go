// Package aligner implements HMM word alignment.  For each sentence pair an
// HMM is built whose hidden states are source positions, either aligned to
// the current target word or unaligned, and whose observations are the target
// words.  Transition probabilities come from a jump model and emission
// probabilities from a translation table.
package aligner

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/glog"
	"github.com/kshedden/hmmalign/jump"
	"github.com/kshedden/hmmalign/lexicon"
)

// Null marks a target word that is aligned to no source word.
const Null = -1

// ErrBadConfig is returned, wrapped with details, for an unusable Config.
var ErrBadConfig = errors.New("aligner: bad configuration")

// Lexicon is the translation table used for emission probabilities.
// Source word lists never contain lexicon.NullWord, but the table is asked
// for p(t|NULL).
type Lexicon interface {
	jump.Vocabulary

	// Prob returns p(tgt|src).
	Prob(src, tgt string) float64

	// InitCounts, Count and Estimate run one EM pass.
	InitCounts()
	Count(src, tgt string, x float64)
	Estimate(prune, nullPrune float64)

	Save(path string, binary bool) error
	WriteCountsFile(path string) error
	ReadAddCountsFile(path string) error
}

// Config holds the settings of an Aligner.
type Config struct {

	// Emission probability used for unknown word pairs when aligning and
	// scoring
	Smooth float64

	// Emission probability used for unknown pairs of identical words when
	// aligning, 0 to use Smooth
	EqSmooth float64

	// Emission probability used for unknown word pairs when counting.  With
	// the default of 0 a target word no source word can produce makes its
	// pair unusable for training.
	TrainSmooth float64

	// Longer sentence pairs are split into even chunks processed
	// separately; 0 disables splitting
	MaxLen int

	// Symmetric training variant: if true, jump counts are pooled from the
	// exact transition posteriors of each direction, weighted by the
	// posteriors of the other.  This costs one more pass over every target
	// position per pair.  If false they come from products of adjacent
	// state posteriors.  Lexical counts are the same either way.
	ExactTransitions bool
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		Smooth:   1e-10,
		EqSmooth: 0.1,
		MaxLen:   200,
	}
}

// Validate checks that the settings are usable.
func (c Config) Validate() error {
	switch {
	case c.Smooth < 0 || c.Smooth > 1:
		return fmt.Errorf("%w: smooth must be in [0,1], got %g", ErrBadConfig, c.Smooth)
	case c.EqSmooth < 0 || c.EqSmooth > 1:
		return fmt.Errorf("%w: eq_smooth must be in [0,1], got %g", ErrBadConfig, c.EqSmooth)
	case c.TrainSmooth < 0 || c.TrainSmooth > 1:
		return fmt.Errorf("%w: train_smooth must be in [0,1], got %g", ErrBadConfig, c.TrainSmooth)
	case c.MaxLen < 0:
		return fmt.Errorf("%w: max_len must be non-negative, got %d", ErrBadConfig, c.MaxLen)
	}
	return nil
}

// Aligner is an HMM word alignment model for one direction.  It owns its
// jump model; the lexicon is only used.  An Aligner is not safe for
// concurrent use.
type Aligner struct {
	lex Lexicon
	js  *jump.Strategy
	cfg Config

	// Log probability and number of target words counted in the current
	// training pass
	logprob float64
	ntoks   int
}

// New returns an aligner using the given models.
func New(lex Lexicon, js *jump.Strategy, cfg Config) (*Aligner, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if lex == nil || js == nil {
		return nil, fmt.Errorf("%w: missing lexicon or jump model", ErrBadConfig)
	}

	return &Aligner{lex: lex, js: js, cfg: cfg}, nil
}

// Jump returns the jump model of a.
func (a *Aligner) Jump() *jump.Strategy {
	return a.js
}

// Lexicon returns the translation table of a.
func (a *Aligner) Lexicon() Lexicon {
	return a.lex
}

// Config returns the settings of a.
func (a *Aligner) Config() Config {
	return a.cfg
}

// Align returns the Viterbi alignment of tgt to src: element j is the source
// position of tgt[j], or Null.
func (a *Aligner) Align(src, tgt []string) []int {

	al := make([]int, len(tgt))
	if len(tgt) == 0 {
		return al
	}
	if len(src) == 0 {
		for j := range al {
			al[j] = Null
		}
		return al
	}

	if chunks := a.split(src, tgt); chunks != nil {
		al = al[:0]
		var off int
		for _, c := range chunks {
			for _, i := range a.Align(c.src, c.tgt) {
				if i != Null {
					i += off
				}
				al = append(al, i)
			}
			off += len(c.src)
		}
		return al
	}

	p := a.makeHMM(src, tgt, a.cfg.Smooth, a.cfg.EqSmooth)
	path, _ := p.hmm.Viterbi(p.obs)
	for j := range tgt {
		k := path[j+1]
		if k == 0 {
			glog.Warningf("aligner: no alignment for %q in %q / %q", tgt[j], src, tgt)
			al[j] = Null
			continue
		}
		s := jump.StateOf(k, p.I)
		if s.Origin == jump.NullDuplicate || s.Pos > len(src) {
			al[j] = Null
		} else {
			al[j] = s.Pos - 1
		}
	}

	return al
}

// LinkPosteriors returns the posterior probabilities of the links between
// tgt and src, and the log probability of tgt.  Row j has len(src)+1
// entries: the probability that tgt[j] is unaligned, then the probability of
// each source position.
func (a *Aligner) LinkPosteriors(src, tgt []string) ([][]float64, float64) {

	if len(tgt) == 0 {
		return nil, 0
	}
	post := make([][]float64, len(tgt))
	if len(src) == 0 {
		for j := range post {
			post[j] = []float64{1}
		}
		return post, float64(len(tgt)) * math.Log(a.cfg.Smooth)
	}

	if chunks := a.split(src, tgt); chunks != nil {
		var logprob float64
		var srcOff, tgtOff int
		for _, c := range chunks {
			cp, lp := a.LinkPosteriors(c.src, c.tgt)
			logprob += lp
			for j, r := range cp {
				row := make([]float64, len(src)+1)
				row[0] = r[0]
				copy(row[srcOff+1:], r[1:])
				post[tgtOff+j] = row
			}
			srcOff += len(c.src)
			tgtOff += len(c.tgt)
		}
		return post, logprob
	}

	p := a.makeHMM(src, tgt, a.cfg.Smooth, a.cfg.EqSmooth)
	gamma, logprob := p.hmm.Posteriors(p.obs)
	for j := range tgt {
		g := gamma.RawRowView(j + 1)
		row := make([]float64, len(src)+1)
		var sum float64
		for i := 1; i <= len(src); i++ {
			row[i] = g[i]
			sum += g[i]
		}
		for k := p.I + 1; k < len(g); k++ {
			row[0] += g[k]
		}
		if math.Abs(1-sum-row[0]) > 1e-4 {
			glog.Warningf("aligner: link posteriors of %q sum to %g in %q / %q", tgt[j], sum+row[0], src, tgt)
		}
		post[j] = row
	}

	return post, logprob
}

// LogPr returns the log probability of tgt given src.
func (a *Aligner) LogPr(src, tgt []string) float64 {
	return a.score(src, tgt, func(p *pairHMM) float64 {
		_, _, lp := p.hmm.Forward(p.obs)
		return lp
	})
}

// ViterbiLogPr returns the log probability of the Viterbi alignment of tgt
// to src together with tgt.
func (a *Aligner) ViterbiLogPr(src, tgt []string) float64 {
	return a.score(src, tgt, func(p *pairHMM) float64 {
		_, lp := p.hmm.Viterbi(p.obs)
		return lp
	})
}

func (a *Aligner) score(src, tgt []string, f func(*pairHMM) float64) float64 {

	switch {
	case len(src) == 0 && len(tgt) == 0:
		return 0
	case len(src) == 0 || len(tgt) == 0:
		return math.Log(a.cfg.Smooth)
	}

	if chunks := a.split(src, tgt); chunks != nil {
		var lp float64
		for _, c := range chunks {
			lp += a.score(c.src, c.tgt, f)
		}
		return lp
	}

	return f(a.makeHMM(src, tgt, a.cfg.Smooth, 0))
}

// withNull returns src with the null word in front.
func withNull(src []string) []string {
	return append([]string{lexicon.NullWord}, src...)
}

func finite(x float64) bool {
	return !math.IsInf(x, 0) && !math.IsNaN(x)
}
