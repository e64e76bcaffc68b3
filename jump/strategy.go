package jump

import (
	"fmt"
	"sort"

	"github.com/kshedden/hmmalign/hmmlib"
	"gonum.org/v1/gonum/mat"
)

// Kind identifies the variant of a jump model.
type Kind uint8

// The jump model variants.
const (
	// Simple has one distribution over signed jump distances.
	Simple Kind = iota

	// EndDist adds distributions for jumps out of the start state and
	// into the anchored end.
	EndDist

	// WordClass keeps one distribution per class of the source word a
	// jump starts from, and a global one for unclassed words.
	WordClass

	// MAP blends per-word distributions with a prior model of one of the
	// other kinds.
	MAP
)

func (k Kind) String() string {
	switch k {
	case Simple:
		return "simple"
	case EndDist:
		return "end-dist"
	case WordClass:
		return "word-class"
	case MAP:
		return "map"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

type phase uint8

const (
	idle phase = iota
	counting
)

// Vocabulary enumerates the source words of a lexical model.
type Vocabulary interface {
	SourceWords() []string
}

// Strategy is a jump model.  Its tables depend on its Kind.  A training pass
// calls InitCounts, then CountJumps for every sentence pair, then Estimate;
// calling the counting methods in any other order panics.
//
// Source token slices passed to a Strategy start with the null word, so that
// src[i] is the word at source position i.
type Strategy struct {
	p Params

	kind  Kind
	phase phase

	// Simple and EndDist
	simple *simpleModel

	// WordClass
	classes *classModel

	// MAP
	lex *mapModel
}

// New returns an untrained jump model.  Without counts, every model gives
// uniform jump probabilities.
func New(cfg Config) (*Strategy, error) {

	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if cfg.MAPTau < 0 || cfg.MAPMinCount < 0 {
		return nil, fmt.Errorf("%w: MAP tau %g and min count %g must be non-negative",
			ErrBadParams, cfg.MAPTau, cfg.MAPMinCount)
	}

	var s *Strategy
	switch {
	case cfg.WordClasses != nil:
		s = &Strategy{p: cfg.Params, kind: WordClass, classes: newClassModel(cfg.WordClasses)}
	case cfg.EndDist:
		s = &Strategy{p: cfg.Params, kind: EndDist, simple: &simpleModel{}}
	default:
		s = &Strategy{p: cfg.Params, kind: Simple, simple: &simpleModel{}}
	}

	if cfg.MAPTau > 0 {
		s = &Strategy{
			p:    cfg.Params,
			kind: MAP,
			lex: &mapModel{
				tau:      cfg.MAPTau,
				minCount: cfg.MAPMinCount,
				voc:      newVocab(nil),
				prior:    s,
			},
		}
	}

	return s, nil
}

// Kind returns the variant of s.
func (s *Strategy) Kind() Kind {
	return s.kind
}

// Params returns the hyper-parameters of s.
func (s *Strategy) Params() Params {
	return s.p
}

// SetParams replaces the hyper-parameters of s, and of its prior for a MAP
// model.  EndDist cannot change, since the tables depend on it.
func (s *Strategy) SetParams(p Params) error {

	if err := p.Validate(); err != nil {
		return err
	}
	if p.EndDist != s.p.EndDist {
		return fmt.Errorf("%w: end_dist cannot change from %t to %t", ErrBadParams, s.p.EndDist, p.EndDist)
	}

	s.p = p
	if s.kind == MAP {
		s.lex.prior.p = p
	}

	return nil
}

// Prior returns the model blended into a MAP model, or nil for other kinds.
// The prior belongs to s and must not be used elsewhere.
func (s *Strategy) Prior() *Strategy {
	if s.kind != MAP {
		return nil
	}
	return s.lex.prior
}

// Clone returns a deep copy of s.
func (s *Strategy) Clone() *Strategy {

	c := &Strategy{p: s.p, kind: s.kind, phase: s.phase}
	switch s.kind {
	case Simple, EndDist:
		c.simple = s.simple.clone()
	case WordClass:
		c.classes = s.classes.clone()
	case MAP:
		c.lex = s.lex.clone()
	}

	return c
}

// JumpP returns the probability, before smoothing, of a jump from iPrime to i
// with I source positions.  WordClass models answer from their global
// distribution and MAP models from their prior.
func (s *Strategy) JumpP(iPrime, i, I int) float64 {

	if i < 0 || i > I || iPrime < 0 || iPrime > I {
		panic(fmt.Sprintf("jump: position out of range: %d -> %d, I=%d", iPrime, i, I))
	}

	switch s.kind {
	case Simple:
		return s.simple.prob.jump.jumpP(iPrime, i, I, s.p.MaxJump)
	case EndDist:
		return s.endJumpP(&s.simple.prob, iPrime, i, I)
	case WordClass:
		return s.classes.global.jump.jumpP(iPrime, i, I, s.p.MaxJump)
	default:
		return s.lex.prior.JumpP(iPrime, i, I)
	}
}

// InitCounts starts a training pass by clearing all counts.  A MAP model with
// an empty vocabulary takes it from v.
func (s *Strategy) InitCounts(v Vocabulary) {

	switch s.kind {
	case Simple, EndDist:
		s.simple.count.clear()
	case WordClass:
		s.classes.initCounts()
	case MAP:
		s.lex.prior.InitCounts(v)
		s.lex.initCounts(v)
	}
	s.phase = counting
}

func (s *Strategy) mustCount(op string) {
	if s.phase != counting {
		panic(fmt.Sprintf("jump: %s called outside a counting pass", op))
	}
}

// CountJumps adds the expected transition counts a of one sentence pair to
// the jump counts.  a is indexed by HMM state, see Index.
func (s *Strategy) CountJumps(a *mat.Dense, src, tgt []string, I int) {

	s.mustCount("CountJumps")
	s.checkLength(src, I)
	t := FoldCounts(a, I)
	s.countJumps(t, src)
}

func (s *Strategy) countJumps(t *Transitions, src []string) {

	switch s.kind {
	case Simple, EndDist:
		s.countSimple(t)
	case WordClass:
		s.countClasses(t, src)
	case MAP:
		s.lex.prior.countJumps(t, src)
		s.countMAP(t, src)
	}
}

// Estimate ends a training pass by turning the counts into the new jump
// distributions.  Smoothing is applied later, when the distributions are used
// for a sentence of known length.
func (s *Strategy) Estimate() {

	s.mustCount("Estimate")
	switch s.kind {
	case Simple, EndDist:
		s.simple.prob = s.simple.count.clone()
	case WordClass:
		s.classes.estimate()
	case MAP:
		s.lex.prior.Estimate()
		s.lex.estimate()
	}
	s.phase = idle
}

// Fill returns the transition table for a sentence pair with source tokens
// src (null word first) and I source positions.
func (s *Strategy) Fill(src []string, I int) *Transitions {

	s.checkLength(src, I)
	t := NewTransitions(I)
	s.fill(t, src)

	return t
}

func (s *Strategy) fill(t *Transitions, src []string) {

	switch s.kind {
	case Simple:
		s.fillSimple(t)
	case EndDist:
		s.fillEndDist(t)
	case WordClass:
		s.fillClasses(t, src)
	case MAP:
		s.lex.prior.fill(t, src)
		s.fillMAP(t, src)
	}
}

// FillJumpProbs sets the transition probabilities of h, an HMM built for a
// sentence pair with source tokens src (null word first) and I source
// positions.
func (s *Strategy) FillJumpProbs(h *hmmlib.HMM, src, tgt []string, I int) {
	s.Fill(src, I).Apply(h)
}

func (s *Strategy) checkLength(src []string, I int) {
	if len(src)-1 != s.p.maxNormal(I) {
		panic(fmt.Sprintf("jump: %d source tokens for I=%d, anchor=%t", len(src), I, s.p.Anchor))
	}
}

// SameCounts reports whether s and o have the same kind and counts.
func (s *Strategy) SameCounts(o *Strategy) bool {

	if s.kind != o.kind {
		return false
	}

	switch s.kind {
	case Simple, EndDist:
		return s.simple.count.equal(&o.simple.count)
	case WordClass:
		return s.classes.sameCounts(o.classes)
	default:
		return s.lex.sameCounts(o.lex) && s.lex.prior.SameCounts(o.lex.prior)
	}
}

// SameProbs reports whether s and o have the same kind, parameters and jump
// distributions.
func (s *Strategy) SameProbs(o *Strategy) bool {

	if s.kind != o.kind || s.p != o.p {
		return false
	}

	switch s.kind {
	case Simple, EndDist:
		return s.simple.prob.equal(&o.simple.prob)
	case WordClass:
		m, n := s.classes, o.classes
		return m.wc.equal(n.wc) && m.global.equal(n.global) && m.init.equal(n.init) &&
			distsEqual(m.class, n.class)
	default:
		m, n := s.lex, o.lex
		return m.tau == n.tau && m.minCount == n.minCount && m.voc.equal(n.voc) &&
			distsEqual(m.word, n.word) && m.prior.SameProbs(n.prior)
	}
}

// vocab is an ordered word list with an index.
type vocab struct {
	words []string
	index map[string]int
}

func newVocab(words []string) *vocab {
	v := &vocab{index: make(map[string]int, len(words))}
	for _, w := range words {
		v.add(w)
	}
	return v
}

func (v *vocab) add(w string) int {
	if k, ok := v.index[w]; ok {
		return k
	}
	v.index[w] = len(v.words)
	v.words = append(v.words, w)
	return len(v.words) - 1
}

func (v *vocab) lookup(w string) (int, bool) {
	k, ok := v.index[w]
	return k, ok
}

func (v *vocab) size() int {
	return len(v.words)
}

func (v *vocab) equal(o *vocab) bool {
	if len(v.words) != len(o.words) {
		return false
	}
	for i, w := range v.words {
		if o.words[i] != w {
			return false
		}
	}
	return true
}

func sortedWords(v Vocabulary) []string {
	words := append([]string(nil), v.SourceWords()...)
	sort.Strings(words)
	return words
}
