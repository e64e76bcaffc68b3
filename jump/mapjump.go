package jump

import (
	"github.com/golang/glog"
)

// mapModel holds the per-word jump distributions of a MAP model.
type mapModel struct {
	tau      float64
	minCount float64

	voc             *vocab
	word, wordCount []dist

	// Exclusively owned; never a MAP model itself
	prior *Strategy
}

func (m *mapModel) clone() *mapModel {
	return &mapModel{
		tau:       m.tau,
		minCount:  m.minCount,
		voc:       newVocab(m.voc.words),
		word:      cloneDists(m.word),
		wordCount: cloneDists(m.wordCount),
		prior:     m.prior.Clone(),
	}
}

func (m *mapModel) initCounts(v Vocabulary) {

	if m.voc.size() == 0 {
		m.voc = newVocab(sortedWords(v))
		m.word = make([]dist, m.voc.size())
		m.wordCount = make([]dist, m.voc.size())
		return
	}

	if len(m.wordCount) != m.voc.size() {
		m.wordCount = make([]dist, m.voc.size())
		return
	}
	for i := range m.wordCount {
		m.wordCount[i].clear()
	}
}

// estimate drops the words seen less than minCount times and makes the
// counts of the others their new distributions.
func (m *mapModel) estimate() {

	if m.minCount > 0 {
		var kept []string
		var counts []dist
		for i, d := range m.wordCount {
			if d.sum() >= m.minCount {
				kept = append(kept, m.voc.words[i])
				counts = append(counts, d)
			}
		}
		glog.V(1).Infof("jump: MAP min count %g keeps %d of %d words", m.minCount, len(kept), m.voc.size())
		if len(kept) < m.voc.size() {
			m.voc = newVocab(kept)
			m.wordCount = counts
		}
	}

	m.word = cloneDists(m.wordCount)
}

func (m *mapModel) sameCounts(o *mapModel) bool {
	return m.voc.equal(o.voc) && distsEqual(m.wordCount, o.wordCount)
}

func (s *Strategy) countMAP(t *Transitions, src []string) {

	I := t.I
	m := s.lex
	maxReg := s.p.maxRegularJump(I)
	for i := 1; i <= s.p.maxNormal(I); i++ {
		k, ok := m.voc.lookup(src[i])
		if !ok {
			continue
		}
		from := State{Pos: i}
		d := &m.wordCount[k]
		for j := 1; j <= maxReg; j++ {
			if x := t.At(from, j); x != 0 {
				d.jump.addJump(i, j, s.p.MaxJump, x)
			}
		}
		if s.p.Anchor && s.p.EndDist {
			d.final += t.At(from, I)
		}
	}
}

// fillMAP replaces the prior's jumps out of known words by
// (p_word + tau·p_prior) / (tau + Σ p_word), scaled to the non-null mass.
func (s *Strategy) fillMAP(t *Transitions, src []string) {

	I := t.I
	m := s.lex
	remaining := 1 - s.p.nullProb(I)
	if remaining <= 0 {
		return
	}

	maxReg := s.p.maxRegularJump(I)
	endDist := s.p.Anchor && s.p.EndDist
	for i := 1; i <= s.p.maxNormal(I); i++ {
		k, ok := m.voc.lookup(src[i])
		if !ok {
			continue
		}
		d := &m.word[k]
		from := State{Pos: i}

		sum := m.tau
		for j := 1; j <= maxReg; j++ {
			sum += d.jump.jumpP(i, j, maxReg, s.p.MaxJump)
		}
		if endDist {
			sum += d.final
		}

		for j := 1; j <= maxReg; j++ {
			prior := t.At(from, j) / remaining
			p := (d.jump.jumpP(i, j, maxReg, s.p.MaxJump) + m.tau*prior) / sum
			t.Set(i, j, remaining*p)
		}
		if endDist {
			prior := t.At(from, I) / remaining
			t.Set(i, I, remaining*(d.final+m.tau*prior)/sum)
		}
	}
}
