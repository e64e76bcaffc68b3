package jump

import (
	"fmt"
)

// table holds the jump distributions of the Simple and EndDist models.  init
// and final are indexed by distance-1 and only used by EndDist.
type table struct {
	jump        biVector
	init, final []float64
}

func (t *table) clone() table {
	return table{jump: t.jump.clone(), init: cloneVec(t.init), final: cloneVec(t.final)}
}

func (t *table) clear() {
	t.jump.clear()
	zero(t.init)
	zero(t.final)
}

func (t *table) merge(o *table) {
	t.jump.merge(o.jump)
	t.init = addVec(t.init, o.init)
	t.final = addVec(t.final, o.final)
}

func (t *table) equal(o *table) bool {
	return t.jump.equal(o.jump) && vecEqual(t.init, o.init) && vecEqual(t.final, o.final)
}

type simpleModel struct {
	prob, count table
}

func (m *simpleModel) clone() *simpleModel {
	return &simpleModel{prob: m.prob.clone(), count: m.count.clone()}
}

// countSimple adds the jumps out of every ordinary position to the counts.
func (s *Strategy) countSimple(t *Transitions) {

	I := t.I
	cts := &s.simple.count
	for i := 0; i <= s.p.maxNormal(I); i++ {
		for j := 1; j <= I; j++ {
			x := t.At(State{Pos: i}, j)
			if x == 0 {
				continue
			}
			if s.kind == EndDist {
				s.endAddCount(cts, i, j, I, x)
			} else {
				cts.jump.addJump(i, j, s.p.MaxJump, x)
			}
		}
	}
}

func (s *Strategy) fillSimple(t *Transitions) {

	I := t.I
	p0 := s.p.fillDefaults(t)
	prob := &s.simple.prob
	for i := 0; i <= s.p.maxNormal(I); i++ {
		var sum float64
		for j := 1; j <= I; j++ {
			sum += prob.jump.jumpP(i, j, I, s.p.MaxJump) + s.p.Lambda
		}
		for j := 1; j <= I; j++ {
			p := prob.jump.jumpP(i, j, I, s.p.MaxJump) + s.p.Lambda
			t.Set(i, j, (1-p0)*s.p.alphaSmooth(p, sum, I))
		}
	}
}

// endVecP looks up a jump of the given distance in an init or final vector.
// A pooled bin is shared by n jumps.
func (s *Strategy) endVecP(v []float64, delta, n int) float64 {

	if s.p.MaxJump > 0 && delta >= s.p.MaxJump {
		if s.p.MaxJump > len(v) {
			return 0
		}
		return v[s.p.MaxJump-1] / float64(n)
	}
	if delta <= 0 || delta > len(v) {
		return 0
	}

	return v[delta-1]
}

// endJumpP is the EndDist jump probability: jumps into the anchored end and
// out of the start state have their own distributions, everything else is as
// in Simple without the anchor.
func (s *Strategy) endJumpP(t *table, iPrime, i, I int) float64 {

	delta := i - iPrime
	switch {
	case s.p.Anchor && i == I:
		return s.endVecP(t.final, delta, I+1-s.p.MaxJump)
	case iPrime == 0 && delta != 0:
		return s.endVecP(t.init, delta, s.p.maxNormal(I)+1-s.p.MaxJump)
	}

	return t.jump.jumpP(iPrime, i, s.p.maxNormal(I), s.p.MaxJump)
}

func (s *Strategy) endBin(delta int) int {
	if s.p.MaxJump > 0 && delta >= s.p.MaxJump {
		return s.p.MaxJump - 1
	}
	return delta - 1
}

func (s *Strategy) endAddCount(t *table, iPrime, i, I int, x float64) {

	delta := i - iPrime
	switch {
	case s.p.Anchor && i == I:
		if delta > 0 {
			t.final = addAt(t.final, s.endBin(delta), x)
		}
	case iPrime == 0 && delta != 0:
		t.init = addAt(t.init, s.endBin(delta), x)
	default:
		t.jump.addJump(iPrime, i, s.p.MaxJump, x)
	}
}

func (s *Strategy) fillEndDist(t *Transitions) {

	I := t.I
	p0 := s.p.fillDefaults(t)
	prob := &s.simple.prob
	maxNormal := s.p.maxNormal(I)

	// Normalizer of the jumps into the anchored end
	var sumToEnd float64
	if s.p.Anchor {
		for delta := 1; delta <= I && delta <= len(prob.final); delta++ {
			sumToEnd += prob.final[delta-1]
		}
		sumToEnd += float64(I) * s.p.Lambda
	}

	for i := 0; i <= maxNormal; i++ {
		remaining := 1 - p0
		if s.p.Anchor {
			p := (1 - p0) * s.p.alphaSmooth(s.endJumpP(prob, i, I, I)+s.p.Lambda, sumToEnd, I)
			t.Set(i, I, p)
			remaining -= p
			if remaining < 0 {
				panic(fmt.Sprintf("jump: negative remaining mass: I=%d i=%d p0=%g A(i,I)=%g", I, i, p0, p))
			}
		}

		var sum float64
		for j := 1; j <= maxNormal; j++ {
			sum += s.endJumpP(prob, i, j, I) + s.p.Lambda
		}
		for j := 1; j <= maxNormal; j++ {
			p := s.endJumpP(prob, i, j, I) + s.p.Lambda
			t.Set(i, j, remaining*s.p.alphaSmooth(p, sum, maxNormal))
		}
	}
}
