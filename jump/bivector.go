package jump

import (
	"gonum.org/v1/gonum/floats"
)

// biVector holds values indexed by a signed jump distance d: pos[d] for
// d >= 0 and neg[-d-1] for d < 0.  Missing entries are zero.
type biVector struct {
	pos, neg []float64
}

func (v *biVector) at(d int) float64 {
	if d >= 0 {
		if d < len(v.pos) {
			return v.pos[d]
		}
		return 0
	}
	if -d-1 < len(v.neg) {
		return v.neg[-d-1]
	}
	return 0
}

func (v *biVector) add(d int, x float64) {
	if d >= 0 {
		v.pos = addAt(v.pos, d, x)
	} else {
		v.neg = addAt(v.neg, -d-1, x)
	}
}

// addAt adds x to s[k], growing s as needed.
func addAt(s []float64, k int, x float64) []float64 {
	for len(s) <= k {
		s = append(s, 0)
	}
	s[k] += x
	return s
}

// addVec adds y to x element-wise, growing x as needed.
func addVec(x, y []float64) []float64 {
	for len(x) < len(y) {
		x = append(x, 0)
	}
	floats.Add(x[:len(y)], y)
	return x
}

func (v *biVector) merge(o biVector) {
	v.pos = addVec(v.pos, o.pos)
	v.neg = addVec(v.neg, o.neg)
}

func (v *biVector) clear() {
	zero(v.pos)
	zero(v.neg)
}

func (v biVector) sum() float64 {
	return floats.Sum(v.pos) + floats.Sum(v.neg)
}

func (v biVector) clone() biVector {
	return biVector{pos: cloneVec(v.pos), neg: cloneVec(v.neg)}
}

func (v biVector) equal(o biVector) bool {
	return vecEqual(v.pos, o.pos) && vecEqual(v.neg, o.neg)
}

// bucket returns the signed bucket of a jump from iPrime to i, and whether the
// bucket pools all distances of maxJump or more.
func bucket(iPrime, i, maxJump int) (int, bool) {
	d := i - iPrime
	if maxJump > 0 {
		if d >= maxJump {
			return maxJump, true
		}
		if d <= -maxJump {
			return -maxJump, true
		}
	}
	return d, false
}

// jumpP returns the probability of a jump from iPrime to i with I source
// positions.  A pooled bucket is shared evenly by the positions that fall in
// it.
func (v *biVector) jumpP(iPrime, i, I, maxJump int) float64 {

	d, pooled := bucket(iPrime, i, maxJump)
	p := v.at(d)
	if !pooled || p == 0 {
		return p
	}

	if d > 0 {
		return p / float64(I+1-iPrime-maxJump)
	}
	if i == 0 {
		return 0
	}
	return p / float64(iPrime-maxJump)
}

// addJump adds x to the bucket of a jump from iPrime to i.
func (v *biVector) addJump(iPrime, i, maxJump int, x float64) {
	d, _ := bucket(iPrime, i, maxJump)
	v.add(d, x)
}

// trim drops trailing zeros.
func trim(x []float64) []float64 {
	n := len(x)
	for n > 0 && x[n-1] == 0 {
		n--
	}
	return x[:n]
}

func cloneVec(x []float64) []float64 {
	if x == nil {
		return nil
	}
	return append([]float64(nil), x...)
}

// vecEqual compares x and y ignoring trailing zeros.
func vecEqual(x, y []float64) bool {
	x, y = trim(x), trim(y)
	if len(x) != len(y) {
		return false
	}
	return floats.Equal(x, y)
}

func zero(x []float64) {
	for j := range x {
		x[j] = 0
	}
}
