package aligner

import (
	"github.com/golang/glog"
)

type chunk struct {
	src, tgt []string
}

// split returns the chunks of a pair with more than MaxLen words on either
// side, or nil if it need not be split.
func (a *Aligner) split(src, tgt []string) []chunk {
	n := a.cfg.MaxLen
	if n == 0 || (len(src) <= n && len(tgt) <= n) {
		return nil
	}
	return splitEven(src, tgt, n)
}

// splitEven cuts src and tgt into the same number of consecutive chunks of
// nearly equal size, enough for each to have at most maxLen words if both
// sides are long enough.  It returns nil if there would be only one chunk.
func splitEven(src, tgt []string, maxLen int) []chunk {

	ns, nt := len(src), len(tgt)
	n := max((ns-1)/maxLen+1, (nt-1)/maxLen+1)
	n = min(n, ns, nt)
	if n <= 1 {
		return nil
	}
	glog.Warningf("aligner: splitting long sentence pair (%d/%d) into %d chunks", ns, nt, n)

	chunks := make([]chunk, n)
	var s0, t0 int
	for i := range chunks {
		s1 := (i + 1) * ns / n
		t1 := (i + 1) * nt / n
		chunks[i] = chunk{src: src[s0:s1], tgt: tgt[t0:t1]}
		s0, t0 = s1, t1
	}

	return chunks
}
