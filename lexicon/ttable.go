// Package lexicon holds the word translation table of the aligner: the
// probabilities p(t|s) of a target word t given a source word s, with the
// expected counts used to re-estimate them.
package lexicon

import (
	"fmt"
	"sort"

	"github.com/golang/glog"
)

// NullWord is the source word that unaligned target words are generated by.
const NullWord = "NULL"

type row map[string]float64

// TTable is a translation table.  Only pairs present in the table can have a
// non-zero probability or receive counts; pairs are added by AddPair and
// removed by pruning in Estimate.
type TTable struct {
	prob  map[string]row
	count map[string]row
}

// New returns an empty table.
func New() *TTable {
	return &TTable{prob: make(map[string]row)}
}

// AddPair adds every pair of a word of src, or the null word, with a word of
// tgt that is not in the table yet.  New pairs have probability zero until
// InitUniform or Estimate is called.
func (t *TTable) AddPair(src, tgt []string) {

	for _, s := range append([]string{NullWord}, src...) {
		r := t.prob[s]
		if r == nil {
			r = make(row)
			t.prob[s] = r
		}
		for _, w := range tgt {
			if _, ok := r[w]; !ok {
				r[w] = 0
			}
		}
	}
}

// InitUniform gives each source word a uniform distribution over the target
// words it is paired with.
func (t *TTable) InitUniform() {
	for _, r := range t.prob {
		p := 1 / float64(len(r))
		for w := range r {
			r[w] = p
		}
	}
}

// Prob returns p(tgt|src), zero if the pair is not in the table.
func (t *TTable) Prob(src, tgt string) float64 {
	return t.prob[src][tgt]
}

// Set sets p(tgt|src), adding the pair if needed.
func (t *TTable) Set(src, tgt string, p float64) {
	r := t.prob[src]
	if r == nil {
		r = make(row)
		t.prob[src] = r
	}
	r[tgt] = p
}

// Has reports whether the pair is in the table.
func (t *TTable) Has(src, tgt string) bool {
	_, ok := t.prob[src][tgt]
	return ok
}

// Len returns the number of pairs in the table.
func (t *TTable) Len() int {
	var n int
	for _, r := range t.prob {
		n += len(r)
	}
	return n
}

// SourceWords returns the source words of the table in sorted order, without
// the null word.
func (t *TTable) SourceWords() []string {
	words := make([]string, 0, len(t.prob))
	for s := range t.prob {
		if s != NullWord {
			words = append(words, s)
		}
	}
	sort.Strings(words)
	return words
}

// InitCounts starts a training pass by zeroing the counts of every pair.
func (t *TTable) InitCounts() {
	t.count = make(map[string]row, len(t.prob))
	for s, r := range t.prob {
		c := make(row, len(r))
		for w := range r {
			c[w] = 0
		}
		t.count[s] = c
	}
}

// Count adds x to the expected count of the pair, if it is in the table.
func (t *TTable) Count(src, tgt string, x float64) {

	if t.count == nil {
		panic("lexicon: Count called before InitCounts")
	}

	c := t.count[src]
	if _, ok := c[tgt]; ok {
		c[tgt] += x
	}
}

// Estimate ends a training pass: every source word with counts gets the
// normalized counts as its distribution, and pairs whose new probability is
// below prune (nullPrune for the null word) are removed.  Source words
// without counts keep their distribution.
func (t *TTable) Estimate(prune, nullPrune float64) {

	if t.count == nil {
		panic("lexicon: Estimate called before InitCounts")
	}

	before := t.Len()
	for s, c := range t.count {
		var sum float64
		for _, x := range c {
			sum += x
		}
		if sum == 0 {
			continue
		}

		thresh := prune
		if s == NullWord {
			thresh = nullPrune
		}
		r := make(row, len(c))
		for w, x := range c {
			if p := x / sum; p >= thresh && p > 0 {
				r[w] = p
			}
		}
		t.prob[s] = r
	}
	t.count = nil

	glog.V(1).Infof("lexicon: kept %d of %d pairs", t.Len(), before)
}

// sortedPairs calls f for every pair in order.
func sortedPairs(m map[string]row, f func(s, w string, x float64)) {

	src := make([]string, 0, len(m))
	for s := range m {
		src = append(src, s)
	}
	sort.Strings(src)

	for _, s := range src {
		r := m[s]
		tgt := make([]string, 0, len(r))
		for w := range r {
			tgt = append(tgt, w)
		}
		sort.Strings(tgt)
		for _, w := range tgt {
			f(s, w, r[w])
		}
	}
}

// FormatError reports a malformed table or count file.
type FormatError struct {
	File string
	Line int
	Msg  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}
