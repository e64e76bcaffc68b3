package aligner

import (
	"bytes"
	"math"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kshedden/hmmalign/hmmlib"
	"github.com/kshedden/hmmalign/jump"
	"github.com/kshedden/hmmalign/lexicon"
	"gonum.org/v1/gonum/floats"
)

func newAligner(t *testing.T, lex Lexicon, jcfg jump.Config, cfg Config) *Aligner {
	js, err := jump.New(jcfg)
	if err != nil {
		t.Fatal(err)
	}
	a, err := New(lex, js, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

// abTable gives x and y to a and b, and z to the null word.
func abTable() *lexicon.TTable {
	tt := lexicon.New()
	tt.Set("a", "x", 0.9)
	tt.Set("b", "y", 0.9)
	tt.Set("a", "z", 0.01)
	tt.Set("b", "z", 0.01)
	tt.Set(lexicon.NullWord, "z", 0.5)
	return tt
}

// pathLogProb returns the log probability of a state path of h emitting obs.
func pathLogProb(h *hmmlib.HMM, path, obs []int) float64 {
	lp := math.Log(h.Init[path[0]])
	for t, o := range obs {
		lp += math.Log(h.Trans.At(path[t], path[t+1]) * h.Emit[0].At(path[t+1], o))
	}
	return lp
}

func intsEqual(x, y []int) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

func TestAlignSmall(t *testing.T) {

	src := []string{"a", "b"}
	tgt := []string{"x", "y", "z"}

	for _, anchor := range []bool{false, true} {
		jcfg := jump.DefaultConfig()
		jcfg.Anchor = anchor
		a := newAligner(t, abTable(), jcfg, DefaultConfig())

		al := a.Align(src, tgt)
		if !intsEqual(al, []int{0, 1, Null}) {
			t.Errorf("anchor=%t: got alignment %v", anchor, al)
		}

		// The alignment swapping a and b, z staying unaligned
		p := a.makeHMM(src, tgt, a.cfg.Smooth, 0)
		null := jump.Index(jump.State{Pos: 1, Origin: jump.NullDuplicate}, p.I)
		swap := []int{0, 2, 1, null}
		if anchor {
			swap = append(swap, p.I)
		}
		vlp := a.ViterbiLogPr(src, tgt)
		if slp := pathLogProb(p.hmm, swap, p.obs); !(vlp > slp) {
			t.Errorf("anchor=%t: Viterbi log prob %g not above swapped %g", anchor, vlp, slp)
		}

		if lp := a.LogPr(src, tgt); lp < vlp || lp > 0 {
			t.Errorf("anchor=%t: log prob %g, Viterbi %g", anchor, lp, vlp)
		}
	}
}

func TestMakeHMM(t *testing.T) {

	rng := rand.New(rand.NewSource(1))
	words := []string{"a", "b", "c", "d", "x", "y", "z"}
	sentence := func(n int) []string {
		s := make([]string, n)
		for i := range s {
			s[i] = words[rng.Intn(len(words))]
		}
		return s
	}

	tt := lexicon.New()
	for k := 0; k < 20; k++ {
		tt.AddPair(sentence(1+rng.Intn(5)), sentence(1+rng.Intn(5)))
	}
	tt.InitUniform()

	wc, err := jump.NewWordClasses(map[string]int{"a": 0, "b": 1, "c": 1})
	if err != nil {
		t.Fatal(err)
	}

	for _, jcfg := range []jump.Config{
		jump.DefaultConfig(),
		{Params: jump.Params{PZero: 0.1, UniformP0: 0.2, Alpha: 0.05, Anchor: true, EndDist: true, MaxJump: 3}},
		{Params: jump.Params{PZero: 0.05, Lambda: 1, Anchor: true}, WordClasses: wc},
		{Params: jump.DefaultParams(), MAPTau: 1},
	} {
		for _, smooth := range []float64{0, 1e-10} {
			a := newAligner(t, tt, jcfg, DefaultConfig())
			for _, n := range []int{1, 5, 12, 20} {
				p := a.makeHMM(sentence(n), sentence(1+rng.Intn(20)), smooth, 0.1)
				if err := p.hmm.CheckTransitions(); err != nil {
					t.Errorf("%+v: %v", jcfg.Params, err)
				}
				if err := p.hmm.CheckEmissions(false, true); err != nil {
					t.Errorf("%+v: %v", jcfg.Params, err)
				}
				if p.hmm.NState != jump.NumStates(p.I) || p.hmm.NSymbol != len(p.obs) {
					t.Errorf("HMM has %d states, %d symbols for I=%d", p.hmm.NState, p.hmm.NSymbol, p.I)
				}
			}
		}
	}
}

func TestLinkPosteriors(t *testing.T) {

	src := []string{"a", "b"}
	tgt := []string{"x", "y", "z"}
	a := newAligner(t, abTable(), jump.DefaultConfig(), DefaultConfig())

	post, lp := a.LinkPosteriors(src, tgt)
	if len(post) != len(tgt) {
		t.Fatalf("got %d rows", len(post))
	}
	for j, row := range post {
		if len(row) != len(src)+1 {
			t.Errorf("row %d has %d entries", j, len(row))
		}
		if s := floats.Sum(row); math.Abs(s-1) > 1e-6 {
			t.Errorf("row %d sums to %f", j, s)
		}
	}
	if post[0][1] < 0.99 || post[1][2] < 0.99 || post[2][0] < 0.6 {
		t.Errorf("unexpected posteriors %v", post)
	}
	if d := math.Abs(lp - a.LogPr(src, tgt)); d > 1e-9 {
		t.Errorf("log probabilities differ by %g", d)
	}

	post, _ = a.LinkPosteriors(nil, tgt)
	if len(post) != 3 || len(post[0]) != 1 || post[0][0] != 1 {
		t.Errorf("empty source gives %v", post)
	}
}

func TestEmpty(t *testing.T) {

	a := newAligner(t, abTable(), jump.DefaultConfig(), DefaultConfig())

	if al := a.Align(nil, []string{"x", "y"}); !intsEqual(al, []int{Null, Null}) {
		t.Errorf("empty source: %v", al)
	}
	if al := a.Align([]string{"a"}, nil); len(al) != 0 {
		t.Errorf("empty target: %v", al)
	}
	if lp := a.LogPr(nil, nil); lp != 0 {
		t.Errorf("empty pair: %g", lp)
	}
	if lp := a.LogPr([]string{"a"}, nil); lp != math.Log(1e-10) {
		t.Errorf("empty target: %g", lp)
	}
}

func TestZeroProbability(t *testing.T) {

	cfg := DefaultConfig()
	cfg.Smooth = 0
	a := newAligner(t, abTable(), jump.DefaultConfig(), cfg)

	src := []string{"a", "b"}
	tgt := []string{"x", "w"}
	if lp := a.LogPr(src, tgt); !math.IsInf(lp, -1) {
		t.Errorf("log prob %g; want -Inf", lp)
	}
	if lp := a.ViterbiLogPr(src, tgt); !math.IsInf(lp, -1) {
		t.Errorf("Viterbi log prob %g; want -Inf", lp)
	}

	a.InitCounts()
	if lp := a.Count(src, tgt); !math.IsInf(lp, -1) {
		t.Errorf("count log prob %g; want -Inf", lp)
	}
	if _, n := a.Estimate(0, 0); n != 0 {
		t.Errorf("skipped pair counted %d words", n)
	}
}

func TestSplit(t *testing.T) {

	words := strings.Fields("a b c d e f g h")
	chunks := splitEven(words[:7], words, 3)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	var ns, nt int
	for _, c := range chunks {
		if len(c.src) == 0 || len(c.tgt) == 0 || len(c.src) > 3 || len(c.tgt) > 3 {
			t.Errorf("chunk sizes %d/%d", len(c.src), len(c.tgt))
		}
		if c.src[0] != words[ns] || c.tgt[0] != words[nt] {
			t.Errorf("chunk does not continue the previous one")
		}
		ns += len(c.src)
		nt += len(c.tgt)
	}
	if ns != 7 || nt != 8 {
		t.Errorf("chunks cover %d/%d words", ns, nt)
	}

	if c := splitEven(words, words[:1], 3); c != nil {
		t.Errorf("one target word split into %d chunks", len(c))
	}

	cfg := DefaultConfig()
	cfg.MaxLen = 3
	tt := lexicon.New()
	tt.AddPair(words, words)
	tt.InitUniform()
	for _, w := range words {
		tt.Set(w, w, 0.9)
	}
	a := newAligner(t, tt, jump.DefaultConfig(), cfg)

	// Two chunks of three words on each side
	al := a.Align(words[:6], words[:6])
	if !intsEqual(al, []int{0, 1, 2, 3, 4, 5}) {
		t.Errorf("got alignment %v", al)
	}

	al = a.Align(words[:7], words)
	if len(al) != len(words) {
		t.Fatalf("got %d links for %d words", len(al), len(words))
	}
	for j, i := range al {
		if i < Null || i >= 7 {
			t.Errorf("word %d aligned to %d", j, i)
		}
	}
	post, _ := a.LinkPosteriors(words[:7], words)
	if len(post) != len(words) || len(post[7]) != 8 {
		t.Errorf("posteriors are %d x %d", len(post), len(post[7]))
	}
}

func corpus() ([]Pair, *lexicon.TTable, *lexicon.TTable) {

	var pairs []Pair
	for _, s := range []string{
		"a b|x y",
		"a c|x z",
		"b c|y z",
		"a|x",
		"c a b|z x y",
		"b|y",
		"c b a|z y w x",
	} {
		f := strings.Split(s, "|")
		pairs = append(pairs, Pair{Src: strings.Fields(f[0]), Tgt: strings.Fields(f[1])})
	}

	fwd, rev := lexicon.New(), lexicon.New()
	for _, p := range pairs {
		fwd.AddPair(p.Src, p.Tgt)
		rev.AddPair(p.Tgt, p.Src)
	}
	fwd.InitUniform()
	rev.InitUniform()

	return pairs, fwd, rev
}

func TestTrain(t *testing.T) {

	pairs, fwd, _ := corpus()
	for _, jcfg := range []jump.Config{
		jump.DefaultConfig(),
		{Params: jump.Params{PZero: 0.05, Alpha: 0.01, Anchor: true, EndDist: true}},
		{Params: jump.DefaultParams(), MAPTau: 2},
	} {
		_, fwd, _ = corpus()
		a := newAligner(t, fwd, jcfg, DefaultConfig())

		var buf bytes.Buffer
		cfg := DefaultTrainConfig()
		cfg.Progress = &buf
		lps := Train(a, pairs, cfg)
		if len(lps) != cfg.Iterations {
			t.Fatalf("got %d iterations", len(lps))
		}
		if !(lps[len(lps)-1] > lps[0]) {
			t.Errorf("%+v: log prob per word went from %g to %g", jcfg.Params, lps[0], lps[len(lps)-1])
		}
		if buf.Len() == 0 {
			t.Errorf("no progress was reported")
		}

		for _, w := range []string{"y", "z"} {
			if fwd.Prob("a", "x") <= fwd.Prob("a", w) {
				t.Errorf("p(x|a)=%g, p(%s|a)=%g", fwd.Prob("a", "x"), w, fwd.Prob("a", w))
			}
		}
		if al := a.Align([]string{"a", "b"}, []string{"x", "y"}); !intsEqual(al, []int{0, 1}) {
			t.Errorf("trained alignment %v", al)
		}
	}
}

func TestTrainSymmetric(t *testing.T) {

	for _, exact := range []bool{false, true} {
		for _, anchor := range []bool{false, true} {
			pairs, fwd, rev := corpus()
			cfg := DefaultConfig()
			cfg.ExactTransitions = exact
			jcfg := jump.DefaultConfig()
			jcfg.Anchor = anchor
			f := newAligner(t, fwd, jcfg, cfg)
			r := newAligner(t, rev, jcfg, cfg)

			flps, rlps := TrainSymmetric(f, r, pairs, DefaultTrainConfig())
			for k := range flps {
				if !finite(flps[k]) || !finite(rlps[k]) {
					t.Errorf("exact=%t: iteration %d log probs %g, %g", exact, k, flps[k], rlps[k])
				}
			}

			if fwd.Prob("a", "x") <= fwd.Prob("a", "y") || rev.Prob("x", "a") <= rev.Prob("x", "b") {
				t.Errorf("exact=%t anchor=%t: symmetric training did not learn a-x", exact, anchor)
			}

			// Both models still give valid HMMs
			for _, p := range pairs {
				f.makeHMM(p.Src, p.Tgt, 0, 0)
				r.makeHMM(p.Tgt, p.Src, 0, 0)
			}
		}
	}
}

func TestFiles(t *testing.T) {

	dir := t.TempDir()
	pairs, fwd, _ := corpus()
	jcfg := jump.DefaultConfig()
	jcfg.MaxJump = 2
	a := newAligner(t, fwd, jcfg, DefaultConfig())
	Train(a, pairs, TrainConfig{Iterations: 2})

	for _, name := range []string{"model.tt", "model.tt.gz"} {
		for _, binary := range []bool{false, true} {
			path := filepath.Join(dir, name)
			if err := a.Write(path, binary); err != nil {
				t.Fatal(err)
			}
			b, err := Load(path, LoadTTable, jump.Overrides{}, DefaultConfig())
			if err != nil {
				t.Fatal(err)
			}
			if !b.Jump().SameProbs(a.Jump()) {
				t.Errorf("%s, binary=%t: jump model differs", name, binary)
			}
			for _, p := range pairs {
				if !intsEqual(a.Align(p.Src, p.Tgt), b.Align(p.Src, p.Tgt)) {
					t.Errorf("%s, binary=%t: alignments differ", name, binary)
				}
			}
		}
	}
	if got := JumpFileName("dir/model.tt.gz"); got != "dir/model.tt.hmm" {
		t.Errorf("jump file name %s", got)
	}
}

func TestCountFiles(t *testing.T) {

	dir := t.TempDir()
	path := filepath.Join(dir, "counts.gz")
	pairs, fwd1, _ := corpus()
	_, fwd2, _ := corpus()

	a1 := newAligner(t, fwd1, jump.DefaultConfig(), DefaultConfig())
	a1.InitCounts()
	for _, p := range pairs {
		a1.Count(p.Src, p.Tgt)
	}
	if err := a1.WriteCounts(path); err != nil {
		t.Fatal(err)
	}

	a2 := newAligner(t, fwd2, jump.DefaultConfig(), DefaultConfig())
	a2.InitCounts()
	if err := a2.ReadAddCounts(path); err != nil {
		t.Fatal(err)
	}
	if !a2.Jump().SameCounts(a1.Jump()) {
		t.Errorf("jump counts differ after reading")
	}

	// Doubling every count leaves the estimates unchanged
	if err := a2.ReadAddCounts(path); err != nil {
		t.Fatal(err)
	}
	a1.Estimate(1e-10, 1e-10)
	a2.Estimate(1e-10, 1e-10)
	for _, s := range []string{lexicon.NullWord, "a", "b", "c"} {
		for _, w := range []string{"x", "y", "z", "w"} {
			if d := math.Abs(fwd1.Prob(s, w) - fwd2.Prob(s, w)); d > 1e-12 {
				t.Errorf("p(%s|%s) differs by %g", w, s, d)
			}
		}
	}
}

func TestConfig(t *testing.T) {

	for _, f := range []func(*Config){
		func(c *Config) { c.Smooth = -1 },
		func(c *Config) { c.EqSmooth = 2 },
		func(c *Config) { c.MaxLen = -1 },
	} {
		cfg := DefaultConfig()
		f(&cfg)
		js, _ := jump.New(jump.DefaultConfig())
		if _, err := New(abTable(), js, cfg); err == nil {
			t.Errorf("%+v accepted", cfg)
		}
	}
}
