package lexicon

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func smallTable() *TTable {
	t := New()
	t.AddPair([]string{"a", "b"}, []string{"x", "y"})
	t.AddPair([]string{"a"}, []string{"z"})
	t.InitUniform()
	return t
}

func sameTable(a, b *TTable) bool {
	if a.Len() != b.Len() {
		return false
	}
	for s, r := range a.prob {
		for w, p := range r {
			if !b.Has(s, w) || b.Prob(s, w) != p {
				return false
			}
		}
	}
	return true
}

func TestUniform(t *testing.T) {

	tt := smallTable()
	for _, c := range []struct {
		s, w string
		p    float64
	}{
		{"a", "x", 1.0 / 3},
		{"a", "z", 1.0 / 3},
		{"b", "y", 0.5},
		{NullWord, "z", 1.0 / 3},
		{"b", "z", 0},
		{"c", "x", 0},
	} {
		if got := tt.Prob(c.s, c.w); got != c.p {
			t.Errorf("p(%s|%s) = %f; want %f", c.w, c.s, got, c.p)
		}
	}

	words := tt.SourceWords()
	if strings.Join(words, " ") != "a b" {
		t.Errorf("source words %v", words)
	}
	if tt.Len() != 8 {
		t.Errorf("got %d pairs; want 8", tt.Len())
	}
}

func TestEstimate(t *testing.T) {

	tt := smallTable()
	tt.InitCounts()
	tt.Count("a", "x", 3)
	tt.Count("a", "y", 1)
	tt.Count("b", "z", 5)
	tt.Count(NullWord, "x", 2)
	tt.Count(NullWord, "y", 0.5)
	tt.Estimate(0.3, 0.1)

	if p := tt.Prob("a", "x"); p != 0.75 {
		t.Errorf("p(x|a) = %f", p)
	}
	if tt.Has("a", "y") || tt.Has("a", "z") {
		t.Errorf("pruned pairs are still present")
	}
	if p := tt.Prob("b", "x"); p != 0.5 {
		t.Errorf("uncounted source word changed: p(x|b) = %f", p)
	}
	if tt.Has("b", "z") {
		t.Errorf("counts were added to a missing pair")
	}
	if p := tt.Prob(NullWord, "y"); p != 0.2 {
		t.Errorf("p(y|NULL) = %f", p)
	}

	defer func() {
		if recover() == nil {
			t.Errorf("Count outside a training pass did not panic")
		}
	}()
	tt.Count("a", "x", 1)
}

func TestSaveLoad(t *testing.T) {

	tt := smallTable()
	tt.Set("b", "w", 1e-12)
	dir := t.TempDir()

	for _, name := range []string{"tt", "tt.gz"} {
		for _, binary := range []bool{false, true} {
			path := filepath.Join(dir, name)
			if err := tt.Save(path, binary); err != nil {
				t.Fatal(err)
			}
			r, err := Load(path)
			if err != nil {
				t.Fatalf("%s, binary=%t: %v", name, binary, err)
			}
			if !sameTable(tt, r) {
				t.Errorf("%s, binary=%t: table differs after loading", name, binary)
			}
		}
	}

	var buf bytes.Buffer
	if err := tt.Write(&buf, false); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "NULL x 0.3333333333333333\n") {
		t.Errorf("unexpected text form:\n%s", buf.String())
	}
}

func TestReadErrors(t *testing.T) {

	for _, in := range []string{
		"a x\n",
		"a x 0.5\na x 0.5\n",
		"a x p\n",
		"a x 2\n",
		binaryMagic + "\nnot gob\n",
	} {
		var ferr *FormatError
		if _, err := Read(strings.NewReader(in), "bad"); !errors.As(err, &ferr) {
			t.Errorf("input %q: got %v", in, err)
		}
	}
}

func TestCountFiles(t *testing.T) {

	dir := t.TempDir()

	part := smallTable()
	part.InitCounts()
	part.Count("a", "x", 1)
	part.Count(NullWord, "z", 0.25)
	path := filepath.Join(dir, "counts.gz")
	if err := part.WriteCountsFile(path); err != nil {
		t.Fatal(err)
	}

	tt := smallTable()
	tt.InitCounts()
	for k := 0; k < 2; k++ {
		if err := tt.ReadAddCountsFile(path); err != nil {
			t.Fatal(err)
		}
	}
	if tt.count["a"]["x"] != 2 || tt.count[NullWord]["z"] != 0.5 {
		t.Errorf("counts were not added: %v", tt.count)
	}

	other := New()
	other.AddPair([]string{"c"}, []string{"x"})
	other.InitCounts()
	var ferr *FormatError
	if err := other.ReadAddCountsFile(path); !errors.As(err, &ferr) {
		t.Errorf("counts for missing pairs: got %v", err)
	}
}
