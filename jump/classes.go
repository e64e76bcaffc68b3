package jump

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/kshedden/hmmalign/internal/gzio"
)

// WordClasses maps words to class ids 0..NumClasses()-1.
type WordClasses struct {
	class map[string]int
	n     int
}

// NewWordClasses returns the word classes given by m.  Class ids must be
// non-negative.
func NewWordClasses(m map[string]int) (*WordClasses, error) {

	wc := &WordClasses{class: make(map[string]int, len(m))}
	for w, c := range m {
		if c < 0 {
			return nil, fmt.Errorf("%w: word %q has class %d", ErrBadParams, w, c)
		}
		wc.class[w] = c
		if c >= wc.n {
			wc.n = c + 1
		}
	}

	return wc, nil
}

// ReadWordClasses reads word classes in "word class" format, one word per
// line.  Blank lines are ignored.
func ReadWordClasses(r io.Reader, name string) (*WordClasses, error) {

	m := make(map[string]int)
	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, &FormatError{File: name, Line: line, Msg: fmt.Sprintf("expected word and class, got %q", scanner.Text())}
		}
		c, err := strconv.Atoi(fields[1])
		if err != nil || c < 0 {
			return nil, &FormatError{File: name, Line: line, Msg: fmt.Sprintf("bad class %q", fields[1])}
		}
		if _, ok := m[fields[0]]; ok {
			return nil, &FormatError{File: name, Line: line, Msg: fmt.Sprintf("duplicate word %q", fields[0])}
		}
		m[fields[0]] = c
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	return NewWordClasses(m)
}

// LoadWordClasses reads a word class file, which may be gzip-compressed.
func LoadWordClasses(path string) (*WordClasses, error) {

	var wc *WordClasses
	err := gzio.ReadFile(path, func(r io.Reader) error {
		var err error
		wc, err = ReadWordClasses(r, path)
		return err
	})

	return wc, err
}

// ClassOf returns the class of w and whether w has one.
func (wc *WordClasses) ClassOf(w string) (int, bool) {
	c, ok := wc.class[w]
	return c, ok
}

// NumClasses returns one more than the largest class id.
func (wc *WordClasses) NumClasses() int {
	return wc.n
}

// Len returns the number of classed words.
func (wc *WordClasses) Len() int {
	return len(wc.class)
}

func (wc *WordClasses) equal(o *WordClasses) bool {
	if wc.n != o.n || len(wc.class) != len(o.class) {
		return false
	}
	for w, c := range wc.class {
		if d, ok := o.class[w]; !ok || d != c {
			return false
		}
	}
	return true
}

func (wc *WordClasses) words() []string {
	words := make([]string, 0, len(wc.class))
	for w := range wc.class {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// dist is a jump distribution together with the mass of jumps into the
// anchored end.
type dist struct {
	jump  biVector
	final float64
}

func (d dist) clone() dist {
	return dist{jump: d.jump.clone(), final: d.final}
}

func (d *dist) clear() {
	d.jump.clear()
	d.final = 0
}

func (d *dist) merge(o dist) {
	d.jump.merge(o.jump)
	d.final += o.final
}

func (d dist) sum() float64 {
	return d.jump.sum() + d.final
}

func (d dist) equal(o dist) bool {
	return d.jump.equal(o.jump) && d.final == o.final
}

func cloneDists(x []dist) []dist {
	y := make([]dist, len(x))
	for i := range x {
		y[i] = x[i].clone()
	}
	return y
}

func distsEqual(x, y []dist) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if !x[i].equal(y[i]) {
			return false
		}
	}
	return true
}

type classModel struct {
	wc                  *WordClasses
	global, globalCount dist
	init, initCount     biVector
	class, classCount   []dist
}

func newClassModel(wc *WordClasses) *classModel {
	return &classModel{
		wc:         wc,
		class:      make([]dist, wc.NumClasses()),
		classCount: make([]dist, wc.NumClasses()),
	}
}

func (m *classModel) clone() *classModel {
	return &classModel{
		wc:          m.wc,
		global:      m.global.clone(),
		globalCount: m.globalCount.clone(),
		init:        m.init.clone(),
		initCount:   m.initCount.clone(),
		class:       cloneDists(m.class),
		classCount:  cloneDists(m.classCount),
	}
}

func (m *classModel) initCounts() {
	m.globalCount.clear()
	m.initCount.clear()
	for i := range m.classCount {
		m.classCount[i].clear()
	}
}

func (m *classModel) estimate() {
	m.global = m.globalCount.clone()
	m.init = m.initCount.clone()
	m.class = cloneDists(m.classCount)
}

func (m *classModel) sameCounts(o *classModel) bool {
	return m.globalCount.equal(o.globalCount) && m.initCount.equal(o.initCount) &&
		distsEqual(m.classCount, o.classCount)
}

// lookup returns the class distribution of w, or the global one.
func (m *classModel) lookup(w string, probs []dist, global *dist) *dist {
	if c, ok := m.wc.ClassOf(w); ok {
		return &probs[c]
	}
	return global
}

func (s *Strategy) countClasses(t *Transitions, src []string) {

	I := t.I
	m := s.classes

	for j := 1; j <= I; j++ {
		if x := t.At(State{}, j); x != 0 {
			m.initCount.addJump(0, j, s.p.MaxJump, x)
		}
	}

	maxReg := s.p.maxRegularJump(I)
	for i := 1; i <= s.p.maxNormal(I); i++ {
		c, classed := m.wc.ClassOf(src[i])
		from := State{Pos: i}
		for j := 1; j <= maxReg; j++ {
			x := t.At(from, j)
			if x == 0 {
				continue
			}
			m.globalCount.jump.addJump(i, j, s.p.MaxJump, x)
			if classed {
				m.classCount[c].jump.addJump(i, j, s.p.MaxJump, x)
			}
		}
		if s.p.Anchor && s.p.EndDist {
			x := t.At(from, I)
			m.globalCount.final += x
			if classed {
				m.classCount[c].final += x
			}
		}
	}
}

func (s *Strategy) fillClasses(t *Transitions, src []string) {

	I := t.I
	m := s.classes
	remaining := 1 - s.p.fillDefaults(t)

	// Jumps out of the start state
	var sum float64
	for j := 1; j <= I; j++ {
		sum += m.init.jumpP(0, j, I, s.p.MaxJump) + s.p.Lambda
	}
	for j := 1; j <= I; j++ {
		p := m.init.jumpP(0, j, I, s.p.MaxJump) + s.p.Lambda
		t.Set(0, j, remaining*s.p.alphaSmooth(p, sum, I))
	}

	maxReg := s.p.maxRegularJump(I)
	endDist := s.p.Anchor && s.p.EndDist
	for i := 1; i <= s.p.maxNormal(I); i++ {
		d := m.lookup(src[i], m.class, &m.global)

		var sum float64
		for j := 1; j <= maxReg; j++ {
			sum += d.jump.jumpP(i, j, maxReg, s.p.MaxJump) + s.p.Lambda
		}
		if endDist {
			sum += d.final + s.p.Lambda
		}

		for j := 1; j <= maxReg; j++ {
			p := d.jump.jumpP(i, j, maxReg, s.p.MaxJump) + s.p.Lambda
			t.Set(i, j, remaining*s.p.alphaSmooth(p, sum, I))
		}
		if endDist {
			t.Set(i, I, remaining*s.p.alphaSmooth(d.final+s.p.Lambda, sum, I))
		}
	}
}
