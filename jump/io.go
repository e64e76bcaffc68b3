package jump

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kshedden/hmmalign/internal/gzio"
)

// FormatError reports a malformed model, count or word class file.
type FormatError struct {
	File string
	Line int
	Msg  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

var kinds = []Kind{Simple, EndDist, WordClass, MAP}

func modelMagic(k Kind) string {
	switch k {
	case Simple:
		return "HMM simple jump model v2.0"
	case EndDist:
		return "HMM end distribution jump model v2.0"
	case WordClass:
		return "HMM word class jump model v2.0"
	default:
		return "HMM MAP jump model v2.0"
	}
}

func countMagic(k Kind) string {
	return strings.Replace(modelMagic(k), "model", "counts", 1)
}

// MagicString returns the first line of the model files of s.
func (s *Strategy) MagicString() string {
	return modelMagic(s.kind)
}

const (
	textTables   = "text"
	binaryTables = "binary"
)

// writer writes line-oriented text and gob blocks, keeping the first error.
type writer struct {
	w   *bufio.Writer
	err error
}

func newWriter(w io.Writer) *writer {
	return &writer{w: bufio.NewWriter(w)}
}

func (w *writer) line(format string, args ...interface{}) {
	if w.err != nil {
		return
	}
	_, w.err = fmt.Fprintf(w.w, format+"\n", args...)
}

// floats writes x without trailing zeros on one line.
func (w *writer) floats(x []float64) {
	x = trim(x)
	f := make([]string, len(x))
	for i, v := range x {
		f[i] = fmtFloat(v)
	}
	w.line("%s", strings.Join(f, " "))
}

func (w *writer) gob(v interface{}) {
	if w.err != nil {
		return
	}
	w.err = gob.NewEncoder(w.w).Encode(v)
}

func (w *writer) flush() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}

// reader reads what writer writes, tracking line numbers for errors.
type reader struct {
	r    *bufio.Reader
	name string
	line int
}

func newReader(r io.Reader, name string) *reader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &reader{r: br, name: name}
}

func (r *reader) errorf(format string, args ...interface{}) error {
	return &FormatError{File: r.name, Line: r.line, Msg: fmt.Sprintf(format, args...)}
}

func (r *reader) next() (string, error) {

	r.line++
	s, err := r.r.ReadString('\n')
	if err != nil && (err != io.EOF || s == "") {
		if err == io.EOF {
			return "", r.errorf("unexpected end of input")
		}
		return "", fmt.Errorf("reading %s: %w", r.name, err)
	}

	return strings.TrimRight(s, "\r\n"), nil
}

func (r *reader) expect(want string) error {
	s, err := r.next()
	if err != nil {
		return err
	}
	if s != want {
		return r.errorf("expected %q, got %q", want, s)
	}
	return nil
}

// fields reads a line of exactly n fields.
func (r *reader) fields(n int) ([]string, error) {
	s, err := r.next()
	if err != nil {
		return nil, err
	}
	f := strings.Fields(s)
	if len(f) != n {
		return nil, r.errorf("expected %d fields, got %d", n, len(f))
	}
	return f, nil
}

func (r *reader) floats() ([]float64, error) {

	s, err := r.next()
	if err != nil {
		return nil, err
	}

	f := strings.Fields(s)
	if len(f) == 0 {
		return nil, nil
	}
	x := make([]float64, len(f))
	for i, v := range f {
		if x[i], err = strconv.ParseFloat(v, 64); err != nil {
			return nil, r.errorf("bad number %q", v)
		}
	}

	return x, nil
}

func (r *reader) float() (float64, error) {
	f, err := r.fields(1)
	if err != nil {
		return 0, err
	}
	return r.parseFloat(f[0])
}

func (r *reader) parseFloat(s string) (float64, error) {
	x, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, r.errorf("bad number %q", s)
	}
	return x, nil
}

func (r *reader) parseInt(s string) (int, error) {
	x, err := strconv.Atoi(s)
	if err != nil {
		return 0, r.errorf("bad integer %q", s)
	}
	return x, nil
}

func (r *reader) parseBool(s string) (bool, error) {
	x, err := strconv.ParseBool(s)
	if err != nil {
		return false, r.errorf("bad boolean %q", s)
	}
	return x, nil
}

func (r *reader) gob(v interface{}) error {
	if err := gob.NewDecoder(r.r).Decode(v); err != nil {
		return r.errorf("bad binary block: %v", err)
	}
	return nil
}

func (r *reader) params() (Params, error) {

	var p Params
	f, err := r.fields(7)
	if err != nil {
		return p, err
	}

	for i, x := range []*float64{&p.PZero, &p.UniformP0, &p.Alpha, &p.Lambda} {
		if *x, err = r.parseFloat(f[i]); err != nil {
			return p, err
		}
	}
	if p.Anchor, err = r.parseBool(f[4]); err != nil {
		return p, err
	}
	if p.EndDist, err = r.parseBool(f[5]); err != nil {
		return p, err
	}
	if p.MaxJump, err = r.parseInt(f[6]); err != nil {
		return p, err
	}

	return p, nil
}

// Gob blocks of the binary forms
type tableBlock struct {
	Fwd, Back, Init, Final []float64
}

type distBlock struct {
	Fwd, Back []float64
	Final     float64
}

type classBlock struct {
	Global          distBlock
	InitFwd, InitBk []float64
	Classes         []distBlock
}

type wordBlock struct {
	Words []distBlock
}

func (t *table) block() tableBlock {
	return tableBlock{Fwd: trim(t.jump.pos), Back: trim(t.jump.neg), Init: trim(t.init), Final: trim(t.final)}
}

func (b tableBlock) table() table {
	return table{jump: biVector{pos: b.Fwd, neg: b.Back}, init: b.Init, final: b.Final}
}

func (d dist) block() distBlock {
	return distBlock{Fwd: trim(d.jump.pos), Back: trim(d.jump.neg), Final: d.final}
}

func (b distBlock) dist() dist {
	return dist{jump: biVector{pos: b.Fwd, neg: b.Back}, final: b.Final}
}

func distBlocks(x []dist) []distBlock {
	b := make([]distBlock, len(x))
	for i, d := range x {
		b[i] = d.block()
	}
	return b
}

func classBlockOf(global dist, init biVector, class []dist) classBlock {
	return classBlock{
		Global:  global.block(),
		InitFwd: trim(init.pos),
		InitBk:  trim(init.neg),
		Classes: distBlocks(class),
	}
}

// Write writes the jump parameters of s, with its tables in text form or, if
// binary is set, in gob blocks.
func (s *Strategy) Write(w io.Writer, binary bool) error {
	wr := newWriter(w)
	s.write(wr, binary)
	return wr.flush()
}

func (s *Strategy) write(w *writer, binary bool) {

	w.line("%s", modelMagic(s.kind))
	w.line("%s", s.p)
	switch s.kind {
	case WordClass:
		w.line("%d %d", s.classes.wc.NumClasses(), s.classes.wc.Len())
	case MAP:
		w.line("%s %s %d", fmtFloat(s.lex.tau), fmtFloat(s.lex.minCount), s.lex.voc.size())
	}

	if binary {
		w.line(binaryTables)
	} else {
		w.line(textTables)
	}

	switch s.kind {
	case Simple, EndDist:
		s.writeSimple(w, binary)
	case WordClass:
		s.writeClasses(w, binary)
	case MAP:
		s.writeMAP(w, binary)
	}

	w.line("End of %s", modelMagic(s.kind))

	if s.kind == MAP {
		s.lex.prior.write(w, binary)
	}
}

func (s *Strategy) writeSimple(w *writer, binary bool) {

	t := &s.simple.prob
	if binary {
		w.gob(t.block())
		return
	}

	w.floats(t.jump.neg)
	w.floats(t.jump.pos)
	if s.kind == EndDist {
		w.floats(t.init)
		w.floats(t.final)
	}
}

func writeDist(w *writer, d dist) {
	w.line("%s", fmtFloat(d.final))
	w.floats(d.jump.neg)
	w.floats(d.jump.pos)
}

func (s *Strategy) writeClasses(w *writer, binary bool) {

	m := s.classes
	if binary {
		w.gob(classBlockOf(m.global, m.init, m.class))
	} else {
		writeDist(w, m.global)
		w.floats(m.init.neg)
		w.floats(m.init.pos)
		for _, d := range m.class {
			writeDist(w, d)
		}
	}

	for _, word := range m.wc.words() {
		c, _ := m.wc.ClassOf(word)
		w.line("%s %d", word, c)
	}
}

func (s *Strategy) writeMAP(w *writer, binary bool) {

	m := s.lex
	for _, word := range m.voc.words {
		w.line("%s", word)
	}

	if binary {
		w.gob(wordBlock{Words: distBlocks(m.word)})
		return
	}
	for _, d := range m.word {
		writeDist(w, d)
	}
}

// Read reads a jump model written by Write, whatever its kind.  The
// hyper-parameters set in ov replace the stored ones.  The name is used in
// error messages.
func Read(r io.Reader, name string, ov Overrides) (*Strategy, error) {
	return readStrategy(newReader(r, name), ov, true)
}

func readStrategy(r *reader, ov Overrides, allowMAP bool) (*Strategy, error) {

	magic, err := r.next()
	if err != nil {
		return nil, err
	}

	s := &Strategy{}
	found := false
	for _, k := range kinds {
		if magic == modelMagic(k) {
			s.kind = k
			found = true
			break
		}
	}
	if !found {
		return nil, r.errorf("unknown jump model type %q", magic)
	}
	if s.kind == MAP && !allowMAP {
		return nil, r.errorf("a MAP jump model cannot be the prior of another")
	}

	if s.p, err = r.params(); err != nil {
		return nil, err
	}
	switch {
	case s.kind == Simple && s.p.EndDist:
		return nil, r.errorf("simple jump model with end_dist set")
	case s.kind == EndDist && !s.p.EndDist:
		return nil, r.errorf("end distribution jump model without end_dist set")
	}
	if err := ov.apply(&s.p); err != nil {
		return nil, fmt.Errorf("%s: %w", r.name, err)
	}

	switch s.kind {
	case WordClass:
		err = s.readClasses(r)
	case MAP:
		err = s.readMAP(r, ov)
	default:
		err = s.readSimple(r)
	}
	if err != nil {
		return nil, err
	}

	return s, nil
}

// readBinary reads the line telling whether tables are in binary form.
func (r *reader) readBinary() (bool, error) {
	s, err := r.next()
	if err != nil {
		return false, err
	}
	switch s {
	case textTables:
		return false, nil
	case binaryTables:
		return true, nil
	}
	return false, r.errorf("expected %q or %q, got %q", textTables, binaryTables, s)
}

func (s *Strategy) readSimple(r *reader) error {

	binary, err := r.readBinary()
	if err != nil {
		return err
	}

	s.simple = &simpleModel{}
	t := &s.simple.prob
	if binary {
		var b tableBlock
		if err := r.gob(&b); err != nil {
			return err
		}
		*t = b.table()
	} else {
		vecs := []*[]float64{&t.jump.neg, &t.jump.pos}
		if s.kind == EndDist {
			vecs = append(vecs, &t.init, &t.final)
		}
		for _, v := range vecs {
			if *v, err = r.floats(); err != nil {
				return err
			}
		}
	}

	return r.expect("End of " + modelMagic(s.kind))
}

func readDist(r *reader) (dist, error) {

	var d dist
	var err error
	if d.final, err = r.float(); err != nil {
		return d, err
	}
	if d.jump.neg, err = r.floats(); err != nil {
		return d, err
	}
	if d.jump.pos, err = r.floats(); err != nil {
		return d, err
	}

	return d, nil
}

func (s *Strategy) readClasses(r *reader) error {

	f, err := r.fields(2)
	if err != nil {
		return err
	}
	nclass, err := r.parseInt(f[0])
	if err != nil {
		return err
	}
	nword, err := r.parseInt(f[1])
	if err != nil {
		return err
	}

	binary, err := r.readBinary()
	if err != nil {
		return err
	}

	m := &classModel{}
	if binary {
		var b classBlock
		if err := r.gob(&b); err != nil {
			return err
		}
		m.global = b.Global.dist()
		m.init = biVector{pos: b.InitFwd, neg: b.InitBk}
		for _, d := range b.Classes {
			m.class = append(m.class, d.dist())
		}
	} else {
		if m.global, err = readDist(r); err != nil {
			return err
		}
		if m.init.neg, err = r.floats(); err != nil {
			return err
		}
		if m.init.pos, err = r.floats(); err != nil {
			return err
		}
		for c := 0; c < nclass; c++ {
			d, err := readDist(r)
			if err != nil {
				return err
			}
			m.class = append(m.class, d)
		}
	}
	if len(m.class) != nclass {
		return r.errorf("expected %d classes, got %d", nclass, len(m.class))
	}

	classes := make(map[string]int, nword)
	for k := 0; k < nword; k++ {
		f, err := r.fields(2)
		if err != nil {
			return err
		}
		c, err := r.parseInt(f[1])
		if err != nil {
			return err
		}
		if c < 0 || c >= nclass {
			return r.errorf("class %d of %q out of range", c, f[0])
		}
		if _, ok := classes[f[0]]; ok {
			return r.errorf("duplicate word %q", f[0])
		}
		classes[f[0]] = c
	}
	wc, err := NewWordClasses(classes)
	if err != nil {
		return err
	}

	// Trailing classes may have no words
	wc.n = nclass
	m.wc = wc
	m.classCount = make([]dist, nclass)
	s.classes = m

	return r.expect("End of " + modelMagic(s.kind))
}

func (s *Strategy) readMAP(r *reader, ov Overrides) error {

	f, err := r.fields(3)
	if err != nil {
		return err
	}
	m := &mapModel{}
	if m.tau, err = r.parseFloat(f[0]); err != nil {
		return err
	}
	if m.minCount, err = r.parseFloat(f[1]); err != nil {
		return err
	}
	nword, err := r.parseInt(f[2])
	if err != nil {
		return err
	}

	binary, err := r.readBinary()
	if err != nil {
		return err
	}

	m.voc = newVocab(nil)
	for k := 0; k < nword; k++ {
		w, err := r.next()
		if err != nil {
			return err
		}
		if w == "" || strings.ContainsAny(w, " \t") {
			return r.errorf("bad vocabulary word %q", w)
		}
		if m.voc.add(w) != k {
			return r.errorf("duplicate vocabulary word %q", w)
		}
	}

	if binary {
		var b wordBlock
		if err := r.gob(&b); err != nil {
			return err
		}
		for _, d := range b.Words {
			m.word = append(m.word, d.dist())
		}
	} else {
		for k := 0; k < nword; k++ {
			d, err := readDist(r)
			if err != nil {
				return err
			}
			m.word = append(m.word, d)
		}
	}
	if len(m.word) != nword {
		return r.errorf("expected %d word distributions, got %d", nword, len(m.word))
	}
	m.wordCount = make([]dist, nword)

	if err := r.expect("End of " + modelMagic(MAP)); err != nil {
		return err
	}

	if m.prior, err = readStrategy(r, ov, false); err != nil {
		return err
	}
	if m.prior.p != s.p {
		return r.errorf("prior parameters %v differ from %v", m.prior.p, s.p)
	}
	s.lex = m

	return nil
}

// WriteFile writes s to the named file, gzip-compressed if the name ends in
// ".gz".
func (s *Strategy) WriteFile(path string, binary bool) error {
	return gzio.WriteFile(path, func(w io.Writer) error {
		return s.Write(w, binary)
	})
}

// ReadFile reads a jump model from the named file, which is gzip-compressed
// if its name ends in ".gz".
func ReadFile(path string, ov Overrides) (*Strategy, error) {

	var s *Strategy
	err := gzio.ReadFile(path, func(r io.Reader) error {
		var err error
		s, err = Read(r, path, ov)
		return err
	})

	return s, err
}
