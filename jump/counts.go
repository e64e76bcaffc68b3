package jump

import (
	"io"

	"github.com/kshedden/hmmalign/internal/gzio"
)

// WriteCounts writes the jump counts of s in binary form, so that counts
// collected on parts of a corpus can be merged with ReadAddCounts.
func (s *Strategy) WriteCounts(w io.Writer) error {
	wr := newWriter(w)
	s.writeCounts(wr)
	return wr.flush()
}

func (s *Strategy) writeCounts(w *writer) {

	w.line("%s", countMagic(s.kind))
	switch s.kind {
	case Simple, EndDist:
		w.gob(s.simple.count.block())
	case WordClass:
		m := s.classes
		w.gob(classBlockOf(m.globalCount, m.initCount, m.classCount))
	case MAP:
		w.gob(wordBlock{Words: distBlocks(s.lex.wordCount)})
	}
	w.line("End of %s", countMagic(s.kind))

	if s.kind == MAP {
		s.lex.prior.writeCounts(w)
	}
}

// ReadAddCounts adds counts written by WriteCounts to the counts of s.  It may
// only be called during a counting pass.
func (s *Strategy) ReadAddCounts(r io.Reader, name string) error {
	s.mustCount("ReadAddCounts")
	return s.readAddCounts(newReader(r, name))
}

func (s *Strategy) readAddCounts(r *reader) error {

	if err := r.expect(countMagic(s.kind)); err != nil {
		return err
	}

	switch s.kind {
	case Simple, EndDist:
		var b tableBlock
		if err := r.gob(&b); err != nil {
			return err
		}
		t := b.table()
		s.simple.count.merge(&t)

	case WordClass:
		var b classBlock
		if err := r.gob(&b); err != nil {
			return err
		}
		m := s.classes
		if len(b.Classes) != len(m.classCount) {
			return r.errorf("expected counts for %d classes, got %d", len(m.classCount), len(b.Classes))
		}
		m.globalCount.merge(b.Global.dist())
		m.initCount.merge(biVector{pos: b.InitFwd, neg: b.InitBk})
		for c, d := range b.Classes {
			m.classCount[c].merge(d.dist())
		}

	case MAP:
		var b wordBlock
		if err := r.gob(&b); err != nil {
			return err
		}
		m := s.lex
		if len(b.Words) != 0 && len(b.Words) != len(m.wordCount) {
			return r.errorf("expected counts for %d words, got %d", len(m.wordCount), len(b.Words))
		}
		for k, d := range b.Words {
			m.wordCount[k].merge(d.dist())
		}
	}

	if err := r.expect("End of " + countMagic(s.kind)); err != nil {
		return err
	}

	if s.kind == MAP {
		return s.lex.prior.readAddCounts(r)
	}

	return nil
}

// WriteCountsFile writes the counts of s to the named file, gzip-compressed if
// the name ends in ".gz".
func (s *Strategy) WriteCountsFile(path string) error {
	return gzio.WriteFile(path, s.WriteCounts)
}

// ReadAddCountsFile adds the counts in the named file to those of s.
func (s *Strategy) ReadAddCountsFile(path string) error {
	return gzio.ReadFile(path, func(r io.Reader) error {
		return s.ReadAddCounts(r, path)
	})
}
