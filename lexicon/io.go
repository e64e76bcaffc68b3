package lexicon

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kshedden/hmmalign/internal/gzio"
)

const (
	binaryMagic = "TTable binary v1.0"
	countMagic  = "TTable counts v1.0"
)

// Write writes the table as "src tgt prob" lines sorted by source and target
// word or, if binary is set, as a gob block between magic lines.
func (t *TTable) Write(w io.Writer, binary bool) error {

	bw := bufio.NewWriter(w)
	if binary {
		if err := writeBlock(bw, binaryMagic, t.prob); err != nil {
			return err
		}
		return bw.Flush()
	}

	var err error
	sortedPairs(t.prob, func(s, w string, p float64) {
		if err == nil {
			_, err = fmt.Fprintf(bw, "%s %s %s\n", s, w, strconv.FormatFloat(p, 'g', -1, 64))
		}
	})
	if err != nil {
		return err
	}

	return bw.Flush()
}

func writeBlock(w io.Writer, magic string, m map[string]row) error {
	if _, err := fmt.Fprintln(w, magic); err != nil {
		return err
	}
	if err := gob.NewEncoder(w).Encode(m); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "End of %s\n", magic)
	return err
}

type reader struct {
	r    *bufio.Reader
	name string
	line int
}

func (r *reader) errorf(format string, args ...interface{}) error {
	return &FormatError{File: r.name, Line: r.line, Msg: fmt.Sprintf(format, args...)}
}

// next returns the next line, and false at the end of the input.
func (r *reader) next() (string, bool, error) {
	r.line++
	s, err := r.r.ReadString('\n')
	if err == io.EOF && s == "" {
		return "", false, nil
	}
	if err != nil && err != io.EOF {
		return "", false, fmt.Errorf("reading %s: %w", r.name, err)
	}
	return strings.TrimRight(s, "\r\n"), true, nil
}

func (r *reader) expect(want string) error {
	s, ok, err := r.next()
	if err != nil {
		return err
	}
	if !ok {
		return r.errorf("unexpected end of input, expected %q", want)
	}
	if s != want {
		return r.errorf("expected %q, got %q", want, s)
	}
	return nil
}

func (r *reader) readBlock(m *map[string]row, magic string) error {
	if err := gob.NewDecoder(r.r).Decode(m); err != nil {
		return r.errorf("bad binary block: %v", err)
	}
	return r.expect("End of " + magic)
}

// Read reads a table written by Write, in either form.  The name is used in
// error messages.
func Read(in io.Reader, name string) (*TTable, error) {

	r := &reader{r: bufio.NewReader(in), name: name}
	t := New()

	s, ok, err := r.next()
	if err != nil {
		return nil, err
	}
	if ok && s == binaryMagic {
		if err := r.readBlock(&t.prob, binaryMagic); err != nil {
			return nil, err
		}
		if t.prob == nil {
			t.prob = make(map[string]row)
		}
		return t, nil
	}

	for ; ok; s, ok, err = r.next() {
		f := strings.Fields(s)
		if len(f) == 0 {
			continue
		}
		if len(f) != 3 {
			return nil, r.errorf("expected source word, target word and probability, got %q", s)
		}
		p, perr := strconv.ParseFloat(f[2], 64)
		if perr != nil || p < 0 || p > 1 {
			return nil, r.errorf("bad probability %q", f[2])
		}
		if t.Has(f[0], f[1]) {
			return nil, r.errorf("duplicate pair %s %s", f[0], f[1])
		}
		t.Set(f[0], f[1], p)
	}
	if err != nil {
		return nil, err
	}

	return t, nil
}

// Save writes the table to the named file, gzip-compressed if the name ends
// in ".gz".
func (t *TTable) Save(path string, binary bool) error {
	return gzio.WriteFile(path, func(w io.Writer) error {
		return t.Write(w, binary)
	})
}

// Load reads a table from the named file.
func Load(path string) (*TTable, error) {

	var t *TTable
	err := gzio.ReadFile(path, func(r io.Reader) error {
		var err error
		t, err = Read(r, path)
		return err
	})

	return t, err
}

// WriteCounts writes the counts of the current training pass, so that counts
// collected on parts of a corpus can be merged with ReadAddCounts.
func (t *TTable) WriteCounts(w io.Writer) error {

	if t.count == nil {
		panic("lexicon: WriteCounts called outside a training pass")
	}

	bw := bufio.NewWriter(w)
	if err := writeBlock(bw, countMagic, t.count); err != nil {
		return err
	}

	return bw.Flush()
}

// ReadAddCounts adds counts written by WriteCounts to the counts of t.  Every
// counted pair must be in t.
func (t *TTable) ReadAddCounts(in io.Reader, name string) error {

	if t.count == nil {
		panic("lexicon: ReadAddCounts called outside a training pass")
	}

	r := &reader{r: bufio.NewReader(in), name: name}
	if err := r.expect(countMagic); err != nil {
		return err
	}
	var m map[string]row
	if err := r.readBlock(&m, countMagic); err != nil {
		return err
	}

	for s, cr := range m {
		c := t.count[s]
		for w := range cr {
			if _, ok := c[w]; !ok {
				return r.errorf("counts for %s %s, which is not in the table", s, w)
			}
		}
	}
	for s, cr := range m {
		c := t.count[s]
		for w, x := range cr {
			c[w] += x
		}
	}

	return nil
}

// WriteCountsFile writes the counts to the named file.
func (t *TTable) WriteCountsFile(path string) error {
	return gzio.WriteFile(path, t.WriteCounts)
}

// ReadAddCountsFile adds the counts in the named file to those of t.
func (t *TTable) ReadAddCountsFile(path string) error {
	return gzio.ReadFile(path, func(r io.Reader) error {
		return t.ReadAddCounts(r, path)
	})
}
