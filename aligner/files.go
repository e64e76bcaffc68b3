package aligner

import (
	"fmt"

	"github.com/kshedden/hmmalign/internal/gzio"
	"github.com/kshedden/hmmalign/jump"
	"github.com/kshedden/hmmalign/lexicon"
)

// JumpFileName returns the name of the jump model or count file that goes
// with the named translation table or count file.
func JumpFileName(ttablePath string) string {
	return gzio.TrimGzip(ttablePath) + ".hmm"
}

// Write writes the translation table to ttablePath and the jump model next to
// it, see JumpFileName.  If binary is set both are written in binary form.
func (a *Aligner) Write(ttablePath string, binary bool) error {

	if err := a.lex.Save(ttablePath, binary); err != nil {
		return fmt.Errorf("writing translation table: %w", err)
	}
	if err := a.js.WriteFile(JumpFileName(ttablePath), binary); err != nil {
		return fmt.Errorf("writing jump model: %w", err)
	}

	return nil
}

// LexiconLoader reads a translation table.
type LexiconLoader func(path string) (Lexicon, error)

// LoadTTable is a LexiconLoader for lexicon.TTable files.
func LoadTTable(path string) (Lexicon, error) {
	t, err := lexicon.Load(path)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Load reads an aligner written by Write.  Hyper-parameters set in ov replace
// those stored with the jump model.
func Load(ttablePath string, load LexiconLoader, ov jump.Overrides, cfg Config) (*Aligner, error) {

	lex, err := load(ttablePath)
	if err != nil {
		return nil, fmt.Errorf("loading translation table: %w", err)
	}
	js, err := jump.ReadFile(JumpFileName(ttablePath), ov)
	if err != nil {
		return nil, fmt.Errorf("loading jump model: %w", err)
	}

	return New(lex, js, cfg)
}

// WriteCounts writes the counts of the current training pass to path, for
// the translation table, and to JumpFileName(path), for the jump model.
func (a *Aligner) WriteCounts(path string) error {

	if err := a.lex.WriteCountsFile(path); err != nil {
		return fmt.Errorf("writing translation counts: %w", err)
	}
	if err := a.js.WriteCountsFile(JumpFileName(path)); err != nil {
		return fmt.Errorf("writing jump counts: %w", err)
	}

	return nil
}

// ReadAddCounts adds counts written by WriteCounts to those of the current
// training pass.
func (a *Aligner) ReadAddCounts(path string) error {

	if err := a.lex.ReadAddCountsFile(path); err != nil {
		return fmt.Errorf("reading translation counts: %w", err)
	}
	if err := a.js.ReadAddCountsFile(JumpFileName(path)); err != nil {
		return fmt.Errorf("reading jump counts: %w", err)
	}

	return nil
}
