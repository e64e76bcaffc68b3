// Package gzio opens model and count files, compressing or decompressing them
// when their name ends in ".gz".
package gzio

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// IsGzip reports whether path names a compressed file.
func IsGzip(path string) bool {
	return strings.HasSuffix(path, ".gz")
}

// TrimGzip returns path without a trailing ".gz".
func TrimGzip(path string) string {
	return strings.TrimSuffix(path, ".gz")
}

type writeCloser struct {
	io.Writer
	gid *gzip.Writer
	fid *os.File
}

func (w *writeCloser) Close() error {
	var err error
	if w.gid != nil {
		err = w.gid.Close()
	}
	return errors.Join(err, w.fid.Close())
}

// Create creates the named file.  Closing the result flushes the compressor
// before closing the file.
func Create(path string) (io.WriteCloser, error) {

	fid, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	if !IsGzip(path) {
		return fid, nil
	}
	gid := gzip.NewWriter(fid)

	return &writeCloser{Writer: gid, gid: gid, fid: fid}, nil
}

type readCloser struct {
	io.Reader
	gid *gzip.Reader
	fid *os.File
}

func (r *readCloser) Close() error {
	return errors.Join(r.gid.Close(), r.fid.Close())
}

// Open opens the named file for reading.
func Open(path string) (io.ReadCloser, error) {

	fid, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	if !IsGzip(path) {
		return fid, nil
	}
	gid, err := gzip.NewReader(fid)
	if err != nil {
		fid.Close()
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return &readCloser{Reader: gid, gid: gid, fid: fid}, nil
}

// WriteFile creates the named file and passes it to f.
func WriteFile(path string, f func(io.Writer) error) error {

	w, err := Create(path)
	if err != nil {
		return err
	}

	return errors.Join(f(w), w.Close())
}

// ReadFile opens the named file and passes it to f.
func ReadFile(path string, f func(io.Reader) error) error {

	r, err := Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	return f(r)
}
