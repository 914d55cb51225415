// Package hashio provides readers and writers that fold every byte
// through SHA-1. Index and pack files end with a 20 byte trailer equal
// to the digest of all preceding bytes; writers append it, readers
// verify it at EOF
package hashio

import (
	"bytes"
	"errors"
	"hash"
	"io"

	"github.com/pjbgf/sha1cd"
	"golang.org/x/xerrors"
)

// ChecksumSize is the size of the trailing digest, in bytes
const ChecksumSize = 20

// ErrChecksumMismatch is returned when the trailer of a file does not
// match the digest of its content
var ErrChecksumMismatch = errors.New("checksum does not match data stored on disk")

// Writer wraps an io.Writer and keeps a running digest of everything
// written through it
type Writer struct {
	w io.Writer
	h hash.Hash
}

// NewWriter returns a checksumming writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, h: sha1cd.New()}
}

func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.h.Write(p[:n]) //nolint:errcheck // never fails
	return n, err
}

// Sum returns the current digest
func (w *Writer) Sum() []byte {
	return w.h.Sum(nil)
}

// WriteChecksum appends the current digest to the underlying writer
func (w *Writer) WriteChecksum() error {
	_, err := w.w.Write(w.h.Sum(nil))
	return err
}

// Reader wraps an io.Reader and keeps a running digest of everything
// read through it
type Reader struct {
	r io.Reader
	h hash.Hash
}

// NewReader returns a checksumming reader
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, h: sha1cd.New()}
}

func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.h.Write(p[:n]) //nolint:errcheck // never fails
	return n, err
}

// ReadN reads exactly n bytes, folding them through the digest
func (r *Reader) ReadN(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Sum returns the current digest
func (r *Reader) Sum() []byte {
	return r.h.Sum(nil)
}

// VerifyChecksum reads the 20 byte trailer from the underlying reader
// and compares it against the running digest.
// ErrChecksumMismatch is returned on mismatch
func (r *Reader) VerifyChecksum() error {
	stored := make([]byte, ChecksumSize)
	if _, err := io.ReadFull(r.r, stored); err != nil {
		return xerrors.Errorf("could not read checksum: %w", err)
	}
	if !bytes.Equal(stored, r.h.Sum(nil)) {
		return ErrChecksumMismatch
	}
	return nil
}
