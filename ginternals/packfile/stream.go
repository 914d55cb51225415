package packfile

import (
	"bytes"
	"hash"
	"io"

	"github.com/pjbgf/sha1cd"
	"golang.org/x/xerrors"
)

// Stream wraps the raw byte source of a pack and keeps the running
// SHA-1 of everything read so far, so the trailing checksum can be
// verified at the end.
//
// Stream implements io.ByteReader so the zlib reader consumes exactly
// the bytes of each compressed record and never over-reads into the
// next one
type Stream struct {
	r       io.Reader
	h       hash.Hash
	buf     []byte
	offset  int64
	capture *bytes.Buffer
}

// NewStream returns a stream reading from r. The prefix contains
// bytes that were already consumed from r by the caller (such as the
// "PACK" magic swallowed while scanning the wire) and are replayed
// first
func NewStream(r io.Reader, prefix []byte) *Stream {
	return &Stream{
		r:   r,
		h:   sha1cd.New(),
		buf: append([]byte{}, prefix...),
	}
}

// Offset returns the number of bytes read so far
func (s *Stream) Offset() int64 {
	return s.offset
}

func (s *Stream) Read(p []byte) (int, error) {
	var n int
	if len(s.buf) > 0 {
		n = copy(p, s.buf)
		s.buf = s.buf[n:]
	}
	if n < len(p) {
		m, err := s.r.Read(p[n:])
		n += m
		s.fold(p[:n])
		return n, err
	}
	s.fold(p[:n])
	return n, nil
}

// ReadByte reads a single byte
func (s *Stream) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(s, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadN reads exactly n bytes
func (s *Stream) ReadN(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(s, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *Stream) fold(data []byte) {
	s.offset += int64(len(data))
	if s.capture != nil {
		s.capture.Write(data)
		return
	}
	s.h.Write(data) //nolint:errcheck // never fails
}

// Capture runs fn and returns every byte it read from the stream.
// The captured bytes are folded into the digest when fn returns
func (s *Stream) Capture(fn func() error) ([]byte, error) {
	s.capture = new(bytes.Buffer)
	err := fn()
	data := s.capture.Bytes()
	s.capture = nil
	s.h.Write(data) //nolint:errcheck // never fails
	if err != nil {
		return nil, err
	}
	return data, nil
}

// VerifyChecksum reads the 20 byte pack trailer and compares it with
// the digest of everything read before it
func (s *Stream) VerifyChecksum() error {
	sum := s.h.Sum(nil)

	stored := make([]byte, 20)
	n := copy(stored, s.buf)
	s.buf = s.buf[n:]
	if n < len(stored) {
		if _, err := io.ReadFull(s.r, stored[n:]); err != nil {
			return xerrors.Errorf("could not read pack checksum: %w", err)
		}
	}
	s.offset += 20

	if !bytes.Equal(stored, sum) {
		return xerrors.Errorf("checksum does not match value read from pack: %w", ErrInvalidPack)
	}
	return nil
}
