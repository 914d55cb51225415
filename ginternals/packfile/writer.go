package packfile

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"hash"
	"io"

	"github.com/pjbgf/sha1cd"

	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/object"
	"golang.org/x/xerrors"
)

// Source provides the object data the writer and compressor need
type Source interface {
	// LoadInfo returns the type and size of an object without its data
	LoadInfo(oid ginternals.Oid) (object.Type, uint64, error)
	// LoadRaw returns the type and full payload of an object
	LoadRaw(oid ginternals.Oid) (object.Type, []byte, error)
}

// Item is one object to pack, with the path it was reached through
// (used to group similar objects in the delta window)
type Item struct {
	Oid  ginternals.Oid
	Path string
}

// WriterOptions tweaks the pack encoding
type WriterOptions struct {
	// Compression is the zlib level, 0-9
	Compression int
	// AllowOfs enables OFS-delta records (needs the ofs-delta
	// capability on the wire)
	AllowOfs bool
}

// Writer encodes a set of objects into a pack stream
type Writer struct {
	out      io.Writer
	db       Source
	digest   hash.Hash
	offset   int64
	opts     WriterOptions
	packList []*Entry
}

// NewWriter returns a pack writer
func NewWriter(out io.Writer, db Source, opts WriterOptions) *Writer {
	return &Writer{
		out:    out,
		db:     db,
		digest: sha1cd.New(),
		opts:   opts,
	}
}

// WriteObjects deltifies and writes the given objects, followed by
// the pack trailer
func (w *Writer) WriteObjects(items []Item) error {
	if err := w.preparePackList(items); err != nil {
		return err
	}
	if err := w.compressObjects(); err != nil {
		return err
	}
	if err := w.writeHeader(); err != nil {
		return err
	}
	for _, entry := range w.packList {
		if err := w.writeEntry(entry); err != nil {
			return err
		}
	}
	if _, err := w.out.Write(w.digest.Sum(nil)); err != nil {
		return xerrors.Errorf("could not write pack trailer: %w", err)
	}
	return nil
}

func (w *Writer) write(data []byte) error {
	if _, err := w.out.Write(data); err != nil {
		return xerrors.Errorf("could not write to pack: %w", err)
	}
	w.digest.Write(data) //nolint:errcheck // never fails
	w.offset += int64(len(data))
	return nil
}

func (w *Writer) preparePackList(items []Item) error {
	w.packList = make([]*Entry, 0, len(items))
	for _, item := range items {
		typ, size, err := w.db.LoadInfo(item.Oid)
		if err != nil {
			return xerrors.Errorf("could not load %s: %w", item.Oid, err)
		}
		w.packList = append(w.packList, NewEntry(item.Oid, typ, size, item.Path, w.opts.AllowOfs))
	}
	return nil
}

func (w *Writer) compressObjects() error {
	compressor := NewCompressor(w.db)
	for _, entry := range w.packList {
		compressor.Add(entry)
	}
	return compressor.BuildDeltas()
}

func (w *Writer) writeHeader() error {
	header := make([]byte, headerSize)
	copy(header, packfileMagic())
	binary.BigEndian.PutUint32(header[4:], Version)
	binary.BigEndian.PutUint32(header[8:], uint32(len(w.packList)))
	return w.write(header)
}

func (w *Writer) writeEntry(entry *Entry) error {
	// a delta's base has to be written before the delta referencing it
	if entry.Delta != nil {
		if err := w.writeEntry(entry.Delta.Base); err != nil {
			return err
		}
	}

	// already written (as some other entry's base)
	if entry.Offset != 0 {
		return nil
	}
	entry.Offset = w.offset

	var payload []byte
	if entry.Delta != nil {
		payload = entry.Delta.Data
	} else {
		_, data, err := w.db.LoadRaw(entry.Oid)
		if err != nil {
			return xerrors.Errorf("could not load %s: %w", entry.Oid, err)
		}
		payload = data
	}

	header := VarIntLE{}.Write(entry.PackedSize(), 4)
	header[0] |= byte(entry.PackedType()) << 4
	if err := w.write(header); err != nil {
		return err
	}
	if prefix := entry.DeltaPrefix(); len(prefix) > 0 {
		if err := w.write(prefix); err != nil {
			return err
		}
	}

	compressed, err := deflate(payload, w.opts.Compression)
	if err != nil {
		return err
	}
	return w.write(compressed)
}

func deflate(data []byte, level int) ([]byte, error) {
	var out bytes.Buffer
	zw, err := zlib.NewWriterLevel(&out, level)
	if err != nil {
		return nil, xerrors.Errorf("could not create zlib writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close() //nolint:errcheck // it already failed
		return nil, xerrors.Errorf("could not compress record: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, xerrors.Errorf("could not finish compressing record: %w", err)
	}
	return out.Bytes(), nil
}
