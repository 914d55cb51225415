package packfile

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"

	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/object"
	"golang.org/x/xerrors"
)

// PackObject is a single record read out of a packfile
type PackObject interface {
	packObject()
}

// Record is a full (non delta) object
type Record struct {
	Type object.Type
	Data []byte
}

func (Record) packObject() {}

// ToObject returns the record as an object, computing its oid
func (r Record) ToObject() *object.Object {
	return object.New(r.Type, r.Data)
}

// OfsDelta is a delta whose base lives earlier in the same pack, at
// the record's offset minus BaseOffset
type OfsDelta struct {
	BaseOffset uint64
	Data       []byte
}

func (OfsDelta) packObject() {}

// RefDelta is a delta whose base is referenced by oid
type RefDelta struct {
	BaseOid ginternals.Oid
	Data    []byte
}

func (RefDelta) packObject() {}

// RecordInfo describes a record without inflating a full object
// chain. For deltas, Size is the target size parsed from the delta
// stream header
type RecordInfo struct {
	Type       object.Type
	Size       uint64
	BaseOffset uint64
	BaseOid    ginternals.Oid
}

// Reader reads the records of a packfile from a stream
type Reader struct {
	s     *Stream
	count uint32
}

// NewReader returns a reader over the given stream
func NewReader(s *Stream) *Reader {
	return &Reader{s: s}
}

// ReadHeader parses and validates the 12 byte pack header
func (r *Reader) ReadHeader() error {
	data, err := r.s.ReadN(headerSize)
	if err != nil {
		return xerrors.Errorf("could not read pack header: %w", err)
	}
	if !bytes.Equal(data[:4], packfileMagic()) {
		return xerrors.Errorf("bad pack signature %q: %w", data[:4], ErrInvalidMagic)
	}
	if version := binary.BigEndian.Uint32(data[4:8]); version != Version {
		return xerrors.Errorf("unsupported pack version %d: %w", version, ErrInvalidVersion)
	}
	r.count = binary.BigEndian.Uint32(data[8:])
	return nil
}

// Count returns the number of records announced by the header
func (r *Reader) Count() uint32 {
	return r.count
}

// Stream returns the underlying stream
func (r *Reader) Stream() *Stream {
	return r.s
}

// readRecordHeader reads the shared record prefix: 3 bits of type and
// a VarIntLE size
func (r *Reader) readRecordHeader() (object.Type, uint64, error) {
	first, size, err := VarIntLE{}.Read(r.s, 4)
	if err != nil {
		return 0, 0, xerrors.Errorf("could not read record header: %w", err)
	}
	typ := object.Type((first >> 4) & 0x7)
	return typ, size, nil
}

// ReadRecord reads the next record of the pack. The returned value is
// a Record, an OfsDelta, or a RefDelta
func (r *Reader) ReadRecord() (PackObject, error) {
	typ, size, err := r.readRecordHeader()
	if err != nil {
		return nil, err
	}

	switch typ {
	case object.TypeCommit, object.TypeTree, object.TypeBlob:
		data, err := r.readZlibStream()
		if err != nil {
			return nil, err
		}
		if uint64(len(data)) != size {
			return nil, xerrors.Errorf("record inflated to %d bytes, expected %d: %w", len(data), size, ErrInvalidPack)
		}
		return Record{Type: typ, Data: data}, nil

	case object.TypeDeltaOFS:
		offset, err := VarIntBE{}.Read(r.s)
		if err != nil {
			return nil, xerrors.Errorf("could not read delta base offset: %w", err)
		}
		data, err := r.readZlibStream()
		if err != nil {
			return nil, err
		}
		return OfsDelta{BaseOffset: offset, Data: data}, nil

	case object.TypeDeltaRef:
		raw, err := r.s.ReadN(ginternals.OidSize)
		if err != nil {
			return nil, xerrors.Errorf("could not read delta base oid: %w", err)
		}
		baseOid, err := ginternals.NewOidFromBytes(raw)
		if err != nil {
			return nil, err
		}
		data, err := r.readZlibStream()
		if err != nil {
			return nil, err
		}
		return RefDelta{BaseOid: baseOid, Data: data}, nil

	default:
		return nil, xerrors.Errorf("unknown pack record type %d: %w", typ, ErrInvalidPack)
	}
}

// ReadInfo reads the next record but stops at its metadata: the type
// and inflated size for base records, the base reference and target
// size for deltas
func (r *Reader) ReadInfo() (RecordInfo, error) {
	rec, err := r.ReadRecord()
	if err != nil {
		return RecordInfo{}, err
	}

	switch rec := rec.(type) {
	case Record:
		return RecordInfo{Type: rec.Type, Size: uint64(len(rec.Data))}, nil
	case OfsDelta:
		_, targetSize, err := DeltaSizes(rec.Data)
		if err != nil {
			return RecordInfo{}, err
		}
		return RecordInfo{Type: object.TypeDeltaOFS, Size: targetSize, BaseOffset: rec.BaseOffset}, nil
	case RefDelta:
		_, targetSize, err := DeltaSizes(rec.Data)
		if err != nil {
			return RecordInfo{}, err
		}
		return RecordInfo{Type: object.TypeDeltaRef, Size: targetSize, BaseOid: rec.BaseOid}, nil
	default:
		return RecordInfo{}, xerrors.Errorf("unknown record: %w", ErrInvalidPack)
	}
}

// readZlibStream inflates one compressed payload. The stream
// implements io.ByteReader, so the decompressor consumes exactly the
// bytes of this record
func (r *Reader) readZlibStream() ([]byte, error) {
	zr, err := zlib.NewReader(r.s)
	if err != nil {
		return nil, xerrors.Errorf("could not open zlib stream: %w", ErrInvalidPack)
	}
	defer zr.Close() //nolint:errcheck // read-only

	var out bytes.Buffer
	if _, err := io.Copy(&out, zr); err != nil {
		return nil, xerrors.Errorf("zlib decompression failed: %w", ErrInvalidPack)
	}
	return out.Bytes(), nil
}
