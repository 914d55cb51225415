package packfile

import (
	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/object"
	"golang.org/x/xerrors"
)

// Storer persists objects received over the wire
type Storer interface {
	Source
	// StoreRaw writes an object to the database and returns its oid
	StoreRaw(typ object.Type, data []byte) (ginternals.Oid, error)
}

// Unpacker stores every record of an incoming pack as a loose object,
// expanding deltas as it goes. Used below the unpackLimit threshold,
// where a pack on disk isn't worth its index
type Unpacker struct {
	db     Storer
	reader *Reader
	stream *Stream

	// oid of the record stored at each offset, to resolve OFS deltas
	offsets map[uint64]ginternals.Oid
}

// NewUnpacker returns an unpacker that consumes the given reader. The
// reader's header must already have been read
func NewUnpacker(db Storer, reader *Reader, stream *Stream) *Unpacker {
	return &Unpacker{
		db:      db,
		reader:  reader,
		stream:  stream,
		offsets: map[uint64]ginternals.Oid{},
	}
}

// ProcessPack drains the incoming pack into the database and verifies
// the trailing checksum
func (u *Unpacker) ProcessPack() error {
	for n := uint32(0); n < u.reader.Count(); n++ {
		if err := u.processRecord(); err != nil {
			return err
		}
	}
	return u.stream.VerifyChecksum()
}

func (u *Unpacker) processRecord() error {
	offset := uint64(u.stream.Offset())

	rec, err := u.reader.ReadRecord()
	if err != nil {
		return err
	}

	typ, data, err := u.resolve(offset, rec)
	if err != nil {
		return err
	}

	oid, err := u.db.StoreRaw(typ, data)
	if err != nil {
		return err
	}
	u.offsets[offset] = oid
	return nil
}

func (u *Unpacker) resolve(offset uint64, rec PackObject) (object.Type, []byte, error) {
	switch rec := rec.(type) {
	case Record:
		return rec.Type, rec.Data, nil
	case RefDelta:
		return u.resolveDelta(rec.BaseOid, rec.Data)
	case OfsDelta:
		baseOid, ok := u.offsets[offset-rec.BaseOffset]
		if !ok {
			return 0, nil, xerrors.Errorf("ofs-delta base at offset %d not seen: %w", offset-rec.BaseOffset, ErrInvalidPack)
		}
		return u.resolveDelta(baseOid, rec.Data)
	default:
		return 0, nil, ErrInvalidPack
	}
}

func (u *Unpacker) resolveDelta(baseOid ginternals.Oid, delta []byte) (object.Type, []byte, error) {
	baseType, baseData, err := u.db.LoadRaw(baseOid)
	if err != nil {
		return 0, nil, xerrors.Errorf("could not load delta base %s: %w", baseOid, err)
	}
	data, err := ExpandDelta(baseData, delta)
	if err != nil {
		return 0, nil, err
	}
	return baseType, data, nil
}
