package packfile

import (
	"encoding/binary"
	"encoding/hex"
	"hash"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"

	"github.com/pjbgf/sha1cd"

	"github.com/legit-vcs/legit/ginternals"
	"golang.org/x/xerrors"
)

// Indexer stores an incoming pack on disk and builds its .idx
// companion: the pack is copied to a temp file while being read, delta
// chains are resolved to recover every object's oid, and the index is
// written next to the renamed pack
type Indexer struct {
	reader *Reader
	stream *Stream

	packDir string

	index      map[ginternals.Oid]indexEntry
	pendingOfs map[uint64][]indexEntry
	pendingRef map[ginternals.Oid][]indexEntry

	packFile  *checksumFile
	indexFile *checksumFile

	pack     *os.File
	packName string
}

type indexEntry struct {
	offset uint64
	crc    uint32
}

// NewIndexer returns an indexer that consumes the given reader. The
// reader's header must already have been read
func NewIndexer(packDir string, reader *Reader, stream *Stream) (*Indexer, error) {
	pf, err := newChecksumFile(packDir, "tmp_pack")
	if err != nil {
		return nil, err
	}
	xf, err := newChecksumFile(packDir, "tmp_idx")
	if err != nil {
		pf.discard() //nolint:errcheck // it already failed
		return nil, err
	}
	return &Indexer{
		reader:     reader,
		stream:     stream,
		packDir:    packDir,
		index:      map[ginternals.Oid]indexEntry{},
		pendingOfs: map[uint64][]indexEntry{},
		pendingRef: map[ginternals.Oid][]indexEntry{},
		packFile:   pf,
		indexFile:  xf,
	}, nil
}

// ProcessPack drains the incoming pack and leaves a pack-<hash>.pack
// and pack-<hash>.idx pair in the pack directory
func (ix *Indexer) ProcessPack() (err error) {
	defer func() {
		if ix.pack != nil {
			closeErr := ix.pack.Close()
			if err == nil {
				err = closeErr
			}
		}
	}()

	if err := ix.writeHeader(); err != nil {
		return err
	}
	if err := ix.writeObjects(); err != nil {
		return err
	}
	if err := ix.writeChecksum(); err != nil {
		return err
	}
	if err := ix.resolveDeltas(); err != nil {
		return err
	}
	return ix.writeIndex()
}

func (ix *Indexer) writeHeader() error {
	header := make([]byte, headerSize)
	copy(header, packfileMagic())
	binary.BigEndian.PutUint32(header[4:], Version)
	binary.BigEndian.PutUint32(header[8:], ix.reader.Count())
	return ix.packFile.write(header)
}

func (ix *Indexer) writeObjects() error {
	for n := uint32(0); n < ix.reader.Count(); n++ {
		if err := ix.indexObject(); err != nil {
			return err
		}
	}
	return nil
}

func (ix *Indexer) indexObject() error {
	offset := uint64(ix.packFile.size)

	var rec PackObject
	data, err := ix.stream.Capture(func() (err error) {
		rec, err = ix.reader.ReadRecord()
		return err
	})
	if err != nil {
		return err
	}

	crc := crc32.ChecksumIEEE(data)
	if err := ix.packFile.write(data); err != nil {
		return err
	}

	switch rec := rec.(type) {
	case Record:
		ix.index[rec.ToObject().ID()] = indexEntry{offset: offset, crc: crc}
	case OfsDelta:
		base := offset - rec.BaseOffset
		ix.pendingOfs[base] = append(ix.pendingOfs[base], indexEntry{offset: offset, crc: crc})
	case RefDelta:
		ix.pendingRef[rec.BaseOid] = append(ix.pendingRef[rec.BaseOid], indexEntry{offset: offset, crc: crc})
	}
	return nil
}

// writeChecksum verifies the trailer of the incoming stream, finalizes
// the on-disk pack, and reopens it for delta resolution
func (ix *Indexer) writeChecksum() error {
	if err := ix.stream.VerifyChecksum(); err != nil {
		return err
	}

	ix.packName = "pack-" + hex.EncodeToString(ix.packFile.sum()) + ExtPackfile
	if err := ix.packFile.move(ix.packName); err != nil {
		return err
	}

	pack, err := os.Open(filepath.Join(ix.packDir, ix.packName))
	if err != nil {
		return xerrors.Errorf("could not reopen pack: %w", err)
	}
	ix.pack = pack
	return nil
}

func (ix *Indexer) readRecordAt(offset uint64) (PackObject, error) {
	if _, err := ix.pack.Seek(int64(offset), 0); err != nil {
		return nil, xerrors.Errorf("could not seek to record: %w", err)
	}
	return NewReader(NewStream(ix.pack, nil)).ReadRecord()
}

// resolveDeltas walks the pending lists until every delta has been
// expanded and its oid recovered. Only the full records present
// before resolution need visiting here; the deltas hanging off them
// are resolved recursively
func (ix *Indexer) resolveDeltas() error {
	roots := make(map[ginternals.Oid]indexEntry, len(ix.index))
	for oid, entry := range ix.index {
		roots[oid] = entry
	}

	for oid, entry := range roots {
		rec, err := ix.readRecordAt(entry.offset)
		if err != nil {
			return err
		}
		base, ok := rec.(Record)
		if !ok {
			return ErrInvalidPack
		}
		if err := ix.resolveOfsChildren(base, entry.offset); err != nil {
			return err
		}
		if err := ix.resolveRefChildren(base, oid); err != nil {
			return err
		}
	}

	if len(ix.pendingOfs) > 0 || len(ix.pendingRef) > 0 {
		return xerrors.Errorf("pack has unresolvable deltas: %w", ErrInvalidPack)
	}
	return nil
}

func (ix *Indexer) resolveOfsChildren(base Record, offset uint64) error {
	pending := ix.pendingOfs[offset]
	if pending == nil {
		return nil
	}
	delete(ix.pendingOfs, offset)

	for _, child := range pending {
		if err := ix.resolvePending(base, child); err != nil {
			return err
		}
	}
	return nil
}

func (ix *Indexer) resolveRefChildren(base Record, oid ginternals.Oid) error {
	pending := ix.pendingRef[oid]
	if pending == nil {
		return nil
	}
	delete(ix.pendingRef, oid)

	for _, child := range pending {
		if err := ix.resolvePending(base, child); err != nil {
			return err
		}
	}
	return nil
}

func (ix *Indexer) resolvePending(base Record, child indexEntry) error {
	rec, err := ix.readRecordAt(child.offset)
	if err != nil {
		return err
	}

	var deltaData []byte
	switch rec := rec.(type) {
	case OfsDelta:
		deltaData = rec.Data
	case RefDelta:
		deltaData = rec.Data
	default:
		return ErrInvalidPack
	}

	data, err := ExpandDelta(base.Data, deltaData)
	if err != nil {
		return err
	}
	obj := Record{Type: base.Type, Data: data}
	oid := obj.ToObject().ID()
	ix.index[oid] = child

	if err := ix.resolveOfsChildren(obj, child.offset); err != nil {
		return err
	}
	return ix.resolveRefChildren(obj, oid)
}

// writeIndex emits the fanout table, oid table, CRC table, offset
// tables, and the two trailing hashes
func (ix *Indexer) writeIndex() error {
	oids := make([]ginternals.Oid, 0, len(ix.index))
	for oid := range ix.index {
		oids = append(oids, oid)
	}
	sort.Slice(oids, func(i, j int) bool { return oids[i].String() < oids[j].String() })

	header := make([]byte, 8)
	binary.BigEndian.PutUint32(header, idxSignature)
	binary.BigEndian.PutUint32(header[4:], Version)
	if err := ix.indexFile.write(header); err != nil {
		return err
	}

	// fanout: 256 cumulative counts
	counts := make([]uint32, 256)
	for _, oid := range oids {
		counts[oid[0]]++
	}
	var total uint32
	buf := make([]byte, 4)
	for _, count := range counts {
		total += count
		binary.BigEndian.PutUint32(buf, total)
		if err := ix.indexFile.write(buf); err != nil {
			return err
		}
	}

	for _, oid := range oids {
		if err := ix.indexFile.write(oid.Bytes()); err != nil {
			return err
		}
	}

	for _, oid := range oids {
		binary.BigEndian.PutUint32(buf, ix.index[oid].crc)
		if err := ix.indexFile.write(buf); err != nil {
			return err
		}
	}

	var largeOffsets []uint64
	for _, oid := range oids {
		offset := ix.index[oid].offset
		if offset >= idxMaxOffset {
			largeOffsets = append(largeOffsets, offset)
			offset = idxMaxOffset | uint64(len(largeOffsets)-1)
		}
		binary.BigEndian.PutUint32(buf, uint32(offset))
		if err := ix.indexFile.write(buf); err != nil {
			return err
		}
	}
	large := make([]byte, 8)
	for _, offset := range largeOffsets {
		binary.BigEndian.PutUint64(large, offset)
		if err := ix.indexFile.write(large); err != nil {
			return err
		}
	}

	// the index carries the pack's hash before its own
	if err := ix.indexFile.write(ix.packFile.sum()); err != nil {
		return err
	}
	return ix.indexFile.move("pack-" + hex.EncodeToString(ix.packFile.sum()) + ExtIndex)
}

// checksumFile is a temp file that folds everything written through
// SHA-1; move() appends the digest and renames the file into place
type checksumFile struct {
	dir    string
	f      *os.File
	digest hash.Hash
	size   int64
}

func newChecksumFile(dir, name string) (*checksumFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, xerrors.Errorf("could not create pack directory: %w", err)
	}
	f, err := os.CreateTemp(dir, name)
	if err != nil {
		return nil, xerrors.Errorf("could not create temp file: %w", err)
	}
	return &checksumFile{dir: dir, f: f, digest: sha1cd.New()}, nil
}

func (cf *checksumFile) write(data []byte) error {
	if _, err := cf.f.Write(data); err != nil {
		return xerrors.Errorf("could not write to %s: %w", cf.f.Name(), err)
	}
	cf.digest.Write(data) //nolint:errcheck // never fails
	cf.size += int64(len(data))
	return nil
}

func (cf *checksumFile) sum() []byte {
	return cf.digest.Sum(nil)
}

func (cf *checksumFile) move(name string) error {
	if _, err := cf.f.Write(cf.sum()); err != nil {
		return xerrors.Errorf("could not write trailer: %w", err)
	}
	if err := cf.f.Close(); err != nil {
		return xerrors.Errorf("could not close %s: %w", cf.f.Name(), err)
	}
	if err := os.Rename(cf.f.Name(), filepath.Join(cf.dir, name)); err != nil {
		return xerrors.Errorf("could not move %s into place: %w", name, err)
	}
	return nil
}

func (cf *checksumFile) discard() error {
	if err := cf.f.Close(); err != nil {
		return err
	}
	return os.Remove(cf.f.Name())
}
