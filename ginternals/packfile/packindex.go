package packfile

import (
	"encoding/binary"
	"io"
	"sort"
	"strings"

	"github.com/legit-vcs/legit/ginternals"
	"golang.org/x/xerrors"
)

// PackIndex is the parsed form of a packfile's .idx companion.
//
// The index contains a header, 5 layers, and a footer.
// header: 8 bytes: the magic (0xff, 't', 'O', 'c') then the version.
//         Only version 2 is supported
// Layer1: 1024 bytes. 256 entries of 4 bytes, each the CUMULATIVE
//         number of objects whose oid starts with a byte <= the entry
//         position. The last entry is the total object count
// Layer2: count*20 bytes. The sorted oids of every object
// Layer3: count*4 bytes. A CRC32 per object, covering its raw pack
//         record
// Layer4: count*4 bytes. The pack offset of each object. If the MSB
//         of an entry is set, the remaining 31 bits index into Layer5
// Layer5: 8 bytes per overflowing object. Offsets >= 2GiB, big endian
// Footer: the pack's hash followed by the hash of the index itself
type PackIndex struct {
	oids    []ginternals.Oid
	offsets map[ginternals.Oid]uint64
}

// NewPackIndex parses an index file
func NewPackIndex(r io.Reader) (*PackIndex, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, xerrors.Errorf("could not read index header: %w", err)
	}
	if binary.BigEndian.Uint32(header[:4]) != idxSignature {
		return nil, xerrors.Errorf("invalid index header: %w", ErrInvalidMagic)
	}
	if binary.BigEndian.Uint32(header[4:]) != Version {
		return nil, xerrors.Errorf("invalid index version: %w", ErrInvalidVersion)
	}

	fanout := make([]byte, 256*4)
	if _, err := io.ReadFull(r, fanout); err != nil {
		return nil, xerrors.Errorf("could not read fanout table: %w", err)
	}
	count := int(binary.BigEndian.Uint32(fanout[255*4:]))

	idx := &PackIndex{
		oids:    make([]ginternals.Oid, 0, count),
		offsets: make(map[ginternals.Oid]uint64, count),
	}

	buf := make([]byte, ginternals.OidSize)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, xerrors.Errorf("could not read oid %d: %w", i, err)
		}
		oid, err := ginternals.NewOidFromBytes(buf)
		if err != nil {
			return nil, err
		}
		idx.oids = append(idx.oids, oid)
	}

	// we have no use for the CRCs once the pack is on disk
	if _, err := io.CopyN(io.Discard, r, int64(count*4)); err != nil {
		return nil, xerrors.Errorf("could not skip the CRC table: %w", err)
	}

	// offsets, possibly overflowing into the large offset table
	type overflow struct {
		oid ginternals.Oid
		pos uint64
	}
	var overflows []overflow

	entry := make([]byte, 4)
	for _, oid := range idx.oids {
		if _, err := io.ReadFull(r, entry); err != nil {
			return nil, xerrors.Errorf("could not read offset of %s: %w", oid, err)
		}
		value := binary.BigEndian.Uint32(entry)
		if value >= idxMaxOffset {
			overflows = append(overflows, overflow{oid: oid, pos: uint64(value &^ idxMaxOffset)})
			continue
		}
		idx.offsets[oid] = uint64(value)
	}

	if len(overflows) > 0 {
		sort.Slice(overflows, func(i, j int) bool { return overflows[i].pos < overflows[j].pos })
		large := make([]byte, 8)
		for i, o := range overflows {
			if o.pos != uint64(i) {
				return nil, xerrors.Errorf("large offset %d out of order: %w", o.pos, ErrInvalidPack)
			}
			if _, err := io.ReadFull(r, large); err != nil {
				return nil, xerrors.Errorf("could not read large offset of %s: %w", o.oid, err)
			}
			idx.offsets[o.oid] = binary.BigEndian.Uint64(large)
		}
	}

	return idx, nil
}

// EntryCount returns the number of objects in the pack
func (idx *PackIndex) EntryCount() int {
	return len(idx.oids)
}

// OidOffset returns the pack offset of the given oid.
// ginternals.ErrObjectNotFound is returned if the pack doesn't
// contain the object
func (idx *PackIndex) OidOffset(oid ginternals.Oid) (uint64, error) {
	offset, ok := idx.offsets[oid]
	if !ok {
		return 0, ginternals.ErrObjectNotFound
	}
	return offset, nil
}

// HasOid returns whether the pack contains the given oid
func (idx *PackIndex) HasOid(oid ginternals.Oid) bool {
	_, ok := idx.offsets[oid]
	return ok
}

// PrefixMatch returns every oid starting with the given hex prefix
func (idx *PackIndex) PrefixMatch(prefix string) []ginternals.Oid {
	var matches []ginternals.Oid
	for _, oid := range idx.oids {
		if strings.HasPrefix(oid.String(), prefix) {
			matches = append(matches, oid)
		}
	}
	return matches
}
