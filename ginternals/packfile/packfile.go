package packfile

import (
	"bufio"
	"os"
	"strings"

	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/object"
	"golang.org/x/xerrors"
)

// Pack gives random access to the objects of a pack-<hash>.pack /
// pack-<hash>.idx pair on disk
type Pack struct {
	f   *os.File
	idx *PackIndex
}

// NewPackFromFile opens the packfile at the given path and its
// companion index. The pack needs to be closed with Close()
func NewPackFromFile(path string) (pack *Pack, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("could not open %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			f.Close() //nolint:errcheck // it already failed
		}
	}()

	idxPath := strings.TrimSuffix(path, ExtPackfile) + ExtIndex
	idxFile, err := os.Open(idxPath)
	if err != nil {
		return nil, xerrors.Errorf("could not open %s: %w", idxPath, err)
	}
	defer idxFile.Close() //nolint:errcheck // read-only

	idx, err := NewPackIndex(bufio.NewReader(idxFile))
	if err != nil {
		return nil, xerrors.Errorf("could not parse index of %s: %w", path, err)
	}

	return &Pack{f: f, idx: idx}, nil
}

// Close frees the resources
func (p *Pack) Close() error {
	return p.f.Close()
}

// HasOid returns whether the pack contains the given object
func (p *Pack) HasOid(oid ginternals.Oid) bool {
	return p.idx.HasOid(oid)
}

// PrefixMatch returns every oid of the pack starting with the given
// hex prefix
func (p *Pack) PrefixMatch(prefix string) []ginternals.Oid {
	return p.idx.PrefixMatch(prefix)
}

func (p *Pack) readerAt(offset uint64) (*Reader, error) {
	if _, err := p.f.Seek(int64(offset), 0); err != nil {
		return nil, xerrors.Errorf("could not seek to offset %d: %w", offset, err)
	}
	return NewReader(NewStream(bufio.NewReader(p.f), nil)), nil
}

// LoadRaw returns the type and payload of the given object,
// reconstructing it through its delta chain if needed
func (p *Pack) LoadRaw(oid ginternals.Oid) (object.Type, []byte, error) {
	offset, err := p.idx.OidOffset(oid)
	if err != nil {
		return 0, nil, err
	}
	return p.loadRawAt(offset)
}

func (p *Pack) loadRawAt(offset uint64) (object.Type, []byte, error) {
	r, err := p.readerAt(offset)
	if err != nil {
		return 0, nil, err
	}
	rec, err := r.ReadRecord()
	if err != nil {
		return 0, nil, err
	}

	switch rec := rec.(type) {
	case Record:
		return rec.Type, rec.Data, nil
	case OfsDelta:
		// the base may itself be a delta, so we recurse
		baseType, baseData, err := p.loadRawAt(offset - rec.BaseOffset)
		if err != nil {
			return 0, nil, xerrors.Errorf("could not get base object at offset %d: %w", offset-rec.BaseOffset, err)
		}
		data, err := ExpandDelta(baseData, rec.Data)
		if err != nil {
			return 0, nil, err
		}
		return baseType, data, nil
	case RefDelta:
		baseType, baseData, err := p.LoadRaw(rec.BaseOid)
		if err != nil {
			return 0, nil, xerrors.Errorf("could not get base object %s: %w", rec.BaseOid, err)
		}
		data, err := ExpandDelta(baseData, rec.Data)
		if err != nil {
			return 0, nil, err
		}
		return baseType, data, nil
	default:
		return 0, nil, ErrInvalidPack
	}
}

// LoadInfo returns the type and size of the given object without
// reconstructing its data. For deltas, the size is the target size
// recorded in the delta stream and the type comes from the base of
// the chain
func (p *Pack) LoadInfo(oid ginternals.Oid) (object.Type, uint64, error) {
	offset, err := p.idx.OidOffset(oid)
	if err != nil {
		return 0, 0, err
	}
	return p.loadInfoAt(offset)
}

func (p *Pack) loadInfoAt(offset uint64) (object.Type, uint64, error) {
	r, err := p.readerAt(offset)
	if err != nil {
		return 0, 0, err
	}
	info, err := r.ReadInfo()
	if err != nil {
		return 0, 0, err
	}

	switch info.Type {
	case object.TypeDeltaOFS:
		baseType, _, err := p.loadInfoAt(offset - info.BaseOffset)
		if err != nil {
			return 0, 0, err
		}
		return baseType, info.Size, nil
	case object.TypeDeltaRef:
		baseType, _, err := p.LoadInfo(info.BaseOid)
		if err != nil {
			return 0, 0, err
		}
		return baseType, info.Size, nil
	default:
		return info.Type, info.Size, nil
	}
}
