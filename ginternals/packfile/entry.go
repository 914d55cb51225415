package packfile

import (
	"path/filepath"

	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/object"
)

// Entry is one object scheduled to be written into a pack
type Entry struct {
	Oid  ginternals.Oid
	Type object.Type
	Size uint64
	Path string

	Delta  *Delta
	Depth  int
	Offset int64

	ofs bool
}

// NewEntry returns an entry for the given object. allowOfs selects
// OFS-delta encoding over REF-delta when the entry ends up deltified
func NewEntry(oid ginternals.Oid, typ object.Type, size uint64, path string, allowOfs bool) *Entry {
	return &Entry{
		Oid:  oid,
		Type: typ,
		Size: size,
		Path: path,
		ofs:  allowOfs,
	}
}

// AssignDelta turns the entry into a delta against the given base
func (e *Entry) AssignDelta(d *Delta) {
	e.Delta = d
	e.Depth = d.Base.Depth + 1
}

// PackedType returns the record type the entry will be written as
func (e *Entry) PackedType() object.Type {
	if e.Delta == nil {
		return e.Type
	}
	if e.ofs {
		return object.TypeDeltaOFS
	}
	return object.TypeDeltaRef
}

// PackedSize returns the inflated size of the payload that will be
// written: the delta size for deltified entries, the object size
// otherwise
func (e *Entry) PackedSize() uint64 {
	if e.Delta != nil {
		return uint64(len(e.Delta.Data))
	}
	return e.Size
}

// DeltaPrefix returns the base reference written between the record
// header and the compressed payload: a VarIntBE backreference for
// OFS-deltas, the raw base oid for REF-deltas, nothing for full
// records
func (e *Entry) DeltaPrefix() []byte {
	if e.Delta == nil {
		return nil
	}
	if e.ofs {
		return VarIntBE{}.Write(uint64(e.Offset - e.Delta.Base.Offset))
	}
	return e.Delta.Base.Oid.Bytes()
}

// sortBasename and sortDirname feed the delta-window ordering: objects
// likely to resemble each other (same name, same directory) end up
// neighbors
func (e *Entry) sortBasename() string {
	if e.Path == "" {
		return ""
	}
	return filepath.Base(e.Path)
}

func (e *Entry) sortDirname() string {
	if e.Path == "" {
		return ""
	}
	return filepath.Dir(e.Path)
}

// Less orders entries for the compression window: by type, then
// basename, then dirname, then size. The caller reverses the order so
// bigger objects come first and act as bases
func (e *Entry) Less(other *Entry) bool {
	if e.Type != other.Type {
		return e.Type < other.Type
	}
	if a, b := e.sortBasename(), other.sortBasename(); a != b {
		return a < b
	}
	if a, b := e.sortDirname(), other.sortDirname(); a != b {
		return a < b
	}
	return e.Size < other.Size
}
