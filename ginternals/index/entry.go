package index

import (
	"bytes"
	"encoding/binary"
	"io/fs"
	"strings"

	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/object"
	"golang.org/x/xerrors"
)

const (
	// entryMinSize is the smallest on-disk entry: the 62 byte fixed
	// part (10 u32 stat fields, a raw oid, and the flags) plus the
	// path's NUL, padded to the 8 byte block
	entryMinSize = 64
	// entryBlock is the boundary entries are NUL-padded to
	entryBlock = 8
	// maxPathSize is the biggest path length the 12 flag bits can
	// carry; longer paths store the clamped value
	maxPathSize = 0xFFF
)

// Stat carries the subset of stat(2) the index caches to detect
// modified files without hashing them
type Stat struct {
	Ctime     uint32
	CtimeNsec uint32
	Mtime     uint32
	MtimeNsec uint32
	Dev       uint32
	Ino       uint32
	UID       uint32
	GID       uint32
	Size      uint32
	Mode      fs.FileMode
}

// ModeForStat maps a file mode to the tree mode the index records:
// any execute bit makes the file executable
func ModeForStat(mode fs.FileMode) object.TreeObjectMode {
	if mode&0o111 != 0 {
		return object.ModeExecutable
	}
	return object.ModeFile
}

// Entry is one (path, stage) record of the index
type Entry struct {
	Ctime     uint32
	CtimeNsec uint32
	Mtime     uint32
	MtimeNsec uint32
	Dev       uint32
	Ino       uint32
	Mode      object.TreeObjectMode
	UID       uint32
	GID       uint32
	Size      uint32
	Oid       ginternals.Oid
	Flags     uint16
	Path      string
}

// EntryKey uniquely identifies an entry
type EntryKey struct {
	Path  string
	Stage int
}

// NewEntry returns a stage 0 entry for a file of the working tree
func NewEntry(path string, oid ginternals.Oid, stat Stat) *Entry {
	e := &Entry{
		Oid:   oid,
		Flags: pathFlags(path, 0),
		Path:  path,
	}
	e.UpdateStat(stat)
	return e
}

// NewEntryFromDB returns an entry built from a tree item rather than
// the working tree; its stat cache is zeroed
func NewEntryFromDB(path string, oid ginternals.Oid, mode object.TreeObjectMode, stage int) *Entry {
	return &Entry{
		Mode:  mode,
		Oid:   oid,
		Flags: pathFlags(path, stage),
		Path:  path,
	}
}

func pathFlags(path string, stage int) uint16 {
	length := len(path)
	if length > maxPathSize {
		length = maxPathSize
	}
	return uint16(stage)<<12 | uint16(length)
}

// Stage returns the merge stage of the entry: 0 resolved, 1 common
// ancestor, 2 ours, 3 theirs
func (e *Entry) Stage() int {
	return int(e.Flags>>12) & 0x3
}

// Key returns the (path, stage) key of the entry
func (e *Entry) Key() EntryKey {
	return EntryKey{Path: e.Path, Stage: e.Stage()}
}

// Basename returns the last path segment of the entry
func (e *Entry) Basename() string {
	parts := strings.Split(e.Path, "/")
	return parts[len(parts)-1]
}

// ParentDirectories returns every ancestor directory of the entry's
// path, shallowest first
func (e *Entry) ParentDirectories() []string {
	parts := strings.Split(e.Path, "/")
	dirs := make([]string, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		dirs = append(dirs, strings.Join(parts[:i], "/"))
	}
	return dirs
}

// UpdateStat refreshes the cached stat fields
func (e *Entry) UpdateStat(stat Stat) {
	e.Ctime = stat.Ctime
	e.CtimeNsec = stat.CtimeNsec
	e.Mtime = stat.Mtime
	e.MtimeNsec = stat.MtimeNsec
	e.Dev = stat.Dev
	e.Ino = stat.Ino
	e.Mode = ModeForStat(stat.Mode)
	e.UID = stat.UID
	e.GID = stat.GID
	e.Size = stat.Size
}

// StatMatch returns whether the entry could still describe a file
// with the given stat: the mode matches and the size matches (a zero
// recorded size matches anything, since it means the size is unknown)
func (e *Entry) StatMatch(stat Stat) bool {
	return e.Mode == ModeForStat(stat.Mode) && (e.Size == 0 || e.Size == stat.Size)
}

// TimesMatch returns whether the cached timestamps are identical,
// letting the caller skip hashing the file
func (e *Entry) TimesMatch(stat Stat) bool {
	return e.Ctime == stat.Ctime && e.CtimeNsec == stat.CtimeNsec &&
		e.Mtime == stat.Mtime && e.MtimeNsec == stat.MtimeNsec
}

// Bytes returns the on-disk form of the entry: the 62 byte fixed
// header, the NUL terminated path, padded with NULs to an 8 byte
// boundary
func (e *Entry) Bytes() []byte {
	w := new(bytes.Buffer)

	for _, v := range []uint32{
		e.Ctime, e.CtimeNsec, e.Mtime, e.MtimeNsec,
		e.Dev, e.Ino, uint32(e.Mode), e.UID, e.GID, e.Size,
	} {
		binary.Write(w, binary.BigEndian, v) //nolint:errcheck // never fails
	}
	w.Write(e.Oid.Bytes())
	binary.Write(w, binary.BigEndian, e.Flags) //nolint:errcheck // never fails
	w.WriteString(e.Path)
	w.WriteByte(0)

	for w.Len()%entryBlock != 0 {
		w.WriteByte(0)
	}
	return w.Bytes()
}

// parseEntry is the inverse of Bytes
func parseEntry(data []byte) (*Entry, error) {
	if len(data) < entryMinSize {
		return nil, xerrors.Errorf("entry too short: %w", ErrIndexCorrupt)
	}

	e := &Entry{}
	fields := []*uint32{
		&e.Ctime, &e.CtimeNsec, &e.Mtime, &e.MtimeNsec,
		&e.Dev, &e.Ino, nil, &e.UID, &e.GID, &e.Size,
	}
	for i, field := range fields {
		v := binary.BigEndian.Uint32(data[i*4:])
		if field == nil {
			e.Mode = object.TreeObjectMode(v)
			continue
		}
		*field = v
	}

	oid, err := ginternals.NewOidFromBytes(data[40:60])
	if err != nil {
		return nil, err
	}
	e.Oid = oid
	e.Flags = binary.BigEndian.Uint16(data[60:62])

	null := bytes.IndexByte(data[62:], 0)
	if null < 0 {
		return nil, xerrors.Errorf("entry path is not NUL terminated: %w", ErrIndexCorrupt)
	}
	e.Path = string(data[62 : 62+null])

	return e, nil
}
