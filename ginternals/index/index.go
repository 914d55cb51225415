// Package index implements the staging area: the binary DIRC file
// listing the (path, stage, mode, oid, stat) entries that the next
// commit's tree is built from.
//
// The file contains a 12 byte header ('D','I','R','C', a u32 version,
// and a u32 entry count), the entries sorted by (path, stage), and a
// 20 byte SHA-1 trailer covering everything before it
package index

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"sort"

	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/object"
	"github.com/legit-vcs/legit/internal/hashio"
	"github.com/legit-vcs/legit/internal/lockfile"
	"golang.org/x/xerrors"
)

const (
	headerSize = 12
	version    = 2
)

func indexSignature() []byte {
	return []byte{'D', 'I', 'R', 'C'}
}

var (
	// ErrIndexCorrupt is returned when the index file cannot be
	// parsed or its checksum doesn't match
	ErrIndexCorrupt = errors.New("index file corrupt")
)

// ConflictItem is one side of a conflict set
type ConflictItem struct {
	Oid  ginternals.Oid
	Mode object.TreeObjectMode
}

// Index is the in-memory staging area
type Index struct {
	path    string
	lock    *lockfile.Lockfile
	entries map[EntryKey]*Entry
	// parents maps every tracked directory to the set of entry paths
	// below it, so directory queries don't scan the whole index
	parents map[string]map[string]struct{}
	changed bool
}

// New returns an index stored at the given path
func New(path string) *Index {
	idx := &Index{
		path: path,
		lock: lockfile.New(path),
	}
	idx.reset()
	return idx
}

func (idx *Index) reset() {
	idx.entries = map[EntryKey]*Entry{}
	idx.parents = map[string]map[string]struct{}{}
	idx.changed = false
}

// Load reads the index from disk. A missing file leaves the index
// empty
func (idx *Index) Load() error {
	idx.reset()

	f, err := os.Open(idx.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return xerrors.Errorf("could not open index: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	reader := hashio.NewReader(f)
	count, err := idx.readHeader(reader)
	if err != nil {
		return err
	}
	if err := idx.readEntries(reader, count); err != nil {
		return err
	}
	if err := reader.VerifyChecksum(); err != nil {
		return xerrors.Errorf("%v: %w", err, ErrIndexCorrupt)
	}
	return nil
}

// LoadForUpdate acquires the index lock then loads the current
// content. lockfile.ErrLockDenied is returned when another process
// holds the lock
func (idx *Index) LoadForUpdate() error {
	if err := idx.lock.HoldForUpdate(); err != nil {
		return err
	}
	return idx.Load()
}

func (idx *Index) readHeader(r *hashio.Reader) (uint32, error) {
	header, err := r.ReadN(headerSize)
	if err != nil {
		return 0, xerrors.Errorf("could not read index header: %w", err)
	}
	if !bytes.Equal(header[:4], indexSignature()) {
		return 0, xerrors.Errorf("invalid index signature: %w", ErrIndexCorrupt)
	}
	if v := binary.BigEndian.Uint32(header[4:8]); v != version {
		return 0, xerrors.Errorf("unsupported index version %d: %w", v, ErrIndexCorrupt)
	}
	return binary.BigEndian.Uint32(header[8:]), nil
}

func (idx *Index) readEntries(r *hashio.Reader, count uint32) error {
	for i := uint32(0); i < count; i++ {
		data, err := r.ReadN(entryMinSize)
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return xerrors.Errorf("index truncated at entry %d: %w", i, ErrIndexCorrupt)
			}
			return err
		}
		// entries are NUL padded to an 8 byte boundary; keep reading
		// blocks until the padding shows up
		for data[len(data)-1] != 0 {
			block, err := r.ReadN(entryBlock)
			if err != nil {
				return xerrors.Errorf("index truncated at entry %d: %w", i, ErrIndexCorrupt)
			}
			data = append(data, block...)
		}

		entry, err := parseEntry(data)
		if err != nil {
			return err
		}
		idx.storeEntry(entry)
	}
	return nil
}

// WriteUpdates persists the index through its lock and releases it.
// If nothing changed the lock is rolled back instead
func (idx *Index) WriteUpdates() error {
	if !idx.changed {
		return idx.lock.Rollback()
	}

	var out bytes.Buffer
	writer := hashio.NewWriter(&out)

	header := make([]byte, headerSize)
	copy(header, indexSignature())
	binary.BigEndian.PutUint32(header[4:], version)
	binary.BigEndian.PutUint32(header[8:], uint32(len(idx.entries)))
	writer.Write(header) //nolint:errcheck // writes to a buffer

	for _, entry := range idx.Entries() {
		writer.Write(entry.Bytes()) //nolint:errcheck // writes to a buffer
	}
	writer.WriteChecksum() //nolint:errcheck // writes to a buffer

	if err := idx.lock.Write(out.Bytes()); err != nil {
		return err
	}
	if err := idx.lock.Commit(); err != nil {
		return err
	}
	idx.changed = false
	return nil
}

// ReleaseLock rolls back the lock without writing
func (idx *Index) ReleaseLock() error {
	return idx.lock.Rollback()
}

// Entries returns every entry sorted by (path, stage)
func (idx *Index) Entries() []*Entry {
	entries := make([]*Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Path != entries[j].Path {
			return entries[i].Path < entries[j].Path
		}
		return entries[i].Stage() < entries[j].Stage()
	})
	return entries
}

// Add stages the file at the given path at stage 0, displacing any
// conflict stages for the path, any entry tracking an ancestor
// directory of the path as a file, and any entry below the path
func (idx *Index) Add(path string, oid ginternals.Oid, stat Stat) {
	for stage := 1; stage <= 3; stage++ {
		idx.removeEntryWithStage(path, stage)
	}

	entry := NewEntry(path, oid, stat)
	idx.discardConflicts(entry)
	idx.storeEntry(entry)
	idx.changed = true
}

// AddFromDB stages an entry from a tree item, with a zeroed stat
// cache
func (idx *Index) AddFromDB(path string, oid ginternals.Oid, mode object.TreeObjectMode) {
	entry := NewEntryFromDB(path, oid, mode, 0)
	idx.discardConflicts(entry)
	idx.storeEntry(entry)
	idx.changed = true
}

// AddConflictSet replaces the stage 0 entry of the path with the
// given stage 1..3 items. A nil item leaves its stage empty; for a
// both-added conflict the absence of stage 1 is significant
func (idx *Index) AddConflictSet(path string, items [3]*ConflictItem) {
	idx.removeEntryWithStage(path, 0)

	for i, item := range items {
		if item == nil {
			continue
		}
		idx.storeEntry(NewEntryFromDB(path, item.Oid, item.Mode, i+1))
	}
	idx.changed = true
}

// Remove unstages the path and everything below it
func (idx *Index) Remove(path string) {
	idx.removeEntry(path)
	idx.removeChildren(path)
	idx.changed = true
}

// Clear empties the index
func (idx *Index) Clear() {
	idx.reset()
	idx.changed = true
}

// UpdateEntryStat refreshes the stat cache of an entry after the
// file's content proved unchanged
func (idx *Index) UpdateEntryStat(entry *Entry, stat Stat) {
	entry.UpdateStat(stat)
	idx.changed = true
}

func (idx *Index) discardConflicts(entry *Entry) {
	for _, dir := range entry.ParentDirectories() {
		idx.removeEntry(dir)
	}
	idx.removeChildren(entry.Path)
}

func (idx *Index) removeEntry(path string) {
	for stage := 0; stage <= 3; stage++ {
		idx.removeEntryWithStage(path, stage)
	}
}

func (idx *Index) removeEntryWithStage(path string, stage int) {
	entry, ok := idx.entries[EntryKey{Path: path, Stage: stage}]
	if !ok {
		return
	}

	delete(idx.entries, entry.Key())

	for _, dir := range entry.ParentDirectories() {
		children, ok := idx.parents[dir]
		if !ok {
			continue
		}
		delete(children, entry.Path)
		if len(children) == 0 {
			delete(idx.parents, dir)
		}
	}
}

func (idx *Index) removeChildren(path string) {
	children, ok := idx.parents[path]
	if !ok {
		return
	}
	// the set shrinks as we remove, copy the keys first
	paths := make([]string, 0, len(children))
	for child := range children {
		paths = append(paths, child)
	}
	for _, child := range paths {
		idx.removeEntry(child)
	}
}

func (idx *Index) storeEntry(entry *Entry) {
	idx.entries[entry.Key()] = entry
	for _, dir := range entry.ParentDirectories() {
		children, ok := idx.parents[dir]
		if !ok {
			children = map[string]struct{}{}
			idx.parents[dir] = children
		}
		children[entry.Path] = struct{}{}
	}
}

// EntryForPath returns the stage 0 entry for the path, or nil
func (idx *Index) EntryForPath(path string) *Entry {
	return idx.EntryForPathStage(path, 0)
}

// EntryForPathStage returns the entry for (path, stage), or nil
func (idx *Index) EntryForPathStage(path string, stage int) *Entry {
	return idx.entries[EntryKey{Path: path, Stage: stage}]
}

// IsTrackedFile returns whether the path has an entry at any stage
func (idx *Index) IsTrackedFile(path string) bool {
	for stage := 0; stage <= 3; stage++ {
		if _, ok := idx.entries[EntryKey{Path: path, Stage: stage}]; ok {
			return true
		}
	}
	return false
}

// IsTrackedDirectory returns whether the path is an ancestor of some
// entry
func (idx *Index) IsTrackedDirectory(path string) bool {
	_, ok := idx.parents[path]
	return ok
}

// IsTracked returns whether the path is a tracked file or directory
func (idx *Index) IsTracked(path string) bool {
	return idx.IsTrackedFile(path) || idx.IsTrackedDirectory(path)
}

// IsConflict returns whether any entry is at a non-zero stage
func (idx *Index) IsConflict() bool {
	for key := range idx.entries {
		if key.Stage > 0 {
			return true
		}
	}
	return false
}

// ConflictPaths returns the sorted paths that have conflict stages
func (idx *Index) ConflictPaths() []string {
	seen := map[string]struct{}{}
	for key := range idx.entries {
		if key.Stage > 0 {
			seen[key.Path] = struct{}{}
		}
	}
	paths := make([]string, 0, len(seen))
	for path := range seen {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// ChildPaths returns the entry paths below the given directory
func (idx *Index) ChildPaths(path string) []string {
	children := idx.parents[path]
	paths := make([]string, 0, len(children))
	for child := range children {
		paths = append(paths, child)
	}
	sort.Strings(paths)
	return paths
}
