// Package odb implements the object database: content-addressed
// storage of blobs, trees, and commits, backed by loose files and
// packfiles
package odb

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/object"
	"github.com/legit-vcs/legit/ginternals/packfile"
	"github.com/legit-vcs/legit/internal/cache"
	"golang.org/x/xerrors"
)

// Database persists and retrieves objects by content hash. Lookups
// search the loose backend first, then every pack ordered by
// descending mtime
type Database struct {
	path  string
	loose *looseBackend
	packs []*packfile.Pack

	// parsed objects, keyed by oid
	cache *cache.LRU
}

// New returns a database over the given objects directory
func New(fs afero.Fs, path string) (*Database, error) {
	db := &Database{
		path:  path,
		loose: newLooseBackend(fs, path),
		cache: cache.NewLRU(0),
	}
	if err := db.ReloadPacks(); err != nil {
		return nil, err
	}
	return db, nil
}

// PackPath returns the directory holding the packfiles
func (db *Database) PackPath() string {
	return filepath.Join(db.path, "pack")
}

// ReloadPacks re-scans the pack directory. Called after a new pack
// lands on disk
func (db *Database) ReloadPacks() error {
	db.closePacks()

	entries, err := os.ReadDir(db.PackPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return xerrors.Errorf("could not list pack directory: %w", err)
	}

	type packWithTime struct {
		path  string
		mtime int64
	}
	var candidates []packWithTime
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), packfile.ExtPackfile) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, packWithTime{
			path:  filepath.Join(db.PackPath(), entry.Name()),
			mtime: info.ModTime().UnixNano(),
		})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].mtime > candidates[j].mtime })

	for _, c := range candidates {
		pack, err := packfile.NewPackFromFile(c.path)
		if err != nil {
			return xerrors.Errorf("could not open pack %s: %w", c.path, err)
		}
		db.packs = append(db.packs, pack)
	}
	return nil
}

func (db *Database) closePacks() {
	for _, p := range db.packs {
		p.Close() //nolint:errcheck // read-only
	}
	db.packs = nil
}

// Close releases the pack file handles
func (db *Database) Close() {
	db.closePacks()
}

// Has returns whether the database contains the given object
func (db *Database) Has(oid ginternals.Oid) bool {
	if db.loose.Has(oid) {
		return true
	}
	for _, p := range db.packs {
		if p.HasOid(oid) {
			return true
		}
	}
	return false
}

// LoadInfo returns the type and size of an object without loading its
// content
func (db *Database) LoadInfo(oid ginternals.Oid) (object.Type, uint64, error) {
	typ, size, err := db.loose.LoadInfo(oid)
	if err == nil {
		return typ, size, nil
	}
	if !errors.Is(err, ginternals.ErrObjectNotFound) {
		return 0, 0, err
	}
	for _, p := range db.packs {
		typ, size, err := p.LoadInfo(oid)
		if err == nil {
			return typ, size, nil
		}
		if !errors.Is(err, ginternals.ErrObjectNotFound) {
			return 0, 0, err
		}
	}
	return 0, 0, xerrors.Errorf("object %s: %w", oid, ginternals.ErrObjectNotFound)
}

// LoadRaw returns the type and full payload of an object
func (db *Database) LoadRaw(oid ginternals.Oid) (object.Type, []byte, error) {
	typ, data, err := db.loose.LoadRaw(oid)
	if err == nil {
		return typ, data, nil
	}
	if !errors.Is(err, ginternals.ErrObjectNotFound) {
		return 0, nil, err
	}
	for _, p := range db.packs {
		typ, data, err := p.LoadRaw(oid)
		if err == nil {
			return typ, data, nil
		}
		if !errors.Is(err, ginternals.ErrObjectNotFound) {
			return 0, nil, err
		}
	}
	return 0, nil, xerrors.Errorf("object %s: %w", oid, ginternals.ErrObjectNotFound)
}

// Load returns the parsed object with the given oid
func (db *Database) Load(oid ginternals.Oid) (*object.Object, error) {
	if o, ok := db.cache.Get(oid); ok {
		return o.(*object.Object), nil
	}

	typ, data, err := db.LoadRaw(oid)
	if err != nil {
		return nil, err
	}
	o := object.NewWithID(oid, typ, data)
	db.cache.Add(oid, o)
	return o, nil
}

// LoadCommit returns the commit with the given oid
func (db *Database) LoadCommit(oid ginternals.Oid) (*object.Commit, error) {
	o, err := db.Load(oid)
	if err != nil {
		return nil, err
	}
	return o.AsCommit()
}

// LoadTree returns the tree with the given oid
func (db *Database) LoadTree(oid ginternals.Oid) (*object.Tree, error) {
	o, err := db.Load(oid)
	if err != nil {
		return nil, err
	}
	return o.AsTree()
}

// LoadBlob returns the blob with the given oid
func (db *Database) LoadBlob(oid ginternals.Oid) (*object.Blob, error) {
	o, err := db.Load(oid)
	if err != nil {
		return nil, err
	}
	if o.Type() != object.TypeBlob {
		return nil, xerrors.Errorf("object %s is a %s, not a blob: %w", oid, o.Type(), object.ErrObjectInvalid)
	}
	return object.NewBlob(o), nil
}

// Store persists an object. Storing an object that already exists is
// a no-op
func (db *Database) Store(o *object.Object) error {
	return db.loose.WriteObject(o.ID(), o.Serialize())
}

// StoreRaw persists an object from its type and payload, returning
// its oid
func (db *Database) StoreRaw(typ object.Type, data []byte) (ginternals.Oid, error) {
	o := object.New(typ, data)
	if err := db.Store(o); err != nil {
		return ginternals.NullOid, err
	}
	return o.ID(), nil
}

// PrefixMatch returns every oid starting with the given hex prefix,
// across all backends, deduplicated
func (db *Database) PrefixMatch(prefix string) []ginternals.Oid {
	seen := map[ginternals.Oid]struct{}{}
	var oids []ginternals.Oid

	add := func(matches []ginternals.Oid) {
		for _, oid := range matches {
			if _, ok := seen[oid]; ok {
				continue
			}
			seen[oid] = struct{}{}
			oids = append(oids, oid)
		}
	}

	add(db.loose.PrefixMatch(prefix))
	for _, p := range db.packs {
		add(p.PrefixMatch(prefix))
	}
	return oids
}
