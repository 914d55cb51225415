// Package refs implements the reference namespace: HEAD, branches
// under refs/heads, remote-tracking refs under refs/remotes, and the
// ad-hoc refs like ORIG_HEAD at the repository root.
//
// A ref file contains either a 40 char hex oid followed by a newline,
// or "ref: <path>" for a symbolic ref. Every write goes through a
// lockfile
package refs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/internal/gitpath"
	"github.com/legit-vcs/legit/internal/lockfile"
	"golang.org/x/xerrors"
)

var (
	// ErrStaleValue is returned by CompareAndSwap when the ref
	// changed since it was last read
	ErrStaleValue = errors.New("ref value changed since last read")

	// ErrInvalidBranch is returned for syntactically invalid,
	// missing, or duplicate branch names
	ErrInvalidBranch = errors.New("invalid branch")
)

const symrefPrefix = "ref: "

// Refs gives access to the references of one repository
type Refs struct {
	root string
}

// New returns a Refs rooted at the given .git directory
func New(root string) *Refs {
	return &Refs{root: root}
}

func (r *Refs) headsPath() string {
	return filepath.Join(r.root, gitpath.RefsHeadsPath)
}

func (r *Refs) remotesPath() string {
	return filepath.Join(r.root, gitpath.RefsRemotesPath)
}

// SymRef is a handle on a ref by name, which may point at an oid
// directly or chain through other symbolic refs
type SymRef struct {
	refs *Refs
	// Path is the ref name relative to .git, e.g. refs/heads/master
	Path string
}

// NewSymRef returns a handle on the given ref name
func (r *Refs) NewSymRef(path string) SymRef {
	return SymRef{refs: r, Path: path}
}

// ReadOid resolves the ref down to an oid. ok is false when the
// chain ends at a missing file
func (s SymRef) ReadOid() (ginternals.Oid, bool) {
	return s.refs.ReadRef(s.Path)
}

// IsHead returns whether the ref is HEAD itself
func (s SymRef) IsHead() bool {
	return s.Path == gitpath.HEADPath
}

// ShortName returns the ref name with its well-known prefix removed
func (s SymRef) ShortName() string {
	return s.refs.ShortName(s.Path)
}

// ShortName strips the refs/heads or refs/remotes prefix from a ref
// name
func (r *Refs) ShortName(path string) string {
	for _, prefix := range []string{gitpath.RefsHeadsPath + "/", gitpath.RefsRemotesPath + "/"} {
		if strings.HasPrefix(path, prefix) {
			return strings.TrimPrefix(path, prefix)
		}
	}
	return path
}

// readFile returns the trimmed content of a ref file
func (r *Refs) readFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

// pathForName searches the usual prefixes for a ref file matching
// the given name
func (r *Refs) pathForName(name string) (string, bool) {
	prefixes := []string{
		r.root,
		filepath.Join(r.root, gitpath.RefsPath),
		r.headsPath(),
		r.remotesPath(),
	}
	for _, prefix := range prefixes {
		candidate := filepath.Join(prefix, filepath.FromSlash(name))
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

// ReadRef resolves a ref name down to an oid, following symbolic
// refs. ok is false when the ref (or the end of its chain) doesn't
// exist
func (r *Refs) ReadRef(name string) (ginternals.Oid, bool) {
	path, ok := r.pathForName(name)
	if !ok {
		return ginternals.NullOid, false
	}
	return r.readSymref(path, map[string]struct{}{})
}

func (r *Refs) readSymref(path string, visited map[string]struct{}) (ginternals.Oid, bool) {
	// protect against circular symbolic references
	if _, seen := visited[path]; seen {
		return ginternals.NullOid, false
	}
	visited[path] = struct{}{}

	content, ok := r.readFile(path)
	if !ok {
		return ginternals.NullOid, false
	}
	if target, isSym := strings.CutPrefix(content, symrefPrefix); isSym {
		return r.readSymref(filepath.Join(r.root, filepath.FromSlash(target)), visited)
	}

	oid, err := ginternals.NewOidFromStr(content)
	if err != nil {
		return ginternals.NullOid, false
	}
	return oid, true
}

// ReadHead returns the oid HEAD resolves to. ok is false on an
// unborn branch
func (r *Refs) ReadHead() (ginternals.Oid, bool) {
	return r.ReadRef(gitpath.HEADPath)
}

// CurrentRef returns the symbolic ref HEAD points at, or HEAD itself
// when detached
func (r *Refs) CurrentRef() SymRef {
	return r.currentRef(gitpath.HEADPath)
}

func (r *Refs) currentRef(source string) SymRef {
	content, ok := r.readFile(filepath.Join(r.root, filepath.FromSlash(source)))
	if ok {
		if target, isSym := strings.CutPrefix(content, symrefPrefix); isSym {
			return r.currentRef(target)
		}
	}
	return SymRef{refs: r, Path: source}
}

// UpdateHead points the current branch (or a detached HEAD) at the
// given oid, returning the oid it pointed at before
func (r *Refs) UpdateHead(oid ginternals.Oid) (ginternals.Oid, error) {
	previous, _ := r.ReadHead()
	err := r.updateRefFile(filepath.Join(r.root, r.CurrentRef().Path), oid, nil)
	return previous, err
}

// SetHead makes HEAD track the given branch if it exists, and
// detaches HEAD at oid otherwise
func (r *Refs) SetHead(revision string, oid ginternals.Oid) error {
	head := filepath.Join(r.root, gitpath.HEADPath)
	branch := filepath.Join(r.headsPath(), filepath.FromSlash(revision))

	if info, err := os.Stat(branch); err == nil && !info.IsDir() {
		relative := gitpath.RefsHeadsPath + "/" + revision
		return r.writeFile(head, symrefPrefix+relative)
	}
	return r.updateRefFile(head, oid, nil)
}

// UpdateRef points the named ref at the given oid, creating it if
// needed
func (r *Refs) UpdateRef(name string, oid ginternals.Oid) error {
	return r.updateRefFile(filepath.Join(r.root, filepath.FromSlash(name)), oid, nil)
}

// DeleteRef removes the named ref
func (r *Refs) DeleteRef(name string) error {
	return r.deleteRefFile(filepath.Join(r.root, filepath.FromSlash(name)))
}

// CompareAndSwap updates the named ref only if its current value
// still matches oldOid. A zero oldOid means the ref must not exist; a
// zero newOid deletes the ref. ErrStaleValue is reported when the
// precondition fails
func (r *Refs) CompareAndSwap(name string, oldOid, newOid ginternals.Oid) error {
	path := filepath.Join(r.root, filepath.FromSlash(name))

	guard := func() error {
		current, _ := r.readSymref(path, map[string]struct{}{})
		if current != oldOid {
			return xerrors.Errorf("value of %s changed since last read: %w", name, ErrStaleValue)
		}
		return nil
	}

	if newOid.IsZero() {
		return r.deleteRefFileGuarded(path, guard)
	}
	return r.updateRefFile(path, newOid, guard)
}

// writeFile writes a ref file through a lock without a guard
func (r *Refs) writeFile(path, content string) error {
	lock := lockfile.New(path)
	if err := lock.HoldForUpdate(); err != nil {
		return err
	}
	if err := lock.Write([]byte(content + "\n")); err != nil {
		lock.Rollback() //nolint:errcheck // it already failed
		return err
	}
	return lock.Commit()
}

func (r *Refs) updateRefFile(path string, oid ginternals.Oid, guard func() error) error {
	lock := lockfile.New(path)
	if err := lock.HoldForUpdate(); err != nil {
		return err
	}
	if guard != nil {
		if err := guard(); err != nil {
			lock.Rollback() //nolint:errcheck // the guard error wins
			return err
		}
	}
	if err := lock.Write([]byte(oid.String() + "\n")); err != nil {
		lock.Rollback() //nolint:errcheck // it already failed
		return err
	}
	return lock.Commit()
}

func (r *Refs) deleteRefFile(path string) error {
	return r.deleteRefFileGuarded(path, nil)
}

func (r *Refs) deleteRefFileGuarded(path string, guard func() error) error {
	lock := lockfile.New(path)
	if err := lock.HoldForUpdate(); err != nil {
		return err
	}
	defer lock.Rollback() //nolint:errcheck // the lock is never committed

	if guard != nil {
		if err := guard(); err != nil {
			return err
		}
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return xerrors.Errorf("could not delete ref: %w", err)
	}
	return nil
}

// CreateBranch creates refs/heads/<name> at the given oid.
// ErrInvalidBranch is reported for a bad name or an existing branch
func (r *Refs) CreateBranch(name string, startOid ginternals.Oid) error {
	if !ginternals.IsRefNameValid(name) {
		return xerrors.Errorf("'%s' is not a valid branch name: %w", name, ErrInvalidBranch)
	}

	path := filepath.Join(r.headsPath(), filepath.FromSlash(name))
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return xerrors.Errorf("a branch named '%s' already exists: %w", name, ErrInvalidBranch)
	}

	return r.updateRefFile(path, startOid, nil)
}

// DeleteBranch removes refs/heads/<name> and prunes the directories
// it leaves empty, returning the oid the branch pointed at
func (r *Refs) DeleteBranch(name string) (ginternals.Oid, error) {
	path := filepath.Join(r.headsPath(), filepath.FromSlash(name))

	lock := lockfile.New(path)
	if err := lock.HoldForUpdate(); err != nil {
		return ginternals.NullOid, err
	}
	defer lock.Rollback() //nolint:errcheck // the lock is never committed

	oid, ok := r.readSymref(path, map[string]struct{}{})
	if !ok {
		return ginternals.NullOid, xerrors.Errorf("branch '%s' not found: %w", name, ErrInvalidBranch)
	}

	if err := os.Remove(path); err != nil {
		return ginternals.NullOid, xerrors.Errorf("could not delete branch: %w", err)
	}
	// the lock file sits beside the ref, so it has to go before the
	// emptied directories can be pruned
	lock.Rollback() //nolint:errcheck // the deferred Rollback is then a no-op
	r.deleteParentDirectories(path)

	return oid, nil
}

// deleteParentDirectories walks up from the ref file removing empty
// directories, stopping at refs/heads
func (r *Refs) deleteParentDirectories(path string) {
	heads := r.headsPath()
	for dir := filepath.Dir(path); dir != heads; dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			return
		}
	}
}

// ListAllRefs returns HEAD followed by every ref under refs/
func (r *Refs) ListAllRefs() []SymRef {
	refs := []SymRef{{refs: r, Path: gitpath.HEADPath}}
	return append(refs, r.listRefs(filepath.Join(r.root, gitpath.RefsPath))...)
}

// ListBranches returns every ref under refs/heads
func (r *Refs) ListBranches() []SymRef {
	return r.listRefs(r.headsPath())
}

// ListRemotes returns every ref under refs/remotes
func (r *Refs) ListRemotes() []SymRef {
	return r.listRefs(r.remotesPath())
}

func (r *Refs) listRefs(dir string) []SymRef {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var refs []SymRef
	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			refs = append(refs, r.listRefs(full)...)
			continue
		}
		rel, err := filepath.Rel(r.root, full)
		if err != nil {
			continue
		}
		refs = append(refs, SymRef{refs: r, Path: filepath.ToSlash(rel)})
	}
	return refs
}

// ReverseRefs maps every reachable oid to the refs that resolve to
// it
func (r *Refs) ReverseRefs() map[ginternals.Oid][]SymRef {
	table := map[ginternals.Oid][]SymRef{}
	for _, ref := range r.ListAllRefs() {
		if oid, ok := ref.ReadOid(); ok {
			table[oid] = append(table[oid], ref)
		}
	}
	return table
}
