package legit

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/afero"

	"github.com/legit-vcs/legit/ginternals/index"
	"github.com/legit-vcs/legit/ginternals/object"
	"golang.org/x/xerrors"
)

var (
	// ErrMissingFile is returned when a pathspec doesn't match any
	// file of the working tree
	ErrMissingFile = errors.New("pathspec did not match any files")

	// ErrNoPermission is returned when a working tree file cannot be
	// accessed
	ErrNoPermission = errors.New("permission denied")
)

// workspaceIgnore lists the directory entries the workspace never
// looks into
var workspaceIgnore = map[string]struct{}{
	".git": {},
}

// Workspace gives access to the files of the working tree, addressed
// by slash-separated paths relative to its root
type Workspace struct {
	fs   afero.Fs
	root string
}

// NewWorkspace returns a workspace rooted at the given directory
func NewWorkspace(fs afero.Fs, root string) *Workspace {
	return &Workspace{fs: fs, root: root}
}

func (ws *Workspace) fullPath(path string) string {
	return filepath.Join(ws.root, filepath.FromSlash(path))
}

// statFromFileInfo fills an index stat from what the filesystem
// reports. The inode-level fields are only available on a real
// filesystem
func statFromFileInfo(fi os.FileInfo) *index.Stat {
	st := &index.Stat{
		Mtime:     uint32(fi.ModTime().Unix()),
		MtimeNsec: uint32(fi.ModTime().Nanosecond()),
		Size:      uint32(fi.Size()),
		Mode:      fi.Mode(),
	}
	if sys, ok := fi.Sys().(*syscall.Stat_t); ok {
		st.Ctime = uint32(sys.Ctim.Sec)
		st.CtimeNsec = uint32(sys.Ctim.Nsec)
		st.Dev = uint32(sys.Dev)
		st.Ino = uint32(sys.Ino)
		st.UID = sys.Uid
		st.GID = sys.Gid
	}
	return st
}

// StatFile returns the stat of the file at the given path, or nil
// when it doesn't exist
func (ws *Workspace) StatFile(path string) (*index.Stat, error) {
	fi, err := ws.fs.Stat(ws.fullPath(path))
	if err != nil {
		if os.IsNotExist(err) || errors.Is(err, syscall.ENOTDIR) {
			return nil, nil
		}
		if os.IsPermission(err) {
			return nil, xerrors.Errorf("stat(%q): %w", path, ErrNoPermission)
		}
		return nil, err
	}
	return statFromFileInfo(fi), nil
}

// ReadFile returns the content of the file at the given path
func (ws *Workspace) ReadFile(path string) ([]byte, error) {
	data, err := afero.ReadFile(ws.fs, ws.fullPath(path))
	if err != nil {
		if os.IsPermission(err) {
			return nil, xerrors.Errorf("open(%q): %w", path, ErrNoPermission)
		}
		return nil, err
	}
	return data, nil
}

// WriteFile writes data to the given path. The executable mode gives
// the file 0755 permissions and any other mode 0644; mkdir creates
// missing parent directories
func (ws *Workspace) WriteFile(path string, data []byte, mode object.TreeObjectMode, mkdir bool) error {
	full := ws.fullPath(path)
	if mkdir {
		if err := ws.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return xerrors.Errorf("could not create parent directories: %w", err)
		}
	}

	perm := fs.FileMode(0o644)
	if mode == object.ModeExecutable {
		perm = 0o755
	}
	if err := afero.WriteFile(ws.fs, full, data, perm); err != nil {
		return xerrors.Errorf("could not write %s: %w", path, err)
	}
	// WriteFile only applies the permissions on creation
	if err := ws.fs.Chmod(full, perm); err != nil {
		return xerrors.Errorf("could not chmod %s: %w", path, err)
	}
	return nil
}

// Remove deletes the file or directory at the given path, then prunes
// any parent directories that became empty
func (ws *Workspace) Remove(path string) error {
	if err := ws.fs.RemoveAll(ws.fullPath(path)); err != nil && !os.IsNotExist(err) {
		return err
	}
	for dir := filepath.Dir(path); dir != "." && dir != "/"; dir = filepath.Dir(dir) {
		ws.RemoveDirectory(dir)
	}
	return nil
}

// RemoveDirectory removes the directory if it is empty
func (ws *Workspace) RemoveDirectory(path string) {
	ws.fs.Remove(ws.fullPath(path)) //nolint:errcheck // non-empty directories stay
}

// MakeDirectory ensures a directory exists at the given path,
// replacing a file of the same name
func (ws *Workspace) MakeDirectory(path string) error {
	full := ws.fullPath(path)
	if fi, err := ws.fs.Stat(full); err == nil && fi.Mode().IsRegular() {
		if err := ws.fs.Remove(full); err != nil {
			return err
		}
	}
	return ws.fs.MkdirAll(full, 0o755)
}

// ListFiles expands a path into the files below it, relative to the
// workspace root. ErrMissingFile is reported for a path that doesn't
// exist
func (ws *Workspace) ListFiles(path string) ([]string, error) {
	full := ws.fullPath(path)
	fi, err := ws.fs.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			rel, _ := filepath.Rel(ws.root, full)
			return nil, xerrors.Errorf("pathspec %q did not match any files: %w", filepath.ToSlash(rel), ErrMissingFile)
		}
		return nil, err
	}

	if !fi.IsDir() {
		rel, err := filepath.Rel(ws.root, full)
		if err != nil {
			return nil, err
		}
		return []string{filepath.ToSlash(rel)}, nil
	}

	var files []string
	entries, err := afero.ReadDir(ws.fs, full)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if _, ignored := workspaceIgnore[entry.Name()]; ignored {
			continue
		}
		children, err := ws.ListFiles(filepath.ToSlash(filepath.Join(path, entry.Name())))
		if err != nil {
			return nil, err
		}
		files = append(files, children...)
	}
	sort.Strings(files)
	return files, nil
}

// ListDir returns the direct children of the given directory with
// their stats, keyed by path relative to the workspace root
func (ws *Workspace) ListDir(dirname string) (map[string]*index.Stat, error) {
	entries, err := afero.ReadDir(ws.fs, ws.fullPath(dirname))
	if err != nil {
		return nil, err
	}

	stats := map[string]*index.Stat{}
	for _, entry := range entries {
		if _, ignored := workspaceIgnore[entry.Name()]; ignored {
			continue
		}
		path := entry.Name()
		if dirname != "" && dirname != "." {
			path = strings.TrimSuffix(dirname, "/") + "/" + entry.Name()
		}
		stats[path] = statFromFileInfo(entry)
	}
	return stats, nil
}

// ApplyMigration performs the workspace half of a migration: removals
// first, then directory changes, then writes
func (ws *Workspace) ApplyMigration(m *Migration) error {
	if err := ws.applyChangeList(m, actionDelete); err != nil {
		return err
	}

	rmdirs := sortedPaths(m.rmdirs)
	// deepest first
	sort.Sort(sort.Reverse(sort.StringSlice(rmdirs)))
	for _, dir := range rmdirs {
		ws.RemoveDirectory(dir)
	}

	mkdirs := sortedPaths(m.mkdirs)
	// shallowest first
	sort.Slice(mkdirs, func(i, j int) bool {
		di, dj := strings.Count(mkdirs[i], "/"), strings.Count(mkdirs[j], "/")
		if di != dj {
			return di < dj
		}
		return mkdirs[i] < mkdirs[j]
	})
	for _, dir := range mkdirs {
		if err := ws.MakeDirectory(dir); err != nil {
			return err
		}
	}

	if err := ws.applyChangeList(m, actionUpdate); err != nil {
		return err
	}
	return ws.applyChangeList(m, actionCreate)
}

func (ws *Workspace) applyChangeList(m *Migration, action migrationAction) error {
	for _, change := range m.changes[action] {
		full := ws.fullPath(change.path)

		if err := ws.fs.RemoveAll(full); err != nil && !os.IsNotExist(err) {
			return err
		}
		if action == actionDelete {
			continue
		}

		data, err := m.blobData(change.item.ID)
		if err != nil {
			return err
		}
		if err := ws.WriteFile(change.path, data, change.item.Mode, true); err != nil {
			return err
		}
	}
	return nil
}

func sortedPaths(set map[string]struct{}) []string {
	paths := make([]string, 0, len(set))
	for path := range set {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
