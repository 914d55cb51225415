package odb

import (
	"bytes"
	"compress/zlib"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/object"
	"golang.org/x/xerrors"
)

// looseBackend stores each object in its own zlib compressed file at
// objects/xy/… with xy being the first two hex chars of the oid
type looseBackend struct {
	fs   afero.Fs
	root string
}

func newLooseBackend(fs afero.Fs, root string) *looseBackend {
	return &looseBackend{fs: fs, root: root}
}

func (l *looseBackend) objectPath(oid ginternals.Oid) string {
	s := oid.String()
	return filepath.Join(l.root, s[:2], s[2:])
}

func (l *looseBackend) Has(oid ginternals.Oid) bool {
	_, err := l.fs.Stat(l.objectPath(oid))
	return err == nil
}

// readHeader opens an object file and decompresses enough of it to
// parse the "<type> <size>\0" header. The rest of the payload is only
// inflated when asked for
func (l *looseBackend) readHeader(oid ginternals.Oid) (typ object.Type, size uint64, zr io.ReadCloser, err error) {
	f, err := l.fs.Open(l.objectPath(oid))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil, ginternals.ErrObjectNotFound
		}
		return 0, 0, nil, xerrors.Errorf("could not open object file: %w", err)
	}

	zlibReader, err := zlib.NewReader(f)
	if err != nil {
		f.Close() //nolint:errcheck // it already failed
		return 0, 0, nil, xerrors.Errorf("could not open zlib stream of %s: %w", oid, err)
	}

	// the header is tiny, a single byte-by-byte scan is fine
	var header []byte
	buf := make([]byte, 1)
	for {
		if _, err := io.ReadFull(zlibReader, buf); err != nil {
			zlibReader.Close() //nolint:errcheck // it already failed
			f.Close()          //nolint:errcheck // it already failed
			return 0, 0, nil, xerrors.Errorf("could not read header of %s: %w", oid, err)
		}
		if buf[0] == 0 {
			break
		}
		header = append(header, buf[0])
	}

	typeStr, sizeStr, found := strings.Cut(string(header), " ")
	if !found {
		zlibReader.Close() //nolint:errcheck // it already failed
		f.Close()          //nolint:errcheck // it already failed
		return 0, 0, nil, xerrors.Errorf("malformed header of %s: %w", oid, object.ErrObjectInvalid)
	}
	typ, err = object.NewTypeFromString(typeStr)
	if err == nil {
		size, err = strconv.ParseUint(sizeStr, 10, 64)
	}
	if err != nil {
		zlibReader.Close() //nolint:errcheck // it already failed
		f.Close()          //nolint:errcheck // it already failed
		return 0, 0, nil, xerrors.Errorf("malformed header of %s: %w", oid, err)
	}

	return typ, size, &looseObjectReader{zr: zlibReader, f: f}, nil
}

type looseObjectReader struct {
	zr io.ReadCloser
	f  afero.File
}

func (r *looseObjectReader) Read(p []byte) (int, error) {
	return r.zr.Read(p)
}

func (r *looseObjectReader) Close() error {
	zErr := r.zr.Close()
	fErr := r.f.Close()
	if zErr != nil {
		return zErr
	}
	return fErr
}

func (l *looseBackend) LoadInfo(oid ginternals.Oid) (object.Type, uint64, error) {
	typ, size, zr, err := l.readHeader(oid)
	if err != nil {
		return 0, 0, err
	}
	zr.Close() //nolint:errcheck // read-only
	return typ, size, nil
}

func (l *looseBackend) LoadRaw(oid ginternals.Oid) (object.Type, []byte, error) {
	typ, size, zr, err := l.readHeader(oid)
	if err != nil {
		return 0, nil, err
	}
	defer zr.Close() //nolint:errcheck // read-only

	data := make([]byte, size)
	if _, err := io.ReadFull(zr, data); err != nil {
		return 0, nil, xerrors.Errorf("could not read content of %s: %w", oid, err)
	}
	return typ, data, nil
}

func (l *looseBackend) PrefixMatch(prefix string) []ginternals.Oid {
	if len(prefix) < 2 {
		return nil
	}
	dir := filepath.Join(l.root, prefix[:2])
	entries, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		return nil
	}

	var oids []ginternals.Oid
	for _, entry := range entries {
		name := prefix[:2] + entry.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		oid, err := ginternals.NewOidFromStr(name)
		if err != nil {
			continue
		}
		oids = append(oids, oid)
	}
	return oids
}

// WriteObject persists the canonical serialization of an object.
// The content is compressed to a temp file in the parent directory
// then renamed into place; an existing file is left untouched since
// the same oid always means the same bytes
func (l *looseBackend) WriteObject(oid ginternals.Oid, content []byte) error {
	path := l.objectPath(oid)
	if _, err := l.fs.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := l.fs.MkdirAll(dir, 0o755); err != nil {
		return xerrors.Errorf("could not create object directory: %w", err)
	}

	var compressed bytes.Buffer
	zw, err := zlib.NewWriterLevel(&compressed, zlib.BestSpeed)
	if err != nil {
		return xerrors.Errorf("could not create zlib writer: %w", err)
	}
	if _, err := zw.Write(content); err != nil {
		zw.Close() //nolint:errcheck // it already failed
		return xerrors.Errorf("could not compress object: %w", err)
	}
	if err := zw.Close(); err != nil {
		return xerrors.Errorf("could not finish compressing object: %w", err)
	}

	tmp, err := afero.TempFile(l.fs, dir, "tmp_obj_")
	if err != nil {
		return xerrors.Errorf("could not create temp object file: %w", err)
	}
	if _, err := tmp.Write(compressed.Bytes()); err != nil {
		tmp.Close() //nolint:errcheck // it already failed
		return xerrors.Errorf("could not write temp object file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return xerrors.Errorf("could not close temp object file: %w", err)
	}
	if err := l.fs.Rename(tmp.Name(), path); err != nil {
		return xerrors.Errorf("could not move object file into place: %w", err)
	}
	return nil
}
